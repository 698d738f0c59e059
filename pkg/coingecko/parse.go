package coingecko

import (
	"errors"
	"time"

	"pricecollector/pkg/price"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid json payload")

// parseCurrentPrices reads {"<coin id>": {"jpy": <price>}} for every tracked asset.
func parseCurrentPrices(body []byte) (map[price.Asset]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}

	out := make(map[price.Asset]float64, len(coinIDs))
	for _, asset := range price.Assets() {
		out[asset] = numberOrZero(gjson.GetBytes(body, coinIDs[asset]+"."+ReferenceCurrency))
	}
	return out, nil
}

// parseSeries converts the "prices" rows ([ms, price]) of a market_chart response.
// It skips malformed rows.
func parseSeries(body []byte) (price.Series, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}

	series := price.Series{}
	rows := gjson.GetBytes(body, "prices")
	if !rows.IsArray() {
		return series, nil
	}

	for _, row := range rows.Array() {
		pair := row.Array()
		if len(pair) < 2 {
			continue // skip incomplete row
		}
		if pair[0].Type != gjson.Number || pair[1].Type != gjson.Number {
			continue
		}
		series = append(series, price.Point{
			Time:  time.UnixMilli(pair[0].Int()).UTC(),
			Price: pair[1].Float(),
		})
	}
	return series, nil
}

// parseSnapshot reads market_data.current_price.jpy from a history response.
func parseSnapshot(body []byte) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, errInvalidJSON
	}
	return numberOrZero(gjson.GetBytes(body, "market_data.current_price."+ReferenceCurrency)), nil
}

func numberOrZero(r gjson.Result) float64 {
	if r.Type != gjson.Number {
		return 0
	}
	return r.Float()
}
