package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricecollector/pkg/price"
)

// CurrentPrices fetches the current JPY price of every tracked asset in one request.
// An asset missing from the response maps to 0.
func (c *Client) CurrentPrices(ctx context.Context) (map[price.Asset]float64, error) {
	ids := make([]string, 0, len(coinIDs))
	for _, asset := range price.Assets() {
		id, err := CoinID(asset)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	params := url.Values{
		"ids":           {strings.Join(ids, ",")},
		"vs_currencies": {ReferenceCurrency},
	}

	body, err := c.Fetch(ctx, c.endpoint("/simple/price", params))
	if err != nil {
		return nil, fmt.Errorf("fetch current prices: %w", err)
	}

	prices, err := parseCurrentPrices(body)
	if err != nil {
		return nil, fmt.Errorf("parse current prices: %w", err)
	}
	return prices, nil
}

// PriceSeries fetches every sample between from and to (inclusive, second precision).
// An empty series is a valid result.
func (c *Client) PriceSeries(ctx context.Context, asset price.Asset, from, to time.Time) (price.Series, error) {
	id, err := CoinID(asset)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"vs_currency": {ReferenceCurrency},
		"from":        {strconv.FormatInt(from.Unix(), 10)},
		"to":          {strconv.FormatInt(to.Unix(), 10)},
	}

	body, err := c.Fetch(ctx, c.endpoint("/coins/"+url.PathEscape(id)+"/market_chart/range", params))
	if err != nil {
		return nil, fmt.Errorf("fetch price series for %s: %w", asset, err)
	}

	series, err := parseSeries(body)
	if err != nil {
		return nil, fmt.Errorf("parse price series for %s: %w", asset, err)
	}
	return series, nil
}

// HistoricalSnapshot fetches the single daily snapshot price for date, or 0 when the
// payload has no JPY price.
func (c *Client) HistoricalSnapshot(ctx context.Context, asset price.Asset, date price.Date) (float64, error) {
	id, err := CoinID(asset)
	if err != nil {
		return 0, err
	}

	params := url.Values{
		"date":         {formatHistoryDate(date)},
		"localization": {"false"},
	}

	body, err := c.Fetch(ctx, c.endpoint("/coins/"+url.PathEscape(id)+"/history", params))
	if err != nil {
		return 0, fmt.Errorf("fetch snapshot for %s on %s: %w", asset, date, err)
	}

	p, err := parseSnapshot(body)
	if err != nil {
		return 0, fmt.Errorf("parse snapshot for %s on %s: %w", asset, date, err)
	}
	return p, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	return strings.TrimRight(c.baseURL, "/") + path + "?" + params.Encode()
}

// formatHistoryDate renders a date the way the history endpoint expects it (DD-MM-YYYY).
func formatHistoryDate(d price.Date) string {
	return fmt.Sprintf("%02d-%02d-%04d", d.Day, int(d.Month), d.Year)
}
