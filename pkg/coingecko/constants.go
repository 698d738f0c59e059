package coingecko

import (
	"fmt"
	"time"

	"pricecollector/pkg/price"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	ProBaseURL     = "https://pro-api.coingecko.com/api/v3"

	// ReferenceCurrency is the only quote currency the collector asks for.
	ReferenceCurrency = "jpy"

	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	demoKeyHeader = "x-cg-demo-api-key"
	proKeyHeader  = "x-cg-pro-api-key"
)

// coinIDs maps each tracked asset to its CoinGecko coin id.
var coinIDs = map[price.Asset]string{
	price.XEM: "nem",
	price.XYM: "symbol",
}

// CoinID returns the CoinGecko id of a tracked asset.
func CoinID(asset price.Asset) (string, error) {
	id, ok := coinIDs[asset]
	if !ok {
		return "", fmt.Errorf("no coingecko id for asset: %s", asset)
	}
	return id, nil
}
