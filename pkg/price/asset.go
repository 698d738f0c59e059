package price

import (
	"fmt"
	"strings"
)

// Asset is a tracked digital asset.
type Asset string

// AssetMeta holds display and storage representations for an Asset.
type AssetMeta struct {
	Name    string
	DBValue string
}

const (
	XEM Asset = "XEM"
	XYM Asset = "XYM"
)

// validAssets maps every tracked Asset to its metadata.
var validAssets = map[Asset]AssetMeta{
	XEM: {Name: "NEM", DBValue: "XEM"},
	XYM: {Name: "Symbol", DBValue: "XYM"},
}

// assetOrder fixes the iteration order used by the collectors and the read API.
var assetOrder = []Asset{XEM, XYM}

// Assets returns every tracked asset in a stable order.
func Assets() []Asset {
	out := make([]Asset, len(assetOrder))
	copy(out, assetOrder)
	return out
}

// IsValid checks if the Asset is one of the tracked assets
func (a Asset) IsValid() bool {
	_, ok := validAssets[a]
	return ok
}

// Meta returns the metadata for a tracked asset.
func (a Asset) Meta() AssetMeta {
	return validAssets[a]
}

func (a Asset) String() string {
	return string(a)
}

// ParseAsset parses a symbol such as "xem" or "XYM" into an Asset.
func ParseAsset(s string) (Asset, error) {
	asset := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if !asset.IsValid() {
		return "", fmt.Errorf("invalid asset: %s", s)
	}
	return asset, nil
}
