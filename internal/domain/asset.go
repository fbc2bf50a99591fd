package domain

import "fmt"

// Asset describes a deposit asset handled by the engine. All ledger
// quantities for an asset are fixed-point values truncated to its precision.
type Asset struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// NewAsset creates an Asset with the given symbol and decimal precision.
func NewAsset(symbol string, decimals int32) Asset {
	return Asset{Symbol: symbol, Decimals: decimals}
}

// String returns "SYMBOL/decimals", e.g. "USDC/6".
func (a Asset) String() string {
	return fmt.Sprintf("%s/%d", a.Symbol, a.Decimals)
}

// IsZero reports whether the asset is the zero value (unset).
func (a Asset) IsZero() bool {
	return a.Symbol == ""
}
