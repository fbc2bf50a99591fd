package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VenueStake is one venue's share of an asset's allocation.
type VenueStake struct {
	Venue  string          `json:"venue"`
	Amount decimal.Decimal `json:"amount"`
}

// VaultReport is the observable state of a single vault at report time.
type VaultReport struct {
	Info           VaultInfo         `json:"info"`
	ClaimSupply    decimal.Decimal   `json:"claimSupply"`
	ClaimPrice     decimal.Decimal   `json:"claimPrice"`
	LastPeriodsApr []decimal.Decimal `json:"lastPeriodsApr"`
	Investment     []VenueStake      `json:"investment"`
}

// Report is a point-in-time snapshot of the whole engine: every vault plus
// the aggregate USD valuation across assets.
type Report struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	TotalUSD    decimal.Decimal `json:"totalUsd"`
	Vaults      []VaultReport   `json:"vaults"`
}
