package domain

import "github.com/shopspring/decimal"

// AllocationPart is one entry of an asset's default split: a venue name and
// its share of incoming deposits in basis points.
type AllocationPart struct {
	Venue         string `json:"venue"`
	PercentageBps int64  `json:"percentageBps"`
}

// Split is the ordered list of allocation parts for one asset. A valid
// default split sums to exactly 10,000 bps.
type Split []AllocationPart

// SumBps returns the total of all part percentages.
func (s Split) SumBps() int64 {
	var total int64
	for _, p := range s {
		total += p.PercentageBps
	}
	return total
}

// IsFull reports whether the split covers exactly 100% of a deposit.
func (s Split) IsFull() bool {
	return s.SumBps() == TotalBps
}

// InvestmentPart is one venue's currently held amount for an asset.
type InvestmentPart struct {
	Venue  string          `json:"venue"`
	Amount decimal.Decimal `json:"amount"`
}

// VaultInfo is the externally observable state of one vault.
type VaultInfo struct {
	ID                 int             `json:"id"`
	DepositAsset       Asset           `json:"depositAsset"`
	ClaimToken         Asset           `json:"claimToken"`
	Stakable           bool            `json:"stakable"`
	DepositFeeBps      int64           `json:"depositFeeBps"`
	WithdrawFeeBps     int64           `json:"withdrawFeeBps"`
	TotalStaked        decimal.Decimal `json:"totalStaked"`
	StakedFromDeposits decimal.Decimal `json:"stakedFromDeposits"`
}
