// Package venue defines the adapter contract for external yield-bearing
// destinations and provides the two venue families the engine ships with: a
// constant-APR venue and an index-style weighted pool venue.
package venue

import (
	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

// SecondsPerYear is the accrual year used for per-annum rates.
const SecondsPerYear = 365 * 24 * 60 * 60

// Adapter is the capability set the ledger needs from a venue. Staked and
// NotInvested report balances as of "now" (accrual is computed on read);
// Refresh commits the accrual as a new checkpoint and lets the venue run its
// internal rebalancing.
type Adapter interface {
	Name() string

	// Deposit adds amount of asset to the venue's position.
	Deposit(asset domain.Asset, amount decimal.Decimal) error

	// TryWithdraw removes up to amount and returns what was actually
	// extractable. Partial fulfillment is part of the contract, not an error.
	TryWithdraw(asset domain.Asset, amount decimal.Decimal) (decimal.Decimal, error)

	// Staked reports principal plus accrued yield for the asset.
	Staked(asset domain.Asset) decimal.Decimal

	// NotInvested reports the idle buffer available for instant withdrawal.
	NotInvested(asset domain.Asset) decimal.Decimal

	// APR reports the venue's current per-annum rate for the asset, in bps.
	APR(asset domain.Asset) decimal.Decimal

	// Refresh checkpoints accrued yield as of now. Idempotent within the
	// same instant.
	Refresh(asset domain.Asset)
}

// Redenominator is implemented by venues whose positions are internal
// accounting records. A claim swap moves value between two asset ledgers
// without an external trade, so the ledger needs to credit or debit a
// venue's invested balance directly.
type Redenominator interface {
	AdjustInvested(asset domain.Asset, delta decimal.Decimal) error
}
