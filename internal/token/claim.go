// Package token implements the proportional claim token a vault mints
// against its pooled deposits. Supply is mutated only by the vault that owns
// the token: mint on deposit, burn on withdraw and swap.
package token

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

// ErrInsufficientBalance indicates a burn larger than the holder's balance.
var ErrInsufficientBalance = errors.New("insufficient claim token balance")

// Claim is a mintable/burnable token with per-holder balances. Amounts are
// truncated to the token's precision on every mutation.
type Claim struct {
	asset    domain.Asset
	supply   decimal.Decimal
	balances map[string]decimal.Decimal
}

// NewClaim creates an empty claim token for the given token descriptor.
func NewClaim(asset domain.Asset) *Claim {
	return &Claim{asset: asset, balances: make(map[string]decimal.Decimal)}
}

// Asset returns the token descriptor.
func (c *Claim) Asset() domain.Asset { return c.asset }

// TotalSupply returns the current total supply.
func (c *Claim) TotalSupply() decimal.Decimal { return c.supply }

// BalanceOf returns holder's balance (zero for unknown holders).
func (c *Claim) BalanceOf(holder string) decimal.Decimal {
	return c.balances[holder]
}

// Mint credits amount to holder and grows the supply.
func (c *Claim) Mint(holder string, amount decimal.Decimal) {
	amount = domain.Truncate(amount, c.asset)
	c.balances[holder] = c.balances[holder].Add(amount)
	c.supply = c.supply.Add(amount)
}

// Burn removes amount from holder and shrinks the supply. The holder's
// balance must cover the full amount; partial burns are never applied.
func (c *Claim) Burn(holder string, amount decimal.Decimal) error {
	amount = domain.Truncate(amount, c.asset)
	bal := c.balances[holder]
	if bal.LessThan(amount) {
		return fmt.Errorf("burning %s %s from %s (balance %s): %w",
			amount, c.asset.Symbol, holder, bal, ErrInsufficientBalance)
	}
	c.balances[holder] = bal.Sub(amount)
	c.supply = c.supply.Sub(amount)
	return nil
}
