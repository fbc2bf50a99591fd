// Package ledger implements the allocation ledger: it routes per-asset
// balances across registered venues, applies the withdrawal waterfall and
// aggregates venue-reported balances. It performs no interest math of its
// own; yield is whatever the venues report.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
	"github.com/muchofi/vault/internal/pricing"
	"github.com/muchofi/vault/internal/roles"
	"github.com/muchofi/vault/internal/venue"
)

var (
	// ErrNoDefaultSplit indicates a deposit for an asset with no routing table.
	ErrNoDefaultSplit = errors.New("no default split defined for the asset")
	// ErrSplitNotFull indicates a split whose percentages do not sum to 100%.
	ErrSplitNotFull = errors.New("split total is not 100% of investment")
	// ErrDuplicateVenue indicates registering an already registered venue.
	ErrDuplicateVenue = errors.New("venue already registered")
	// ErrUnknownVenue indicates an operation referencing an unregistered venue.
	ErrUnknownVenue = errors.New("venue not registered")
	// ErrExceedsStaked indicates a move larger than the source venue's balance.
	ErrExceedsStaked = errors.New("amount exceeds venue staked balance")
	// ErrCannotRedenominate indicates a venue that cannot adjust balances internally.
	ErrCannotRedenominate = errors.New("venue does not support re-denomination")
)

// Ledger owns the venue registry and the per-asset default splits. All
// operations are serialized by a single mutex: each call is atomic with
// respect to every other.
type Ledger struct {
	mu     sync.Mutex
	auth   roles.Authorizer
	oracle pricing.Oracle
	venues []venue.Adapter
	splits map[string]domain.Split
	assets map[string]domain.Asset
}

// New creates an empty ledger. The oracle is only used for USD aggregation.
func New(auth roles.Authorizer, oracle pricing.Oracle) *Ledger {
	if auth == nil {
		panic("ledger.New: auth is nil")
	}
	return &Ledger{
		auth:   auth,
		oracle: oracle,
		splits: make(map[string]domain.Split),
		assets: make(map[string]domain.Asset),
	}
}

// AddVenue registers a venue at the end of the ordered set. Admin-gated.
func (l *Ledger) AddVenue(caller string, v venue.Adapter) error {
	if err := roles.RequireAdmin(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.venues {
		if existing.Name() == v.Name() {
			return fmt.Errorf("adding venue %s: %w", v.Name(), ErrDuplicateVenue)
		}
	}
	l.venues = append(l.venues, v)
	return nil
}

// RemoveVenue unregisters a venue, shifting later entries down by one.
// Admin-gated.
func (l *Ledger) RemoveVenue(caller, name string) error {
	if err := roles.RequireAdmin(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, v := range l.venues {
		if v.Name() == name {
			l.venues = append(l.venues[:i], l.venues[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("removing venue %s: %w", name, ErrUnknownVenue)
}

// Venues returns the registered venue names in registration order.
func (l *Ledger) Venues() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Map(l.venues, func(v venue.Adapter, _ int) string { return v.Name() })
}

// SetDefaultSplit stores the asset's routing table verbatim. The percentages
// must sum to exactly 10,000 bps and every venue must be registered.
// Trader-or-admin gated. Existing balances are not moved.
func (l *Ledger) SetDefaultSplit(caller string, asset domain.Asset, split domain.Split) error {
	if err := roles.RequireTraderOrAdmin(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !split.IsFull() {
		return fmt.Errorf("setting split for %s (total %d bps): %w", asset.Symbol, split.SumBps(), ErrSplitNotFull)
	}
	for _, part := range split {
		if l.findVenue(part.Venue) == nil {
			return fmt.Errorf("setting split for %s: venue %s: %w", asset.Symbol, part.Venue, ErrUnknownVenue)
		}
	}

	l.splits[asset.Symbol] = append(domain.Split(nil), split...)
	l.assets[asset.Symbol] = asset
	return nil
}

// GetTokenDefaults returns the asset's configured split, or nil.
func (l *Ledger) GetTokenDefaults(asset domain.Asset) domain.Split {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(domain.Split(nil), l.splits[asset.Symbol]...)
}

func (l *Ledger) findVenue(name string) venue.Adapter {
	for _, v := range l.venues {
		if v.Name() == name {
			return v
		}
	}
	return nil
}

// DepositFrom routes amount across the asset's default split pro-rata to the
// configured percentages. Integer-division dust is assigned to the last
// venue of the split so the full amount is always accounted for. Owner-gated.
func (l *Ledger) DepositFrom(caller, depositor string, asset domain.Asset, amount decimal.Decimal) error {
	if err := roles.RequireOwner(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	split, ok := l.splits[asset.Symbol]
	if !ok {
		return fmt.Errorf("deposit of %s %s: %w", amount, asset.Symbol, ErrNoDefaultSplit)
	}

	remaining := amount
	for i, part := range split {
		portion := remaining
		if i < len(split)-1 {
			portion = domain.ApplyBps(amount, part.PercentageBps, asset)
		}
		if err := l.findVenue(part.Venue).Deposit(asset, portion); err != nil {
			return fmt.Errorf("depositing %s %s into %s: %w", portion, asset.Symbol, part.Venue, err)
		}
		remaining = remaining.Sub(portion)
	}

	slog.Info("ledger: deposit routed", "asset", asset.Symbol, "amount", amount, "depositor", depositor)
	return nil
}

// WithdrawFrom runs the withdrawal waterfall: idle balances first, in venue
// registration order, then invested balances pro-rata to the current
// distribution (single pass, no retry on partial fulfillment). Returns the
// amount actually extracted, which may be less than requested. Owner-gated.
func (l *Ledger) WithdrawFrom(caller, recipient string, asset domain.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := roles.RequireOwner(l.auth, caller); err != nil {
		return decimal.Zero, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	withdrawn := decimal.Zero
	remaining := amount

	// Phase 1: drain idle buffers in registration order.
	for _, v := range l.venues {
		if !remaining.IsPositive() {
			break
		}
		idle := v.NotInvested(asset)
		if !idle.IsPositive() {
			continue
		}
		actual, err := v.TryWithdraw(asset, decimal.Min(remaining, idle))
		if err != nil {
			return withdrawn, fmt.Errorf("withdrawing idle %s from %s: %w", asset.Symbol, v.Name(), err)
		}
		withdrawn = withdrawn.Add(actual)
		remaining = remaining.Sub(actual)
	}

	if !remaining.IsPositive() {
		slog.Info("ledger: withdrawal served from idle", "asset", asset.Symbol, "amount", withdrawn, "recipient", recipient)
		return withdrawn, nil
	}

	// Phase 2: drain invested balances pro-rata to the current distribution.
	type investedPart struct {
		v      venue.Adapter
		amount decimal.Decimal
	}
	var parts []investedPart
	totalInvested := decimal.Zero
	for _, v := range l.venues {
		inv := v.Staked(asset).Sub(v.NotInvested(asset))
		if inv.IsPositive() {
			parts = append(parts, investedPart{v: v, amount: inv})
			totalInvested = totalInvested.Add(inv)
		}
	}
	if len(parts) == 0 {
		return withdrawn, nil
	}

	shortfall := decimal.Min(remaining, totalInvested)
	assigned := decimal.Zero
	for i, part := range parts {
		request := shortfall.Sub(assigned)
		if i < len(parts)-1 {
			request = domain.Truncate(shortfall.Mul(part.amount).Div(totalInvested), asset)
		}
		assigned = assigned.Add(request)

		actual, err := part.v.TryWithdraw(asset, request)
		if err != nil {
			return withdrawn, fmt.Errorf("withdrawing invested %s from %s: %w", asset.Symbol, part.v.Name(), err)
		}
		withdrawn = withdrawn.Add(actual)
	}

	slog.Info("ledger: withdrawal served", "asset", asset.Symbol, "requested", amount, "withdrawn", withdrawn, "recipient", recipient)
	return withdrawn, nil
}

// MoveInvestment moves amount of asset from one venue to another without
// touching the default split. Trader-or-admin gated.
func (l *Ledger) MoveInvestment(caller string, asset domain.Asset, amount decimal.Decimal, fromName, toName string) error {
	if err := roles.RequireTraderOrAdmin(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.findVenue(fromName)
	if from == nil {
		return fmt.Errorf("moving from %s: %w", fromName, ErrUnknownVenue)
	}
	to := l.findVenue(toName)
	if to == nil {
		return fmt.Errorf("moving to %s: %w", toName, ErrUnknownVenue)
	}
	if amount.GreaterThan(from.Staked(asset)) {
		return fmt.Errorf("moving %s %s from %s: %w", amount, asset.Symbol, fromName, ErrExceedsStaked)
	}

	actual, err := from.TryWithdraw(asset, amount)
	if err != nil {
		return fmt.Errorf("withdrawing %s %s from %s: %w", amount, asset.Symbol, fromName, err)
	}
	if err := to.Deposit(asset, actual); err != nil {
		return fmt.Errorf("depositing %s %s into %s: %w", actual, asset.Symbol, toName, err)
	}

	slog.Info("ledger: investment moved", "asset", asset.Symbol, "amount", actual, "from", fromName, "to", toName)
	return nil
}

// RefreshInvestment asks every venue to checkpoint its accrued yield for the
// asset as of now. Idempotent within the same instant. Trader-or-admin gated.
func (l *Ledger) RefreshInvestment(caller string, asset domain.Asset) error {
	if err := roles.RequireTraderOrAdmin(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, v := range l.venues {
		v.Refresh(asset)
	}
	return nil
}

// RefreshAllInvestments refreshes every asset with a configured split.
// Trader-or-admin gated.
func (l *Ledger) RefreshAllInvestments(caller string) error {
	if err := roles.RequireTraderOrAdmin(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, asset := range l.sortedAssets() {
		for _, v := range l.venues {
			v.Refresh(asset)
		}
	}
	return nil
}

func (l *Ledger) sortedAssets() []domain.Asset {
	symbols := lo.Keys(l.assets)
	sort.Strings(symbols)
	return lo.Map(symbols, func(s string, _ int) domain.Asset { return l.assets[s] })
}

// TotalStaked returns the sum of every venue's reported balance for the asset.
func (l *Ledger) TotalStaked(asset domain.Asset) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalStakedLocked(asset)
}

func (l *Ledger) totalStakedLocked(asset domain.Asset) decimal.Decimal {
	return lo.Reduce(l.venues, func(acc decimal.Decimal, v venue.Adapter, _ int) decimal.Decimal {
		return acc.Add(v.Staked(asset))
	}, decimal.Zero)
}

// TotalNotInvested returns the sum of every venue's idle buffer for the asset.
func (l *Ledger) TotalNotInvested(asset domain.Asset) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Reduce(l.venues, func(acc decimal.Decimal, v venue.Adapter, _ int) decimal.Decimal {
		return acc.Add(v.NotInvested(asset))
	}, decimal.Zero)
}

// CurrentInvestment returns each registered venue's current balance for the
// asset, in registration order.
func (l *Ledger) CurrentInvestment(asset domain.Asset) []domain.InvestmentPart {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Map(l.venues, func(v venue.Adapter, _ int) domain.InvestmentPart {
		return domain.InvestmentPart{Venue: v.Name(), Amount: v.Staked(asset)}
	})
}

// TotalUSD aggregates the oracle-priced value of every tracked asset.
func (l *Ledger) TotalUSD(ctx context.Context) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, asset := range l.sortedAssets() {
		price, err := l.oracle.Price(ctx, asset)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pricing %s: %w", asset.Symbol, err)
		}
		total = total.Add(l.totalStakedLocked(asset).Mul(price))
	}
	return total, nil
}

// Redenominate applies a swap's accounting transfer: srcAmount leaves the
// source asset's ledger and dstAmount enters the destination asset's ledger.
// No venue deposit or withdrawal happens; venue positions are adjusted
// pro-rata to the current distribution (dust to the last venue touched), and
// the credited side falls back to the default split when the destination
// asset has no balance yet. Owner-gated.
func (l *Ledger) Redenominate(caller string, srcAsset domain.Asset, srcAmount decimal.Decimal, dstAsset domain.Asset, dstAmount decimal.Decimal) error {
	if err := roles.RequireOwner(l.auth, caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate both sides before touching either: a rejected swap must leave
	// every balance untouched.
	if srcAmount.GreaterThan(l.totalStakedLocked(srcAsset)) {
		return fmt.Errorf("debiting %s %s: %w", srcAmount, srcAsset.Symbol, ErrExceedsStaked)
	}
	if err := l.checkRedenominable(srcAsset, false); err != nil {
		return err
	}
	if err := l.checkRedenominable(dstAsset, true); err != nil {
		return err
	}

	if err := l.adjustProRata(srcAsset, srcAmount.Neg()); err != nil {
		return fmt.Errorf("debiting %s: %w", srcAsset.Symbol, err)
	}
	if err := l.adjustProRata(dstAsset, dstAmount); err != nil {
		return fmt.Errorf("crediting %s: %w", dstAsset.Symbol, err)
	}

	slog.Info("ledger: re-denominated", "from", srcAsset.Symbol, "fromAmount", srcAmount, "to", dstAsset.Symbol, "toAmount", dstAmount)
	return nil
}

// checkRedenominable verifies the asset's balances can be adjusted without
// venue deposits or withdrawals. The credited side may fall back to the
// default split when no balance exists yet.
func (l *Ledger) checkRedenominable(asset domain.Asset, credit bool) error {
	hasBalance := false
	for _, v := range l.venues {
		if v.Staked(asset).IsPositive() {
			hasBalance = true
			if _, ok := v.(venue.Redenominator); !ok {
				return fmt.Errorf("venue %s: %w", v.Name(), ErrCannotRedenominate)
			}
		}
	}
	if hasBalance {
		return nil
	}
	if !credit {
		return fmt.Errorf("debiting %s: %w", asset.Symbol, ErrExceedsStaked)
	}
	split, ok := l.splits[asset.Symbol]
	if !ok {
		return fmt.Errorf("crediting %s: %w", asset.Symbol, ErrNoDefaultSplit)
	}
	for _, part := range split {
		if _, ok := l.findVenue(part.Venue).(venue.Redenominator); !ok {
			return fmt.Errorf("venue %s: %w", part.Venue, ErrCannotRedenominate)
		}
	}
	return nil
}

func (l *Ledger) adjustProRata(asset domain.Asset, delta decimal.Decimal) error {
	type share struct {
		v      venue.Redenominator
		name   string
		weight decimal.Decimal
	}

	var shares []share
	totalWeight := decimal.Zero
	for _, v := range l.venues {
		staked := v.Staked(asset)
		if staked.IsPositive() {
			adj, ok := v.(venue.Redenominator)
			if !ok {
				return fmt.Errorf("venue %s: %w", v.Name(), ErrCannotRedenominate)
			}
			shares = append(shares, share{v: adj, name: v.Name(), weight: staked})
			totalWeight = totalWeight.Add(staked)
		}
	}

	// No balance yet: credit along the default split.
	if len(shares) == 0 {
		if delta.IsNegative() {
			return fmt.Errorf("debiting %s: %w", asset.Symbol, ErrExceedsStaked)
		}
		split, ok := l.splits[asset.Symbol]
		if !ok {
			return fmt.Errorf("crediting %s: %w", asset.Symbol, ErrNoDefaultSplit)
		}
		for _, part := range split {
			adj, ok := l.findVenue(part.Venue).(venue.Redenominator)
			if !ok {
				return fmt.Errorf("venue %s: %w", part.Venue, ErrCannotRedenominate)
			}
			shares = append(shares, share{v: adj, name: part.Venue, weight: decimal.NewFromInt(part.PercentageBps)})
			totalWeight = totalWeight.Add(decimal.NewFromInt(part.PercentageBps))
		}
	}

	assigned := decimal.Zero
	for i, s := range shares {
		portion := delta.Sub(assigned)
		if i < len(shares)-1 {
			portion = domain.Truncate(delta.Mul(s.weight).Div(totalWeight), asset)
		}
		assigned = assigned.Add(portion)
		if err := s.v.AdjustInvested(asset, portion); err != nil {
			return fmt.Errorf("adjusting %s on %s: %w", asset.Symbol, s.name, err)
		}
	}
	return nil
}
