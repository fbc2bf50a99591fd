package venue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

// WeightedPool is an index-style venue: each asset has a target weight, a
// desired idle percentage and a minimum idle percentage. Refresh checkpoints
// accrual like ConstantAPR and then rebalances the idle buffer toward the
// desired percentage, but only when the deviation is at least minMoveBps
// (small drifts are not worth a move). Manual mode freezes rebalancing.
type WeightedPool struct {
	name           string
	aprBps         decimal.Decimal
	desiredIdleBps int64
	minIdleBps     int64
	minMoveBps     int64
	manualWeights  bool
	weights        map[string]int64
	clock          func() time.Time
	positions      map[string]*position
}

// NewWeightedPool creates a weighted pool venue.
func NewWeightedPool(name string, aprBps, desiredIdleBps, minIdleBps, minMoveBps int64) *WeightedPool {
	return &WeightedPool{
		name:           name,
		aprBps:         decimal.NewFromInt(aprBps),
		desiredIdleBps: desiredIdleBps,
		minIdleBps:     minIdleBps,
		minMoveBps:     minMoveBps,
		weights:        make(map[string]int64),
		clock:          time.Now,
		positions:      make(map[string]*position),
	}
}

// SetClock replaces the time source.
func (v *WeightedPool) SetClock(clock func() time.Time) { v.clock = clock }

// SetWeight sets the target weight (bps) for an asset.
func (v *WeightedPool) SetWeight(asset domain.Asset, bps int64) {
	v.weights[asset.Symbol] = bps
}

// SetManualModeWeights freezes (true) or resumes (false) idle rebalancing.
func (v *WeightedPool) SetManualModeWeights(manual bool) { v.manualWeights = manual }

// SetAPR changes the per-annum rate after checkpointing accrual.
func (v *WeightedPool) SetAPR(aprBps int64) {
	for _, p := range v.positions {
		v.commit(p)
	}
	v.aprBps = decimal.NewFromInt(aprBps)
}

func (v *WeightedPool) Name() string { return v.name }

func (v *WeightedPool) position(asset domain.Asset) *position {
	p, ok := v.positions[asset.Symbol]
	if !ok {
		p = &position{checkpoint: v.clock()}
		v.positions[asset.Symbol] = p
	}
	return p
}

func (v *WeightedPool) accrued(p *position, now time.Time) decimal.Decimal {
	elapsed := now.Sub(p.checkpoint)
	if elapsed <= 0 || p.invested.IsZero() {
		return decimal.Zero
	}
	seconds := decimal.NewFromFloat(elapsed.Seconds())
	return p.invested.
		Mul(v.aprBps).
		Mul(seconds).
		Div(decimal.NewFromInt(domain.TotalBps * SecondsPerYear))
}

func (v *WeightedPool) commit(p *position) {
	now := v.clock()
	p.invested = domain.ClampZero(p.invested.Add(v.accrued(p, now)))
	p.checkpoint = now
}

func (v *WeightedPool) Deposit(asset domain.Asset, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	p := v.position(asset)
	v.commit(p)
	idle := domain.ApplyBps(amount, v.desiredIdleBps, asset)
	p.idle = p.idle.Add(idle)
	p.invested = p.invested.Add(amount.Sub(idle))
	return nil
}

func (v *WeightedPool) TryWithdraw(asset domain.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	p := v.position(asset)
	v.commit(p)

	fromIdle := decimal.Min(amount, p.idle)
	p.idle = p.idle.Sub(fromIdle)

	fromInvested := decimal.Min(amount.Sub(fromIdle), p.invested)
	p.invested = p.invested.Sub(fromInvested)

	return fromIdle.Add(fromInvested), nil
}

func (v *WeightedPool) Staked(asset domain.Asset) decimal.Decimal {
	p := v.position(asset)
	invested := domain.ClampZero(p.invested.Add(v.accrued(p, v.clock())))
	return domain.Truncate(invested.Add(p.idle), asset)
}

func (v *WeightedPool) NotInvested(asset domain.Asset) decimal.Decimal {
	return domain.Truncate(v.position(asset).idle, asset)
}

func (v *WeightedPool) APR(asset domain.Asset) decimal.Decimal {
	return v.aprBps
}

// Refresh checkpoints accrual, then moves balance between the idle buffer and
// the invested position until idle sits at the desired percentage of the
// total, skipping moves smaller than minMoveBps of the total.
func (v *WeightedPool) Refresh(asset domain.Asset) {
	p := v.position(asset)
	v.commit(p)

	if v.manualWeights {
		return
	}

	total := p.invested.Add(p.idle)
	if total.IsZero() {
		return
	}

	desiredIdle := domain.ApplyBps(total, v.desiredIdleBps, asset)
	deviation := desiredIdle.Sub(p.idle).Abs()
	if deviation.LessThan(domain.ApplyBps(total, v.minMoveBps, asset)) {
		// Still honor the hard floor on the idle buffer.
		minIdle := domain.ApplyBps(total, v.minIdleBps, asset)
		if p.idle.GreaterThanOrEqual(minIdle) {
			return
		}
		desiredIdle = minIdle
	}

	p.invested = total.Sub(desiredIdle)
	p.idle = desiredIdle
}

// AdjustInvested credits (or debits) the invested balance directly for swap
// re-denomination.
func (v *WeightedPool) AdjustInvested(asset domain.Asset, delta decimal.Decimal) error {
	p := v.position(asset)
	v.commit(p)
	next := p.invested.Add(delta)
	if next.IsNegative() {
		shortfall := next.Neg()
		if p.idle.LessThan(shortfall) {
			return ErrNegativeAmount
		}
		p.idle = p.idle.Sub(shortfall)
		next = decimal.Zero
	}
	p.invested = next
	return nil
}
