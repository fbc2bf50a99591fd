package venue

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

// ErrNegativeAmount indicates a negative deposit or withdrawal request.
var ErrNegativeAmount = errors.New("venue: negative amount")

type position struct {
	invested   decimal.Decimal
	idle       decimal.Decimal
	checkpoint time.Time
}

// ConstantAPR is a venue that accrues a fixed per-annum rate linearly on its
// invested balance since the last checkpoint. A configurable share of every
// deposit is kept idle (withdrawable instantly, earning nothing). Negative
// rates are supported; the invested balance is floored at zero.
type ConstantAPR struct {
	name           string
	aprBps         decimal.Decimal
	notInvestedBps int64
	clock          func() time.Time
	positions      map[string]*position
}

// NewConstantAPR creates a venue with the given per-annum rate (bps, may be
// negative) and idle buffer share (bps of each deposit).
func NewConstantAPR(name string, aprBps int64, notInvestedBps int64) *ConstantAPR {
	return &ConstantAPR{
		name:           name,
		aprBps:         decimal.NewFromInt(aprBps),
		notInvestedBps: notInvestedBps,
		clock:          time.Now,
		positions:      make(map[string]*position),
	}
}

// SetClock replaces the time source. Deterministic clocks make time-based
// accrual testable.
func (v *ConstantAPR) SetClock(clock func() time.Time) { v.clock = clock }

// SetAPR changes the per-annum rate. Accrual up to now is checkpointed first
// so the old rate applies to the elapsed period.
func (v *ConstantAPR) SetAPR(aprBps int64) {
	for _, p := range v.positions {
		v.commit(p)
	}
	v.aprBps = decimal.NewFromInt(aprBps)
}

func (v *ConstantAPR) Name() string { return v.name }

func (v *ConstantAPR) position(asset domain.Asset) *position {
	p, ok := v.positions[asset.Symbol]
	if !ok {
		p = &position{checkpoint: v.clock()}
		v.positions[asset.Symbol] = p
	}
	return p
}

// accrued returns the linear yield earned on the invested balance since the
// position's checkpoint: invested * apr * elapsed / year.
func (v *ConstantAPR) accrued(p *position, now time.Time) decimal.Decimal {
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

func (v *ConstantAPR) commit(p *position) {
	now := v.clock()
	p.invested = domain.ClampZero(p.invested.Add(v.accrued(p, now)))
	p.checkpoint = now
}

func (v *ConstantAPR) Deposit(asset domain.Asset, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	p := v.position(asset)
	v.commit(p)
	idle := domain.ApplyBps(amount, v.notInvestedBps, asset)
	p.idle = p.idle.Add(idle)
	p.invested = p.invested.Add(amount.Sub(idle))
	return nil
}

func (v *ConstantAPR) TryWithdraw(asset domain.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
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

func (v *ConstantAPR) Staked(asset domain.Asset) decimal.Decimal {
	p := v.position(asset)
	invested := domain.ClampZero(p.invested.Add(v.accrued(p, v.clock())))
	return domain.Truncate(invested.Add(p.idle), asset)
}

func (v *ConstantAPR) NotInvested(asset domain.Asset) decimal.Decimal {
	return domain.Truncate(v.position(asset).idle, asset)
}

func (v *ConstantAPR) APR(asset domain.Asset) decimal.Decimal {
	return v.aprBps
}

func (v *ConstantAPR) Refresh(asset domain.Asset) {
	v.commit(v.position(asset))
}

// AdjustInvested credits (or debits) the invested balance directly. Used by
// the ledger for swap re-denomination; no external custody moves.
func (v *ConstantAPR) AdjustInvested(asset domain.Asset, delta decimal.Decimal) error {
	p := v.position(asset)
	v.commit(p)
	next := p.invested.Add(delta)
	if next.IsNegative() {
		// Take the excess from the idle buffer before giving up.
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
