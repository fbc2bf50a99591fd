package vault

import (
	"sort"

	"github.com/muchofi/vault/internal/roles"
)

// PlanFee binds a badge plan to a preferential swap fee.
type PlanFee struct {
	Plan   int
	FeeBps int64
}

// SetSwapFee sets the standard swap fee in bps. Trader-or-admin gated.
func (v *Vault) SetSwapFee(caller string, bps int64) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	if err := validFee(bps); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.swapFeeBps = bps
	return nil
}

// SetSwapFeeForPlan sets a preferential swap fee for holders of a badge
// plan, replacing any previous fee for that plan. Trader-or-admin gated.
func (v *Vault) SetSwapFeeForPlan(caller string, plan int, bps int64) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	if err := validFee(bps); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.planFees {
		if v.planFees[i].Plan == plan {
			v.planFees[i].FeeBps = bps
			return nil
		}
	}
	v.planFees = append(v.planFees, PlanFee{Plan: plan, FeeBps: bps})
	sort.Slice(v.planFees, func(i, j int) bool { return v.planFees[i].Plan < v.planFees[j].Plan })
	return nil
}

// RemoveSwapFeeForPlan removes a plan's preferential swap fee. Removing an
// unconfigured plan is a no-op. Trader-or-admin gated.
func (v *Vault) RemoveSwapFeeForPlan(caller string, plan int) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.planFees {
		if v.planFees[i].Plan == plan {
			v.planFees = append(v.planFees[:i], v.planFees[i+1:]...)
			return nil
		}
	}
	return nil
}

// SwapFeeFor returns the swap fee a user would pay right now.
func (v *Vault) SwapFeeFor(user string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resolveSwapFee(user)
}

// resolveSwapFee picks the lowest preferential fee among the user's badge
// plans, falling back to the standard fee when none applies.
func (v *Vault) resolveSwapFee(user string) int64 {
	plans := v.badges.PlansOf(user)
	if len(plans) == 0 {
		return v.swapFeeBps
	}

	held := make(map[int]bool, len(plans))
	for _, p := range plans {
		held[p] = true
	}

	best := int64(-1)
	for _, pf := range v.planFees {
		if !held[pf.Plan] {
			continue
		}
		if best < 0 || pf.FeeBps < best {
			best = pf.FeeBps
		}
	}
	if best < 0 {
		return v.swapFeeBps
	}
	return best
}
