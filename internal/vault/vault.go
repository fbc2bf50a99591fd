// Package vault implements the share vault: it mints and burns proportional
// claim tokens against deposits routed through the allocation ledger, applies
// deposit/withdraw fee schedules and prices cross-asset claim swaps.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/badge"
	"github.com/muchofi/vault/internal/domain"
	"github.com/muchofi/vault/internal/pricing"
	"github.com/muchofi/vault/internal/roles"
	"github.com/muchofi/vault/internal/token"
	"github.com/muchofi/vault/internal/venue"
)

var (
	// ErrDuplicateVault indicates a vault already exists for the deposit
	// asset or the claim token.
	ErrDuplicateVault = errors.New("vault for that deposit or claim token already exists")
	// ErrUnknownVault indicates an operation on a vault id that does not exist.
	ErrUnknownVault = errors.New("vault does not exist")
	// ErrNotStakable indicates a deposit into a closed vault.
	ErrNotStakable = errors.New("vault is not stakable")
	// ErrZeroAmount indicates a zero or negative amount.
	ErrZeroAmount = errors.New("insufficient amount")
	// ErrInvalidFee indicates a fee outside [0, 10000) bps.
	ErrInvalidFee = errors.New("fee out of range")
	// ErrExceedsSwapCap indicates a swap larger than 10% of the destination
	// vault's total staked balance.
	ErrExceedsSwapCap = errors.New("cannot swap more than 10% of destination vault total")
	// ErrNoEarningsAddress indicates a sweep with no earnings destination set.
	ErrNoEarningsAddress = errors.New("earnings address not set")
	// ErrZeroExchangeRate indicates an operation on a vault whose claims have
	// no redeemable value: total staked fell to zero with supply outstanding.
	ErrZeroExchangeRate = errors.New("exchange rate is zero")
)

// swapCapBps caps a single swap at 10% of the destination vault's total.
const swapCapBps = 1_000

// defaultAprUpdatePeriod spaces realized-APR samples taken during refresh.
const defaultAprUpdatePeriod = 24 * time.Hour

// aprPeriodsKept is how many realized-APR periods GetLastPeriodsApr reports.
const aprPeriodsKept = 2

// Hub is the allocation-ledger surface the vault depends on.
type Hub interface {
	DepositFrom(caller, depositor string, asset domain.Asset, amount decimal.Decimal) error
	WithdrawFrom(caller, recipient string, asset domain.Asset, amount decimal.Decimal) (decimal.Decimal, error)
	Redenominate(caller string, srcAsset domain.Asset, srcAmount decimal.Decimal, dstAsset domain.Asset, dstAmount decimal.Decimal) error
	RefreshAllInvestments(caller string) error
	TotalStaked(asset domain.Asset) decimal.Decimal
}

type entry struct {
	id             int
	depositAsset   domain.Asset
	claim          *token.Claim
	stakable       bool
	depositFeeBps  int64
	withdrawFeeBps int64

	// Principal excluding yield; moves only on deposit/withdraw/swap.
	stakedFromDeposits decimal.Decimal

	// Withdraw-fee revenue retained by the vault until swept.
	heldFees decimal.Decimal

	// Realized-APR measurement baseline and history.
	lastTotalStaked decimal.Decimal
	lastAprUpdate   time.Time
	lastPeriodsApr  []decimal.Decimal
}

// Vault owns the per-asset vault registry. One mutex serializes every
// operation; the lock order is always vault before ledger.
type Vault struct {
	mu     sync.Mutex
	auth   roles.Authorizer
	hub    Hub
	oracle pricing.Oracle
	badges badge.PlanSource
	clock  func() time.Time

	// selfID is the principal the vault uses on owner-gated hub calls.
	selfID string

	entries         []*entry
	swapFeeBps      int64
	planFees        []PlanFee
	earningsAddress string
	aprUpdatePeriod time.Duration
}

// New creates an empty share vault. selfID must hold the owner role so the
// vault can move custody through the hub.
func New(auth roles.Authorizer, hub Hub, oracle pricing.Oracle, badges badge.PlanSource, selfID string) *Vault {
	if auth == nil {
		panic("vault.New: auth is nil")
	}
	if hub == nil {
		panic("vault.New: hub is nil")
	}
	if oracle == nil {
		panic("vault.New: oracle is nil")
	}
	if badges == nil {
		panic("vault.New: badges is nil")
	}
	return &Vault{
		auth:            auth,
		hub:             hub,
		oracle:          oracle,
		badges:          badges,
		clock:           time.Now,
		selfID:          selfID,
		aprUpdatePeriod: defaultAprUpdatePeriod,
	}
}

// SetClock replaces the time source.
func (v *Vault) SetClock(clock func() time.Time) { v.clock = clock }

// AddVault registers a new vault binding a deposit asset to a claim token.
// Admin-gated; both tokens must be unused by existing vaults.
func (v *Vault) AddVault(caller string, depositAsset, claimToken domain.Asset) (int, error) {
	if err := roles.RequireAdmin(v.auth, caller); err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, e := range v.entries {
		if e.depositAsset.Symbol == depositAsset.Symbol || e.claim.Asset().Symbol == claimToken.Symbol {
			return 0, fmt.Errorf("adding vault %s/%s: %w", depositAsset.Symbol, claimToken.Symbol, ErrDuplicateVault)
		}
	}

	e := &entry{
		id:           len(v.entries),
		depositAsset: depositAsset,
		claim:        token.NewClaim(claimToken),
	}
	v.entries = append(v.entries, e)
	return e.id, nil
}

func (v *Vault) entryByID(id int) (*entry, error) {
	if id < 0 || id >= len(v.entries) {
		return nil, fmt.Errorf("vault %d: %w", id, ErrUnknownVault)
	}
	return v.entries[id], nil
}

// exchangeRate is totalStaked/claimSupply, or 1 for an empty vault. Callers
// must take it before mutating state in the same operation.
func (v *Vault) exchangeRate(e *entry) decimal.Decimal {
	supply := e.claim.TotalSupply()
	if supply.IsZero() {
		return decimal.NewFromInt(1)
	}
	return v.hub.TotalStaked(e.depositAsset).Div(supply)
}

// SetOpenVault toggles whether a vault accepts deposits. Trader-or-admin gated.
func (v *Vault) SetOpenVault(caller string, id int, open bool) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return err
	}
	e.stakable = open
	return nil
}

// SetOpenAllVault toggles every vault at once. Trader-or-admin gated.
func (v *Vault) SetOpenAllVault(caller string, open bool) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, e := range v.entries {
		e.stakable = open
	}
	return nil
}

func validFee(bps int64) error {
	if bps < 0 || bps >= domain.TotalBps {
		return fmt.Errorf("%d bps: %w", bps, ErrInvalidFee)
	}
	return nil
}

// SetDepositFee sets a vault's deposit fee in bps. Trader-or-admin gated.
func (v *Vault) SetDepositFee(caller string, id int, bps int64) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	if err := validFee(bps); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return err
	}
	e.depositFeeBps = bps
	return nil
}

// SetWithdrawFee sets a vault's withdraw fee in bps. Trader-or-admin gated.
func (v *Vault) SetWithdrawFee(caller string, id int, bps int64) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	if err := validFee(bps); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return err
	}
	e.withdrawFeeBps = bps
	return nil
}

// SetAprUpdatePeriod sets the minimum spacing between realized-APR samples.
// Trader-or-admin gated.
func (v *Vault) SetAprUpdatePeriod(caller string, period time.Duration) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.aprUpdatePeriod = period
	return nil
}

// SetEarningsAddress sets the destination for swept fee revenue. Admin-gated.
func (v *Vault) SetEarningsAddress(caller, address string) error {
	if err := roles.RequireAdmin(v.auth, caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.earningsAddress = address
	return nil
}

// Deposit converts a user deposit into a ledger routing and a claim mint at
// the pre-deposit exchange rate. The deposit fee is withheld before routing:
// the fee is paid entirely in foregone staked principal.
func (v *Vault) Deposit(user string, id int, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return err
	}
	if !e.stakable {
		return fmt.Errorf("deposit into vault %d: %w", id, ErrNotStakable)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("deposit into vault %d: %w", id, ErrZeroAmount)
	}

	amount = domain.Truncate(amount, e.depositAsset)
	rateBefore := v.exchangeRate(e)
	if rateBefore.IsZero() {
		// Total staked collapsed to zero with claims outstanding: minting
		// against a zero rate is undefined, and routing first would strand
		// the funds. Reject before touching the ledger.
		return fmt.Errorf("deposit into vault %d: %w", id, ErrZeroExchangeRate)
	}
	effective := domain.ApplyFeeBps(amount, e.depositFeeBps, e.depositAsset)

	if err := v.hub.DepositFrom(v.selfID, user, e.depositAsset, effective); err != nil {
		return fmt.Errorf("routing deposit for vault %d: %w", id, err)
	}

	minted := domain.Truncate(effective.Div(rateBefore), e.claim.Asset())
	e.claim.Mint(user, minted)
	e.stakedFromDeposits = e.stakedFromDeposits.Add(effective)
	e.lastTotalStaked = e.lastTotalStaked.Add(effective)

	slog.Info("vault: deposit", "vault", id, "user", user, "amount", amount, "effective", effective, "minted", minted)
	return nil
}

// Withdraw removes amount (denominated in the deposit asset) from the vault:
// the matching claim tokens are burned, the full amount leaves the ledger,
// and the caller receives the amount net of the withdraw fee. The fee stays
// with the vault as unswept revenue. The payout may be less than requested
// when venues cannot return the full amount.
func (v *Vault) Withdraw(user string, id int, amount decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("withdraw from vault %d: %w", id, ErrZeroAmount)
	}

	amount = domain.Truncate(amount, e.depositAsset)
	rate := v.exchangeRate(e)
	if rate.IsZero() {
		return decimal.Zero, fmt.Errorf("withdraw from vault %d: %w", id, ErrZeroExchangeRate)
	}
	claimToBurn := domain.Truncate(amount.Div(rate), e.claim.Asset())
	if e.claim.BalanceOf(user).LessThan(claimToBurn) {
		return decimal.Zero, fmt.Errorf("withdraw from vault %d: %w", id, token.ErrInsufficientBalance)
	}

	actual, err := v.hub.WithdrawFrom(v.selfID, user, e.depositAsset, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("extracting withdrawal for vault %d: %w", id, err)
	}

	// The shortfall, if any, stays staked; burn only the claims matching
	// what actually left the ledger.
	if actual.LessThan(amount) {
		claimToBurn = domain.Truncate(actual.Div(rate), e.claim.Asset())
	}
	if err := e.claim.Burn(user, claimToBurn); err != nil {
		return decimal.Zero, fmt.Errorf("burning claims for vault %d: %w", id, err)
	}

	payout := domain.ApplyFeeBps(actual, e.withdrawFeeBps, e.depositAsset)
	e.heldFees = e.heldFees.Add(actual.Sub(payout))
	e.stakedFromDeposits = domain.ClampZero(e.stakedFromDeposits.Sub(actual))
	e.lastTotalStaked = domain.ClampZero(e.lastTotalStaked.Sub(actual))

	slog.Info("vault: withdraw", "vault", id, "user", user, "amount", amount, "actual", actual, "payout", payout)
	return payout, nil
}

// SweepEarnings moves the vault's retained withdraw-fee revenue to the
// earnings address. Trader-or-admin gated.
func (v *Vault) SweepEarnings(caller string, id int) (decimal.Decimal, error) {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return decimal.Zero, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return decimal.Zero, err
	}
	if v.earningsAddress == "" {
		return decimal.Zero, ErrNoEarningsAddress
	}

	swept := e.heldFees
	e.heldFees = decimal.Zero
	slog.Info("vault: earnings swept", "vault", id, "amount", swept, "to", v.earningsAddress)
	return swept, nil
}

// RefreshAndUpdateAllVaults refreshes every venue through the hub and takes a
// realized-APR sample for each vault once the APR update period has elapsed.
// Trader-or-admin gated. Idempotent within the same instant.
func (v *Vault) RefreshAndUpdateAllVaults(caller string) error {
	if err := roles.RequireTraderOrAdmin(v.auth, caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.hub.RefreshAllInvestments(caller); err != nil {
		return fmt.Errorf("refreshing investments: %w", err)
	}

	now := v.clock()
	for _, e := range v.entries {
		total := v.hub.TotalStaked(e.depositAsset)

		if e.lastAprUpdate.IsZero() {
			e.lastAprUpdate = now
			e.lastTotalStaked = total
			continue
		}

		elapsed := now.Sub(e.lastAprUpdate)
		if elapsed < v.aprUpdatePeriod {
			continue
		}

		if e.lastTotalStaked.IsPositive() {
			apr := total.Sub(e.lastTotalStaked).
				Div(e.lastTotalStaked).
				Mul(decimal.NewFromInt(venue.SecondsPerYear * domain.TotalBps)).
				Div(decimal.NewFromFloat(elapsed.Seconds()))
			e.lastPeriodsApr = append([]decimal.Decimal{apr}, e.lastPeriodsApr...)
			if len(e.lastPeriodsApr) > aprPeriodsKept {
				e.lastPeriodsApr = e.lastPeriodsApr[:aprPeriodsKept]
			}
		}
		e.lastAprUpdate = now
		e.lastTotalStaked = total
	}
	return nil
}

// GetLastPeriodsApr returns the realized APR (bps) of the most recent
// refresh periods, newest first.
func (v *Vault) GetLastPeriodsApr(id int) ([]decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return nil, err
	}
	return append([]decimal.Decimal(nil), e.lastPeriodsApr...), nil
}

// GetVaultInfo returns the observable state of one vault.
func (v *Vault) GetVaultInfo(id int) (domain.VaultInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return domain.VaultInfo{}, err
	}
	return domain.VaultInfo{
		ID:                 e.id,
		DepositAsset:       e.depositAsset,
		ClaimToken:         e.claim.Asset(),
		Stakable:           e.stakable,
		DepositFeeBps:      e.depositFeeBps,
		WithdrawFeeBps:     e.withdrawFeeBps,
		TotalStaked:        v.hub.TotalStaked(e.depositAsset),
		StakedFromDeposits: e.stakedFromDeposits,
	}, nil
}

// VaultCount returns the number of registered vaults.
func (v *Vault) VaultCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// VaultTotalStaked returns the ledger's reported total for the vault's asset.
func (v *Vault) VaultTotalStaked(id int) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return decimal.Zero, err
	}
	return v.hub.TotalStaked(e.depositAsset), nil
}

// ClaimTokenPrice returns the claim-to-deposit exchange rate truncated to 18
// decimal places.
func (v *Vault) ClaimTokenPrice(id int) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.ScaleRate(v.exchangeRate(e)), nil
}

// ClaimTotalSupply returns the outstanding claim-token supply of a vault.
func (v *Vault) ClaimTotalSupply(id int) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.claim.TotalSupply(), nil
}

// ClaimBalanceOf returns holder's claim-token balance in a vault.
func (v *Vault) ClaimBalanceOf(id int, holder string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.entryByID(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.claim.BalanceOf(holder), nil
}

// GetSwap quotes a claim-to-claim exchange: the destination claim amount the
// user would receive for inAmount source claims, net of the user's resolved
// swap fee. Pure read.
func (v *Vault) GetSwap(ctx context.Context, user string, sourceID int, inAmount decimal.Decimal, destID int) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	q, err := v.quoteSwap(ctx, user, sourceID, inAmount, destID)
	if err != nil {
		return decimal.Zero, err
	}
	return q.destAmount, nil
}

type swapQuote struct {
	src, dst   *entry
	inAmount   decimal.Decimal
	srcRate    decimal.Decimal
	dstRate    decimal.Decimal
	destAmount decimal.Decimal
}

func (v *Vault) quoteSwap(ctx context.Context, user string, sourceID int, inAmount decimal.Decimal, destID int) (swapQuote, error) {
	src, err := v.entryByID(sourceID)
	if err != nil {
		return swapQuote{}, err
	}
	dst, err := v.entryByID(destID)
	if err != nil {
		return swapQuote{}, err
	}

	// Price exactly what Swap will burn: sub-precision dust is dropped here,
	// not paid out.
	inAmount = domain.Truncate(inAmount, src.claim.Asset())
	if !inAmount.IsPositive() {
		return swapQuote{}, fmt.Errorf("swap from vault %d: %w", sourceID, ErrZeroAmount)
	}

	srcPrice, err := v.oracle.Price(ctx, src.depositAsset)
	if err != nil {
		return swapQuote{}, fmt.Errorf("pricing %s: %w", src.depositAsset.Symbol, err)
	}
	dstPrice, err := v.oracle.Price(ctx, dst.depositAsset)
	if err != nil {
		return swapQuote{}, fmt.Errorf("pricing %s: %w", dst.depositAsset.Symbol, err)
	}

	srcRate := v.exchangeRate(src)
	dstRate := v.exchangeRate(dst)
	if srcRate.IsZero() {
		return swapQuote{}, fmt.Errorf("swap from vault %d: %w", sourceID, ErrZeroExchangeRate)
	}
	if dstRate.IsZero() {
		return swapQuote{}, fmt.Errorf("swap into vault %d: %w", destID, ErrZeroExchangeRate)
	}

	sourceValue := inAmount.Mul(srcRate)
	usdValue := sourceValue.Mul(srcPrice)
	rawDest := usdValue.Div(dstPrice).Div(dstRate)

	feeBps := v.resolveSwapFee(user)
	destAmount := domain.ApplyFeeBps(rawDest, feeBps, dst.claim.Asset())

	return swapQuote{src: src, dst: dst, inAmount: inAmount, srcRate: srcRate, dstRate: dstRate, destAmount: destAmount}, nil
}

// Swap executes a claim-to-claim exchange: burns the source claims, credits
// the destination claims and re-denominates the underlying value between the
// two asset ledgers. No external trade happens; the transfer is validated by
// oracle pricing and capped at 10% of the destination vault's total staked.
func (v *Vault) Swap(ctx context.Context, user string, sourceID int, inAmount decimal.Decimal, destID int) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	q, err := v.quoteSwap(ctx, user, sourceID, inAmount, destID)
	if err != nil {
		return decimal.Zero, err
	}

	inAmount = q.inAmount
	if q.src.claim.BalanceOf(user).LessThan(inAmount) {
		return decimal.Zero, fmt.Errorf("swap from vault %d: %w", sourceID, token.ErrInsufficientBalance)
	}

	destEquivalent := domain.Truncate(q.destAmount.Mul(q.dstRate), q.dst.depositAsset)
	limit := domain.ApplyBps(v.hub.TotalStaked(q.dst.depositAsset), swapCapBps, q.dst.depositAsset)
	if destEquivalent.GreaterThan(limit) {
		return decimal.Zero, fmt.Errorf("swap of %s into vault %d: %w", destEquivalent, destID, ErrExceedsSwapCap)
	}

	srcEquivalent := domain.Truncate(inAmount.Mul(q.srcRate), q.src.depositAsset)
	if err := v.hub.Redenominate(v.selfID, q.src.depositAsset, srcEquivalent, q.dst.depositAsset, destEquivalent); err != nil {
		return decimal.Zero, fmt.Errorf("re-denominating swap: %w", err)
	}

	// Balance was checked above; burn cannot fail under the held lock.
	if err := q.src.claim.Burn(user, inAmount); err != nil {
		return decimal.Zero, fmt.Errorf("burning source claims: %w", err)
	}
	q.dst.claim.Mint(user, q.destAmount)

	q.src.stakedFromDeposits = domain.ClampZero(q.src.stakedFromDeposits.Sub(srcEquivalent))
	q.dst.stakedFromDeposits = q.dst.stakedFromDeposits.Add(destEquivalent)
	q.src.lastTotalStaked = domain.ClampZero(q.src.lastTotalStaked.Sub(srcEquivalent))
	q.dst.lastTotalStaked = q.dst.lastTotalStaked.Add(destEquivalent)

	slog.Info("vault: swap", "user", user, "source", sourceID, "in", inAmount, "dest", destID, "out", q.destAmount)
	return q.destAmount, nil
}
