package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/badge"
	"github.com/muchofi/vault/internal/domain"
	"github.com/muchofi/vault/internal/ledger"
	"github.com/muchofi/vault/internal/pricing"
	"github.com/muchofi/vault/internal/roles"
	"github.com/muchofi/vault/internal/venue"
)

const (
	admin   = "admin"
	trader  = "trader"
	engine  = "engine"
	alice   = "alice"
	bob     = "bob"
	revenue = "revenue"
)

type fixture struct {
	now    time.Time
	auth   *roles.Registry
	oracle *pricing.Static
	badges *badge.Manager
	ledger *ledger.Ledger
	vault  *Vault
	venues map[string]*venue.ConstantAPR
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		auth:   roles.NewRegistry(),
		oracle: pricing.NewStatic(),
		badges: badge.NewManager(),
		venues: make(map[string]*venue.ConstantAPR),
	}
	f.auth.Grant(admin, roles.Admin)
	f.auth.Grant(trader, roles.Trader)
	f.auth.Grant(engine, roles.Owner)

	f.ledger = ledger.New(f.auth, f.oracle)
	f.vault = New(f.auth, f.ledger, f.oracle, f.badges, engine)
	f.vault.SetClock(func() time.Time { return f.now })
	return f
}

// addVault wires one open vault backed by a single venue taking 100% of
// deposits at the given rate.
func (f *fixture) addVault(t *testing.T, symbol string, decimals int32, aprBps int64) int {
	t.Helper()
	asset := domain.NewAsset(symbol, decimals)
	claim := domain.NewAsset("m"+symbol, decimals)

	v := venue.NewConstantAPR(symbol+"-main", aprBps, 0)
	v.SetClock(func() time.Time { return f.now })
	f.venues[symbol] = v

	if err := f.ledger.AddVenue(admin, v); err != nil {
		t.Fatalf("AddVenue = %v", err)
	}
	split := domain.Split{{Venue: v.Name(), PercentageBps: domain.TotalBps}}
	if err := f.ledger.SetDefaultSplit(trader, asset, split); err != nil {
		t.Fatalf("SetDefaultSplit = %v", err)
	}

	id, err := f.vault.AddVault(admin, asset, claim)
	if err != nil {
		t.Fatalf("AddVault = %v", err)
	}
	if err := f.vault.SetOpenVault(trader, id, true); err != nil {
		t.Fatalf("SetOpenVault = %v", err)
	}
	return id
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func year() time.Duration {
	return time.Duration(venue.SecondsPerYear) * time.Second
}

func TestDepositAppliesFeeAndMintsAtPreDepositRate(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 0)
	if err := f.vault.SetDepositFee(trader, id, 150); err != nil {
		t.Fatalf("SetDepositFee = %v", err)
	}

	if err := f.vault.Deposit(alice, id, decimal.NewFromInt(300)); err != nil {
		t.Fatalf("Deposit = %v", err)
	}

	// 300 net of 150 bps = 295.5 staked and minted at rate 1.
	staked, _ := f.vault.VaultTotalStaked(id)
	if !staked.Equal(decimal.RequireFromString("295.5")) {
		t.Errorf("VaultTotalStaked = %s, want 295.5", staked)
	}
	claims, _ := f.vault.ClaimBalanceOf(id, alice)
	if !claims.Equal(decimal.RequireFromString("295.5")) {
		t.Errorf("claims = %s, want 295.5", claims)
	}
	info, _ := f.vault.GetVaultInfo(id)
	if !info.StakedFromDeposits.Equal(decimal.RequireFromString("295.5")) {
		t.Errorf("StakedFromDeposits = %s, want 295.5", info.StakedFromDeposits)
	}
}

func TestDepositRejections(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 0)

	if err := f.vault.Deposit(alice, id, decimal.Zero); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("Deposit(0) = %v, want ErrZeroAmount", err)
	}

	if err := f.vault.SetOpenVault(trader, id, false); err != nil {
		t.Fatalf("SetOpenVault = %v", err)
	}
	if err := f.vault.Deposit(alice, id, decimal.NewFromInt(10)); !errors.Is(err, ErrNotStakable) {
		t.Errorf("Deposit into closed vault = %v, want ErrNotStakable", err)
	}

	if err := f.vault.Deposit(alice, 99, decimal.NewFromInt(10)); !errors.Is(err, ErrUnknownVault) {
		t.Errorf("Deposit into missing vault = %v, want ErrUnknownVault", err)
	}
}

func TestAddVaultRejectsDuplicateTokens(t *testing.T) {
	f := newFixture(t)
	f.addVault(t, "USDC", 6, 0)

	usdc := domain.NewAsset("USDC", 6)
	other := domain.NewAsset("DAI", 18)

	if _, err := f.vault.AddVault(admin, usdc, domain.NewAsset("mUSDC2", 6)); !errors.Is(err, ErrDuplicateVault) {
		t.Errorf("AddVault with reused deposit asset = %v, want ErrDuplicateVault", err)
	}
	if _, err := f.vault.AddVault(admin, other, domain.NewAsset("mUSDC", 6)); !errors.Is(err, ErrDuplicateVault) {
		t.Errorf("AddVault with reused claim token = %v, want ErrDuplicateVault", err)
	}
}

func TestWithdrawAppliesFeeAndRetainsRevenue(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 0)
	if err := f.vault.SetWithdrawFee(trader, id, 45); err != nil {
		t.Fatalf("SetWithdrawFee = %v", err)
	}

	if err := f.vault.Deposit(alice, id, decimal.NewFromInt(300)); err != nil {
		t.Fatalf("Deposit = %v", err)
	}

	payout, err := f.vault.Withdraw(alice, id, decimal.NewFromInt(135))
	if err != nil {
		t.Fatalf("Withdraw = %v", err)
	}
	// 135 leaves the ledger; the caller gets 135 net of 45 bps = 134.3925.
	if !payout.Equal(decimal.RequireFromString("134.3925")) {
		t.Errorf("payout = %s, want 134.3925", payout)
	}

	staked, _ := f.vault.VaultTotalStaked(id)
	if !staked.Equal(decimal.NewFromInt(165)) {
		t.Errorf("VaultTotalStaked = %s, want 165", staked)
	}
	claims, _ := f.vault.ClaimBalanceOf(id, alice)
	if !claims.Equal(decimal.NewFromInt(165)) {
		t.Errorf("claims = %s, want 165", claims)
	}
}

func TestWithdrawMoreClaimsThanHeld(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 0)

	if err := f.vault.Deposit(alice, id, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Deposit = %v", err)
	}

	if _, err := f.vault.Withdraw(alice, id, decimal.NewFromInt(101)); err == nil {
		t.Error("Withdraw beyond claim balance should fail")
	}
	staked, _ := f.vault.VaultTotalStaked(id)
	if !staked.Equal(decimal.NewFromInt(100)) {
		t.Errorf("VaultTotalStaked after rejected withdraw = %s, want 100", staked)
	}
}

func TestSweepEarnings(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 0)
	f.vault.SetWithdrawFee(trader, id, 45)
	f.vault.Deposit(alice, id, decimal.NewFromInt(300))
	if _, err := f.vault.Withdraw(alice, id, decimal.NewFromInt(135)); err != nil {
		t.Fatalf("Withdraw = %v", err)
	}

	if _, err := f.vault.SweepEarnings(trader, id); !errors.Is(err, ErrNoEarningsAddress) {
		t.Fatalf("SweepEarnings without address = %v, want ErrNoEarningsAddress", err)
	}

	if err := f.vault.SetEarningsAddress(admin, revenue); err != nil {
		t.Fatalf("SetEarningsAddress = %v", err)
	}
	swept, err := f.vault.SweepEarnings(trader, id)
	if err != nil {
		t.Fatalf("SweepEarnings = %v", err)
	}
	// 135 * 45 / 10000 = 0.6075 retained by the vault.
	if !swept.Equal(decimal.RequireFromString("0.6075")) {
		t.Errorf("swept = %s, want 0.6075", swept)
	}

	again, err := f.vault.SweepEarnings(trader, id)
	if err != nil {
		t.Fatalf("second SweepEarnings = %v", err)
	}
	if !again.IsZero() {
		t.Errorf("second sweep = %s, want 0", again)
	}
}

func TestExchangeRateGrowsWithYield(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 1000)

	if err := f.vault.Deposit(alice, id, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Deposit = %v", err)
	}
	f.advance(year())

	staked, _ := f.vault.VaultTotalStaked(id)
	if !staked.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("VaultTotalStaked = %s, want 110", staked)
	}
	price, _ := f.vault.ClaimTokenPrice(id)
	if !price.Equal(decimal.RequireFromString("1.1")) {
		t.Errorf("ClaimTokenPrice = %s, want 1.1", price)
	}

	// A later depositor pays the higher rate: 110 deposited mints 100 claims.
	if err := f.vault.Deposit(bob, id, decimal.NewFromInt(110)); err != nil {
		t.Fatalf("second Deposit = %v", err)
	}
	claims, _ := f.vault.ClaimBalanceOf(id, bob)
	if !claims.Equal(decimal.NewFromInt(100)) {
		t.Errorf("bob claims = %s, want 100", claims)
	}
	supply, _ := f.vault.ClaimTotalSupply(id)
	if !supply.Equal(decimal.NewFromInt(200)) {
		t.Errorf("supply = %s, want 200", supply)
	}
}

func TestRefreshSamplesRealizedApr(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 1000)
	if err := f.vault.SetAprUpdatePeriod(trader, time.Hour); err != nil {
		t.Fatalf("SetAprUpdatePeriod = %v", err)
	}

	f.vault.Deposit(alice, id, decimal.NewFromInt(100))

	// First refresh only records the measurement baseline.
	if err := f.vault.RefreshAndUpdateAllVaults(trader); err != nil {
		t.Fatalf("RefreshAndUpdateAllVaults = %v", err)
	}
	aprs, _ := f.vault.GetLastPeriodsApr(id)
	if len(aprs) != 0 {
		t.Fatalf("aprs after baseline = %v, want empty", aprs)
	}

	// One year at 10% realizes exactly 1000 bps.
	f.advance(year())
	if err := f.vault.RefreshAndUpdateAllVaults(trader); err != nil {
		t.Fatalf("RefreshAndUpdateAllVaults = %v", err)
	}
	aprs, _ = f.vault.GetLastPeriodsApr(id)
	if len(aprs) != 1 || !aprs[0].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("aprs = %v, want [1000]", aprs)
	}

	// A flat second year samples zero; newest first, history capped at two.
	f.venues["USDC"].SetAPR(0)
	f.advance(year())
	f.vault.RefreshAndUpdateAllVaults(trader)
	f.advance(year())
	f.vault.RefreshAndUpdateAllVaults(trader)

	aprs, _ = f.vault.GetLastPeriodsApr(id)
	if len(aprs) != 2 || !aprs[0].IsZero() || !aprs[1].IsZero() {
		t.Errorf("aprs = %v, want [0 0]", aprs)
	}
}

func TestRefreshAprIgnoresMidPeriodDeposits(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 1000)
	f.vault.SetAprUpdatePeriod(trader, time.Hour)

	f.vault.Deposit(alice, id, decimal.NewFromInt(100))
	f.vault.RefreshAndUpdateAllVaults(trader)

	// Principal added after the baseline must not count as yield.
	f.vault.Deposit(bob, id, decimal.NewFromInt(100))
	f.advance(year())
	f.vault.RefreshAndUpdateAllVaults(trader)

	aprs, _ := f.vault.GetLastPeriodsApr(id)
	if len(aprs) != 1 || !aprs[0].Equal(decimal.NewFromInt(1000)) {
		t.Errorf("aprs = %v, want [1000]", aprs)
	}
}

func TestFeeValidation(t *testing.T) {
	f := newFixture(t)
	id := f.addVault(t, "USDC", 6, 0)

	if err := f.vault.SetDepositFee(trader, id, 10_000); !errors.Is(err, ErrInvalidFee) {
		t.Errorf("SetDepositFee(10000) = %v, want ErrInvalidFee", err)
	}
	if err := f.vault.SetWithdrawFee(trader, id, -1); !errors.Is(err, ErrInvalidFee) {
		t.Errorf("SetWithdrawFee(-1) = %v, want ErrInvalidFee", err)
	}
	if err := f.vault.SetDepositFee(alice, id, 100); !errors.Is(err, roles.ErrOnlyTraderOrAdmin) {
		t.Errorf("SetDepositFee as user = %v, want ErrOnlyTraderOrAdmin", err)
	}
	if _, err := f.vault.AddVault(trader, domain.NewAsset("DAI", 18), domain.NewAsset("mDAI", 18)); !errors.Is(err, roles.ErrOnlyAdmin) {
		t.Errorf("AddVault as trader = %v, want ErrOnlyAdmin", err)
	}
}

func TestSetOpenAllVault(t *testing.T) {
	f := newFixture(t)
	a := f.addVault(t, "USDC", 6, 0)
	b := f.addVault(t, "WETH", 18, 0)

	if err := f.vault.SetOpenAllVault(trader, false); err != nil {
		t.Fatalf("SetOpenAllVault = %v", err)
	}
	for _, id := range []int{a, b} {
		info, _ := f.vault.GetVaultInfo(id)
		if info.Stakable {
			t.Errorf("vault %d still stakable after SetOpenAllVault(false)", id)
		}
	}
}

func TestTotalLossFloorsRateAndRejectsOperations(t *testing.T) {
	f := newFixture(t)
	lossID := f.addVault(t, "USDC", 6, -10_000)
	wethID := f.addVault(t, "WETH", 18, 0)
	f.oracle.Set("USDC", decimal.NewFromInt(1))
	f.oracle.Set("WETH", decimal.NewFromInt(2000))

	if err := f.vault.Deposit(alice, lossID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Deposit = %v", err)
	}
	if err := f.vault.Deposit(bob, wethID, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Deposit(WETH) = %v", err)
	}

	// -100% APR over a full year wipes the position; the floor holds the
	// venue balance at zero while the claim supply stays outstanding.
	f.advance(year())
	staked, _ := f.vault.VaultTotalStaked(lossID)
	if !staked.IsZero() {
		t.Fatalf("VaultTotalStaked = %s, want 0", staked)
	}
	supply, _ := f.vault.ClaimTotalSupply(lossID)
	if !supply.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("ClaimTotalSupply = %s, want 100", supply)
	}
	price, _ := f.vault.ClaimTokenPrice(lossID)
	if !price.IsZero() {
		t.Errorf("ClaimTokenPrice = %s, want 0", price)
	}

	if _, err := f.vault.Withdraw(alice, lossID, decimal.NewFromInt(10)); !errors.Is(err, ErrZeroExchangeRate) {
		t.Errorf("Withdraw at zero rate = %v, want ErrZeroExchangeRate", err)
	}
	if err := f.vault.Deposit(bob, lossID, decimal.NewFromInt(50)); !errors.Is(err, ErrZeroExchangeRate) {
		t.Errorf("Deposit at zero rate = %v, want ErrZeroExchangeRate", err)
	}
	// The rejected deposit must not have routed anything into the ledger.
	staked, _ = f.vault.VaultTotalStaked(lossID)
	if !staked.IsZero() {
		t.Errorf("VaultTotalStaked after rejected deposit = %s, want 0", staked)
	}

	ctx := context.Background()
	if _, err := f.vault.Swap(ctx, alice, lossID, decimal.NewFromInt(10), wethID); !errors.Is(err, ErrZeroExchangeRate) {
		t.Errorf("Swap out of drained vault = %v, want ErrZeroExchangeRate", err)
	}
	if _, err := f.vault.Swap(ctx, bob, wethID, decimal.NewFromInt(1), lossID); !errors.Is(err, ErrZeroExchangeRate) {
		t.Errorf("Swap into drained vault = %v, want ErrZeroExchangeRate", err)
	}
}
