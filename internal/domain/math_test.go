package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

var usdc = NewAsset("USDC", 6)

func TestTruncate(t *testing.T) {
	got := Truncate(decimal.RequireFromString("1.23456789"), usdc)
	if !got.Equal(decimal.RequireFromString("1.234567")) {
		t.Errorf("Truncate = %s, want 1.234567", got)
	}
}

func TestApplyBps(t *testing.T) {
	// 300 * 150 / 10000 = 4.5
	got := ApplyBps(decimal.NewFromInt(300), 150, usdc)
	if !got.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("ApplyBps = %s, want 4.5", got)
	}
}

func TestApplyBpsTruncatesDust(t *testing.T) {
	// 100.000001 * 3333 / 10000 = 33.330000333333, cut to 6 decimals
	got := ApplyBps(decimal.RequireFromString("100.000001"), 3333, usdc)
	if !got.Equal(decimal.RequireFromString("33.330000")) {
		t.Errorf("ApplyBps = %s, want 33.330000", got)
	}
}

func TestApplyFeeBps(t *testing.T) {
	// 300 net of 150 bps = 295.5
	got := ApplyFeeBps(decimal.NewFromInt(300), 150, usdc)
	if !got.Equal(decimal.RequireFromString("295.5")) {
		t.Errorf("ApplyFeeBps = %s, want 295.5", got)
	}
}

func TestApplyFeeBpsZeroFee(t *testing.T) {
	got := ApplyFeeBps(decimal.RequireFromString("12.345678"), 0, usdc)
	if !got.Equal(decimal.RequireFromString("12.345678")) {
		t.Errorf("ApplyFeeBps with zero fee = %s, want 12.345678", got)
	}
}

func TestScaleRate(t *testing.T) {
	rate := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	got := ScaleRate(rate)
	if !got.Equal(decimal.RequireFromString("0.333333333333333333")) {
		t.Errorf("ScaleRate = %s, want 18 threes", got)
	}
}

func TestClampZero(t *testing.T) {
	if got := ClampZero(decimal.RequireFromString("-5")); !got.IsZero() {
		t.Errorf("ClampZero(-5) = %s, want 0", got)
	}
	if got := ClampZero(decimal.RequireFromString("5")); !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("ClampZero(5) = %s, want 5", got)
	}
}

func TestSplitIsFull(t *testing.T) {
	full := Split{{Venue: "a", PercentageBps: 6000}, {Venue: "b", PercentageBps: 4000}}
	if !full.IsFull() {
		t.Error("6000+4000 split should be full")
	}

	short := Split{{Venue: "a", PercentageBps: 9900}}
	if short.IsFull() {
		t.Error("9900 split should not be full")
	}

	over := Split{{Venue: "a", PercentageBps: 10100}}
	if over.IsFull() {
		t.Error("10100 split should not be full")
	}
}
