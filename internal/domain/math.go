package domain

import "github.com/shopspring/decimal"

// TotalBps is the basis-point denominator: 10,000 bps = 100%.
const TotalBps = 10_000

// rateScale is the precision used for exchange-rate reads (18 decimal places).
const rateScale = 18

func init() {
	// Amount math mixes assets with up to 18 decimals and 30-decimal oracle
	// prices; the default division precision of 16 loses dust.
	if decimal.DivisionPrecision < 40 {
		decimal.DivisionPrecision = 40
	}
}

// Truncate cuts an amount down to the asset's precision (floor toward zero).
func Truncate(amount decimal.Decimal, asset Asset) decimal.Decimal {
	return amount.Truncate(asset.Decimals)
}

// ApplyBps returns amount * bps / 10000, truncated to the asset's precision.
func ApplyBps(amount decimal.Decimal, bps int64, asset Asset) decimal.Decimal {
	return Truncate(amount.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(TotalBps)), asset)
}

// ApplyFeeBps returns amount net of a basis-point fee, truncated to the
// asset's precision: amount * (10000 - feeBps) / 10000.
func ApplyFeeBps(amount decimal.Decimal, feeBps int64, asset Asset) decimal.Decimal {
	return ApplyBps(amount, TotalBps-feeBps, asset)
}

// ScaleRate truncates an exchange rate to the 18-decimal read precision.
func ScaleRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Truncate(rateScale)
}

// ClampZero floors a balance at zero. Negative yield can never drive a
// reported balance below zero.
func ClampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
