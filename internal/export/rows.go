package export

import (
	"time"

	"github.com/shopspring/decimal"
)

// reportHeader is the column layout shared by every report writer.
var reportHeader = []any{
	"Vault", "Deposit", "Claim", "Open",
	"Total Staked", "From Deposits", "Claim Supply", "Claim Price",
	"APR bps", "Week", "Month", "Generated",
}

// rowValues flattens a VaultRow into one sheet row matching reportHeader.
func rowValues(generatedAt time.Time, row VaultRow) []any {
	return []any{
		row.VaultID, row.DepositSymbol, row.ClaimSymbol, row.Stakable,
		toFloat(row.TotalStaked), toFloat(row.StakedFromDeposits),
		toFloat(row.ClaimSupply), toFloat(row.ClaimPrice),
		ptrFloat(row.LatestAprBps),
		ptrFloat(row.WeekChange), ptrFloat(row.MonthChange),
		generatedAt.Format(time.RFC3339),
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}
