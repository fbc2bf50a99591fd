// Package export turns engine reports into spreadsheet output, either a
// local XLSX workbook or a shared Google Sheet.
package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
	"github.com/muchofi/vault/internal/snapshot"
)

// VaultRow holds one vault's report data with historical claim-price changes.
type VaultRow struct {
	VaultID            int
	DepositSymbol      string
	ClaimSymbol        string
	Stakable           bool
	TotalStaked        decimal.Decimal
	StakedFromDeposits decimal.Decimal
	ClaimSupply        decimal.Decimal
	ClaimPrice         decimal.Decimal
	LatestAprBps       *decimal.Decimal
	WeekChange         *decimal.Decimal
	MonthChange        *decimal.Decimal
}

// ReportWriter writes vault rows to a spreadsheet destination.
type ReportWriter interface {
	Write(ctx context.Context, generatedAt time.Time, rows []VaultRow) error
}

// Service builds spreadsheet rows from a report and delegates writing.
type Service struct {
	snapshots snapshot.Repository
	writer    ReportWriter
}

// NewService creates a new export Service.
func NewService(snapshots snapshot.Repository, writer ReportWriter) *Service {
	return &Service{snapshots: snapshots, writer: writer}
}

// Export enriches the report with week and month claim-price changes from
// stored snapshots and writes it out. Implements worker.AfterSnapshotHook.
func (s *Service) Export(ctx context.Context, report domain.Report) error {
	weekAgo := s.vaultsAsOf(ctx, 7)
	monthAgo := s.vaultsAsOf(ctx, 30)

	rows := make([]VaultRow, 0, len(report.Vaults))
	for _, vr := range report.Vaults {
		row := VaultRow{
			VaultID:            vr.Info.ID,
			DepositSymbol:      vr.Info.DepositAsset.Symbol,
			ClaimSymbol:        vr.Info.ClaimToken.Symbol,
			Stakable:           vr.Info.Stakable,
			TotalStaked:        vr.Info.TotalStaked,
			StakedFromDeposits: vr.Info.StakedFromDeposits,
			ClaimSupply:        vr.ClaimSupply,
			ClaimPrice:         vr.ClaimPrice,
		}
		if len(vr.LastPeriodsApr) > 0 {
			apr := vr.LastPeriodsApr[0]
			row.LatestAprBps = &apr
		}
		row.WeekChange = priceChange(vr, weekAgo)
		row.MonthChange = priceChange(vr, monthAgo)
		rows = append(rows, row)
	}

	return s.writer.Write(ctx, report.GeneratedAt, rows)
}

// vaultsAsOf loads the nearest snapshot at or before daysAgo, keyed by vault id.
func (s *Service) vaultsAsOf(ctx context.Context, daysAgo int) map[int]domain.VaultReport {
	pastDate := time.Now().UTC().AddDate(0, 0, -daysAgo)
	snap, err := s.snapshots.GetNearestBefore(ctx, pastDate)
	if err != nil {
		slog.Warn("export: historical snapshot unavailable", "daysAgo", daysAgo, "error", err)
		return nil
	}

	var hist domain.Report
	if err := json.Unmarshal(snap.Data, &hist); err != nil {
		slog.Warn("export: failed to unmarshal historical snapshot", "daysAgo", daysAgo, "error", err)
		return nil
	}

	return lo.KeyBy(hist.Vaults, func(vr domain.VaultReport) int { return vr.Info.ID })
}

// priceChange returns (current - historical) / historical claim price, or
// nil if unavailable.
func priceChange(current domain.VaultReport, byID map[int]domain.VaultReport) *decimal.Decimal {
	if byID == nil {
		return nil
	}
	hist, ok := byID[current.Info.ID]
	if !ok || hist.ClaimPrice.IsZero() {
		return nil
	}
	pct := current.ClaimPrice.Sub(hist.ClaimPrice).Div(hist.ClaimPrice)
	return &pct
}
