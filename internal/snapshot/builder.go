package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

// VaultReader is the share-vault surface the report builder reads from.
type VaultReader interface {
	VaultCount() int
	GetVaultInfo(id int) (domain.VaultInfo, error)
	GetLastPeriodsApr(id int) ([]decimal.Decimal, error)
	ClaimTokenPrice(id int) (decimal.Decimal, error)
	ClaimTotalSupply(id int) (decimal.Decimal, error)
}

// LedgerReader is the allocation-ledger surface the report builder reads from.
type LedgerReader interface {
	CurrentInvestment(asset domain.Asset) []domain.InvestmentPart
	TotalUSD(ctx context.Context) (decimal.Decimal, error)
}

// Builder assembles engine reports from live vault and ledger state.
// Implements ReportSource.
type Builder struct {
	vaults VaultReader
	ledger LedgerReader
}

// NewBuilder creates a report builder.
func NewBuilder(vaults VaultReader, ledger LedgerReader) *Builder {
	return &Builder{vaults: vaults, ledger: ledger}
}

// BuildReport reads every vault and its venue allocation. A missing oracle
// price degrades TotalUSD to zero instead of failing the whole report.
func (b *Builder) BuildReport(ctx context.Context) (domain.Report, error) {
	report := domain.Report{GeneratedAt: time.Now().UTC()}

	for id := range b.vaults.VaultCount() {
		info, err := b.vaults.GetVaultInfo(id)
		if err != nil {
			return domain.Report{}, fmt.Errorf("reading vault %d: %w", id, err)
		}
		aprs, err := b.vaults.GetLastPeriodsApr(id)
		if err != nil {
			return domain.Report{}, fmt.Errorf("reading vault %d apr: %w", id, err)
		}
		price, err := b.vaults.ClaimTokenPrice(id)
		if err != nil {
			return domain.Report{}, fmt.Errorf("reading vault %d claim price: %w", id, err)
		}
		supply, err := b.vaults.ClaimTotalSupply(id)
		if err != nil {
			return domain.Report{}, fmt.Errorf("reading vault %d claim supply: %w", id, err)
		}

		parts := b.ledger.CurrentInvestment(info.DepositAsset)
		stakes := make([]domain.VenueStake, 0, len(parts))
		for _, p := range parts {
			stakes = append(stakes, domain.VenueStake{Venue: p.Venue, Amount: p.Amount})
		}

		report.Vaults = append(report.Vaults, domain.VaultReport{
			Info:           info,
			ClaimSupply:    supply,
			ClaimPrice:     price,
			LastPeriodsApr: aprs,
			Investment:     stakes,
		})
	}

	totalUSD, err := b.ledger.TotalUSD(ctx)
	if err != nil {
		slog.Warn("report: aggregate USD valuation unavailable", "error", err)
	} else {
		report.TotalUSD = totalUSD
	}

	return report, nil
}
