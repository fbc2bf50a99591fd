package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/muchofi/vault/internal/api"
	"github.com/muchofi/vault/internal/badge"
	"github.com/muchofi/vault/internal/config"
	"github.com/muchofi/vault/internal/database"
	"github.com/muchofi/vault/internal/domain"
	"github.com/muchofi/vault/internal/export"
	"github.com/muchofi/vault/internal/ledger"
	"github.com/muchofi/vault/internal/pricing"
	"github.com/muchofi/vault/internal/roles"
	"github.com/muchofi/vault/internal/snapshot"
	"github.com/muchofi/vault/internal/vault"
	"github.com/muchofi/vault/internal/venue"
	"github.com/muchofi/vault/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// vaultPrincipal is the identity the share vault uses on custody-moving
// ledger calls. It holds the owner role and nothing else.
const vaultPrincipal = "vault-engine"

func main() {
	app := &cli.App{
		Name:  "mucho",
		Usage: "multi-venue capital allocation and vault accounting engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the engine with its HTTP API and background workers",
				Action: runServe,
			},
			{
				Name:  "export",
				Usage: "write the latest stored report to an XLSX workbook",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "output workbook path (defaults to EXPORT_PATH)",
					},
				},
				Action: runExport,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Roles: the admin configures, the operator refreshes, the vault moves custody.
	registry := roles.NewRegistry()
	registry.Grant(cfg.AdminID, roles.Admin)
	registry.Grant(cfg.OperatorID, roles.Trader)
	registry.Grant(vaultPrincipal, roles.Owner)

	oracle := pricing.NewStatic()
	coingecko := pricing.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax, cfg.CoinGeckoSymbolIDs)
	feed := pricing.NewFeed(coingecko, oracle)

	badges := badge.NewManager()
	ledgerSvc := ledger.New(registry, oracle)
	vaultSvc := vault.New(registry, ledgerSvc, oracle, badges, vaultPrincipal)

	if err := bootstrap(cfg, ledgerSvc, vaultSvc); err != nil {
		return fmt.Errorf("bootstrapping vaults: %w", err)
	}

	snapshotRepo := snapshot.NewPgRepository(pool)
	builder := snapshot.NewBuilder(vaultSvc, ledgerSvc)
	snapshotSvc := snapshot.NewService(builder, snapshotRepo)

	writer, err := reportWriter(ctx, cfg)
	if err != nil {
		return err
	}
	exportSvc := export.NewService(snapshotRepo, writer)

	quoteWorker := worker.NewQuoteWorker(feed, cfg.QuoteWorkerInterval)
	go quoteWorker.Run(ctx)

	refreshWorker := worker.NewRefreshWorker(vaultSvc, cfg.OperatorID, cfg.RefreshWorkerInterval)
	go refreshWorker.Run(ctx)

	reportWorker := worker.NewReportWorker(snapshotSvc, cfg.ReportWorkerInterval, exportSvc)
	go reportWorker.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, mutating endpoints are unprotected")
	}

	srv := api.NewServer(cfg.HTTPPort, snapshotSvc, vaultSvc, ledgerSvc, cfg.OperatorID, cfg.AdminID, cfg.AdminAPIKey)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// bootstrap creates one yield venue, one vault and a full default split per
// configured deposit asset, then opens every vault for deposits.
func bootstrap(cfg config.Config, ledgerSvc *ledger.Ledger, vaultSvc *vault.Vault) error {
	symbols := make([]string, 0, len(cfg.VaultAssets))
	for symbol := range cfg.VaultAssets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		decimals, err := strconv.ParseInt(cfg.VaultAssets[symbol], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid decimals for %s: %w", symbol, err)
		}
		asset := domain.NewAsset(symbol, int32(decimals))
		claim := domain.NewAsset("m"+symbol, int32(decimals))

		yield := venue.NewConstantAPR(symbol+"-yield", 0, 0)
		if err := ledgerSvc.AddVenue(cfg.AdminID, yield); err != nil {
			return fmt.Errorf("adding venue for %s: %w", symbol, err)
		}
		split := domain.Split{{Venue: yield.Name(), PercentageBps: domain.TotalBps}}
		if err := ledgerSvc.SetDefaultSplit(cfg.AdminID, asset, split); err != nil {
			return fmt.Errorf("setting split for %s: %w", symbol, err)
		}

		if _, err := vaultSvc.AddVault(cfg.AdminID, asset, claim); err != nil {
			return fmt.Errorf("adding vault for %s: %w", symbol, err)
		}
	}

	if err := vaultSvc.SetAprUpdatePeriod(cfg.AdminID, cfg.AprUpdatePeriod); err != nil {
		return fmt.Errorf("setting apr update period: %w", err)
	}
	if err := vaultSvc.SetOpenAllVault(cfg.AdminID, true); err != nil {
		return fmt.Errorf("opening vaults: %w", err)
	}
	return nil
}

// reportWriter picks Google Sheets when configured, a local workbook otherwise.
func reportWriter(ctx context.Context, cfg config.Config) (export.ReportWriter, error) {
	if cfg.SheetsSpreadsheetID != "" && cfg.SheetsCredentialsJSON != "" {
		w, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("creating sheets writer: %w", err)
		}
		return w, nil
	}
	return export.NewXLSXWriter(cfg.ExportPath), nil
}

func runExport(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := snapshot.NewPgRepository(pool)
	snap, err := repo.GetLatest(ctx)
	if err != nil {
		return fmt.Errorf("loading latest snapshot: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(snap.Data, &report); err != nil {
		return fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	out := c.String("out")
	if out == "" {
		out = cfg.ExportPath
	}

	exportSvc := export.NewService(repo, export.NewXLSXWriter(out))
	if err := exportSvc.Export(ctx, report); err != nil {
		return fmt.Errorf("exporting report: %w", err)
	}

	log.Printf("Wrote %s (snapshot of %s)", out, snap.SnapshotDate.Format("2006-01-02"))
	return nil
}
