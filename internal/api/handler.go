package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
	"github.com/muchofi/vault/internal/snapshot"
	"github.com/muchofi/vault/internal/vault"
)

// VaultService is the share-vault surface exposed over HTTP.
type VaultService interface {
	VaultCount() int
	GetVaultInfo(id int) (domain.VaultInfo, error)
	GetLastPeriodsApr(id int) ([]decimal.Decimal, error)
	ClaimTokenPrice(id int) (decimal.Decimal, error)
	RefreshAndUpdateAllVaults(caller string) error
	SetOpenVault(caller string, id int, open bool) error
	SetDepositFee(caller string, id int, bps int64) error
	SetWithdrawFee(caller string, id int, bps int64) error
}

// LedgerService is the allocation-ledger surface exposed over HTTP.
type LedgerService interface {
	Venues() []string
	CurrentInvestment(asset domain.Asset) []domain.InvestmentPart
	GetTokenDefaults(asset domain.Asset) domain.Split
}

// Handler provides HTTP endpoints for the engine API.
type Handler struct {
	snapshots *snapshot.Service
	vaults    VaultService
	ledger    LedgerService

	// operator is the principal used for API-triggered refreshes, admin for
	// the gated configuration endpoints.
	operator string
	admin    string
}

// NewHandler creates a new API handler.
func NewHandler(snapshots *snapshot.Service, vaults VaultService, ledger LedgerService, operator, admin string) *Handler {
	return &Handler{snapshots: snapshots, vaults: vaults, ledger: ledger, operator: operator, admin: admin}
}

// ListVaults handles GET /api/v1/vaults.
func (h *Handler) ListVaults(w http.ResponseWriter, r *http.Request) {
	infos := make([]domain.VaultInfo, 0, h.vaults.VaultCount())
	for id := range h.vaults.VaultCount() {
		info, err := h.vaults.GetVaultInfo(id)
		if err != nil {
			slog.Error("failed to read vault", "vault", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) vaultID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vault id")
		return 0, false
	}
	return id, true
}

// GetVault handles GET /api/v1/vaults/{id}.
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	info, err := h.vaults.GetVaultInfo(id)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownVault) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		slog.Error("failed to read vault", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetVaultApr handles GET /api/v1/vaults/{id}/apr.
func (h *Handler) GetVaultApr(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	aprs, err := h.vaults.GetLastPeriodsApr(id)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownVault) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		slog.Error("failed to read vault apr", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vault": id, "lastPeriodsApr": aprs})
}

// GetVaultPrice handles GET /api/v1/vaults/{id}/price.
func (h *Handler) GetVaultPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	price, err := h.vaults.ClaimTokenPrice(id)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownVault) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		slog.Error("failed to read claim price", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vault": id, "claimPrice": price})
}

// GetVaultInvestment handles GET /api/v1/vaults/{id}/investment.
func (h *Handler) GetVaultInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	info, err := h.vaults.GetVaultInfo(id)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownVault) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		slog.Error("failed to read vault", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	parts := h.ledger.CurrentInvestment(info.DepositAsset)
	writeJSON(w, http.StatusOK, map[string]any{"vault": id, "asset": info.DepositAsset.Symbol, "investment": parts})
}

// GetVaultSplit handles GET /api/v1/vaults/{id}/split.
func (h *Handler) GetVaultSplit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	info, err := h.vaults.GetVaultInfo(id)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownVault) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		slog.Error("failed to read vault", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	split := h.ledger.GetTokenDefaults(info.DepositAsset)
	writeJSON(w, http.StatusOK, map[string]any{"vault": id, "asset": info.DepositAsset.Symbol, "split": split})
}

// SetVaultOpen handles POST /api/v1/vaults/{id}/open.
func (h *Handler) SetVaultOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	var body struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.vaults.SetOpenVault(h.admin, id, body.Open); err != nil {
		if errors.Is(err, vault.ErrUnknownVault) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		slog.Error("failed to set vault open state", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vault": id, "open": body.Open})
}

// SetVaultFees handles POST /api/v1/vaults/{id}/fees. Either fee may be
// omitted to leave it unchanged.
func (h *Handler) SetVaultFees(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	var body struct {
		DepositFeeBps  *int64 `json:"depositFeeBps"`
		WithdrawFeeBps *int64 `json:"withdrawFeeBps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.DepositFeeBps == nil && body.WithdrawFeeBps == nil {
		writeError(w, http.StatusBadRequest, "no fees provided")
		return
	}
	// Validate both fees before applying either, so a bad second fee cannot
	// leave a half-applied update.
	for _, bps := range []*int64{body.DepositFeeBps, body.WithdrawFeeBps} {
		if bps != nil && (*bps < 0 || *bps >= domain.TotalBps) {
			writeError(w, http.StatusBadRequest, "fee must be in [0, 10000) bps")
			return
		}
	}

	if body.DepositFeeBps != nil {
		if err := h.setFee(w, id, *body.DepositFeeBps, h.vaults.SetDepositFee); err != nil {
			return
		}
	}
	if body.WithdrawFeeBps != nil {
		if err := h.setFee(w, id, *body.WithdrawFeeBps, h.vaults.SetWithdrawFee); err != nil {
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vault": id, "status": "updated"})
}

// setFee applies one fee setter and writes the error response on failure.
func (h *Handler) setFee(w http.ResponseWriter, id int, bps int64, set func(caller string, id int, bps int64) error) error {
	err := set(h.admin, id, bps)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vault.ErrUnknownVault):
		writeError(w, http.StatusNotFound, "vault not found")
	case errors.Is(err, vault.ErrInvalidFee):
		writeError(w, http.StatusBadRequest, "fee must be in [0, 10000) bps")
	default:
		slog.Error("failed to set vault fee", "vault", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return err
}

// ListVenues handles GET /api/v1/venues.
func (h *Handler) ListVenues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"venues": h.ledger.Venues()})
}

// Refresh handles POST /api/v1/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.vaults.RefreshAndUpdateAllVaults(h.operator); err != nil {
		slog.Error("failed to refresh vaults", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh vaults")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// GetLatestSnapshot handles GET /api/v1/snapshots/latest.
func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.snapshots.GetLatest(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshots found")
			return
		}
		slog.Error("failed to get latest snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSnapshotByDate handles GET /api/v1/snapshots/{date}.
func (h *Handler) GetSnapshotByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	s, err := h.snapshots.GetByDate(r.Context(), date)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found for date")
			return
		}
		slog.Error("failed to get snapshot by date", "date", dateStr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSnapshots handles GET /api/v1/snapshots.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 365
	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	snapshots, err := h.snapshots.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// GenerateSnapshot handles POST /api/v1/snapshots/generate.
func (h *Handler) GenerateSnapshot(w http.ResponseWriter, r *http.Request) {
	report, err := h.snapshots.Generate(r.Context(), time.Now())
	if err != nil {
		slog.Error("failed to generate snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate snapshot")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
