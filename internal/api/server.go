package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/muchofi/vault/internal/snapshot"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, snapshots *snapshot.Service, vaults VaultService, ledger LedgerService, operator, admin, adminAPIKey string) *http.Server {
	handler := NewHandler(snapshots, vaults, ledger, operator, admin)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/vaults", handler.ListVaults)
	mux.HandleFunc("GET /api/v1/vaults/{id}", handler.GetVault)
	mux.HandleFunc("GET /api/v1/vaults/{id}/apr", handler.GetVaultApr)
	mux.HandleFunc("GET /api/v1/vaults/{id}/price", handler.GetVaultPrice)
	mux.HandleFunc("GET /api/v1/vaults/{id}/investment", handler.GetVaultInvestment)
	mux.HandleFunc("GET /api/v1/vaults/{id}/split", handler.GetVaultSplit)
	mux.HandleFunc("GET /api/v1/venues", handler.ListVenues)
	mux.HandleFunc("GET /api/v1/snapshots/latest", handler.GetLatestSnapshot)
	mux.HandleFunc("GET /api/v1/snapshots/{date}", handler.GetSnapshotByDate)
	mux.HandleFunc("GET /api/v1/snapshots", handler.ListSnapshots)

	for pattern, h := range map[string]http.HandlerFunc{
		"POST /api/v1/snapshots/generate": handler.GenerateSnapshot,
		"POST /api/v1/refresh":            handler.Refresh,
		"POST /api/v1/vaults/{id}/open":   handler.SetVaultOpen,
		"POST /api/v1/vaults/{id}/fees":   handler.SetVaultFees,
	} {
		if adminAPIKey != "" {
			mux.Handle(pattern, requireAuth(adminAPIKey, h))
		} else {
			mux.Handle(pattern, h)
		}
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
