// Package accounts exposes native-currency balances credited by payouts.
package accounts

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// Store is the storage interface required by the accounts service
type Store interface {
	View(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Service reads account balances
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new accounts service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Balance returns the native balance of address; unknown accounts hold zero
func (s *Service) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	start := time.Now()
	var bal *big.Int
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		bal, err = tx.GetBalance(ctx, address)
		return err
	})
	s.logger.Debug("Balance", "address", address.Hex(), "duration", time.Since(start), "error", err)
	return bal, err
}

// RegisterRoutes registers the account routes on a chi router.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/{address}", s.handleBalance)
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	bal, err := s.Balance(r.Context(), addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr.Hex(),
		"balance": bal.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
