package accounts

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadhouse/nomadhouse/internal/storage"
)

var seller = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func newService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "accounts.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return NewService(store, logger), store
}

func TestBalance(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	bal, err := svc.Balance(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetBalance(ctx, seller, big.NewInt(980))
	}))

	bal, err = svc.Balance(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, int64(980), bal.Int64())
}

func TestHandleBalance(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetBalance(ctx, seller, big.NewInt(42))
	}))

	r := chi.NewRouter()
	r.Route("/accounts", svc.RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/accounts/"+seller.Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "42", resp["balance"])
	assert.Equal(t, seller.Hex(), resp["address"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/accounts/not-an-address", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
