//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/nomadhouse/nomadhouse/internal/config"
	"github.com/nomadhouse/nomadhouse/internal/deploy"
	"github.com/nomadhouse/nomadhouse/internal/network"
	"github.com/nomadhouse/nomadhouse/internal/server"
	"github.com/nomadhouse/nomadhouse/internal/storage"
	"github.com/nomadhouse/nomadhouse/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Hardhat development accounts
var (
	ownerAddr  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	sellerAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	buyerAddr  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	oracleAddr = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	TitleSearch       *httptest.Server
	Store             storage.Store
	Params            *network.Params
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("nomadhouse"),
		postgres.WithUsername("nomadhouse"),
		postgres.WithPassword("nomadhouse"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE deploys the hardhat ledger into Postgres and serves it in-process
func startServerE(connString string) (*httptest.Server, storage.Store, *network.Params, error) {
	cfg := &config.Config{
		Server:    config.ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Storage:   config.StorageConfig{Type: "postgres", Postgres: config.PostgresConfig{URL: connString}},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{MaxBodySizeMB: 1},
		Proxy:     config.ProxyConfig{TrustProxy: false},
		Network:   config.NetworkConfig{Name: "hardhat"},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	reg, err := network.NewRegistry("")
	if err != nil {
		return nil, nil, nil, err
	}
	params, err := reg.Resolve(cfg.Network.Name)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := deploy.Deploy(context.Background(), store, params, logger); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to deploy ledger: %w", err)
	}

	srv := server.New(cfg, store, logger)
	return httptest.NewServer(srv.Handler()), store, params, nil
}

// startTitleSearch serves title documents named <title>.json. Documents for
// titles starting with "unverified" report a failed search.
func startTitleSearch() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title := strings.TrimPrefix(r.URL.Path, "/")
		switch {
		case strings.HasPrefix(title, "missing"):
			http.NotFound(w, r)
		case strings.HasPrefix(title, "unverified"):
			fmt.Fprintf(w, `{"owner":%q,"fractionalization":0,"verified":false}`, sellerAddr.Hex())
		default:
			fmt.Fprintf(w, `{"owner":%q,"fractionalization":3,"verified":true}`, sellerAddr.Hex())
		}
	}))
}

// newClient creates a new API client for the test server
func newClient(apiKey string) *client.Client {
	return client.New(testCtx.TestServer.URL, apiKey)
}

// clientFor creates a key bound to addr and returns a client using it
func clientFor(t *testing.T, name string, addr common.Address) *client.Client {
	t.Helper()
	key, err := testCtx.Store.CreateAPIKey(context.Background(), name, addr)
	require.NoError(t, err, "Failed to create API key")
	return newClient(key)
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError, got %v", err)
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
