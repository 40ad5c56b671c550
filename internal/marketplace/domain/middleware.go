package domain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/observability/metrics"
)

// LoggingMiddleware returns a service middleware that logs all operations
// and records marketplace metrics.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Info(ctx context.Context) (*Market, error) {
	start := time.Now()
	market, err := m.next.Info(ctx)
	m.logger.Debug("Info", "duration", time.Since(start), "error", err)
	return market, err
}

func (m *loggingMiddleware) Post(ctx context.Context, caller common.Address, req PostRequest) (*Listing, error) {
	start := time.Now()
	l, err := m.next.Post(ctx, caller, req)
	metrics.ListingOperation("post", err)
	attrs := []any{"caller", caller.Hex(), "token", req.TokenID, "price", req.Price, "starts_active", req.StartsActive}
	if l != nil {
		attrs = append(attrs, "listing", l.ID)
	}
	m.logger.Info("Post", append(attrs, "duration", time.Since(start), "error", err)...)
	return l, err
}

func (m *loggingMiddleware) Buy(ctx context.Context, caller common.Address, id uint64, value *big.Int) (*Listing, error) {
	start := time.Now()
	l, err := m.next.Buy(ctx, caller, id, value)
	metrics.ListingOperation("buy", err)
	m.logger.Info("Buy", "caller", caller.Hex(), "listing", id, "value", value, "duration", time.Since(start), "error", err)
	return l, err
}

func (m *loggingMiddleware) Pause(ctx context.Context, caller common.Address, id uint64) (*Listing, error) {
	start := time.Now()
	l, err := m.next.Pause(ctx, caller, id)
	metrics.ListingOperation("pause", err)
	m.logger.Info("Pause", "caller", caller.Hex(), "listing", id, "duration", time.Since(start), "error", err)
	return l, err
}

func (m *loggingMiddleware) Unpause(ctx context.Context, caller common.Address, id uint64) (*Listing, error) {
	start := time.Now()
	l, err := m.next.Unpause(ctx, caller, id)
	metrics.ListingOperation("unpause", err)
	m.logger.Info("Unpause", "caller", caller.Hex(), "listing", id, "duration", time.Since(start), "error", err)
	return l, err
}

func (m *loggingMiddleware) Cancel(ctx context.Context, caller common.Address, id uint64) (*Listing, error) {
	start := time.Now()
	l, err := m.next.Cancel(ctx, caller, id)
	metrics.ListingOperation("cancel", err)
	m.logger.Info("Cancel", "caller", caller.Hex(), "listing", id, "duration", time.Since(start), "error", err)
	return l, err
}

func (m *loggingMiddleware) Collect(ctx context.Context, caller common.Address, id uint64, gasLimit uint64) (*Payout, error) {
	start := time.Now()
	p, err := m.next.Collect(ctx, caller, id, gasLimit)
	metrics.ListingOperation("collect", err)
	metrics.Payout("earnings", err)
	attrs := []any{"caller", caller.Hex(), "listing", id, "gas_limit", gasLimit}
	if p != nil {
		attrs = append(attrs, "amount", p.Amount)
	}
	m.logger.Info("Collect", append(attrs, "duration", time.Since(start), "error", err)...)
	return p, err
}

func (m *loggingMiddleware) CollectFees(ctx context.Context, caller common.Address, gasLimit uint64) (*Payout, error) {
	start := time.Now()
	p, err := m.next.CollectFees(ctx, caller, gasLimit)
	metrics.Payout("fees", err)
	attrs := []any{"caller", caller.Hex(), "gas_limit", gasLimit}
	if p != nil {
		attrs = append(attrs, "amount", p.Amount)
	}
	m.logger.Info("CollectFees", append(attrs, "duration", time.Since(start), "error", err)...)
	return p, err
}

func (m *loggingMiddleware) GetListing(ctx context.Context, id uint64) (*Listing, error) {
	start := time.Now()
	l, err := m.next.GetListing(ctx, id)
	m.logger.Debug("GetListing", "listing", id, "duration", time.Since(start), "error", err)
	return l, err
}

func (m *loggingMiddleware) GetListings(ctx context.Context, start uint64, count int) ([]Listing, error) {
	began := time.Now()
	listings, err := m.next.GetListings(ctx, start, count)
	m.logger.Debug("GetListings", "start", start, "count", count, "results", len(listings), "duration", time.Since(began), "error", err)
	return listings, err
}
