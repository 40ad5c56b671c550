// Package oracle is a reference title oracle. It polls the server for pending
// title verification requests, looks each title up in the title-search
// service and answers through the fulfill endpoint.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/workerpool"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/observability/metrics"
	"github.com/nomadhouse/nomadhouse/pkg/client"
)

// API is the part of the NomadHouse client the worker uses
type API interface {
	ListRequests(ctx context.Context, status, titleID string, limit int) ([]client.TitleRequest, error)
	Fulfill(ctx context.Context, requestID string, f client.Fulfillment) (*client.TitleRequest, error)
}

// Fulfillment results, also used as metric labels
const (
	ResultFulfilled = "fulfilled"
	ResultRejected  = "rejected"
	ResultSkipped   = "skipped"
	ResultError     = "error"
)

// Config holds worker settings
type Config struct {
	PollInterval  time.Duration
	Workers       int
	BatchSize     int
	CacheTTL      time.Duration
	HTTPTimeout   time.Duration
	Retries       int
	RetryInterval time.Duration
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
}

// Worker answers pending title requests
type Worker struct {
	api    API
	docs   *Fetcher
	cfg    Config
	logger *slog.Logger
}

// New creates a worker
func New(api API, cfg Config, logger *slog.Logger) *Worker {
	cfg.defaults()
	return &Worker{
		api:    api,
		docs:   NewFetcher(cfg.HTTPTimeout, cfg.CacheTTL),
		cfg:    cfg,
		logger: logger,
	}
}

// Run polls until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("oracle worker started", "poll", w.cfg.PollInterval, "workers", w.cfg.Workers)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("oracle worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll answers one batch of pending requests and returns the number of
// requests per result. It returns once the whole batch is done.
func (w *Worker) Poll(ctx context.Context) (map[string]int, error) {
	pending, err := w.api.ListRequests(ctx, client.StatusPending, "", w.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	if len(pending) == 0 {
		return map[string]int{}, nil
	}
	w.logger.Debug("pending title requests", "count", len(pending))

	pool := workerpool.New(min(w.cfg.Workers, len(pending)))
	var (
		mu      sync.Mutex
		results = make(map[string]int)
	)
	for _, req := range pending {
		req := req // per-iteration copy; go directive predates Go 1.22 loopvar semantics
		pool.Submit(func() {
			result := w.Process(ctx, req)
			mu.Lock()
			results[result]++
			mu.Unlock()
		})
	}
	pool.StopWait()
	return results, nil
}

// Process looks up and answers a single request, returning its result label
func (w *Worker) Process(ctx context.Context, req client.TitleRequest) string {
	logger := w.logger.With("request_id", req.ID, "title_id", req.TitleID)

	f, err := w.lookup(ctx, req)
	if err != nil {
		logger.Warn("title lookup failed, will retry next poll", "error", err)
		metrics.OracleFulfillment(ResultError)
		return ResultError
	}

	var settled *client.TitleRequest
	err = w.retry(ctx, func() error {
		var err error
		settled, err = w.api.Fulfill(ctx, req.ID, f)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return backoff.Permanent(err)
		}
		return err
	})

	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == "CONFLICT":
		// Someone else answered first.
		logger.Debug("request already settled")
		metrics.OracleFulfillment(ResultSkipped)
		return ResultSkipped
	case err != nil:
		logger.Error("fulfillment failed", "error", err)
		metrics.OracleFulfillment(ResultError)
		return ResultError
	}

	result := ResultFulfilled
	if settled.Status == client.StatusRejected {
		result = ResultRejected
	}
	logger.Info("title request answered", "status", settled.Status, "verified", f.Verified,
		"owner", f.Owner, "fractionalization", f.Fractionalization, "reason", settled.RejectReason)
	metrics.OracleFulfillment(result)
	return result
}

// lookup turns the title document into a fulfillment. Missing or invalid
// documents produce an unverified answer rather than an error.
func (w *Worker) lookup(ctx context.Context, req client.TitleRequest) (client.Fulfillment, error) {
	unverified := client.Fulfillment{Owner: common.Address{}.Hex()}

	var doc *Document
	err := w.retry(ctx, func() error {
		var err error
		doc, err = w.docs.Fetch(ctx, req.URL)
		if errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrMalformedDocument) {
			return backoff.Permanent(err)
		}
		return err
	})
	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrMalformedDocument):
		w.logger.Info("no usable title document", "url", req.URL, "error", err)
		return unverified, nil
	case err != nil:
		return client.Fulfillment{}, err
	}

	owner, err := chain.ParseAddress(doc.Owner)
	if err != nil {
		w.logger.Info("title document has invalid owner", "url", req.URL, "owner", doc.Owner)
		return unverified, nil
	}
	return client.Fulfillment{
		Owner:             owner.Hex(),
		Fractionalization: doc.Fractionalization,
		Verified:          doc.Verified,
	}, nil
}

func (w *Worker) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.RetryInterval
	b.MaxInterval = 20 * w.cfg.RetryInterval
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.cfg.Retries)), ctx))
}
