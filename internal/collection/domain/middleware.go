package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/observability/metrics"
)

// LoggingMiddleware returns a service middleware that logs all operations
// and records collection metrics.
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

func (m *loggingMiddleware) Info(ctx context.Context) (*Collection, error) {
	start := time.Now()
	c, err := m.next.Info(ctx)
	m.logger.Debug("Info", "duration", time.Since(start), "error", err)
	return c, err
}

func (m *loggingMiddleware) SetTokenURI(ctx context.Context, caller common.Address, uri string) error {
	start := time.Now()
	err := m.next.SetTokenURI(ctx, caller, uri)
	m.logger.Info("SetTokenURI", "caller", caller.Hex(), "uri", uri, "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) SetTitleSearchURI(ctx context.Context, caller common.Address, uri string) error {
	start := time.Now()
	err := m.next.SetTitleSearchURI(ctx, caller, uri)
	m.logger.Info("SetTitleSearchURI", "caller", caller.Hex(), "uri", uri, "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) SetMarketplaceContract(ctx context.Context, caller, marketplace common.Address) error {
	start := time.Now()
	err := m.next.SetMarketplaceContract(ctx, caller, marketplace)
	m.logger.Info("SetMarketplaceContract", "caller", caller.Hex(), "marketplace", marketplace.Hex(), "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) Pause(ctx context.Context, caller common.Address) error {
	start := time.Now()
	err := m.next.Pause(ctx, caller)
	m.logger.Info("Pause", "caller", caller.Hex(), "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) Unpause(ctx context.Context, caller common.Address) error {
	start := time.Now()
	err := m.next.Unpause(ctx, caller)
	m.logger.Info("Unpause", "caller", caller.Hex(), "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) AuthorizeWallet(ctx context.Context, caller, wallet common.Address) error {
	start := time.Now()
	err := m.next.AuthorizeWallet(ctx, caller, wallet)
	m.logger.Info("AuthorizeWallet", "caller", caller.Hex(), "wallet", wallet.Hex(), "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) RevokeWallet(ctx context.Context, caller, wallet common.Address) error {
	start := time.Now()
	err := m.next.RevokeWallet(ctx, caller, wallet)
	m.logger.Info("RevokeWallet", "caller", caller.Hex(), "wallet", wallet.Hex(), "duration", time.Since(start), "error", err)
	return err
}

func (m *loggingMiddleware) IsAuthorized(ctx context.Context, wallet common.Address) (bool, error) {
	start := time.Now()
	ok, err := m.next.IsAuthorized(ctx, wallet)
	m.logger.Debug("IsAuthorized", "wallet", wallet.Hex(), "duration", time.Since(start), "error", err)
	return ok, err
}

func (m *loggingMiddleware) VerifyTitleOwnership(ctx context.Context, caller common.Address, titleID string) (*TitleRequest, error) {
	start := time.Now()
	req, err := m.next.VerifyTitleOwnership(ctx, caller, titleID)
	attrs := []any{"caller", caller.Hex(), "title", titleID}
	if req != nil {
		attrs = append(attrs, "request", req.ID.Hex())
		metrics.TitleRequest(string(RequestPending))
	}
	m.logger.Info("VerifyTitleOwnership", append(attrs, "duration", time.Since(start), "error", err)...)
	return req, err
}

func (m *loggingMiddleware) FulfillTitleOwnershipVerification(ctx context.Context, caller common.Address, requestID common.Hash, f Fulfillment) (*TitleRequest, error) {
	start := time.Now()
	req, err := m.next.FulfillTitleOwnershipVerification(ctx, caller, requestID, f)
	attrs := []any{
		"caller", caller.Hex(),
		"request", requestID.Hex(),
		"owner", f.Owner.Hex(),
		"fractionalization", f.Fractionalization,
		"verified", f.Verified,
	}
	if req != nil {
		attrs = append(attrs, "status", req.Status)
		if req.RejectReason != "" {
			attrs = append(attrs, "reason", req.RejectReason)
		}
		metrics.TitleRequest(string(req.Status))
	} else {
		metrics.TitleRequest("error")
	}
	m.logger.Info("FulfillTitleOwnershipVerification", append(attrs, "duration", time.Since(start), "error", err)...)
	return req, err
}

func (m *loggingMiddleware) GetRequest(ctx context.Context, requestID common.Hash) (*TitleRequest, error) {
	start := time.Now()
	req, err := m.next.GetRequest(ctx, requestID)
	m.logger.Debug("GetRequest", "request", requestID.Hex(), "duration", time.Since(start), "error", err)
	return req, err
}

func (m *loggingMiddleware) ListRequests(ctx context.Context, filter RequestFilter) ([]TitleRequest, error) {
	start := time.Now()
	reqs, err := m.next.ListRequests(ctx, filter)
	m.logger.Debug("ListRequests", "status", filter.Status, "results", len(reqs), "duration", time.Since(start), "error", err)
	return reqs, err
}

func (m *loggingMiddleware) MintDeeds(ctx context.Context, caller common.Address, titleID string, count uint64) ([]uint64, error) {
	start := time.Now()
	ids, err := m.next.MintDeeds(ctx, caller, titleID, count)
	metrics.DeedsMinted(len(ids))
	m.logger.Info("MintDeeds",
		"caller", caller.Hex(),
		"title", titleID,
		"count", count,
		"minted", len(ids),
		"duration", time.Since(start),
		"error", err,
	)
	return ids, err
}

func (m *loggingMiddleware) GetTitle(ctx context.Context, titleID string) (*Title, error) {
	start := time.Now()
	t, err := m.next.GetTitle(ctx, titleID)
	m.logger.Debug("GetTitle", "title", titleID, "duration", time.Since(start), "error", err)
	return t, err
}

func (m *loggingMiddleware) Exists(ctx context.Context, id uint64) (bool, error) {
	return m.next.Exists(ctx, id)
}

func (m *loggingMiddleware) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	return m.next.OwnerOf(ctx, id)
}

func (m *loggingMiddleware) URI(ctx context.Context, id uint64) (string, error) {
	return m.next.URI(ctx, id)
}

func (m *loggingMiddleware) GetDeed(ctx context.Context, id uint64) (*Deed, error) {
	start := time.Now()
	d, err := m.next.GetDeed(ctx, id)
	m.logger.Debug("GetDeed", "deed", id, "duration", time.Since(start), "error", err)
	return d, err
}

func (m *loggingMiddleware) BalanceOf(ctx context.Context, owner common.Address, id uint64) (uint64, error) {
	return m.next.BalanceOf(ctx, owner, id)
}

func (m *loggingMiddleware) SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error {
	start := time.Now()
	err := m.next.SetApprovalForAll(ctx, caller, operator, approved)
	m.logger.Info("SetApprovalForAll",
		"caller", caller.Hex(),
		"operator", operator.Hex(),
		"approved", approved,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	return m.next.IsApprovedForAll(ctx, owner, operator)
}

func (m *loggingMiddleware) SafeTransferFrom(ctx context.Context, caller, from, to common.Address, id uint64) error {
	start := time.Now()
	err := m.next.SafeTransferFrom(ctx, caller, from, to, id)
	m.logger.Info("SafeTransferFrom",
		"caller", caller.Hex(),
		"from", from.Hex(),
		"to", to.Hex(),
		"deed", id,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}
