package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/nomadhouse/nomadhouse/internal/auth"
	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/collection/domain"
)

// Handler handles HTTP requests for the collection.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new collection HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only collection routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.handleInfo)
	r.Get("/wallets/{address}", h.handleIsAuthorized)
	r.Get("/requests", h.handleListRequests)
	r.Get("/requests/{id}", h.handleGetRequest)
	r.Get("/titles/{titleId}", h.handleGetTitle)
	r.Get("/deeds/{id}", h.handleGetDeed)
	r.Get("/deeds/{id}/exists", h.handleDeedExists)
	r.Get("/balances/{owner}/{id}", h.handleBalance)
	r.Get("/approvals/{owner}/{operator}", h.handleIsApproved)
}

// RegisterWriteRoutes registers collection routes that act for a caller.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Put("/token-uri", h.handleSetTokenURI)
	r.Put("/title-search-uri", h.handleSetTitleSearchURI)
	r.Put("/marketplace", h.handleSetMarketplace)
	r.Post("/pause", h.handlePause)
	r.Post("/unpause", h.handleUnpause)
	r.Post("/wallets", h.handleAuthorizeWallet)
	r.Delete("/wallets/{address}", h.handleRevokeWallet)
	r.Post("/titles/{titleId}/verify", h.handleVerify)
	r.Post("/requests/{id}/fulfill", h.handleFulfill)
	r.Post("/titles/{titleId}/mint", h.handleMint)
	r.Post("/approvals", h.handleSetApproval)
	r.Post("/transfers", h.handleTransfer)
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Info(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse(c))
}

func (h *Handler) handleSetTokenURI(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body URIRequest
	if !decodeBody(w, r, &body) {
		return
	}
	h.respondInfo(w, r, h.svc.SetTokenURI(r.Context(), caller, body.URI))
}

func (h *Handler) handleSetTitleSearchURI(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body URIRequest
	if !decodeBody(w, r, &body) {
		return
	}
	h.respondInfo(w, r, h.svc.SetTitleSearchURI(r.Context(), caller, body.URI))
}

func (h *Handler) handleSetMarketplace(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body AddressRequest
	if !decodeBody(w, r, &body) {
		return
	}
	addr, ok := parseAddress(w, body.Address)
	if !ok {
		return
	}
	h.respondInfo(w, r, h.svc.SetMarketplaceContract(r.Context(), caller, addr))
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	h.respondInfo(w, r, h.svc.Pause(r.Context(), caller))
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	h.respondInfo(w, r, h.svc.Unpause(r.Context(), caller))
}

// respondInfo answers an admin call with the updated collection state
func (h *Handler) respondInfo(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.handleInfo(w, r)
}

func (h *Handler) handleAuthorizeWallet(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body AddressRequest
	if !decodeBody(w, r, &body) {
		return
	}
	wallet, ok := parseAddress(w, body.Address)
	if !ok {
		return
	}
	if err := h.svc.AuthorizeWallet(r.Context(), caller, wallet); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"address": wallet.Hex(), "authorized": true})
}

func (h *Handler) handleRevokeWallet(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	wallet, ok := parseAddress(w, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	if err := h.svc.RevokeWallet(r.Context(), caller, wallet); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIsAuthorized(w http.ResponseWriter, r *http.Request) {
	wallet, ok := parseAddress(w, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	authorized, err := h.svc.IsAuthorized(r.Context(), wallet)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": wallet.Hex(), "authorized": authorized})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, err := h.svc.VerifyTitleOwnership(r.Context(), caller, chi.URLParam(r, "titleId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, requestResponse(req))
}

func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	var body FulfillRequest
	if !decodeBody(w, r, &body) {
		return
	}
	owner, ok := parseAddress(w, body.Owner)
	if !ok {
		return
	}

	req, err := h.svc.FulfillTitleOwnershipVerification(r.Context(), caller, id, domain.Fulfillment{
		Owner:             owner,
		Fractionalization: body.Fractionalization,
		Verified:          body.Verified,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requestResponse(req))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.GetRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requestResponse(req))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	reqs, err := h.svc.ListRequests(r.Context(), domain.RequestFilter{
		Status:  domain.RequestStatus(r.URL.Query().Get("status")),
		TitleID: r.URL.Query().Get("titleId"),
		Limit:   limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data := make([]RequestResponse, len(reqs))
	for i := range reqs {
		data[i] = requestResponse(&reqs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body MintRequest
	if !decodeBody(w, r, &body) {
		return
	}
	titleID := chi.URLParam(r, "titleId")
	ids, err := h.svc.MintDeeds(r.Context(), caller, titleID, body.Count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"titleId": titleID, "deeds": ids})
}

func (h *Handler) handleGetTitle(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTitle(r.Context(), chi.URLParam(r, "titleId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, titleResponse(t))
}

func (h *Handler) handleGetDeed(w http.ResponseWriter, r *http.Request) {
	id, ok := deedID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.svc.GetDeed(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deedResponse(d))
}

func (h *Handler) handleDeedExists(w http.ResponseWriter, r *http.Request) {
	id, ok := deedID(w, r, "id")
	if !ok {
		return
	}
	exists, err := h.svc.Exists(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "exists": exists})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(w, chi.URLParam(r, "owner"))
	if !ok {
		return
	}
	id, ok := deedID(w, r, "id")
	if !ok {
		return
	}
	bal, err := h.svc.BalanceOf(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner.Hex(), "id": id, "balance": bal})
}

func (h *Handler) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body ApprovalRequest
	if !decodeBody(w, r, &body) {
		return
	}
	operator, ok := parseAddress(w, body.Operator)
	if !ok {
		return
	}
	if err := h.svc.SetApprovalForAll(r.Context(), caller, operator, body.Approved); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": caller.Hex(), "operator": operator.Hex(), "approved": body.Approved})
}

func (h *Handler) handleIsApproved(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(w, chi.URLParam(r, "owner"))
	if !ok {
		return
	}
	operator, ok := parseAddress(w, chi.URLParam(r, "operator"))
	if !ok {
		return
	}
	approved, err := h.svc.IsApprovedForAll(r.Context(), owner, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner.Hex(), "operator": operator.Hex(), "approved": approved})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body TransferRequest
	if !decodeBody(w, r, &body) {
		return
	}
	from, ok := parseAddress(w, body.From)
	if !ok {
		return
	}
	to, ok := parseAddress(w, body.To)
	if !ok {
		return
	}
	if err := h.svc.SafeTransferFrom(r.Context(), caller, from, to, body.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": from.Hex(), "to": to.Hex(), "id": body.ID})
}

// Helper functions

func requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Caller address required")
	}
	return caller, ok
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	addr, err := chain.ParseAddress(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return common.Address{}, false
	}
	return addr, true
}

func requestID(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	id, err := chain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return common.Hash{}, false
	}
	return id, true
}

func deedID(w http.ResponseWriter, r *http.Request, param string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid deed id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDeedNotFound), errors.Is(err, domain.ErrTitleNotFound),
		errors.Is(err, domain.ErrRequestNotFound), errors.Is(err, domain.ErrWalletNotAuthorized):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidCount),
		errors.Is(err, domain.ErrZeroAddress), errors.Is(err, domain.ErrSelfApproval):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrNotOracle), errors.Is(err, domain.ErrNotTitleOwner),
		errors.Is(err, domain.ErrNotApproved), errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, domain.ErrNotEnoughDeeds):
		writeError(w, http.StatusConflict, "QUOTA_EXCEEDED", err.Error())
	case errors.Is(err, domain.ErrPaused):
		writeError(w, http.StatusConflict, "PAUSED", err.Error())
	case errors.Is(err, domain.ErrNotPaused), errors.Is(err, domain.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Collection operation failed")
	}
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
