package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/nomadhouse/nomadhouse/internal/auth"
	"github.com/nomadhouse/nomadhouse/internal/chain"
	collection "github.com/nomadhouse/nomadhouse/internal/collection/domain"
	"github.com/nomadhouse/nomadhouse/internal/marketplace/domain"
	"github.com/nomadhouse/nomadhouse/internal/payout"
)

// Handler handles HTTP requests for the marketplace.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new marketplace HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only marketplace routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.handleInfo)
	r.Get("/listings", h.handleList)
	r.Get("/listings/{id}", h.handleGet)
}

// RegisterWriteRoutes registers marketplace routes that act for a caller.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/listings", h.handlePost)
	r.Post("/listings/{id}/buy", h.handleBuy)
	r.Post("/listings/{id}/pause", h.handlePause)
	r.Post("/listings/{id}/unpause", h.handleUnpause)
	r.Post("/listings/{id}/cancel", h.handleCancel)
	r.Post("/listings/{id}/collect", h.handleCollect)
	r.Post("/fees/collect", h.handleCollectFees)
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Info(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, marketResponse(m))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	start := uint64(0)
	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid start")
			return
		}
		start = parsed
	}
	count := 20
	if c := r.URL.Query().Get("count"); c != "" {
		parsed, err := strconv.Atoi(c)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid count")
			return
		}
		count = min(parsed, domain.MaxListingsPage)
	}

	listings, err := h.svc.GetListings(r.Context(), start, count)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data := make([]ListingResponse, len(listings))
	for i := range listings {
		data[i] = listingResponse(&listings[i])
	}
	writeJSON(w, http.StatusOK, ListingsResponse{Data: data, Start: start, Count: count})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	l, err := h.svc.GetListing(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(l))
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body PostRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	l, err := h.svc.Post(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse(l))
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	var body BuyRequest
	if !decodeBody(w, r, &body) {
		return
	}
	value, err := chain.ParseAmount(body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	l, err := h.svc.Buy(r.Context(), caller, id, value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(l))
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Pause)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Unpause)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, common.Address, uint64) (*domain.Listing, error)) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	l, err := fn(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(l))
}

func (h *Handler) handleCollect(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	var body CollectRequest
	if !decodeOptionalBody(w, r, &body) {
		return
	}

	p, err := h.svc.Collect(r.Context(), caller, id, body.GasLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutResponse(p))
}

func (h *Handler) handleCollectFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var body CollectRequest
	if !decodeOptionalBody(w, r, &body) {
		return
	}

	p, err := h.svc.CollectFees(r.Context(), caller, body.GasLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutResponse(p))
}

// Helper functions

func requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Caller address required")
	}
	return caller, ok
}

func listingID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid listing id")
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

// decodeOptionalBody accepts an empty body and leaves v untouched
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, collection.ErrDeedNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, payout.ErrOutOfGas), errors.Is(err, collection.ErrZeroAddress):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotSeller), errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, collection.ErrNotApproved), errors.Is(err, collection.ErrInsufficientBalance):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, domain.ErrPaymentMismatch):
		writeError(w, http.StatusPaymentRequired, "PAYMENT_MISMATCH", err.Error())
	case errors.Is(err, collection.ErrPaused):
		writeError(w, http.StatusConflict, "PAUSED", err.Error())
	case errors.Is(err, domain.ErrNotActive), errors.Is(err, domain.ErrNotPaused),
		errors.Is(err, domain.ErrNotSold), errors.Is(err, domain.ErrNotCancellable):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, payout.ErrTransferFailed):
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Marketplace operation failed")
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
