package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadhouse/nomadhouse/internal/auth"
	collection "github.com/nomadhouse/nomadhouse/internal/collection/domain"
	"github.com/nomadhouse/nomadhouse/internal/marketplace/domain"
	"github.com/nomadhouse/nomadhouse/internal/payout"
)

var (
	owner  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	seller = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	buyer  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// mockService implements domain.Service with an in-memory listing table
type mockService struct {
	listings []*domain.Listing
	fees     *big.Int
	lastGas  uint64
	postErr  error
}

func newMockService() *mockService {
	return &mockService{
		listings: []*domain.Listing{{ID: 0, Price: new(big.Int)}},
		fees:     new(big.Int),
	}
}

func (m *mockService) get(id uint64) (*domain.Listing, error) {
	if id >= uint64(len(m.listings)) {
		return nil, domain.ErrListingNotFound
	}
	return m.listings[id], nil
}

func (m *mockService) Info(ctx context.Context) (*domain.Market, error) {
	return &domain.Market{Owner: owner, FeePercent: 2, CollectableFees: m.fees, Balance: new(big.Int), ListingCount: uint64(len(m.listings) - 1)}, nil
}

func (m *mockService) Post(ctx context.Context, caller common.Address, req domain.PostRequest) (*domain.Listing, error) {
	if m.postErr != nil {
		return nil, m.postErr
	}
	state := domain.StatePaused
	if req.StartsActive {
		state = domain.StateActive
	}
	l := &domain.Listing{ID: uint64(len(m.listings)), TokenID: req.TokenID, Seller: caller, Price: req.Price, State: state}
	m.listings = append(m.listings, l)
	return l, nil
}

func (m *mockService) Buy(ctx context.Context, caller common.Address, id uint64, value *big.Int) (*domain.Listing, error) {
	l, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if l.State != domain.StateActive {
		return nil, domain.ErrNotActive
	}
	if value.Cmp(l.Price) != 0 {
		return nil, domain.ErrPaymentMismatch
	}
	l.State = domain.StateSold
	l.Buyer = caller
	return l, nil
}

func (m *mockService) setState(caller common.Address, id uint64, from, to domain.ListingState, stateErr error) (*domain.Listing, error) {
	l, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if l.State != from {
		return nil, stateErr
	}
	if caller != l.Seller {
		return nil, domain.ErrNotSeller
	}
	l.State = to
	return l, nil
}

func (m *mockService) Pause(ctx context.Context, caller common.Address, id uint64) (*domain.Listing, error) {
	return m.setState(caller, id, domain.StateActive, domain.StatePaused, domain.ErrNotActive)
}

func (m *mockService) Unpause(ctx context.Context, caller common.Address, id uint64) (*domain.Listing, error) {
	return m.setState(caller, id, domain.StatePaused, domain.StateActive, domain.ErrNotPaused)
}

func (m *mockService) Cancel(ctx context.Context, caller common.Address, id uint64) (*domain.Listing, error) {
	return m.setState(caller, id, domain.StateActive, domain.StateCancelled, domain.ErrNotCancellable)
}

func (m *mockService) Collect(ctx context.Context, caller common.Address, id uint64, gasLimit uint64) (*domain.Payout, error) {
	m.lastGas = gasLimit
	if gasLimit != 0 && gasLimit < 2300 {
		return nil, payout.ErrOutOfGas
	}
	l, err := m.setState(caller, id, domain.StateSold, domain.StateClosed, domain.ErrNotSold)
	if err != nil {
		return nil, err
	}
	_, afterFee := domain.ComputeFee(l.Price, 2)
	return &domain.Payout{To: caller, Amount: afterFee}, nil
}

func (m *mockService) CollectFees(ctx context.Context, caller common.Address, gasLimit uint64) (*domain.Payout, error) {
	if caller != owner {
		return nil, domain.ErrNotOwner
	}
	return &domain.Payout{To: owner, Amount: m.fees}, nil
}

func (m *mockService) GetListing(ctx context.Context, id uint64) (*domain.Listing, error) {
	return m.get(id)
}

func (m *mockService) GetListings(ctx context.Context, start uint64, count int) ([]domain.Listing, error) {
	out := []domain.Listing{}
	for i := start; i < uint64(len(m.listings)) && len(out) < count; i++ {
		out = append(out, *m.listings[i])
	}
	return out, nil
}

func setupRouter(svc domain.Service) *chi.Mux {
	r := chi.NewRouter()
	r.Use(auth.HeaderMiddleware(writeError))
	h := NewHandler(svc)
	r.Route("/marketplace", func(r chi.Router) {
		h.RegisterReadRoutes(r)
		h.RegisterWriteRoutes(r)
	})
	return r
}

func do(t *testing.T, router http.Handler, method, path string, caller *common.Address, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set(auth.CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHandler_Info(t *testing.T) {
	router := setupRouter(newMockService())

	rec := do(t, router, "GET", "/marketplace/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp MarketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, owner.Hex(), resp.Owner)
	assert.Equal(t, uint64(2), resp.FeePercent)
	assert.Equal(t, "0", resp.CollectableFees)
}

func TestHandler_PostAndList(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc)

	rec := do(t, router, "POST", "/marketplace/listings", &seller, `{"tokenId": 1, "price": "1000000000000000000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var listing ListingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, uint64(1), listing.ID)
	assert.Equal(t, "Active", listing.State)
	assert.Equal(t, 2, listing.StateCode)
	assert.Equal(t, "1000000000000000000", listing.Price)

	rec = do(t, router, "POST", "/marketplace/listings", &seller, `{"tokenId": 2, "price": "5", "startsActive": false}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, "Paused", listing.State)

	rec = do(t, router, "GET", "/marketplace/listings?start=0&count=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 3)
	assert.Equal(t, "None", list.Data[0].State)

	rec = do(t, router, "GET", "/marketplace/listings?count=1000", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, domain.MaxListingsPage, list.Count)
}

func TestHandler_PostValidation(t *testing.T) {
	tests := []struct {
		name       string
		caller     *common.Address
		body       string
		postErr    error
		wantStatus int
		wantCode   string
	}{
		{"no caller", nil, `{"tokenId":1,"price":"1"}`, nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad json", &seller, `{`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad price", &seller, `{"tokenId":1,"price":"abc"}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"negative price", &seller, `{"tokenId":1,"price":"-1"}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"zero price", &seller, `{"tokenId":1,"price":"0"}`, domain.ErrInvalidPrice, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not approved", &seller, `{"tokenId":1,"price":"1"}`, collection.ErrNotApproved, http.StatusForbidden, "FORBIDDEN"},
		{"missing deed", &seller, `{"tokenId":9,"price":"1"}`, collection.ErrDeedNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"collection paused", &seller, `{"tokenId":1,"price":"1"}`, collection.ErrPaused, http.StatusConflict, "PAUSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockService()
			svc.postErr = tt.postErr
			rec := do(t, setupRouter(svc), "POST", "/marketplace/listings", tt.caller, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestHandler_Lifecycle(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc)
	rec := do(t, router, "POST", "/marketplace/listings", &seller, `{"tokenId": 1, "price": "100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		method     string
		path       string
		caller     *common.Address
		body       string
		wantStatus int
		wantCode   string
	}{
		{"pause by stranger", "POST", "/marketplace/listings/1/pause", &buyer, "", http.StatusForbidden, "FORBIDDEN"},
		{"pause", "POST", "/marketplace/listings/1/pause", &seller, "", http.StatusOK, ""},
		{"buy paused", "POST", "/marketplace/listings/1/buy", &buyer, `{"value":"100"}`, http.StatusConflict, "CONFLICT"},
		{"unpause", "POST", "/marketplace/listings/1/unpause", &seller, "", http.StatusOK, ""},
		{"collect unsold", "POST", "/marketplace/listings/1/collect", &seller, "", http.StatusConflict, "CONFLICT"},
		{"underpay", "POST", "/marketplace/listings/1/buy", &buyer, `{"value":"99"}`, http.StatusPaymentRequired, "PAYMENT_MISMATCH"},
		{"buy", "POST", "/marketplace/listings/1/buy", &buyer, `{"value":"100"}`, http.StatusOK, ""},
		{"buy twice", "POST", "/marketplace/listings/1/buy", &buyer, `{"value":"100"}`, http.StatusConflict, "CONFLICT"},
		{"collect out of gas", "POST", "/marketplace/listings/1/collect", &seller, `{"gasLimit":100}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"collect", "POST", "/marketplace/listings/1/collect", &seller, `{"gasLimit":21000}`, http.StatusOK, ""},
		{"collect twice", "POST", "/marketplace/listings/1/collect", &seller, "", http.StatusConflict, "CONFLICT"},
		{"unknown listing", "POST", "/marketplace/listings/7/cancel", &seller, "", http.StatusNotFound, "NOT_FOUND"},
		{"bad id", "POST", "/marketplace/listings/abc/cancel", &seller, "", http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
			}
		})
	}
	assert.Equal(t, uint64(21000), svc.lastGas)
}

func TestHandler_CollectResponse(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc)
	do(t, router, "POST", "/marketplace/listings", &seller, `{"tokenId": 1, "price": "1000000000000000000"}`)
	do(t, router, "POST", "/marketplace/listings/1/buy", &buyer, `{"value":"1000000000000000000"}`)

	rec := do(t, router, "POST", "/marketplace/listings/1/collect", &seller, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PayoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, seller.Hex(), resp.To)
	assert.Equal(t, "980000000000000000", resp.Amount)
	assert.Equal(t, uint64(0), svc.lastGas)
}

func TestHandler_CollectFees(t *testing.T) {
	svc := newMockService()
	svc.fees = big.NewInt(2)
	router := setupRouter(svc)

	rec := do(t, router, "POST", "/marketplace/fees/collect", &seller, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, "POST", "/marketplace/fees/collect", &owner, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PayoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2", resp.Amount)
}

func TestHandler_GetListing(t *testing.T) {
	router := setupRouter(newMockService())

	rec := do(t, router, "GET", "/marketplace/listings/0", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, "GET", fmt.Sprintf("/marketplace/listings/%d", 5), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
