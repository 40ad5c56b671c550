package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Route("/api/v1/marketplace", func(r chi.Router) {
		r.Post("/listings/{id}/buy", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		})
		r.Get("/listings/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		})
	})
	return r
}

func TestMiddleware_RoutePattern(t *testing.T) {
	Init(true, "test")
	h := newRouter()

	tests := []struct {
		method string
		path   string
		route  string
		status string
	}{
		{"GET", "/api/v1/marketplace/listings/3", "/api/v1/marketplace/listings/{id}", "200"},
		{"GET", "/api/v1/marketplace/listings/4", "/api/v1/marketplace/listings/{id}", "200"},
		{"POST", "/api/v1/marketplace/listings/3/buy", "/api/v1/marketplace/listings/{id}/buy", "402"},
		{"GET", "/wp-login.php", unmatchedRoute, "404"},
	}
	for _, tt := range tests {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/marketplace/listings/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v1/marketplace/listings/{id}/buy", "402")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestRecorders(t *testing.T) {
	Init(true, "test")

	ListingOperation("buy", nil)
	ListingOperation("buy", assert.AnError)
	Payout("fees", nil)
	TitleRequest("fulfilled")
	DeedsMinted(3)
	DeedsMinted(0)
	OracleFulfillment("verified")

	assert.Equal(t, 1.0, testutil.ToFloat64(listingOperationsTotal.WithLabelValues("buy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(listingOperationsTotal.WithLabelValues("buy", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(deedsMintedTotal))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `nomadhouse_collection_deeds_minted_total{service="test"} 3`)
	assert.Contains(t, string(body), "nomadhouse_oracle_fulfillments_total")
}

func TestHelpersDisabled(t *testing.T) {
	Init(false, "test")

	// Disabled recorders must not touch nil collectors
	ListingOperation("buy", nil)
	Payout("fees", nil)
	TitleRequest("pending")
	DeedsMinted(3)
	OracleFulfillment("verified")

	assert.False(t, Enabled())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
