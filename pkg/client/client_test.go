package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

const sellerAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

// recorded is what the fake server saw
type recorded struct {
	method string
	path   string
	query  string
	body   map[string]any
	header http.Header
}

func fakeServer(t *testing.T, status int, response any) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.header = r.Header.Clone()
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.body); err != nil {
				t.Errorf("request body is not JSON: %s", raw)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func TestClient_Requests(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   map[string]any
	}{
		{
			name:       "post listing",
			call:       func(c *Client) error { _, err := c.PostListing(ctx, PostRequest{TokenID: 3, Price: "1000"}); return err },
			wantMethod: "POST", wantPath: "/api/v1/marketplace/listings",
			wantBody: map[string]any{"tokenId": float64(3), "price": "1000"},
		},
		{
			name:       "buy",
			call:       func(c *Client) error { _, err := c.Buy(ctx, 4, "1000"); return err },
			wantMethod: "POST", wantPath: "/api/v1/marketplace/listings/4/buy",
			wantBody: map[string]any{"value": "1000"},
		},
		{
			name:       "collect default gas",
			call:       func(c *Client) error { _, err := c.Collect(ctx, 4, 0); return err },
			wantMethod: "POST", wantPath: "/api/v1/marketplace/listings/4/collect",
		},
		{
			name:       "collect fees with gas",
			call:       func(c *Client) error { _, err := c.CollectFees(ctx, 6900); return err },
			wantMethod: "POST", wantPath: "/api/v1/marketplace/fees/collect",
			wantBody: map[string]any{"gasLimit": float64(6900)},
		},
		{
			name:       "cancel",
			call:       func(c *Client) error { _, err := c.CancelListing(ctx, 9); return err },
			wantMethod: "POST", wantPath: "/api/v1/marketplace/listings/9/cancel",
		},
		{
			name:       "listings page",
			call:       func(c *Client) error { _, err := c.GetListings(ctx, 1, 50); return err },
			wantMethod: "GET", wantPath: "/api/v1/marketplace/listings", wantQuery: "start=1&count=50",
		},
		{
			name:       "verify title",
			call:       func(c *Client) error { _, err := c.VerifyTitle(ctx, "lot-7.json"); return err },
			wantMethod: "POST", wantPath: "/api/v1/collection/titles/lot-7.json/verify",
		},
		{
			name: "fulfill",
			call: func(c *Client) error {
				_, err := c.Fulfill(ctx, "0xabc", Fulfillment{Owner: sellerAddr, Fractionalization: 52, Verified: true})
				return err
			},
			wantMethod: "POST", wantPath: "/api/v1/collection/requests/0xabc/fulfill",
			wantBody: map[string]any{"owner": sellerAddr, "fractionalization": float64(52), "verified": true},
		},
		{
			name:       "mint",
			call:       func(c *Client) error { _, err := c.MintDeeds(ctx, "lot-7.json", 2); return err },
			wantMethod: "POST", wantPath: "/api/v1/collection/titles/lot-7.json/mint",
			wantBody: map[string]any{"count": float64(2)},
		},
		{
			name:       "pending requests",
			call:       func(c *Client) error { _, err := c.ListRequests(ctx, StatusPending, "", 10); return err },
			wantMethod: "GET", wantPath: "/api/v1/collection/requests", wantQuery: "limit=10&status=pending",
		},
		{
			name:       "revoke wallet",
			call:       func(c *Client) error { return c.RevokeWallet(ctx, sellerAddr) },
			wantMethod: "DELETE", wantPath: "/api/v1/collection/wallets/" + sellerAddr,
		},
		{
			name:       "approval",
			call:       func(c *Client) error { return c.SetApprovalForAll(ctx, sellerAddr, true) },
			wantMethod: "POST", wantPath: "/api/v1/collection/approvals",
			wantBody: map[string]any{"operator": sellerAddr, "approved": true},
		},
		{
			name:       "balance",
			call:       func(c *Client) error { _, err := c.Balance(ctx, sellerAddr); return err },
			wantMethod: "GET", wantPath: "/api/v1/accounts/" + sellerAddr,
		},
		{
			name:       "whoami",
			call:       func(c *Client) error { _, err := c.WhoAmI(ctx); return err },
			wantMethod: "GET", wantPath: "/api/v1/whoami",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := fakeServer(t, http.StatusOK, map[string]any{})
			if err := tt.call(New(server.URL, "")); err != nil {
				t.Fatalf("call error = %v", err)
			}
			if rec.method != tt.wantMethod || rec.path != tt.wantPath {
				t.Errorf("got %s %s, want %s %s", rec.method, rec.path, tt.wantMethod, tt.wantPath)
			}
			if rec.query != tt.wantQuery {
				t.Errorf("query = %q, want %q", rec.query, tt.wantQuery)
			}
			if !reflect.DeepEqual(rec.body, tt.wantBody) {
				t.Errorf("body = %v, want %v", rec.body, tt.wantBody)
			}
		})
	}
}

func TestClient_DecodesResponses(t *testing.T) {
	server, _ := fakeServer(t, http.StatusOK, map[string]any{
		"id": "lot-7.json", "owner": sellerAddr, "fractionalization": 52,
		"deedsLeftToMint": 51, "deeds": []uint64{1},
	})

	title, err := New(server.URL, "").GetTitle(context.Background(), "lot-7.json")
	if err != nil {
		t.Fatalf("GetTitle() error = %v", err)
	}
	if title.DeedsLeftToMint != 51 || len(title.Deeds) != 1 || title.Owner != sellerAddr {
		t.Errorf("GetTitle() = %+v", title)
	}
}

func TestClient_Headers(t *testing.T) {
	server, rec := fakeServer(t, http.StatusOK, map[string]any{})

	c := New(server.URL, "nh_key_abc", WithCaller(sellerAddr))
	if err := c.UnpauseCollection(context.Background()); err != nil {
		t.Fatalf("UnpauseCollection() error = %v", err)
	}
	if got := rec.header.Get("X-API-Key"); got != "nh_key_abc" {
		t.Errorf("X-API-Key = %q", got)
	}
	if got := rec.header.Get("X-Caller-Address"); got != sellerAddr {
		t.Errorf("X-Caller-Address = %q", got)
	}
	if got := rec.header.Get("Content-Type"); got != "" {
		t.Errorf("Content-Type without body = %q", got)
	}
}

func TestClient_Errors(t *testing.T) {
	server, _ := fakeServer(t, http.StatusNotFound, map[string]any{
		"error": map[string]string{"code": "NOT_FOUND", "message": "Deed does not exist"},
	})

	_, err := New(server.URL, "").GetDeed(context.Background(), 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetDeed() error = %v, want *APIError", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.Message != "Deed does not exist" || apiErr.Status != 404 {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false")
	}

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer plain.Close()

	_, err = New(plain.URL, "").Market(context.Background())
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Errorf("Market() error = %v, want 502 APIError", err)
	}
}
