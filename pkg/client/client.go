// Package client provides a Go client for the NomadHouse API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a NomadHouse API client
type Client struct {
	baseURL    string
	apiKey     string
	caller     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithCaller sends address as X-Caller-Address. Only servers running with
// authentication disabled honour it.
func WithCaller(address string) Option {
	return func(client *Client) {
		client.caller = address
	}
}

// New creates a new NomadHouse client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collection

// Collection returns the collection state
func (c *Client) Collection(ctx context.Context) (*Collection, error) {
	var resp Collection
	if err := c.do(ctx, http.MethodGet, "/api/v1/collection/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetTokenURI sets the deed metadata base URI (owner only)
func (c *Client) SetTokenURI(ctx context.Context, uri string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/collection/token-uri", map[string]string{"uri": uri}, nil)
}

// SetTitleSearchURI sets the title-search base URI (owner only)
func (c *Client) SetTitleSearchURI(ctx context.Context, uri string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/collection/title-search-uri", map[string]string{"uri": uri}, nil)
}

// SetMarketplace registers the marketplace contract (owner only)
func (c *Client) SetMarketplace(ctx context.Context, address string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/collection/marketplace", map[string]string{"address": address}, nil)
}

// PauseCollection pauses the collection (owner only)
func (c *Client) PauseCollection(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/collection/pause", nil, nil)
}

// UnpauseCollection unpauses the collection (owner only)
func (c *Client) UnpauseCollection(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/collection/unpause", nil, nil)
}

// AuthorizeWallet allows wallet to request title verification (owner only)
func (c *Client) AuthorizeWallet(ctx context.Context, wallet string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/collection/wallets", map[string]string{"address": wallet}, nil)
}

// RevokeWallet removes a wallet authorization (owner only)
func (c *Client) RevokeWallet(ctx context.Context, wallet string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/collection/wallets/"+url.PathEscape(wallet), nil, nil)
}

// IsAuthorized reports whether wallet may request title verification
func (c *Client) IsAuthorized(ctx context.Context, wallet string) (bool, error) {
	var resp struct {
		Authorized bool `json:"authorized"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/collection/wallets/"+url.PathEscape(wallet), nil, &resp)
	return resp.Authorized, err
}

// VerifyTitle opens a title ownership verification request
func (c *Client) VerifyTitle(ctx context.Context, titleID string) (*TitleRequest, error) {
	var resp TitleRequest
	path := fmt.Sprintf("/api/v1/collection/titles/%s/verify", url.PathEscape(titleID))
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRequests lists title requests. Empty filters match everything; a zero
// limit uses the server default.
func (c *Client) ListRequests(ctx context.Context, status, titleID string, limit int) ([]TitleRequest, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if titleID != "" {
		q.Set("titleId", titleID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/collection/requests"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Data []TitleRequest `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetRequest gets a title request by id
func (c *Client) GetRequest(ctx context.Context, requestID string) (*TitleRequest, error) {
	var resp TitleRequest
	if err := c.do(ctx, http.MethodGet, "/api/v1/collection/requests/"+url.PathEscape(requestID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fulfill answers a pending title request (oracle only)
func (c *Client) Fulfill(ctx context.Context, requestID string, f Fulfillment) (*TitleRequest, error) {
	var resp TitleRequest
	path := fmt.Sprintf("/api/v1/collection/requests/%s/fulfill", url.PathEscape(requestID))
	if err := c.do(ctx, http.MethodPost, path, f, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MintDeeds mints count deeds of a verified title (title owner only)
func (c *Client) MintDeeds(ctx context.Context, titleID string, count uint64) ([]uint64, error) {
	var resp struct {
		Deeds []uint64 `json:"deeds"`
	}
	path := fmt.Sprintf("/api/v1/collection/titles/%s/mint", url.PathEscape(titleID))
	if err := c.do(ctx, http.MethodPost, path, map[string]uint64{"count": count}, &resp); err != nil {
		return nil, err
	}
	return resp.Deeds, nil
}

// GetTitle gets a verified title
func (c *Client) GetTitle(ctx context.Context, titleID string) (*Title, error) {
	var resp Title
	if err := c.do(ctx, http.MethodGet, "/api/v1/collection/titles/"+url.PathEscape(titleID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDeed gets a minted deed
func (c *Client) GetDeed(ctx context.Context, id uint64) (*Deed, error) {
	var resp Deed
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/collection/deeds/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeedExists reports whether a deed has been minted
func (c *Client) DeedExists(ctx context.Context, id uint64) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/collection/deeds/%d/exists", id), nil, &resp)
	return resp.Exists, err
}

// BalanceOf returns how many of deed id owner holds (0 or 1)
func (c *Client) BalanceOf(ctx context.Context, owner string, id uint64) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}
	path := fmt.Sprintf("/api/v1/collection/balances/%s/%d", url.PathEscape(owner), id)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Balance, err
}

// SetApprovalForAll lets operator move all of the caller's deeds
func (c *Client) SetApprovalForAll(ctx context.Context, operator string, approved bool) error {
	body := map[string]any{"operator": operator, "approved": approved}
	return c.do(ctx, http.MethodPost, "/api/v1/collection/approvals", body, nil)
}

// IsApprovedForAll reports whether operator may move owner's deeds
func (c *Client) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	var resp struct {
		Approved bool `json:"approved"`
	}
	path := fmt.Sprintf("/api/v1/collection/approvals/%s/%s", url.PathEscape(owner), url.PathEscape(operator))
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Approved, err
}

// Transfer moves deed id from one holder to another
func (c *Client) Transfer(ctx context.Context, from, to string, id uint64) error {
	body := map[string]any{"from": from, "to": to, "id": id}
	return c.do(ctx, http.MethodPost, "/api/v1/collection/transfers", body, nil)
}

// Marketplace

// Market returns the marketplace state
func (c *Client) Market(ctx context.Context) (*Market, error) {
	var resp Market
	if err := c.do(ctx, http.MethodGet, "/api/v1/marketplace/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostListing puts a deed up for sale
func (c *Client) PostListing(ctx context.Context, req PostRequest) (*Listing, error) {
	var resp Listing
	if err := c.do(ctx, http.MethodPost, "/api/v1/marketplace/listings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Buy pays value wei for an active listing
func (c *Client) Buy(ctx context.Context, id uint64, value string) (*Listing, error) {
	var resp Listing
	path := fmt.Sprintf("/api/v1/marketplace/listings/%d/buy", id)
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"value": value}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PauseListing pauses an active listing (seller only)
func (c *Client) PauseListing(ctx context.Context, id uint64) (*Listing, error) {
	return c.listingAction(ctx, id, "pause")
}

// UnpauseListing reactivates a paused listing (seller only)
func (c *Client) UnpauseListing(ctx context.Context, id uint64) (*Listing, error) {
	return c.listingAction(ctx, id, "unpause")
}

// CancelListing cancels an active or paused listing (seller only)
func (c *Client) CancelListing(ctx context.Context, id uint64) (*Listing, error) {
	return c.listingAction(ctx, id, "cancel")
}

func (c *Client) listingAction(ctx context.Context, id uint64, action string) (*Listing, error) {
	var resp Listing
	path := fmt.Sprintf("/api/v1/marketplace/listings/%d/%s", id, action)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Collect pays the seller's proceeds of a sold listing. A zero gasLimit uses
// the server default.
func (c *Client) Collect(ctx context.Context, id, gasLimit uint64) (*Payout, error) {
	var resp Payout
	path := fmt.Sprintf("/api/v1/marketplace/listings/%d/collect", id)
	if err := c.do(ctx, http.MethodPost, path, gasBody(gasLimit), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CollectFees pays the accumulated fee pool to the marketplace owner
func (c *Client) CollectFees(ctx context.Context, gasLimit uint64) (*Payout, error) {
	var resp Payout
	if err := c.do(ctx, http.MethodPost, "/api/v1/marketplace/fees/collect", gasBody(gasLimit), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func gasBody(gasLimit uint64) any {
	if gasLimit == 0 {
		return nil
	}
	return map[string]uint64{"gasLimit": gasLimit}
}

// GetListing gets a listing by id
func (c *Client) GetListing(ctx context.Context, id uint64) (*Listing, error) {
	var resp Listing
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/marketplace/listings/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetListings returns up to count listings starting at id start
func (c *Client) GetListings(ctx context.Context, start uint64, count int) (*ListingsResponse, error) {
	var resp ListingsResponse
	path := fmt.Sprintf("/api/v1/marketplace/listings?start=%d&count=%d", start, count)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Accounts

// Balance returns the native balance of address in wei
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(address), nil, &resp)
	return resp.Balance, err
}

// Identity is the address a request acts as
type Identity struct {
	Address string `json:"address"`
	KeyName string `json:"keyName,omitempty"`
}

// WhoAmI returns the caller the server resolves for this client's credentials
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodGet, "/api/v1/whoami", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.caller != "" {
		req.Header.Set("X-Caller-Address", c.caller)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: resp.Status}
	}
	errResp.Error.Status = resp.StatusCode
	return &errResp.Error
}
