package client

import "fmt"

// Collection is the deed collection state
type Collection struct {
	Address        string `json:"address"`
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Paused         bool   `json:"paused"`
	TokenURI       string `json:"tokenUri"`
	TitleSearchURI string `json:"titleSearchUri"`
	Marketplace    string `json:"marketplace"`
	Oracle         string `json:"oracle"`
	LinkToken      string `json:"linkToken"`
	OracleFee      string `json:"oracleFee"`
	JobID          string `json:"jobId"`
	RequestCount   uint64 `json:"requestCount"`
	DeedCount      uint64 `json:"deedCount"`
}

// Request statuses
const (
	StatusPending   = "pending"
	StatusFulfilled = "fulfilled"
	StatusRejected  = "rejected"
)

// TitleRequest is a title ownership verification request
type TitleRequest struct {
	ID                string `json:"id"`
	TitleID           string `json:"titleId"`
	Requester         string `json:"requester"`
	URL               string `json:"url"`
	Payment           string `json:"payment"`
	Status            string `json:"status"`
	Owner             string `json:"owner,omitempty"`
	Fractionalization uint64 `json:"fractionalization,omitempty"`
	Verified          bool   `json:"verified"`
	CreatedAt         string `json:"createdAt,omitempty"`
	FulfilledAt       string `json:"fulfilledAt,omitempty"`
	RejectReason      string `json:"rejectReason,omitempty"`
}

// Fulfillment is the oracle's answer to a title request
type Fulfillment struct {
	Owner             string `json:"owner"`
	Fractionalization uint64 `json:"fractionalization"`
	Verified          bool   `json:"verified"`
}

// Title is a verified title
type Title struct {
	ID                string   `json:"id"`
	Owner             string   `json:"owner"`
	Fractionalization uint64   `json:"fractionalization"`
	DeedsLeftToMint   uint64   `json:"deedsLeftToMint"`
	Deeds             []uint64 `json:"deeds"`
}

// Deed is a minted deed
type Deed struct {
	ID      uint64 `json:"id"`
	TitleID string `json:"titleId"`
	Owner   string `json:"owner"`
	URI     string `json:"uri"`
}

// Market is the marketplace state
type Market struct {
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	NFT             string `json:"nft"`
	FeePercent      uint64 `json:"feePercent"`
	CollectableFees string `json:"collectableFees"`
	Balance         string `json:"balance"`
	ListingCount    uint64 `json:"listingCount"`
}

// Listing is a marketplace listing
type Listing struct {
	ID        uint64 `json:"id"`
	TokenID   uint64 `json:"tokenId"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
	Price     string `json:"price"`
	State     string `json:"state"`
	StateCode int    `json:"stateCode"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// PostRequest is the request for posting a listing. Price is in wei.
type PostRequest struct {
	TokenID      uint64 `json:"tokenId"`
	Price        string `json:"price"`
	StartsActive *bool  `json:"startsActive,omitempty"`
}

// ListingsResponse is a page of listings
type ListingsResponse struct {
	Data  []Listing `json:"data"`
	Start uint64    `json:"start"`
	Count int       `json:"count"`
}

// Payout is the result of collect and collectFees
type Payout struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 API error
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == 404
}
