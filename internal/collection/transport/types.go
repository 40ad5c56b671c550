// Package transport provides HTTP request/response types for the collection domain.
package transport

import (
	"github.com/nomadhouse/nomadhouse/internal/collection/domain"
)

// URIRequest sets a base URI.
type URIRequest struct {
	URI string `json:"uri"`
}

// AddressRequest carries a single address (marketplace, wallet).
type AddressRequest struct {
	Address string `json:"address"`
}

// FulfillRequest is the oracle's fulfillment body.
type FulfillRequest struct {
	Owner             string `json:"owner"`
	Fractionalization uint64 `json:"fractionalization"`
	Verified          bool   `json:"verified"`
}

// MintRequest mints deeds against a title.
type MintRequest struct {
	Count uint64 `json:"count"`
}

// ApprovalRequest sets an operator approval for the caller.
type ApprovalRequest struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

// TransferRequest moves a deed.
type TransferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	ID   uint64 `json:"id"`
}

// CollectionResponse is the collection state.
type CollectionResponse struct {
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

// RequestResponse is a title verification request.
type RequestResponse struct {
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

// TitleResponse is a verified title.
type TitleResponse struct {
	ID                string   `json:"id"`
	Owner             string   `json:"owner"`
	Fractionalization uint64   `json:"fractionalization"`
	DeedsLeftToMint   uint64   `json:"deedsLeftToMint"`
	Deeds             []uint64 `json:"deeds"`
}

// DeedResponse is a minted deed.
type DeedResponse struct {
	ID      uint64 `json:"id"`
	TitleID string `json:"titleId"`
	Owner   string `json:"owner"`
	URI     string `json:"uri"`
}

func collectionResponse(c *domain.Collection) CollectionResponse {
	return CollectionResponse{
		Address:        c.Address.Hex(),
		Owner:          c.Owner.Hex(),
		Name:           c.Name,
		Symbol:         c.Symbol,
		Paused:         c.Paused,
		TokenURI:       c.TokenURI,
		TitleSearchURI: c.TitleSearchURI,
		Marketplace:    c.Marketplace.Hex(),
		Oracle:         c.Oracle.Hex(),
		LinkToken:      c.LinkToken.Hex(),
		OracleFee:      c.OracleFee.String(),
		JobID:          c.JobID,
		RequestCount:   c.RequestCount,
		DeedCount:      c.DeedCount,
	}
}

func requestResponse(r *domain.TitleRequest) RequestResponse {
	resp := RequestResponse{
		ID:                r.ID.Hex(),
		TitleID:           r.TitleID,
		Requester:         r.Requester.Hex(),
		URL:               r.URL,
		Payment:           r.Payment.String(),
		Status:            string(r.Status),
		Fractionalization: r.Fractionalization,
		Verified:          r.Verified,
		CreatedAt:         r.CreatedAt,
		FulfilledAt:       r.FulfilledAt,
		RejectReason:      r.RejectReason,
	}
	if r.Status != domain.RequestPending {
		resp.Owner = r.Owner.Hex()
	}
	return resp
}

func titleResponse(t *domain.Title) TitleResponse {
	deeds := t.Deeds
	if deeds == nil {
		deeds = []uint64{}
	}
	return TitleResponse{
		ID:                t.ID,
		Owner:             t.Owner.Hex(),
		Fractionalization: t.Fractionalization,
		DeedsLeftToMint:   t.DeedsLeftToMint,
		Deeds:             deeds,
	}
}

func deedResponse(d *domain.Deed) DeedResponse {
	return DeedResponse{ID: d.ID, TitleID: d.TitleID, Owner: d.Owner.Hex(), URI: d.URI}
}
