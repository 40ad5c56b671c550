// Package domain implements the NomadHouse deed collection: title
// verification through an oracle, deed minting and deed custody.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// Collection is the public state of the collection contract
type Collection struct {
	Address        common.Address
	Owner          common.Address
	Name           string
	Symbol         string
	Paused         bool
	TokenURI       string
	TitleSearchURI string
	Marketplace    common.Address
	Oracle         common.Address
	LinkToken      common.Address
	OracleFee      *big.Int
	JobID          string
	RequestCount   uint64
	DeedCount      uint64
}

// RequestStatus is the lifecycle state of an oracle request
type RequestStatus string

// Request statuses
const (
	RequestPending   RequestStatus = storage.RequestPending
	RequestFulfilled RequestStatus = storage.RequestFulfilled
	RequestRejected  RequestStatus = storage.RequestRejected
)

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestFulfilled, RequestRejected:
		return true
	}
	return false
}

// TitleRequest correlates a verification request with its fulfillment
type TitleRequest struct {
	ID                common.Hash
	TitleID           string
	Requester         common.Address
	URL               string
	Payment           *big.Int
	Status            RequestStatus
	Owner             common.Address
	Fractionalization uint64
	Verified          bool
	CreatedAt         string
	FulfilledAt       string

	// RejectReason explains a rejected fulfillment; set on the fulfill result only
	RejectReason string
}

// Fulfillment is the oracle's answer to a request
type Fulfillment struct {
	Owner             common.Address
	Fractionalization uint64
	Verified          bool
}

// Title is a verified title and the deeds minted against it
type Title struct {
	ID                string
	Owner             common.Address
	Fractionalization uint64
	DeedsLeftToMint   uint64
	Deeds             []uint64
}

// Deed is a minted deed token
type Deed struct {
	ID      uint64
	TitleID string
	Owner   common.Address
	URI     string
}

// RequestFilter filters request listings
type RequestFilter struct {
	Status  RequestStatus
	TitleID string
	Limit   int
}

func collectionFromStorage(c *storage.CollectionState) *Collection {
	return &Collection{
		Address:        c.Address,
		Owner:          c.Owner,
		Name:           c.Name,
		Symbol:         c.Symbol,
		Paused:         c.Paused,
		TokenURI:       c.TokenURI,
		TitleSearchURI: c.TitleSearchURI,
		Marketplace:    c.Marketplace,
		Oracle:         c.Oracle,
		LinkToken:      c.LinkToken,
		OracleFee:      c.OracleFee,
		JobID:          c.JobID,
		RequestCount:   c.RequestNonce,
		DeedCount:      c.NextDeedID - 1,
	}
}

func requestFromStorage(r *storage.TitleRequest) *TitleRequest {
	return &TitleRequest{
		ID:                common.HexToHash(r.ID),
		TitleID:           r.TitleID,
		Requester:         r.Requester,
		URL:               r.URL,
		Payment:           r.Payment,
		Status:            RequestStatus(r.Status),
		Owner:             r.Owner,
		Fractionalization: r.Fractionalization,
		Verified:          r.Verified,
		CreatedAt:         r.CreatedAt,
		FulfilledAt:       r.FulfilledAt,
	}
}

func titleFromStorage(t *storage.Title) *Title {
	return &Title{
		ID:                t.ID,
		Owner:             t.Owner,
		Fractionalization: t.Fractionalization,
		DeedsLeftToMint:   t.DeedsLeftToMint,
		Deeds:             t.Deeds,
	}
}
