// Package transport provides HTTP request/response types for the marketplace domain.
package transport

import (
	"fmt"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/marketplace/domain"
)

// PostRequest is the HTTP request body for posting a listing.
type PostRequest struct {
	TokenID      uint64 `json:"tokenId"`
	Price        string `json:"price"`
	StartsActive *bool  `json:"startsActive,omitempty"`
}

// ToDomain converts PostRequest to domain.PostRequest. Listings start
// active unless startsActive is false.
func (r PostRequest) ToDomain() (domain.PostRequest, error) {
	price, err := chain.ParseAmount(r.Price)
	if err != nil {
		return domain.PostRequest{}, fmt.Errorf("%w: price: %v", domain.ErrInvalidInput, err)
	}
	active := true
	if r.StartsActive != nil {
		active = *r.StartsActive
	}
	return domain.PostRequest{TokenID: r.TokenID, Price: price, StartsActive: active}, nil
}

// BuyRequest is the HTTP request body for buying a listing.
type BuyRequest struct {
	Value string `json:"value"`
}

// CollectRequest is the HTTP request body for payouts. A zero gas limit
// selects the default.
type CollectRequest struct {
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

// ListingResponse is a listing in API responses.
type ListingResponse struct {
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

// ListingsResponse is the response for listing listings.
type ListingsResponse struct {
	Data  []ListingResponse `json:"data"`
	Start uint64            `json:"start"`
	Count int               `json:"count"`
}

// MarketResponse is the response for the marketplace state.
type MarketResponse struct {
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	NFT             string `json:"nft"`
	FeePercent      uint64 `json:"feePercent"`
	CollectableFees string `json:"collectableFees"`
	Balance         string `json:"balance"`
	ListingCount    uint64 `json:"listingCount"`
}

// PayoutResponse is the response for collect and collectFees.
type PayoutResponse struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func listingResponse(l *domain.Listing) ListingResponse {
	return ListingResponse{
		ID:        l.ID,
		TokenID:   l.TokenID,
		Seller:    l.Seller.Hex(),
		Buyer:     l.Buyer.Hex(),
		Price:     l.Price.String(),
		State:     l.State.String(),
		StateCode: int(l.State),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func marketResponse(m *domain.Market) MarketResponse {
	return MarketResponse{
		Address:         m.Address.Hex(),
		Owner:           m.Owner.Hex(),
		NFT:             m.NFT.Hex(),
		FeePercent:      m.FeePercent,
		CollectableFees: m.CollectableFees.String(),
		Balance:         m.Balance.String(),
		ListingCount:    m.ListingCount,
	}
}

func payoutResponse(p *domain.Payout) PayoutResponse {
	return PayoutResponse{To: p.To.Hex(), Amount: p.Amount.String()}
}
