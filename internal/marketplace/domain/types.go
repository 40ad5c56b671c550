// Package domain implements the deed marketplace: fixed-price listings with a
// lifecycle state machine and fee settlement between sellers and the owner.
package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// ListingState is the lifecycle state of a listing. Values match the
// contract ABI enum.
type ListingState int

// Listing states
const (
	StateNone ListingState = iota
	StatePaused
	StateActive
	StateSold
	StateClosed
	StateCancelled
)

var stateNames = [...]string{"None", "Paused", "Active", "Sold", "Closed", "Cancelled"}

func (s ListingState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("ListingState(%d)", int(s))
	}
	return stateNames[s]
}

// ParseListingState parses a state name, case-insensitively
func ParseListingState(s string) (ListingState, error) {
	for i, name := range stateNames {
		if strings.EqualFold(s, name) {
			return ListingState(i), nil
		}
	}
	return StateNone, fmt.Errorf("%w: unknown listing state %q", ErrInvalidInput, s)
}

// Terminal reports whether no seller operation can leave s
func (s ListingState) Terminal() bool {
	return s == StateClosed || s == StateCancelled
}

// Listing is a sale offer for one deed
type Listing struct {
	ID        uint64
	TokenID   uint64
	Seller    common.Address
	Buyer     common.Address
	Price     *big.Int
	State     ListingState
	CreatedAt string
	UpdatedAt string
}

// Market is the public state of the marketplace contract
type Market struct {
	Address         common.Address
	Owner           common.Address
	NFT             common.Address
	FeePercent      uint64
	CollectableFees *big.Int
	Balance         *big.Int
	ListingCount    uint64
}

// PostRequest describes a new listing
type PostRequest struct {
	TokenID      uint64
	Price        *big.Int
	StartsActive bool
}

// Payout describes a completed withdrawal
type Payout struct {
	To     common.Address
	Amount *big.Int
}

func listingFromStorage(l *storage.Listing) *Listing {
	return &Listing{
		ID:        l.ID,
		TokenID:   l.TokenID,
		Seller:    l.Seller,
		Buyer:     l.Buyer,
		Price:     l.Price,
		State:     ListingState(l.State),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func marketFromStorage(m *storage.MarketState, listings uint64) *Market {
	return &Market{
		Address:         m.Address,
		Owner:           m.Owner,
		NFT:             m.NFT,
		FeePercent:      m.FeePercent,
		CollectableFees: m.CollectableFees,
		Balance:         m.Balance,
		ListingCount:    listings,
	}
}
