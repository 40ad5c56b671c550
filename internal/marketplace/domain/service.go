package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// MaxListingsPage caps the number of listings returned by GetListings
const MaxListingsPage = 100

// Store is the storage interface required by the marketplace service
type Store interface {
	Update(ctx context.Context, fn func(tx storage.Tx) error) error
	View(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Custodian moves deeds inside a ledger transaction
type Custodian interface {
	TransferFrom(ctx context.Context, tx storage.Tx, operator, from, to common.Address, id uint64) error
}

// Payer sends native currency inside a ledger transaction
type Payer interface {
	Pay(ctx context.Context, tx storage.Tx, to common.Address, amount *big.Int, gasLimit uint64) error
}

// Service defines the marketplace operations
type Service interface {
	Info(ctx context.Context) (*Market, error)

	Post(ctx context.Context, caller common.Address, req PostRequest) (*Listing, error)
	Buy(ctx context.Context, caller common.Address, id uint64, value *big.Int) (*Listing, error)
	Pause(ctx context.Context, caller common.Address, id uint64) (*Listing, error)
	Unpause(ctx context.Context, caller common.Address, id uint64) (*Listing, error)
	Cancel(ctx context.Context, caller common.Address, id uint64) (*Listing, error)

	Collect(ctx context.Context, caller common.Address, id uint64, gasLimit uint64) (*Payout, error)
	CollectFees(ctx context.Context, caller common.Address, gasLimit uint64) (*Payout, error)

	GetListing(ctx context.Context, id uint64) (*Listing, error)
	GetListings(ctx context.Context, start uint64, count int) ([]Listing, error)
}

type service struct {
	store   Store
	custody Custodian
	payer   Payer
}

// NewService creates a new marketplace service
func NewService(store Store, custody Custodian, payer Payer) Service {
	return &service{
		store:   store,
		custody: custody,
		payer:   payer,
	}
}

func loadMarket(ctx context.Context, tx storage.MarketStore) (*storage.MarketState, error) {
	m, err := tx.GetMarket(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotDeployed
	}
	if err != nil {
		return nil, fmt.Errorf("loading marketplace: %w", err)
	}
	return m, nil
}

func loadListing(ctx context.Context, tx storage.MarketStore, id uint64) (*storage.Listing, error) {
	l, err := tx.GetListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing %d: %w", id, err)
	}
	return l, nil
}

func (s *service) Info(ctx context.Context) (*Market, error) {
	var out *Market
	err := s.store.View(ctx, func(tx storage.Tx) error {
		m, err := loadMarket(ctx, tx)
		if err != nil {
			return err
		}
		last, err := tx.LastListingID(ctx)
		if err != nil {
			return err
		}
		out = marketFromStorage(m, last)
		return nil
	})
	return out, err
}

func (s *service) Post(ctx context.Context, caller common.Address, req PostRequest) (*Listing, error) {
	if req.Price == nil || req.Price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}

	var out *Listing
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		m, err := loadMarket(ctx, tx)
		if err != nil {
			return err
		}

		// Escrow the deed; fails unless caller holds it and approved the marketplace
		if err := s.custody.TransferFrom(ctx, tx, m.Address, caller, m.Address, req.TokenID); err != nil {
			return err
		}

		state := StatePaused
		if req.StartsActive {
			state = StateActive
		}
		l := &storage.Listing{
			TokenID: req.TokenID,
			Seller:  caller,
			Price:   new(big.Int).Set(req.Price),
			State:   int(state),
		}
		if err := tx.CreateListing(ctx, l); err != nil {
			return fmt.Errorf("creating listing: %w", err)
		}
		out = listingFromStorage(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transition loads a listing, applies the guards in order (state, then
// caller) and stores the new state.
func (s *service) transition(ctx context.Context, caller common.Address, id uint64, from []ListingState, stateErr error, to ListingState) (*Listing, error) {
	var out *Listing
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		m, err := loadMarket(ctx, tx)
		if err != nil {
			return err
		}
		l, err := loadListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if !stateIn(ListingState(l.State), from) {
			return stateErr
		}
		if caller != l.Seller {
			return ErrNotSeller
		}

		// Cancelling hands the escrowed deed back
		if to == StateCancelled {
			if err := s.custody.TransferFrom(ctx, tx, m.Address, m.Address, l.Seller, l.TokenID); err != nil {
				return err
			}
		}

		l.State = int(to)
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		out = listingFromStorage(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stateIn(s ListingState, states []ListingState) bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}

func (s *service) Pause(ctx context.Context, caller common.Address, id uint64) (*Listing, error) {
	return s.transition(ctx, caller, id, []ListingState{StateActive}, ErrNotActive, StatePaused)
}

func (s *service) Unpause(ctx context.Context, caller common.Address, id uint64) (*Listing, error) {
	return s.transition(ctx, caller, id, []ListingState{StatePaused}, ErrNotPaused, StateActive)
}

func (s *service) Cancel(ctx context.Context, caller common.Address, id uint64) (*Listing, error) {
	return s.transition(ctx, caller, id, []ListingState{StateActive, StatePaused}, ErrNotCancellable, StateCancelled)
}

func (s *service) Buy(ctx context.Context, caller common.Address, id uint64, value *big.Int) (*Listing, error) {
	if value == nil {
		value = new(big.Int)
	}

	var out *Listing
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		m, err := loadMarket(ctx, tx)
		if err != nil {
			return err
		}
		l, err := loadListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if ListingState(l.State) != StateActive {
			return ErrNotActive
		}
		if value.Cmp(l.Price) != 0 {
			return fmt.Errorf("%w: sent %s, price %s", ErrPaymentMismatch, value, l.Price)
		}

		if err := s.custody.TransferFrom(ctx, tx, m.Address, m.Address, caller, l.TokenID); err != nil {
			return err
		}

		fee, _ := ComputeFee(l.Price, m.FeePercent)
		m.Balance = new(big.Int).Add(m.Balance, l.Price)
		m.CollectableFees = new(big.Int).Add(m.CollectableFees, fee)
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}

		l.Buyer = caller
		l.State = int(StateSold)
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		out = listingFromStorage(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Collect(ctx context.Context, caller common.Address, id uint64, gasLimit uint64) (*Payout, error) {
	var out *Payout
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		m, err := loadMarket(ctx, tx)
		if err != nil {
			return err
		}
		l, err := loadListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if ListingState(l.State) != StateSold {
			return ErrNotSold
		}
		if caller != l.Seller {
			return ErrNotSeller
		}

		_, afterFee := ComputeFee(l.Price, m.FeePercent)
		if m.Balance.Cmp(afterFee) < 0 {
			return fmt.Errorf("%w: holding %s, owed %s", ErrInsufficientFund, m.Balance, afterFee)
		}

		l.State = int(StateClosed)
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		m.Balance = new(big.Int).Sub(m.Balance, afterFee)
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		if err := s.payer.Pay(ctx, tx, l.Seller, afterFee, gasLimit); err != nil {
			return err
		}
		out = &Payout{To: l.Seller, Amount: afterFee}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) CollectFees(ctx context.Context, caller common.Address, gasLimit uint64) (*Payout, error) {
	var out *Payout
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		m, err := loadMarket(ctx, tx)
		if err != nil {
			return err
		}
		if caller != m.Owner {
			return ErrNotOwner
		}

		amount := new(big.Int).Set(m.CollectableFees)
		if m.Balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: holding %s, fees %s", ErrInsufficientFund, m.Balance, amount)
		}
		m.CollectableFees = new(big.Int)
		m.Balance = new(big.Int).Sub(m.Balance, amount)
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		if err := s.payer.Pay(ctx, tx, m.Owner, amount, gasLimit); err != nil {
			return err
		}
		out = &Payout{To: m.Owner, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) GetListing(ctx context.Context, id uint64) (*Listing, error) {
	var out *Listing
	err := s.store.View(ctx, func(tx storage.Tx) error {
		l, err := loadListing(ctx, tx, id)
		if err != nil {
			return err
		}
		out = listingFromStorage(l)
		return nil
	})
	return out, err
}

// GetListings returns up to count listings starting at start. Index 0 is
// the sentinel listing; a start past the last listing yields an empty page.
func (s *service) GetListings(ctx context.Context, start uint64, count int) ([]Listing, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: count must not be negative", ErrInvalidInput)
	}
	if count > MaxListingsPage {
		count = MaxListingsPage
	}

	out := []Listing{}
	if count == 0 {
		return out, nil
	}
	err := s.store.View(ctx, func(tx storage.Tx) error {
		listings, err := tx.ListListings(ctx, start, count)
		if err != nil {
			return err
		}
		for i := range listings {
			out = append(out, *listingFromStorage(&listings[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
