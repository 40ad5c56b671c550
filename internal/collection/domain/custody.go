package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// Custody moves deeds inside an open ledger transaction, so the marketplace
// can escrow a deed in the same transaction as its own state change.
type Custody struct{}

// NewCustody creates a deed custodian
func NewCustody() *Custody {
	return &Custody{}
}

// TransferFrom moves deed id from one holder to another on behalf of operator
func (c *Custody) TransferFrom(ctx context.Context, tx storage.Tx, operator, from, to common.Address, id uint64) error {
	state, err := loadCollection(ctx, tx)
	if err != nil {
		return err
	}
	return transferDeed(ctx, tx, state, operator, from, to, id)
}

// OwnerOf returns the current holder of deed id
func (c *Custody) OwnerOf(ctx context.Context, tx storage.Tx, id uint64) (common.Address, error) {
	deed, err := loadDeed(ctx, tx, id)
	if err != nil {
		return common.Address{}, err
	}
	return deed.Owner, nil
}

func loadCollection(ctx context.Context, tx storage.CollectionStore) (*storage.CollectionState, error) {
	c, err := tx.GetCollection(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotDeployed
	}
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}
	return c, nil
}

func loadDeed(ctx context.Context, tx storage.CollectionStore, id uint64) (*storage.Deed, error) {
	deed, err := tx.GetDeed(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrDeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading deed %d: %w", id, err)
	}
	return deed, nil
}

// isApprovedForAll treats the registered marketplace as approved for every holder
func isApprovedForAll(ctx context.Context, tx storage.CollectionStore, c *storage.CollectionState, owner, operator common.Address) (bool, error) {
	if c.Marketplace != (common.Address{}) && operator == c.Marketplace {
		return true, nil
	}
	return tx.IsApproved(ctx, owner, operator)
}

func transferDeed(ctx context.Context, tx storage.CollectionStore, c *storage.CollectionState, operator, from, to common.Address, id uint64) error {
	if c.Paused {
		return ErrPaused
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if operator != from {
		approved, err := isApprovedForAll(ctx, tx, c, from, operator)
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotApproved
		}
	}

	deed, err := loadDeed(ctx, tx, id)
	if err != nil {
		return err
	}
	if deed.Owner != from {
		return ErrInsufficientBalance
	}
	return tx.SetDeedOwner(ctx, id, to)
}
