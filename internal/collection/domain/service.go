package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/storage"
	"github.com/nomadhouse/nomadhouse/internal/validation"
)

// Store is the storage interface required by the collection service
type Store interface {
	Update(ctx context.Context, fn func(tx storage.Tx) error) error
	View(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Service defines the collection operations
type Service interface {
	Info(ctx context.Context) (*Collection, error)

	// Owner administration
	SetTokenURI(ctx context.Context, caller common.Address, uri string) error
	SetTitleSearchURI(ctx context.Context, caller common.Address, uri string) error
	SetMarketplaceContract(ctx context.Context, caller, marketplace common.Address) error
	Pause(ctx context.Context, caller common.Address) error
	Unpause(ctx context.Context, caller common.Address) error
	AuthorizeWallet(ctx context.Context, caller, wallet common.Address) error
	RevokeWallet(ctx context.Context, caller, wallet common.Address) error
	IsAuthorized(ctx context.Context, wallet common.Address) (bool, error)

	// Title oracle workflow
	VerifyTitleOwnership(ctx context.Context, caller common.Address, titleID string) (*TitleRequest, error)
	FulfillTitleOwnershipVerification(ctx context.Context, caller common.Address, requestID common.Hash, f Fulfillment) (*TitleRequest, error)
	GetRequest(ctx context.Context, requestID common.Hash) (*TitleRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]TitleRequest, error)
	MintDeeds(ctx context.Context, caller common.Address, titleID string, count uint64) ([]uint64, error)
	GetTitle(ctx context.Context, titleID string) (*Title, error)

	// Deed tokens
	Exists(ctx context.Context, id uint64) (bool, error)
	OwnerOf(ctx context.Context, id uint64) (common.Address, error)
	URI(ctx context.Context, id uint64) (string, error)
	GetDeed(ctx context.Context, id uint64) (*Deed, error)
	BalanceOf(ctx context.Context, owner common.Address, id uint64) (uint64, error)
	SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	SafeTransferFrom(ctx context.Context, caller, from, to common.Address, id uint64) error
}

type service struct {
	store Store
}

// NewService creates a new collection service
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Info(ctx context.Context) (*Collection, error) {
	var out *Collection
	err := s.store.View(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		out = collectionFromStorage(c)
		return nil
	})
	return out, err
}

// admin runs fn as the collection owner and persists the collection state
func (s *service) admin(ctx context.Context, caller common.Address, fn func(tx storage.Tx, c *storage.CollectionState) error) error {
	return s.store.Update(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		if caller != c.Owner {
			return ErrNotOwner
		}
		if err := fn(tx, c); err != nil {
			return err
		}
		return tx.PutCollection(ctx, c)
	})
}

func (s *service) SetTokenURI(ctx context.Context, caller common.Address, uri string) error {
	if err := validation.ValidateURI(uri); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.admin(ctx, caller, func(_ storage.Tx, c *storage.CollectionState) error {
		c.TokenURI = uri
		return nil
	})
}

func (s *service) SetTitleSearchURI(ctx context.Context, caller common.Address, uri string) error {
	if err := validation.ValidateURI(uri); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.admin(ctx, caller, func(_ storage.Tx, c *storage.CollectionState) error {
		c.TitleSearchURI = uri
		return nil
	})
}

func (s *service) SetMarketplaceContract(ctx context.Context, caller, marketplace common.Address) error {
	return s.admin(ctx, caller, func(_ storage.Tx, c *storage.CollectionState) error {
		c.Marketplace = marketplace
		return nil
	})
}

func (s *service) Pause(ctx context.Context, caller common.Address) error {
	return s.admin(ctx, caller, func(_ storage.Tx, c *storage.CollectionState) error {
		if c.Paused {
			return ErrPaused
		}
		c.Paused = true
		return nil
	})
}

func (s *service) Unpause(ctx context.Context, caller common.Address) error {
	return s.admin(ctx, caller, func(_ storage.Tx, c *storage.CollectionState) error {
		if !c.Paused {
			return ErrNotPaused
		}
		c.Paused = false
		return nil
	})
}

func (s *service) AuthorizeWallet(ctx context.Context, caller, wallet common.Address) error {
	if wallet == (common.Address{}) {
		return fmt.Errorf("%w: cannot authorize the zero address", ErrInvalidInput)
	}
	return s.admin(ctx, caller, func(tx storage.Tx, _ *storage.CollectionState) error {
		return tx.AuthorizeWallet(ctx, wallet)
	})
}

func (s *service) RevokeWallet(ctx context.Context, caller, wallet common.Address) error {
	return s.admin(ctx, caller, func(tx storage.Tx, _ *storage.CollectionState) error {
		err := tx.RevokeWallet(ctx, wallet)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrWalletNotAuthorized
		}
		return err
	})
}

func (s *service) IsAuthorized(ctx context.Context, wallet common.Address) (bool, error) {
	var ok bool
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		ok, err = tx.IsWalletAuthorized(ctx, wallet)
		return err
	})
	return ok, err
}

func (s *service) VerifyTitleOwnership(ctx context.Context, caller common.Address, titleID string) (*TitleRequest, error) {
	if err := validation.ValidateTitleID(titleID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var out *TitleRequest
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		if c.Paused {
			return ErrPaused
		}
		if caller != c.Owner {
			ok, err := tx.IsWalletAuthorized(ctx, caller)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotAuthorized
			}
		}

		c.RequestNonce++
		req := &storage.TitleRequest{
			ID:        chain.RequestID(c.Address, c.RequestNonce).Hex(),
			TitleID:   titleID,
			Requester: caller,
			URL:       c.TitleSearchURI + titleID,
			Payment:   c.OracleFee,
			Status:    storage.RequestPending,
		}
		if err := tx.CreateTitleRequest(ctx, req); err != nil {
			return fmt.Errorf("recording request: %w", err)
		}
		if err := tx.PutCollection(ctx, c); err != nil {
			return err
		}
		out = requestFromStorage(req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) FulfillTitleOwnershipVerification(ctx context.Context, caller common.Address, requestID common.Hash, f Fulfillment) (*TitleRequest, error) {
	var out *TitleRequest
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		if caller != c.Oracle {
			return ErrNotOracle
		}

		req, err := tx.GetTitleRequest(ctx, requestID.Hex())
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if req.Status != storage.RequestPending {
			return ErrRequestNotPending
		}

		req.Owner = f.Owner
		req.Fractionalization = f.Fractionalization
		req.Verified = f.Verified
		req.FulfilledAt = time.Now().UTC().Format(time.RFC3339)

		reason, err := s.settle(ctx, tx, req, f)
		if err != nil {
			return err
		}
		if reason != "" {
			req.Status = storage.RequestRejected
		} else {
			req.Status = storage.RequestFulfilled
		}
		if err := tx.UpdateTitleRequest(ctx, req); err != nil {
			return err
		}

		out = requestFromStorage(req)
		out.RejectReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// settle creates or updates the title for a fulfilled request. A non-empty
// reason means the fulfillment is rejected and nothing was written.
func (s *service) settle(ctx context.Context, tx storage.Tx, req *storage.TitleRequest, f Fulfillment) (string, error) {
	if !f.Verified {
		return "title ownership not verified", nil
	}
	if f.Fractionalization == 0 {
		return "fractionalization must be positive", nil
	}
	authorized, err := tx.IsWalletAuthorized(ctx, f.Owner)
	if err != nil {
		return "", err
	}
	if !authorized {
		return "owner is not an authorized wallet", nil
	}

	title, err := tx.GetTitle(ctx, req.TitleID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		title = &storage.Title{ID: req.TitleID}
	case err != nil:
		return "", err
	}

	minted := uint64(len(title.Deeds))
	if f.Fractionalization < minted {
		return fmt.Sprintf("fractionalization %d is below the %d deeds already minted", f.Fractionalization, minted), nil
	}

	title.Owner = f.Owner
	title.Fractionalization = f.Fractionalization
	title.DeedsLeftToMint = f.Fractionalization - minted
	return "", tx.PutTitle(ctx, title)
}

func (s *service) GetRequest(ctx context.Context, requestID common.Hash) (*TitleRequest, error) {
	var out *TitleRequest
	err := s.store.View(ctx, func(tx storage.Tx) error {
		req, err := tx.GetTitleRequest(ctx, requestID.Hex())
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		out = requestFromStorage(req)
		return nil
	})
	return out, err
}

func (s *service) ListRequests(ctx context.Context, filter RequestFilter) ([]TitleRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}

	var out []TitleRequest
	err := s.store.View(ctx, func(tx storage.Tx) error {
		reqs, err := tx.ListTitleRequests(ctx, storage.RequestFilter{
			Status:  string(filter.Status),
			TitleID: filter.TitleID,
			Limit:   filter.Limit,
		})
		if err != nil {
			return err
		}
		out = make([]TitleRequest, 0, len(reqs))
		for i := range reqs {
			out = append(out, *requestFromStorage(&reqs[i]))
		}
		return nil
	})
	return out, err
}

func (s *service) MintDeeds(ctx context.Context, caller common.Address, titleID string, count uint64) ([]uint64, error) {
	if count == 0 {
		return nil, ErrInvalidCount
	}

	var minted []uint64
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		title, err := tx.GetTitle(ctx, titleID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTitleNotFound
		}
		if err != nil {
			return err
		}
		if c.Paused {
			return ErrPaused
		}
		if caller != title.Owner {
			return ErrNotTitleOwner
		}
		if count > title.DeedsLeftToMint {
			return ErrNotEnoughDeeds
		}

		minted = make([]uint64, 0, count)
		for i := uint64(0); i < count; i++ {
			id := c.NextDeedID
			if err := tx.CreateDeed(ctx, &storage.Deed{ID: id, TitleID: titleID, Owner: title.Owner}); err != nil {
				return fmt.Errorf("minting deed %d: %w", id, err)
			}
			minted = append(minted, id)
			c.NextDeedID++
		}

		title.DeedsLeftToMint -= count
		if err := tx.PutTitle(ctx, title); err != nil {
			return err
		}
		return tx.PutCollection(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

func (s *service) GetTitle(ctx context.Context, titleID string) (*Title, error) {
	var out *Title
	err := s.store.View(ctx, func(tx storage.Tx) error {
		t, err := tx.GetTitle(ctx, titleID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTitleNotFound
		}
		if err != nil {
			return err
		}
		out = titleFromStorage(t)
		return nil
	})
	return out, err
}

func (s *service) Exists(ctx context.Context, id uint64) (bool, error) {
	_, err := s.GetDeed(ctx, id)
	if errors.Is(err, ErrDeedNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *service) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	deed, err := s.GetDeed(ctx, id)
	if err != nil {
		return common.Address{}, err
	}
	return deed.Owner, nil
}

func (s *service) URI(ctx context.Context, id uint64) (string, error) {
	deed, err := s.GetDeed(ctx, id)
	if err != nil {
		return "", err
	}
	return deed.URI, nil
}

func (s *service) GetDeed(ctx context.Context, id uint64) (*Deed, error) {
	var out *Deed
	err := s.store.View(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		d, err := loadDeed(ctx, tx, id)
		if err != nil {
			return err
		}
		out = &Deed{ID: d.ID, TitleID: d.TitleID, Owner: d.Owner, URI: tokenURI(c.TokenURI, d.ID)}
		return nil
	})
	return out, err
}

func tokenURI(base string, id uint64) string {
	return base + strconv.FormatUint(id, 10) + ".json"
}

func (s *service) BalanceOf(ctx context.Context, owner common.Address, id uint64) (uint64, error) {
	deed, err := s.GetDeed(ctx, id)
	if errors.Is(err, ErrDeedNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if deed.Owner == owner {
		return 1, nil
	}
	return 0, nil
}

func (s *service) SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error {
	if caller == operator {
		return ErrSelfApproval
	}
	return s.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := loadCollection(ctx, tx); err != nil {
			return err
		}
		return tx.SetApproval(ctx, caller, operator, approved)
	})
}

func (s *service) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	var ok bool
	err := s.store.View(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		ok, err = isApprovedForAll(ctx, tx, c, owner, operator)
		return err
	})
	return ok, err
}

func (s *service) SafeTransferFrom(ctx context.Context, caller, from, to common.Address, id uint64) error {
	return s.store.Update(ctx, func(tx storage.Tx) error {
		c, err := loadCollection(ctx, tx)
		if err != nil {
			return err
		}
		return transferDeed(ctx, tx, c, caller, from, to, id)
	})
}
