package storage

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MarketStore handles marketplace contract state and listings
type MarketStore interface {
	GetMarket(ctx context.Context) (*MarketState, error)
	PutMarket(ctx context.Context, m *MarketState) error
	CreateListing(ctx context.Context, l *Listing) error
	GetListing(ctx context.Context, id uint64) (*Listing, error)
	UpdateListing(ctx context.Context, l *Listing) error
	ListListings(ctx context.Context, start uint64, count int) ([]Listing, error)
	LastListingID(ctx context.Context) (uint64, error)
}

// CollectionStore handles collection state, titles, requests and deeds
type CollectionStore interface {
	GetCollection(ctx context.Context) (*CollectionState, error)
	PutCollection(ctx context.Context, c *CollectionState) error

	CreateTitleRequest(ctx context.Context, r *TitleRequest) error
	GetTitleRequest(ctx context.Context, id string) (*TitleRequest, error)
	UpdateTitleRequest(ctx context.Context, r *TitleRequest) error
	ListTitleRequests(ctx context.Context, filter RequestFilter) ([]TitleRequest, error)

	GetTitle(ctx context.Context, id string) (*Title, error)
	PutTitle(ctx context.Context, t *Title) error

	CreateDeed(ctx context.Context, d *Deed) error
	GetDeed(ctx context.Context, id uint64) (*Deed, error)
	SetDeedOwner(ctx context.Context, id uint64, owner common.Address) error

	AuthorizeWallet(ctx context.Context, wallet common.Address) error
	RevokeWallet(ctx context.Context, wallet common.Address) error
	IsWalletAuthorized(ctx context.Context, wallet common.Address) (bool, error)

	SetApproval(ctx context.Context, owner, operator common.Address, approved bool) error
	IsApproved(ctx context.Context, owner, operator common.Address) (bool, error)
}

// AccountStore handles native currency balances
type AccountStore interface {
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, address common.Address, amount *big.Int) error
}

// Savepointer runs part of a transaction so that its failure undoes only its
// own writes and leaves the enclosing transaction usable.
type Savepointer interface {
	Savepoint(ctx context.Context, name string, fn func() error) error
}

// Tx is a ledger transaction. All reads and writes of one operation go
// through the same Tx so a failed guard rolls everything back.
type Tx interface {
	MarketStore
	CollectionStore
	AccountStore
	Savepointer
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string, address common.Address) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store is the ledger. Update runs fn in a write transaction while holding
// the store's single-writer lock; View runs fn in a read transaction.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	APIKeyStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// MarketState is the marketplace contract storage
type MarketState struct {
	Address         common.Address
	Owner           common.Address
	NFT             common.Address
	FeePercent      uint64
	CollectableFees *big.Int
	Balance         *big.Int
}

// CollectionState is the collection contract storage
type CollectionState struct {
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
	RequestNonce   uint64
	NextDeedID     uint64
}

// Listing is a stored marketplace listing
type Listing struct {
	ID        uint64
	TokenID   uint64
	Seller    common.Address
	Buyer     common.Address
	Price     *big.Int
	State     int
	CreatedAt string
	UpdatedAt string
}

// Request statuses
const (
	RequestPending   = "pending"
	RequestFulfilled = "fulfilled"
	RequestRejected  = "rejected"
)

// TitleRequest is an outstanding or settled oracle request
type TitleRequest struct {
	ID                string
	TitleID           string
	Requester         common.Address
	URL               string
	Payment           *big.Int
	Status            string
	Owner             common.Address
	Fractionalization uint64
	Verified          bool
	CreatedAt         string
	FulfilledAt       string
}

// Title is a verified title record
type Title struct {
	ID                string
	Owner             common.Address
	Fractionalization uint64
	DeedsLeftToMint   uint64
	Deeds             []uint64 // loaded from the deeds table, not stored on the row
	CreatedAt         string
	UpdatedAt         string
}

// Deed is a minted deed token
type Deed struct {
	ID        uint64
	TitleID   string
	Owner     common.Address
	CreatedAt string
}

// APIKey represents an API key bound to a caller address
type APIKey struct {
	ID         string
	Name       string
	Address    common.Address
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
}

// RequestFilter contains filter options for listing title requests
type RequestFilter struct {
	Status  string
	TitleID string
	Limit   int
}
