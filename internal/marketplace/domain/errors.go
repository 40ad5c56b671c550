package domain

import "errors"

// Marketplace errors. Messages match the contract's revert reasons.
var (
	ErrNotDeployed      = errors.New("marketplace not deployed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidPrice     = errors.New("price must be greater than zero")
	ErrListingNotFound  = errors.New("listing does not exist")
	ErrNotActive        = errors.New("listing not active")
	ErrNotPaused        = errors.New("listing not paused")
	ErrNotSold          = errors.New("listing not Sold")
	ErrNotCancellable   = errors.New("listing cannot be cancelled")
	ErrNotSeller        = errors.New("caller is not the seller")
	ErrNotOwner         = errors.New("Ownable: caller is not the owner")
	ErrPaymentMismatch  = errors.New("payment must equal listing price")
	ErrInsufficientFund = errors.New("marketplace balance too low")
)
