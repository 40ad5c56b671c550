package domain

import "errors"

// Collection errors. Messages match the contract's revert reasons.
var (
	ErrNotDeployed         = errors.New("collection not deployed")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotOwner            = errors.New("Ownable: caller is not the owner")
	ErrPaused              = errors.New("Pausable: paused")
	ErrNotPaused           = errors.New("Pausable: not paused")
	ErrNotAuthorized       = errors.New("caller is not an authorized wallet")
	ErrWalletNotAuthorized = errors.New("wallet is not authorized")
	ErrNotOracle           = errors.New("caller is not the oracle")
	ErrRequestNotFound     = errors.New("request does not exist")
	ErrRequestNotPending   = errors.New("request not pending")
	ErrTitleNotFound       = errors.New("title does not exist")
	ErrNotTitleOwner       = errors.New("caller is not the title owner")
	ErrInvalidCount        = errors.New("mint count must be positive")
	ErrNotEnoughDeeds      = errors.New("not enough deeds left to mint")
	ErrDeedNotFound        = errors.New("Deed does not exist")
	ErrNotApproved         = errors.New("ERC1155: caller is not owner nor approved")
	ErrInsufficientBalance = errors.New("ERC1155: insufficient balance for transfer")
	ErrZeroAddress         = errors.New("ERC1155: transfer to the zero address")
	ErrSelfApproval        = errors.New("ERC1155: setting approval status for self")
)
