// Package payout moves native currency out of a contract under a gas budget.
//
// A plain value transfer costs chain.GasPerTransfer. The gas limit a caller
// supplies is treated as a budget of attempts: a limit of 6900 pays for three
// attempts, retried with exponential backoff, up to MaxAttempts. A limit of 0 selects
// chain.DefaultCollectGasLimit, which pays for exactly one attempt.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// MaxAttempts caps the attempts any gas limit can buy
const MaxAttempts = 8

var (
	ErrOutOfGas       = errors.New("insufficient gas for transfer")
	ErrTransferFailed = errors.New("transfer failed")
)

// Transferer performs a single transfer attempt
type Transferer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Attempts returns how many transfer attempts gasLimit pays for
func Attempts(gasLimit uint64) (int, error) {
	if gasLimit == 0 {
		gasLimit = chain.DefaultCollectGasLimit
	}
	if gasLimit < chain.GasPerTransfer {
		return 0, fmt.Errorf("%w: %d < %d", ErrOutOfGas, gasLimit, chain.GasPerTransfer)
	}
	n := gasLimit / chain.GasPerTransfer
	if n > MaxAttempts {
		n = MaxAttempts
	}
	return int(n), nil
}

// Send transfers amount to recipient within the gas budget. A zero amount is
// a no-op.
func Send(ctx context.Context, t Transferer, to common.Address, amount *big.Int, gasLimit uint64, logger *slog.Logger) error {
	attempts, err := Attempts(gasLimit)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		if logger != nil {
			logger.Debug("payout attempt failed", "to", to.Hex(), "amount", amount.String(), "error", err, "retry_in", wait)
		}
	}

	err = backoff.RetryNotify(func() error {
		return t.Transfer(ctx, to, amount)
	}, policy, notify)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// payoutSavepoint scopes one transfer attempt inside the ledger transaction
const payoutSavepoint = "payout_attempt"

// AccountTransferer credits the recipient's ledger account inside tx. When
// tx supports savepoints each attempt runs under one, so a failed attempt
// rolls back alone and the next retry starts from a clean transaction.
type AccountTransferer struct {
	tx storage.AccountStore
}

// NewAccountTransferer creates a transferer bound to a ledger transaction
func NewAccountTransferer(tx storage.AccountStore) *AccountTransferer {
	return &AccountTransferer{tx: tx}
}

// Transfer credits amount to the recipient
func (a *AccountTransferer) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	if sp, ok := a.tx.(storage.Savepointer); ok {
		return sp.Savepoint(ctx, payoutSavepoint, func() error {
			return a.credit(ctx, to, amount)
		})
	}
	return a.credit(ctx, to, amount)
}

func (a *AccountTransferer) credit(ctx context.Context, to common.Address, amount *big.Int) error {
	bal, err := a.tx.GetBalance(ctx, to)
	if err != nil {
		return err
	}
	return a.tx.SetBalance(ctx, to, new(big.Int).Add(bal, amount))
}

// Payer sends payouts from inside a ledger transaction
type Payer struct {
	newTransferer func(tx storage.Tx) Transferer
	logger        *slog.Logger
}

// NewPayer creates a payer that credits ledger accounts
func NewPayer(logger *slog.Logger) *Payer {
	return NewPayerWith(func(tx storage.Tx) Transferer { return NewAccountTransferer(tx) }, logger)
}

// NewPayerWith creates a payer with a custom transferer per transaction
func NewPayerWith(newTransferer func(tx storage.Tx) Transferer, logger *slog.Logger) *Payer {
	return &Payer{newTransferer: newTransferer, logger: logger}
}

// Pay sends amount to recipient using the transaction's transferer
func (p *Payer) Pay(ctx context.Context, tx storage.Tx, to common.Address, amount *big.Int, gasLimit uint64) error {
	return Send(ctx, p.newTransferer(tx), to, amount, gasLimit, p.logger)
}
