// Package chain holds the EVM primitives the ledger is expressed in:
// addresses, wei amounts, contract addresses and oracle request ids.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// GasPerTransfer is the stipend a plain value transfer consumes.
const GasPerTransfer uint64 = 2300

// DefaultCollectGasLimit is used when a payout is requested without a gas limit.
const DefaultCollectGasLimit = GasPerTransfer

// ZeroAddress is the null address used by the sentinel listing.
var ZeroAddress = common.Address{}

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%w: %q must start with 0x", ErrInvalidAddress, s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a non-negative decimal wei amount.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return v, nil
}

// Ether converts a whole ether amount to wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerEther)
}

// ContractAddress returns the address a contract created by deployer at the
// given account nonce is assigned.
func ContractAddress(deployer common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(deployer, nonce)
}

// RequestID derives an oracle request id from the requesting contract and its
// request counter.
func RequestID(contract common.Address, nonce uint64) common.Hash {
	n := common.BigToHash(new(big.Int).SetUint64(nonce))
	return crypto.Keccak256Hash(contract.Bytes(), n.Bytes())
}

// ParseRequestID parses a 0x-prefixed 32-byte hex request id.
func ParseRequestID(s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid request id %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid request id %q: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}
