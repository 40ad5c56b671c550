package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"checksummed", "0x90F79bf6EB2c4f870365E785982E1f101E93b906", false},
		{"lowercase", "0x90f79bf6eb2c4f870365e785982e1f101e93b906", false},
		{"no prefix", "90f79bf6eb2c4f870365e785982e1f101e93b906", true},
		{"too short", "0x1234", true},
		{"non hex", "0xZZf79bf6eb2c4f870365e785982e1f101e93b906", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(Ether(1)))

	_, err = ParseAmount("-1")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("1.5")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestContractAddress(t *testing.T) {
	// First two contracts deployed by the default hardhat account.
	deployer := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), ContractAddress(deployer, 0))
	assert.Equal(t, common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"), ContractAddress(deployer, 1))
}

func TestRequestID(t *testing.T) {
	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	a := RequestID(contract, 1)
	b := RequestID(contract, 2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, RequestID(contract, 1))

	parsed, err := ParseRequestID(a.Hex())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	for _, bad := range []string{
		"",
		"0x1234",
		"0x",
		a.Hex()[2:],
		"0x" + strings.Repeat("zz", common.HashLength),
		a.Hex() + "00",
		a.Hex()[:len(a.Hex())-1],
	} {
		_, err = ParseRequestID(bad)
		assert.Error(t, err, bad)
	}

	upper, err := ParseRequestID("0X" + strings.ToUpper(a.Hex()[2:]))
	require.NoError(t, err)
	assert.Equal(t, a, upper)
}

func TestEther(t *testing.T) {
	want, _ := new(big.Int).SetString("2000000000000000000", 10)
	assert.Equal(t, 0, Ether(2).Cmp(want))
}
