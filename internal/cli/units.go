package cli

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"github.com/nomadhouse/nomadhouse/internal/chain"
)

var units = []struct {
	suffix string
	wei    *big.Int
}{
	{"ether", big.NewInt(params.Ether)},
	{"eth", big.NewInt(params.Ether)},
	{"gwei", big.NewInt(params.GWei)},
	{"wei", big.NewInt(params.Wei)},
}

// parseAmount turns "1.5eth", "20gwei" or a plain wei integer into a decimal
// wei string
func parseAmount(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, u := range units {
		num, ok := strings.CutSuffix(s, u.suffix)
		if !ok {
			continue
		}
		r, ok := new(big.Rat).SetString(strings.TrimSpace(num))
		if !ok || r.Sign() < 0 {
			return "", fmt.Errorf("invalid amount %q", s)
		}
		r.Mul(r, new(big.Rat).SetInt(u.wei))
		if !r.IsInt() {
			return "", fmt.Errorf("amount %q is not a whole number of wei", s)
		}
		return r.Num().String(), nil
	}
	v, err := chain.ParseAmount(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// formatEther renders a decimal wei string in ether
func formatEther(wei string) string {
	v, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return wei
	}
	r := new(big.Rat).SetFrac(v, big.NewInt(params.Ether))
	out := strings.TrimRight(r.FloatString(18), "0")
	return strings.TrimSuffix(out, ".") + " ETH"
}
