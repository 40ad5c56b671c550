package domain

import "math/big"

var hundred = big.NewInt(100)

// ComputeFee splits a sale price into the marketplace fee and the seller's
// share. The fee is floored; afterFee + fee == price.
func ComputeFee(price *big.Int, feePercent uint64) (fee, afterFee *big.Int) {
	fee = new(big.Int).Mul(price, new(big.Int).SetUint64(feePercent))
	fee.Quo(fee, hundred)
	afterFee = new(big.Int).Sub(price, fee)
	return fee, afterFee
}
