package domain

import "math/big"

// HolderBalance is one address's position in one instrument.
// A persisted record always has Balance > 0 except for authorization
// stubs created before the first transfer; a balance reaching zero
// deletes the record rather than storing zero.
type HolderBalance struct {
	InstrumentID string
	Address      string
	Balance      *big.Int
	Authorized   bool

	FirstAcquiredAt int64 // unix ms
	LastUpdatedAt   int64 // unix ms

	CouponsReceived *big.Int // cumulative coupon payouts
}

// OwnershipPercent computes the holder's share of total supply as a
// truncated percentage with two decimal places: floor(balance × 10000 /
// totalSupply) / 100. Truncation never overstates small holders.
func (h *HolderBalance) OwnershipPercent(totalSupply *big.Int) float64 {
	if h.Balance == nil || totalSupply == nil || totalSupply.Sign() <= 0 {
		return 0
	}
	bps := new(big.Int).Mul(h.Balance, big.NewInt(10000))
	bps.Quo(bps, totalSupply)
	return float64(bps.Int64()) / 100
}

// Clone returns a deep copy, including big.Int fields.
func (h *HolderBalance) Clone() *HolderBalance {
	c := *h
	c.Balance = cloneBig(h.Balance)
	c.CouponsReceived = cloneBig(h.CouponsReceived)
	return &c
}
