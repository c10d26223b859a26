package domain

import "math/big"

// Status is the lifecycle state of an instrument.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusMatured   Status = "matured"
	StatusDefaulted Status = "defaulted"
	StatusCancelled Status = "cancelled"
)

// CanTransitionTo reports whether a status change is allowed.
// Transitions are one-directional: pending→active and
// active→{matured, defaulted, cancelled}. Terminal states never change.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusMatured || next == StatusDefaulted || next == StatusCancelled
	default:
		return false
	}
}

// Frequency is the coupon payment frequency.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi-annual"
	FrequencyAnnual     Frequency = "annual"
	FrequencyNone       Frequency = "none"
)

// Months returns the calendar-month increment for one period,
// or 0 for annual (year-based) and none (no advancement).
func (f Frequency) Months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnual:
		return 6
	default:
		return 0
	}
}

// InstrumentStats is the denormalized statistics block maintained
// alongside an instrument. Derived data, never authoritative.
type InstrumentStats struct {
	HolderCount        int
	TotalInvested      *big.Int // sum of holder balances
	PercentDistributed float64  // % of total supply held by investors
	LastTransferAt     int64    // unix ms, 0 if never
	TotalCouponsPaid   *big.Int // sum of successful coupon payouts
}

// Instrument is a tokenized debt obligation issued on the XRPL.
// Total supply is fixed at issuance. Token amounts are arbitrary-precision
// integers; decimal-string conversion happens only at the storage boundary.
type Instrument struct {
	ID            string
	IssuerAddress string
	IssuerName    string
	TokenID       string // MPT issuance id on the ledger
	TokenName     string

	TotalSupply  *big.Int
	Denomination *big.Int // face value per token
	AssetScale   int      // decimal scaling: amounts are 10^AssetScale units
	RateBps      int64    // coupon rate in basis points (500 = 5.00%)
	Frequency    Frequency

	IssueDate      int64 // unix ms
	MaturityDate   int64 // unix ms
	NextCouponDate int64 // unix ms

	Status      Status
	Description string
	Stats       InstrumentStats
}

// Scale returns 10^AssetScale as a big integer.
func (i *Instrument) Scale() *big.Int {
	scale := big.NewInt(1)
	ten := big.NewInt(10)
	for n := 0; n < i.AssetScale; n++ {
		scale.Mul(scale, ten)
	}
	return scale
}

// Clone returns a deep copy, including big.Int fields.
func (i *Instrument) Clone() *Instrument {
	c := *i
	c.TotalSupply = cloneBig(i.TotalSupply)
	c.Denomination = cloneBig(i.Denomination)
	c.Stats.TotalInvested = cloneBig(i.Stats.TotalInvested)
	c.Stats.TotalCouponsPaid = cloneBig(i.Stats.TotalCouponsPaid)
	return &c
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
