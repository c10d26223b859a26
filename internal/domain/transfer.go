package domain

import "math/big"

// TransferKind distinguishes token transfers from coupon cash payouts.
type TransferKind string

const (
	TransferKindTransfer TransferKind = "transfer"
	TransferKindCoupon   TransferKind = "coupon"
)

// TransferRecord is one reconciled ledger transfer. Append-only:
// records are never mutated or deleted once written. (instrument_id,
// tx_hash) is the idempotency key for replayed ledger events.
type TransferRecord struct {
	InstrumentID string
	TxHash       string
	LedgerIndex  int64
	FromAddress  string
	ToAddress    string
	Amount       *big.Int
	Kind         TransferKind
	Timestamp    int64 // unix ms, converted from ledger epoch
	Memo         string
}

// Clone returns a deep copy, including the amount.
func (t *TransferRecord) Clone() *TransferRecord {
	c := *t
	c.Amount = cloneBig(t.Amount)
	return &c
}
