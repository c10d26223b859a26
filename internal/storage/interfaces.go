package storage

import (
	"context"

	"xrpl-bond-tracker/internal/domain"
)

// InstrumentStore provides access to instrument records.
type InstrumentStore interface {
	// Insert adds a new instrument. Returns ErrDuplicateKey if the id
	// or token id already exists.
	Insert(ctx context.Context, inst *domain.Instrument) error

	// GetByID retrieves an instrument by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.Instrument, error)

	// GetByTokenID retrieves the instrument backing a ledger token id.
	// Returns ErrNotFound if no instrument tracks that token.
	GetByTokenID(ctx context.Context, tokenID string) (*domain.Instrument, error)

	// ListByStatus retrieves all instruments in the given status.
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Instrument, error)

	// Update persists changes to an existing instrument.
	// Returns ErrNotFound if the instrument does not exist.
	Update(ctx context.Context, inst *domain.Instrument) error
}

// HolderStore provides access to holder balances, scoped per instrument.
type HolderStore interface {
	// Get retrieves one holder's balance. Returns ErrNotFound if absent.
	Get(ctx context.Context, instrumentID, address string) (*domain.HolderBalance, error)

	// ListByInstrument retrieves all holder balances for an instrument,
	// ordered by address ASC.
	ListByInstrument(ctx context.Context, instrumentID string) ([]*domain.HolderBalance, error)

	// Put inserts or replaces a holder balance record.
	Put(ctx context.Context, h *domain.HolderBalance) error

	// Delete removes a holder balance record. Deleting an absent record
	// is not an error.
	Delete(ctx context.Context, instrumentID, address string) error
}

// TransferStore provides append-only access to transfer records.
type TransferStore interface {
	// Insert adds a new transfer record. Returns ErrDuplicateKey if a
	// record with the same (instrument_id, tx_hash) exists.
	Insert(ctx context.Context, t *domain.TransferRecord) error

	// Exists reports whether a record with (instrument_id, tx_hash)
	// has already been written.
	Exists(ctx context.Context, instrumentID, txHash string) (bool, error)

	// ListByInstrument retrieves all records for an instrument,
	// ordered by ledger index ASC.
	ListByInstrument(ctx context.Context, instrumentID string) ([]*domain.TransferRecord, error)

	// ListByHolder retrieves records where the address is sender or
	// recipient, ordered by ledger index ASC.
	ListByHolder(ctx context.Context, instrumentID, address string) ([]*domain.TransferRecord, error)
}

// TransferArchive is a best-effort analytics mirror of transfer records.
// Write failures are logged by callers and never affect reconciliation.
type TransferArchive interface {
	// Append adds records to the archive.
	Append(ctx context.Context, records []*domain.TransferRecord) error
}
