package postgres

import (
	"context"
	"fmt"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
// The table is append-only; there is no update or delete path.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

const transferColumns = `
	instrument_id, tx_hash, ledger_index, from_address, to_address,
	amount::text, kind, ts, memo
`

// Insert adds a new transfer record. Returns ErrDuplicateKey if a record
// with the same (instrument_id, tx_hash) exists.
func (s *TransferStore) Insert(ctx context.Context, t *domain.TransferRecord) error {
	if t == nil || t.InstrumentID == "" || t.TxHash == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transfer_records (
			instrument_id, tx_hash, ledger_index, from_address, to_address,
			amount, kind, ts, memo
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		t.InstrumentID, t.TxHash, t.LedgerIndex, t.FromAddress, t.ToAddress,
		bigToDecimal(t.Amount), string(t.Kind), t.Timestamp, t.Memo,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer record: %w", err)
	}
	return nil
}

// Exists reports whether a record with (instrument_id, tx_hash) has been written.
func (s *TransferStore) Exists(ctx context.Context, instrumentID, txHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transfer_records WHERE instrument_id = $1 AND tx_hash = $2)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, instrumentID, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transfer exists: %w", err)
	}
	return exists, nil
}

// ListByInstrument retrieves all records for an instrument, ordered by
// ledger index ASC.
func (s *TransferStore) ListByInstrument(ctx context.Context, instrumentID string) ([]*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfer_records WHERE instrument_id = $1
		ORDER BY ledger_index, tx_hash`

	return s.list(ctx, query, instrumentID)
}

// ListByHolder retrieves records where the address is sender or recipient,
// ordered by ledger index ASC.
func (s *TransferStore) ListByHolder(ctx context.Context, instrumentID, address string) ([]*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfer_records
		WHERE instrument_id = $1 AND (from_address = $2 OR to_address = $2)
		ORDER BY ledger_index, tx_hash`

	return s.list(ctx, query, instrumentID, address)
}

func (s *TransferStore) list(ctx context.Context, query string, args ...any) ([]*domain.TransferRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfer records: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransferRecord
	for rows.Next() {
		var (
			t            domain.TransferRecord
			amount, kind string
		)
		err := rows.Scan(
			&t.InstrumentID, &t.TxHash, &t.LedgerIndex, &t.FromAddress, &t.ToAddress,
			&amount, &kind, &t.Timestamp, &t.Memo,
		)
		if err != nil {
			return nil, err
		}
		if t.Amount, err = decimalToBig(amount); err != nil {
			return nil, err
		}
		t.Kind = domain.TransferKind(kind)
		result = append(result, &t)
	}
	return result, rows.Err()
}
