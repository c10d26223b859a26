package postgres

import (
	"context"
	"fmt"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

// HolderStore implements storage.HolderStore using PostgreSQL.
type HolderStore struct {
	pool *Pool
}

// NewHolderStore creates a new HolderStore.
func NewHolderStore(pool *Pool) *HolderStore {
	return &HolderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

const holderColumns = `
	instrument_id, address, balance::text, authorized,
	first_acquired_at, last_updated_at, coupons_received::text
`

// Get retrieves one holder's balance. Returns ErrNotFound if absent.
func (s *HolderStore) Get(ctx context.Context, instrumentID, address string) (*domain.HolderBalance, error) {
	query := `SELECT ` + holderColumns + ` FROM holder_balances WHERE instrument_id = $1 AND address = $2`

	row := s.pool.QueryRow(ctx, query, instrumentID, address)
	h, err := scanHolder(row.Scan)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

// ListByInstrument retrieves all holder balances for an instrument,
// ordered by address ASC.
func (s *HolderStore) ListByInstrument(ctx context.Context, instrumentID string) ([]*domain.HolderBalance, error) {
	query := `SELECT ` + holderColumns + ` FROM holder_balances WHERE instrument_id = $1 ORDER BY address`

	rows, err := s.pool.Query(ctx, query, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	defer rows.Close()

	var result []*domain.HolderBalance
	for rows.Next() {
		h, err := scanHolder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// Put inserts or replaces a holder balance record.
func (s *HolderStore) Put(ctx context.Context, h *domain.HolderBalance) error {
	if h == nil || h.InstrumentID == "" || h.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO holder_balances (
			instrument_id, address, balance, authorized,
			first_acquired_at, last_updated_at, coupons_received
		) VALUES ($1, $2, $3::numeric, $4, $5, $6, $7::numeric)
		ON CONFLICT (instrument_id, address) DO UPDATE SET
			balance = EXCLUDED.balance,
			authorized = EXCLUDED.authorized,
			last_updated_at = EXCLUDED.last_updated_at,
			coupons_received = EXCLUDED.coupons_received
	`

	_, err := s.pool.Exec(ctx, query,
		h.InstrumentID, h.Address, bigToDecimal(h.Balance), h.Authorized,
		h.FirstAcquiredAt, h.LastUpdatedAt, bigToDecimal(h.CouponsReceived),
	)
	if err != nil {
		return fmt.Errorf("put holder balance: %w", err)
	}
	return nil
}

// Delete removes a holder balance record. Absent records are a no-op.
func (s *HolderStore) Delete(ctx context.Context, instrumentID, address string) error {
	query := `DELETE FROM holder_balances WHERE instrument_id = $1 AND address = $2`

	if _, err := s.pool.Exec(ctx, query, instrumentID, address); err != nil {
		return fmt.Errorf("delete holder balance: %w", err)
	}
	return nil
}

func scanHolder(scan func(...any) error) (*domain.HolderBalance, error) {
	var (
		h                 domain.HolderBalance
		balance, received string
	)
	err := scan(
		&h.InstrumentID, &h.Address, &balance, &h.Authorized,
		&h.FirstAcquiredAt, &h.LastUpdatedAt, &received,
	)
	if err != nil {
		return nil, err
	}

	if h.Balance, err = decimalToBig(balance); err != nil {
		return nil, err
	}
	if h.CouponsReceived, err = decimalToBig(received); err != nil {
		return nil, err
	}
	return &h, nil
}
