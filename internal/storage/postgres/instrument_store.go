package postgres

import (
	"context"
	"fmt"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

// InstrumentStore implements storage.InstrumentStore using PostgreSQL.
type InstrumentStore struct {
	pool *Pool
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(pool *Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

const instrumentColumns = `
	id, issuer_address, issuer_name, token_id, token_name,
	total_supply::text, denomination::text, asset_scale, rate_bps, frequency,
	issue_date, maturity_date, next_coupon_date, status, description,
	holder_count, total_invested::text, percent_distributed, last_transfer_at,
	total_coupons_paid::text
`

// Insert adds a new instrument. Returns ErrDuplicateKey if the id or
// token id already exists.
func (s *InstrumentStore) Insert(ctx context.Context, inst *domain.Instrument) error {
	if inst == nil || inst.ID == "" || inst.TokenID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO instruments (
			id, issuer_address, issuer_name, token_id, token_name,
			total_supply, denomination, asset_scale, rate_bps, frequency,
			issue_date, maturity_date, next_coupon_date, status, description,
			holder_count, total_invested, percent_distributed, last_transfer_at,
			total_coupons_paid
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7::numeric, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17::numeric, $18, $19,
			$20::numeric
		)
	`

	_, err := s.pool.Exec(ctx, query,
		inst.ID, inst.IssuerAddress, inst.IssuerName, inst.TokenID, inst.TokenName,
		bigToDecimal(inst.TotalSupply), bigToDecimal(inst.Denomination), inst.AssetScale,
		inst.RateBps, string(inst.Frequency),
		inst.IssueDate, inst.MaturityDate, inst.NextCouponDate, string(inst.Status), inst.Description,
		inst.Stats.HolderCount, bigToDecimal(inst.Stats.TotalInvested),
		inst.Stats.PercentDistributed, inst.Stats.LastTransferAt,
		bigToDecimal(inst.Stats.TotalCouponsPaid),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert instrument: %w", err)
	}
	return nil
}

// GetByID retrieves an instrument by id. Returns ErrNotFound if absent.
func (s *InstrumentStore) GetByID(ctx context.Context, id string) (*domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE id = $1`
	return s.scanOne(ctx, query, id)
}

// GetByTokenID retrieves the instrument backing a ledger token id.
func (s *InstrumentStore) GetByTokenID(ctx context.Context, tokenID string) (*domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE token_id = $1`
	return s.scanOne(ctx, query, tokenID)
}

// ListByStatus retrieves all instruments in the given status, ordered by id.
func (s *InstrumentStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE status = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var result []*domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

// Update persists changes to an existing instrument.
func (s *InstrumentStore) Update(ctx context.Context, inst *domain.Instrument) error {
	if inst == nil || inst.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE instruments SET
			issuer_address = $2, issuer_name = $3, token_id = $4, token_name = $5,
			total_supply = $6::numeric, denomination = $7::numeric, asset_scale = $8,
			rate_bps = $9, frequency = $10,
			issue_date = $11, maturity_date = $12, next_coupon_date = $13,
			status = $14, description = $15,
			holder_count = $16, total_invested = $17::numeric,
			percent_distributed = $18, last_transfer_at = $19,
			total_coupons_paid = $20::numeric
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		inst.ID, inst.IssuerAddress, inst.IssuerName, inst.TokenID, inst.TokenName,
		bigToDecimal(inst.TotalSupply), bigToDecimal(inst.Denomination), inst.AssetScale,
		inst.RateBps, string(inst.Frequency),
		inst.IssueDate, inst.MaturityDate, inst.NextCouponDate, string(inst.Status), inst.Description,
		inst.Stats.HolderCount, bigToDecimal(inst.Stats.TotalInvested),
		inst.Stats.PercentDistributed, inst.Stats.LastTransferAt,
		bigToDecimal(inst.Stats.TotalCouponsPaid),
	)
	if err != nil {
		return fmt.Errorf("update instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *InstrumentStore) scanOne(ctx context.Context, query string, arg any) (*domain.Instrument, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	inst, err := scanInstrument(row.Scan)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return inst, nil
}

func scanInstrument(scan func(...any) error) (*domain.Instrument, error) {
	var (
		inst                                               domain.Instrument
		supply, denom, invested, couponsPaid, freq, status string
	)
	err := scan(
		&inst.ID, &inst.IssuerAddress, &inst.IssuerName, &inst.TokenID, &inst.TokenName,
		&supply, &denom, &inst.AssetScale, &inst.RateBps, &freq,
		&inst.IssueDate, &inst.MaturityDate, &inst.NextCouponDate, &status, &inst.Description,
		&inst.Stats.HolderCount, &invested, &inst.Stats.PercentDistributed,
		&inst.Stats.LastTransferAt, &couponsPaid,
	)
	if err != nil {
		return nil, err
	}

	inst.Frequency = domain.Frequency(freq)
	inst.Status = domain.Status(status)

	if inst.TotalSupply, err = decimalToBig(supply); err != nil {
		return nil, err
	}
	if inst.Denomination, err = decimalToBig(denom); err != nil {
		return nil, err
	}
	if inst.Stats.TotalInvested, err = decimalToBig(invested); err != nil {
		return nil, err
	}
	if inst.Stats.TotalCouponsPaid, err = decimalToBig(couponsPaid); err != nil {
		return nil, err
	}
	return &inst, nil
}
