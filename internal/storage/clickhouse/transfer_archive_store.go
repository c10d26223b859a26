package clickhouse

import (
	"context"
	"fmt"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

// TransferArchiveStore implements storage.TransferArchive using ClickHouse.
// The archive is an analytics mirror of transfer records; the ReplacingMergeTree
// engine deduplicates replays on (instrument_id, ledger_index, tx_hash), so
// appends are safe to repeat.
type TransferArchiveStore struct {
	conn *Conn
}

// NewTransferArchiveStore creates a new TransferArchiveStore.
func NewTransferArchiveStore(conn *Conn) *TransferArchiveStore {
	return &TransferArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransferArchive = (*TransferArchiveStore)(nil)

// Append adds records to the archive.
func (s *TransferArchiveStore) Append(ctx context.Context, records []*domain.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transfer_archive (
			instrument_id, tx_hash, ledger_index, from_address, to_address,
			amount, kind, ts, memo
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		amount := "0"
		if r.Amount != nil {
			amount = r.Amount.String()
		}
		err = batch.Append(
			r.InstrumentID, r.TxHash, uint64(r.LedgerIndex),
			r.FromAddress, r.ToAddress,
			amount, string(r.Kind), uint64(r.Timestamp), r.Memo,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
