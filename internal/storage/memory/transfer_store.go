package memory

import (
	"context"
	"sort"
	"sync"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

type transferKey struct {
	instrumentID string
	txHash       string
}

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[transferKey]*domain.TransferRecord
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{data: make(map[transferKey]*domain.TransferRecord)}
}

// Insert adds a new transfer record. Returns ErrDuplicateKey if a record
// with the same (instrument_id, tx_hash) exists.
func (s *TransferStore) Insert(_ context.Context, t *domain.TransferRecord) error {
	if t == nil || t.InstrumentID == "" || t.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := transferKey{t.InstrumentID, t.TxHash}
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[k] = t.Clone()
	return nil
}

// Exists reports whether a record with (instrument_id, tx_hash) has been written.
func (s *TransferStore) Exists(_ context.Context, instrumentID, txHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[transferKey{instrumentID, txHash}]
	return exists, nil
}

// ListByInstrument retrieves all records for an instrument, ordered by
// ledger index ASC.
func (s *TransferStore) ListByInstrument(_ context.Context, instrumentID string) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for k, t := range s.data {
		if k.instrumentID == instrumentID {
			result = append(result, t.Clone())
		}
	}

	sortTransfers(result)
	return result, nil
}

// ListByHolder retrieves records where the address is sender or recipient,
// ordered by ledger index ASC.
func (s *TransferStore) ListByHolder(_ context.Context, instrumentID, address string) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for k, t := range s.data {
		if k.instrumentID == instrumentID && (t.FromAddress == address || t.ToAddress == address) {
			result = append(result, t.Clone())
		}
	}

	sortTransfers(result)
	return result, nil
}

func sortTransfers(records []*domain.TransferRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].LedgerIndex != records[j].LedgerIndex {
			return records[i].LedgerIndex < records[j].LedgerIndex
		}
		return records[i].TxHash < records[j].TxHash
	})
}

var _ storage.TransferStore = (*TransferStore)(nil)
