package memory

import (
	"context"
	"sort"
	"sync"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

type holderKey struct {
	instrumentID string
	address      string
}

// HolderStore is an in-memory implementation of storage.HolderStore.
type HolderStore struct {
	mu   sync.RWMutex
	data map[holderKey]*domain.HolderBalance
}

// NewHolderStore creates a new in-memory holder store.
func NewHolderStore() *HolderStore {
	return &HolderStore{data: make(map[holderKey]*domain.HolderBalance)}
}

// Get retrieves one holder's balance. Returns ErrNotFound if absent.
func (s *HolderStore) Get(_ context.Context, instrumentID, address string) (*domain.HolderBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.data[holderKey{instrumentID, address}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return h.Clone(), nil
}

// ListByInstrument retrieves all holder balances for an instrument,
// ordered by address ASC.
func (s *HolderStore) ListByInstrument(_ context.Context, instrumentID string) ([]*domain.HolderBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HolderBalance
	for k, h := range s.data {
		if k.instrumentID == instrumentID {
			result = append(result, h.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Put inserts or replaces a holder balance record.
func (s *HolderStore) Put(_ context.Context, h *domain.HolderBalance) error {
	if h == nil || h.InstrumentID == "" || h.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[holderKey{h.InstrumentID, h.Address}] = h.Clone()
	return nil
}

// Delete removes a holder balance record. Absent records are a no-op.
func (s *HolderStore) Delete(_ context.Context, instrumentID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, holderKey{instrumentID, address})
	return nil
}

var _ storage.HolderStore = (*HolderStore)(nil)
