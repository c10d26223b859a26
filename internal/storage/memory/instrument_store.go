package memory

import (
	"context"
	"sort"
	"sync"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

// InstrumentStore is an in-memory implementation of storage.InstrumentStore.
type InstrumentStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Instrument
	byToken map[string]string // token id -> instrument id
}

// NewInstrumentStore creates a new in-memory instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		byID:    make(map[string]*domain.Instrument),
		byToken: make(map[string]string),
	}
}

// Insert adds a new instrument. Returns ErrDuplicateKey if the id or
// token id already exists.
func (s *InstrumentStore) Insert(_ context.Context, inst *domain.Instrument) error {
	if inst == nil || inst.ID == "" || inst.TokenID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[inst.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byToken[inst.TokenID]; exists {
		return storage.ErrDuplicateKey
	}

	s.byID[inst.ID] = inst.Clone()
	s.byToken[inst.TokenID] = inst.ID
	return nil
}

// GetByID retrieves an instrument by id. Returns ErrNotFound if absent.
func (s *InstrumentStore) GetByID(_ context.Context, id string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return inst.Clone(), nil
}

// GetByTokenID retrieves the instrument backing a ledger token id.
func (s *InstrumentStore) GetByTokenID(_ context.Context, tokenID string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byToken[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// ListByStatus retrieves all instruments in the given status, ordered by id.
func (s *InstrumentStore) ListByStatus(_ context.Context, status domain.Status) ([]*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Instrument
	for _, inst := range s.byID {
		if inst.Status == status {
			result = append(result, inst.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Update persists changes to an existing instrument.
func (s *InstrumentStore) Update(_ context.Context, inst *domain.Instrument) error {
	if inst == nil || inst.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.byID[inst.ID]
	if !exists {
		return storage.ErrNotFound
	}

	delete(s.byToken, prev.TokenID)
	s.byID[inst.ID] = inst.Clone()
	s.byToken[inst.TokenID] = inst.ID
	return nil
}

var _ storage.InstrumentStore = (*InstrumentStore)(nil)
