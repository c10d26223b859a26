package storage

import "sync"

// InstrumentLock serializes read-modify-write cycles per instrument.
// The transaction monitor and the coupon engine share one instance so
// balance reconciliation and coupon payouts for the same instrument
// never interleave.
type InstrumentLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewInstrumentLock creates an empty lock set.
func NewInstrumentLock() *InstrumentLock {
	return &InstrumentLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for an instrument id and returns the release
// function. Locks are created on first use and never reclaimed; the set
// of instruments in one process is small.
func (l *InstrumentLock) Acquire(instrumentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[instrumentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[instrumentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
