// Package monitor keeps local holder balances in sync with the ledger.
// It owns the subscription session, classifies incoming transaction
// events, and reconciles balances against them.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/observability"
	"xrpl-bond-tracker/internal/storage"
	"xrpl-bond-tracker/internal/xrpl"
)

// Monitor runs the ledger subscription with bounded reconnection.
// Events are processed one at a time in arrival order; together with
// the per-instrument lock this keeps balance updates single-writer.
type Monitor struct {
	endpoint     string
	clientConfig *xrpl.ClientConfig
	instruments  storage.InstrumentStore
	holders      storage.HolderStore
	locks        *storage.InstrumentLock
	classifier   *Classifier
	logger       *log.Logger

	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int

	mu       sync.Mutex
	running  bool
	disabled bool
	cancel   context.CancelFunc
	client   *xrpl.Client
	stopped  chan struct{}
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Endpoint     string
	ClientConfig *xrpl.ClientConfig
	Instruments  storage.InstrumentStore
	Holders      storage.HolderStore
	Locks        *storage.InstrumentLock
	Classifier   *Classifier
	Logger       *log.Logger

	BackoffBase time.Duration // Default: 1s
	BackoffCap  time.Duration // Default: 30s
	MaxAttempts int           // Default: 10
}

// NewMonitor creates a monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	base := opts.BackoffBase
	if base == 0 {
		base = time.Second
	}
	bcap := opts.BackoffCap
	if bcap == 0 {
		bcap = 30 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 10
	}
	locks := opts.Locks
	if locks == nil {
		locks = storage.NewInstrumentLock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		endpoint:     opts.Endpoint,
		clientConfig: opts.ClientConfig,
		instruments:  opts.Instruments,
		holders:      opts.Holders,
		locks:        locks,
		classifier:   opts.Classifier,
		logger:       logger,
		backoffBase:  base,
		backoffCap:   bcap,
		maxAttempts:  maxAttempts,
	}
}

// Start establishes the first session and begins consuming events.
// It fails if the initial connection cannot be established; session
// losses after that are retried with bounded exponential backoff.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	client, err := m.connect(runCtx)
	if err != nil {
		cancel()
		return err
	}

	m.running = true
	m.disabled = false
	m.cancel = cancel
	m.client = client
	m.stopped = make(chan struct{})
	go m.run(runCtx, client)

	m.logger.Println("transaction monitoring started")
	return nil
}

// Stop terminates the session without reconnecting. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, client, stopped := m.cancel, m.client, m.stopped
	m.mu.Unlock()

	cancel()
	if client != nil {
		client.Close()
	}
	<-stopped
	m.logger.Println("transaction monitoring stopped")
}

// Disabled reports whether monitoring was permanently disabled after
// exhausting reconnection attempts.
func (m *Monitor) Disabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabled
}

// connect dials a session and sets up subscriptions.
func (m *Monitor) connect(ctx context.Context) (*xrpl.Client, error) {
	m.logger.Printf("connecting to %s", m.endpoint)
	client, err := xrpl.Dial(ctx, m.endpoint, m.clientConfig)
	if err != nil {
		return nil, err
	}
	if err := m.subscribe(ctx, client); err != nil {
		client.Close()
		return nil, err
	}
	observability.SetSessionUp(true)
	return client, nil
}

// subscribe targets the issuer addresses of all active instruments and
// attaches to the global transaction stream. The global stream catches
// holder-to-holder transfers that never touch an issuer address; its
// failure degrades monitoring but does not abort it.
func (m *Monitor) subscribe(ctx context.Context, client *xrpl.Client) error {
	active, err := m.instruments.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		return fmt.Errorf("list active instruments: %w", err)
	}

	seen := make(map[string]bool)
	var accounts []string
	for _, inst := range active {
		addr := inst.IssuerAddress
		if !xrpl.IsValidAddress(addr) {
			if addr != "" {
				m.logger.Printf("skipping invalid issuer address %q", addr)
			}
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		accounts = append(accounts, addr)
	}

	if len(accounts) == 0 {
		m.logger.Println("no valid issuer addresses to watch")
	} else {
		if err := client.SubscribeAccounts(ctx, accounts); err != nil {
			return fmt.Errorf("subscribe to %d issuer accounts: %w", len(accounts), err)
		}
		m.logger.Printf("subscribed to %d issuer address(es)", len(accounts))
	}

	if err := client.SubscribeTransactionStream(ctx); err != nil {
		m.logger.Printf("global transaction stream unavailable: %v", err)
	} else {
		m.logger.Println("subscribed to global transaction stream")
	}
	return nil
}

// run consumes sessions until stopped or reconnection is exhausted.
func (m *Monitor) run(ctx context.Context, client *xrpl.Client) {
	defer close(m.stopped)

	for {
		m.consume(ctx, client)
		observability.SetSessionUp(false)
		client.Close()

		if ctx.Err() != nil {
			return
		}
		m.logger.Printf("session lost: %v", client.Err())

		next, ok := m.reconnect(ctx)
		if !ok {
			return
		}
		client = next
		m.mu.Lock()
		m.client = client
		m.mu.Unlock()
	}
}

// consume processes events from one session until it ends.
func (m *Monitor) consume(ctx context.Context, client *xrpl.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-client.Events():
			if !ok {
				return
			}
			start := time.Now()
			if err := m.classifier.Handle(ctx, event); err != nil {
				m.logger.Printf("handle event %s: %v", event.Hash, err)
				observability.RecordEventError("classify")
			}
			observability.DefaultMetrics.EventLatency.Observe(time.Since(start).Seconds())
		}
	}
}

// reconnect dials a fresh session with exponential backoff. Attempts
// are strictly sequential. Exhausting the bound permanently disables
// monitoring; the operator must intervene.
func (m *Monitor) reconnect(ctx context.Context) (*xrpl.Client, bool) {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		delay := backoffDelay(attempt, m.backoffBase, m.backoffCap)
		m.logger.Printf("reconnect attempt %d/%d in %v", attempt, m.maxAttempts, delay)
		observability.RecordReconnect()

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}

		client, err := m.connect(ctx)
		if err != nil {
			m.logger.Printf("reconnect failed: %v", err)
			continue
		}
		m.logger.Println("reconnected")
		return client, true
	}

	m.logger.Printf("giving up after %d reconnect attempts, monitoring disabled", m.maxAttempts)
	observability.SetMonitorDisabled()
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
	return nil, false
}

// backoffDelay computes the wait before a reconnect attempt:
// min(base × 2^attempt, cap).
func backoffDelay(attempt int, base, limit time.Duration) time.Duration {
	d := base << uint(attempt)
	if d > limit || d <= 0 {
		return limit
	}
	return d
}

// SyncHolders reconciles stored balances for one instrument against the
// ledger's own view. Useful after downtime or to verify consistency.
func (m *Monitor) SyncHolders(ctx context.Context, instrumentID string) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return errors.New("no active session")
	}

	inst, err := m.instruments.GetByID(ctx, instrumentID)
	if err != nil {
		return fmt.Errorf("load instrument %s: %w", instrumentID, err)
	}

	release := m.locks.Acquire(instrumentID)
	defer release()

	holders, err := m.holders.ListByInstrument(ctx, instrumentID)
	if err != nil {
		return fmt.Errorf("list holders of %s: %w", instrumentID, err)
	}

	for _, h := range holders {
		objects, err := client.AccountObjects(ctx, h.Address, "mptoken")
		if err != nil {
			m.logger.Printf("fetch ledger balance for %s: %v", h.Address, err)
			continue
		}

		ledgerBalance := new(big.Int)
		for _, obj := range objects {
			if obj.MPTID == inst.TokenID && obj.Amount != "" {
				if v, ok := new(big.Int).SetString(obj.Amount, 10); ok {
					ledgerBalance = v
				}
				break
			}
		}

		if ledgerBalance.Cmp(h.Balance) == 0 {
			continue
		}
		m.logger.Printf("balance mismatch for %s: local=%s ledger=%s",
			h.Address, h.Balance, ledgerBalance)

		if ledgerBalance.Sign() <= 0 {
			if err := m.holders.Delete(ctx, instrumentID, h.Address); err != nil {
				return fmt.Errorf("remove holder %s: %w", h.Address, err)
			}
			continue
		}
		h.Balance = ledgerBalance
		h.LastUpdatedAt = time.Now().UnixMilli()
		if err := m.holders.Put(ctx, h); err != nil {
			return fmt.Errorf("correct holder %s: %w", h.Address, err)
		}
	}

	m.logger.Printf("holder sync complete for %s", instrumentID)
	return nil
}
