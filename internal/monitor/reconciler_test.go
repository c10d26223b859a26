package monitor

import (
	"context"
	"log"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/notify"
	"xrpl-bond-tracker/internal/storage"
	"xrpl-bond-tracker/internal/storage/memory"
)

// captureNotifier records events for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *captureNotifier) Notify(_ context.Context, event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) byKind(kind string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type reconcilerFixture struct {
	instruments *memory.InstrumentStore
	holders     *memory.HolderStore
	transfers   *memory.TransferStore
	notifier    *captureNotifier
	reconciler  *Reconciler
}

func newReconcilerFixture(t *testing.T, supply int64) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		instruments: memory.NewInstrumentStore(),
		holders:     memory.NewHolderStore(),
		transfers:   memory.NewTransferStore(),
		notifier:    &captureNotifier{},
	}
	f.reconciler = NewReconciler(ReconcilerOptions{
		Instruments: f.instruments,
		Holders:     f.holders,
		Transfers:   f.transfers,
		Locks:       storage.NewInstrumentLock(),
		Notifier:    f.notifier,
		Logger:      log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	inst := &domain.Instrument{
		ID:            "BOND-1",
		IssuerAddress: "rIssuer",
		TokenID:       "MPT-1",
		TokenName:     "Test Bond",
		TotalSupply:   big.NewInt(supply),
		Denomination:  big.NewInt(1000000),
		AssetScale:    6,
		Status:        domain.StatusActive,
		Stats: domain.InstrumentStats{
			TotalInvested:    new(big.Int),
			TotalCouponsPaid: new(big.Int),
		},
	}
	if err := f.instruments.Insert(context.Background(), inst); err != nil {
		t.Fatalf("insert instrument: %v", err)
	}
	return f
}

func (f *reconcilerFixture) apply(t *testing.T, txHash, from, to string, amount int64, ledgerIndex int64) {
	t.Helper()
	err := f.reconciler.ApplyTransfer(context.Background(), &domain.TransferRecord{
		InstrumentID: "BOND-1",
		TxHash:       txHash,
		LedgerIndex:  ledgerIndex,
		FromAddress:  from,
		ToAddress:    to,
		Amount:       big.NewInt(amount),
		Kind:         domain.TransferKindTransfer,
		Timestamp:    time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("ApplyTransfer %s: %v", txHash, err)
	}
}

func (f *reconcilerFixture) balance(t *testing.T, address string) *big.Int {
	t.Helper()
	h, err := f.holders.Get(context.Background(), "BOND-1", address)
	if err != nil {
		t.Fatalf("get holder %s: %v", address, err)
	}
	return h.Balance
}

func TestApplyTransfer_DebitCredit(t *testing.T) {
	f := newReconcilerFixture(t, 1000000)

	f.apply(t, "TX1", "rIssuer", "rAlice", 500, 100)
	f.apply(t, "TX2", "rAlice", "rBob", 200, 101)

	if got := f.balance(t, "rAlice"); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("alice balance = %s, want 300", got)
	}
	if got := f.balance(t, "rBob"); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("bob balance = %s, want 200", got)
	}

	newHolders := f.notifier.byKind(notify.KindNewHolder)
	if len(newHolders) != 2 {
		t.Errorf("new holder events = %d, want 2", len(newHolders))
	}
	if len(f.notifier.byKind(notify.KindTransfer)) != 2 {
		t.Errorf("transfer events = %d, want 2", len(f.notifier.byKind(notify.KindTransfer)))
	}
}

func TestApplyTransfer_SupplyConservation(t *testing.T) {
	f := newReconcilerFixture(t, 1000)

	f.apply(t, "TX1", "rIssuer", "rAlice", 600, 100)
	f.apply(t, "TX2", "rIssuer", "rBob", 400, 101)
	f.apply(t, "TX3", "rAlice", "rBob", 150, 102)
	f.apply(t, "TX4", "rBob", "rCarol", 75, 103)

	holders, err := f.holders.ListByInstrument(context.Background(), "BOND-1")
	if err != nil {
		t.Fatalf("list holders: %v", err)
	}
	total := new(big.Int)
	for _, h := range holders {
		total.Add(total, h.Balance)
	}
	if total.Cmp(big.NewInt(1000)) > 0 {
		t.Errorf("sum of balances %s exceeds total supply 1000", total)
	}
}

func TestApplyTransfer_ExactZeroExit(t *testing.T) {
	f := newReconcilerFixture(t, 1000000)

	f.apply(t, "TX1", "rIssuer", "rAlice", 500, 100)
	f.apply(t, "TX2", "rAlice", "rBob", 500, 101)

	if _, err := f.holders.Get(context.Background(), "BOND-1", "rAlice"); err != storage.ErrNotFound {
		t.Errorf("alice should have no record after exact-zero debit, got err=%v", err)
	}

	exits := f.notifier.byKind(notify.KindHolderExit)
	if len(exits) != 1 {
		t.Fatalf("holder exit events = %d, want exactly 1", len(exits))
	}
	if exits[0].Address != "rAlice" {
		t.Errorf("exit address = %q", exits[0].Address)
	}
}

func TestApplyTransfer_LargeBalanceEvent(t *testing.T) {
	f := newReconcilerFixture(t, 1000)

	// 10% exactly does not trip the threshold; it must be exceeded.
	f.apply(t, "TX1", "rIssuer", "rAlice", 100, 100)
	if got := len(f.notifier.byKind(notify.KindLargeBalance)); got != 0 {
		t.Errorf("10%% exactly raised %d large balance events", got)
	}

	f.apply(t, "TX2", "rIssuer", "rWhale", 101, 101)
	large := f.notifier.byKind(notify.KindLargeBalance)
	if len(large) != 1 {
		t.Fatalf("large balance events = %d, want 1", len(large))
	}
	if large[0].Address != "rWhale" || large[0].Percentage != 10.1 {
		t.Errorf("unexpected large balance event: %+v", large[0])
	}
}

func TestApplyTransfer_Idempotent(t *testing.T) {
	f := newReconcilerFixture(t, 1000000)

	f.apply(t, "TX1", "rIssuer", "rAlice", 500, 100)
	// Same event re-delivered after a reconnect.
	f.apply(t, "TX1", "rIssuer", "rAlice", 500, 100)

	if got := f.balance(t, "rAlice"); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("replay double-applied: balance = %s, want 500", got)
	}
	records, err := f.transfers.ListByInstrument(context.Background(), "BOND-1")
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("transfer records = %d, want 1", len(records))
	}
}

func TestApplyTransfer_UnknownInstrument(t *testing.T) {
	f := newReconcilerFixture(t, 1000000)

	err := f.reconciler.ApplyTransfer(context.Background(), &domain.TransferRecord{
		InstrumentID: "MISSING",
		TxHash:       "TX1",
		FromAddress:  "rA",
		ToAddress:    "rB",
		Amount:       big.NewInt(1),
	})
	if err != nil {
		t.Errorf("unknown instrument should be a no-op, got %v", err)
	}
}

func TestApplyTransfer_StatsRefresh(t *testing.T) {
	f := newReconcilerFixture(t, 1000)

	f.apply(t, "TX1", "rIssuer", "rAlice", 600, 100)
	f.apply(t, "TX2", "rIssuer", "rBob", 150, 101)

	inst, err := f.instruments.GetByID(context.Background(), "BOND-1")
	if err != nil {
		t.Fatalf("get instrument: %v", err)
	}
	if inst.Stats.HolderCount != 2 {
		t.Errorf("holder count = %d, want 2", inst.Stats.HolderCount)
	}
	if inst.Stats.TotalInvested.Cmp(big.NewInt(750)) != 0 {
		t.Errorf("total invested = %s, want 750", inst.Stats.TotalInvested)
	}
	if inst.Stats.PercentDistributed != 75.0 {
		t.Errorf("percent distributed = %v, want 75", inst.Stats.PercentDistributed)
	}
	if inst.Stats.LastTransferAt == 0 {
		t.Error("last transfer timestamp not set")
	}
}
