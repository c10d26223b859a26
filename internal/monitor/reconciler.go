package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/notify"
	"xrpl-bond-tracker/internal/observability"
	"xrpl-bond-tracker/internal/storage"
)

// largeBalanceThresholdPct is the ownership percentage above which a
// large-position notification is raised.
const largeBalanceThresholdPct = 10.0

// Reconciler applies classified transfers to the holder-balance ledger.
// All balance arithmetic is big.Int; amounts never pass through floats.
type Reconciler struct {
	instruments storage.InstrumentStore
	holders     storage.HolderStore
	transfers   storage.TransferStore
	archive     storage.TransferArchive
	locks       *storage.InstrumentLock
	notifier    notify.Notifier
	logger      *log.Logger
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Instruments storage.InstrumentStore
	Holders     storage.HolderStore
	Transfers   storage.TransferStore
	Archive     storage.TransferArchive // optional analytics mirror
	Locks       *storage.InstrumentLock
	Notifier    notify.Notifier
	Logger      *log.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	locks := opts.Locks
	if locks == nil {
		locks = storage.NewInstrumentLock()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		instruments: opts.Instruments,
		holders:     opts.Holders,
		transfers:   opts.Transfers,
		archive:     opts.Archive,
		locks:       locks,
		notifier:    notifier,
		logger:      logger,
	}
}

// ApplyTransfer reconciles one ledger transfer against local balances.
// Replayed events (same instrument and tx hash) are skipped, so the
// same validated event delivered twice never double-applies a delta.
func (r *Reconciler) ApplyTransfer(ctx context.Context, rec *domain.TransferRecord) error {
	release := r.locks.Acquire(rec.InstrumentID)
	defer release()

	applied, err := r.transfers.Exists(ctx, rec.InstrumentID, rec.TxHash)
	if err != nil {
		return fmt.Errorf("check transfer %s: %w", rec.TxHash, err)
	}
	if applied {
		r.logger.Printf("transfer %s already applied to %s, skipping", rec.TxHash, rec.InstrumentID)
		observability.RecordTransferDuplicate()
		return nil
	}

	inst, err := r.instruments.GetByID(ctx, rec.InstrumentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("transfer %s references unknown instrument %s, ignoring", rec.TxHash, rec.InstrumentID)
			return nil
		}
		return fmt.Errorf("load instrument %s: %w", rec.InstrumentID, err)
	}

	now := time.Now().UnixMilli()

	if err := r.debit(ctx, inst, rec.FromAddress, rec.Amount, now); err != nil {
		return err
	}
	if err := r.credit(ctx, inst, rec.ToAddress, rec.Amount, now); err != nil {
		return err
	}

	if err := r.transfers.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record transfer %s: %w", rec.TxHash, err)
	}
	if r.archive != nil {
		if err := r.archive.Append(ctx, []*domain.TransferRecord{rec.Clone()}); err != nil {
			r.logger.Printf("archive transfer %s: %v", rec.TxHash, err)
		}
	}

	if err := r.refreshStats(ctx, inst, rec.Timestamp); err != nil {
		r.logger.Printf("refresh stats for %s: %v", inst.ID, err)
	}

	event := notify.NewEvent(notify.KindTransfer, inst.ID)
	event.InstrumentName = inst.TokenName
	event.FromAddress = rec.FromAddress
	event.ToAddress = rec.ToAddress
	event.Amount = rec.Amount.String()
	event.TxHash = rec.TxHash
	r.notifier.Notify(ctx, event)
	observability.RecordNotification(notify.KindTransfer)
	observability.RecordTransferApplied()

	return nil
}

// debit reduces the sender's balance. A balance falling to zero or
// below deletes the record and raises a holder-exit event. A sender
// with no record (the issuer's initial distribution) is left alone.
func (r *Reconciler) debit(ctx context.Context, inst *domain.Instrument, address string, amount *big.Int, now int64) error {
	sender, err := r.holders.Get(ctx, inst.ID, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load sender %s: %w", address, err)
	}

	balance := new(big.Int).Sub(sender.Balance, amount)
	if balance.Sign() <= 0 {
		if err := r.holders.Delete(ctx, inst.ID, address); err != nil {
			return fmt.Errorf("delete exited holder %s: %w", address, err)
		}
		r.logger.Printf("holder %s exited %s", address, inst.ID)

		event := notify.NewEvent(notify.KindHolderExit, inst.ID)
		event.InstrumentName = inst.TokenName
		event.Address = address
		r.notifier.Notify(ctx, event)
		observability.RecordNotification(notify.KindHolderExit)
		return nil
	}

	sender.Balance = balance
	sender.LastUpdatedAt = now
	if err := r.holders.Put(ctx, sender); err != nil {
		return fmt.Errorf("update sender %s: %w", address, err)
	}
	return nil
}

// credit increases the recipient's balance, creating the record on
// first acquisition, and raises large-position events past the
// ownership threshold.
func (r *Reconciler) credit(ctx context.Context, inst *domain.Instrument, address string, amount *big.Int, now int64) error {
	recipient, err := r.holders.Get(ctx, inst.ID, address)
	isNew := false
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load recipient %s: %w", address, err)
		}
		recipient = &domain.HolderBalance{
			InstrumentID:    inst.ID,
			Address:         address,
			Balance:         new(big.Int),
			FirstAcquiredAt: now,
			CouponsReceived: new(big.Int),
		}
		isNew = true
	}

	// An authorization stub holds a zero balance; its first credit is
	// still a new holder.
	if !isNew && recipient.Balance.Sign() == 0 {
		isNew = true
		if recipient.FirstAcquiredAt == 0 {
			recipient.FirstAcquiredAt = now
		}
	}

	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	recipient.LastUpdatedAt = now
	if err := r.holders.Put(ctx, recipient); err != nil {
		return fmt.Errorf("update recipient %s: %w", address, err)
	}

	if isNew {
		r.logger.Printf("new holder %s of %s with balance %s", address, inst.ID, recipient.Balance)
		event := notify.NewEvent(notify.KindNewHolder, inst.ID)
		event.InstrumentName = inst.TokenName
		event.Address = address
		event.Amount = recipient.Balance.String()
		r.notifier.Notify(ctx, event)
		observability.RecordNotification(notify.KindNewHolder)
	}

	if pct := recipient.OwnershipPercent(inst.TotalSupply); pct > largeBalanceThresholdPct {
		r.logger.Printf("large position: %s holds %.2f%% of %s", address, pct, inst.ID)
		event := notify.NewEvent(notify.KindLargeBalance, inst.ID)
		event.InstrumentName = inst.TokenName
		event.Address = address
		event.Amount = recipient.Balance.String()
		event.Percentage = pct
		r.notifier.Notify(ctx, event)
		observability.RecordNotification(notify.KindLargeBalance)
	}
	return nil
}

// refreshStats recomputes the denormalized statistics block from the
// current holder set.
func (r *Reconciler) refreshStats(ctx context.Context, inst *domain.Instrument, transferredAt int64) error {
	holders, err := r.holders.ListByInstrument(ctx, inst.ID)
	if err != nil {
		return err
	}

	invested := new(big.Int)
	count := 0
	for _, h := range holders {
		if h.Balance.Sign() > 0 {
			invested.Add(invested, h.Balance)
			count++
		}
	}

	current, err := r.instruments.GetByID(ctx, inst.ID)
	if err != nil {
		return err
	}
	current.Stats.HolderCount = count
	current.Stats.TotalInvested = invested
	if current.TotalSupply.Sign() > 0 {
		bps := new(big.Int).Mul(invested, big.NewInt(10000))
		bps.Quo(bps, current.TotalSupply)
		current.Stats.PercentDistributed = float64(bps.Int64()) / 100
	}
	current.Stats.LastTransferAt = transferredAt
	if err := r.instruments.Update(ctx, current); err != nil {
		return err
	}

	observability.SetHoldersTracked(inst.ID, count)
	return nil
}
