package coupon

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/observability"
	"xrpl-bond-tracker/internal/storage"
)

// PaymentSubmitter submits one settlement payment to the ledger and
// returns the transaction hash once validated.
type PaymentSubmitter interface {
	SubmitCouponPayment(ctx context.Context, inst *domain.Instrument, destination string, amount *big.Int) (string, error)
}

// Payment is one holder's computed share of a coupon run.
type Payment struct {
	InstrumentID string
	Address      string
	Balance      *big.Int
	Amount       *big.Int
}

// Engine computes per-holder coupon amounts and settles them.
// All coupon arithmetic is integer; per-holder truncation is
// intentional, so the sum of payouts never exceeds the nominal pool.
type Engine struct {
	instruments storage.InstrumentStore
	holders     storage.HolderStore
	transfers   storage.TransferStore
	archive     storage.TransferArchive
	locks       *storage.InstrumentLock
	submitter   PaymentSubmitter
	issuer      string
	logger      *log.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Instruments   storage.InstrumentStore
	Holders       storage.HolderStore
	Transfers     storage.TransferStore
	Archive       storage.TransferArchive // optional analytics mirror
	Locks         *storage.InstrumentLock
	Submitter     PaymentSubmitter
	IssuerAddress string
	Logger        *log.Logger
}

// NewEngine creates a distribution engine.
func NewEngine(opts EngineOptions) *Engine {
	locks := opts.Locks
	if locks == nil {
		locks = storage.NewInstrumentLock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		instruments: opts.Instruments,
		holders:     opts.Holders,
		transfers:   opts.Transfers,
		archive:     opts.Archive,
		locks:       locks,
		submitter:   opts.Submitter,
		issuer:      opts.IssuerAddress,
		logger:      logger,
	}
}

// ComputeCouponAmount returns one holder's integer payout:
// perToken = floor(denomination × rateBps / 10000), then
// floor(balance × perToken / 10^assetScale). Deterministic for
// identical inputs.
func ComputeCouponAmount(inst *domain.Instrument, balance *big.Int) *big.Int {
	perToken := new(big.Int).Mul(inst.Denomination, big.NewInt(inst.RateBps))
	perToken.Quo(perToken, big.NewInt(10000))

	amount := new(big.Int).Mul(balance, perToken)
	amount.Quo(amount, inst.Scale())
	return amount
}

// ScheduleAllCouponPayments computes the pending coupon run for every
// active instrument without touching the ledger. Administrative dry
// run; safe to call at any time.
func (e *Engine) ScheduleAllCouponPayments(ctx context.Context) (map[string][]Payment, error) {
	active, err := e.instruments.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active instruments: %w", err)
	}

	plans := make(map[string][]Payment, len(active))
	for _, inst := range active {
		payments, err := e.planPayments(ctx, inst)
		if err != nil {
			return nil, err
		}
		plans[inst.ID] = payments

		total := new(big.Int)
		for _, p := range payments {
			total.Add(total, p.Amount)
		}
		e.logger.Printf("coupon plan for %s: %d recipient(s), total %s",
			inst.TokenName, len(payments), total)
	}
	return plans, nil
}

// planPayments snapshots holder balances and computes each payout.
func (e *Engine) planPayments(ctx context.Context, inst *domain.Instrument) ([]Payment, error) {
	holders, err := e.holders.ListByInstrument(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("list holders of %s: %w", inst.ID, err)
	}

	var payments []Payment
	for _, h := range holders {
		if h.Balance.Sign() <= 0 {
			continue
		}
		payments = append(payments, Payment{
			InstrumentID: inst.ID,
			Address:      h.Address,
			Balance:      new(big.Int).Set(h.Balance),
			Amount:       ComputeCouponAmount(inst, h.Balance),
		})
	}
	return payments, nil
}

// ExecuteScheduledPayments runs one coupon payment cycle for an
// instrument. Administrative entry point, also called by the scheduler.
func (e *Engine) ExecuteScheduledPayments(ctx context.Context, instrumentID string) error {
	e.logger.Printf("executing coupon payment for %s", instrumentID)
	return e.ExecuteCouponPayment(ctx, instrumentID)
}

// ExecuteCouponPayment pays the current coupon to every holder of one
// instrument. Holders are settled one at a time; a failed payment is
// logged and skipped, never blocking or rolling back the others. The
// aggregate paid statistic reflects successful payouts only.
func (e *Engine) ExecuteCouponPayment(ctx context.Context, instrumentID string) error {
	release := e.locks.Acquire(instrumentID)
	defer release()

	inst, err := e.instruments.GetByID(ctx, instrumentID)
	if err != nil {
		return fmt.Errorf("load instrument %s: %w", instrumentID, err)
	}

	payments, err := e.planPayments(ctx, inst)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		e.logger.Printf("no holders for %s, coupon skipped", inst.TokenName)
		return nil
	}

	now := time.Now().UnixMilli()
	totalPaid := new(big.Int)
	succeeded, failed := 0, 0

	for _, p := range payments {
		if p.Amount.Sign() <= 0 {
			continue
		}

		txHash, err := e.submitter.SubmitCouponPayment(ctx, inst, p.Address, p.Amount)
		if err != nil {
			e.logger.Printf("coupon payment to %s failed (instrument=%s amount=%s): %v",
				p.Address, inst.ID, p.Amount, err)
			observability.RecordCouponFailed()
			failed++
			continue
		}

		if err := e.settle(ctx, inst, p, txHash, now); err != nil {
			// The ledger payment went through; only bookkeeping failed.
			e.logger.Printf("record coupon for %s (tx=%s): %v", p.Address, txHash, err)
		}

		totalPaid.Add(totalPaid, p.Amount)
		succeeded++
		observability.RecordCouponPaid()
		e.logger.Printf("coupon paid to %s: %s (tx=%s)", p.Address, p.Amount, txHash)
	}

	if err := e.finishRun(ctx, inst.ID, totalPaid, now); err != nil {
		return err
	}

	e.logger.Printf("coupon run complete for %s: %d paid, %d failed, total %s",
		inst.TokenName, succeeded, failed, totalPaid)
	return nil
}

// settle records a successful payout against the holder's history.
func (e *Engine) settle(ctx context.Context, inst *domain.Instrument, p Payment, txHash string, now int64) error {
	rec := &domain.TransferRecord{
		InstrumentID: inst.ID,
		TxHash:       txHash,
		FromAddress:  e.issuer,
		ToAddress:    p.Address,
		Amount:       new(big.Int).Set(p.Amount),
		Kind:         domain.TransferKindCoupon,
		Timestamp:    now,
		Memo:         "Bond: " + inst.TokenName,
	}
	if err := e.transfers.Insert(ctx, rec); err != nil {
		return err
	}
	if e.archive != nil {
		if err := e.archive.Append(ctx, []*domain.TransferRecord{rec.Clone()}); err != nil {
			e.logger.Printf("archive coupon %s: %v", txHash, err)
		}
	}

	holder, err := e.holders.Get(ctx, inst.ID, p.Address)
	if err != nil {
		return err
	}
	if holder.CouponsReceived == nil {
		holder.CouponsReceived = new(big.Int)
	}
	holder.CouponsReceived = new(big.Int).Add(holder.CouponsReceived, p.Amount)
	holder.LastUpdatedAt = now
	return e.holders.Put(ctx, holder)
}

// finishRun updates the paid statistic and rolls the due date forward.
// State is re-read under the lock so concurrent reconciliation updates
// are not overwritten.
func (e *Engine) finishRun(ctx context.Context, instrumentID string, totalPaid *big.Int, now int64) error {
	inst, err := e.instruments.GetByID(ctx, instrumentID)
	if err != nil {
		return fmt.Errorf("reload instrument %s: %w", instrumentID, err)
	}
	if inst.Stats.TotalCouponsPaid == nil {
		inst.Stats.TotalCouponsPaid = new(big.Int)
	}
	inst.Stats.TotalCouponsPaid = new(big.Int).Add(inst.Stats.TotalCouponsPaid, totalPaid)
	inst.NextCouponDate = RollForward(inst.NextCouponDate, inst.Frequency, now)
	if inst.MaturityDate > 0 && now >= inst.MaturityDate && inst.Status.CanTransitionTo(domain.StatusMatured) {
		inst.Status = domain.StatusMatured
		e.logger.Printf("instrument %s matured", inst.ID)
	}
	if err := e.instruments.Update(ctx, inst); err != nil {
		return fmt.Errorf("update instrument %s: %w", instrumentID, err)
	}
	return nil
}

// RunAll executes the coupon cycle for every active instrument.
// Failures are isolated per instrument.
func (e *Engine) RunAll(ctx context.Context) {
	active, err := e.instruments.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		e.logger.Printf("list active instruments: %v", err)
		observability.RecordCouponRun("error")
		return
	}

	for _, inst := range active {
		if err := e.ExecuteScheduledPayments(ctx, inst.ID); err != nil {
			e.logger.Printf("coupon run for %s: %v", inst.ID, err)
		}
	}
	observability.RecordCouponRun("success")
}
