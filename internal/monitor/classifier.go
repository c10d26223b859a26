package monitor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/observability"
	"xrpl-bond-tracker/internal/storage"
	"xrpl-bond-tracker/internal/xrpl"
)

// Classifier dispatches validated ledger events by transaction kind.
// Unvalidated events are discarded; unrecognized kinds are logged for
// audit and mutate nothing.
type Classifier struct {
	instruments storage.InstrumentStore
	holders     storage.HolderStore
	reconciler  *Reconciler
	logger      *log.Logger
}

// ClassifierOptions configures a Classifier.
type ClassifierOptions struct {
	Instruments storage.InstrumentStore
	Holders     storage.HolderStore
	Reconciler  *Reconciler
	Logger      *log.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(opts ClassifierOptions) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{
		instruments: opts.Instruments,
		holders:     opts.Holders,
		reconciler:  opts.Reconciler,
		logger:      logger,
	}
}

// Handle processes one ledger event. Errors are returned for logging
// by the caller; the caller never stops the event loop on them.
func (c *Classifier) Handle(ctx context.Context, event xrpl.TransactionEvent) error {
	if !event.Validated {
		return nil
	}
	if event.Tx == nil {
		c.logger.Printf("event %s carries no transaction payload", event.Hash)
		return nil
	}

	observability.RecordEventProcessed(event.Tx.TransactionType)

	switch event.Tx.TransactionType {
	case xrpl.TxTypePayment:
		return c.handlePayment(ctx, event)
	case xrpl.TxTypeIssuanceCreate:
		return c.handleIssuance(ctx, event)
	case xrpl.TxTypeAuthorize:
		return c.handleAuthorize(ctx, event)
	case xrpl.TxTypeIssuanceDestroy, xrpl.TxTypeTrustSet:
		c.logger.Printf("audit: %s %s from %s", event.Tx.TransactionType, event.Hash, event.Tx.Account)
		return nil
	default:
		c.logger.Printf("audit: unhandled %s %s", event.Tx.TransactionType, event.Hash)
		return nil
	}
}

// handlePayment forwards token payments for tracked instruments to the
// reconciler. Native and issued-currency payments are not instrument
// traffic and are ignored.
func (c *Classifier) handlePayment(ctx context.Context, event xrpl.TransactionEvent) error {
	tx := event.Tx
	if !tx.Amount.IsToken() {
		return nil
	}

	inst, err := c.instruments.GetByTokenID(ctx, tx.Amount.MPTID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up token %s: %w", tx.Amount.MPTID, err)
	}

	amount, ok := new(big.Int).SetString(tx.Amount.Value, 10)
	if !ok {
		return fmt.Errorf("unparseable amount %q in %s", tx.Amount.Value, event.Hash)
	}

	c.logger.Printf("transfer detected for %s: %s tokens from %s to %s",
		inst.TokenName, amount, tx.Account, tx.Destination)

	return c.reconciler.ApplyTransfer(ctx, &domain.TransferRecord{
		InstrumentID: inst.ID,
		TxHash:       event.Hash,
		LedgerIndex:  event.LedgerIndex,
		FromAddress:  tx.Account,
		ToAddress:    tx.Destination,
		Amount:       amount,
		Kind:         domain.TransferKindTransfer,
		Timestamp:    xrpl.RippleTimeToUnixMs(tx.Date),
		Memo:         decodeMemo(tx.Memos),
	})
}

// handleIssuance creates a placeholder instrument for unseen tokens so
// that subsequent transfers are not dropped, and refreshes total supply
// for known ones. Placeholder defaults: active status, zero coupon
// rate, no coupon schedule, unit denomination, one-year maturity.
func (c *Classifier) handleIssuance(ctx context.Context, event xrpl.TransactionEvent) error {
	tx := event.Tx

	tokenID := ""
	totalSupply := ""
	if tx.MPToken != nil {
		tokenID = tx.MPToken.MPTID
		totalSupply = tx.MPToken.TotalAmount
	}
	if tokenID == "" && tx.Amount != nil {
		tokenID = tx.Amount.MPTID
		totalSupply = tx.Amount.Value
	}
	if tokenID == "" {
		c.logger.Printf("issuance %s carries no token id, ignoring", event.Hash)
		return nil
	}

	inst, err := c.instruments.GetByTokenID(ctx, tokenID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("look up token %s: %w", tokenID, err)
	}

	if inst == nil {
		issuer := tx.Account
		if issuer == "" {
			issuer = tx.Issuer
		}
		supply := new(big.Int)
		if totalSupply != "" {
			if v, ok := new(big.Int).SetString(totalSupply, 10); ok {
				supply = v
			}
		}
		now := time.Now().UnixMilli()

		auto := &domain.Instrument{
			ID:             fmt.Sprintf("AUTO-%s-%s", tokenID, uuid.NewString()),
			IssuerAddress:  issuer,
			IssuerName:     "Auto Issuer",
			TokenID:        tokenID,
			TokenName:      "Token " + tokenID,
			TotalSupply:    supply,
			Denomination:   big.NewInt(1),
			RateBps:        0,
			Frequency:      domain.FrequencyNone,
			IssueDate:      now,
			MaturityDate:   now + 365*24*3600*1000,
			NextCouponDate: now,
			Status:         domain.StatusActive,
			Description:    "Auto-created from token issuance",
			Stats: domain.InstrumentStats{
				TotalInvested:    new(big.Int),
				TotalCouponsPaid: new(big.Int),
			},
		}
		if err := c.instruments.Insert(ctx, auto); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return nil
			}
			return fmt.Errorf("auto-create instrument for %s: %w", tokenID, err)
		}
		c.logger.Printf("auto-created instrument %s for token %s", auto.ID, tokenID)
		observability.RecordInstrumentCreated()
		return nil
	}

	if totalSupply != "" {
		if v, ok := new(big.Int).SetString(totalSupply, 10); ok {
			inst.TotalSupply = v
			if err := c.instruments.Update(ctx, inst); err != nil {
				return fmt.Errorf("update supply for %s: %w", inst.ID, err)
			}
			c.logger.Printf("instrument %s total supply set to %s", inst.ID, v)
		}
	}
	return nil
}

// handleAuthorize upserts a zero-balance authorized holder stub.
// Authorization never changes a balance.
func (c *Classifier) handleAuthorize(ctx context.Context, event xrpl.TransactionEvent) error {
	tx := event.Tx

	tokenID := ""
	if tx.MPToken != nil {
		tokenID = tx.MPToken.MPTID
	}
	if tokenID == "" && tx.Amount != nil {
		tokenID = tx.Amount.MPTID
	}

	// An issuer-submitted authorization names the holder explicitly;
	// a holder-submitted one carries it as the sending account.
	holder := tx.Holder
	if holder == "" {
		holder = tx.Target
	}
	if holder == "" {
		holder = tx.Account
	}
	if holder == "" {
		holder = tx.Destination
	}
	if tokenID == "" || holder == "" {
		return nil
	}

	inst, err := c.instruments.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up token %s: %w", tokenID, err)
	}

	now := time.Now().UnixMilli()

	existing, err := c.holders.Get(ctx, inst.ID, holder)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load holder %s: %w", holder, err)
	}

	if existing == nil {
		existing = &domain.HolderBalance{
			InstrumentID:    inst.ID,
			Address:         holder,
			Balance:         new(big.Int),
			FirstAcquiredAt: now,
			CouponsReceived: new(big.Int),
		}
	}
	existing.Authorized = true
	existing.LastUpdatedAt = now

	if err := c.holders.Put(ctx, existing); err != nil {
		return fmt.Errorf("authorize holder %s: %w", holder, err)
	}
	c.logger.Printf("holder %s authorized for %s", holder, inst.ID)
	return nil
}

// decodeMemo decodes the first hex-encoded memo payload, if any.
func decodeMemo(memos []xrpl.Memo) string {
	if len(memos) == 0 || memos[0].Memo.MemoData == "" {
		return ""
	}
	decoded, err := hex.DecodeString(memos[0].Memo.MemoData)
	if err != nil {
		return ""
	}
	return string(decoded)
}
