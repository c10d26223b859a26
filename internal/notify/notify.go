// Package notify delivers monitoring events to external consumers.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds emitted by the monitor.
const (
	KindTransfer     = "transfer"
	KindNewHolder    = "new_holder"
	KindHolderExit   = "holder_exit"
	KindLargeBalance = "large_balance"
)

// Event is one notification about instrument activity.
type Event struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	InstrumentID   string  `json:"instrument_id"`
	InstrumentName string  `json:"instrument_name,omitempty"`
	FromAddress    string  `json:"from_address,omitempty"`
	ToAddress      string  `json:"to_address,omitempty"`
	Address        string  `json:"address,omitempty"`
	Amount         string  `json:"amount,omitempty"`
	Percentage     float64 `json:"percentage,omitempty"`
	TxHash         string  `json:"tx_hash,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// NewEvent builds an event of the given kind with a fresh id and the
// current timestamp in Unix milliseconds.
func NewEvent(kind, instrumentID string) Event {
	return Event{
		ID:           uuid.NewString(),
		Kind:         kind,
		InstrumentID: instrumentID,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// Notifier delivers events. Delivery is best effort: implementations
// log failures and never block ledger processing on a slow consumer.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

var _ Notifier = Nop{}
