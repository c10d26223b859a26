package xrpl

import (
	"encoding/json"
	"fmt"
)

// Ripple epoch offset: seconds between 2000-01-01 and the Unix epoch.
const rippleEpochOffset = 946684800

// RippleTimeToUnixMs converts a ledger close time (seconds since the
// Ripple epoch) to a Unix timestamp in milliseconds.
func RippleTimeToUnixMs(rippleTime int64) int64 {
	return (rippleTime + rippleEpochOffset) * 1000
}

// Transaction kinds dispatched by the monitor.
const (
	TxTypePayment         = "Payment"
	TxTypeIssuanceCreate  = "MPTokenIssuanceCreate"
	TxTypeAuthorize       = "MPTokenAuthorize"
	TxTypeIssuanceDestroy = "MPTokenIssuanceDestroy"
	TxTypeTrustSet        = "TrustSet"
)

// Amount is a payment amount. The ledger sends either a plain string
// (native drops) or an object carrying a token amount.
type Amount struct {
	// MPTID identifies the token issuance for MPT amounts.
	MPTID string `json:"mpt_id,omitempty"`
	// Value is the amount as a decimal string.
	Value string `json:"value,omitempty"`
	// Currency and Issuer are set for issued-currency amounts.
	Currency string `json:"currency,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	// Drops is set when the amount was a plain native string.
	Drops string `json:"-"`
}

// UnmarshalJSON accepts both the string and object encodings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		*a = Amount{Drops: drops}
		return nil
	}

	type amountObject Amount
	var obj amountObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = Amount(obj)
	return nil
}

// IsToken reports whether the amount carries an MPT token value.
func (a *Amount) IsToken() bool {
	return a != nil && a.MPTID != "" && a.Value != ""
}

// MPTokenInfo is the issuance block attached to MPToken transactions.
type MPTokenInfo struct {
	MPTID       string `json:"mpt_id"`
	TotalAmount string `json:"total_amount,omitempty"`
}

// Memo is one entry of a transaction's memo list, hex-encoded on the wire.
type Memo struct {
	Memo struct {
		MemoType string `json:"MemoType,omitempty"`
		MemoData string `json:"MemoData,omitempty"`
	} `json:"Memo"`
}

// Transaction is the subset of ledger transaction fields the monitor
// consumes. The ledger's transaction shape is heterogeneous; unknown
// fields are ignored.
type Transaction struct {
	TransactionType string       `json:"TransactionType"`
	Account         string       `json:"Account,omitempty"`
	Destination     string       `json:"Destination,omitempty"`
	Issuer          string       `json:"Issuer,omitempty"`
	Holder          string       `json:"Holder,omitempty"`
	Target          string       `json:"Target,omitempty"`
	Amount          *Amount      `json:"Amount,omitempty"`
	MPToken         *MPTokenInfo `json:"MPToken,omitempty"`
	Memos           []Memo       `json:"Memos,omitempty"`
	Date            int64        `json:"date,omitempty"`
	Hash            string       `json:"hash,omitempty"`
}

// TransactionEvent is one transaction observed on the session, carrying
// the parsed payload and ledger metadata.
type TransactionEvent struct {
	Validated   bool
	LedgerIndex int64
	Hash        string
	Tx          *Transaction
}

// streamMessage is the raw shape of async stream messages. The payload
// differs by source: account subscriptions deliver "transaction",
// the global stream delivers "tx_json".
type streamMessage struct {
	Type        string          `json:"type"`
	Validated   bool            `json:"validated"`
	LedgerIndex int64           `json:"ledger_index"`
	Hash        string          `json:"hash,omitempty"`
	Transaction json.RawMessage `json:"transaction,omitempty"`
	TxJSON      json.RawMessage `json:"tx_json,omitempty"`
}

// parseEvent converts a raw stream message into a TransactionEvent.
// Returns nil if the message carries no transaction payload.
func parseEvent(msg *streamMessage) (*TransactionEvent, error) {
	raw := msg.Transaction
	if len(raw) == 0 {
		raw = msg.TxJSON
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("parse transaction payload: %w", err)
	}

	hash := msg.Hash
	if hash == "" {
		hash = tx.Hash
	}

	return &TransactionEvent{
		Validated:   msg.Validated,
		LedgerIndex: msg.LedgerIndex,
		Hash:        hash,
		Tx:          &tx,
	}, nil
}

// responseMessage is the raw shape of request/response messages,
// matched to requests by id.
type responseMessage struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorCode    string          `json:"error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// SubmitResult is the outcome of a transaction submission.
type SubmitResult struct {
	EngineResult string `json:"engine_result"`
	TxHash       string `json:"tx_hash"`
}

// Accepted reports whether the ledger accepted the transaction.
func (r SubmitResult) Accepted() bool {
	return r.EngineResult == "tesSUCCESS"
}

// AccountObject is one ledger object owned by an account, as returned
// by the account_objects command. Only MPT token fields are consumed.
type AccountObject struct {
	LedgerEntryType string `json:"LedgerEntryType,omitempty"`
	MPTID           string `json:"mpt_id,omitempty"`
	Amount          string `json:"amount,omitempty"`
}
