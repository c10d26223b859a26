package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConfig configures session behavior.
type ClientConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// PingInterval is the interval for keepalive ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// RequestTimeout bounds one request/response round trip.
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default session configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		RequestTimeout:   30 * time.Second,
	}
}

// Client is one WebSocket session to a ledger node. A session is not
// restartable: when the connection is lost, Done is closed, the event
// stream ends, and the owner dials a fresh session. Reconnection policy
// lives with the owner, not here.
type Client struct {
	config ClientConfig

	conn    *websocket.Conn
	writeMu sync.Mutex

	requestID atomic.Uint64

	pending   map[uint64]chan *responseMessage
	pendingMu sync.Mutex

	events chan TransactionEvent

	done     chan struct{}
	closed   atomic.Bool
	err      error
	errMu    sync.Mutex
	wg       sync.WaitGroup
}

// Dial establishes a session and starts the read and keepalive loops.
func Dial(ctx context.Context, endpoint string, config *ClientConfig) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &Client{
		config:  cfg,
		conn:    conn,
		pending: make(map[uint64]chan *responseMessage),
		// Blocking sends past this buffer; transaction events are
		// never dropped.
		events: make(chan TransactionEvent, 1024),
		done:   make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Events returns the stream of transaction events observed on this
// session. The channel is closed when the session ends.
func (c *Client) Events() <-chan TransactionEvent {
	return c.events
}

// Done is closed when the session ends for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the session ended, nil for a clean Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close terminates the session. Idempotent.
func (c *Client) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

// shutdown ends the session once, recording the cause.
func (c *Client) shutdown(cause error) {
	if c.closed.Swap(true) {
		return
	}

	c.errMu.Lock()
	c.err = cause
	c.errMu.Unlock()

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()

	close(c.done)

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// Request sends one command and waits for the matching response.
func (c *Client) Request(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("session closed")
	}

	id := c.requestID.Add(1)

	req := make(map[string]any, len(params)+2)
	for k, v := range params {
		req[k] = v
	}
	req["id"] = id
	req["command"] = command

	respCh := make(chan *responseMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("write %s request: %w", command, err)
	}

	timeout := time.NewTimer(c.config.RequestTimeout)
	defer timeout.Stop()

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, fmt.Errorf("session closed awaiting %s response", command)
		}
		if resp.Status != "success" {
			return nil, fmt.Errorf("%s rejected: %s %s", command, resp.ErrorCode, resp.ErrorMessage)
		}
		return resp.Result, nil
	case <-timeout.C:
		cleanup()
		return nil, fmt.Errorf("%s timed out after %v", command, c.config.RequestTimeout)
	case <-c.done:
		return nil, fmt.Errorf("session closed awaiting %s response", command)
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
}

// SubscribeAccounts subscribes to transactions touching the given accounts.
func (c *Client) SubscribeAccounts(ctx context.Context, accounts []string) error {
	_, err := c.Request(ctx, "subscribe", map[string]any{"accounts": accounts})
	return err
}

// SubscribeTransactionStream subscribes to the global validated
// transaction stream.
func (c *Client) SubscribeTransactionStream(ctx context.Context) error {
	_, err := c.Request(ctx, "subscribe", map[string]any{"streams": []string{"transactions"}})
	return err
}

// Submit submits a signed transaction blob and returns the engine result.
func (c *Client) Submit(ctx context.Context, txBlob string) (SubmitResult, error) {
	raw, err := c.Request(ctx, "submit", map[string]any{"tx_blob": txBlob})
	if err != nil {
		return SubmitResult{}, err
	}

	var result struct {
		EngineResult string `json:"engine_result"`
		TxJSON       struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return SubmitResult{}, fmt.Errorf("parse submit result: %w", err)
	}

	return SubmitResult{
		EngineResult: result.EngineResult,
		TxHash:       result.TxJSON.Hash,
	}, nil
}

// AccountObjects lists ledger objects of one type owned by an account.
func (c *Client) AccountObjects(ctx context.Context, account, objectType string) ([]AccountObject, error) {
	raw, err := c.Request(ctx, "account_objects", map[string]any{
		"account": account,
		"type":    objectType,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		AccountObjects []AccountObject `json:"account_objects"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse account_objects result: %w", err)
	}
	return result.AccountObjects, nil
}

// readLoop reads messages until the session ends, routing responses to
// waiting requests and transaction events to the event stream.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.shutdown(fmt.Errorf("session read: %w", err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage routes one raw message.
func (c *Client) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err == nil && msg.Type == "transaction" {
		event, err := parseEvent(&msg)
		if err != nil || event == nil {
			// Malformed payloads are dropped here; the monitor never
			// sees events it cannot classify.
			return
		}
		select {
		case c.events <- *event:
		case <-c.done:
		}
		return
	}

	var resp responseMessage
	if err := json.Unmarshal(message, &resp); err != nil || resp.ID == 0 {
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- &resp
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			// A failed ping kills the connection; the read loop surfaces it.
			_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
		}
	}
}
