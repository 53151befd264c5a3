// Package stream consumes the broker's push channel and fans the
// decoded market-data records out to a handler.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"neo-dashboard/internal/models"
	"neo-dashboard/internal/quotes"
	"neo-dashboard/pkg/utils"
)

const maxReconnectDelay = 30 * time.Second

// Config holds configuration for the push-channel client.
type Config struct {
	URL        string
	Header     http.Header
	MaxRetries int
	BaseDelay  time.Duration
}

// Client is a websocket consumer for the broker's market-data push
// channel. A single read loop decodes messages and delivers records to
// the registered handler in arrival order, so per-token ordering is
// preserved without further coordination.
type Client struct {
	url        string
	header     http.Header
	maxRetries int
	baseDelay  time.Duration

	onQuote      func(models.Quote)
	onError      func(error)
	onConnect    func()
	onDisconnect func()

	conn      *websocket.Conn
	connected bool
	// Full desired subscription set. Level-triggered: resent in its
	// entirety on every Subscribe call and on reconnect.
	subscribed []models.InstrumentRef

	mu      sync.RWMutex
	writeMu sync.Mutex // serializes websocket writes
	done    chan struct{}
}

// NewClient creates a new push-channel client.
func NewClient(cfg Config) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = time.Second
	}
	return &Client{
		url:        cfg.URL,
		header:     cfg.Header,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		done:       make(chan struct{}),
	}
}

// OnQuote registers the handler invoked for every decoded record.
func (c *Client) OnQuote(fn func(models.Quote)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onQuote = fn
}

// OnError registers the handler invoked for stream errors.
func (c *Client) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// OnConnect registers the handler invoked after each (re)connection.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnDisconnect registers the handler invoked when the stream closes.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// Connect dials the push channel and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dialing push channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	onConnect := c.onConnect
	c.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}

	go c.readLoop()

	// Restore the full subscription set after a reconnect.
	if err := c.resubscribe(); err != nil {
		c.reportError(err)
	}

	return nil
}

// Subscribe replaces the desired subscription set and sends it in full
// to the broker. Always the complete set, never a delta.
func (c *Client) Subscribe(ctx context.Context, refs []models.InstrumentRef) error {
	c.mu.Lock()
	c.subscribed = append([]models.InstrumentRef(nil), refs...)
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		// Connect already replays the stored set.
		return nil
	}
	return c.sendSubscription(refs)
}

func (c *Client) resubscribe() error {
	c.mu.RLock()
	refs := c.subscribed
	c.mu.RUnlock()
	if len(refs) == 0 {
		return nil
	}
	return c.sendSubscription(refs)
}

func (c *Client) sendSubscription(refs []models.InstrumentRef) error {
	frame := map[string]any{
		"type":              "subscribe",
		"instrument_tokens": quotes.BuildRequest(refs),
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("push channel not connected")
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("sending subscription: %w", err)
	}
	return nil
}

// Close shuts the stream down. No reconnection is attempted after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readLoop() {
	c.mu.RLock()
	conn := c.conn
	onQuote := c.onQuote
	onDisconnect := c.onDisconnect
	c.mu.RUnlock()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()

			select {
			case <-c.done:
				return
			default:
			}

			if onDisconnect != nil {
				onDisconnect()
			}
			c.reportError(err)
			c.reconnect()
			return
		}

		if onQuote == nil {
			continue
		}
		for _, q := range Decode(payload) {
			onQuote(q)
		}
	}
}

// reconnect re-dials with exponential backoff. The stored subscription
// set is replayed by Connect once the dial succeeds.
func (c *Client) reconnect() {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		delay := utils.CalculateBackoff(attempt, c.baseDelay, maxReconnectDelay, 2.0)
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		c.reportError(fmt.Errorf("reconnect attempt %d: %w", attempt+1, err))
	}
	c.reportError(fmt.Errorf("push channel gave up after %d reconnect attempts", c.maxRetries))
}

func (c *Client) reportError(err error) {
	c.mu.RLock()
	onError := c.onError
	c.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}
