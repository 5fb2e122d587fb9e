package connection

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voice-assistant-go/internal/domain/eventbus"
	"voice-assistant-go/internal/platform/errors"
	"voice-assistant-go/internal/platform/logging"
)

// ErrReconnectExhausted is returned once every reconnection attempt has
// failed. Callers must Connect explicitly to try again.
var ErrReconnectExhausted = stderrors.New("reconnect attempts exhausted")

// Options configures a managed connection.
type Options struct {
	ServerURL      string
	Timeout        time.Duration
	RetryLimit     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RetryLimit <= 0 {
		o.RetryLimit = 10
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 60 * time.Second
	}
}

// ManagedConnection correlates requests with responses over a websocket
// or HTTP transport and recovers from drops with exponential backoff.
type ManagedConnection struct {
	opts    Options
	logger  *logging.Logger
	bus     *eventbus.Bus
	pending *pendingTable
	ids     requestIDs

	newTransport func(string, time.Duration) (Transport, error)
	sleep        func(context.Context, time.Duration) error

	mu        sync.Mutex
	transport Transport

	state        atomic.Int32
	closed       atomic.Bool
	reconnecting atomic.Bool
	exhausted    atomic.Bool
}

// New builds a managed connection. Connect must be called before Send.
func New(opts Options, logger *logging.Logger, bus *eventbus.Bus) *ManagedConnection {
	opts.applyDefaults()
	return &ManagedConnection{
		opts:         opts,
		logger:       logger,
		bus:          bus,
		pending:      newPendingTable(),
		newTransport: NewTransport,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State reports the current lifecycle state.
func (c *ManagedConnection) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the transport is usable.
func (c *ManagedConnection) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect establishes the transport. Calling it on an already connected
// instance is a no-op.
func (c *ManagedConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateConnected {
		return nil
	}
	c.closed.Store(false)
	return c.connectLocked(ctx)
}

// connectLocked performs one connection attempt. Caller holds c.mu.
func (c *ManagedConnection) connectLocked(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))

	transport, err := c.newTransport(c.opts.ServerURL, c.opts.Timeout)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}
	if err := transport.Connect(ctx, c.handleResponse, c.handleTransportError); err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}

	if c.transport != nil {
		c.transport.Close()
	}
	c.transport = transport
	c.state.Store(int32(StateConnected))
	c.exhausted.Store(false)

	c.logger.InfoTag("CONN", "connected to %s", c.opts.ServerURL)
	if c.bus != nil {
		c.bus.Publish(eventbus.EventConnectionUp, eventbus.ConnectionEventData{URL: c.opts.ServerURL})
	}
	return nil
}

// Disconnect tears down the transport and fails every in-flight request.
func (c *ManagedConnection) Disconnect() error {
	c.closed.Store(true)

	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.state.Store(int32(StateDisconnected))
	c.mu.Unlock()

	c.pending.failAll("connection closed")

	var err error
	if transport != nil {
		err = transport.Close()
	}
	c.logger.InfoTag("CONN", "disconnected from %s", c.opts.ServerURL)
	if c.bus != nil {
		c.bus.Publish(eventbus.EventConnectionDown, eventbus.ConnectionEventData{URL: c.opts.ServerURL})
	}
	return err
}

// Send delivers one speech request and waits for its correlated
// response, bounded by the configured timeout. A disconnected instance
// makes one connect attempt first, unless reconnection is exhausted.
func (c *ManagedConnection) Send(ctx context.Context, req SpeechRequest) (Response, error) {
	if !c.IsConnected() {
		if c.exhausted.Load() {
			return Response{}, errors.Wrap(errors.KindTransport, "connection.send", "backend unreachable", ErrReconnectExhausted)
		}
		if err := c.Connect(ctx); err != nil {
			return Response{}, err
		}
	}

	if req.RequestID == "" {
		req.RequestID = c.ids.next()
	}
	if req.Type == "" {
		req.Type = "speech_data"
	}
	if req.Timestamp == 0 {
		req.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		return Response{}, errors.New(errors.KindTransport, "connection.send", "not connected")
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	slot := c.pending.register(req.RequestID)
	if err := transport.Send(sendCtx, req); err != nil {
		c.pending.remove(req.RequestID)
		// A dead transport must drop the connection state even when no
		// background reader exists to notice (the HTTP transport).
		// Malformed-payload errors keep the connection up.
		if errors.IsKind(err, errors.KindTransport) {
			c.handleTransportError(err)
		}
		return Response{}, err
	}

	select {
	case resp := <-slot:
		return resp, nil
	case <-sendCtx.Done():
		c.pending.remove(req.RequestID)
		if ctx.Err() != nil {
			return Response{}, errors.Wrap(errors.KindTransport, "connection.send", "request cancelled", ctx.Err())
		}
		return Response{}, errors.New(errors.KindTransport, "connection.send",
			fmt.Sprintf("no response for %s within %s", req.RequestID, c.opts.Timeout))
	}
}

// handleResponse routes one inbound response to its waiting request.
func (c *ManagedConnection) handleResponse(resp Response) {
	if !c.pending.resolve(resp) {
		c.logger.DebugTag("CONN", "dropping unmatched response %s", resp.RequestID)
	}
}

// handleTransportError reacts to a broken transport by failing in-flight
// requests and starting one reconnection loop.
func (c *ManagedConnection) handleTransportError(err error) {
	if c.closed.Load() {
		return
	}
	c.logger.WarnTag("CONN", "transport error: %v", err)

	c.state.Store(int32(StateDisconnected))
	c.pending.failAll("connection lost")
	if c.bus != nil {
		c.bus.Publish(eventbus.EventConnectionDown, eventbus.ConnectionEventData{
			URL:   c.opts.ServerURL,
			Error: err.Error(),
		})
	}

	go c.reconnect()
}

// reconnect retries with exponential backoff until connected, the retry
// limit is hit, or the connection is explicitly closed. Only one loop
// runs at a time.
func (c *ManagedConnection) reconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	backoff := c.opts.InitialBackoff
	for attempt := 1; attempt <= c.opts.RetryLimit; attempt++ {
		if c.closed.Load() {
			return
		}

		c.logger.InfoTag("CONN", "reconnect attempt %d/%d in %s", attempt, c.opts.RetryLimit, backoff)
		if err := c.sleep(context.Background(), backoff); err != nil {
			return
		}
		if c.closed.Load() {
			return
		}

		c.mu.Lock()
		err := c.connectLocked(context.Background())
		c.mu.Unlock()
		if err == nil {
			c.logger.InfoTag("CONN", "reconnected after %d attempt(s)", attempt)
			return
		}
		c.logger.WarnTag("CONN", "reconnect attempt %d failed: %v", attempt, err)

		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}

	c.exhausted.Store(true)
	c.logger.ErrorTag("CONN", "giving up after %d reconnect attempts: %v", c.opts.RetryLimit, ErrReconnectExhausted)
	if c.bus != nil {
		c.bus.Publish(eventbus.EventConnectionDown, eventbus.ConnectionEventData{
			URL:   c.opts.ServerURL,
			Error: ErrReconnectExhausted.Error(),
		})
	}
}
