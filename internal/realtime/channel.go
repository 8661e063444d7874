// Package realtime maintains the Socket.IO connection that pushes order status changes.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	infracfg "github.com/danielCarlosRodriguez/utilesApp/internal/infra/config"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
	"github.com/danielCarlosRodriguez/utilesApp/internal/telemetry"
)

const (
	component           = "realtime"
	defaultJoinEvent    = "join:admin"
	defaultMaxAttempts  = 10
	defaultDelay        = 2 * time.Second
	defaultHandshake    = 10 * time.Second
	defaultBufferSize   = 64
	defaultHeartbeat    = 45 * time.Second
	controlWriteTimeout = 5 * time.Second
	readLimit           = 1 << 20
)

var (
	errServerClosed     = errors.New("server closed the connection")
	errServerDisconnect = errors.New("server disconnected the namespace")
)

// State describes the connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateGaveUp
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateGaveUp:
		return "gave_up"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SubscriptionID identifies an active subscriber.
type SubscriptionID string

// Config controls the connection and delivery behaviour.
type Config struct {
	URL              string
	Namespace        string
	JoinEvent        string
	MaxAttempts      int
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	BufferSize       int
}

// ConfigFromApp maps the realtime section of the application config.
func ConfigFromApp(cfg infracfg.AppConfig) Config {
	return Config{
		URL:              cfg.SocketURL(),
		Namespace:        "",
		JoinEvent:        cfg.Realtime.JoinEvent,
		MaxAttempts:      cfg.Realtime.ReconnectAttempts.Resolve(),
		ReconnectDelay:   cfg.Realtime.ReconnectDelay,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		BufferSize:       cfg.Realtime.SubscriberBuffer,
	}
}

func (c Config) withDefaults() Config {
	c.URL = strings.TrimSpace(c.URL)
	if strings.TrimSpace(c.JoinEvent) == "" {
		c.JoinEvent = defaultJoinEvent
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshake
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan schema.OrderUpdated

	mu     sync.Mutex
	closed bool
}

// offer hands the event over without blocking and reports whether it was accepted.
func (s *subscriber) offer(evt schema.OrderUpdated) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	s.cancel()
}

// Channel is a single long-lived Socket.IO connection fanning order updates out to
// subscribers. Delivery is at-most-once: a full subscriber buffer drops the event.
type Channel struct {
	cfg     Config
	metrics *telemetry.RealtimeMetrics

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	state   atomic.Int32
	loop    conc.WaitGroup

	conn   *websocket.Conn
	connMu sync.RWMutex

	subsMu      sync.RWMutex
	subscribers map[SubscriptionID]*subscriber
	nextID      atomic.Uint64

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// New prepares a channel. Nothing is dialled until Start.
func New(cfg Config) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:         cfg.withDefaults(),
		metrics:     telemetry.NewRealtimeMetrics(),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[SubscriptionID]*subscriber),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start dials in the background and returns immediately. Cancelling ctx stops the
// connection loop just like Close, but leaves subscriptions open.
func (c *Channel) Start(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("socket url required"))
	}
	if c.State() == StateClosed {
		return errs.New(component, errs.CodeUnavailable, errs.WithMessage("channel closed"))
	}
	if !c.started.CompareAndSwap(false, true) {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("channel already started"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		select {
		case <-ctx.Done():
			c.cancel()
		case <-c.ctx.Done():
		}
	}()

	c.setState(StateConnecting)
	c.loop.Go(func() {
		defer close(c.done)
		c.connectLoop()
	})
	return nil
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Ready is closed after the first successful namespace connect.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when the connection loop exits, either on Close or after giving up.
// Closing a channel that never started closes Done as well.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Subscribe registers for order updates. The returned channel is closed on Unsubscribe,
// when ctx ends, or on Close.
func (c *Channel) Subscribe(ctx context.Context) (SubscriptionID, <-chan schema.OrderUpdated, error) {
	if c.State() == StateClosed {
		return "", nil, errs.New(component, errs.CodeUnavailable, errs.WithMessage("channel closed"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		ctx:    subCtx,
		cancel: cancel,
		ch:     make(chan schema.OrderUpdated, c.cfg.BufferSize),
	}
	id := SubscriptionID(fmt.Sprintf("sub-%d", c.nextID.Add(1)))

	c.subsMu.Lock()
	c.subscribers[id] = sub
	c.subsMu.Unlock()
	c.metrics.Subscribers(subCtx, 1)

	go c.observe(id, sub)
	return id, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (c *Channel) Unsubscribe(id SubscriptionID) {
	if id == "" {
		return
	}
	c.subsMu.RLock()
	sub, ok := c.subscribers[id]
	c.subsMu.RUnlock()
	if ok {
		sub.cancel()
	}
}

func (c *Channel) observe(id SubscriptionID, sub *subscriber) {
	<-sub.ctx.Done()
	c.subsMu.Lock()
	if stored, ok := c.subscribers[id]; ok && stored == sub {
		delete(c.subscribers, id)
	}
	c.subsMu.Unlock()
	sub.close()
	c.metrics.Subscribers(context.Background(), -1)
}

// Close stops the connection loop and ends every subscription.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.cancel()
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "shutdown")
			c.conn = nil
		}
		c.connMu.Unlock()
		if c.started.CompareAndSwap(false, true) {
			close(c.done)
		} else {
			c.loop.Wait()
		}

		c.subsMu.Lock()
		subs := make([]*subscriber, 0, len(c.subscribers))
		for _, sub := range c.subscribers {
			subs = append(subs, sub)
		}
		c.subsMu.Unlock()
		for _, sub := range subs {
			sub.cancel()
		}
	})
}

func (c *Channel) setState(s State) {
	for {
		current := c.state.Load()
		if State(current) == StateClosed && s != StateClosed {
			return
		}
		if c.state.CompareAndSwap(current, int32(s)) {
			return
		}
	}
}

func (c *Channel) connectLoop() {
	policy := &backoff.ConstantBackOff{Interval: c.cfg.ReconnectDelay}
	failures := 0
	for {
		if c.ctx.Err() != nil {
			return
		}

		connected, err := c.session(c.ctx)
		if c.ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
			policy.Reset()
		}
		if err != nil {
			observability.Log().Error("realtime connection lost",
				observability.F("url", c.cfg.URL),
				observability.F("connected", connected),
				observability.F("error", err))
		}

		failures++
		if failures > c.cfg.MaxAttempts {
			c.setState(StateGaveUp)
			observability.Log().Error("realtime reconnect attempts exhausted",
				observability.F("attempts", c.cfg.MaxAttempts))
			return
		}

		c.setState(StateReconnecting)
		c.metrics.Reconnect(c.ctx, StateReconnecting.String())
		sleep := policy.NextBackOff()
		if sleep == backoff.Stop {
			sleep = c.cfg.ReconnectDelay
		}
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// session runs one connection from dial to loss. connected reports whether the
// namespace handshake completed.
func (c *Channel) session(ctx context.Context) (connected bool, err error) {
	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	cancelDial()
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	conn.SetReadLimit(readLimit)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	silence := c.cfg.HandshakeTimeout
	for {
		readCtx, cancelRead := context.WithTimeout(ctx, silence)
		_, data, err := conn.Read(readCtx)
		cancelRead()
		if err != nil {
			if ctx.Err() != nil {
				return connected, context.Canceled
			}
			return connected, fmt.Errorf("read websocket: %w", err)
		}

		pkt, err := DecodePacket(data)
		if err != nil {
			observability.Log().Debug("realtime frame ignored", observability.F("error", err))
			continue
		}

		switch pkt.Type {
		case PacketOpen:
			hs, err := DecodeHandshake(pkt)
			if err != nil {
				return connected, err
			}
			silence = hs.Heartbeat(defaultHeartbeat)
			if err := c.write(ctx, conn, EncodeConnect(c.cfg.Namespace)); err != nil {
				return connected, err
			}
		case PacketPing:
			if err := c.write(ctx, conn, pongFrame); err != nil {
				return connected, err
			}
		case PacketClose:
			return connected, errServerClosed
		case PacketConnect:
			frame, err := EncodeEvent(c.cfg.Namespace, c.cfg.JoinEvent, nil)
			if err != nil {
				return connected, err
			}
			if err := c.write(ctx, conn, frame); err != nil {
				return connected, err
			}
			connected = true
			c.setState(StateConnected)
			c.readyOnce.Do(func() { close(c.ready) })
			observability.Log().Info("realtime connected", observability.F("url", c.cfg.URL))
		case PacketConnectError:
			return connected, fmt.Errorf("namespace connect refused: %s", string(pkt.Data))
		case PacketDisconnect:
			return connected, errServerDisconnect
		case PacketEvent:
			c.handleEvent(ctx, pkt)
		default:
		}
	}
}

func (c *Channel) write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, controlWriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write websocket: %w", err)
	}
	return nil
}

func (c *Channel) handleEvent(ctx context.Context, pkt Packet) {
	if pkt.Event != schema.EventOrderUpdated {
		observability.Log().Debug("realtime event ignored", observability.F("event", pkt.Event))
		return
	}
	payload := pkt.Payload()
	if len(payload) == 0 {
		return
	}
	var evt schema.OrderUpdated
	if err := json.Unmarshal(payload, &evt); err != nil {
		observability.Log().Error("realtime event decode failed",
			observability.F("event", pkt.Event),
			observability.F("error", err))
		return
	}
	if evt.OrderID == "" && evt.Order != nil {
		evt.OrderID = evt.Order.ID
	}
	if evt.OrderID == "" {
		return
	}
	c.metrics.Received(ctx, pkt.Event)
	c.publish(ctx, evt)
}

func (c *Channel) publish(ctx context.Context, evt schema.OrderUpdated) {
	c.subsMu.RLock()
	subs := make([]*subscriber, 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		subs = append(subs, sub)
	}
	c.subsMu.RUnlock()

	for _, sub := range subs {
		if sub.offer(evt.Clone()) {
			continue
		}
		c.metrics.Dropped(ctx, schema.EventOrderUpdated)
		observability.Log().Debug("realtime subscriber buffer full; event dropped",
			observability.F("order_id", evt.OrderID))
	}
}
