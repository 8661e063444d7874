package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
)

const openFrame = `0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

// socketServer plays the Engine.IO side of the handshake, then sends frames.
type socketServer struct {
	dials  atomic.Int32
	joined chan string
	pongs  chan struct{}
	frames []string
	// hangUp ends the session right after the frames are sent.
	hangUp bool
}

func newSocketServer(frames ...string) *socketServer {
	return &socketServer{
		joined: make(chan string, 16),
		pongs:  make(chan struct{}, 16),
		frames: frames,
	}
}

func (s *socketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.dials.Add(1)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	write := func(frame string) bool {
		writeCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return conn.Write(writeCtx, websocket.MessageText, []byte(frame)) == nil
	}
	read := func() (string, bool) {
		_, data, err := conn.Read(ctx)
		return string(data), err == nil
	}

	if !write(openFrame) {
		return
	}
	if msg, ok := read(); !ok || msg != "40" {
		return
	}
	if !write(`40{"sid":"def"}`) {
		return
	}
	msg, ok := read()
	if !ok {
		return
	}
	select {
	case s.joined <- msg:
	default:
	}
	if !write("2") {
		return
	}
	if msg, ok := read(); !ok || msg != "3" {
		return
	}
	select {
	case s.pongs <- struct{}{}:
	default:
	}
	for _, frame := range s.frames {
		if !write(frame) {
			return
		}
	}
	if s.hangUp {
		return
	}
	for {
		if _, ok := read(); !ok {
			return
		}
	}
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		if !strings.HasPrefix(u.Scheme, "ws") {
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}
	return u.String(), nil
}

func startChannel(t *testing.T, handler http.Handler, cfg Config) *Channel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	wsURL, err := toWebsocketURL(server.URL)
	require.NoError(t, err)
	cfg.URL = wsURL
	ch := New(cfg)
	t.Cleanup(ch.Close)
	return ch
}

func TestChannelDeliversOrderUpdates(t *testing.T) {
	server := newSocketServer(
		`42["catalog:changed",{}]`,
		`42["order:updated","not-an-object"]`,
		`42["order:updated",{"orderId":"o1","status":"delivered","order":{"_id":"o1","status":"delivered","total":120}}]`,
	)
	ch := startChannel(t, server, Config{HandshakeTimeout: time.Second})

	ctx := context.Background()
	_, updates, err := ch.Subscribe(ctx)
	require.NoError(t, err)
	require.Equal(t, StateIdle, ch.State())
	require.NoError(t, ch.Start(ctx))

	select {
	case <-ch.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("expected channel to connect")
	}
	require.Equal(t, `42["join:admin"]`, <-server.joined)

	select {
	case <-server.pongs:
	case <-time.After(2 * time.Second):
		t.Fatal("expected pong reply to server ping")
	}

	select {
	case evt := <-updates:
		require.Equal(t, "o1", evt.OrderID)
		require.Equal(t, schema.StatusDelivered, evt.Status)
		require.NotNil(t, evt.Order)
		require.Equal(t, "o1", evt.Order.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected order update")
	}
	require.Equal(t, StateConnected, ch.State())

	ch.Close()
	require.Equal(t, StateClosed, ch.State())
	require.Eventually(t, func() bool {
		select {
		case _, open := <-updates:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannelCustomJoinEvent(t *testing.T) {
	server := newSocketServer()
	ch := startChannel(t, server, Config{JoinEvent: "admin-join", HandshakeTimeout: time.Second})
	require.NoError(t, ch.Start(context.Background()))

	select {
	case msg := <-server.joined:
		require.Equal(t, `42["admin-join"]`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("expected join announcement")
	}
}

func TestChannelGivesUpAfterMaxAttempts(t *testing.T) {
	var dials atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		dials.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	ch := startChannel(t, handler, Config{
		MaxAttempts:      2,
		ReconnectDelay:   10 * time.Millisecond,
		HandshakeTimeout: time.Second,
	})
	require.NoError(t, ch.Start(context.Background()))

	select {
	case <-ch.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("expected connection loop to give up")
	}
	require.Equal(t, StateGaveUp, ch.State())
	require.Equal(t, int32(3), dials.Load())

	_, _, err := ch.Subscribe(context.Background())
	require.NoError(t, err)
}

func TestChannelResetsAttemptsAfterConnect(t *testing.T) {
	server := newSocketServer(`41`)
	server.hangUp = true
	ch := startChannel(t, server, Config{
		MaxAttempts:      1,
		ReconnectDelay:   10 * time.Millisecond,
		HandshakeTimeout: time.Second,
	})
	require.NoError(t, ch.Start(context.Background()))

	require.Eventually(t, func() bool {
		return server.dials.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)
	require.NotEqual(t, StateGaveUp, ch.State())
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	ch := New(Config{URL: "ws://127.0.0.1:1/socket.io/", BufferSize: 1})
	t.Cleanup(ch.Close)
	ctx := context.Background()

	id, updates, err := ch.Subscribe(ctx)
	require.NoError(t, err)

	ch.publish(ctx, schema.OrderUpdated{OrderID: "first", Status: schema.StatusReady})
	ch.publish(ctx, schema.OrderUpdated{OrderID: "second", Status: schema.StatusShipped})

	evt := <-updates
	require.Equal(t, "first", evt.OrderID)
	select {
	case extra := <-updates:
		t.Fatalf("expected second event dropped, got %+v", extra)
	default:
	}

	ch.Unsubscribe(id)
	require.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestPublishClonesOrderPerSubscriber(t *testing.T) {
	ch := New(Config{URL: "ws://127.0.0.1:1/socket.io/"})
	t.Cleanup(ch.Close)
	ctx := context.Background()

	_, a, err := ch.Subscribe(ctx)
	require.NoError(t, err)
	_, b, err := ch.Subscribe(ctx)
	require.NoError(t, err)

	ch.publish(ctx, schema.OrderUpdated{OrderID: "o1", Status: schema.StatusReady, Order: &schema.Order{ID: "o1"}})
	first, second := <-a, <-b
	first.Order.CustomerName = "changed"
	require.Empty(t, second.Order.CustomerName)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ch := New(Config{URL: "ws://127.0.0.1:1/socket.io/"})
	t.Cleanup(ch.Close)

	ctx, cancel := context.WithCancel(context.Background())
	_, updates, err := ch.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestChannelLifecycleErrors(t *testing.T) {
	noURL := New(Config{})
	err := noURL.Start(context.Background())
	require.True(t, errs.Is(err, errs.CodeInvalid))

	ch := New(Config{URL: "ws://127.0.0.1:1/socket.io/", MaxAttempts: 1, ReconnectDelay: time.Millisecond})
	require.NoError(t, ch.Start(context.Background()))
	require.True(t, errs.Is(ch.Start(context.Background()), errs.CodeInvalid))
	ch.Close()
	ch.Close()

	_, _, err = ch.Subscribe(context.Background())
	require.True(t, errs.Is(err, errs.CodeUnavailable))
}

func TestCloseWithoutStartReleasesDone(t *testing.T) {
	ch := New(Config{URL: "ws://127.0.0.1:1/socket.io/"})
	ch.Close()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to close when an unstarted channel is closed")
	}
	require.True(t, errs.Is(ch.Start(context.Background()), errs.CodeUnavailable))
	require.Equal(t, StateClosed, ch.State())
}
