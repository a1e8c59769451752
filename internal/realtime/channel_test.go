package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"portalctl/internal/model"
)

type fakeAuth struct{ authed atomic.Bool }

func (a *fakeAuth) IsAuthenticated() bool { return a.authed.Load() }

type recordingSink struct {
	mu     sync.Mutex
	deltas []model.TrafficDelta
}

func (s *recordingSink) ApplyTrafficDelta(d model.TrafficDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas = append(s.deltas, d)
}

func (s *recordingSink) all() []model.TrafficDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TrafficDelta, len(s.deltas))
	copy(out, s.deltas)
	return out
}

type fakeConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.msgs:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestChannel(t *testing.T, auth AuthState) *Channel {
	t.Helper()
	ch, err := NewChannel("http://portal.local/api/v0", auth, nil, nil)
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}
	t.Cleanup(ch.Disconnect)
	return ch
}

func TestChannelURLDerivation(t *testing.T) {
	t.Parallel()

	for base, want := range map[string]string{
		"http://portal.local/api/v0":   "ws://portal.local/api/v0/ws",
		"https://portal.local/api/v0/": "wss://portal.local/api/v0/ws",
	} {
		ch, err := NewChannel(base, &fakeAuth{}, nil, nil)
		if err != nil {
			t.Fatalf("NewChannel(%q) error = %v", base, err)
		}
		if got := ch.URL(); got != want {
			t.Fatalf("URL for %q = %q, want %q", base, got, want)
		}
	}

	if _, err := NewChannel("ftp://portal.local", &fakeAuth{}, nil, nil); err == nil {
		t.Fatalf("NewChannel() accepted an ftp url")
	}
}

func TestChannelGivesUpAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	auth.authed.Store(true)

	ch := newTestChannel(t, auth)
	ch.SetReconnectInterval(3 * time.Millisecond)

	var attempts atomic.Int32
	ch.SetDialer(func(ctx context.Context, url string, header http.Header) (conn, error) {
		attempts.Add(1)
		return nil, errors.New("refused")
	})

	ch.Connect(context.Background())
	waitFor(t, "channel to give up", func() bool { return ch.State() == StateGivenUp })

	got := attempts.Load()
	time.Sleep(20 * time.Millisecond)
	if attempts.Load() != got {
		t.Fatalf("dial attempts kept coming after giving up")
	}
	if got != maxFailures {
		t.Fatalf("dial attempts = %d, want %d", got, maxFailures)
	}

	// Connect starts the cycle over.
	ch.Connect(context.Background())
	waitFor(t, "new dial attempt", func() bool { return attempts.Load() > got })
}

func TestChannelConnectWhileReconnectingIsNoop(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	auth.authed.Store(true)

	ch := newTestChannel(t, auth)
	ch.SetReconnectInterval(time.Hour)

	var attempts atomic.Int32
	ch.SetDialer(func(ctx context.Context, url string, header http.Header) (conn, error) {
		attempts.Add(1)
		return nil, errors.New("refused")
	})

	ch.Connect(context.Background())
	if got := ch.State(); got != StateReconnecting {
		t.Fatalf("state = %q after failed connect, want %q", got, StateReconnecting)
	}

	// The pending retry cycle wins, no extra dial happens.
	ch.Connect(context.Background())
	ch.Connect(context.Background())
	if got := attempts.Load(); got != 1 {
		t.Fatalf("dial attempts = %d, want 1", got)
	}
}

func TestChannelStaysDownWhileLoggedOut(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	ch := newTestChannel(t, auth)

	var attempts atomic.Int32
	ch.SetDialer(func(ctx context.Context, url string, header http.Header) (conn, error) {
		attempts.Add(1)
		return nil, errors.New("refused")
	})

	ch.Connect(context.Background())
	if got := attempts.Load(); got != 0 {
		t.Fatalf("dialed %d times while logged out, want 0", got)
	}
	if got := ch.State(); got != StateDisconnected {
		t.Fatalf("state = %q, want %q", got, StateDisconnected)
	}
}

func TestChannelStopsReconnectingAfterLogout(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	auth.authed.Store(true)

	ch := newTestChannel(t, auth)
	ch.SetReconnectInterval(3 * time.Millisecond)

	var attempts atomic.Int32
	ch.SetDialer(func(ctx context.Context, url string, header http.Header) (conn, error) {
		attempts.Add(1)
		return nil, errors.New("refused")
	})

	ch.Connect(context.Background())
	waitFor(t, "a retry", func() bool { return attempts.Load() >= 2 })

	auth.authed.Store(false)
	waitFor(t, "channel to disconnect", func() bool { return ch.State() == StateDisconnected })

	got := attempts.Load()
	time.Sleep(20 * time.Millisecond)
	if attempts.Load() != got {
		t.Fatalf("dial attempts kept coming after logout")
	}
}

func TestChannelDispatch(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	auth.authed.Store(true)

	peers := &recordingSink{}
	ifaces := &recordingSink{}
	ch, err := NewChannel("http://portal.local/api/v0", auth, peers, ifaces)
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}
	t.Cleanup(ch.Disconnect)

	ws := newFakeConn()
	ch.SetDialer(func(ctx context.Context, url string, header http.Header) (conn, error) {
		return ws, nil
	})

	ch.Connect(context.Background())
	if got := ch.State(); got != StateConnected {
		t.Fatalf("state = %q after connect, want %q", got, StateConnected)
	}

	ws.msgs <- []byte(`{"type":"peer_stats","data":{"EntityId":"p1","BytesReceived":10,"BytesTransmitted":20}}`)
	ws.msgs <- []byte(`{"type":"interface_stats","data":{"EntityId":"wg0","BytesReceived":1}}`)
	ws.msgs <- []byte(`{"type":"peer_stats","data":[{"EntityId":"p2","BytesReceived":5}]}`)
	ws.msgs <- []byte(`{"type":"bogus","data":{}}`)
	ws.msgs <- []byte(`not json at all`)

	waitFor(t, "peer deltas", func() bool { return len(peers.all()) == 2 })
	waitFor(t, "interface delta", func() bool { return len(ifaces.all()) == 1 })

	if got := peers.all()[0]; got.EntityId != "p1" || got.BytesReceived != 10 || got.BytesTransmitted != 20 {
		t.Fatalf("peer delta = %+v", got)
	}
	if got := peers.all()[1]; got.EntityId != "p2" || got.BytesReceived != 5 {
		t.Fatalf("batched peer delta = %+v", got)
	}
	if got := ifaces.all()[0]; got.EntityId != "wg0" {
		t.Fatalf("interface delta = %+v", got)
	}
}
