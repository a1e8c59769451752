// Package realtime maintains the websocket side channel for live
// traffic updates. The channel is strictly best-effort: the stores stay
// correct from polling alone, realtime only makes them fresher.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"portalctl/internal/model"
)

// State of the channel. Transitions are driven by the read loop and the
// reconnect ticker only.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateGivenUp      State = "given up"
)

// maxFailures is the number of consecutive failed connection attempts
// after which the reconnect ticker stops without dialing again, until
// Connect is called.
const maxFailures = 3

// DefaultReconnectInterval matches the portal frontend's retry cadence.
const DefaultReconnectInterval = 5 * time.Second

// Message types pushed by the backend.
const (
	MessagePeerStats      = "peer_stats"
	MessageInterfaceStats = "interface_stats"
)

// envelope is the wire form of a realtime message. The type tag decides
// how data is decoded.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TrafficSink receives incremental traffic updates. Both the peer and
// the interface store implement it.
type TrafficSink interface {
	ApplyTrafficDelta(delta model.TrafficDelta)
}

// AuthState gates reconnect attempts: a channel never dials while the
// user is logged out.
type AuthState interface {
	IsAuthenticated() bool
}

// conn is the subset of *websocket.Conn the channel uses.
type conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// DialFunc opens a websocket connection. Tests swap it out.
type DialFunc func(ctx context.Context, url string, header http.Header) (conn, error)

func gorillaDial(ctx context.Context, rawURL string, header http.Header) (conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Channel is a reconnecting websocket client for the portal's /ws
// endpoint.
type Channel struct {
	url      string
	auth     AuthState
	peers    TrafficSink
	ifaces   TrafficSink
	dial     DialFunc
	interval time.Duration

	mu       sync.Mutex
	state    State
	conn     conn
	failures int
	stopTick chan struct{} // non-nil while the reconnect ticker runs
}

// NewChannel derives the websocket URL from the API base URL: the
// scheme flips to ws/wss and the path is replaced by /ws.
func NewChannel(baseURL string, auth AuthState, peers, ifaces TrafficSink) (*Channel, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""

	return &Channel{
		url:      u.String(),
		auth:     auth,
		peers:    peers,
		ifaces:   ifaces,
		dial:     gorillaDial,
		interval: DefaultReconnectInterval,
		state:    StateDisconnected,
	}, nil
}

// SetDialer replaces the websocket dialer, for tests.
func (c *Channel) SetDialer(dial DialFunc) {
	c.mu.Lock()
	c.dial = dial
	c.mu.Unlock()
}

// SetReconnectInterval overrides the retry cadence.
func (c *Channel) SetReconnectInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// State returns the current channel state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the derived websocket endpoint.
func (c *Channel) URL() string {
	return c.url
}

// Connect opens the channel. Calling it while connected or while a
// reconnect cycle is running is a no-op; calling it after the channel
// gave up resets the failure counter and starts over.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateConnected || c.stopTick != nil {
		c.mu.Unlock()
		return
	}
	if !c.auth.IsAuthenticated() {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}
	c.failures = 0
	dial := c.dial
	c.mu.Unlock()

	ws, err := dial(ctx, c.url, nil)
	if err != nil {
		log.Printf("realtime connect failed: %v", err)
		c.onFailure(ctx)
		return
	}
	c.adopt(ctx, ws)
}

// Disconnect closes the channel and stops any reconnect cycle.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.failures = 0
	c.state = StateDisconnected
}

func (c *Channel) adopt(ctx context.Context, ws conn) {
	c.mu.Lock()
	c.stopTickLocked()
	c.conn = ws
	c.failures = 0
	c.state = StateConnected
	c.mu.Unlock()

	go c.readLoop(ctx, ws)
}

func (c *Channel) readLoop(ctx context.Context, ws conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.conn != ws
			if !stale {
				c.conn = nil
			}
			c.mu.Unlock()
			if stale || ctx.Err() != nil {
				return
			}
			log.Printf("realtime read failed: %v", err)
			c.onFailure(ctx)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("realtime: dropping malformed message: %v", err)
		return
	}

	var sink TrafficSink
	switch msg.Type {
	case MessagePeerStats:
		sink = c.peers
	case MessageInterfaceStats:
		sink = c.ifaces
	default:
		log.Printf("realtime: dropping message of unknown type %q", msg.Type)
		return
	}
	if sink == nil {
		return
	}

	// One delta per frame is the backend's shape, but batched frames
	// are accepted too.
	var delta model.TrafficDelta
	if err := json.Unmarshal(msg.Data, &delta); err == nil {
		sink.ApplyTrafficDelta(delta)
		return
	}
	var deltas []model.TrafficDelta
	if err := json.Unmarshal(msg.Data, &deltas); err != nil {
		log.Printf("realtime: dropping %s payload: %v", msg.Type, err)
		return
	}
	for _, d := range deltas {
		sink.ApplyTrafficDelta(d)
	}
}

// onFailure counts the failed attempt and makes sure exactly one
// reconnect ticker is running. The give-up decision happens at the next
// tick, before any dial.
func (c *Channel) onFailure(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	c.state = StateReconnecting
	if c.stopTick != nil {
		return
	}

	stop := make(chan struct{})
	c.stopTick = stop
	go c.reconnectLoop(ctx, stop)
}

func (c *Channel) reconnectLoop(ctx context.Context, stop chan struct{}) {
	c.mu.Lock()
	interval := c.interval
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			c.Disconnect()
			return
		case <-ticker.C:
		}

		if !c.auth.IsAuthenticated() {
			c.Disconnect()
			return
		}

		c.mu.Lock()
		if c.stopTick != stop {
			c.mu.Unlock()
			return
		}
		if c.failures >= maxFailures {
			c.stopTickLocked()
			c.state = StateGivenUp
			log.Printf("realtime: giving up after %d failed attempts", c.failures)
			c.mu.Unlock()
			return
		}
		dial := c.dial
		c.mu.Unlock()

		ws, err := dial(ctx, c.url, nil)
		if err == nil {
			c.adopt(ctx, ws)
			return
		}
		log.Printf("realtime reconnect failed: %v", err)

		c.mu.Lock()
		c.failures++
		c.mu.Unlock()
	}
}

// stopTickLocked closes the ticker channel if one is running. Callers
// hold c.mu.
func (c *Channel) stopTickLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}
