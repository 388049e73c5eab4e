package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"lchat/logger"
	"lchat/tools/ids"
	"lchat/tools/safe"
)

const (
	sendQueueSize  = 256
	writeWait      = 10 * time.Second
	sweepInterval  = time.Second
	handshakeGrace = 60 * time.Second // clients begin heartbeating only after join
)

// WsConn wraps one websocket with its outbound queue and identity state.
// All writes go through the send queue; the write pump is the only goroutine
// touching the underlying connection for writes.
type WsConn struct {
	ConnID  string
	conn    *websocket.Conn
	pending *PendingReplies

	sendChan  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	authID     string // identity proven at handshake
	userID     string // identity bound at join
	background bool
	expireAt   time.Time
}

// SetAuthID records the handshake identity.
func (c *WsConn) SetAuthID(userID string) {
	c.mu.Lock()
	c.authID = userID
	c.mu.Unlock()
}

func (c *WsConn) AuthID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authID
}

func (c *WsConn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *WsConn) Background() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.background
}

// Touch pushes the liveness deadline out by window.
func (c *WsConn) Touch(window time.Duration) {
	c.mu.Lock()
	c.expireAt = time.Now().Add(window)
	c.mu.Unlock()
}

func (c *WsConn) expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.After(c.expireAt)
}

// Send queues one encoded frame. Fails fast when the connection is closed or
// the queue is full; a client that slow is treated as gone.
func (c *WsConn) Send(raw []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.sendChan <- raw:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	default:
		return errors.Errorf("send queue full, conn=%s", c.ConnID)
	}
}

// Emit sends a fire-and-forget event frame.
func (c *WsConn) Emit(event string, data any) error {
	raw, err := EncodeFrame(event, "", data)
	if err != nil {
		return err
	}
	return c.Send(raw)
}

// Reply answers a frame that carried an ack_id. Frames without one expect no
// reply, so this is a no-op for them.
func (c *WsConn) Reply(ackID string, data any) error {
	if ackID == "" {
		return nil
	}
	raw, err := AckFrame(ackID, data)
	if err != nil {
		return err
	}
	return c.Send(raw)
}

// Request sends an event frame that carries an ack_id and waits for the
// client's ack. The result is always one of Delivered, TimedOut or Errored.
func (c *WsConn) Request(ctx context.Context, event string, data any, timeout time.Duration) ProbeResult {
	ackID, ch := c.pending.Register()
	raw, err := EncodeFrame(event, ackID, data)
	if err != nil {
		c.pending.Drop(ackID)
		return ProbeResult{Outcome: Errored}
	}
	if err := c.Send(raw); err != nil {
		c.pending.Drop(ackID)
		return ProbeResult{Outcome: Errored}
	}
	return c.pending.Await(ctx, ackID, ch, timeout)
}

// Close shuts the connection down once; the read loop unblocks and runs
// teardown through the manager.
func (c *WsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *WsConn) writePump() {
	for {
		select {
		case raw := <-c.sendChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				logger.Warnf("write failed, conn=%s err=%v", c.ConnID, err)
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// ===== manager =====

// ConnManager is the in-memory connection registry: byConn for teardown,
// byUser for routing. One live connection per user; a rejoin replaces and
// closes the previous one.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*WsConn
	byUser map[string]*WsConn

	pending *PendingReplies
	window  time.Duration
}

func NewConnManager(pending *PendingReplies, heartbeatWindow time.Duration) *ConnManager {
	return &ConnManager{
		byConn:  make(map[string]*WsConn),
		byUser:  make(map[string]*WsConn),
		pending: pending,
		window:  heartbeatWindow,
	}
}

// Add registers a freshly upgraded connection under a new conn id.
func (m *ConnManager) Add(ws *websocket.Conn) *WsConn {
	c := &WsConn{
		ConnID:   ids.GenerateString(),
		conn:     ws,
		pending:  m.pending,
		sendChan: make(chan []byte, sendQueueSize),
		closed:   make(chan struct{}),
		expireAt: time.Now().Add(handshakeGrace),
	}
	m.mu.Lock()
	m.byConn[c.ConnID] = c
	m.mu.Unlock()
	safe.Go("ws-write-pump", c.writePump)
	return c
}

// Bind attaches a user identity to the connection. If the user already has a
// live connection it is closed and replaced.
func (m *ConnManager) Bind(c *WsConn, userID string, background bool) {
	c.mu.Lock()
	c.userID = userID
	c.background = background
	c.mu.Unlock()

	m.mu.Lock()
	prev := m.byUser[userID]
	m.byUser[userID] = c
	m.mu.Unlock()

	if prev != nil && prev != c {
		logger.Infof("replacing stale connection, user=%s old=%s new=%s", userID, prev.ConnID, c.ConnID)
		prev.Close()
	}
}

// Lookup returns the live connection routing to userID.
func (m *ConnManager) Lookup(userID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byUser[userID]
	return c, ok
}

// Remove unregisters the connection. The byUser slot is cleared only when it
// still points at this connection, so a replacing rejoin is not clobbered.
func (m *ConnManager) Remove(c *WsConn) {
	user := c.UserID()
	m.mu.Lock()
	delete(m.byConn, c.ConnID)
	if user != "" && m.byUser[user] == c {
		delete(m.byUser, user)
	}
	m.mu.Unlock()
}

// Window is the configured heartbeat window.
func (m *ConnManager) Window() time.Duration { return m.window }

// RunSweeper force-closes connections whose heartbeat deadline passed.
func (m *ConnManager) RunSweeper(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			var stale []*WsConn
			m.mu.RLock()
			for _, c := range m.byConn {
				if c.expired(now) {
					stale = append(stale, c)
				}
			}
			m.mu.RUnlock()
			for _, c := range stale {
				logger.Infof("heartbeat expired, closing conn=%s user=%s", c.ConnID, c.UserID())
				c.Close()
			}
		}
	}
}
