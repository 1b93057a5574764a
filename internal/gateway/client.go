package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/rewardbot/internal/logging"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client is one connected socket. Queries sent without a sessionId continue
// the session the socket used last.
type Client struct {
	ConnID      string
	Remote      string
	ConnectedAt time.Time

	conn    *websocket.Conn
	seq     atomic.Int64
	queries atomic.Int64

	mu      sync.Mutex // guards writes, closed and session
	closed  bool
	session string
	log     *logging.Logger
}

// NewClient wraps a freshly upgraded connection. conn may be nil in tests.
func NewClient(conn *websocket.Conn, remote string, log *logging.Logger) *Client {
	c := &Client{
		ConnID:      uuid.NewString(),
		Remote:      remote,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
	c.log = log.With("connId", c.ConnID)
	return c
}

// Session returns the session this socket last answered in, or "".
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// remember records the session of an answer and counts the query.
func (c *Client) remember(sessionID string) {
	c.queries.Add(1)
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	c.session = sessionID
	c.mu.Unlock()
}

// Queries reports how many queries this socket has had answered.
func (c *Client) Queries() int64 { return c.queries.Load() }

// Send writes a frame. Safe for concurrent use.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// SendEvent sends an event stamped with this socket's next sequence number.
func (c *Client) SendEvent(event string, payload any) error {
	f, err := NewEvent(event, payload, c.seq.Add(1))
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond sends a success response for reqID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for reqID.
func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next frame. A malformed frame yields a JSON
// decode error and leaves the connection usable.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// keepAlive pings the peer until ctx ends or a ping cannot be written. Each
// pong pushes the read deadline out, so a peer that misses two pings is dropped.
func (c *Client) keepAlive(ctx context.Context, interval time.Duration) {
	wait := 2*interval + writeWait
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// Close sends a close frame with the given reason and closes the socket.
func (c *Client) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	return c.conn.Close()
}

// ClientRegistry tracks connected sockets.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID -> Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.Remote).Msg("client connected")
}

// Remove unregisters a client.
func (r *ClientRegistry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c.ConnID)
	r.log.Info().
		Str("connId", c.ConnID).
		Int64("queries", c.Queries()).
		Dur("connected", time.Since(c.ConnectedAt)).
		Msg("client disconnected")
}

// Get returns a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Shutdown tells every client the server is going away and closes them.
func (r *ClientRegistry) Shutdown(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		if err := c.SendEvent(EventShutdown, map[string]string{"reason": reason}); err != nil {
			r.log.Debug().Err(err).Str("connId", id).Msg("shutdown notice not delivered")
		}
		c.Close(websocket.CloseGoingAway, reason)
		delete(r.clients, id)
	}
}
