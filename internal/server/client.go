package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/avalonserve/avalond/internal/room"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrClientClosed = websocket.ErrCloseSent

// Client wraps one websocket connection. It carries the session the
// connection authenticated into: the durable player identity, the connection
// generation the room issued, and the room code. A Client is the engine's
// Sender for its player.
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	service   *Service
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once

	identity string
	gen      uint64
	roomCode string
}

// NewClient creates a connection wrapper. Start must be called to begin the
// read and write pumps.
func NewClient(conn *websocket.Conn, service *Service, logger zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:    conn,
		send:    make(chan *Message, 256),
		service: service,
		logger:  logger.With().Str("component", "client").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins handling the connection
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed when the connection is finished.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send implements room.Sender: it wraps an engine event in the wire envelope
// and enqueues it. Event names and server-to-client message types share the
// same strings.
func (c *Client) Send(event string, payload any) error {
	msg, err := NewMessage(MessageType(event), payload)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

// enqueue queues a message for the write pump, dropping the connection when
// the buffer is full rather than blocking the engine.
func (c *Client) enqueue(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel closed during shutdown.
			c.logger.Debug().Interface("recovered", r).Msg("send on closed client")
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn().Msg("client send buffer full, closing connection")
		_ = c.Close()
		return ErrClientClosed
	}
}

// setSession records which player and room this connection belongs to.
func (c *Client) setSession(roomCode, identity string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.identity = identity
	c.gen = gen
}

func (c *Client) clearSession() {
	c.setSession("", "", 0)
}

// session returns the room code and caller for this connection.
func (c *Client) session() (string, room.Caller) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode, room.Caller{ID: c.identity, Gen: c.gen}
}

// readPump handles incoming messages from the client
func (c *Client) readPump() {
	defer func() {
		c.service.HandleDisconnect(c)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket error")
			}
			return
		}

		c.service.Dispatch(c, &msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// sendError reports a malformed frame back to the client.
func (c *Client) sendError(code, message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to create error message")
		return
	}
	_ = c.enqueue(msg)
}

// sendToast surfaces a rejected action to the offending caller only.
func (c *Client) sendToast(kind, message string) {
	msg, err := NewMessage(MessageTypeToast, ToastData{Type: kind, Message: message})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to create toast message")
		return
	}
	_ = c.enqueue(msg)
}
