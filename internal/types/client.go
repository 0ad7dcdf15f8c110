// Package types holds the per-connection client handle shared by the
// transport and the message handlers.
package types

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSendBufferFull is returned when a client's outbound buffer is full.
var ErrSendBufferFull = errors.New("send buffer full")

// Client is one live websocket connection. Its ID is the connection handle
// the matchmaking core keys on.
type Client struct {
	id    string
	Conn  *websocket.Conn
	Inbox chan []byte
	Once  sync.Once

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient wraps conn with outbound and inbound buffers of size buf.
// conn may be nil for clients that are never pumped.
func NewClient(conn *websocket.Conn, buf int) *Client {
	if buf <= 0 {
		buf = 1
	}
	return &Client{
		id:    uuid.NewString(),
		Conn:  conn,
		Inbox: make(chan []byte, buf),
		send:  make(chan []byte, buf),
	}
}

// ID implements session.Conn.
func (c *Client) ID() string { return c.id }

// Send returns the outbound channel drained by the write pump.
func (c *Client) Send() <-chan []byte { return c.send }

// Enqueue queues data for the write pump without blocking.
//
// Postcondition: data is buffered, or an error is returned if the client is
// closed or its buffer is full.
func (c *Client) Enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client %s is closed", c.id)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("client %s: %w", c.id, ErrSendBufferFull)
	}
}

// CloseSend closes the outbound channel. Later Enqueue calls fail.
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// IsClosed reports whether CloseSend has been called.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer address, or "-" for unpumped clients.
func (c *Client) RemoteAddr() string {
	if c.Conn == nil {
		return "-"
	}
	return c.Conn.RemoteAddr().String()
}
