package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure     = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

type Connection interface {
	// Send enqueues msg without blocking on the network.
	Send(msg *Message) error
	ReadMessage() (*Message, error)
	Close() error
	RemoteAddr() net.Addr
}

type Options struct {
	ReadLimit  int64
	SendBuffer int
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		SendBuffer: 64,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  5 * time.Second,
	}
}

// WSConnection owns one gorilla connection. Reads happen on the caller's
// goroutine through ReadMessage; writes are serialized by WritePump.
type WSConnection struct {
	conn *websocket.Conn
	opts Options
	send chan []byte

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewWSConnection(conn *websocket.Conn, opts Options) *WSConnection {
	c := &WSConnection{
		conn: conn,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}
	conn.SetReadLimit(opts.ReadLimit)
	c.setHeartbeat()
	return c
}

// setHeartbeat arms the read deadline and extends it on every pong.
func (c *WSConnection) setHeartbeat() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
}

func (c *WSConnection) Send(msg *Message) error {
	frame, err := msg.Encode()
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *WSConnection) ReadMessage() (*Message, error) {
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := Decode(frame)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return msg, nil
}

// WritePump drains queued frames and sends keepalive pings until ctx is
// cancelled, the connection is closed, or a write fails.
func (c *WSConnection) WritePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Terminate()
	}()

	for {
		select {
		case <-ctx.Done():
			c.writeClose()
			return
		case <-c.done:
			c.flush()
			c.writeClose()
			return
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever was queued before Close.
func (c *WSConnection) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *WSConnection) writeClose() {
	_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *WSConnection) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Close stops accepting frames. The write pump flushes the queue, sends a
// close frame and closes the socket, which unblocks ReadMessage.
func (c *WSConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

// Terminate closes the underlying socket immediately.
func (c *WSConnection) Terminate() error {
	_ = c.Close()
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// DecodeError marks a frame that arrived intact but could not be parsed.
// The connection remains usable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
