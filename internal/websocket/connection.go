// Package websocket is a gateway that lets browser clients speak the relay
// line protocol: one text frame carries one protocol line.
package websocket

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SoCo-NP/SoCo/pkg/protocol"
)

// ConnectionOptions tunes a Connection. Zero fields take the defaults below.
type ConnectionOptions struct {
	BufferSize   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration // extended by every pong; 0 disables
	MaxLineBytes int
}

const (
	defaultBufferSize   = 256
	defaultWriteTimeout = 10 * time.Second
)

// Connection adapts a websocket to interfaces.Conn
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions.
// Writes go through one writer goroutine; reads happen on the hub's session goroutine
type Connection struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	opts      ConnectionOptions
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	pending []string // extra lines from a frame that carried several
}

// NewConnection wraps conn and starts its writer
func NewConnection(conn *websocket.Conn, opts ConnectionOptions) *Connection {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = protocol.DefaultMaxLineBytes
	}
	conn.SetReadLimit(int64(opts.MaxLineBytes))

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan []byte, opts.BufferSize),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()
	return c
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	defer c.Close()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ReadLine returns the next protocol line. A frame holding several
// newline-separated lines yields them one by one. A normal close is io.EOF.
func (c *Connection) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return "", io.EOF
			}
			// gorilla fails the connection on an oversize frame, so unlike a TCP
			// line it cannot be skipped
			if errors.Is(err, websocket.ErrReadLimit) {
				return "", ErrFrameTooLarge
			}
			return "", err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		text := strings.TrimRight(string(data), "\r\n")
		for _, line := range strings.Split(text, "\n") {
			c.pending = append(c.pending, strings.TrimSuffix(line, "\r"))
		}
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

// WriteLine queues one line as a text frame. A full queue means the browser
// stopped reading; the write fails instead of stalling the relay.
func (c *Connection) WriteLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrInvalidLine
	}

	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- []byte(line):
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteTimeout
	}
}

// Heartbeat pings the peer until the connection closes. Every pong extends
// the read deadline, so a silent peer is dropped after ReadTimeout.
func (c *Connection) Heartbeat(interval time.Duration) error {
	if c.opts.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return err
		}
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		})
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()
	return nil
}

// ARCHITECTURAL DISCOVERY: Clean shutdown requires careful goroutine coordination
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
