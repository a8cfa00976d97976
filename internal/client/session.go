// Package client is the participant side of the relay protocol: it owns the
// socket, runs the read loop and exposes one sender per outbound message.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Options tunes a Session. The zero value is usable.
type Options struct {
	// OnDisconnect runs on the read goroutine when the server side closes or
	// fails. It is not called for Disconnect.
	OnDisconnect func(err error)
	DialTimeout  time.Duration
	MaxLineBytes int
}

// Session is one connection to the relay.
// ARCHITECTURAL DISCOVERY: Every sender is a silent no-op while disconnected, so
// UI code can fire events without checking connection state first
type Session struct {
	handler Handler
	opts    Options

	mu        sync.Mutex
	conn      *protocol.LineConn
	done      chan struct{} // closed when the current connection's read loop exits
	gen       uint64        // bumped per connection so a stale read loop cannot clobber a newer one
	connected bool
	nickname  string
	role      types.Role
}

// New creates a disconnected session delivering inbound messages to handler
func New(handler Handler, opts Options) (*Session, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	return &Session{handler: handler, opts: opts, role: types.DefaultRole}, nil
}

// Connect tears down any previous connection, dials the relay and sends JOIN.
// The read loop runs until the server closes the connection or Disconnect is called.
func (s *Session) Connect(ctx context.Context, host string, port int, nickname string, role types.Role) error {
	if err := types.ValidateNickname(nickname); err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return ErrInvalidPort
	}

	s.Disconnect()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	log.Printf("Connecting to relay: addr=%s nick=%s role=%s", addr, nickname, role)

	dialer := net.Dialer{Timeout: s.opts.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	conn := protocol.NewLineConn(raw, s.opts.MaxLineBytes, 0)

	done := make(chan struct{})

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.conn = conn
	s.done = done
	s.connected = true
	s.nickname = nickname
	s.role = role
	s.mu.Unlock()

	if err := s.send(protocol.Join{Nickname: nickname, Role: role}); err != nil {
		s.Disconnect()
		return fmt.Errorf("send JOIN: %w", err)
	}

	go s.readLoop(conn, gen, done)

	log.Printf("Connected to relay: addr=%s", addr)
	return nil
}

// Disconnect closes the connection. Safe to call repeatedly and from the
// handler; it does not wait for the read goroutine.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.gen++
	s.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		log.Printf("Close failed: %v", err)
	}
	log.Printf("Disconnected from relay")
}

// Leave ends the session gracefully. It half-closes the socket, so the relay
// reads everything already sent before EOF, and keeps reading until the relay
// closes its side; OnDisconnect then runs with a nil error. When ctx expires
// first the connection is dropped as with Disconnect.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.CloseWrite(); err != nil {
		s.Disconnect()
		return fmt.Errorf("half-close: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Disconnect()
		return ctx.Err()
	}
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Nickname is the name sent in the last JOIN
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Role is the role sent in the last JOIN
func (s *Session) Role() types.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) readLoop(conn *protocol.LineConn, gen uint64, done chan struct{}) {
	defer close(done)

	var readErr error
	for {
		line, err := conn.ReadLine()
		if errors.Is(err, protocol.ErrLineTooLong) {
			log.Printf("Dropped server line: error=%v", err)
			continue
		}
		if err != nil {
			readErr = err
			break
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			log.Printf("Dropped server line: error=%v", err)
			continue
		}
		s.handler.HandleMessage(msg)
	}

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.conn = nil
		s.connected = false
	}
	s.mu.Unlock()
	_ = conn.Close()

	if !current {
		return
	}
	if errors.Is(readErr, io.EOF) {
		readErr = nil
	}
	log.Printf("Relay connection lost: error=%v", readErr)
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect(readErr)
	}
}

// send encodes and writes one message; disconnected sessions drop it silently
func (s *Session) send(m protocol.Message) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	line, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	if err := conn.WriteLine(line); err != nil {
		log.Printf("Send failed: tag=%s error=%v", m.Tag(), err)
		return err
	}
	return nil
}

// SendSnapshot sends the full text of a document
func (s *Session) SendSnapshot(path types.VirtualPath, text string) error {
	return s.send(protocol.Edit{Path: path, Text: text})
}

// SendCursor sends this participant's caret and selection anchor
func (s *Session) SendCursor(path types.VirtualPath, dot, mark int) error {
	return s.send(protocol.Cursor{Path: path, Nickname: s.Nickname(), Dot: dot, Mark: mark})
}

// SendViewport sends the top visible line for followers
func (s *Session) SendViewport(path types.VirtualPath, line int) error {
	return s.send(protocol.Viewport{Path: path, Line: line})
}

// SendLaser sends pointer coordinates; use protocol.LaserHidden for both to hide it
func (s *Session) SendLaser(path types.VirtualPath, x, y int) error {
	return s.send(protocol.Laser{Path: path, X: x, Y: y})
}

func (s *Session) SendFileCreate(path types.VirtualPath, isDir bool) error {
	return s.send(protocol.FileCreate{Path: path, IsDir: isDir, Nickname: s.Nickname()})
}

func (s *Session) SendFileDelete(path types.VirtualPath) error {
	return s.send(protocol.FileDelete{Path: path, Nickname: s.Nickname()})
}

func (s *Session) SendFileRename(oldPath, newPath types.VirtualPath) error {
	return s.send(protocol.FileRename{OldPath: oldPath, NewPath: newPath, Nickname: s.Nickname()})
}

// SendQuestion asks the professors a question under this participant's nickname
func (s *Session) SendQuestion(text string) error {
	return s.send(protocol.Question{Student: s.Nickname(), Text: text})
}

// RequestCompile asks for the compile lock on path; the answer arrives as
// CompileGranted or CompileDenied
func (s *Session) RequestCompile(path types.VirtualPath) error {
	return s.send(protocol.CompileReq{Path: path, Nickname: s.Nickname()})
}

// ReleaseCompile gives the compile lock on path back
func (s *Session) ReleaseCompile(path types.VirtualPath) error {
	return s.send(protocol.CompileRelease{Path: path, Nickname: s.Nickname()})
}

func (s *Session) SendCompileStart(path types.VirtualPath) error {
	return s.send(protocol.CompileStart{Path: path, Nickname: s.Nickname()})
}

// SendCompileOutput streams one line of compiler output
func (s *Session) SendCompileOutput(path types.VirtualPath, line string) error {
	return s.send(protocol.CompileOut{Path: path, Nickname: s.Nickname(), Line: line})
}

func (s *Session) SendCompileEnd(path types.VirtualPath, exitCode int) error {
	return s.send(protocol.CompileEnd{Path: path, Nickname: s.Nickname(), ExitCode: exitCode})
}
