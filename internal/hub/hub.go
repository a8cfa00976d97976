// Package hub is the relay server core: it owns every session's read loop,
// fans lines out through the registry and arbitrates compile locks.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SoCo-NP/SoCo/internal/compilelock"
	"github.com/SoCo-NP/SoCo/internal/router"
	"github.com/SoCo-NP/SoCo/internal/session"
	"github.com/SoCo-NP/SoCo/pkg/interfaces"
	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// journalTimeout bounds one journal write made from a session read loop
const journalTimeout = 2 * time.Second

// Options tunes a Hub. The zero value is usable.
type Options struct {
	Journal      interfaces.Journal // nil disables journaling
	Metrics      *Metrics           // nil registers into a private registry
	MaxLineBytes int                // <= 0 selects protocol.DefaultMaxLineBytes
	WriteTimeout time.Duration      // 0 disables per-write deadlines on TCP sessions
}

// Hub coordinates sessions, routing and compile locks.
// ARCHITECTURAL DISCOVERY: One goroutine per connection runs a blocking read loop;
// shared state lives in the registry and the lock table, each behind its own mutex.
// Lock order is always registry then table.
type Hub struct {
	registry *session.Registry
	locks    *compilelock.Table
	router   *router.Router
	journal  interfaces.Journal
	metrics  *Metrics
	runID    string

	maxLine      int
	writeTimeout time.Duration

	mu      sync.RWMutex
	running bool
	conns   sync.WaitGroup
}

// NewHub wires the relay from its components
func NewHub(registry *session.Registry, locks *compilelock.Table, rt *router.Router, opts Options) *Hub {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	return &Hub{
		registry:     registry,
		locks:        locks,
		router:       rt,
		journal:      opts.Journal,
		metrics:      metrics,
		runID:        uuid.NewString(),
		maxLine:      opts.MaxLineBytes,
		writeTimeout: opts.WriteTimeout,
	}
}

// RunID identifies this hub's journal entries
func (h *Hub) RunID() string {
	return h.runID
}

// Start marks the hub as accepting connections
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true

	log.Printf("Relay hub started: run=%s", h.runID)
	return nil
}

// Stop refuses new connections, closes every session and waits for their
// read loops to finish cleanup or for ctx to expire.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	h.mu.Unlock()

	log.Println("Stopping relay hub...")
	h.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Relay hub stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions to close: %w", ctx.Err())
	}
}

// IsRunning reports whether Start has been called without a matching Stop
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Serve accepts TCP connections on ln until ctx is cancelled or ln fails.
// Every connection gets its own goroutine running HandleConn.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		return ErrNilListener
	}
	if !h.IsRunning() {
		return ErrHubNotRunning
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	log.Printf("Relay listening: addr=%s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		// TECHNICAL DISCOVERY: Cursor and laser lines are tiny and latency-sensitive
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		lc := protocol.NewLineConn(conn, h.maxLine, h.writeTimeout)
		go func() {
			if err := h.HandleConn(lc); err != nil && !errors.Is(err, ErrHubNotRunning) {
				log.Printf("Connection ended with error: remote=%s error=%v", lc.RemoteAddr(), err)
			}
		}()
	}
}

// HandleConn runs one session to completion on the calling goroutine.
// It returns when the peer disconnects or the connection fails; cleanup has
// already happened by then.
func (h *Hub) HandleConn(conn interfaces.Conn) error {
	s := session.New(conn)

	// TECHNICAL DISCOVERY: The running check and the registry add happen under one read
	// lock, so Stop's CloseAll (taken after the write lock) always sees this session
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		_ = conn.Close()
		return ErrHubNotRunning
	}
	if err := h.registry.Add(s); err != nil {
		h.mu.RUnlock()
		_ = conn.Close()
		return err
	}
	h.conns.Add(1)
	h.mu.RUnlock()
	defer h.conns.Done()

	h.metrics.Sessions.Inc()
	log.Printf("Connection accepted: session=%s remote=%s", s.ID(), conn.RemoteAddr())

	defer h.disconnect(s)

	for {
		line, err := conn.ReadLine()
		if errors.Is(err, protocol.ErrLineTooLong) {
			h.metrics.Dropped.WithLabelValues(dropReason(err)).Inc()
			log.Printf("Dropped line: session=%s nick=%s error=%v", s.ID(), s.Nickname(), err)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || s.State() == session.StateClosed {
				return nil
			}
			return err
		}
		h.handleLine(s, line)
	}
}

// handleLine applies one inbound line. Nothing here closes the session:
// a bad line is dropped and the next one is read normally.
func (h *Hub) handleLine(s *session.Session, line string) {
	rt, err := h.router.Route(line)
	if err != nil {
		h.metrics.Dropped.WithLabelValues(dropReason(err)).Inc()
		log.Printf("Dropped line: session=%s nick=%s error=%v", s.ID(), s.Nickname(), err)
		return
	}

	if rt.Action != router.ActionJoin {
		s.Touch()
	}

	switch rt.Action {
	case router.ActionJoin:
		h.join(s, rt.Message.(protocol.Join))
	case router.ActionBroadcast, router.ActionProfessors:
		h.relay(s, rt)
	case router.ActionCompileRequest:
		h.compileRequest(s, rt.Message.(protocol.CompileReq))
	case router.ActionCompileRelease:
		h.compileRelease(s, rt.Message.(protocol.CompileRelease))
	}
}

// join records the identity and exchanges role info with every peer.
// FUNCTIONAL DISCOVERY: Joins run under the registry lock, so of any two sessions
// the later joiner always sees the earlier one as joined and both directions are sent
func (h *Hub) join(s *session.Session, m protocol.Join) {
	var joined bool

	h.registry.Exclusive(func(sessions []*session.Session) {
		if err := s.Join(m.Nickname, m.Role); err != nil {
			log.Printf("Ignored JOIN: session=%s nick=%s error=%v", s.ID(), s.Nickname(), err)
			return
		}
		joined = true
		me := s.Participant()

		h.send(s, protocol.Info{Text: "Welcome " + me.Nickname})

		if line, ok := h.encode(protocol.RoleInfo{Nickname: me.Nickname, Role: me.Role}); ok {
			session.Deliver(sessions, line, nil)
		}

		for _, peer := range sessions {
			if peer == s || !peer.Joined() {
				continue
			}
			p := peer.Participant()
			h.send(s, protocol.RoleInfo{Nickname: p.Nickname, Role: p.Role})
		}
	})

	if !joined {
		return
	}

	p := s.Participant()
	h.metrics.Joins.Inc()
	log.Printf("Client joined: session=%s nick=%s role=%s remote=%s", s.ID(), p.Nickname, p.Role, s.Conn().RemoteAddr())
	h.record(types.EventJoin, p.Nickname, p.Role.String(), "", "")
}

// relay forwards a line verbatim to the route's recipients
func (h *Hub) relay(s *session.Session, rt router.Route) {
	match, err := h.router.Recipients(rt, s)
	if err != nil {
		log.Printf("No recipients: session=%s action=%s error=%v", s.ID(), rt.Action, err)
		return
	}

	h.registry.Multicast(rt.Line, match)
	h.metrics.Relayed.WithLabelValues(string(rt.Message.Tag())).Inc()

	if q, ok := rt.Message.(protocol.Question); ok {
		h.record(types.EventQuestion, q.Student, s.Role().String(), "", q.Text)
	}
}

// compileRequest grants or denies the lock named in the request.
// The holder is the nickname carried in the message, not the session's.
func (h *Hub) compileRequest(s *session.Session, m protocol.CompileReq) {
	var granted bool

	h.registry.Exclusive(func(sessions []*session.Session) {
		err := h.locks.Acquire(m.Path, m.Nickname)

		var held *compilelock.HeldError
		switch {
		case err == nil:
			granted = true
			if line, ok := h.encode(protocol.CompileGranted{Path: m.Path, Nickname: m.Nickname}); ok {
				_ = s.Send(line)
				session.Deliver(sessions, line, s)
			}
		case errors.As(err, &held):
			h.send(s, protocol.CompileDenied{Path: m.Path, Holder: held.Holder})
		default:
			log.Printf("Compile lock error: path=%s nick=%s error=%v", m.Path, m.Nickname, err)
		}
	})

	if granted {
		h.metrics.CompileLocks.WithLabelValues("granted").Inc()
		h.metrics.LocksHeld.Set(float64(h.locks.Len()))
		log.Printf("Compile lock granted: path=%s nick=%s", m.Path, m.Nickname)
		h.record(types.EventCompileGranted, m.Nickname, s.Role().String(), m.Path, "")
		return
	}
	h.metrics.CompileLocks.WithLabelValues("denied").Inc()
	log.Printf("Compile lock denied: path=%s nick=%s", m.Path, m.Nickname)
}

// compileRelease drops the lock only when the named nickname holds it
func (h *Hub) compileRelease(s *session.Session, m protocol.CompileRelease) {
	var released bool

	h.registry.Exclusive(func(sessions []*session.Session) {
		if !h.locks.Release(m.Path, m.Nickname) {
			return
		}
		released = true
		if line, ok := h.encode(protocol.CompileRelease{Path: m.Path, Nickname: m.Nickname}); ok {
			session.Deliver(sessions, line, s)
		}
	})

	if !released {
		h.metrics.CompileLocks.WithLabelValues("ignored").Inc()
		return
	}
	h.metrics.CompileLocks.WithLabelValues("released").Inc()
	h.metrics.LocksHeld.Set(float64(h.locks.Len()))
	log.Printf("Compile lock released: path=%s nick=%s", m.Path, m.Nickname)
	h.record(types.EventCompileReleased, m.Nickname, s.Role().String(), m.Path, "release")
}

// disconnect reclaims the session's locks, tells the others and forgets it.
// No departure message is broadcast.
func (h *Hub) disconnect(s *session.Session) {
	nick := s.Nickname()
	joined := s.Joined()
	_ = s.Close()

	var released []types.VirtualPath
	h.registry.Exclusive(func(sessions []*session.Session) {
		released = h.locks.ReleaseAll(nick)
		for _, path := range released {
			if line, ok := h.encode(protocol.CompileRelease{Path: path, Nickname: nick}); ok {
				session.Deliver(sessions, line, s)
			}
		}
	})
	h.registry.Remove(s)

	h.metrics.Sessions.Dec()
	if len(released) > 0 {
		h.metrics.CompileLocks.WithLabelValues("reclaimed").Add(float64(len(released)))
		h.metrics.LocksHeld.Set(float64(h.locks.Len()))
	}
	for _, path := range released {
		h.record(types.EventCompileReleased, nick, s.Role().String(), path, "disconnect")
	}
	if joined {
		h.record(types.EventLeave, nick, s.Role().String(), "", "")
	}

	log.Printf("Client disconnected: session=%s nick=%s released=%d connected_for=%s",
		s.ID(), nick, len(released), time.Since(s.ConnectedAt()).Round(time.Millisecond))
}

// send encodes and unicasts a server-generated message
func (h *Hub) send(s *session.Session, m protocol.Message) {
	line, ok := h.encode(m)
	if !ok {
		return
	}
	if err := s.Send(line); err != nil {
		log.Printf("Send failed: session=%s tag=%s error=%v", s.ID(), m.Tag(), err)
	}
}

func (h *Hub) encode(m protocol.Message) (string, bool) {
	line, err := protocol.Encode(m)
	if err != nil {
		log.Printf("Encode failed: tag=%s error=%v", m.Tag(), err)
		return "", false
	}
	return line, true
}

// record writes a journal event; failures never affect relaying
func (h *Hub) record(kind types.EventKind, nick, role string, path types.VirtualPath, detail string) {
	if h.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	ev := &types.Event{
		RunID:    h.runID,
		Kind:     kind,
		Nickname: nick,
		Role:     role,
		Path:     path,
		Detail:   detail,
	}
	if err := h.journal.Record(ctx, ev); err != nil {
		log.Printf("Journal write failed: kind=%s nick=%s error=%v", kind, nick, err)
	}
}

// Roster lists joined participants in connection order
func (h *Hub) Roster() []types.Participant {
	return h.registry.Roster()
}

func (h *Hub) SessionCount() int {
	return h.registry.SessionCount()
}

// Locks returns a copy of the compile lock table
func (h *Hub) Locks() map[types.VirtualPath]string {
	return h.locks.Locks()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownTag):
		return "unknown_tag"
	case errors.Is(err, protocol.ErrArity):
		return "arity"
	case errors.Is(err, protocol.ErrBadPayload):
		return "bad_payload"
	case errors.Is(err, protocol.ErrEmptyLine):
		return "empty"
	case errors.Is(err, router.ErrServerOnlyTag):
		return "server_only"
	case errors.Is(err, protocol.ErrLineTooLong):
		return "too_long"
	default:
		return "other"
	}
}
