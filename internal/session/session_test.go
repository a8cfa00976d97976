package session

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// fakeConn records written lines
type fakeConn struct {
	mu      sync.Mutex
	lines   []string
	closed  bool
	failing bool
}

func (c *fakeConn) ReadLine() (string, error) { return "", io.EOF }

func (c *fakeConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing || c.closed {
		return errors.New("broken pipe")
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "pipe" }

func (c *fakeConn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestSession_Lifecycle(t *testing.T) {
	before := time.Now()
	s := New(&fakeConn{})

	assert.NotEmpty(t, s.ID())
	assert.False(t, s.ConnectedAt().Before(before))
	assert.False(t, s.ConnectedAt().After(time.Now()))
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, types.DefaultNickname, s.Nickname())
	assert.Equal(t, types.RoleStudent, s.Role())
	assert.False(t, s.Joined())

	require.NoError(t, s.Join("alice", types.RoleProfessor))
	assert.Equal(t, StateJoined, s.State())
	assert.True(t, s.Joined())

	s.Touch()
	assert.Equal(t, StateActive, s.State())

	assert.ErrorIs(t, s.Join("mallory", types.RoleProfessor), ErrAlreadyJoined)
	assert.Equal(t, "alice", s.Nickname())

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.Join("x", types.RoleGuest), ErrSessionClosed)
	assert.ErrorIs(t, s.Send("INFO|x"), ErrSessionClosed)
}

func TestSession_EmptyNicknameKeepsDefault(t *testing.T) {
	s := New(&fakeConn{})
	require.NoError(t, s.Join("", types.RoleGuest))
	assert.Equal(t, types.DefaultNickname, s.Nickname())
	assert.Equal(t, types.RoleGuest, s.Role())
}

func TestSession_TouchBeforeJoinIsNoop(t *testing.T) {
	s := New(&fakeConn{})
	s.Touch()
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, "active", StateActive.String())
}

func TestRegistry_BroadcastSkipsSender(t *testing.T) {
	r := NewRegistry()
	ca, cb, cc := &fakeConn{}, &fakeConn{}, &fakeConn{}
	a, b, c := New(ca), New(cb), New(cc)
	for _, s := range []*Session{a, b, c} {
		require.NoError(t, r.Add(s))
	}

	n := r.Broadcast("EDIT|/p|AA==", b)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"EDIT|/p|AA=="}, ca.Lines())
	assert.Empty(t, cb.Lines())
	assert.Equal(t, []string{"EDIT|/p|AA=="}, cc.Lines())
}

func TestRegistry_FailedPeerDoesNotStopFanOut(t *testing.T) {
	r := NewRegistry()
	bad, good := &fakeConn{failing: true}, &fakeConn{}
	require.NoError(t, r.Add(New(bad)))
	require.NoError(t, r.Add(New(good)))

	assert.Equal(t, 1, r.Broadcast("INFO|x", nil))
	assert.Equal(t, []string{"INFO|x"}, good.Lines())
}

func TestRegistry_MulticastByRole(t *testing.T) {
	r := NewRegistry()
	cp, cs := &fakeConn{}, &fakeConn{}
	prof, student := New(cp), New(cs)
	require.NoError(t, prof.Join("alice", types.RoleProfessor))
	require.NoError(t, student.Join("bob", types.RoleStudent))
	require.NoError(t, r.Add(prof))
	require.NoError(t, r.Add(student))

	n := r.Multicast("QUESTION|bob|eA==", func(s *Session) bool { return s.Role().IsProfessor() })
	assert.Equal(t, 1, n)
	assert.Len(t, cp.Lines(), 1)
	assert.Empty(t, cs.Lines())
}

func TestRegistry_RosterOrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	names := []string{"carol", "alice", "carol"}
	for _, n := range names {
		s := New(&fakeConn{})
		require.NoError(t, s.Join(n, types.RoleStudent))
		require.NoError(t, r.Add(s))
	}
	require.NoError(t, r.Add(New(&fakeConn{}))) // not joined

	roster := r.Roster()
	require.Len(t, roster, 3)
	for i, p := range roster {
		assert.Equal(t, names[i], p.Nickname)
	}
	assert.Equal(t, 4, r.SessionCount())
}

func TestRegistry_RemoveAndCloseAll(t *testing.T) {
	r := NewRegistry()
	ca, cb := &fakeConn{}, &fakeConn{}
	a, b := New(ca), New(cb)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.ErrorIs(t, r.Add(nil), ErrNilSession)

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	assert.Equal(t, []*Session{b}, r.Sessions())

	r.CloseAll()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, cb.closed)
}

func TestRegistry_Exclusive(t *testing.T) {
	r := NewRegistry()
	a := New(&fakeConn{})
	require.NoError(t, r.Add(a))

	var seen int
	r.Exclusive(func(sessions []*Session) { seen = len(sessions) })
	assert.Equal(t, 1, seen)
}
