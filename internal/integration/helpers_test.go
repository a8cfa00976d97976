package integration

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoCo-NP/SoCo/internal/app"
	"github.com/SoCo-NP/SoCo/internal/client"
	"github.com/SoCo-NP/SoCo/internal/collab"
	"github.com/SoCo-NP/SoCo/internal/config"
	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
	// quiet is long enough for every debounce timer in fastSync to fire twice
	quiet = 200 * time.Millisecond
)

func fastSync() *config.SyncConfig {
	return &config.SyncConfig{
		TextDebounce:     20 * time.Millisecond,
		CursorDebounce:   15 * time.Millisecond,
		ViewportDebounce: 10 * time.Millisecond,
	}
}

// relay is a running application on loopback ports with a journal in a temp dir
type relay struct {
	app  *app.Application
	host string
	port int
}

func startRelay(t *testing.T) *relay {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Relay.Host = "127.0.0.1"
	cfg.WebSocket.Addr = "127.0.0.1:0"
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	application, err := app.NewApplication(cfg)
	require.NoError(t, err)
	require.NoError(t, application.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("relay did not shut down")
		}
	})

	return &relay{
		app:  application,
		host: "127.0.0.1",
		port: application.RelayAddr().(*net.TCPAddr).Port,
	}
}

// memEditor is an in-memory editor whose change listener fires on every
// text change, remote ones included, like a UI toolkit document listener
type memEditor struct {
	mu       sync.Mutex
	text     string
	history  []string // every SetText
	top      int
	scrolled []int
	lasers   [][2]int
	onChange func()
}

func (e *memEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *memEditor) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.history = append(e.history, text)
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// typeText is a local edit
func (e *memEditor) typeText(text string) {
	e.mu.Lock()
	e.text = text
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

func (e *memEditor) Caret() (int, int) { return 0, 0 }

func (e *memEditor) TopLine() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.top
}

func (e *memEditor) setTop(line int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top = line
}

func (e *memEditor) ScrollToLine(line int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top = line
	e.scrolled = append(e.scrolled, line)
}

func (e *memEditor) ShowRemoteCursor(string, int, int, collab.Color) {}

func (e *memEditor) ShowLaser(x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lasers = append(e.lasers, [2]int{x, y})
}

func (e *memEditor) textHistory() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.history...)
}

func (e *memEditor) lastScroll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.scrolled) == 0 {
		return 0
	}
	return e.scrolled[len(e.scrolled)-1]
}

// participant is one editor client: a session, its workspace and a workbench
type participant struct {
	t       *testing.T
	nick    string
	session *client.Session
	ws      *collab.Workspace

	mu      sync.Mutex
	editors map[types.VirtualPath]*memEditor
	notes   []protocol.Message
	focused []types.VirtualPath
}

func join(t *testing.T, r *relay, nick string, role types.Role) *participant {
	t.Helper()
	p := &participant{t: t, nick: nick, editors: make(map[types.VirtualPath]*memEditor)}

	s, err := client.New(client.HandlerFunc(func(msg protocol.Message) {
		p.ws.HandleMessage(msg)
	}), client.Options{
		OnDisconnect: func(err error) { p.ws.Disconnected(err) },
	})
	require.NoError(t, err)
	p.session = s
	p.ws = collab.NewWorkspaceFromConfig(s, p, fastSync())

	require.NoError(t, s.Connect(context.Background(), r.host, r.port, nick, role))
	t.Cleanup(s.Disconnect)

	p.waitNote(func(m protocol.Message) bool {
		info, ok := m.(protocol.Info)
		return ok && info.Text == "Welcome "+nick
	})
	return p
}

func (p *participant) newEditor(path types.VirtualPath, text string) *memEditor {
	e := &memEditor{text: text, top: 1}
	e.onChange = func() {
		if doc, ok := p.ws.Document(path); ok {
			doc.LocalEdit()
		}
	}
	p.mu.Lock()
	p.editors[path] = e
	p.mu.Unlock()
	return e
}

// open creates a local buffer and registers it with the workspace
func (p *participant) open(path types.VirtualPath, text string) *memEditor {
	p.t.Helper()
	e := p.newEditor(path, text)
	_, err := p.ws.Open(path, e)
	require.NoError(p.t, err)
	return e
}

func (p *participant) OpenRemote(path types.VirtualPath, text string) collab.Editor {
	e := p.newEditor(path, text)
	e.mu.Lock()
	e.history = append(e.history, text)
	e.mu.Unlock()
	return e
}

// OpenExisting stands in for a file on disk; every participant has the course files
func (p *participant) OpenExisting(path types.VirtualPath) collab.Editor {
	return p.newEditor(path, "")
}

func (p *participant) Focus(path types.VirtualPath) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focused = append(p.focused, path)
}

func (p *participant) Notify(msg protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, msg)
}

func (p *participant) editor(path types.VirtualPath) *memEditor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editors[path]
}

// waitEditor waits until a buffer for path exists, e.g. after a remote edit
func (p *participant) waitEditor(path types.VirtualPath) *memEditor {
	p.t.Helper()
	require.Eventually(p.t, func() bool {
		_, ok := p.ws.Document(path)
		return ok && p.editor(path) != nil
	}, waitFor, tick, "%s never opened %s", p.nick, path)
	return p.editor(path)
}

func (p *participant) findNote(match func(protocol.Message) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.notes {
		if match(m) {
			return true
		}
	}
	return false
}

func (p *participant) waitNote(match func(protocol.Message) bool) {
	p.t.Helper()
	require.Eventually(p.t, func() bool { return p.findNote(match) }, waitFor, tick, "%s never got the expected message", p.nick)
}

func (p *participant) focusedOn(path types.VirtualPath) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.focused) > 0 && p.focused[len(p.focused)-1] == path
}

// wsPeer is a raw protocol client on the WebSocket gateway
type wsPeer struct {
	t     *testing.T
	conn  *websocket.Conn
	lines chan string
}

func dialWebSocket(t *testing.T, r *relay, nick string, role types.Role) *wsPeer {
	t.Helper()
	url := "ws://" + r.app.WebSocketAddr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	p := &wsPeer{t: t, conn: conn, lines: make(chan string, 64)}
	go func() {
		defer close(p.lines)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			p.lines <- string(data)
		}
	}()

	p.send(protocol.Join{Nickname: nick, Role: role})
	p.waitTag(protocol.TagInfo)
	return p
}

func (p *wsPeer) send(m protocol.Message) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(protocol.MustEncode(m))))
}

// waitTag returns the first message with the given tag, skipping others
func (p *wsPeer) waitTag(tag protocol.Tag) protocol.Message {
	p.t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case line, ok := <-p.lines:
			require.True(p.t, ok, "websocket closed while waiting for %s", tag)
			if protocol.SplitTag(line) != tag {
				continue
			}
			msg, err := protocol.Decode(line)
			require.NoError(p.t, err)
			return msg
		case <-deadline:
			p.t.Fatalf("timed out waiting for %s", tag)
			return nil
		}
	}
}
