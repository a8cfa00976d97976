package collab

import (
	"sync"
	"time"

	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func fastTiming() Timing {
	return Timing{Text: 20 * time.Millisecond, Cursor: 15 * time.Millisecond, Viewport: 10 * time.Millisecond}
}

// fakeEditor is an in-memory buffer. onChange plays the part of the UI
// toolkit's change listener and fires on every SetText.
type fakeEditor struct {
	mu       sync.Mutex
	text     string
	dot      int
	mark     int
	top      int
	scrolled []int
	cursors  []string
	lasers   [][2]int
	onChange func()
	panicOn  string
}

func newFakeEditor(text string) *fakeEditor {
	return &fakeEditor{text: text, top: 1}
}

func (e *fakeEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *fakeEditor) SetText(text string) {
	e.mu.Lock()
	e.text = text
	if e.dot > len(text) {
		e.dot = len(text)
	}
	onChange := e.onChange
	panicOn := e.panicOn
	e.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	if panicOn != "" && text == panicOn {
		panic("editor rejected text")
	}
}

func (e *fakeEditor) typeText(text string) {
	e.mu.Lock()
	e.text = text
	onChange := e.onChange
	e.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}

func (e *fakeEditor) Caret() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dot, e.mark
}

func (e *fakeEditor) setCaret(dot, mark int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dot, e.mark = dot, mark
}

func (e *fakeEditor) TopLine() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.top
}

func (e *fakeEditor) setTop(line int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top = line
}

func (e *fakeEditor) ScrollToLine(line int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top = line
	e.scrolled = append(e.scrolled, line)
}

func (e *fakeEditor) ShowRemoteCursor(nickname string, dot, mark int, color Color) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursors = append(e.cursors, nickname+"@"+color.Hex())
}

func (e *fakeEditor) ShowLaser(x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lasers = append(e.lasers, [2]int{x, y})
}

func (e *fakeEditor) scrolls() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.scrolled...)
}

func (e *fakeEditor) laserHits() [][2]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][2]int(nil), e.lasers...)
}

func (e *fakeEditor) remoteCursors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.cursors...)
}

// fakeSender records outbound traffic as encoded protocol lines
type fakeSender struct {
	mu        sync.Mutex
	connected bool
	nickname  string
	role      types.Role
	lines     []string
}

func newFakeSender(nickname string, role types.Role) *fakeSender {
	return &fakeSender{connected: true, nickname: nickname, role: role}
}

func (s *fakeSender) record(m protocol.Message) error {
	line, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return nil
}

func (s *fakeSender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSender) setConnected(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = on
}

func (s *fakeSender) Nickname() string { return s.nickname }
func (s *fakeSender) Role() types.Role { return s.role }

func (s *fakeSender) SendSnapshot(path types.VirtualPath, text string) error {
	return s.record(protocol.Edit{Path: path, Text: text})
}

func (s *fakeSender) SendCursor(path types.VirtualPath, dot, mark int) error {
	return s.record(protocol.Cursor{Path: path, Nickname: s.nickname, Dot: dot, Mark: mark})
}

func (s *fakeSender) SendViewport(path types.VirtualPath, line int) error {
	return s.record(protocol.Viewport{Path: path, Line: line})
}

func (s *fakeSender) SendLaser(path types.VirtualPath, x, y int) error {
	return s.record(protocol.Laser{Path: path, X: x, Y: y})
}

func (s *fakeSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// fakeBench hands out fake editors and records notifications
type fakeBench struct {
	mu       sync.Mutex
	onDisk   map[types.VirtualPath]string
	editors  map[types.VirtualPath]*fakeEditor
	focused  []types.VirtualPath
	notified []protocol.Message
}

func newFakeBench() *fakeBench {
	return &fakeBench{
		onDisk:  make(map[types.VirtualPath]string),
		editors: make(map[types.VirtualPath]*fakeEditor),
	}
}

func (b *fakeBench) OpenRemote(path types.VirtualPath, text string) Editor {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := newFakeEditor(text)
	b.editors[path] = e
	return e
}

func (b *fakeBench) OpenExisting(path types.VirtualPath) Editor {
	b.mu.Lock()
	defer b.mu.Unlock()
	text, ok := b.onDisk[path]
	if !ok {
		return nil
	}
	e := newFakeEditor(text)
	b.editors[path] = e
	return e
}

func (b *fakeBench) Focus(path types.VirtualPath) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = append(b.focused, path)
}

func (b *fakeBench) Notify(msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, msg)
}

func (b *fakeBench) editor(path types.VirtualPath) *fakeEditor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.editors[path]
}

func (b *fakeBench) notifications() []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Message(nil), b.notified...)
}

func (b *fakeBench) focusedPaths() []types.VirtualPath {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.VirtualPath(nil), b.focused...)
}
