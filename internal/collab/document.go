// Package collab keeps open documents in sync with the relay: it debounces
// local changes into snapshots, applies remote snapshots without echoing
// them, and drives follow-me and the laser pointer.
package collab

import (
	"log"
	"sync"
	"time"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Default debounce intervals
const (
	DefaultTextDebounce     = 200 * time.Millisecond
	DefaultCursorDebounce   = 120 * time.Millisecond
	DefaultViewportDebounce = 100 * time.Millisecond
)

// Timing holds the debounce intervals for one document
type Timing struct {
	Text     time.Duration
	Cursor   time.Duration
	Viewport time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Text:     DefaultTextDebounce,
		Cursor:   DefaultCursorDebounce,
		Viewport: DefaultViewportDebounce,
	}
}

// DocState is the sync state of a document
type DocState int

const (
	DocIdle DocState = iota
	DocPendingSend
	DocApplyingRemote
)

func (s DocState) String() string {
	switch s {
	case DocIdle:
		return "idle"
	case DocPendingSend:
		return "pending_send"
	case DocApplyingRemote:
		return "applying_remote"
	default:
		return "unknown"
	}
}

// DocumentOptions hooks a document into its workspace. Nil funcs mean false.
type DocumentOptions struct {
	// KeystrokeMode sends every edit immediately instead of debouncing
	KeystrokeMode func() bool
	// FollowsViewport reports whether viewport moves of this document are broadcast
	FollowsViewport func(path types.VirtualPath) bool
}

// Document ties one editor to the relay.
//
// Text sync runs an explicit state machine:
//
//	Idle --LocalEdit--> PendingSend --timer--> Idle (snapshot sent)
//	any  --ApplyRemote--> ApplyingRemote --done--> previous state
//
// LocalEdit in ApplyingRemote is dropped, so applying a remote snapshot never
// produces an outbound EDIT. The snapshot text is read when the timer fires.
type Document struct {
	editor Editor
	sender Sender
	opts   DocumentOptions

	mu    sync.Mutex
	path  types.VirtualPath
	state DocState
	prev  DocState // state to return to after ApplyingRemote

	text     *Debouncer
	cursor   *Debouncer
	viewport *Debouncer
}

// NewDocument creates a document in Idle state
func NewDocument(path types.VirtualPath, editor Editor, sender Sender, timing Timing, opts DocumentOptions) (*Document, error) {
	if editor == nil {
		return nil, ErrNilEditor
	}
	if err := path.Validate(); err != nil {
		return nil, err
	}

	d := &Document{editor: editor, sender: sender, opts: opts, path: path}
	d.text = NewDebouncer(timing.Text, d.onTextQuiet)
	d.cursor = NewDebouncer(timing.Cursor, d.onCursorQuiet)
	d.viewport = NewDebouncer(timing.Viewport, d.onViewportQuiet)
	return d, nil
}

func (d *Document) Path() types.VirtualPath {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

func (d *Document) setPath(p types.VirtualPath) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = p
}

func (d *Document) Editor() Editor {
	return d.editor
}

func (d *Document) State() DocState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// LocalEdit is called by the editor on every text change
func (d *Document) LocalEdit() {
	keystroke := d.opts.KeystrokeMode != nil && d.opts.KeystrokeMode()

	d.mu.Lock()
	if d.state == DocApplyingRemote {
		d.mu.Unlock()
		return
	}
	if keystroke {
		d.mu.Unlock()
		d.SendSnapshot()
		return
	}
	d.state = DocPendingSend
	d.mu.Unlock()

	d.text.Trigger()
}

func (d *Document) onTextQuiet() {
	d.mu.Lock()
	switch d.state {
	case DocPendingSend:
		d.state = DocIdle
	case DocApplyingRemote:
		// fired mid-apply; the pending send survives and goes out one quiet period later
		d.mu.Unlock()
		d.text.Trigger()
		return
	default:
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.SendSnapshot()
}

// SendSnapshot sends the current text now, regardless of state
func (d *Document) SendSnapshot() {
	if d.sender == nil || !d.sender.IsConnected() {
		return
	}
	if err := d.sender.SendSnapshot(d.Path(), d.editor.Text()); err != nil {
		log.Printf("Snapshot send failed: path=%s error=%v", d.Path(), err)
	}
}

// ApplyRemote replaces the editor text with a remote snapshot. The previous
// state is restored even if the editor panics.
func (d *Document) ApplyRemote(text string) {
	d.mu.Lock()
	if d.state != DocApplyingRemote {
		d.prev = d.state
	}
	d.state = DocApplyingRemote
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.state == DocApplyingRemote {
			d.state = d.prev
		}
		d.mu.Unlock()
	}()

	d.editor.SetText(text)
}

// CursorMoved is called by the editor on caret or selection changes
func (d *Document) CursorMoved() {
	d.cursor.Trigger()
}

func (d *Document) onCursorQuiet() {
	if d.sender == nil || !d.sender.IsConnected() {
		return
	}
	dot, mark := d.editor.Caret()
	if err := d.sender.SendCursor(d.Path(), dot, mark); err != nil {
		log.Printf("Cursor send failed: path=%s error=%v", d.Path(), err)
	}
}

// ViewportMoved is called by the editor on scroll
func (d *Document) ViewportMoved() {
	if !d.followsViewport() {
		return
	}
	d.viewport.Trigger()
}

func (d *Document) onViewportQuiet() {
	if !d.followsViewport() {
		return
	}
	d.SendViewport()
}

// SendViewport sends the top visible line now
func (d *Document) SendViewport() {
	if d.sender == nil || !d.sender.IsConnected() {
		return
	}
	if err := d.sender.SendViewport(d.Path(), d.editor.TopLine()); err != nil {
		log.Printf("Viewport send failed: path=%s error=%v", d.Path(), err)
	}
}

func (d *Document) followsViewport() bool {
	return d.opts.FollowsViewport != nil && d.opts.FollowsViewport(d.Path())
}

// Close stops all pending sends
func (d *Document) Close() {
	d.text.Stop()
	d.cursor.Stop()
	d.viewport.Stop()

	d.mu.Lock()
	if d.state == DocPendingSend {
		d.state = DocIdle
	}
	d.mu.Unlock()
}
