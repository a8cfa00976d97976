package collab

import (
	"log"
	"sort"
	"sync"

	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Workspace owns the open documents of one participant and applies inbound
// messages to them. It implements client.Handler.
//
// ARCHITECTURAL DISCOVERY: The workspace mutex is never held while calling into a
// Document, the Editor, the Workbench or the Sender; documents call back into the
// workspace (keystroke mode, follow-me gate) from their timer goroutines
type Workspace struct {
	sender Sender
	bench  Workbench
	timing Timing
	roster *Roster

	mu        sync.Mutex
	docs      map[types.VirtualPath]*Document
	active    types.VirtualPath
	keystroke bool
	followMe  bool
	laser     bool
}

func NewWorkspace(sender Sender, bench Workbench, timing Timing) *Workspace {
	return &Workspace{
		sender: sender,
		bench:  bench,
		timing: timing,
		roster: NewRoster(),
		docs:   make(map[types.VirtualPath]*Document),
	}
}

func (w *Workspace) Roster() *Roster {
	return w.roster
}

// Open registers an editor under path
func (w *Workspace) Open(path types.VirtualPath, editor Editor) (*Document, error) {
	doc, err := NewDocument(path, editor, w.sender, w.timing, DocumentOptions{
		KeystrokeMode:   w.KeystrokeMode,
		FollowsViewport: w.followsViewport,
	})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.docs[path]; exists {
		return nil, ErrDocumentOpen
	}
	w.docs[path] = doc
	if w.active == "" {
		w.active = path
	}
	return doc, nil
}

// OpenUntitled registers an editor for a new unsaved buffer
func (w *Workspace) OpenUntitled(editor Editor) (*Document, error) {
	return w.Open(types.NewUntitledPath(), editor)
}

// Close forgets the document and cancels its pending sends
func (w *Workspace) Close(path types.VirtualPath) error {
	w.mu.Lock()
	doc, ok := w.docs[path]
	if ok {
		delete(w.docs, path)
		if w.active == path {
			w.active = ""
		}
	}
	w.mu.Unlock()

	if !ok {
		return ErrUnknownDocument
	}
	doc.Close()
	return nil
}

// Rename moves a document to a new path, e.g. after "save as"
func (w *Workspace) Rename(oldPath, newPath types.VirtualPath) error {
	if err := newPath.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	doc, ok := w.docs[oldPath]
	if !ok {
		w.mu.Unlock()
		return ErrUnknownDocument
	}
	if _, taken := w.docs[newPath]; taken {
		w.mu.Unlock()
		return ErrDocumentOpen
	}
	delete(w.docs, oldPath)
	w.docs[newPath] = doc
	if w.active == oldPath {
		w.active = newPath
	}
	w.mu.Unlock()

	doc.setPath(newPath)
	return nil
}

// Document looks up an open document
func (w *Workspace) Document(path types.VirtualPath) (*Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[path]
	return doc, ok
}

// Documents lists open paths in sorted order
func (w *Workspace) Documents() []types.VirtualPath {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]types.VirtualPath, 0, len(w.docs))
	for p := range w.docs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Active is the path of the focused document, empty if none
func (w *Workspace) Active() types.VirtualPath {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Activate focuses a document after a local tab switch. Its current text is
// sent so late joiners catch up, and with follow-me on, so is the viewport.
func (w *Workspace) Activate(path types.VirtualPath) error {
	w.mu.Lock()
	doc, ok := w.docs[path]
	if ok {
		w.active = path
	}
	followMe := w.followMe
	w.mu.Unlock()

	if !ok {
		return ErrUnknownDocument
	}
	doc.SendSnapshot()
	if followMe {
		doc.SendViewport()
	}
	return nil
}

func (w *Workspace) SetKeystrokeMode(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keystroke = on
}

func (w *Workspace) KeystrokeMode() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.keystroke
}

// SetFollowMe turns viewport broadcasting on or off. Only professors may turn
// it on; turning it on sends the active viewport immediately.
func (w *Workspace) SetFollowMe(on bool) error {
	if on && !w.sender.Role().IsProfessor() {
		return ErrNotProfessor
	}

	w.mu.Lock()
	w.followMe = on
	doc := w.docs[w.active]
	w.mu.Unlock()

	if on && doc != nil {
		doc.SendViewport()
	}
	return nil
}

func (w *Workspace) FollowMe() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.followMe
}

// SetLaser turns the laser pointer on or off. Only professors may turn it
// on; turning it off hides the pointer on every peer.
func (w *Workspace) SetLaser(on bool) error {
	if on && !w.sender.Role().IsProfessor() {
		return ErrNotProfessor
	}

	w.mu.Lock()
	wasOn := w.laser
	w.laser = on
	active := w.active
	w.mu.Unlock()

	if wasOn && !on {
		w.hideLaser(active)
	}
	return nil
}

func (w *Workspace) Laser() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.laser
}

// MoveLaser sends pointer coordinates over the active document
func (w *Workspace) MoveLaser(x, y int) error {
	w.mu.Lock()
	on := w.laser
	active := w.active
	w.mu.Unlock()

	if !on || !w.sender.IsConnected() {
		return nil
	}
	if active == "" {
		return ErrNoActiveDocument
	}
	return w.sender.SendLaser(active, x, y)
}

func (w *Workspace) hideLaser(path types.VirtualPath) {
	if path == "" || !w.sender.IsConnected() {
		return
	}
	if err := w.sender.SendLaser(path, protocol.LaserHidden, protocol.LaserHidden); err != nil {
		log.Printf("Laser hide failed: path=%s error=%v", path, err)
	}
}

func (w *Workspace) followsViewport(path types.VirtualPath) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.followMe && w.active == path
}

// HandleMessage applies one inbound message. It runs on the client read goroutine.
func (w *Workspace) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Edit:
		w.applyEdit(m)
	case protocol.Cursor:
		if doc, ok := w.Document(m.Path); ok {
			doc.Editor().ShowRemoteCursor(m.Nickname, m.Dot, m.Mark, w.roster.Color(m.Nickname))
		}
	case protocol.Viewport:
		w.applyViewport(m)
	case protocol.Laser:
		if doc, ok := w.Document(m.Path); ok {
			doc.Editor().ShowLaser(m.X, m.Y)
		}
	case protocol.RoleInfo:
		w.applyRoleInfo(m)
		w.notify(m)
	case protocol.FileRename:
		if _, ok := w.Document(m.OldPath); ok {
			if err := w.Rename(m.OldPath, m.NewPath); err != nil {
				log.Printf("Remote rename not applied: old=%s new=%s error=%v", m.OldPath, m.NewPath, err)
			}
		}
		w.notify(m)
	default:
		w.notify(m)
	}
}

// applyEdit applies a snapshot; a path nobody opened here becomes a new buffer
func (w *Workspace) applyEdit(m protocol.Edit) {
	if doc, ok := w.Document(m.Path); ok {
		doc.ApplyRemote(m.Text)
		return
	}
	if w.bench == nil {
		return
	}

	editor := w.bench.OpenRemote(m.Path, m.Text)
	if editor == nil {
		log.Printf("Remote edit dropped, no buffer: path=%s", m.Path)
		return
	}
	if _, err := w.Open(m.Path, editor); err != nil {
		log.Printf("Remote document not registered: path=%s error=%v", m.Path, err)
	}
}

// applyViewport follows the professor: focus the document and scroll to the line
func (w *Workspace) applyViewport(m protocol.Viewport) {
	doc, ok := w.Document(m.Path)
	if !ok && w.bench != nil {
		if editor := w.bench.OpenExisting(m.Path); editor != nil {
			if _, err := w.Open(m.Path, editor); err != nil {
				log.Printf("Followed document not registered: path=%s error=%v", m.Path, err)
			}
			doc, ok = w.Document(m.Path)
		}
	}
	if !ok {
		return
	}

	w.mu.Lock()
	w.active = m.Path
	w.mu.Unlock()

	if w.bench != nil {
		w.bench.Focus(m.Path)
	}
	line := m.Line
	if line < 1 {
		line = 1
	}
	doc.Editor().ScrollToLine(line)
}

// applyRoleInfo updates the roster. Follow-me and the laser are switched off
// if our own announced role is not Professor.
func (w *Workspace) applyRoleInfo(m protocol.RoleInfo) {
	w.roster.Add(m.Nickname, m.Role)

	if m.Nickname != w.sender.Nickname() || m.Role.IsProfessor() {
		return
	}

	w.mu.Lock()
	laserWasOn := w.laser
	w.followMe = false
	w.laser = false
	active := w.active
	w.mu.Unlock()

	if laserWasOn {
		w.hideLaser(active)
	}
}

func (w *Workspace) notify(m protocol.Message) {
	if w.bench != nil {
		w.bench.Notify(m)
	}
}

// Disconnected resets per-connection state; pass it to client.Options.OnDisconnect
func (w *Workspace) Disconnected(err error) {
	w.roster.Clear()

	w.mu.Lock()
	w.followMe = false
	w.laser = false
	w.mu.Unlock()

	if err != nil {
		log.Printf("Workspace lost relay connection: %v", err)
	}
}
