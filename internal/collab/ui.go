package collab

import (
	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Editor is one open text buffer in the UI.
// Methods may be called from timer and network goroutines; implementations
// marshal onto their UI thread as needed.
type Editor interface {
	Text() string
	// SetText replaces the whole buffer, keeping the caret at its old offset
	// clamped to the new length. Change notifications it fires reach
	// Document.LocalEdit and are ignored there.
	SetText(text string)
	// Caret returns the caret offset (dot) and selection anchor (mark)
	Caret() (dot, mark int)
	// TopLine is the first visible line, 1-based
	TopLine() int
	ScrollToLine(line int)
	ShowRemoteCursor(nickname string, dot, mark int, color Color)
	// ShowLaser draws the pointer; (-1,-1) hides it
	ShowLaser(x, y int)
}

// Workbench is the UI shell around the editors
type Workbench interface {
	// OpenRemote materializes a buffer for a document first seen in a remote edit
	OpenRemote(path types.VirtualPath, text string) Editor
	// OpenExisting opens a file from disk if it exists, nil otherwise
	OpenExisting(path types.VirtualPath) Editor
	// Focus brings the document's editor to front
	Focus(path types.VirtualPath)
	// Notify receives every message the workspace does not apply itself:
	// INFO, ROLE_INFO, FILE_*, QUESTION and COMPILE_*
	Notify(msg protocol.Message)
}

// Sender is the outbound half of a client session
type Sender interface {
	IsConnected() bool
	Nickname() string
	Role() types.Role
	SendSnapshot(path types.VirtualPath, text string) error
	SendCursor(path types.VirtualPath, dot, mark int) error
	SendViewport(path types.VirtualPath, line int) error
	SendLaser(path types.VirtualPath, x, y int) error
}
