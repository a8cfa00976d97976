// Package protocol implements the line-based wire format shared by the relay
// server and its clients: one message per line, TAG|field|field...
package protocol

import (
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Tag is the first field of every protocol line
type Tag string

const (
	TagJoin           Tag = "JOIN"
	TagInfo           Tag = "INFO"
	TagRoleInfo       Tag = "ROLE_INFO"
	TagEdit           Tag = "EDIT"
	TagCursor         Tag = "CURSOR"
	TagViewport       Tag = "VIEWPORT"
	TagLaser          Tag = "LASER"
	TagFileCreate     Tag = "FILE_CREATE"
	TagFileDelete     Tag = "FILE_DELETE"
	TagFileRename     Tag = "FILE_RENAME"
	TagQuestion       Tag = "QUESTION"
	TagCompileReq     Tag = "COMPILE_REQ"
	TagCompileGranted Tag = "COMPILE_GRANTED"
	TagCompileDenied  Tag = "COMPILE_DENIED"
	TagCompileRelease Tag = "COMPILE_RELEASE"
	TagCompileStart   Tag = "COMPILE_START"
	TagCompileOut     Tag = "COMPILE_OUT"
	TagCompileEnd     Tag = "COMPILE_END"
)

// Separator splits fields on a line
const Separator = "|"

// LaserHidden is the coordinate sent to hide the laser pointer
const LaserHidden = -1

// Message is one decoded protocol line.
// ARCHITECTURAL DISCOVERY: Closed set of value types, consumers dispatch with a type switch
// instead of implementing one callback per tag
type Message interface {
	Tag() Tag
}

// Join announces a nickname and self-declared role. Always the first client line.
type Join struct {
	Nickname string
	Role     types.Role
}

// Info is an informational server notice (e.g. "Welcome alice")
type Info struct {
	Text string
}

// RoleInfo is one entry of the join-time role directory
type RoleInfo struct {
	Nickname string
	Role     types.Role
}

// Edit carries the full text snapshot of a document
type Edit struct {
	Path types.VirtualPath
	Text string
}

// Cursor carries a caret (Dot) and selection anchor (Mark) as character offsets
type Cursor struct {
	Path     types.VirtualPath
	Nickname string
	Dot      int
	Mark     int
}

// Viewport carries the professor's top visible line for follow-me
type Viewport struct {
	Path types.VirtualPath
	Line int
}

// Laser carries pointer coordinates; (-1,-1) hides the pointer.
// Nickname is optional on the wire and empty when absent.
type Laser struct {
	Path     types.VirtualPath
	X        int
	Y        int
	Nickname string
}

// Hidden reports whether the laser should be hidden
func (l Laser) Hidden() bool {
	return l.X == LaserHidden && l.Y == LaserHidden
}

type FileCreate struct {
	Path     types.VirtualPath
	IsDir    bool
	Nickname string
}

type FileDelete struct {
	Path     types.VirtualPath
	Nickname string
}

type FileRename struct {
	OldPath  types.VirtualPath
	NewPath  types.VirtualPath
	Nickname string
}

// Question is sent by a student and delivered only to professors
type Question struct {
	Student string
	Text    string
}

type CompileReq struct {
	Path     types.VirtualPath
	Nickname string
}

type CompileGranted struct {
	Path     types.VirtualPath
	Nickname string
}

// CompileDenied names the current Holder of the lock, not the requester
type CompileDenied struct {
	Path   types.VirtualPath
	Holder string
}

type CompileRelease struct {
	Path     types.VirtualPath
	Nickname string
}

type CompileStart struct {
	Path     types.VirtualPath
	Nickname string
}

// CompileOut is one line of compiler output
type CompileOut struct {
	Path     types.VirtualPath
	Nickname string
	Line     string
}

type CompileEnd struct {
	Path     types.VirtualPath
	Nickname string
	ExitCode int
}

func (Join) Tag() Tag           { return TagJoin }
func (Info) Tag() Tag           { return TagInfo }
func (RoleInfo) Tag() Tag       { return TagRoleInfo }
func (Edit) Tag() Tag           { return TagEdit }
func (Cursor) Tag() Tag         { return TagCursor }
func (Viewport) Tag() Tag       { return TagViewport }
func (Laser) Tag() Tag          { return TagLaser }
func (FileCreate) Tag() Tag     { return TagFileCreate }
func (FileDelete) Tag() Tag     { return TagFileDelete }
func (FileRename) Tag() Tag     { return TagFileRename }
func (Question) Tag() Tag       { return TagQuestion }
func (CompileReq) Tag() Tag     { return TagCompileReq }
func (CompileGranted) Tag() Tag { return TagCompileGranted }
func (CompileDenied) Tag() Tag  { return TagCompileDenied }
func (CompileRelease) Tag() Tag { return TagCompileRelease }
func (CompileStart) Tag() Tag   { return TagCompileStart }
func (CompileOut) Tag() Tag     { return TagCompileOut }
func (CompileEnd) Tag() Tag     { return TagCompileEnd }
