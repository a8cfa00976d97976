package types

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the self-declared classroom role of a participant
// ARCHITECTURAL DISCOVERY: Role is only ever declared at JOIN time and never verified,
// so parsing must be total: every string maps to some role
type Role int

const (
	RoleGuest Role = iota
	RoleStudent
	RoleProfessor
)

// DefaultRole is assigned to a session until it joins
const DefaultRole = RoleStudent

// DefaultNickname is assigned to a session until it joins
const DefaultNickname = "?"

// ParseRole maps a wire role name to a Role, case-insensitively.
// Unknown names become RoleGuest.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PROFESSOR":
		return RoleProfessor
	case "STUDENT":
		return RoleStudent
	default:
		return RoleGuest
	}
}

// String returns the display form used on the wire ("Professor", "Student", "Guest")
func (r Role) String() string {
	switch r {
	case RoleProfessor:
		return "Professor"
	case RoleStudent:
		return "Student"
	default:
		return "Guest"
	}
}

// IsProfessor reports whether the role may drive follow-me and the laser
func (r Role) IsProfessor() bool {
	return r == RoleProfessor
}

// VirtualPath identifies a document across all clients.
// It is either an absolute filesystem path or "untitled:<uuid>".
type VirtualPath string

// UntitledPrefix marks documents that have no file on disk
const UntitledPrefix = "untitled:"

// NewUntitledPath returns a fresh, globally unique untitled path
func NewUntitledPath() VirtualPath {
	return VirtualPath(UntitledPrefix + uuid.NewString())
}

// IsUntitled reports whether the path names an unsaved buffer
func (p VirtualPath) IsUntitled() bool {
	return strings.HasPrefix(string(p), UntitledPrefix)
}

func (p VirtualPath) String() string {
	return string(p)
}

// Participant is one entry in the roster
type Participant struct {
	Nickname string
	Role     Role
}
