package interfaces

import "github.com/SoCo-NP/SoCo/pkg/types"

// LockInspector exposes the compile lock table read-only
type LockInspector interface {
	// Locks returns a copy of path -> holder nickname
	Locks() map[types.VirtualPath]string
}
