// Package compilelock arbitrates exclusive compile access per document.
package compilelock

import (
	"sort"
	"sync"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Table maps a VirtualPath to the nickname currently allowed to compile it.
//
// A path is present exactly while someone holds it. Every method takes the
// single table mutex, so check-then-insert and disconnect sweeps are atomic.
// Holders are nicknames, not sessions: two sessions sharing a nickname share
// their locks.
type Table struct {
	mu      sync.Mutex
	holders map[types.VirtualPath]string
}

func NewTable() *Table {
	return &Table{holders: make(map[types.VirtualPath]string)}
}

// Acquire grants path to nick if nobody holds it.
//
// On denial it returns a *HeldError naming the holder. A holder asking again
// is denied as well; the lock is not re-entrant.
func (t *Table) Acquire(path types.VirtualPath, nick string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if holder, held := t.holders[path]; held {
		return &HeldError{Path: path, Holder: holder}
	}
	t.holders[path] = nick
	return nil
}

// Release drops the lock if nick holds it and reports whether it did.
// A release from anyone else is a no-op.
func (t *Table) Release(path types.VirtualPath, nick string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if holder, held := t.holders[path]; !held || holder != nick {
		return false
	}
	delete(t.holders, path)
	return true
}

// ReleaseAll removes every lock held by nick in one step and returns the
// released paths in sorted order.
func (t *Table) ReleaseAll(nick string) []types.VirtualPath {
	t.mu.Lock()
	defer t.mu.Unlock()

	var released []types.VirtualPath
	for path, holder := range t.holders {
		if holder == nick {
			released = append(released, path)
		}
	}
	for _, path := range released {
		delete(t.holders, path)
	}

	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released
}

// Holder returns the nickname holding path, if any
func (t *Table) Holder(path types.VirtualPath) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	holder, held := t.holders[path]
	return holder, held
}

// Locks returns a copy of the table
func (t *Table) Locks() map[types.VirtualPath]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[types.VirtualPath]string, len(t.holders))
	for path, holder := range t.holders {
		out[path] = holder
	}
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.holders)
}
