package compilelock

import (
	"errors"
	"fmt"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// ErrHeld is returned when another participant already compiles the path
var ErrHeld = errors.New("compile lock held")

// HeldError names the current holder of a denied lock.
// Use errors.Is(err, ErrHeld) to test for it.
type HeldError struct {
	Path   types.VirtualPath
	Holder string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s: %s held by %s", ErrHeld, e.Path, e.Holder)
}

func (e *HeldError) Unwrap() error {
	return ErrHeld
}
