package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrNotConnected  = errors.New("not connected")
	ErrJournalClosed = errors.New("journal closed")
)
