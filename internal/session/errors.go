package session

import "errors"

// Session lifecycle errors
var (
	ErrAlreadyJoined = errors.New("session has already joined")
	ErrSessionClosed = errors.New("session is closed")
	ErrNilSession    = errors.New("nil session")
)
