package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write queue full")
	ErrInvalidLine      = errors.New("line must not contain line breaks")
	ErrFrameTooLarge    = errors.New("frame exceeds read limit")
)

// Handler-related errors
var (
	ErrNilTarget = errors.New("nil connection handler")
)
