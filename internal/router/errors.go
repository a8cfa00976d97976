package router

import "errors"

// Router-specific error types
var (
	ErrServerOnlyTag = errors.New("tag is only sent by the server")
	ErrNilSender     = errors.New("nil sender")
)
