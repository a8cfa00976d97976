package client

import "errors"

var (
	ErrNilHandler  = errors.New("nil message handler")
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
)
