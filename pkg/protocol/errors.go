package protocol

import "errors"

var (
	ErrEmptyLine    = errors.New("empty line")
	ErrUnknownTag   = errors.New("unknown message tag")
	ErrArity        = errors.New("wrong number of fields for tag")
	ErrBadPayload   = errors.New("payload is not valid base64")
	ErrInvalidField = errors.New("field contains separator or line break")
	ErrNilMessage   = errors.New("nil message")
	ErrConnClosed   = errors.New("connection closed")
	ErrLineTooLong  = errors.New("line exceeds maximum length")
)
