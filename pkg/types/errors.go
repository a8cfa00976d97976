package types

import "errors"

// ARCHITECTURAL DISCOVERY: Field errors are distinct so callers can tell a bad
// nickname from a bad path without string matching
var (
	ErrEmptyNickname   = errors.New("nickname must not be empty")
	ErrInvalidNickname = errors.New("nickname must not contain '|' or line breaks")
	ErrEmptyPath       = errors.New("virtual path must not be empty")
	ErrInvalidPath     = errors.New("virtual path must not contain '|' or line breaks")
)

var ErrInvalidEventKind = errors.New("invalid journal event kind")
