package collab

import "errors"

var (
	ErrNilEditor        = errors.New("nil editor")
	ErrDocumentOpen     = errors.New("document already open")
	ErrUnknownDocument  = errors.New("document not open")
	ErrNotProfessor     = errors.New("only a professor can do this")
	ErrNoActiveDocument = errors.New("no active document")
)
