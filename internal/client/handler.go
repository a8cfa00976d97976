package client

import "github.com/SoCo-NP/SoCo/pkg/protocol"

// Handler receives every well-formed message read from the server, on the
// session's read goroutine, in arrival order.
type Handler interface {
	HandleMessage(msg protocol.Message)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(msg protocol.Message)

func (f HandlerFunc) HandleMessage(msg protocol.Message) {
	f(msg)
}
