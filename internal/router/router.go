// Package router decides what the relay does with each inbound line.
package router

import (
	"fmt"

	"github.com/SoCo-NP/SoCo/internal/session"
	"github.com/SoCo-NP/SoCo/pkg/protocol"
)

// Action is the relay behavior selected for a message
type Action int

const (
	ActionDrop Action = iota
	ActionJoin
	ActionBroadcast
	ActionProfessors
	ActionCompileRequest
	ActionCompileRelease
)

func (a Action) String() string {
	switch a {
	case ActionJoin:
		return "join"
	case ActionBroadcast:
		return "broadcast"
	case ActionProfessors:
		return "professors"
	case ActionCompileRequest:
		return "compile_request"
	case ActionCompileRelease:
		return "compile_release"
	default:
		return "drop"
	}
}

// Route is the decision for one inbound line.
// Line is the received text with any trailing CR removed; relayed messages are forwarded as-is.
type Route struct {
	Action  Action
	Message protocol.Message
	Line    string
}

// Router classifies inbound lines.
// ARCHITECTURAL DISCOVERY: Routing decisions are pure so the hub keeps only delivery and
// lock arbitration, and the rules can be tested without sockets
type Router struct{}

func NewRouter() *Router {
	return &Router{}
}

// Route decodes line and picks the action. Decode failures and server-only
// tags come back as ActionDrop with a non-nil error for the caller to log.
func (r *Router) Route(line string) (Route, error) {
	msg, err := protocol.Decode(line)
	if err != nil {
		return Route{Action: ActionDrop, Line: line}, err
	}

	rt := Route{Message: msg, Line: trimCR(line)}

	switch msg.(type) {
	case protocol.Join:
		rt.Action = ActionJoin
	case protocol.Edit, protocol.Cursor, protocol.Viewport, protocol.Laser,
		protocol.FileCreate, protocol.FileDelete, protocol.FileRename,
		protocol.CompileStart, protocol.CompileOut, protocol.CompileEnd:
		// FUNCTIONAL DISCOVERY: Relayed verbatim to everyone but the sender, never reinterpreted
		rt.Action = ActionBroadcast
	case protocol.Question:
		rt.Action = ActionProfessors
	case protocol.CompileReq:
		rt.Action = ActionCompileRequest
	case protocol.CompileRelease:
		rt.Action = ActionCompileRelease
	default:
		rt.Action = ActionDrop
		return rt, fmt.Errorf("%w: %s", ErrServerOnlyTag, msg.Tag())
	}

	return rt, nil
}

// Recipients returns the delivery filter for a relayed route.
// Only ActionBroadcast and ActionProfessors have recipients; the sender never
// receives its own line back.
func (r *Router) Recipients(rt Route, sender *session.Session) (func(*session.Session) bool, error) {
	if sender == nil {
		return nil, ErrNilSender
	}

	switch rt.Action {
	case ActionBroadcast:
		return func(s *session.Session) bool { return s != sender }, nil
	case ActionProfessors:
		return func(s *session.Session) bool {
			return s != sender && s.Role().IsProfessor()
		}, nil
	default:
		return nil, fmt.Errorf("action %s has no recipients", rt.Action)
	}
}

func trimCR(line string) string {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
