package interfaces

// Conn is one framed, bidirectional protocol connection
// ARCHITECTURAL DISCOVERY: TCP sockets and WebSocket frames both reduce to
// "read a line, write a line", so the hub never knows which transport it serves
type Conn interface {
	// ReadLine blocks for the next line without its terminator.
	// Only one goroutine may call it.
	ReadLine() (string, error)

	// WriteLine sends one line; implementations append the terminator.
	// FUNCTIONAL DISCOVERY: Safe for concurrent use, fan-out and replies share a conn
	WriteLine(line string) error

	// Close releases the connection; later ReadLine calls fail
	Close() error

	// RemoteAddr is used for logging only
	RemoteAddr() string
}
