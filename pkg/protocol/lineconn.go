package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultMaxLineBytes bounds one protocol line. EDIT carries a whole document
// snapshot in base64, so this is generous.
const DefaultMaxLineBytes = 1 << 20

const readBufferSize = 4096

// LineConn frames a stream connection into protocol lines.
// ARCHITECTURAL DISCOVERY: Reads happen on exactly one goroutine (the session read loop)
// while writes come from any goroutine, so only the write side is locked
type LineConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxLine      int
	writeTimeout time.Duration

	wmu       sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewLineConn wraps conn. maxLine <= 0 selects DefaultMaxLineBytes;
// writeTimeout 0 disables write deadlines.
func NewLineConn(conn net.Conn, maxLine int, writeTimeout time.Duration) *LineConn {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	return &LineConn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, readBufferSize),
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

// ReadLine blocks for the next line, stripped of its terminator.
// It returns io.EOF when the peer closes cleanly.
//
// FUNCTIONAL DISCOVERY: A line longer than maxLine is consumed up to its newline
// and reported as ErrLineTooLong; the stream stays aligned, so the caller can drop
// it and keep reading
func (c *LineConn) ReadLine() (string, error) {
	var buf []byte
	tooLong := false

	for {
		chunk, err := c.reader.ReadSlice('\n')
		if !tooLong {
			// +1 leaves room for the newline itself
			if len(buf)+len(chunk) > c.maxLine+1 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case err == nil:
			if tooLong {
				return "", ErrLineTooLong
			}
			return trimEOL(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return "", ErrLineTooLong
			}
			if len(buf) > 0 {
				// unterminated last line
				return trimEOL(buf), nil
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

func trimEOL(b []byte) string {
	s := string(b)
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// WriteLine appends the newline and writes the line in one call.
// Safe for concurrent use.
func (c *LineConn) WriteLine(line string) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Close closes the underlying connection once; later calls return nil
func (c *LineConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// CloseWrite shuts down the sending side only, so the peer reads EOF after
// everything already written while this side keeps reading. Connections
// without half-close are closed fully.
func (c *LineConn) CloseWrite() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if hc, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return c.Close()
}

func (c *LineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
