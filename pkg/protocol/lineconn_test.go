package protocol

import (
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineConn_ReadWrite(t *testing.T) {
	a, b := net.Pipe()
	left := NewLineConn(a, 0, 0)
	right := NewLineConn(b, 0, 0)
	defer left.Close()
	defer right.Close()

	go func() {
		_ = left.WriteLine("EDIT|/p|AAAA")
		_ = left.WriteLine("VIEWPORT|/p|3\r")
	}()

	line, err := right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "EDIT|/p|AAAA", line)

	line, err = right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "VIEWPORT|/p|3", line)
}

func TestLineConn_EOF(t *testing.T) {
	a, b := net.Pipe()
	right := NewLineConn(b, 0, 0)

	require.NoError(t, a.Close())
	_, err := right.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineConn_LineTooLong(t *testing.T) {
	a, b := net.Pipe()
	left := NewLineConn(a, 0, 0)
	right := NewLineConn(b, 64, 0)
	defer left.Close()
	defer right.Close()

	go func() {
		_ = left.WriteLine(strings.Repeat("x", 200))
		_ = left.WriteLine("CURSOR|/p|bob|1|1")
	}()

	_, err := right.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	// the rest of the oversize line is discarded, the next one reads normally
	line, err := right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "CURSOR|/p|bob|1|1", line)
}

func TestLineConn_LineAtLimit(t *testing.T) {
	a, b := net.Pipe()
	left := NewLineConn(a, 0, 0)
	right := NewLineConn(b, 64, 0)
	defer left.Close()
	defer right.Close()

	go func() {
		_ = left.WriteLine(strings.Repeat("y", 64))
		_ = left.WriteLine(strings.Repeat("y", 65))
		_ = left.WriteLine("INFO|after")
	}()

	line, err := right.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, 64)

	_, err = right.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err = right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "INFO|after", line)
}

func TestLineConn_OversizeLineLargerThanReadBuffer(t *testing.T) {
	a, b := net.Pipe()
	left := NewLineConn(a, 0, 0)
	right := NewLineConn(b, 1000, 0)
	defer left.Close()
	defer right.Close()

	go func() {
		_ = left.WriteLine(strings.Repeat("z", 5*readBufferSize))
		_ = left.WriteLine(strings.Repeat("w", 900))
	}()

	_, err := right.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err := right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("w", 900), line)
}

func TestLineConn_UnterminatedLastLine(t *testing.T) {
	a, b := net.Pipe()
	right := NewLineConn(b, 0, 0)
	defer right.Close()

	go func() {
		_, _ = a.Write([]byte("INFO|bye"))
		_ = a.Close()
	}()

	line, err := right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "INFO|bye", line)

	_, err = right.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineConn_ConcurrentWritesStayWhole(t *testing.T) {
	a, b := net.Pipe()
	left := NewLineConn(a, 0, 0)
	right := NewLineConn(b, 0, 0)
	defer left.Close()
	defer right.Close()

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = left.WriteLine("EDIT|/p|" + EncodeText(strings.Repeat("z", 300)))
			}
		}()
	}

	for i := 0; i < writers*perWriter; i++ {
		line, err := right.ReadLine()
		require.NoError(t, err)
		_, err = Decode(line)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestLineConn_WriteAfterClose(t *testing.T) {
	a, _ := net.Pipe()
	c := NewLineConn(a, 0, 0)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.WriteLine("INFO|x"), ErrConnClosed)
}

// FUNCTIONAL VALIDATION TEST: CloseWrite sends EOF but leaves the read side open
func TestLineConn_CloseWriteKeepsReading(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	client := NewLineConn(c, 0, 0)
	defer client.Close()
	server := NewLineConn(<-accepted, 0, 0)
	defer server.Close()

	require.NoError(t, client.WriteLine("QUESTION|bob|aGk="))
	require.NoError(t, client.CloseWrite())

	line, err := server.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "QUESTION|bob|aGk=", line)
	_, err = server.ReadLine()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, server.WriteLine("INFO|bye"))
	line, err = client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "INFO|bye", line)
}
