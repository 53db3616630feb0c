package stomp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn returns one scripted chunk per Read and records writes.
type scriptedConn struct {
	reads   [][]byte
	written bytes.Buffer
	maxW    int
	closed  int
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if len(c.reads) == 0 {
		return 0, nil
	}
	n := copy(p, c.reads[0])
	c.reads = c.reads[1:]
	return n, nil
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	if c.maxW > 0 && len(p) > c.maxW {
		p = p[:c.maxW]
	}
	return c.written.Write(p)
}

func (c *scriptedConn) Close() error {
	c.closed++
	return nil
}

func TestTransport_ReceiveReturnsBufferedFirst(t *testing.T) {
	conn := &scriptedConn{reads: [][]byte{[]byte("MESSAGE\n\nFOOBAR\x00MESSAGE\n\nFOOBAZ\x00")}}
	tr := NewTransport(conn)

	f, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FOOBAR", string(f.Body))

	f, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FOOBAZ", string(f.Body))
}

func TestTransport_ReceiveAcrossReads(t *testing.T) {
	conn := &scriptedConn{reads: [][]byte{[]byte("MESS"), []byte("AGE\n\nFOO"), []byte("BAR\x00")}}
	tr := NewTransport(conn)

	f, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CommandMessage, f.Command)
	assert.Equal(t, "FOOBAR", string(f.Body))
}

func TestTransport_ZeroReadIsBroken(t *testing.T) {
	tr := NewTransport(&scriptedConn{})

	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrBrokenTransport)
}

func TestTransport_EOFIsBroken(t *testing.T) {
	client, server := net.Pipe()
	tr := NewTransport(client)
	require.NoError(t, server.Close())

	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrBrokenTransport)
}

func TestTransport_SendWritesEverything(t *testing.T) {
	conn := &scriptedConn{maxW: 3}
	tr := NewTransport(conn)

	f := NewFrame(CommandSend, []byte("FOOBAR"), Header{HeaderDestination, "/queue/foo"})
	require.NoError(t, tr.Send(context.Background(), f))
	assert.Equal(t, "SEND\ndestination:/queue/foo\n\nFOOBAR\x00", conn.written.String())
}

func TestTransport_CloseIdempotent(t *testing.T) {
	conn := &scriptedConn{}
	tr := NewTransport(conn)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, 1, conn.closed)
}

func TestTransport_ReceiveCancelled(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	tr := NewTransport(client)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDial_WrapsConnectError(t *testing.T) {
	d := DialerFunc(func(context.Context) (io.ReadWriteCloser, error) {
		return nil, errors.New("connection refused")
	})

	_, err := Dial(context.Background(), d)
	assert.ErrorIs(t, err, ErrConnect)
}

func TestTCPDialer_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), &TCPDialer{Addr: addr, Timeout: time.Second})
	assert.ErrorIs(t, err, ErrConnect)
}
