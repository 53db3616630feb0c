package stomp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// readChunkSize is the size of each socket read fed to the parser.
const readChunkSize = 1024

// Dialer opens the byte stream a Transport runs over.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return f(ctx)
}

// TCPDialer connects to a broker's plain STOMP port.
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPDialer returns a dialer for host:port.
func NewTCPDialer(host string, port int) *TCPDialer {
	return &TCPDialer{Addr: net.JoinHostPort(host, strconv.Itoa(port))}
}

// Dial opens a TCP connection.
func (d *TCPDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	return nd.DialContext(ctx, "tcp", d.Addr)
}

// deadliner is implemented by net.Conn and the websocket adapter; it lets a
// cancelled context interrupt a blocked read or write.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Transport moves frames over one byte stream. Receive must only be called
// from a single goroutine; Send is safe for concurrent use.
type Transport struct {
	conn   io.ReadWriteCloser
	parser *Parser
	chunk  []byte

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewTransport wraps an already open stream.
func NewTransport(conn io.ReadWriteCloser) *Transport {
	return &Transport{
		conn:   conn,
		parser: NewParser(),
		chunk:  make([]byte, readChunkSize),
	}
}

// Dial opens a stream with d and wraps it. Failures wrap ErrConnect.
func Dial(ctx context.Context, d Dialer) (*Transport, error) {
	conn, err := d.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return NewTransport(conn), nil
}

// Receive returns the next frame, reading from the stream until the parser
// holds at least one complete frame. A closed or failed stream yields
// ErrBrokenTransport; a cancelled ctx yields ctx.Err().
func (t *Transport) Receive(ctx context.Context) (Frame, error) {
	if f, ok := t.parser.Get(); ok {
		return f, nil
	}

	if dl, ok := t.conn.(deadliner); ok {
		_ = dl.SetReadDeadline(time.Time{})
		stop := context.AfterFunc(ctx, func() {
			_ = dl.SetReadDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	for !t.parser.CanRead() {
		n, err := t.conn.Read(t.chunk)
		if n > 0 {
			if perr := t.parser.Add(t.chunk[:n]); perr != nil {
				return Frame{}, perr
			}
			continue
		}
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		if err == nil || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: peer closed the stream", ErrBrokenTransport)
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrBrokenTransport, err)
	}

	f, _ := t.parser.Get()
	return f, nil
}

// Send writes the whole frame before returning.
func (t *Transport) Send(ctx context.Context, f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := t.conn.(deadliner); ok {
		_ = dl.SetWriteDeadline(time.Time{})
		stop := context.AfterFunc(ctx, func() {
			_ = dl.SetWriteDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	data := f.Marshal()
	for len(data) > 0 {
		n, err := t.conn.Write(data)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: write %s: %w", ErrBrokenTransport, f.Command, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: write %s: no progress", ErrBrokenTransport, f.Command)
		}
		data = data[n:]
	}
	return nil
}

// Close closes the stream. Repeated calls return the first result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
