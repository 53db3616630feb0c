package stomp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxFrameBytes bounds the bytes buffered for one undecoded frame.
const DefaultMaxFrameBytes = 8 << 20

// Parser incrementally decodes frames from arbitrarily chunked input.
// It is not safe for concurrent use.
type Parser struct {
	buf      []byte
	frames   []Frame
	maxBytes int
}

// NewParser returns a parser with DefaultMaxFrameBytes.
func NewParser() *Parser {
	return &Parser{maxBytes: DefaultMaxFrameBytes}
}

// SetMaxFrameBytes changes the buffering limit; n <= 0 restores the default.
func (p *Parser) SetMaxFrameBytes(n int) {
	if n <= 0 {
		n = DefaultMaxFrameBytes
	}
	p.maxBytes = n
}

// Add feeds data to the parser and decodes every complete frame it now holds.
// After an error the buffered partial input is discarded.
func (p *Parser) Add(data []byte) error {
	p.buf = append(p.buf, data...)
	for len(p.buf) > 0 {
		f, n, err := decodeFrame(p.buf, p.maxBytes)
		if err != nil {
			p.buf = nil
			return err
		}
		if n == 0 {
			break
		}
		p.frames = append(p.frames, f)
		p.buf = p.buf[n:]
	}
	if len(p.buf) > p.maxBytes {
		p.buf = nil
		return fmt.Errorf("%w: more than %d bytes buffered", ErrFrameTooLarge, p.maxBytes)
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return nil
}

// CanRead reports whether at least one decoded frame is waiting.
func (p *Parser) CanRead() bool {
	return len(p.frames) > 0
}

// Get pops the oldest decoded frame.
func (p *Parser) Get() (Frame, bool) {
	if len(p.frames) == 0 {
		return Frame{}, false
	}
	f := p.frames[0]
	p.frames[0] = Frame{}
	p.frames = p.frames[1:]
	return f, true
}

// Buffered returns the number of undecoded bytes held.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset drops buffered input and decoded frames.
func (p *Parser) Reset() {
	p.buf = nil
	p.frames = nil
}

// decodeFrame decodes one frame from the start of b. It returns n == 0 when
// b holds only a prefix of a frame. A content-length above maxBytes is
// rejected before it is used as an offset.
func decodeFrame(b []byte, maxBytes int) (Frame, int, error) {
	switch b[0] {
	case 0, '\n':
		return Heartbeat(), 1, nil
	case '\r':
		if len(b) < 2 {
			return Frame{}, 0, nil
		}
		if b[1] == '\n' {
			return Heartbeat(), 2, nil
		}
		return Frame{}, 0, fmt.Errorf("%w: stray carriage return", ErrMalformedFrame)
	}

	line, pos, ok := readLine(b, 0)
	if !ok {
		return Frame{}, 0, nil
	}
	f := Frame{Command: string(line)}
	escape := escapesHeaders(f.Command)

	for {
		line, pos, ok = readLine(b, pos)
		if !ok {
			return Frame{}, 0, nil
		}
		if len(line) == 0 {
			break
		}
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			return Frame{}, 0, fmt.Errorf("%w: header line without colon in %s", ErrMalformedFrame, f.Command)
		}
		key, value := string(line[:i]), string(line[i+1:])
		if escape {
			var err error
			if key, err = unescapeHeader(key); err != nil {
				return Frame{}, 0, err
			}
			if value, err = unescapeHeader(value); err != nil {
				return Frame{}, 0, err
			}
		}
		// Repeated headers: the first occurrence wins.
		if _, dup := f.Get(key); !dup {
			f.Headers = append(f.Headers, Header{Key: key, Value: value})
		}
	}

	if cl, ok := f.Get(HeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return Frame{}, 0, fmt.Errorf("%w: bad content-length %q", ErrMalformedFrame, cl)
		}
		if n > maxBytes {
			return Frame{}, 0, fmt.Errorf("%w: content-length %d exceeds %d", ErrFrameTooLarge, n, maxBytes)
		}
		if len(b)-pos < n+1 {
			return Frame{}, 0, nil
		}
		if b[pos+n] != 0 {
			return Frame{}, 0, fmt.Errorf("%w: missing NUL after %d body bytes", ErrMalformedFrame, n)
		}
		f.Body = append([]byte(nil), b[pos:pos+n]...)
		return f, pos + n + 1, nil
	}

	end := bytes.IndexByte(b[pos:], 0)
	if end < 0 {
		return Frame{}, 0, nil
	}
	f.Body = append([]byte(nil), b[pos:pos+end]...)
	return f, pos + end + 1, nil
}

// readLine returns the line starting at pos without its EOL and the offset
// of the next line.
func readLine(b []byte, pos int) ([]byte, int, bool) {
	i := bytes.IndexByte(b[pos:], '\n')
	if i < 0 {
		return nil, 0, false
	}
	line := b[pos : pos+i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return line, pos + i + 1, true
}
