package stomp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(p *Parser) []Frame {
	var out []Frame
	for p.CanRead() {
		f, _ := p.Get()
		out = append(out, f)
	}
	return out
}

func TestParser_TwoReads(t *testing.T) {
	p := NewParser()
	require.NoError(t, p.Add([]byte("MESSAGE\n\nFOOBAR\x00")))
	require.NoError(t, p.Add([]byte("MESSAGE\n\nFOOBAZ\x00")))

	frames := drain(p)
	require.Len(t, frames, 2)
	assert.Equal(t, "FOOBAR", string(frames[0].Body))
	assert.Equal(t, "FOOBAZ", string(frames[1].Body))
}

func TestParser_AnyChunkBoundary(t *testing.T) {
	var stream bytes.Buffer
	want := []Frame{
		NewFrame(CommandMessage, []byte("FOOBAR"), Header{"subscription", "1"}, Header{"message-id", "a:1"}),
		Heartbeat(),
		NewFrame(CommandReceipt, nil, Header{HeaderReceiptID, "r-1"}),
		NewFrame(CommandMessage, []byte("bin\x00ary"), Header{HeaderContentLength, "7"}),
	}
	for _, f := range want {
		stream.Write(f.Marshal())
	}
	data := stream.Bytes()

	for i := 0; i <= len(data); i++ {
		for j := i; j <= len(data); j++ {
			p := NewParser()
			require.NoError(t, p.Add(data[:i]))
			require.NoError(t, p.Add(data[i:j]))
			require.NoError(t, p.Add(data[j:]))

			got := drain(p)
			require.Len(t, got, len(want), "split at %d/%d", i, j)
			for k := range want {
				assert.Equal(t, want[k].Command, got[k].Command)
				assert.Equal(t, string(want[k].Body), string(got[k].Body))
			}
			assert.Zero(t, p.Buffered())
		}
	}
}

func TestParser_Heartbeats(t *testing.T) {
	p := NewParser()
	require.NoError(t, p.Add([]byte("\n\r\n\x00")))

	frames := drain(p)
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.True(t, f.IsHeartbeat())
	}
}

func TestParser_PartialFrameWaits(t *testing.T) {
	p := NewParser()
	require.NoError(t, p.Add([]byte("MESSAGE\ndestination:/queue/a\n")))
	assert.False(t, p.CanRead())
	require.NoError(t, p.Add([]byte("\nbody")))
	assert.False(t, p.CanRead())
	require.NoError(t, p.Add([]byte{0}))
	require.True(t, p.CanRead())

	f, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, "/queue/a", f.Header(HeaderDestination))
	assert.Equal(t, "body", string(f.Body))
}

func TestParser_HeaderEscaping(t *testing.T) {
	f := NewFrame(CommandSend, nil, Header{"key", "a:b\nc\\d"})
	wire := f.Marshal()
	assert.Contains(t, string(wire), `key:a\cb\nc\\d`)

	p := NewParser()
	require.NoError(t, p.Add(wire))
	got, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, "a:b\nc\\d", got.Header("key"))
}

func TestParser_ConnectedHeadersNotUnescaped(t *testing.T) {
	p := NewParser()
	require.NoError(t, p.Add([]byte("CONNECTED\nserver:a\\b\n\n\x00")))
	f, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, `a\b`, f.Header("server"))
}

func TestParser_RepeatedHeaderFirstWins(t *testing.T) {
	p := NewParser()
	require.NoError(t, p.Add([]byte("MESSAGE\nfoo:1\nfoo:2\n\n\x00")))
	f, _ := p.Get()
	assert.Equal(t, "1", f.Header("foo"))
	assert.Len(t, f.Headers, 1)
}

func TestParser_CRLFLines(t *testing.T) {
	p := NewParser()
	require.NoError(t, p.Add([]byte("MESSAGE\r\nfoo:bar\r\n\r\nhi\x00")))
	f, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, CommandMessage, f.Command)
	assert.Equal(t, "bar", f.Header("foo"))
	assert.Equal(t, "hi", string(f.Body))
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"header without colon", "MESSAGE\nnocolon\n\n\x00", ErrMalformedFrame},
		{"bad escape", "MESSAGE\nk:\\t\n\n\x00", ErrMalformedFrame},
		{"bad content-length", "MESSAGE\ncontent-length:x\n\n\x00", ErrMalformedFrame},
		{"missing NUL after content", "MESSAGE\ncontent-length:2\n\nabc\x00", ErrMalformedFrame},
		{"stray carriage return", "\rX", ErrMalformedFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			err := p.Add([]byte(tt.input))
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, p.Buffered())
		})
	}
}

func TestParser_FrameTooLarge(t *testing.T) {
	p := NewParser()
	p.SetMaxFrameBytes(16)
	err := p.Add([]byte("MESSAGE\n\n0123456789abcdef"))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestParser_ContentLengthOverLimit(t *testing.T) {
	tests := []struct {
		name   string
		length string
	}{
		{"max int", "9223372036854775807"},
		{"max int minus one", "9223372036854775806"},
		{"above limit", "9000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			var err error
			require.NotPanics(t, func() {
				err = p.Add([]byte("MESSAGE\ncontent-length:" + tt.length + "\n\nabc\x00"))
			})
			assert.ErrorIs(t, err, ErrFrameTooLarge)
			assert.Zero(t, p.Buffered())
			assert.False(t, p.CanRead())
		})
	}
}

func TestParser_ContentLengthAtLimit(t *testing.T) {
	p := NewParser()
	p.SetMaxFrameBytes(64)
	require.NoError(t, p.Add([]byte("MESSAGE\ncontent-length:3\n\nabc\x00")))
	frames := drain(p)
	require.Len(t, frames, 1)
	assert.Equal(t, "abc", string(frames[0].Body))
}

func TestFrame_MarshalHeartbeat(t *testing.T) {
	assert.Equal(t, []byte("\n"), Heartbeat().Marshal())
}

func TestFrame_StringMasksPasscode(t *testing.T) {
	f := NewFrame(CommandConnect, nil, Header{HeaderLogin, "user"}, Header{HeaderPasscode, "secret"})
	assert.NotContains(t, f.String(), "secret")
	assert.Contains(t, f.String(), "login:user")
}
