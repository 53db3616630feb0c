package stomp

import (
	"bytes"
	"strconv"
	"strings"
)

// Client and server commands.
const (
	CommandConnect     = "CONNECT"
	CommandStomp       = "STOMP"
	CommandConnected   = "CONNECTED"
	CommandSend        = "SEND"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandAck         = "ACK"
	CommandNack        = "NACK"
	CommandDisconnect  = "DISCONNECT"
	CommandMessage     = "MESSAGE"
	CommandReceipt     = "RECEIPT"
	CommandError       = "ERROR"
)

// Well-known header names.
const (
	HeaderAcceptVersion = "accept-version"
	HeaderVersion       = "version"
	HeaderHost          = "host"
	HeaderLogin         = "login"
	HeaderPasscode      = "passcode"
	HeaderHeartBeat     = "heart-beat"
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderAck           = "ack"
	HeaderSubscription  = "subscription"
	HeaderMessageID     = "message-id"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderContentLength = "content-length"
	HeaderContentType   = "content-type"
	HeaderMessage       = "message"
)

// Header is one key:value pair. Frames keep headers in wire order.
type Header struct {
	Key   string
	Value string
}

// Frame is one STOMP frame. A frame with an empty Command is a heartbeat.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// NewFrame builds a frame; later duplicate header keys are dropped.
func NewFrame(command string, body []byte, headers ...Header) Frame {
	f := Frame{Command: command, Body: body}
	for _, h := range headers {
		if _, ok := f.Get(h.Key); !ok {
			f.Headers = append(f.Headers, h)
		}
	}
	return f
}

// Heartbeat returns the heartbeat marker frame.
func Heartbeat() Frame {
	return Frame{}
}

// IsHeartbeat reports whether f carries no command.
func (f Frame) IsHeartbeat() bool {
	return f.Command == ""
}

// Get returns the value of the header key.
func (f Frame) Get(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Header returns the value of key or "".
func (f Frame) Header(key string) string {
	v, _ := f.Get(key)
	return v
}

// HeaderMap copies the headers into a map.
func (f Frame) HeaderMap() map[string]string {
	m := make(map[string]string, len(f.Headers))
	for _, h := range f.Headers {
		m[h.Key] = h.Value
	}
	return m
}

// Set replaces the value of key, or appends it.
func (f *Frame) Set(key, value string) {
	for i := range f.Headers {
		if f.Headers[i].Key == key {
			f.Headers[i].Value = value
			return
		}
	}
	f.Headers = append(f.Headers, Header{Key: key, Value: value})
}

// Marshal returns the wire form. Heartbeats encode as a single EOL.
func (f Frame) Marshal() []byte {
	if f.IsHeartbeat() {
		return []byte{'\n'}
	}
	escape := escapesHeaders(f.Command)

	var b bytes.Buffer
	b.Grow(len(f.Command) + len(f.Body) + 64)
	b.WriteString(f.Command)
	b.WriteByte('\n')
	for _, h := range f.Headers {
		if escape {
			b.WriteString(escapeHeader(h.Key))
			b.WriteByte(':')
			b.WriteString(escapeHeader(h.Value))
		} else {
			b.WriteString(h.Key)
			b.WriteByte(':')
			b.WriteString(h.Value)
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

// String renders the frame for logs without the body.
func (f Frame) String() string {
	if f.IsHeartbeat() {
		return "HEARTBEAT"
	}
	parts := make([]string, 0, len(f.Headers))
	for _, h := range f.Headers {
		if h.Key == HeaderPasscode {
			parts = append(parts, h.Key+":*****")
			continue
		}
		parts = append(parts, h.Key+":"+h.Value)
	}
	return f.Command + " {" + strings.Join(parts, ", ") + "} body=" + strconv.Itoa(len(f.Body)) + "B"
}

// CONNECT and CONNECTED frames carry raw header values.
func escapesHeaders(command string) bool {
	return command != CommandConnect && command != CommandConnected && command != CommandStomp
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeHeader(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", ErrMalformedFrame
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'c':
			b.WriteByte(':')
		default:
			return "", ErrMalformedFrame
		}
	}
	return b.String(), nil
}
