package stomp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultServerHeartbeat is the interval requested from the broker.
const DefaultServerHeartbeat = 60 * time.Second

// State is the session connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Handler receives MESSAGE frames for one subscription.
type Handler func(ctx context.Context, f Frame)

// Subscription is a registered destination. It is never mutated after
// Subscribe and is dropped when the session disconnects.
type Subscription struct {
	ID          string
	Destination string
	Handler     Handler
	Context     any
}

// SubscriptionToken identifies a subscription within a session.
type SubscriptionToken struct {
	ID string
}

// Options configures the CONNECT handshake.
type Options struct {
	// Host is the virtual host header; empty means "/".
	Host     string
	Login    string
	Passcode string

	// ServerHeartbeat is the interval the broker is asked to send
	// heartbeats at. Zero means DefaultServerHeartbeat.
	ServerHeartbeat time.Duration
}

// Protocol is a STOMP 1.2 session over a Transport.
type Protocol struct {
	dialer Dialer
	opts   Options
	now    func() time.Time

	mu           sync.RWMutex
	state        State
	transport    *Transport
	lastReceived time.Time
	subs         map[string]Subscription
	version      string
	heartbeat    time.Duration
}

// NewProtocol returns a disconnected session that opens streams with d.
func NewProtocol(d Dialer, opts Options) *Protocol {
	if opts.ServerHeartbeat <= 0 {
		opts.ServerHeartbeat = DefaultServerHeartbeat
	}
	if opts.Host == "" {
		opts.Host = "/"
	}
	return &Protocol{
		dialer: d,
		opts:   opts,
		now:    time.Now,
		subs:   make(map[string]Subscription),
	}
}

// State returns the current session state.
func (p *Protocol) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LastReceived returns when the last frame, heartbeats included, arrived.
func (p *Protocol) LastReceived() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReceived
}

// Negotiated returns the protocol version and the interval the broker
// promised to send heartbeats at (zero when it sends none).
func (p *Protocol) Negotiated() (string, time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version, p.heartbeat
}

// Connect opens the stream and performs the handshake. Leading heartbeats
// are skipped; any other frame than CONNECTED fails with ErrProtocol and
// leaves the session disconnected. Retry policy belongs to the caller.
func (p *Protocol) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateDisconnected {
		p.mu.Unlock()
		return ErrAlreadyConnected
	}
	p.state = StateConnecting
	p.mu.Unlock()

	t, err := Dial(ctx, p.dialer)
	if err != nil {
		p.reset()
		return err
	}
	p.mu.Lock()
	p.transport = t
	p.mu.Unlock()

	if err := t.Send(ctx, p.connectFrame()); err != nil {
		p.abort(t)
		return err
	}

	var f Frame
	for {
		f, err = p.receive(ctx, t)
		if err != nil {
			p.abort(t)
			return err
		}
		if !f.IsHeartbeat() {
			break
		}
	}

	if f.Command != CommandConnected {
		p.abort(t)
		if f.Command == CommandError {
			return fmt.Errorf("%w: broker refused connection: %s", ErrProtocol, f.Header(HeaderMessage))
		}
		return fmt.Errorf("%w: expected CONNECTED, got %s", ErrProtocol, f.Command)
	}

	p.mu.Lock()
	p.state = StateConnected
	p.version = f.Header(HeaderVersion)
	p.heartbeat = serverHeartbeat(f.Header(HeaderHeartBeat), p.opts.ServerHeartbeat)
	p.mu.Unlock()
	return nil
}

func (p *Protocol) connectFrame() Frame {
	headers := []Header{
		{HeaderAcceptVersion, "1.2"},
		{HeaderHost, p.opts.Host},
		{HeaderHeartBeat, "0," + strconv.FormatInt(p.opts.ServerHeartbeat.Milliseconds(), 10)},
	}
	if p.opts.Login != "" {
		headers = append(headers, Header{HeaderLogin, p.opts.Login}, Header{HeaderPasscode, p.opts.Passcode})
	}
	return NewFrame(CommandConnect, nil, headers...)
}

// Subscribe registers handler for destination and sends SUBSCRIBE.
func (p *Protocol) Subscribe(ctx context.Context, destination string, handler Handler, subCtx any) (SubscriptionToken, error) {
	t, err := p.connected()
	if err != nil {
		return SubscriptionToken{}, err
	}

	sub := Subscription{
		ID:          uuid.NewString(),
		Destination: destination,
		Handler:     handler,
		Context:     subCtx,
	}
	p.mu.Lock()
	p.subs[sub.ID] = sub
	p.mu.Unlock()

	f := NewFrame(CommandSubscribe, nil,
		Header{HeaderID, sub.ID},
		Header{HeaderDestination, destination},
		Header{HeaderAck, "auto"},
	)
	if err := t.Send(ctx, f); err != nil {
		p.mu.Lock()
		delete(p.subs, sub.ID)
		p.mu.Unlock()
		return SubscriptionToken{}, err
	}
	return SubscriptionToken{ID: sub.ID}, nil
}

// Subscription resolves a token to its registration.
func (p *Protocol) Subscription(token SubscriptionToken) (Subscription, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sub, ok := p.subs[token.ID]
	return sub, ok
}

// Message returns the token of the subscription a MESSAGE frame belongs to.
func (p *Protocol) Message(f Frame) (SubscriptionToken, error) {
	if f.Command != CommandMessage {
		return SubscriptionToken{}, fmt.Errorf("%w: %s is not a MESSAGE", ErrProtocol, f.Command)
	}
	id, ok := f.Get(HeaderSubscription)
	if !ok {
		return SubscriptionToken{}, fmt.Errorf("%w: MESSAGE without subscription header", ErrProtocol)
	}
	return SubscriptionToken{ID: id}, nil
}

// Send publishes body to destination.
func (p *Protocol) Send(ctx context.Context, destination string, body []byte, headers map[string]string) error {
	t, err := p.connected()
	if err != nil {
		return err
	}
	f := NewFrame(CommandSend, body, Header{HeaderDestination, destination})
	if len(body) > 0 {
		f.Set(HeaderContentLength, strconv.Itoa(len(body)))
	}
	for k, v := range headers {
		if _, exists := f.Get(k); !exists {
			f.Set(k, v)
		}
	}
	return t.Send(ctx, f)
}

// ReceiveFrame returns the next frame and refreshes LastReceived. A broken
// stream or malformed input disconnects the session.
func (p *Protocol) ReceiveFrame(ctx context.Context) (Frame, error) {
	p.mu.RLock()
	t, state := p.transport, p.state
	p.mu.RUnlock()
	if t == nil || state != StateConnected {
		return Frame{}, ErrNotConnected
	}

	f, err := p.receive(ctx, t)
	if err != nil && ctx.Err() == nil {
		p.abort(t)
	}
	return f, err
}

func (p *Protocol) receive(ctx context.Context, t *Transport) (Frame, error) {
	f, err := t.Receive(ctx)
	if err != nil {
		return Frame{}, err
	}
	p.mu.Lock()
	p.lastReceived = p.now()
	p.mu.Unlock()
	return f, nil
}

// Disconnect sends DISCONNECT best effort and closes the stream regardless.
// Calling it on a disconnected session is a no-op.
func (p *Protocol) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	t, state := p.transport, p.state
	p.mu.Unlock()
	if t == nil {
		return nil
	}

	if state == StateConnected {
		_ = t.Send(ctx, NewFrame(CommandDisconnect, nil, Header{HeaderReceipt, uuid.NewString()}))
	}
	p.reset()
	return t.Close()
}

func (p *Protocol) connected() (*Transport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateConnected || p.transport == nil {
		return nil, ErrNotConnected
	}
	return p.transport, nil
}

// abort closes t and returns to Disconnected without a DISCONNECT frame.
func (p *Protocol) abort(t *Transport) {
	_ = t.Close()
	p.reset()
}

func (p *Protocol) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateDisconnected
	p.transport = nil
	p.subs = make(map[string]Subscription)
	p.version = ""
	p.heartbeat = 0
}

// serverHeartbeat computes the broker's send interval from its "sx,sy"
// reply: zero if either side declines, else max(sx, requested).
func serverHeartbeat(header string, requested time.Duration) time.Duration {
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return 0
	}
	sx, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || sx <= 0 || requested <= 0 {
		return 0
	}
	d := time.Duration(sx) * time.Millisecond
	if d < requested {
		d = requested
	}
	return d
}
