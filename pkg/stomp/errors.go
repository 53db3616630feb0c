package stomp

import "errors"

var (
	// ErrConnect is returned when the byte stream cannot be opened.
	ErrConnect = errors.New("stomp: connect failed")

	// ErrBrokenTransport is returned when the peer closed the stream or the
	// stream failed mid-read.
	ErrBrokenTransport = errors.New("stomp: broken transport")

	// ErrProtocol is returned for frames that violate the session state
	// machine, such as a non-CONNECTED reply to CONNECT.
	ErrProtocol = errors.New("stomp: protocol error")

	// ErrNotConnected is returned by operations that need a CONNECTED session.
	ErrNotConnected = errors.New("stomp: not connected")

	// ErrAlreadyConnected is returned by Connect on a session that is
	// connecting or connected.
	ErrAlreadyConnected = errors.New("stomp: already connected")

	// ErrMalformedFrame is returned by the parser for undecodable input.
	ErrMalformedFrame = errors.New("stomp: malformed frame")

	// ErrFrameTooLarge is returned when a frame exceeds the parser limit.
	ErrFrameTooLarge = errors.New("stomp: frame too large")
)
