package domain

import "errors"

var (
	// ErrFetch is returned when a repository resource cannot be retrieved
	// or the repository answers with a non-2xx status.
	ErrFetch = errors.New("pit: fetch failed")

	// ErrTransform is returned when a fetched representation or a
	// notification body cannot be turned into document fields.
	ErrTransform = errors.New("pit: transform failed")

	// ErrWrite is returned when a document cannot be written to the index.
	ErrWrite = errors.New("pit: index write failed")

	// ErrBackend is returned for index backend failures outside of document
	// writes, including a failed alias swap.
	ErrBackend = errors.New("pit: index backend error")

	// ErrHeartbeatTimeout signals that no frame arrived within the grace
	// window and the connection must be torn down.
	ErrHeartbeatTimeout = errors.New("pit: heartbeat timeout")

	// ErrAlreadyRunning is returned when Start() is called on a running worker.
	ErrAlreadyRunning = errors.New("pit: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped worker.
	ErrNotRunning = errors.New("pit: not running")

	// ErrShutdownTimeout is returned when handlers outlive the shutdown grace period.
	ErrShutdownTimeout = errors.New("pit: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pit: invalid configuration")
)
