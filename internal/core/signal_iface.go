package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Frame is a raw encoded message.
type Frame []byte

// ConnID identifies one transport connection for its whole lifetime.
type ConnID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() ConnID
	// TrySend queues f without blocking. It returns ErrBackpressure when the
	// outbound buffer is full and ErrClosed after Close.
	TrySend(f Frame) error
	IsClosed() bool
	Close()
}
