package signal

import "golang.org/x/time/rate"

// MessageLimiter caps the inbound message rate of one connection.
type MessageLimiter struct {
	l *rate.Limiter
}

// NewMessageLimiter allows perSecond messages with the given burst. A
// non-positive rate disables limiting.
func NewMessageLimiter(perSecond float64, burst int) *MessageLimiter {
	if perSecond <= 0 {
		return &MessageLimiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &MessageLimiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (m *MessageLimiter) Allow() bool {
	return m.l.Allow()
}
