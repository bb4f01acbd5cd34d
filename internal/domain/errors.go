package domain

import "errors"

var (
	ErrIdentifierEmpty   = errors.New("identifier empty")
	ErrIdentifierTooLong = errors.New("identifier too long")

	ErrTaken             = errors.New("identifier taken")
	ErrNotFound          = errors.New("recipient not found")
	ErrNotRegistered     = errors.New("connection not registered")
	ErrInvalidTransition = errors.New("invalid call transition")
	ErrAlreadyCalling    = errors.New("call already ringing")
	ErrBadPayload        = errors.New("bad payload")
	ErrUnknownType       = errors.New("unknown message type")
)

// Code maps an error to the stable code sent to clients in error notices.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrIdentifierEmpty), errors.Is(err, ErrIdentifierTooLong):
		return "bad_identifier"
	case errors.Is(err, ErrTaken):
		return "taken"
	case errors.Is(err, ErrNotFound):
		return "no_recipient"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrAlreadyCalling):
		return "already_calling"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrBadPayload):
		return "bad_payload"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	default:
		return "internal"
	}
}
