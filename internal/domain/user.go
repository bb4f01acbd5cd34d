// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const DefaultMaxUserIDLen = 64

// UserID is the caller-supplied identifier an endpoint registers under
// (phone number, username, ...). It is unique only among live connections.
type UserID string

// NewUserID validates a raw identifier. The string is kept as sent, so
// " bob" and "bob" are different identifiers; a blank one is rejected.
func NewUserID(raw string, maxLen int) (UserID, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrIdentifierEmpty
	}
	id := raw
	if maxLen <= 0 {
		maxLen = DefaultMaxUserIDLen
	}
	if len(id) > maxLen {
		return "", ErrIdentifierTooLong
	}
	return UserID(id), nil
}
