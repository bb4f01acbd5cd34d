package core

import (
	"encoding/json"

	"github.com/dkeye/callrelay/internal/domain"
)

// Inbound message types.
const (
	TypeRegister          = "register"
	TypeCallUser          = "callUser"
	TypeAnswerCall        = "answerCall"
	TypeCallResponse      = "call-response"
	TypeRejectCall        = "rejectCall"
	TypeICECandidate      = "iceCandidate"
	TypeRenegotiateOffer  = "renegotiateOffer"
	TypeRenegotiateAnswer = "renegotiateAnswer"
	TypeEndCall           = "endCall"
	TypePing              = "ping"
	TypeWhoAmI            = "whoami"

	// Names used by older socket clients.
	TypeLegacyOffer        = "offer"
	TypeLegacyAnswer       = "answer"
	TypeLegacyICECandidate = "ice-candidate"
)

// Outbound message types.
const (
	TypeRegistered      = "registered"
	TypeUsersUpdated    = "usersUpdated"
	TypeIncomingCall    = "incomingCall"
	TypeUserUnavailable = "userUnavailable"
	TypeNoRecipient     = "noRecipient"
	TypeCallAnswered    = "callAnswered"
	TypeCallRejected    = "callRejected"
	TypeCallEnded       = "callEnded"
	TypeError           = "error"
	TypePong            = "pong"
)

// Canonical folds legacy aliases into the current message names.
func Canonical(t string) string {
	switch t {
	case TypeLegacyOffer:
		return TypeCallUser
	case TypeLegacyAnswer:
		return TypeAnswerCall
	case TypeLegacyICECandidate:
		return TypeICECandidate
	default:
		return t
	}
}

// Envelope is the union of every inbound payload. Negotiation blobs are kept
// raw so they are forwarded byte for byte.
type Envelope struct {
	Type       string          `json:"type"`
	Identifier string          `json:"identifier,omitempty"`
	To         string          `json:"to,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	Accepted   *bool           `json:"accepted,omitempty"`
}

// Outbound is the shape of every point-to-point message the relay emits.
type Outbound struct {
	Type       string          `json:"type"`
	From       domain.UserID   `json:"from,omitempty"`
	To         domain.UserID   `json:"to,omitempty"`
	Identifier domain.UserID   `json:"identifier,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Ref        string          `json:"ref,omitempty"`
}

// UsersUpdated is the directory snapshot broadcast after every change.
// Version grows with each change so a late snapshot can be discarded.
type UsersUpdated struct {
	Type        string          `json:"type"`
	Identifiers []domain.UserID `json:"identifiers"`
	Version     uint64          `json:"version"`
}

// Encode marshals m into a frame.
func Encode(m any) (Frame, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
