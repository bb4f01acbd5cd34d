// Package rtc holds the few places where the relay looks at WebRTC data:
// optional sanity checks of negotiation blobs and the ICE server list handed
// to clients. Blobs are never rewritten.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/callrelay/internal/domain"
)

var (
	errMissingBlob = errors.New("missing negotiation blob")
	errSDPType     = errors.New("unknown sdp type")
)

// Validator checks that offers and answers carry parseable SDP and that
// candidates look like ICE candidates.
type Validator struct{}

func NewValidator() Validator { return Validator{} }

// ValidateDescription accepts either a raw SDP string or an
// RTCSessionDescriptionInit object ({type, sdp}).
func (Validator) ValidateDescription(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %w", domain.ErrBadPayload, errMissingBlob)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(raw, &desc); err != nil {
			return fmt.Errorf("%w: description: %w", domain.ErrBadPayload, err)
		}
		if desc.Type == webrtc.SDPTypeUnknown {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, errSDPType)
		}
		text = desc.SDP
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(text)); err != nil {
		return fmt.Errorf("%w: sdp: %w", domain.ErrBadPayload, err)
	}
	return nil
}

// ValidateCandidate accepts an RTCIceCandidateInit object or a bare
// candidate string. An empty candidate marks end-of-candidates.
func (Validator) ValidateCandidate(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %w", domain.ErrBadPayload, errMissingBlob)
	}

	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &cand.Candidate); err != nil {
		if err := json.Unmarshal(raw, &cand); err != nil {
			return fmt.Errorf("%w: candidate: %w", domain.ErrBadPayload, err)
		}
	}
	if cand.Candidate == "" {
		return nil
	}
	if _, err := ice.UnmarshalCandidate(strings.TrimPrefix(cand.Candidate, "candidate:")); err != nil {
		return fmt.Errorf("%w: candidate: %w", domain.ErrBadPayload, err)
	}
	return nil
}
