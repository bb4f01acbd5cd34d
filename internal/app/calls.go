package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// CallSession is one pending or active two-party call.
type CallSession struct {
	Pair domain.Pair
	// Caller placed the pending offer; Callee is the only party allowed to
	// answer or reject it.
	Caller     domain.UserID
	Callee     domain.UserID
	State      domain.CallState
	StartedAt  time.Time
	AnsweredAt time.Time

	// renegotiating holds origins with an unanswered renegotiation offer.
	renegotiating map[domain.UserID]bool
	timer         *time.Timer
}

// CallInfo is a read-only view for APIs.
type CallInfo struct {
	Caller        domain.UserID    `json:"caller"`
	Callee        domain.UserID    `json:"callee"`
	State         domain.CallState `json:"state"`
	StartedAt     time.Time        `json:"started_at"`
	AnsweredAt    *time.Time       `json:"answered_at,omitempty"`
	Renegotiating []domain.UserID  `json:"renegotiating,omitempty"`
}

func (s *CallSession) info() CallInfo {
	ci := CallInfo{
		Caller:    s.Caller,
		Callee:    s.Callee,
		State:     s.State,
		StartedAt: s.StartedAt,
	}
	if !s.AnsweredAt.IsZero() {
		at := s.AnsweredAt
		ci.AnsweredAt = &at
	}
	for _, id := range []domain.UserID{s.Pair.Lo, s.Pair.Hi} {
		if s.renegotiating[id] {
			ci.Renegotiating = append(ci.Renegotiating, id)
		}
	}
	return ci
}

// CallTable owns the per-pair call state. Ended sessions are removed
// immediately; a pair without an entry is idle.
type CallTable struct {
	mu       sync.Mutex
	sessions map[domain.Pair]*CallSession

	ringTimeout time.Duration
	onExpire    func(*CallSession)
	now         func() time.Time
}

// NewCallTable creates a table. When ringTimeout > 0 every ringing session
// is armed with a timer that calls onExpire; onExpire is expected to call
// Expire under whatever serialization the caller uses.
func NewCallTable(ringTimeout time.Duration, onExpire func(*CallSession)) *CallTable {
	return &CallTable{
		sessions:    make(map[domain.Pair]*CallSession),
		ringTimeout: ringTimeout,
		onExpire:    onExpire,
		now:         time.Now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidTransition)
}

// Call moves an idle pair to Calling with from as the offer origin.
func (t *CallTable) Call(from, to domain.UserID) (*CallSession, error) {
	if from == to {
		return nil, invalid("%s cannot call itself", from)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	pair := domain.NewPair(from, to)
	if cur, ok := t.sessions[pair]; ok {
		if cur.State == domain.CallCalling {
			return nil, fmt.Errorf("call %s -> %s: %w", from, to, domain.ErrAlreadyCalling)
		}
		return nil, invalid("call %s -> %s while %s", from, to, cur.State)
	}

	s := &CallSession{
		Pair:          pair,
		Caller:        from,
		Callee:        to,
		State:         domain.CallCalling,
		StartedAt:     t.now(),
		renegotiating: make(map[domain.UserID]bool, 2),
	}
	if t.ringTimeout > 0 && t.onExpire != nil {
		s.timer = time.AfterFunc(t.ringTimeout, func() { t.onExpire(s) })
	}
	t.sessions[pair] = s
	log.Info().Str("module", "app.calls").Str("caller", string(from)).Str("callee", string(to)).Msg("calling")
	return s, nil
}

// Answer moves a ringing session to Active. Only the callee may answer.
func (t *CallTable) Answer(from, to domain.UserID) (*CallSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[domain.NewPair(from, to)]
	if !ok || s.State != domain.CallCalling || s.Callee != from {
		return nil, invalid("answer %s -> %s", from, to)
	}
	s.stopTimer()
	s.State = domain.CallActive
	s.AnsweredAt = t.now()
	log.Info().Str("module", "app.calls").Str("caller", string(s.Caller)).Str("callee", string(s.Callee)).Msg("active")
	return s, nil
}

// Reject destroys a ringing session. Only the callee may reject.
func (t *CallTable) Reject(from, to domain.UserID) (*CallSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pair := domain.NewPair(from, to)
	s, ok := t.sessions[pair]
	if !ok || s.State != domain.CallCalling || s.Callee != from {
		return nil, invalid("reject %s -> %s", from, to)
	}
	t.removeLocked(s)
	log.Info().Str("module", "app.calls").Str("caller", string(s.Caller)).Str("callee", string(s.Callee)).Msg("rejected")
	return s, nil
}

// End terminates a ringing or active session from either side.
func (t *CallTable) End(from, to domain.UserID) (*CallSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[domain.NewPair(from, to)]
	if !ok {
		return nil, invalid("end %s -> %s", from, to)
	}
	t.removeLocked(s)
	log.Info().Str("module", "app.calls").Str("by", string(from)).Str("peer", string(to)).Msg("ended")
	return s, nil
}

// Candidate checks that a candidate may flow from -> to.
func (t *CallTable) Candidate(from, to domain.UserID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.activeLocked(from, to); err != nil {
		return invalid("candidate %s -> %s", from, to)
	}
	return nil
}

// RenegotiateOffer records from as having an outstanding renegotiation
// offer. A second offer before the answer replaces the first.
func (t *CallTable) RenegotiateOffer(from, to domain.UserID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.activeLocked(from, to)
	if err != nil {
		return invalid("renegotiate offer %s -> %s", from, to)
	}
	if s.renegotiating[from] {
		log.Debug().Str("module", "app.calls").Str("from", string(from)).Msg("renegotiation offer replaced")
	}
	s.renegotiating[from] = true
	return nil
}

// RenegotiateAnswer settles the peer's outstanding renegotiation offer.
func (t *CallTable) RenegotiateAnswer(from, to domain.UserID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.activeLocked(from, to)
	if err != nil {
		return invalid("renegotiate answer %s -> %s", from, to)
	}
	delete(s.renegotiating, to)
	return nil
}

// DropParty removes every session id takes part in.
func (t *CallTable) DropParty(id domain.UserID) []*CallSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*CallSession
	for pair, s := range t.sessions {
		if pair.Has(id) {
			t.removeLocked(s)
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		log.Info().Str("module", "app.calls").Str("id", string(id)).Int("sessions", len(out)).Msg("dropped party")
	}
	return out
}

// Expire removes s if it is still the ringing session for its pair.
func (t *CallTable) Expire(s *CallSession) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sessions[s.Pair]; !ok || cur != s || s.State != domain.CallCalling {
		return false
	}
	t.removeLocked(s)
	log.Info().Str("module", "app.calls").Str("caller", string(s.Caller)).Str("callee", string(s.Callee)).Msg("ring timeout")
	return true
}

// Get returns a copy of the session view for the pair.
func (t *CallTable) Get(a, b domain.UserID) (CallInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[domain.NewPair(a, b)]
	if !ok {
		return CallInfo{}, false
	}
	return s.info(), true
}

func (t *CallTable) Snapshot() []CallInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CallInfo, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.info())
	}
	return out
}

// Counts returns the number of sessions per state.
func (t *CallTable) Counts() map[domain.CallState]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[domain.CallState]int{domain.CallCalling: 0, domain.CallActive: 0}
	for _, s := range t.sessions {
		out[s.State]++
	}
	return out
}

func (t *CallTable) activeLocked(from, to domain.UserID) (*CallSession, error) {
	s, ok := t.sessions[domain.NewPair(from, to)]
	if !ok || s.State != domain.CallActive {
		return nil, domain.ErrInvalidTransition
	}
	return s, nil
}

func (t *CallTable) removeLocked(s *CallSession) {
	s.stopTimer()
	s.State = domain.CallEnded
	delete(t.sessions, s.Pair)
}

func (s *CallSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
