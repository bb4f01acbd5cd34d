package domain

// CallState is the state of a two-party call session.
// Idle is never stored: a pair without an entry is idle.
type CallState int

const (
	CallIdle CallState = iota
	CallCalling
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallCalling:
		return "calling"
	case CallActive:
		return "active"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func (s CallState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Pair is the unordered key of a call session. Lo <= Hi always.
type Pair struct {
	Lo UserID
	Hi UserID
}

func NewPair(a, b UserID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

// Other returns the member of the pair that is not id.
func (p Pair) Other(id UserID) UserID {
	if p.Lo == id {
		return p.Hi
	}
	return p.Lo
}

func (p Pair) Has(id UserID) bool { return p.Lo == id || p.Hi == id }
