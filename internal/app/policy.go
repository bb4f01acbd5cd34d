package app

import "github.com/dkeye/callrelay/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickConnection
	DropFrame
)

// Policy decides what happens to a connection whose outbound buffer is full.
type Policy interface {
	OnBackPressure(conn core.SignalConnection) BackpressureAction
}

// KickPolicy closes slow connections; their lifecycle close then cleans up
// the directory and calls.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.SignalConnection) BackpressureAction {
	return KickConnection
}

// DropPolicy discards the frame and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.SignalConnection) BackpressureAction {
	return DropFrame
}

// PolicyFor maps a config value to a Policy. Unknown values kick.
func PolicyFor(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return KickPolicy{}
}
