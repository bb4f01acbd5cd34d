package orch

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/observability"
	"github.com/rs/zerolog/log"
)

// PayloadValidator checks negotiation blobs before they are forwarded.
// The blobs themselves are never rewritten.
type PayloadValidator interface {
	ValidateDescription(raw json.RawMessage) error
	ValidateCandidate(raw json.RawMessage) error
}

type Options struct {
	Policy           app.Policy
	Validator        PayloadValidator
	RingTimeout      time.Duration
	MaxIdentifierLen int
}

// Orchestrator routes signaling messages between registered connections and
// reacts to connection lifecycle events. Every operation that touches the
// directory or the call table runs under mu; frames are sent after mu is
// released.
type Orchestrator struct {
	Registry  *app.Registry
	Calls     *app.CallTable
	Policy    app.Policy
	Validator PayloadValidator

	maxIDLen int
	mu       sync.Mutex
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		Registry:  app.NewRegistry(),
		Policy:    opts.Policy,
		Validator: opts.Validator,
		maxIDLen:  opts.MaxIdentifierLen,
	}
	if o.Policy == nil {
		o.Policy = app.KickPolicy{}
	}
	o.Calls = app.NewCallTable(opts.RingTimeout, o.onRingTimeout)
	return o
}

// OnConnect makes a freshly opened connection visible to broadcasts. It
// stays anonymous until it registers.
func (o *Orchestrator) OnConnect(conn core.SignalConnection) {
	o.Registry.Attach(conn)
	observability.ConnectionOpened()
}

// OnDisconnect unbinds conn, ends every call its identifier took part in
// and broadcasts the new directory.
func (o *Orchestrator) OnDisconnect(conn core.SignalConnection) {
	var box outbox
	o.mu.Lock()
	id, ok := o.Registry.Unregister(conn.ID())
	if ok {
		o.endCallsOfLocked(&box, id, "disconnected")
		o.broadcastUsersLocked(&box)
	}
	o.updateGaugesLocked()
	o.mu.Unlock()

	observability.ConnectionClosed()
	if ok {
		log.Info().Str("module", "orch").Str("id", string(id)).Str("conn", string(conn.ID())).Msg("disconnected")
	}
	o.flush(box)
}

// Users returns the current directory snapshot.
func (o *Orchestrator) Users() ([]domain.UserID, uint64) {
	return o.Registry.Snapshot()
}

func (o *Orchestrator) CallsSnapshot() []app.CallInfo {
	return o.Calls.Snapshot()
}

func (o *Orchestrator) onRingTimeout(s *app.CallSession) {
	var box outbox
	o.mu.Lock()
	if o.Calls.Expire(s) {
		for _, id := range []domain.UserID{s.Caller, s.Callee} {
			if conn, err := o.Registry.Resolve(id); err == nil {
				box.add(conn, core.Outbound{Type: core.TypeCallEnded, From: s.Pair.Other(id), Reason: "timeout"})
			}
		}
		o.updateGaugesLocked()
	}
	o.mu.Unlock()
	o.flush(box)
}

// endCallsOfLocked destroys every session of id and tells the other party.
func (o *Orchestrator) endCallsOfLocked(box *outbox, id domain.UserID, reason string) {
	for _, s := range o.Calls.DropParty(id) {
		other := s.Pair.Other(id)
		if conn, err := o.Registry.Resolve(other); err == nil {
			box.add(conn, core.Outbound{Type: core.TypeCallEnded, From: id, Reason: reason})
		}
	}
}

func (o *Orchestrator) broadcastUsersLocked(box *outbox) {
	ids, version := o.Registry.Snapshot()
	frame, err := core.Encode(core.UsersUpdated{Type: core.TypeUsersUpdated, Identifiers: ids, Version: version})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode usersUpdated")
		return
	}
	for _, c := range o.Registry.Connections() {
		*box = append(*box, delivery{conn: c, frame: frame})
	}
}

func (o *Orchestrator) updateGaugesLocked() {
	observability.SetRegistered(o.Registry.Len())
	counts := o.Calls.Counts()
	observability.SetCalls(counts[domain.CallCalling], counts[domain.CallActive])
}

type delivery struct {
	conn  core.SignalConnection
	frame core.Frame
}

type outbox []delivery

func (b *outbox) add(conn core.SignalConnection, msg any) {
	frame, err := core.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode outbound")
		return
	}
	*b = append(*b, delivery{conn: conn, frame: frame})
}

func (o *Orchestrator) flush(box outbox) {
	for _, d := range box {
		err := d.conn.TrySend(d.frame)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrBackpressure):
			switch o.Policy.OnBackPressure(d.conn) {
			case app.KickConnection:
				log.Warn().Str("module", "orch").Str("conn", string(d.conn.ID())).Msg("slow connection, kicking")
				d.conn.Close()
			case app.DropFrame, app.NoAction:
				log.Warn().Str("module", "orch").Str("conn", string(d.conn.ID())).Msg("slow connection, frame dropped")
			}
		default:
			log.Debug().Err(err).Str("module", "orch").Str("conn", string(d.conn.ID())).Msg("send failed")
		}
	}
}
