package orch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/observability"
	"github.com/rs/zerolog/log"
)

// Route handles one inbound frame from conn.
func (o *Orchestrator) Route(conn core.SignalConnection, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn.ID())).Msg("bad json")
		observability.RecordMessage("invalid", "bad_payload")
		o.flush(notice(conn, "", domain.ErrBadPayload))
		return
	}
	t := core.Canonical(env.Type)

	var box outbox
	switch t {
	case core.TypeRegister:
		box = o.register(conn, env)
	case core.TypePing:
		box.add(conn, core.Outbound{Type: core.TypePong})
	case core.TypeWhoAmI:
		id, _ := o.Registry.IdentifierOf(conn.ID())
		box.add(conn, core.Outbound{Type: core.TypeWhoAmI, Identifier: id})
	case core.TypeCallUser, core.TypeAnswerCall, core.TypeCallResponse, core.TypeRejectCall,
		core.TypeICECandidate, core.TypeRenegotiateOffer, core.TypeRenegotiateAnswer, core.TypeEndCall:
		box = o.relay(conn, t, env)
	default:
		log.Warn().Str("module", "orch").Str("type", env.Type).Msg("unknown signal")
		observability.RecordMessage("unknown", "unknown_type")
		box = notice(conn, env.Type, domain.ErrUnknownType)
	}
	o.flush(box)
}

func (o *Orchestrator) register(conn core.SignalConnection, env core.Envelope) outbox {
	var box outbox
	id, err := domain.NewUserID(env.Identifier, o.maxIDLen)
	if err != nil {
		observability.RecordMessage(core.TypeRegister, domain.Code(err))
		return notice(conn, core.TypeRegister, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	res, err := o.Registry.Register(id, conn)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("conn", string(conn.ID())).Msg("register rejected")
		observability.RecordMessage(core.TypeRegister, domain.Code(err))
		box.add(conn, core.Outbound{
			Type:       core.TypeError,
			Code:       domain.Code(err),
			Message:    err.Error(),
			Identifier: id,
			Ref:        core.TypeRegister,
		})
		return box
	}
	if res.Renamed != "" {
		o.endCallsOfLocked(&box, res.Renamed, "unregistered")
	}
	if res.TookOver {
		o.endCallsOfLocked(&box, id, "disconnected")
	}
	box.add(conn, core.Outbound{Type: core.TypeRegistered, Identifier: id})
	if res.Unchanged {
		observability.RecordMessage(core.TypeRegister, "ok")
		return box
	}
	o.broadcastUsersLocked(&box)
	o.updateGaugesLocked()
	observability.RecordMessage(core.TypeRegister, "ok")
	return box
}

// relay runs resolve -> validate -> transition -> forward for every
// call-scoped message.
func (o *Orchestrator) relay(conn core.SignalConnection, t string, env core.Envelope) outbox {
	if t == core.TypeCallResponse {
		if env.Accepted == nil {
			observability.RecordMessage(t, "bad_payload")
			return notice(conn, t, fmt.Errorf("call-response without accepted: %w", domain.ErrBadPayload))
		}
		t = core.TypeRejectCall
		if *env.Accepted {
			t = core.TypeAnswerCall
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	from, ok := o.Registry.IdentifierOf(conn.ID())
	if !ok {
		observability.RecordMessage(t, "not_registered")
		return notice(conn, t, domain.ErrNotRegistered)
	}
	if env.To == "" {
		observability.RecordMessage(t, "bad_payload")
		return notice(conn, t, fmt.Errorf("missing recipient: %w", domain.ErrBadPayload))
	}
	to := domain.UserID(env.To)

	var box outbox
	target, err := o.Registry.Resolve(to)
	if err != nil {
		kind := core.TypeNoRecipient
		if t == core.TypeCallUser {
			kind = core.TypeUserUnavailable
		}
		log.Info().Str("module", "orch").Str("from", string(from)).Str("to", string(to)).Str("type", t).Msg("recipient unavailable")
		observability.RecordMessage(t, "no_recipient")
		box.add(conn, core.Outbound{Type: kind, To: to})
		return box
	}

	if err := o.validatePayload(t, env); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("from", string(from)).Str("type", t).Msg("payload rejected")
		observability.RecordMessage(t, domain.Code(err))
		return notice(conn, t, err)
	}

	out, err := o.transitionLocked(t, from, to, env)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("from", string(from)).Str("to", string(to)).Str("type", t).Msg("dropped")
		observability.RecordMessage(t, domain.Code(err))
		return notice(conn, t, err)
	}
	box.add(target, out)
	o.updateGaugesLocked()
	observability.RecordMessage(t, "ok")
	return box
}

// transitionLocked advances the call table for (from, to) and returns the
// message to forward to the recipient.
func (o *Orchestrator) transitionLocked(t string, from, to domain.UserID, env core.Envelope) (core.Outbound, error) {
	switch t {
	case core.TypeCallUser:
		if _, err := o.Calls.Call(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeIncomingCall, From: from, Offer: env.Offer}, nil
	case core.TypeAnswerCall:
		if _, err := o.Calls.Answer(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeCallAnswered, From: from, Answer: env.Answer}, nil
	case core.TypeRejectCall:
		if _, err := o.Calls.Reject(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeCallRejected, From: from}, nil
	case core.TypeICECandidate:
		if err := o.Calls.Candidate(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeICECandidate, From: from, Candidate: env.Candidate}, nil
	case core.TypeRenegotiateOffer:
		if err := o.Calls.RenegotiateOffer(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeRenegotiateOffer, From: from, Offer: env.Offer}, nil
	case core.TypeRenegotiateAnswer:
		if err := o.Calls.RenegotiateAnswer(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeRenegotiateAnswer, From: from, Answer: env.Answer}, nil
	case core.TypeEndCall:
		if _, err := o.Calls.End(from, to); err != nil {
			return core.Outbound{}, err
		}
		return core.Outbound{Type: core.TypeCallEnded, From: from}, nil
	}
	return core.Outbound{}, fmt.Errorf("type %q: %w", t, domain.ErrUnknownType)
}

func (o *Orchestrator) validatePayload(t string, env core.Envelope) error {
	if o.Validator == nil {
		return nil
	}
	var err error
	switch t {
	case core.TypeCallUser, core.TypeRenegotiateOffer:
		err = o.Validator.ValidateDescription(env.Offer)
	case core.TypeAnswerCall, core.TypeRenegotiateAnswer:
		err = o.Validator.ValidateDescription(env.Answer)
	case core.TypeICECandidate:
		err = o.Validator.ValidateCandidate(env.Candidate)
	}
	if err != nil && !errors.Is(err, domain.ErrBadPayload) {
		err = fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
	}
	return err
}

func notice(conn core.SignalConnection, ref string, err error) outbox {
	var box outbox
	box.add(conn, core.Outbound{
		Type:    core.TypeError,
		Code:    domain.Code(err),
		Message: err.Error(),
		Ref:     ref,
	})
	return box
}
