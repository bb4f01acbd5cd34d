package app

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type binding struct {
	ID   domain.UserID
	Conn core.SignalConnection
}

// RegisterResult reports which identifiers lost their binding as a side
// effect of a successful Register. Their call sessions are no longer valid.
type RegisterResult struct {
	// Renamed is the identifier this connection held before, if different.
	Renamed domain.UserID
	// TookOver is set when id was still bound to a closed connection.
	TookOver bool
	// Unchanged is set when conn already held id; nothing was mutated.
	Unchanged bool
}

// Registry is the live directory: identifier -> connection plus its reverse
// index, and the set of every open connection for broadcasts.
type Registry struct {
	mu       sync.RWMutex
	byID     map[domain.UserID]*binding
	byConn   map[core.ConnID]*binding
	attached map[core.ConnID]core.SignalConnection
	version  uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[domain.UserID]*binding),
		byConn:   make(map[core.ConnID]*binding),
		attached: make(map[core.ConnID]core.SignalConnection),
	}
}

// Attach records an open, still anonymous connection.
func (r *Registry) Attach(conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[conn.ID()] = conn
	log.Debug().Str("module", "app.registry").Str("conn", string(conn.ID())).Msg("attached connection")
}

// Register binds id to conn. It fails with domain.ErrTaken when id is bound
// to a different connection that is still open.
func (r *Registry) Register(id domain.UserID, conn core.SignalConnection) (RegisterResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res RegisterResult
	if cur, ok := r.byID[id]; ok {
		if cur.Conn.ID() == conn.ID() {
			res.Unchanged = true
			return res, nil
		}
		if !cur.Conn.IsClosed() {
			return res, fmt.Errorf("register %q: %w", id, domain.ErrTaken)
		}
		delete(r.byConn, cur.Conn.ID())
		delete(r.attached, cur.Conn.ID())
		res.TookOver = true
		log.Info().Str("module", "app.registry").Str("id", string(id)).Str("stale_conn", string(cur.Conn.ID())).Msg("evicted stale binding")
	}
	if prev, ok := r.byConn[conn.ID()]; ok {
		delete(r.byID, prev.ID)
		res.Renamed = prev.ID
	}

	b := &binding{ID: id, Conn: conn}
	r.byID[id] = b
	r.byConn[conn.ID()] = b
	r.attached[conn.ID()] = conn
	r.version++
	log.Info().Str("module", "app.registry").Str("id", string(id)).Str("conn", string(conn.ID())).Msg("registered")
	return res, nil
}

// Unregister removes the binding held by conn, if any, and forgets conn.
func (r *Registry) Unregister(conn core.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attached, conn)
	b, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	if cur, ok := r.byID[b.ID]; ok && cur == b {
		delete(r.byID, b.ID)
	}
	r.version++
	log.Info().Str("module", "app.registry").Str("id", string(b.ID)).Str("conn", string(conn)).Msg("unregistered")
	return b.ID, true
}

// Resolve returns the open connection bound to id. A binding whose
// connection is already closed resolves as domain.ErrNotFound.
func (r *Registry) Resolve(id domain.UserID) (core.SignalConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok || b.Conn.IsClosed() {
		return nil, fmt.Errorf("resolve %q: %w", id, domain.ErrNotFound)
	}
	return b.Conn, nil
}

// IdentifierOf is the reverse lookup.
func (r *Registry) IdentifierOf(conn core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	return b.ID, true
}

// Snapshot returns the sorted identifiers bound to open connections and the
// directory version they belong to.
func (r *Registry) Snapshot() ([]domain.UserID, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.byID))
	for id, b := range r.byID {
		if !b.Conn.IsClosed() {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, r.version
}

// Connections returns every attached connection, registered or not.
func (r *Registry) Connections() []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.attached))
	for _, c := range r.attached {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
