package app

import (
	"sync"

	"github.com/dkeye/callrelay/internal/core"
)

type fakeConn struct {
	id     core.ConnID
	mu     sync.Mutex
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: core.ConnID(id)} }

func (c *fakeConn) ID() core.ConnID { return c.id }

func (c *fakeConn) TrySend(core.Frame) error {
	if c.IsClosed() {
		return core.ErrClosed
	}
	return nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
