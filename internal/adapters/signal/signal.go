package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/core"
)

type Options struct {
	ReadLimit   int64
	PingPeriod  time.Duration
	PongWait    time.Duration
	WriteWait   time.Duration
	SendBuffer  int
	RateLimit   float64
	RateBurst   int
	CheckOrigin func(r *http.Request) bool
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return o
}

// SignalWSController upgrades HTTP requests to signaling connections and
// pumps their frames through the orchestrator.
type SignalWSController struct {
	Orch *orch.Orchestrator

	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	return &SignalWSController{
		Orch: o,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

type wsSignalConn struct {
	id     core.ConnID
	client string
	conn   *websocket.Conn
	send   chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) ID() core.ConnID { return c.id }

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request. client is an opaque browser token used
// only for log correlation. The connection lives until the peer goes away,
// it is kicked, or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, w http.ResponseWriter, r *http.Request, client string) {
	ws, err := ctl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsSignalConn{
		id:     core.ConnID(uuid.NewString()),
		client: client,
		conn:   ws,
		send:   make(chan core.Frame, ctl.opts.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("client", client).Str("remote", r.RemoteAddr).Msg("new WS connection")

	ctl.Orch.OnConnect(conn)
	stop := context.AfterFunc(ctx, conn.Close)

	go ctl.writePump(conn)
	go func() {
		defer stop()
		ctl.readPump(conn)
	}()
}
