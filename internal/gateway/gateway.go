// Package gateway bridges transport connections to a registry. Every connection
// event (open, message, drain, close) runs to completion on the event loop that
// owns the connection, so per-connection state needs no locking.
package gateway

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/logging"
	"github.com/actual-software/socket-gateway/internal/metrics"
	"github.com/actual-software/socket-gateway/internal/registry"
)

const tracerName = "github.com/actual-software/socket-gateway/internal/gateway"

// ErrStopped is returned by Open once the gateway has been stopped.
var ErrStopped = stderrors.New("gateway stopped")

// Conn is the transport handle the gateway drives. Implementations must be safe
// for concurrent use.
type Conn interface {
	ID() string
	RemoteAddr() string
	// Send queues data without blocking and reports whether it was accepted.
	Send(data []byte) bool
	// BufferedAmount returns the outbound bytes not yet written to the network.
	BufferedAmount() int
	// Close tears the connection down without a closing handshake. The transport
	// then delivers the close event.
	Close()
}

// Options configures a Gateway.
type Options struct {
	Verbosity           logging.Verbosity
	Workers             int
	QueueSize           int
	OnUnexpectedFailure FailurePolicy
	Metrics             *metrics.Registry
	Tracer              trace.Tracer
}

// Gateway owns the event loops and the connection counter.
type Gateway struct {
	registry registry.Registry
	logger   *zap.Logger
	gate     *logging.Gate
	metrics  *metrics.Registry
	tracer   trace.Tracer
	policy   FailurePolicy

	loops    []*eventLoop
	seq      atomic.Uint64
	counter  Counter
	stopped  atomic.Bool
	stopOnce sync.Once
}

// New creates a Gateway dispatching to reg and starts its event loops.
func New(reg registry.Registry, logger *zap.Logger, opts Options) *Gateway {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.InitializeMetricsRegistry()
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	g := &Gateway{
		registry: reg,
		logger:   logger,
		gate:     logging.NewGate(logger, opts.Verbosity),
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		policy:   opts.OnUnexpectedFailure,
		loops:    make([]*eventLoop, opts.Workers),
	}

	for i := range g.loops {
		g.loops[i] = newEventLoop(opts.QueueSize)
	}

	return g
}

// Open registers a new transport connection and posts its open event. The
// returned Link delivers the connection's later events.
func (g *Gateway) Open(conn Conn) (*Link, error) {
	if g.stopped.Load() {
		return nil, ErrStopped
	}

	loop := g.loops[(g.seq.Add(1)-1)%uint64(len(g.loops))]

	ctx := customerrors.EnrichContextWithConnection(context.Background(), conn.ID(), conn.RemoteAddr())
	ctx = logging.ContextWithConnection(ctx, conn.ID(), conn.RemoteAddr())

	link := &Link{
		gw:   g,
		conn: conn,
		loop: loop,
		ctx:  ctx,
	}

	if !loop.post(link.handleOpen) {
		return nil, ErrStopped
	}

	return link, nil
}

// ConnectionCount returns the number of open connections.
func (g *Gateway) ConnectionCount() int64 {
	return g.counter.Load()
}

// Flush blocks until every event posted before the call has been handled.
func (g *Gateway) Flush() {
	for _, loop := range g.loops {
		loop.flush()
	}
}

// Stop refuses new connections, handles every queued event and stops the loops.
// Close events that arrive later run on the transport's goroutine; every other
// late event is dropped.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.stopped.Store(true)

		for _, loop := range g.loops {
			loop.stop()
		}
	})
}
