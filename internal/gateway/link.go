package gateway

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/codec"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/logging"
	"github.com/actual-software/socket-gateway/internal/metrics"
	"github.com/actual-software/socket-gateway/internal/peer"
)

// State is the lifecycle state of a connection.
type State int32

const (
	// StateOpen is the state of a connection without an identity.
	StateOpen State = iota
	// StateIdentified is entered on the first successfully decoded message.
	StateIdentified
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Link is the gateway side of one transport connection. The peer and closing
// fields are only touched from the owning event loop.
type Link struct {
	gw    *Gateway
	conn  Conn
	loop  *eventLoop
	ctx   context.Context
	state atomic.Int32

	peer    *peer.Peer
	closing bool
}

// HandleMessage posts an inbound frame payload.
func (l *Link) HandleMessage(data []byte) {
	l.loop.post(func() { l.handleMessage(data) })
}

// HandleDrain posts a drain signal: the transport flushed outbound data while
// more remained buffered.
func (l *Link) HandleDrain() {
	l.loop.post(l.handleDrain)
}

// HandleClose posts the close event. It must be the last event posted for the connection.
// Once the gateway has stopped, the close is handled on the caller's goroutine after
// the loop has exited, so the registry still sees the disconnect.
func (l *Link) HandleClose() {
	if l.loop.post(l.handleClose) {
		return
	}

	<-l.loop.done
	l.handleClose()
}

// State returns the lifecycle state.
func (l *Link) State() State {
	return State(l.state.Load())
}

func (l *Link) handleOpen() {
	count := l.gw.counter.Inc()
	l.gw.metrics.IncrementConnections()

	logging.LogEvent(l.ctx, l.gw.gate.Events(), "Connection opened",
		zap.Int64("connections", count))
}

func (l *Link) handleMessage(data []byte) {
	if l.State() == StateClosed || l.closing {
		l.gw.metrics.IncrementMessages(metrics.DirectionInbound, "discarded")

		return
	}

	l.gw.metrics.AddBytes(metrics.DirectionInbound, len(data))

	msg, err := codec.Decode(data)
	if err != nil {
		l.gw.metrics.IncrementMessages(metrics.DirectionInbound, "decode_error")
		l.gw.metrics.IncrementDecodeErrors()

		decodeErr := customerrors.WrapDecodeError(l.ctx, err)
		customerrors.RecordError(decodeErr, l.gw.metrics)
		logging.LogError(l.ctx, l.gw.gate.Events(), "Closing connection after undecodable message", decodeErr)

		l.close()

		return
	}

	p := l.bind()

	if l.gw.gate.Tracing() {
		logging.LogEvent(l.ctx, l.gw.gate.Trace(), "Inbound message",
			zap.String("peer_id", p.LogID()),
			zap.Any("message", msg))
	}

	failure := l.gw.dispatch(l.ctx, msg, p)
	if failure == nil {
		l.gw.metrics.IncrementMessages(metrics.DirectionInbound, "ok")

		return
	}

	if failure.IsRejection() {
		l.gw.metrics.IncrementMessages(metrics.DirectionInbound, "rejected")

		rejectErr := customerrors.WrapRejectionError(l.ctx, failure)
		customerrors.RecordError(rejectErr, l.gw.metrics)
		logging.LogError(l.ctx, l.gw.gate.Events(), "Closing connection after registry rejection", rejectErr,
			zap.String("peer_id", p.LogID()),
			zap.String("reason", failure.Reason))

		l.close()

		return
	}

	l.gw.metrics.IncrementMessages(metrics.DirectionInbound, "unexpected")
	l.gw.handleUnexpected(l, p, failure)
}

func (l *Link) handleClose() {
	if l.State() == StateClosed {
		return
	}

	count, ok := l.gw.counter.Dec()
	if ok {
		l.gw.metrics.DecrementConnections()
	} else {
		l.gw.logger.Error("Connection count would go negative",
			logging.WithConnectionContext(l.ctx)...)
	}

	if p := l.peer; p != nil {
		l.peer = nil
		p.Detach()
		l.gw.disconnect(l.ctx, p)
	}

	l.state.Store(int32(StateClosed))

	logging.LogEvent(l.ctx, l.gw.gate.Events(), "Connection closed",
		zap.Int64("connections", count))
}

// close asks the transport to close. Messages already queued for this
// connection are discarded until the close event arrives.
func (l *Link) close() {
	l.closing = true
	l.conn.Close()
}
