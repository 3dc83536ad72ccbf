package gateway

import (
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/codec"
	"github.com/actual-software/socket-gateway/internal/logging"
	"github.com/actual-software/socket-gateway/internal/metrics"
	"github.com/actual-software/socket-gateway/internal/peer"
)

// bind returns the connection's peer, creating it on first use.
func (l *Link) bind() *peer.Peer {
	if l.peer != nil {
		return l.peer
	}

	var p *peer.Peer
	p = peer.New(l.conn.ID(), func(msg codec.Message) bool {
		return l.send(p, msg)
	})

	l.peer = p
	l.state.Store(int32(StateIdentified))
	l.gw.metrics.IncrementPeersBound()

	return p
}

// send encodes msg and queues it on the connection. The peer id is read at call
// time since the registry assigns it after the peer was created.
func (l *Link) send(p *peer.Peer, msg codec.Message) bool {
	data, err := codec.Encode(msg)
	if err != nil {
		l.gw.metrics.IncrementMessages(metrics.DirectionOutbound, "encode_error")
		logging.LogError(l.ctx, l.gw.logger, "Failed to encode outbound message", err,
			zap.String("peer_id", p.LogID()))

		return false
	}

	if l.gw.gate.Tracing() {
		logging.LogEvent(l.ctx, l.gw.gate.Trace(), "Outbound message",
			zap.String("peer_id", p.LogID()),
			zap.ByteString("message", data))
	}

	if !l.conn.Send(data) {
		l.gw.metrics.IncrementMessages(metrics.DirectionOutbound, "dropped")
		l.gw.metrics.IncrementSendsDropped()
		logging.LogEvent(l.ctx, l.gw.gate.Trace(), "Outbound message dropped",
			zap.String("peer_id", p.LogID()),
			zap.Int("buffered_bytes", l.conn.BufferedAmount()))

		return false
	}

	l.gw.metrics.IncrementMessages(metrics.DirectionOutbound, "sent")
	l.gw.metrics.AddBytes(metrics.DirectionOutbound, len(data))

	return true
}
