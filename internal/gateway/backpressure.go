package gateway

import (
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/logging"
)

// handleDrain reports the outbound bytes still buffered for the connection.
// It takes no corrective action.
func (l *Link) handleDrain() {
	if l.State() == StateClosed {
		return
	}

	buffered := l.conn.BufferedAmount()
	l.gw.metrics.ObserveBufferedBytes(buffered)

	logging.LogEvent(l.ctx, l.gw.gate.Events(), "Connection drain",
		zap.Int("buffered_bytes", buffered))
}
