package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/gateway"
)

// ClientConnection is one upgraded client. It implements gateway.Conn.
type ClientConnection struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	config     *Config
	logger     *zap.Logger

	link *gateway.Link

	writeCh    chan []byte
	buffered   atomic.Int64
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

func newClientConnection(id string, conn *websocket.Conn, cfg *Config, logger *zap.Logger) *ClientConnection {
	return &ClientConnection{
		id:         id,
		remoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		config:     cfg,
		logger:     logger,
		writeCh:    make(chan []byte, cfg.SendQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *ClientConnection) ID() string {
	return c.id
}

// RemoteAddr returns the client address.
func (c *ClientConnection) RemoteAddr() string {
	return c.remoteAddr
}

// Send queues data for the writer. Once more than MaxBackpressure bytes are
// buffered, or the queue is full, sends are dropped.
func (c *ClientConnection) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	if c.buffered.Load() > int64(c.config.MaxBackpressure) {
		return false
	}

	c.buffered.Add(int64(len(data)))

	select {
	case c.writeCh <- data:
		return true
	default:
		c.buffered.Add(-int64(len(data)))

		return false
	}
}

// BufferedAmount returns the bytes queued but not yet written.
func (c *ClientConnection) BufferedAmount() int {
	return int(c.buffered.Load())
}

// Close drops the connection without a closing handshake.
func (c *ClientConnection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Error closing connection", zap.Error(err))
		}
	})
}

func (c *ClientConnection) renewReadDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(c.config.IdleTimeout))
}

// readPump delivers inbound frames to the gateway. The close event is posted
// after the writer has exited so no drain can follow it.
func (c *ClientConnection) readPump() {
	defer func() {
		c.Close()
		<-c.writerDone
		c.link.HandleClose()
	}()

	c.conn.SetReadLimit(c.config.MaxPayloadLength)

	if err := c.renewReadDeadline(); err != nil {
		c.logger.Warn("Failed to set read deadline", zap.Error(err))
	}

	c.conn.SetPongHandler(func(string) error {
		return c.renewReadDeadline()
	})

	c.conn.SetPingHandler(func(appData string) error {
		if err := c.renewReadDeadline(); err != nil {
			return err
		}

		err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.config.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}

		return err
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", zap.Error(err))
			}

			return
		}

		if err := c.renewReadDeadline(); err != nil {
			c.logger.Warn("Failed to set read deadline", zap.Error(err))
		}

		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			c.link.HandleMessage(data)
		}
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *ClientConnection) writePump() {
	defer close(c.writerDone)

	ticker := time.NewTicker(c.config.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
				c.logger.Warn("Failed to set write deadline", zap.Error(err))
			}

			err := c.conn.WriteMessage(websocket.TextMessage, data)
			remaining := c.buffered.Add(-int64(len(data)))

			if err != nil {
				c.logger.Debug("Write error", zap.Error(err))
				c.Close()

				return
			}

			if remaining > 0 {
				c.link.HandleDrain()
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("Ping error", zap.Error(err))
				c.Close()

				return
			}
		}
	}
}
