// Package peer defines the per-connection identity shared between the gateway and the registry.
package peer

import (
	"sync"
	"sync/atomic"

	"github.com/actual-software/socket-gateway/internal/codec"
)

// unassigned is logged in place of an identifier the registry has not set yet.
const unassigned = "-"

// SendFunc serializes msg and queues it on the owning connection without blocking.
// It reports whether the message was accepted by the transport.
type SendFunc func(msg codec.Message) bool

// Peer is created by the gateway on the first decoded message of a connection and
// handed to the registry on every dispatch and once more on disconnect.
type Peer struct {
	connectionID string
	send         SendFunc
	detached     atomic.Bool

	mu    sync.RWMutex
	id    string
	state interface{}
}

// New creates a Peer bound to connectionID.
func New(connectionID string, send SendFunc) *Peer {
	return &Peer{
		connectionID: connectionID,
		send:         send,
	}
}

// ConnectionID returns the gateway id of the owning connection.
func (p *Peer) ConnectionID() string {
	return p.connectionID
}

// ID returns the registry-assigned identifier.
func (p *Peer) ID() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.id, p.id != ""
}

// SetID assigns the identifier. The registry may call it at any time.
func (p *Peer) SetID(id string) {
	p.mu.Lock()
	p.id = id
	p.mu.Unlock()
}

// LogID returns the identifier, or a placeholder while it is unassigned.
func (p *Peer) LogID() string {
	if id, ok := p.ID(); ok {
		return id
	}

	return unassigned
}

// State returns the registry-owned value attached to this peer.
func (p *Peer) State() interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.state
}

// SetState attaches a registry-owned value to this peer.
func (p *Peer) SetState(state interface{}) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Send queues msg on the owning connection. It returns false once the peer has
// been detached from its connection or when the transport refused the message.
func (p *Peer) Send(msg codec.Message) bool {
	if p.detached.Load() || p.send == nil {
		return false
	}

	return p.send(msg)
}

// Detach severs the send capability. Called by the gateway when the connection closes.
func (p *Peer) Detach() {
	p.detached.Store(true)
}

// Detached reports whether the owning connection has closed.
func (p *Peer) Detached() bool {
	return p.detached.Load()
}
