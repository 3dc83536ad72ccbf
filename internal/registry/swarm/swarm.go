// Package swarm implements the built-in swarm membership registry: peers announce
// the swarms they take part in and scrape swarm populations.
package swarm

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/auth"
	"github.com/actual-software/socket-gateway/internal/codec"
	"github.com/actual-software/socket-gateway/internal/ids"
	"github.com/actual-software/socket-gateway/internal/peer"
	"github.com/actual-software/socket-gateway/internal/registry"
	"github.com/actual-software/socket-gateway/internal/registry/store"
)

// Actions and events understood by the registry.
const (
	ActionAnnounce = "announce"
	ActionScrape   = "scrape"

	EventStarted   = "started"
	EventCompleted = "completed"
	EventStopped   = "stopped"
)

// Rejection reasons.
const (
	ReasonMissingAction   = "missing action"
	ReasonUnknownAction   = "unknown action"
	ReasonMissingInfoHash = "missing info_hash"
	ReasonUnknownEvent    = "unknown event"
	ReasonPeerIDChanged   = "peer_id changed"
	ReasonUnauthorized    = "unauthorized"
)

// peerState is attached to each peer through peer.SetState. It is only touched
// from the event loop that owns the peer's connection.
type peerState struct {
	swarms map[string]struct{}
	claims *auth.Claims
}

// Registry is the swarm registry.
type Registry struct {
	store     store.Store
	tokens    auth.TokenValidator
	interval  time.Duration
	logger    *zap.Logger
	announces atomic.Int64
	scrapes   atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithTokenValidator requires a valid token on the first announce of every peer.
func WithTokenValidator(v auth.TokenValidator) Option {
	return func(r *Registry) {
		r.tokens = v
	}
}

// New creates a registry backed by s. interval is returned to peers as the
// suggested announce period.
func New(s store.Store, interval time.Duration, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:    s,
		interval: interval,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ProcessMessage implements registry.Registry.
func (r *Registry) ProcessMessage(ctx context.Context, msg codec.Message, p *peer.Peer) *registry.Failure {
	action, ok := msg.String("action")
	if !ok || action == "" {
		return registry.Reject(ReasonMissingAction)
	}

	switch action {
	case ActionAnnounce:
		return r.announce(ctx, msg, p)
	case ActionScrape:
		return r.scrape(ctx, msg, p)
	default:
		return registry.Rejectf("%s %q", ReasonUnknownAction, action)
	}
}

func (r *Registry) announce(ctx context.Context, msg codec.Message, p *peer.Peer) *registry.Failure {
	r.announces.Add(1)

	infoHash, ok := msg.String("info_hash")
	if !ok || infoHash == "" {
		return registry.Reject(ReasonMissingInfoHash)
	}

	event, _ := msg.String("event")
	switch event {
	case "", EventStarted, EventCompleted, EventStopped:
	default:
		return registry.Rejectf("%s %q", ReasonUnknownEvent, event)
	}

	state := stateOf(p)

	if failure := r.authorize(msg, state, infoHash); failure != nil {
		return failure
	}

	if failure := bindPeerID(msg, p); failure != nil {
		return failure
	}

	peerID, _ := p.ID()

	if event == EventStopped {
		if err := r.store.Leave(ctx, infoHash, memberOf(p, peerID)); err != nil {
			return registry.Unexpected(err)
		}

		delete(state.swarms, infoHash)

		return nil
	}

	if err := r.store.Join(ctx, infoHash, memberOf(p, peerID), isComplete(msg, event)); err != nil {
		return registry.Unexpected(err)
	}

	state.swarms[infoHash] = struct{}{}

	counts, err := r.store.Counts(ctx, infoHash)
	if err != nil {
		return registry.Unexpected(err)
	}

	p.Send(codec.Message{
		"action":     ActionAnnounce,
		"info_hash":  infoHash,
		"peer_id":    peerID,
		"interval":   int(r.interval / time.Second),
		"complete":   counts.Complete,
		"incomplete": counts.Incomplete,
	})

	return nil
}

func (r *Registry) scrape(ctx context.Context, msg codec.Message, p *peer.Peer) *registry.Failure {
	r.scrapes.Add(1)

	infoHash, ok := msg.String("info_hash")
	if !ok || infoHash == "" {
		return registry.Reject(ReasonMissingInfoHash)
	}

	counts, err := r.store.Counts(ctx, infoHash)
	if err != nil {
		return registry.Unexpected(err)
	}

	p.Send(codec.Message{
		"action":     ActionScrape,
		"info_hash":  infoHash,
		"complete":   counts.Complete,
		"incomplete": counts.Incomplete,
	})

	return nil
}

// authorize validates the token on the first announce and checks the swarm
// against the claims on every announce.
func (r *Registry) authorize(msg codec.Message, state *peerState, infoHash string) *registry.Failure {
	if r.tokens == nil {
		return nil
	}

	if state.claims == nil {
		token, _ := msg.String("token")

		claims, err := r.tokens.ValidateToken(token)
		if err != nil {
			r.logger.Debug("Announce token refused", zap.Error(err))

			return registry.Reject(ReasonUnauthorized)
		}

		state.claims = claims
	}

	if !state.claims.CanJoin(infoHash) {
		return registry.Rejectf("%s for swarm %s", ReasonUnauthorized, infoHash)
	}

	return nil
}

// bindPeerID assigns the announced peer id on first use. A peer that announces
// without one gets a generated id.
func bindPeerID(msg codec.Message, p *peer.Peer) *registry.Failure {
	announced, _ := msg.String("peer_id")

	current, assigned := p.ID()
	if !assigned {
		if announced == "" {
			announced = ids.NewPeerID()
		}

		p.SetID(announced)

		return nil
	}

	if announced != "" && announced != current {
		return registry.Reject(ReasonPeerIDChanged)
	}

	return nil
}

func isComplete(msg codec.Message, event string) bool {
	if event == EventCompleted {
		return true
	}

	left, ok := msg.Number("left")

	return ok && left == 0
}

// memberOf is the store member for a peer. Scoping it to the connection keeps two
// connections announcing the same peer_id from removing each other's entries.
func memberOf(p *peer.Peer, peerID string) string {
	return p.ConnectionID() + "/" + peerID
}

func stateOf(p *peer.Peer) *peerState {
	if state, ok := p.State().(*peerState); ok {
		return state
	}

	state := &peerState{swarms: make(map[string]struct{})}
	p.SetState(state)

	return state
}

// DisconnectPeer implements registry.Registry by leaving every swarm the peer joined.
func (r *Registry) DisconnectPeer(ctx context.Context, p *peer.Peer) {
	state, ok := p.State().(*peerState)
	if !ok {
		return
	}

	peerID, _ := p.ID()

	member := memberOf(p, peerID)

	for infoHash := range state.swarms {
		if err := r.store.Leave(ctx, infoHash, member); err != nil {
			r.logger.Error("Failed to remove disconnected peer from swarm",
				zap.String("peer_id", peerID),
				zap.String("info_hash", infoHash),
				zap.Error(err))
		}
	}

	state.swarms = make(map[string]struct{})
}

// Stats implements registry.StatsProvider.
func (r *Registry) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"swarms":    stats.Swarms,
		"peers":     stats.Peers,
		"announces": r.announces.Load(),
		"scrapes":   r.scrapes.Load(),
	}, nil
}
