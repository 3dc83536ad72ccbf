// Package registry defines the contract between the gateway and the stateful
// session-processing core that interprets decoded messages.
package registry

import (
	"context"
	"fmt"

	"github.com/actual-software/socket-gateway/internal/codec"
	"github.com/actual-software/socket-gateway/internal/peer"
)

// Registry owns the application protocol. Implementations are called from the
// gateway event loops: with a single worker calls never overlap, with several
// workers the implementation must be safe for concurrent use.
type Registry interface {
	// ProcessMessage handles one decoded message from p. A nil result means success.
	ProcessMessage(ctx context.Context, msg codec.Message, p *peer.Peer) *Failure

	// DisconnectPeer is called exactly once for every peer the gateway created,
	// after its connection closed.
	DisconnectPeer(ctx context.Context, p *peer.Peer)
}

// StatsProvider is implemented by registries that expose diagnostics.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Kind tags a Failure.
type Kind int

const (
	// KindRejection is an expected protocol-level refusal; the gateway closes the connection.
	KindRejection Kind = iota + 1
	// KindUnexpected is an internal fault the gateway does not classify as connection-safe.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindRejection:
		return "rejection"
	case KindUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is the result of a failed ProcessMessage call.
type Failure struct {
	Kind   Kind
	Reason string
	Err    error
}

// Reject creates a KindRejection failure.
func Reject(reason string) *Failure {
	return &Failure{Kind: KindRejection, Reason: reason}
}

// Rejectf creates a KindRejection failure with a formatted reason.
func Rejectf(format string, args ...interface{}) *Failure {
	return Reject(fmt.Sprintf(format, args...))
}

// Unexpected creates a KindUnexpected failure wrapping err.
func Unexpected(err error) *Failure {
	reason := "internal error"
	if err != nil {
		reason = err.Error()
	}

	return &Failure{Kind: KindUnexpected, Reason: reason, Err: err}
}

func (f *Failure) Error() string {
	return f.Kind.String() + ": " + f.Reason
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsRejection reports whether f is a recognized rejection.
func (f *Failure) IsRejection() bool {
	return f != nil && f.Kind == KindRejection
}
