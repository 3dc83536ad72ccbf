package gateway

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens to a connection whose message made the
// registry fail unexpectedly.
type FailurePolicy int

const (
	// FailureClose logs the failure and closes the connection.
	FailureClose FailurePolicy = iota
	// FailureKeepOpen logs the failure and leaves the connection open.
	FailureKeepOpen
	// FailurePropagate panics from the event loop so process supervision takes over.
	FailurePropagate
)

// ParseFailurePolicy parses "close", "keep_open" or "propagate". Empty means close.
func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "close":
		return FailureClose, nil
	case "keep_open":
		return FailureKeepOpen, nil
	case "propagate":
		return FailurePropagate, nil
	default:
		return FailureClose, fmt.Errorf("unknown failure policy %q (want close, keep_open or propagate)", value)
	}
}

func (p FailurePolicy) String() string {
	switch p {
	case FailureClose:
		return "close"
	case FailureKeepOpen:
		return "keep_open"
	case FailurePropagate:
		return "propagate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}
