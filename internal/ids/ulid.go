// Package ids generates identifiers for connections and registry peers.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewConnectionID returns a time-sortable ULID encoded as a 26-character string.
func NewConnectionID() string {
	return next()
}

// NewPeerID returns an identifier for a peer that announced without one.
func NewPeerID() string {
	return next()
}

func next() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
