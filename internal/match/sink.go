package match

import "github.com/tankwar/server/internal/wire"

// Sink is the per-player delivery handle a MatchRuntime holds instead
// of a concrete session type, so the match package never imports
// internal/session. Session implements this directly; tests use a
// recording fake.
type Sink interface {
	Deliver(kind wire.ServerKind, payload []byte)
}
