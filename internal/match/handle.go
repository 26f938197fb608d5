package match

import "github.com/google/uuid"

// Handle is the slice of Runtime that internal/registry needs to hold a
// "weak pointer" to a user's current match (spec §4.6): enough to
// resync a reconnecting player or route a disconnect-triggered forfeit,
// without registry depending on the rest of Runtime's surface. *Runtime
// satisfies this structurally.
type Handle interface {
	ID() uint64
	SyncPlayer(userID uuid.UUID, newSink Sink) bool
	Forfeit(userID uuid.UUID)
}
