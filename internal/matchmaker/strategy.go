package matchmaker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Strategy is one mode's matching policy (spec §4.5, §9 "Polymorphic
// matching strategies": a capability set, not an inheritance
// hierarchy). Enqueue may itself produce proposals (Casual-N resolves
// immediately); Tick drives time-based relaxation (Ranked-2 buckets).
type Strategy interface {
	Enqueue(e Entry) []Proposal
	Cancel(userID uuid.UUID) bool
	Tick(now time.Time) []Proposal
}

// CasualFIFO is the Casual-N strategy: a FIFO deque with a lookup set,
// popping N entries as soon as N are queued (spec §4.5 "Casual-N").
type CasualFIFO struct {
	N    int
	mode uint8

	mu      sync.Mutex
	deque   []Entry
	present map[uuid.UUID]bool
}

// NewCasualFIFO builds a Casual-N strategy for the given mode byte.
func NewCasualFIFO(mode uint8, n int) *CasualFIFO {
	return &CasualFIFO{
		N: n, mode: mode,
		present: make(map[uuid.UUID]bool),
	}
}

func (s *CasualFIFO) Enqueue(e Entry) []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.present[e.UserID] {
		return nil
	}
	s.present[e.UserID] = true
	s.deque = append(s.deque, e)

	if len(s.deque) < s.N {
		return nil
	}

	group := append([]Entry(nil), s.deque[:s.N]...)
	s.deque = s.deque[s.N:]
	for _, g := range group {
		delete(s.present, g.UserID)
	}
	return []Proposal{{Mode: s.mode, Entries: group}}
}

func (s *CasualFIFO) Cancel(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.present[userID] {
		return false
	}
	delete(s.present, userID)
	for i, e := range s.deque {
		if e.UserID == userID {
			s.deque = append(s.deque[:i], s.deque[i+1:]...)
			break
		}
	}
	return true
}

// Tick is a no-op for Casual-N: matches resolve synchronously on
// Enqueue, there is nothing to relax over time.
func (s *CasualFIFO) Tick(time.Time) []Proposal { return nil }
