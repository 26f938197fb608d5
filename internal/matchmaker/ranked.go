package matchmaker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ranked-2 bucket tuning (spec §9 Open Question: "treat listed values
// as defaults").
const (
	RankedNumBuckets         = 10
	RankedBucketWidth        = 100 // elo width per bucket
	RankedOverflowBucket     = RankedNumBuckets
	RankedMaxBucketsDiff     = 5
	RankedBucketIncrement    = 10 * time.Second
)

// RankedBucketed is the Ranked-2 strategy: elo buckets with tick-driven
// radius relaxation (spec §4.5 "Ranked-2").
type RankedBucketed struct {
	mode uint8

	maxBucketsDiff  int
	bucketIncrement time.Duration

	mu      sync.Mutex
	buckets map[int][]Entry
	index   map[uuid.UUID]int // userID -> bucket
}

// NewRankedBucketed builds a Ranked-2 strategy for the given mode byte,
// using the package defaults for bucket-radius relaxation.
func NewRankedBucketed(mode uint8) *RankedBucketed {
	return &RankedBucketed{
		mode:            mode,
		maxBucketsDiff:  RankedMaxBucketsDiff,
		bucketIncrement: RankedBucketIncrement,
		buckets:         make(map[int][]Entry),
		index:           make(map[uuid.UUID]int),
	}
}

// SetTuning overrides the bucket-radius relaxation parameters (config
// §"ranked_max_buckets_diff"/"ranked_bucket_increment").
func (s *RankedBucketed) SetTuning(maxBucketsDiff int, bucketIncrement time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBucketsDiff = maxBucketsDiff
	s.bucketIncrement = bucketIncrement
}

func bucketFor(elo int32) int {
	b := int(elo) / RankedBucketWidth
	if b < 0 {
		b = 0
	}
	if b >= RankedNumBuckets {
		b = RankedOverflowBucket
	}
	return b
}

func (s *RankedBucketed) Enqueue(e Entry) []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, queued := s.index[e.UserID]; queued {
		return nil
	}
	b := bucketFor(e.Elo)
	s.buckets[b] = append(s.buckets[b], e)
	s.index[e.UserID] = b
	return nil
}

func (s *RankedBucketed) Cancel(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.index[userID]
	if !ok {
		return false
	}
	delete(s.index, userID)
	entries := s.buckets[b]
	for i, e := range entries {
		if e.UserID == userID {
			s.buckets[b] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return true
}

// popFront removes and returns the oldest (FIFO) entry of bucket b.
func (s *RankedBucketed) popFront(b int) (Entry, bool) {
	entries := s.buckets[b]
	if len(entries) == 0 {
		return Entry{}, false
	}
	e := entries[0]
	s.buckets[b] = entries[1:]
	delete(s.index, e.UserID)
	return e, true
}

// Tick processes the highest bucket first, pairing same-bucket entries
// immediately and relaxing the search radius for lone entries by how
// long they have waited (spec §4.5 "Ranked-2").
func (s *RankedBucketed) Tick(now time.Time) []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var proposals []Proposal
	for b := RankedOverflowBucket; b >= 0; b-- {
		for len(s.buckets[b]) >= 2 {
			a, _ := s.popFront(b)
			c, _ := s.popFront(b)
			proposals = append(proposals, Proposal{Mode: s.mode, Entries: []Entry{a, c}})
		}
		if len(s.buckets[b]) != 1 {
			continue
		}

		lonely := s.buckets[b][0]
		waited := now.Sub(lonely.EnqueuedAt)
		delta := int(waited / s.bucketIncrement)
		if delta > s.maxBucketsDiff {
			delta = s.maxBucketsDiff
		}

		for r := 1; r <= delta; r++ {
			paired := false
			for _, cand := range []int{b - r, b + r} {
				if cand < 0 || cand > RankedOverflowBucket {
					continue
				}
				if len(s.buckets[cand]) == 0 {
					continue
				}
				partner, _ := s.popFront(cand)
				s.popFront(b) // remove the lonely entry itself
				proposals = append(proposals, Proposal{Mode: s.mode, Entries: []Entry{lonely, partner}})
				paired = true
				break
			}
			if paired {
				break
			}
		}
	}
	return proposals
}
