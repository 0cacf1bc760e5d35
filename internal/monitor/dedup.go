package monitor

import (
	"log/slog"
	"sync"
)

// DefaultDedupCap bounds the per-conversation dispatched set. Long sessions
// would otherwise grow it without limit.
const DefaultDedupCap = 10000

// DedupStore tracks, per conversation, the fingerprints already handed to
// delivery. Admit returns true exactly once per (conversation, fingerprint)
// pair within a session.
//
// When a conversation's set exceeds the cap, the oldest half by insertion
// order is evicted. A fingerprint evicted this way could in principle be
// re-admitted if the source reflects a very old message again; that accuracy
// loss is the accepted price of bounded memory.
//
// Each conversation's watcher is the only writer for its own entries, but a
// mutex guards the map because eviction sweeps and stats run on other
// goroutines.
type DedupStore struct {
	mu    sync.Mutex
	cap   int
	convs map[string]*dispatchedSet
}

type dispatchedSet struct {
	order  []string
	member map[string]struct{}
}

// NewDedupStore creates a DedupStore with the given per-conversation cap.
// A cap <= 0 uses DefaultDedupCap.
func NewDedupStore(capacity int) *DedupStore {
	if capacity <= 0 {
		capacity = DefaultDedupCap
	}
	return &DedupStore{cap: capacity, convs: make(map[string]*dispatchedSet)}
}

// Admit records fp for conversation and reports whether it was new. The
// check-and-record is atomic, so two callers can never both see true for the
// same pair.
func (d *DedupStore) Admit(conversation, fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.convs[conversation]
	if !ok {
		set = &dispatchedSet{member: make(map[string]struct{})}
		d.convs[conversation] = set
	}
	if _, seen := set.member[fp]; seen {
		return false
	}
	set.member[fp] = struct{}{}
	set.order = append(set.order, fp)

	if len(set.order) > d.cap {
		evictOldestHalf(conversation, set)
	}
	return true
}

func evictOldestHalf(conversation string, set *dispatchedSet) {
	half := len(set.order) / 2
	for _, old := range set.order[:half] {
		delete(set.member, old)
	}
	set.order = append([]string(nil), set.order[half:]...)
	slog.Debug("dedup store evicted oldest half", "conversation", conversation, "evicted", half, "remaining", len(set.order))
}

// Len returns the number of tracked fingerprints for a conversation.
func (d *DedupStore) Len(conversation string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.convs[conversation]; ok {
		return len(set.order)
	}
	return 0
}

// Drop discards all state for a conversation. Called when a conversation is
// removed from the watch list.
func (d *DedupStore) Drop(conversation string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.convs, conversation)
}
