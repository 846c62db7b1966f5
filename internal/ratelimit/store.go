package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

// Key identifies one counter: who is being counted, under which role row,
// for which activity class.
type Key struct {
	Role     identity.Role
	Identity string
	Class    string
}

func (k Key) String() string {
	return string(k.Role) + "|" + k.Identity + "|" + k.Class
}

// Entry is one fixed-window counter. Windows are non-overlapping: when the
// window elapses the entry is replaced, not decayed, so a burst of up to
// twice the limit is possible across a boundary. That trade-off is
// deliberate; it keeps Record O(1).
type Entry struct {
	Key          Key
	Count        int
	BlockedCount int
	WindowStart  time.Time
	FirstSeen    time.Time
	LastSeen     time.Time
}

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// Store holds in-memory fixed-window counters, sharded by key hash to keep
// request-path contention low.
type Store struct {
	shards [shardCount]*shard
	clock  func() time.Time
}

// NewStore constructs a Store. clock may be nil, defaulting to time.Now;
// tests inject their own.
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	s := &Store{clock: clock}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Record atomically increments the counter for key, resetting it when the
// window has elapsed, and returns a snapshot of the entry.
func (s *Store) Record(key Key, window time.Duration) Entry {
	now := s.clock()
	ks := key.String()
	sh := s.shardFor(ks)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[ks]
	if !ok || now.Sub(entry.FirstSeen) >= window {
		entry = &Entry{
			Key:         key,
			Count:       1,
			WindowStart: now,
			FirstSeen:   now,
			LastSeen:    now,
		}
		sh.entries[ks] = entry
		return *entry
	}

	entry.Count++
	entry.LastSeen = now
	return *entry
}

// RecordBlocked notes a rejected request against the current window, if
// one is still live. Used for usage statistics only.
func (s *Store) RecordBlocked(key Key) {
	ks := key.String()
	sh := s.shardFor(ks)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if entry, ok := sh.entries[ks]; ok {
		entry.BlockedCount++
	}
}

// Exceeded reports whether the entry is over its limit.
func Exceeded(entry Entry, limit Limit) bool {
	return entry.Count > limit.MaxRequests
}

// RetryAfter computes how long the caller should wait before the window
// resets. Never negative.
func RetryAfter(entry Entry, window time.Duration, now time.Time) time.Duration {
	remaining := entry.WindowStart.Add(window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Sweep drops entries whose window fully elapsed before cutoffAge of
// inactivity. It takes the same per-shard locks as Record.
func (s *Store) Sweep(maxWindow time.Duration) int {
	now := s.clock()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for ks, entry := range sh.entries {
			if now.Sub(entry.LastSeen) >= maxWindow {
				delete(sh.entries, ks)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// StartGC runs Sweep on a fixed interval until ctx is cancelled. The
// interval is independent of request traffic.
func (s *Store) StartGC(ctx context.Context, interval, maxWindow time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxWindow)
		}
	}
}

// UsageStats aggregates live counters for the administrative surface.
type UsageStats struct {
	ActiveKeys    int            `json:"active_keys"`
	TotalRequests int            `json:"total_requests"`
	TotalBlocked  int            `json:"total_blocked"`
	ByClass       map[string]int `json:"by_class"`
}

// Stats snapshots aggregate usage across all shards.
func (s *Store) Stats() UsageStats {
	stats := UsageStats{ByClass: make(map[string]int)}
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, entry := range sh.entries {
			stats.ActiveKeys++
			stats.TotalRequests += entry.Count
			stats.TotalBlocked += entry.BlockedCount
			stats.ByClass[entry.Key.Class] += entry.Count
		}
		sh.mu.Unlock()
	}
	return stats
}
