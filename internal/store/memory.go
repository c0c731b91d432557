package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// ErrNotFound is returned when no data is available for a given location.
var ErrNotFound = conditions.ErrNotFound

// SnapshotHistory holds a time-ordered list of snapshots for a location.
type SnapshotHistory struct {
	Snapshots []conditions.ViewingConditions
}

// MemoryStore is a concurrency-safe in-memory implementation of conditions.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per location
	maxAge     time.Duration // optional max age for snapshots

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a snapshot for its location and enforces retention.
// The newest snapshot is always kept, even when it is older than maxAge.
func (s *MemoryStore) Save(_ context.Context, vc conditions.ViewingConditions) error {
	key := vc.Location.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &SnapshotHistory{}
		s.data[key] = history
	}

	history.Snapshots = append(history.Snapshots, vc)

	// Refreshes may complete out of order.
	sort.SliceStable(history.Snapshots, func(i, j int) bool {
		return history.Snapshots[i].FetchedAt.Before(history.Snapshots[j].FetchedAt)
	})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots)-1; i++ {
			if !history.Snapshots[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
	return nil
}

// Latest returns the most recent snapshot for a location.
func (s *MemoryStore) Latest(_ context.Context, loc weather.Location) (conditions.ViewingConditions, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Snapshots) == 0 {
		return conditions.ViewingConditions{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// Range returns all snapshots for a location fetched between from and to (inclusive).
func (s *MemoryStore) Range(_ context.Context, loc weather.Location, from, to time.Time) ([]conditions.ViewingConditions, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []conditions.ViewingConditions
	for _, snap := range history.Snapshots {
		if !snap.FetchedAt.Before(from) && !snap.FetchedAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
