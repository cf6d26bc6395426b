package store

import (
	"sync"

	"example.com/spring/internal/domain"
)

// ActivityStore holds the ordered activity sequence the feed browses, the
// currently focused activity, and the loading flag.
type ActivityStore struct {
	mu         sync.RWMutex
	activities []domain.Activity
	current    *domain.Activity
	loading    bool
}

// NewActivityStore constructs an empty store in the loading state.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{loading: true}
}

// Replace swaps in the full activity sequence, as on initial fetch.
func (s *ActivityStore) Replace(activities []domain.Activity) {
	copied := make([]domain.Activity, len(activities))
	copy(copied, activities)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = copied
	s.loading = false
}

// Prepend puts a live-inserted activity at the head of the sequence. An
// activity already present (by id) is ignored so an echo of a local insert
// cannot duplicate the feed.
func (s *ActivityStore) Prepend(activity domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.activities {
		if existing.ID == activity.ID {
			return
		}
	}
	s.activities = append([]domain.Activity{activity}, s.activities...)
}

// Append adds a host-created activity to the tail of the sequence.
func (s *ActivityStore) Append(activity domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.activities {
		if existing.ID == activity.ID {
			return
		}
	}
	s.activities = append(s.activities, activity)
}

// SetCurrent records the activity the user drilled into; nil clears it.
func (s *ActivityStore) SetCurrent(activity *domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if activity == nil {
		s.current = nil
		return
	}
	copied := *activity
	s.current = &copied
}

// Current returns the focused activity, or false when none is set.
func (s *ActivityStore) Current() (domain.Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Activity{}, false
	}
	return *s.current, true
}

// Get looks an activity up by id.
func (s *ActivityStore) Get(id string) (domain.Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, activity := range s.activities {
		if activity.ID == id {
			return activity, true
		}
	}
	return domain.Activity{}, false
}

// IndexOf resolves an activity's current position by identity, or -1.
func (s *ActivityStore) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, activity := range s.activities {
		if activity.ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns a copy of the current sequence.
func (s *ActivityStore) Snapshot() []domain.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]domain.Activity, len(s.activities))
	copy(copied, s.activities)
	return copied
}

// Len reports the sequence length.
func (s *ActivityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities)
}

// SetLoading flips the loading flag.
func (s *ActivityStore) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// Loading reports whether the initial fetch is still in flight.
func (s *ActivityStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}
