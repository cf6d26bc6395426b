// Package store holds the in-memory reactive state mirroring gateway
// results. Stores are plain injectable values, not process-wide singletons;
// every mutation is an atomic replace-or-append so readers never observe a
// partial update.
package store

import (
	"sync"

	"example.com/spring/internal/domain"
)

// UserStore holds at most one signed-in profile plus the authenticated flag.
type UserStore struct {
	mu            sync.RWMutex
	profile       *domain.Profile
	authenticated bool
}

// NewUserStore constructs an empty, unauthenticated store.
func NewUserStore() *UserStore {
	return &UserStore{}
}

// Set replaces the signed-in profile and marks the session authenticated.
func (s *UserStore) Set(profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := profile
	s.profile = &copied
	s.authenticated = true
}

// Clear drops the profile and authenticated flag, as on sign-out.
func (s *UserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.authenticated = false
}

// Current returns the signed-in profile, or false when signed out.
func (s *UserStore) Current() (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return domain.Profile{}, false
	}
	return *s.profile, true
}

// Authenticated reports whether a user is signed in.
func (s *UserStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}
