package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/spring/internal/domain"
)

func TestActivityStoreReplaceClearsLoading(t *testing.T) {
	s := NewActivityStore()
	s.SetLoading(true)
	require.True(t, s.Loading())

	s.Replace([]domain.Activity{{ID: "a"}, {ID: "b"}})
	require.False(t, s.Loading())
	require.Equal(t, 2, s.Len())
}

func TestActivityStorePrependDeduplicates(t *testing.T) {
	s := NewActivityStore()
	s.Replace([]domain.Activity{{ID: "a"}, {ID: "b"}})

	s.Prepend(domain.Activity{ID: "c"})
	require.Equal(t, []string{"c", "a", "b"}, ids(s.Snapshot()))

	// A repeat of an existing id leaves the sequence alone.
	s.Prepend(domain.Activity{ID: "a"})
	require.Equal(t, []string{"c", "a", "b"}, ids(s.Snapshot()))
}

func TestActivityStoreAppendDeduplicates(t *testing.T) {
	s := NewActivityStore()
	s.Replace([]domain.Activity{{ID: "a"}})

	s.Append(domain.Activity{ID: "b"})
	s.Append(domain.Activity{ID: "b"})
	require.Equal(t, []string{"a", "b"}, ids(s.Snapshot()))
}

func TestActivityStoreLookups(t *testing.T) {
	s := NewActivityStore()
	s.Replace([]domain.Activity{{ID: "a", Title: "First"}, {ID: "b"}})

	found, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "First", found.Title)

	_, ok = s.Get("missing")
	require.False(t, ok)

	require.Equal(t, 1, s.IndexOf("b"))
	require.Equal(t, -1, s.IndexOf("missing"))
}

func TestActivityStoreCurrentCopies(t *testing.T) {
	s := NewActivityStore()
	s.SetCurrent(&domain.Activity{ID: "a", Title: "Original"})

	current, ok := s.Current()
	require.True(t, ok)
	current.Title = "Mutated"

	again, _ := s.Current()
	require.Equal(t, "Original", again.Title)

	s.SetCurrent(nil)
	_, ok = s.Current()
	require.False(t, ok)
}

func TestUserStore(t *testing.T) {
	s := NewUserStore()
	require.False(t, s.Authenticated())

	s.Set(domain.Profile{ID: "user-1", Username: "ana"})
	require.True(t, s.Authenticated())

	profile, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "ana", profile.Username)

	s.Clear()
	require.False(t, s.Authenticated())
}

func ids(activities []domain.Activity) []string {
	out := make([]string, len(activities))
	for i, a := range activities {
		out[i] = a.ID
	}
	return out
}
