// Package gateway defines the typed contract against the remote Spring
// backend: read/insert/update operations over the four record collections
// plus a subscribe-to-inserts primitive.
package gateway

import (
	"context"
	"fmt"
	"time"

	"example.com/spring/internal/domain"
)

// Collection names as exposed by the remote store.
const (
	CollectionProfiles     = "profiles"
	CollectionActivities   = "activities"
	CollectionParticipants = "participants"
	CollectionMessages     = "messages"
)

// RemoteError wraps any failed remote call: network, auth rejection,
// constraint violation, not-found. Callers log and degrade rather than
// surface it to the user unless the action was explicit.
type RemoteError struct {
	Op         string
	Collection string
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ActivityFilter narrows activity fetches. Zero values mean "no constraint".
type ActivityFilter struct {
	HostID      string
	Location    string
	StartAfter  time.Time
	StartBefore time.Time
	Limit       int
}

// Event is a single live-insert notification. Exactly one of the record
// pointers is set, matching Collection.
type Event struct {
	Collection string
	Activity   *domain.Activity
	Message    *domain.Message
}

// Subscription is a long-lived live-insert channel. Close must be called on
// every exit path; it is idempotent. Events is closed after Close returns.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Gateway exposes the typed data operations every other component calls
// into. Implementations: the hosted REST client in rest, the direct
// Postgres repository in postgres.
type Gateway interface {
	ProfileByID(ctx context.Context, id string) (*domain.Profile, error)
	InsertProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*domain.Profile, error)

	Activities(ctx context.Context, filter ActivityFilter) ([]domain.Activity, error)
	ActivityByID(ctx context.Context, id string) (*domain.Activity, error)
	InsertActivity(ctx context.Context, activity domain.Activity) (*domain.Activity, error)

	Participants(ctx context.Context, activityID string) ([]domain.Participant, error)
	ParticipationsByUser(ctx context.Context, userID string) ([]domain.Participant, error)
	InsertParticipant(ctx context.Context, participant domain.Participant) (*domain.Participant, error)

	Messages(ctx context.Context, activityID string) ([]domain.Message, error)
	InsertMessage(ctx context.Context, message domain.Message) (*domain.Message, error)

	SubscribeActivityInserts(ctx context.Context) (Subscription, error)
	SubscribeMessageInserts(ctx context.Context, activityID string) (Subscription, error)
}

// ProfilePatch is a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	Username  *string  `json:"username,omitempty"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
	Location  *string  `json:"location,omitempty"`
	Interests []string `json:"interests,omitempty"`
}
