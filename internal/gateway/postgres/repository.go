// Package postgres implements the remote data gateway directly against
// PostgreSQL for self-hosted deployments.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/observability"
	"example.com/spring/internal/realtime"
)

// Mirror publishes insert events outward, typically to Kafka, so other
// replicas and downstream consumers observe them. Optional.
type Mirror interface {
	Mirror(ctx context.Context, evt gateway.Event) error
}

// Repository provides Postgres-backed persistence for the four collections.
// Live-insert subscriptions are served by the broker, which is fed by the
// notification listener rather than by local writes, so every replica sees
// the same stream.
type Repository struct {
	pool   *pgxpool.Pool
	broker *realtime.Broker
	mirror Mirror
	logger zerolog.Logger
}

// NewRepository constructs a Repository. mirror may be nil.
func NewRepository(pool *pgxpool.Pool, broker *realtime.Broker, mirror Mirror, logger zerolog.Logger) *Repository {
	return &Repository{pool: pool, broker: broker, mirror: mirror, logger: logger}
}

var _ gateway.Gateway = (*Repository)(nil)

const profileColumns = "id, username, avatar_url, location, interests, created_at"

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Location, &p.Interests, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileByID fetches one profile.
func (r *Repository) ProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.remoteErr("fetch", gateway.CollectionProfiles, err)
	}
	return profile, nil
}

// InsertProfile creates a profile row.
func (r *Repository) InsertProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	const stmt = `INSERT INTO profiles (id, username, avatar_url, location, interests, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.pool.Exec(ctx, stmt,
		profile.ID, profile.Username, profile.AvatarURL, profile.Location, profile.Interests, profile.CreatedAt,
	); err != nil {
		return nil, r.remoteErr("insert", gateway.CollectionProfiles, err)
	}
	return &profile, nil
}

// UpdateProfile applies a partial update and returns the stored row.
func (r *Repository) UpdateProfile(ctx context.Context, id string, patch gateway.ProfilePatch) (*domain.Profile, error) {
	const stmt = `UPDATE profiles SET
            username  = COALESCE($2, username),
            avatar_url = COALESCE($3, avatar_url),
            location  = COALESCE($4, location),
            interests = COALESCE($5, interests)
        WHERE id=$1
        RETURNING ` + profileColumns
	profile, err := scanProfile(r.pool.QueryRow(ctx, stmt, id, patch.Username, patch.AvatarURL, patch.Location, patch.Interests))
	if err != nil {
		return nil, r.remoteErr("update", gateway.CollectionProfiles, err)
	}
	return profile, nil
}

const activityColumns = "id, title, description, host_id, start_time, location, image_url, image_urls, created_at"

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var a domain.Activity
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &a.HostID, &a.StartTime, &a.Location, &a.ImageURL, &a.ImageURLs, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Activities lists activities newest-created first, narrowed by filter.
func (r *Repository) Activities(ctx context.Context, filter gateway.ActivityFilter) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE 1=1`
	args := []interface{}{}

	if filter.HostID != "" {
		args = append(args, filter.HostID)
		query += ` AND host_id=$` + strconv.Itoa(len(args))
	}
	if filter.Location != "" {
		args = append(args, "%"+filter.Location+"%")
		query += ` AND location ILIKE $` + strconv.Itoa(len(args))
	}
	if !filter.StartAfter.IsZero() {
		args = append(args, filter.StartAfter.UTC())
		query += ` AND start_time >= $` + strconv.Itoa(len(args))
	}
	if !filter.StartBefore.IsZero() {
		args = append(args, filter.StartBefore.UTC())
		query += ` AND start_time <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, r.remoteErr("fetch", gateway.CollectionActivities, err)
	}
	defer rows.Close()

	var results []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, r.remoteErr("fetch", gateway.CollectionActivities, err)
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, r.remoteErr("fetch", gateway.CollectionActivities, err)
	}
	return results, nil
}

// ActivityByID fetches one activity.
func (r *Repository) ActivityByID(ctx context.Context, id string) (*domain.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities WHERE id=$1`
	activity, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.remoteErr("fetch", gateway.CollectionActivities, err)
	}
	return activity, nil
}

// InsertActivity creates an activity row and mirrors the insert event.
func (r *Repository) InsertActivity(ctx context.Context, activity domain.Activity) (*domain.Activity, error) {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	const stmt = `INSERT INTO activities (id, title, description, host_id, start_time, location, image_url, image_urls, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := r.pool.Exec(ctx, stmt,
		activity.ID, activity.Title, activity.Description, activity.HostID,
		activity.StartTime, activity.Location, activity.ImageURL, activity.ImageURLs, activity.CreatedAt,
	); err != nil {
		return nil, r.remoteErr("insert", gateway.CollectionActivities, err)
	}

	r.mirrorEvent(ctx, gateway.Event{Collection: gateway.CollectionActivities, Activity: &activity})
	return &activity, nil
}

// Participants lists an activity's join records.
func (r *Repository) Participants(ctx context.Context, activityID string) ([]domain.Participant, error) {
	const query = `SELECT id, activity_id, user_id, joined_at FROM participants
        WHERE activity_id=$1 ORDER BY joined_at ASC`
	return r.queryParticipants(ctx, query, activityID)
}

// ParticipationsByUser lists the join records of one user.
func (r *Repository) ParticipationsByUser(ctx context.Context, userID string) ([]domain.Participant, error) {
	const query = `SELECT id, activity_id, user_id, joined_at FROM participants
        WHERE user_id=$1 ORDER BY joined_at DESC`
	return r.queryParticipants(ctx, query, userID)
}

func (r *Repository) queryParticipants(ctx context.Context, query, arg string) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, r.remoteErr("fetch", gateway.CollectionParticipants, err)
	}
	defer rows.Close()

	var results []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.ActivityID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, r.remoteErr("fetch", gateway.CollectionParticipants, err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.remoteErr("fetch", gateway.CollectionParticipants, err)
	}
	return results, nil
}

// InsertParticipant records a join. A repeated join of the same activity by
// the same user is a no-op, enforced by the unique constraint.
func (r *Repository) InsertParticipant(ctx context.Context, participant domain.Participant) (*domain.Participant, error) {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = time.Now().UTC()
	}

	const stmt = `INSERT INTO participants (id, activity_id, user_id, joined_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (activity_id, user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, stmt,
		participant.ID, participant.ActivityID, participant.UserID, participant.JoinedAt,
	); err != nil {
		return nil, r.remoteErr("insert", gateway.CollectionParticipants, err)
	}
	return &participant, nil
}

// Messages lists an activity's transcript ordered by creation ascending.
func (r *Repository) Messages(ctx context.Context, activityID string) ([]domain.Message, error) {
	const query = `SELECT id, activity_id, sender_id, content, created_at FROM messages
        WHERE activity_id=$1 ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, r.remoteErr("fetch", gateway.CollectionMessages, err)
	}
	defer rows.Close()

	var results []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ActivityID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, r.remoteErr("fetch", gateway.CollectionMessages, err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.remoteErr("fetch", gateway.CollectionMessages, err)
	}
	return results, nil
}

// InsertMessage appends to a transcript and mirrors the insert event.
func (r *Repository) InsertMessage(ctx context.Context, message domain.Message) (*domain.Message, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	const stmt = `INSERT INTO messages (id, activity_id, sender_id, content, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.pool.Exec(ctx, stmt,
		message.ID, message.ActivityID, message.SenderID, message.Content, message.CreatedAt,
	); err != nil {
		return nil, r.remoteErr("insert", gateway.CollectionMessages, err)
	}

	r.mirrorEvent(ctx, gateway.Event{Collection: gateway.CollectionMessages, Message: &message})
	return &message, nil
}

// SubscribeActivityInserts opens a live channel for new activities.
func (r *Repository) SubscribeActivityInserts(ctx context.Context) (gateway.Subscription, error) {
	return r.broker.Subscribe(gateway.CollectionActivities, ""), nil
}

// SubscribeMessageInserts opens a live channel for one activity's messages.
func (r *Repository) SubscribeMessageInserts(ctx context.Context, activityID string) (gateway.Subscription, error) {
	return r.broker.Subscribe(gateway.CollectionMessages, activityID), nil
}

// mirrorEvent forwards an insert to the configured mirror. Failures are
// logged and swallowed; the row is already committed and the local stream
// is fed by the notification listener regardless.
func (r *Repository) mirrorEvent(ctx context.Context, evt gateway.Event) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.Mirror(ctx, evt); err != nil {
		r.logger.Error().Err(err).Str("collection", evt.Collection).Msg("insert mirror failed")
	}
}

func (r *Repository) remoteErr(op, collection string, err error) error {
	observability.RecordGatewayError(op)
	return &gateway.RemoteError{Op: op, Collection: collection, Err: err}
}
