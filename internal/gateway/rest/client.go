// Package rest implements the remote data gateway against the hosted
// backend's REST API and realtime websocket channel.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/observability"
)

// Client is the hosted-backend implementation of gateway.Gateway. Rows are
// addressed PostgREST-style: column filters as query parameters, inserts
// returning the stored representation.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a Client. baseURL is the hosted backend root; apiKey
// is its public API key.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

var _ gateway.Gateway = (*Client)(nil)

// ProfileByID fetches one profile row.
func (c *Client) ProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	var rows []domain.Profile
	query := url.Values{"id": {"eq." + id}, "limit": {"1"}}
	if err := c.fetch(ctx, gateway.CollectionProfiles, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertProfile creates a profile row.
func (c *Client) InsertProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	var rows []domain.Profile
	if err := c.insert(ctx, gateway.CollectionProfiles, profile, &rows); err != nil {
		return nil, err
	}
	return first(rows), nil
}

// UpdateProfile patches a profile row and returns the updated record.
func (c *Client) UpdateProfile(ctx context.Context, id string, patch gateway.ProfilePatch) (*domain.Profile, error) {
	var rows []domain.Profile
	if err := c.update(ctx, gateway.CollectionProfiles, id, patch, &rows); err != nil {
		return nil, err
	}
	return first(rows), nil
}

// Activities lists activities newest-created first, narrowed by filter.
func (c *Client) Activities(ctx context.Context, filter gateway.ActivityFilter) ([]domain.Activity, error) {
	query := url.Values{"order": {"created_at.desc"}}
	if filter.HostID != "" {
		query.Set("host_id", "eq."+filter.HostID)
	}
	if filter.Location != "" {
		query.Set("location", "ilike.*"+filter.Location+"*")
	}
	if !filter.StartAfter.IsZero() {
		query.Add("start_time", "gte."+filter.StartAfter.UTC().Format(time.RFC3339))
	}
	if !filter.StartBefore.IsZero() {
		query.Add("start_time", "lte."+filter.StartBefore.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var rows []domain.Activity
	if err := c.fetch(ctx, gateway.CollectionActivities, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ActivityByID fetches one activity row.
func (c *Client) ActivityByID(ctx context.Context, id string) (*domain.Activity, error) {
	var rows []domain.Activity
	query := url.Values{"id": {"eq." + id}, "limit": {"1"}}
	if err := c.fetch(ctx, gateway.CollectionActivities, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertActivity creates an activity row.
func (c *Client) InsertActivity(ctx context.Context, activity domain.Activity) (*domain.Activity, error) {
	var rows []domain.Activity
	if err := c.insert(ctx, gateway.CollectionActivities, activity, &rows); err != nil {
		return nil, err
	}
	return first(rows), nil
}

// Participants lists the join records for an activity.
func (c *Client) Participants(ctx context.Context, activityID string) ([]domain.Participant, error) {
	var rows []domain.Participant
	query := url.Values{"activity_id": {"eq." + activityID}, "order": {"joined_at.asc"}}
	if err := c.fetch(ctx, gateway.CollectionParticipants, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ParticipationsByUser lists the activities a user has joined.
func (c *Client) ParticipationsByUser(ctx context.Context, userID string) ([]domain.Participant, error) {
	var rows []domain.Participant
	query := url.Values{"user_id": {"eq." + userID}, "order": {"joined_at.desc"}}
	if err := c.fetch(ctx, gateway.CollectionParticipants, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertParticipant records a join.
func (c *Client) InsertParticipant(ctx context.Context, participant domain.Participant) (*domain.Participant, error) {
	var rows []domain.Participant
	if err := c.insert(ctx, gateway.CollectionParticipants, participant, &rows); err != nil {
		return nil, err
	}
	return first(rows), nil
}

// Messages lists an activity's transcript ordered by creation ascending.
func (c *Client) Messages(ctx context.Context, activityID string) ([]domain.Message, error) {
	var rows []domain.Message
	query := url.Values{"activity_id": {"eq." + activityID}, "order": {"created_at.asc"}}
	if err := c.fetch(ctx, gateway.CollectionMessages, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertMessage appends to an activity's transcript.
func (c *Client) InsertMessage(ctx context.Context, message domain.Message) (*domain.Message, error) {
	var rows []domain.Message
	if err := c.insert(ctx, gateway.CollectionMessages, message, &rows); err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (c *Client) fetch(ctx context.Context, collection string, query url.Values, out interface{}) error {
	query.Set("select", "*")
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, collection, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.remoteErr("fetch", collection, err)
	}
	return c.do(req, "fetch", collection, out)
}

func (c *Client) insert(ctx context.Context, collection string, record interface{}, out interface{}) error {
	body, err := json.Marshal(record)
	if err != nil {
		return c.remoteErr("insert", collection, err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return c.remoteErr("insert", collection, err)
	}
	req.Header.Set("Prefer", "return=representation")
	return c.do(req, "insert", collection, out)
}

func (c *Client) update(ctx context.Context, collection, id string, patch interface{}, out interface{}) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return c.remoteErr("update", collection, err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, collection, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return c.remoteErr("update", collection, err)
	}
	req.Header.Set("Prefer", "return=representation")
	return c.do(req, "update", collection, out)
}

func (c *Client) do(req *http.Request, op, collection string, out interface{}) error {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.remoteErr(op, collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.remoteErr(op, collection, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(detail))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.remoteErr(op, collection, err)
	}
	return nil
}

func (c *Client) remoteErr(op, collection string, err error) error {
	observability.RecordGatewayError(op)
	return &gateway.RemoteError{Op: op, Collection: collection, Err: err}
}

func first[T any](rows []T) *T {
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}
