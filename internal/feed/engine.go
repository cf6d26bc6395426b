// Package feed implements the one-at-a-time activity presentation sequence
// and the swipe decision engine behind it.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/observability"
	"example.com/spring/internal/store"
)

// Decision is the outcome of interpreting a swipe gesture.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionReject
	DecisionAccept
	DecisionExpand
)

func (d Decision) String() string {
	switch d {
	case DecisionReject:
		return "reject"
	case DecisionAccept:
		return "accept"
	case DecisionExpand:
		return "expand"
	default:
		return "none"
	}
}

// Vector is a drag-release displacement. Positive DX is rightward, positive
// DY is downward; an upward drag therefore has negative DY.
type Vector struct {
	DX float64
	DY float64
}

// Thresholds are the fixed distances a drag must clear to count as a
// decision.
type Thresholds struct {
	Horizontal float64
	Vertical   float64
}

// DefaultThreshold matches the swipe distance the clients use.
const DefaultThreshold = 100

// DefaultThresholds returns the standard swipe thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Horizontal: DefaultThreshold, Vertical: DefaultThreshold}
}

// Resolve maps a drag vector to a decision. The horizontal test is evaluated
// strictly before the vertical one, so a diagonal drag that clears both
// thresholds resolves as accept or reject, never expand.
func Resolve(v Vector, t Thresholds) Decision {
	switch {
	case v.DX > t.Horizontal:
		return DecisionAccept
	case v.DX < -t.Horizontal:
		return DecisionReject
	case v.DY < -t.Vertical:
		return DecisionExpand
	default:
		return DecisionNone
	}
}

// State is the engine's browsing-session state.
type State int

const (
	StateLoading State = iota
	StatePresenting
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePresenting:
		return "presenting"
	case StateExhausted:
		return "exhausted"
	default:
		return "loading"
	}
}

// Gateway is the slice of the remote data gateway the engine needs.
type Gateway interface {
	Activities(ctx context.Context, filter gateway.ActivityFilter) ([]domain.Activity, error)
	InsertParticipant(ctx context.Context, participant domain.Participant) (*domain.Participant, error)
	SubscribeActivityInserts(ctx context.Context) (gateway.Subscription, error)
}

// Engine presents one activity at a time and advances through the sequence
// on accept/reject decisions. The presented activity is tracked by identity,
// so a live prepend shifting indices never re-points the card on screen.
type Engine struct {
	gw         Gateway
	store      *store.ActivityStore
	userID     string
	thresholds Thresholds
	fetchLimit int
	logger     zerolog.Logger

	mu        sync.Mutex
	state     State
	focusedID string
	seen      map[string]struct{}
	accepted  map[string]struct{}
	sub       gateway.Subscription
	closed    bool
}

// Option configures optional engine behaviour.
type Option func(*Engine)

// WithThresholds overrides the default swipe thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithFetchLimit caps how many activities the initial load requests.
func WithFetchLimit(n int) Option {
	return func(e *Engine) { e.fetchLimit = n }
}

// NewEngine constructs an Engine in the Loading state.
func NewEngine(gw Gateway, st *store.ActivityStore, userID string, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		gw:         gw,
		store:      st,
		userID:     userID,
		thresholds: DefaultThresholds(),
		logger:     logger,
		state:      StateLoading,
		seen:       make(map[string]struct{}),
		accepted:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load performs the initial fetch and presents the first activity, or moves
// straight to Exhausted when the result is empty. A fetch failure degrades
// to an empty sequence rather than propagating.
func (e *Engine) Load(ctx context.Context, filter gateway.ActivityFilter) {
	if filter.Limit == 0 {
		filter.Limit = e.fetchLimit
	}
	e.store.SetLoading(true)
	activities, err := e.gw.Activities(ctx, filter)
	if err != nil {
		e.logger.Error().Err(err).Msg("feed fetch failed")
		activities = nil
	}
	e.store.Replace(activities)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.focusedID = ""
	e.advanceLocked()
}

// Subscribe opens the live-insert channel and pumps arrivals into the store
// until Close is called.
func (e *Engine) Subscribe(ctx context.Context) error {
	sub, err := e.gw.SubscribeActivityInserts(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return sub.Close()
	}
	e.sub = sub
	e.mu.Unlock()

	go func() {
		for evt := range sub.Events() {
			e.HandleInsert(evt)
		}
	}()
	return nil
}

// HandleInsert prepends a live-inserted activity. The activity currently
// presented stays presented; when the feed was already exhausted the new
// arrival is presented next.
func (e *Engine) HandleInsert(evt gateway.Event) {
	if evt.Collection != gateway.CollectionActivities || evt.Activity == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.store.Prepend(*evt.Activity)
	if e.state == StateExhausted {
		e.advanceLocked()
	}
}

// Current returns the presented activity, or false outside Presenting.
func (e *Engine) Current() (domain.Activity, bool) {
	e.mu.Lock()
	id := e.focusedID
	e.mu.Unlock()
	if id == "" {
		return domain.Activity{}, false
	}
	return e.store.Get(id)
}

// State reports the engine's browsing state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Swipe resolves a drag vector and applies the resulting decision.
func (e *Engine) Swipe(ctx context.Context, v Vector) Decision {
	decision := Resolve(v, e.thresholds)
	e.Apply(ctx, decision)
	return decision
}

// Apply executes a decision against the presented activity. Accept inserts a
// Participant record and advances even when the insert fails; reject only
// advances; expand marks the activity focused without advancing.
func (e *Engine) Apply(ctx context.Context, decision Decision) {
	e.mu.Lock()
	if e.state != StatePresenting || e.focusedID == "" {
		e.mu.Unlock()
		return
	}
	focusedID := e.focusedID
	e.mu.Unlock()

	focused, ok := e.store.Get(focusedID)
	if !ok {
		return
	}

	switch decision {
	case DecisionNone:
		return
	case DecisionExpand:
		e.store.SetCurrent(&focused)
		observability.RecordDecision(decision.String())
		return
	case DecisionAccept:
		e.join(ctx, focused)
	case DecisionReject:
		// No side effect beyond advancing.
	}

	observability.RecordDecision(decision.String())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
}

// join records participation. A repeated accept on the same activity within
// this pass is skipped; a failed insert is logged and swallowed so the
// cursor still advances.
func (e *Engine) join(ctx context.Context, activity domain.Activity) {
	e.mu.Lock()
	if _, dup := e.accepted[activity.ID]; dup {
		e.mu.Unlock()
		return
	}
	e.accepted[activity.ID] = struct{}{}
	e.mu.Unlock()

	_, err := e.gw.InsertParticipant(ctx, domain.Participant{
		ActivityID: activity.ID,
		UserID:     e.userID,
		JoinedAt:   time.Now().UTC(),
	})
	if err != nil {
		observability.RecordJoinFailure()
		e.logger.Error().Err(err).
			Str("activity_id", activity.ID).
			Msg("participant insert failed; advancing anyway")
	}
}

// advanceLocked moves focus to the next unseen activity, or Exhausted when
// none remains. Callers hold e.mu.
func (e *Engine) advanceLocked() {
	sequence := e.store.Snapshot()

	start := 0
	if e.focusedID != "" {
		for i, activity := range sequence {
			if activity.ID == e.focusedID {
				start = i + 1
				break
			}
		}
	}

	for _, activity := range sequence[min(start, len(sequence)):] {
		if _, present := e.seen[activity.ID]; present {
			continue
		}
		e.seen[activity.ID] = struct{}{}
		e.focusedID = activity.ID
		e.state = StatePresenting
		return
	}

	// Nothing ahead; fall back to any unseen activity a prepend left behind
	// the cursor before declaring the pass over.
	for _, activity := range sequence {
		if _, present := e.seen[activity.ID]; present {
			continue
		}
		e.seen[activity.ID] = struct{}{}
		e.focusedID = activity.ID
		e.state = StatePresenting
		return
	}

	e.focusedID = ""
	e.state = StateExhausted
}

// Close tears down the live subscription. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}
