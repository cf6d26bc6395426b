package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"example.com/spring/internal/auth"
	"example.com/spring/internal/domain"
	"example.com/spring/internal/feed"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/store"
)

type mockGateway struct {
	activities     []domain.Activity
	participants   []domain.Participant
	participations []domain.Participant
	messages       []domain.Message
	profile        *domain.Profile

	profileFetches       int
	insertedProfiles     []domain.Profile
	insertedParticipants []domain.Participant
	insertedMessages     []domain.Message
	insertedActivities   []domain.Activity

	msgSub gateway.Subscription
}

func (m *mockGateway) ProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	m.profileFetches++
	return m.profile, nil
}

func (m *mockGateway) InsertProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	m.insertedProfiles = append(m.insertedProfiles, profile)
	return &profile, nil
}

func (m *mockGateway) UpdateProfile(ctx context.Context, id string, patch gateway.ProfilePatch) (*domain.Profile, error) {
	updated := domain.Profile{ID: id}
	if patch.Username != nil {
		updated.Username = *patch.Username
	}
	return &updated, nil
}

func (m *mockGateway) Activities(ctx context.Context, filter gateway.ActivityFilter) ([]domain.Activity, error) {
	return m.activities, nil
}

func (m *mockGateway) ActivityByID(ctx context.Context, id string) (*domain.Activity, error) {
	for _, a := range m.activities {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *mockGateway) InsertActivity(ctx context.Context, activity domain.Activity) (*domain.Activity, error) {
	activity.ID = "act-new"
	m.insertedActivities = append(m.insertedActivities, activity)
	return &activity, nil
}

func (m *mockGateway) Participants(ctx context.Context, activityID string) ([]domain.Participant, error) {
	return m.participants, nil
}

func (m *mockGateway) ParticipationsByUser(ctx context.Context, userID string) ([]domain.Participant, error) {
	return m.participations, nil
}

func (m *mockGateway) InsertParticipant(ctx context.Context, participant domain.Participant) (*domain.Participant, error) {
	participant.ID = "p-new"
	m.insertedParticipants = append(m.insertedParticipants, participant)
	return &participant, nil
}

func (m *mockGateway) Messages(ctx context.Context, activityID string) ([]domain.Message, error) {
	return m.messages, nil
}

func (m *mockGateway) InsertMessage(ctx context.Context, message domain.Message) (*domain.Message, error) {
	message.ID = "m-new"
	m.insertedMessages = append(m.insertedMessages, message)
	return &message, nil
}

func (m *mockGateway) SubscribeActivityInserts(ctx context.Context) (gateway.Subscription, error) {
	return nopSubscription{}, nil
}

func (m *mockGateway) SubscribeMessageInserts(ctx context.Context, activityID string) (gateway.Subscription, error) {
	if m.msgSub != nil {
		return m.msgSub, nil
	}
	return nopSubscription{}, nil
}

type nopSubscription struct{}

func (nopSubscription) Events() <-chan gateway.Event { return nil }
func (nopSubscription) Close() error                 { return nil }

var testAuthCfg = auth.Config{Secret: "test-secret", Issuer: "spring.auth"}

func newTestMux(t *testing.T, gw gateway.Gateway, authc *auth.Client) *http.ServeMux {
	t.Helper()
	feeds := feed.NewRegistry(func(userID string) *feed.Engine {
		return feed.NewEngine(gw, store.NewActivityStore(), userID, zerolog.Nop())
	})
	handler, err := NewHandler(gw, authc, testAuthCfg, feeds, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func authedRequest(method, target string, form url.Values) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	claims := &auth.Claims{
		UserID:    "user-1",
		Email:     "ana@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func anonRequest(method, target string, form url.Values) *http.Request {
	if form != nil {
		req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}
	return httptest.NewRequest(method, target, nil)
}

func TestHomePageRenders(t *testing.T) {
	mux := newTestMux(t, &mockGateway{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Spring") {
		t.Fatalf("home page missing brand: %s", rr.Body.String())
	}
}

func TestFeedPageAnonymousShowsNewest(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1", Title: "Sunset hike"}}}
	mux := newTestMux(t, gw, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/activities", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sunset hike") {
		t.Fatal("feed page missing newest activity")
	}
}

func TestFeedPageEmpty(t *testing.T) {
	mux := newTestMux(t, &mockGateway{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/activities", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Create Activity") {
		t.Fatal("empty feed missing create prompt")
	}
}

func TestDecisionRequiresAuth(t *testing.T) {
	mux := newTestMux(t, &mockGateway{}, nil)

	form := url.Values{"decision": {"accept"}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodPost, "/activities/decision", form))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Location"), auth.LoginPath) {
		t.Fatalf("expected redirect to login got %s", rr.Header().Get("Location"))
	}
}

func TestDecisionAcceptJoins(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1"}, {ID: "a2"}}}
	mux := newTestMux(t, gw, nil)

	form := url.Values{"decision": {"accept"}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/decision", form))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if rr.Header().Get("Location") != "/activities" {
		t.Fatalf("expected redirect to /activities got %s", rr.Header().Get("Location"))
	}
	if len(gw.insertedParticipants) != 1 || gw.insertedParticipants[0].ActivityID != "a1" {
		t.Fatalf("unexpected joins: %+v", gw.insertedParticipants)
	}
}

func TestDecisionVectorResolvesHorizontalFirst(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1"}, {ID: "a2"}}}
	mux := newTestMux(t, gw, nil)

	form := url.Values{"dx": {"150"}, "dy": {"-150"}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/decision", form))

	if len(gw.insertedParticipants) != 1 {
		t.Fatalf("diagonal drag should accept, joins: %+v", gw.insertedParticipants)
	}
}

func TestDecisionExpandRedirectsToDetail(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1"}}}
	mux := newTestMux(t, gw, nil)

	form := url.Values{"decision": {"expand"}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/decision", form))

	if rr.Header().Get("Location") != "/activities/a1" {
		t.Fatalf("expected detail redirect got %s", rr.Header().Get("Location"))
	}
	if len(gw.insertedParticipants) != 0 {
		t.Fatal("expand must not join")
	}
}

func TestDetailPageNotFound(t *testing.T) {
	mux := newTestMux(t, &mockGateway{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/activities/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestCreateActivityValidationRerenders(t *testing.T) {
	gw := &mockGateway{}
	mux := newTestMux(t, gw, nil)

	form := url.Values{"title": {"ab"}, "description": {"desc"}, "location": {"park"}, "start_time": {"2026-09-05T08:00"}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/new", form))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected re-render got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "at least 3 characters") {
		t.Fatal("missing inline validation error")
	}
	if len(gw.insertedActivities) != 0 {
		t.Fatal("invalid form must not insert")
	}
}

func TestCreateActivityRedirectsToDetail(t *testing.T) {
	gw := &mockGateway{}
	mux := newTestMux(t, gw, nil)

	form := url.Values{
		"title":       {"Morning run"},
		"description": {"Easy 5k"},
		"location":    {"Riverside park"},
		"start_time":  {"2026-09-05T08:00"},
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/new", form))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") != "/activities/act-new" {
		t.Fatalf("expected detail redirect got %s", rr.Header().Get("Location"))
	}
	if len(gw.insertedActivities) != 1 || gw.insertedActivities[0].HostID != "user-1" {
		t.Fatalf("unexpected insert: %+v", gw.insertedActivities)
	}
}

func TestChatPageRedirectsAnonymous(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1"}}}
	mux := newTestMux(t, gw, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/activities/a1/chat", nil))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	location, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if location.Query().Get("next") != "/activities/a1/chat" {
		t.Fatalf("expected next param got %s", location.RawQuery)
	}
}

func TestChatPageGroupsByDate(t *testing.T) {
	day1 := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.August, 2, 9, 0, 0, 0, time.UTC)
	gw := &mockGateway{
		activities: []domain.Activity{{ID: "a1", Title: "Hike"}},
		messages: []domain.Message{
			{ID: "m1", ActivityID: "a1", SenderID: "user-1", Content: "first", CreatedAt: day1},
			{ID: "m2", ActivityID: "a1", SenderID: "other", Content: "second", CreatedAt: day2},
		},
	}
	mux := newTestMux(t, gw, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/activities/a1/chat", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "2026-08-01") || !strings.Contains(body, "2026-08-02") {
		t.Fatal("chat page missing date separators")
	}
	if !strings.Contains(body, "first") || !strings.Contains(body, "second") {
		t.Fatal("chat page missing messages")
	}
}

func TestSendChatMessage(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1"}}}
	mux := newTestMux(t, gw, nil)

	form := url.Values{"content": {"  on my way  "}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/a1/chat/send", form))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if len(gw.insertedMessages) != 1 {
		t.Fatalf("expected 1 insert got %d", len(gw.insertedMessages))
	}
	if gw.insertedMessages[0].Content != "on my way" {
		t.Fatalf("expected trimmed content got %q", gw.insertedMessages[0].Content)
	}
}

func TestSendChatMessageEmptySkipsInsert(t *testing.T) {
	gw := &mockGateway{activities: []domain.Activity{{ID: "a1"}}}
	mux := newTestMux(t, gw, nil)

	form := url.Values{"content": {"   "}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/activities/a1/chat/send", form))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if len(gw.insertedMessages) != 0 {
		t.Fatal("empty message must not insert")
	}
}

func TestLoginSetsCookieAndRedirects(t *testing.T) {
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"expires_in":   3600,
			"user":         map[string]string{"id": "user-1", "email": "ana@example.com"},
		})
	}))
	defer authServer.Close()

	gw := &mockGateway{}
	mux := newTestMux(t, gw, auth.NewClient(authServer.URL, "key", time.Second))

	form := url.Values{
		"email":    {"ana@example.com"},
		"password": {"secret1"},
		"next":     {"/activities/saved"},
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodPost, "/auth/login", form))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") != "/activities/saved" {
		t.Fatalf("expected next redirect got %s", rr.Header().Get("Location"))
	}

	cookies := rr.Result().Cookies()
	var session *http.Cookie
	for _, cookie := range cookies {
		if cookie.Name == auth.SessionCookie {
			session = cookie
		}
	}
	if session == nil || session.Value != "token-1" {
		t.Fatalf("session cookie not set: %+v", cookies)
	}

	// First sign-in creates the profile lazily, named from the email.
	if len(gw.insertedProfiles) != 1 || gw.insertedProfiles[0].Username != "ana" {
		t.Fatalf("unexpected profiles: %+v", gw.insertedProfiles)
	}
}

func TestLoginFailureRerenders(t *testing.T) {
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusBadRequest)
	}))
	defer authServer.Close()

	mux := newTestMux(t, &mockGateway{}, auth.NewClient(authServer.URL, "key", time.Second))

	form := url.Values{"email": {"ana@example.com"}, "password": {"wrong-1"}}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodPost, "/auth/login", form))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected re-render got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sign-in failed") {
		t.Fatal("missing failure banner")
	}
}

func TestProfilePageCachesFetch(t *testing.T) {
	gw := &mockGateway{profile: &domain.Profile{ID: "user-1", Username: "ana"}}
	mux := newTestMux(t, gw, nil)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/profile", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "ana") {
			t.Fatal("profile page missing username")
		}
	}

	if gw.profileFetches != 1 {
		t.Fatalf("expected 1 gateway fetch got %d", gw.profileFetches)
	}
}

func TestProfilePageMissingRedirectsToEdit(t *testing.T) {
	mux := newTestMux(t, &mockGateway{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/profile", nil))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if rr.Header().Get("Location") != "/profile/edit" {
		t.Fatalf("expected edit redirect got %s", rr.Header().Get("Location"))
	}
}

func TestSanitizeNext(t *testing.T) {
	cases := map[string]string{
		"/activities/saved":    "/activities/saved",
		"https://evil.example": "",
		"//evil.example":       "",
		"activities":           "",
		"":                     "",
		"/activities/a1/chat":  "/activities/a1/chat",
	}
	for input, want := range cases {
		if got := sanitizeNext(input); got != want {
			t.Fatalf("sanitizeNext(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRelTime(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		at   time.Time
		want string
	}{
		"immediate":  {now.Add(10 * time.Second), "now"},
		"soon":       {now.Add(31 * time.Minute), "in 31m"},
		"today":      {now.Add(5*time.Hour + time.Minute), "in 5h"},
		"this week":  {now.Add(49 * time.Hour), "in 2d"},
		"just ended": {now.Add(-20 * time.Minute), "20m ago"},
		"yesterday":  {now.Add(-30 * time.Hour), "1d ago"},
	}
	for name, tc := range cases {
		if got := relTime(tc.at); got != tc.want {
			t.Fatalf("%s: relTime = %q, want %q", name, got, tc.want)
		}
	}
}

func signTestToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": "ana@example.com",
		"iss":   testAuthCfg.Issuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testAuthCfg.Secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestOAuthStartRedirectsToProvider(t *testing.T) {
	authc := auth.NewClient("https://auth.example", "key", time.Second)
	mux := newTestMux(t, &mockGateway{}, authc)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/auth/oauth/google?next=/profile", nil))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	location := rr.Header().Get("Location")
	if !strings.HasPrefix(location, "https://auth.example/auth/v1/authorize?") {
		t.Fatalf("unexpected authorize URL: %s", location)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		t.Fatalf("failed to parse location: %v", err)
	}
	if got := parsed.Query().Get("provider"); got != "google" {
		t.Fatalf("expected provider google got %q", got)
	}
	redirectTo := parsed.Query().Get("redirect_to")
	if !strings.Contains(redirectTo, "/auth/callback") || !strings.Contains(redirectTo, "next=%2Fprofile") {
		t.Fatalf("unexpected redirect_to: %s", redirectTo)
	}
}

func TestOAuthStartRejectsUnknownProvider(t *testing.T) {
	authc := auth.NewClient("https://auth.example", "key", time.Second)
	mux := newTestMux(t, &mockGateway{}, authc)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/auth/oauth/myspace", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestOAuthCallbackRendersTokenBridge(t *testing.T) {
	mux := newTestMux(t, &mockGateway{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodGet, "/auth/callback?next=/profile", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `action="/auth/session"`) {
		t.Fatal("callback page missing session form")
	}
	if !strings.Contains(body, `value="/profile"`) {
		t.Fatal("callback page lost the next path")
	}
}

func TestSessionFromTokenSetsCookie(t *testing.T) {
	gw := &mockGateway{profile: &domain.Profile{ID: "user-1", Username: "ana"}}
	mux := newTestMux(t, gw, nil)
	token := signTestToken(t, "user-1")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodPost, "/auth/session", url.Values{
		"access_token":  {token},
		"refresh_token": {"refresh-1"},
		"next":          {"/profile"},
	}))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "/profile" {
		t.Fatalf("expected /profile redirect got %s", got)
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != token {
		t.Fatal("session cookie missing or wrong token")
	}
}

func TestSessionRejectsInvalidToken(t *testing.T) {
	gw := &mockGateway{}
	mux := newTestMux(t, gw, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, anonRequest(http.MethodPost, "/auth/session", url.Values{
		"access_token": {"not-a-token"},
	}))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != auth.LoginPath {
		t.Fatalf("expected login redirect got %s", got)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("no cookie should be set for an invalid token")
	}
}

func TestGuardProtectsLiveSockets(t *testing.T) {
	guard := auth.NewGuard(testAuthCfg, ProtectedPrefixes)
	for _, path := range []string{"/ws/activities", "/ws/chat/a1"} {
		if !guard.Protects(path) {
			t.Fatalf("expected %s to require a session", path)
		}
	}
}
