// Package web serves the server-rendered Spring pages: the swipe feed,
// activity detail and creation, per-activity chat, and profile views.
package web

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"example.com/spring/internal/auth"
	"example.com/spring/internal/chat"
	"example.com/spring/internal/domain"
	"example.com/spring/internal/feed"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/store"
)

// ProtectedPrefixes are the web paths requiring an authenticated session.
var ProtectedPrefixes = []string{
	"/activities/new",
	"/activities/saved",
	"/activities/decision",
	"/profile",
	"/ws/",
}

// Handler renders the web client's pages.
type Handler struct {
	gw        gateway.Gateway
	authc     *auth.Client
	authCfg   auth.Config
	feeds     *feed.Registry
	templates map[string]*template.Template
	validate  *validator.Validate
	logger    zerolog.Logger

	mu       sync.Mutex
	profiles map[string]*store.UserStore
}

// NewHandler builds a Handler. It fails only when the embedded templates do
// not parse.
func NewHandler(gw gateway.Gateway, authc *auth.Client, authCfg auth.Config, feeds *feed.Registry, logger zerolog.Logger) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		gw:        gw,
		authc:     authc,
		authCfg:   authCfg,
		feeds:     feeds,
		templates: templates,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		profiles:  make(map[string]*store.UserStore),
	}, nil
}

// profileStore returns the user container caching one signed-in user's
// profile between page loads.
func (h *Handler) profileStore(userID string) *store.UserStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.profiles[userID]
	if !ok {
		st = store.NewUserStore()
		h.profiles[userID] = st
	}
	return st
}

// profileFor reads the cached profile, falling back to a gateway fetch.
func (h *Handler) profileFor(r *http.Request, userID string) *domain.Profile {
	st := h.profileStore(userID)
	if cached, ok := st.Current(); ok {
		return &cached
	}

	profile, err := h.gw.ProfileByID(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile fetch failed")
		return nil
	}
	if profile != nil {
		st.Set(*profile)
	}
	return profile
}

// RegisterRoutes wires pages and actions to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /activities", h.feedPage)
	mux.HandleFunc("POST /activities/decision", h.decision)
	mux.HandleFunc("GET /activities/new", h.newActivityPage)
	mux.HandleFunc("POST /activities/new", h.createActivity)
	mux.HandleFunc("GET /activities/filter", h.filterPage)
	mux.HandleFunc("GET /activities/saved", h.savedPage)
	mux.HandleFunc("GET /activities/{id}", h.detailPage)
	mux.HandleFunc("GET /activities/{id}/chat", h.chatPage)
	mux.HandleFunc("POST /activities/{id}/chat/send", h.sendMessage)
	mux.HandleFunc("GET /profile", h.profilePage)
	mux.HandleFunc("GET /profile/edit", h.editProfilePage)
	mux.HandleFunc("POST /profile/edit", h.updateProfile)
	mux.HandleFunc("GET /auth/login", h.loginPage)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("GET /auth/oauth/{provider}", h.oauthStart)
	mux.HandleFunc("GET /auth/callback", h.oauthCallback)
	mux.HandleFunc("POST /auth/session", h.createSession)
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.HandleFunc("GET /ws/activities", h.wsActivities)
	mux.HandleFunc("GET /ws/chat/{id}", h.wsChat)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
}

// baseData carries the fields every page template reads.
type baseData struct {
	Authenticated bool
	Banner        string
}

func (h *Handler) base(r *http.Request) baseData {
	_, authed := auth.FromContext(r.Context())
	return baseData{Authenticated: authed}
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	h.render(w, "home", h.base(r))
}

type feedPageData struct {
	baseData
	Exhausted bool
	Activity  domain.Activity
}

func (h *Handler) feedPage(w http.ResponseWriter, r *http.Request) {
	data := feedPageData{baseData: h.base(r)}

	claims, authed := auth.FromContext(r.Context())
	if !authed {
		// Anonymous browsing presents the newest activity without an engine;
		// joining requires signing in.
		activities, err := h.gw.Activities(r.Context(), gateway.ActivityFilter{})
		if err != nil {
			h.logger.Error().Err(err).Msg("anonymous feed fetch failed")
		}
		if len(activities) == 0 {
			data.Exhausted = true
		} else {
			data.Activity = activities[0]
		}
		h.render(w, "feed", data)
		return
	}

	engine := h.feeds.Get(claims.UserID)
	if engine.State() == feed.StateLoading {
		engine.Load(r.Context(), gateway.ActivityFilter{})
	}

	if current, ok := engine.Current(); ok {
		data.Activity = current
	} else {
		data.Exhausted = true
	}
	h.render(w, "feed", data)
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath+"?next="+url.QueryEscape("/activities"), http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/activities", http.StatusSeeOther)
		return
	}

	engine := h.feeds.Get(claims.UserID)
	if engine.State() == feed.StateLoading {
		engine.Load(r.Context(), gateway.ActivityFilter{})
	}

	decision := parseDecision(r.PostForm)
	engine.Apply(r.Context(), decision)

	if decision == feed.DecisionExpand {
		if focused, ok := engine.Current(); ok {
			http.Redirect(w, r, "/activities/"+focused.ID, http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, "/activities", http.StatusSeeOther)
}

// parseDecision reads either a named button or a drag vector from the
// decision form. The vector path runs through the same horizontal-first
// resolution as the swipe surface.
func parseDecision(form url.Values) feed.Decision {
	if form.Get("dx") != "" || form.Get("dy") != "" {
		var v feed.Vector
		v.DX = parseFloat(form.Get("dx"))
		v.DY = parseFloat(form.Get("dy"))
		return feed.Resolve(v, feed.DefaultThresholds())
	}

	switch form.Get("decision") {
	case "accept":
		return feed.DecisionAccept
	case "reject":
		return feed.DecisionReject
	case "expand":
		return feed.DecisionExpand
	default:
		return feed.DecisionNone
	}
}

type detailPageData struct {
	baseData
	Activity     domain.Activity
	Participants []domain.Participant
}

func (h *Handler) detailPage(w http.ResponseWriter, r *http.Request) {
	activity, err := h.gw.ActivityByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("activity fetch failed")
	}
	if activity == nil {
		http.NotFound(w, r)
		return
	}

	participants, err := h.gw.Participants(r.Context(), activity.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("participant fetch failed")
	}

	h.render(w, "detail", detailPageData{
		baseData:     h.base(r),
		Activity:     *activity,
		Participants: participants,
	})
}

// activityForm backs the create form.
type activityForm struct {
	Title       string `validate:"required,min=3"`
	Description string `validate:"required"`
	StartTime   string `validate:"required"`
	Location    string `validate:"required"`
	ImageURL    string `validate:"omitempty,url"`
}

type newActivityData struct {
	baseData
	Form   activityForm
	Errors map[string]string
}

func (h *Handler) newActivityPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "new", newActivityData{baseData: h.base(r)})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/activities/new", http.StatusSeeOther)
		return
	}

	form := activityForm{
		Title:       strings.TrimSpace(r.PostForm.Get("title")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
		StartTime:   r.PostForm.Get("start_time"),
		Location:    strings.TrimSpace(r.PostForm.Get("location")),
		ImageURL:    strings.TrimSpace(r.PostForm.Get("image_url")),
	}
	data := newActivityData{baseData: h.base(r), Form: form, Errors: map[string]string{}}

	if err := h.validate.Struct(form); err != nil {
		fillFieldErrors(data.Errors, err)
		h.render(w, "new", data)
		return
	}

	startTime, err := time.Parse("2006-01-02T15:04", form.StartTime)
	if err != nil {
		data.Errors["start_time"] = "must be a valid date and time"
		h.render(w, "new", data)
		return
	}

	inserted, err := h.gw.InsertActivity(r.Context(), domain.Activity{
		Title:       form.Title,
		Description: form.Description,
		HostID:      claims.UserID,
		StartTime:   startTime.UTC(),
		Location:    form.Location,
		ImageURL:    form.ImageURL,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("activity create failed")
		data.Banner = "Could not create the activity. Please try again."
		h.render(w, "new", data)
		return
	}

	http.Redirect(w, r, "/activities/"+inserted.ID, http.StatusSeeOther)
}

type filterForm struct {
	Location    string
	StartAfter  string
	StartBefore string
}

type filterPageData struct {
	baseData
	Form       filterForm
	Activities []domain.Activity
}

func (h *Handler) filterPage(w http.ResponseWriter, r *http.Request) {
	form := filterForm{
		Location:    r.URL.Query().Get("location"),
		StartAfter:  r.URL.Query().Get("start_after"),
		StartBefore: r.URL.Query().Get("start_before"),
	}

	filter := gateway.ActivityFilter{Location: form.Location}
	if parsed, err := time.Parse("2006-01-02", form.StartAfter); err == nil {
		filter.StartAfter = parsed
	}
	if parsed, err := time.Parse("2006-01-02", form.StartBefore); err == nil {
		filter.StartBefore = parsed.Add(24 * time.Hour)
	}

	activities, err := h.gw.Activities(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("filtered fetch failed")
	}

	h.render(w, "filter", filterPageData{
		baseData:   h.base(r),
		Form:       form,
		Activities: activities,
	})
}

type savedPageData struct {
	baseData
	Hosted []domain.Activity
	Joined []domain.Activity
}

func (h *Handler) savedPage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	data := savedPageData{baseData: h.base(r)}

	hosted, err := h.gw.Activities(r.Context(), gateway.ActivityFilter{HostID: claims.UserID})
	if err != nil {
		h.logger.Error().Err(err).Msg("hosted list failed")
	}
	data.Hosted = hosted

	participations, err := h.gw.ParticipationsByUser(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("participation list failed")
	}
	for _, participation := range participations {
		activity, err := h.gw.ActivityByID(r.Context(), participation.ActivityID)
		if err != nil || activity == nil {
			continue
		}
		data.Joined = append(data.Joined, *activity)
	}

	h.render(w, "saved", data)
}

type chatPageData struct {
	baseData
	Activity domain.Activity
	Groups   []chat.DayGroup
	UserID   string
	Draft    string
}

func (h *Handler) chatPage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}

	activity, err := h.gw.ActivityByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("activity fetch failed")
	}
	if activity == nil {
		http.NotFound(w, r)
		return
	}

	messages, err := h.gw.Messages(r.Context(), activity.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("message fetch failed")
	}

	h.render(w, "chat", chatPageData{
		baseData: h.base(r),
		Activity: *activity,
		Groups:   chat.GroupByDay(messages),
		UserID:   claims.UserID,
		Draft:    r.URL.Query().Get("draft"),
	})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/activities", http.StatusSeeOther)
		return
	}

	activityID := r.PathValue("id")
	content := r.PostForm.Get("content")
	chatPath := "/activities/" + activityID + "/chat"

	room := chat.NewRoom(h.gw, activityID, h.logger)
	if _, err := room.Send(r.Context(), claims.UserID, content); err != nil {
		// The draft survives a failed send; validation failures simply
		// re-render without an insert attempt.
		if err != chat.ErrEmptyMessage {
			h.logger.Error().Err(err).Msg("message send failed")
			chatPath += "?draft=" + url.QueryEscape(content)
		}
	}
	http.Redirect(w, r, chatPath, http.StatusSeeOther)
}

type profilePageData struct {
	baseData
	Profile domain.Profile
}

func (h *Handler) profilePage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	profile := h.profileFor(r, claims.UserID)
	if profile == nil {
		http.Redirect(w, r, "/profile/edit", http.StatusSeeOther)
		return
	}
	h.render(w, "profile", profilePageData{baseData: h.base(r), Profile: *profile})
}

// profileForm backs the edit form; interests arrive comma-separated.
type profileForm struct {
	Username  string `validate:"required,min=3"`
	Location  string
	AvatarURL string `validate:"omitempty,url"`
	Interests string
}

type editProfileData struct {
	baseData
	Form   profileForm
	Errors map[string]string
}

func (h *Handler) editProfilePage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	data := editProfileData{baseData: h.base(r)}
	if profile := h.profileFor(r, claims.UserID); profile != nil {
		data.Form = profileForm{
			Username:  profile.Username,
			Location:  profile.Location,
			AvatarURL: profile.AvatarURL,
			Interests: strings.Join(profile.Interests, ", "),
		}
	}
	h.render(w, "profile_edit", data)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/profile/edit", http.StatusSeeOther)
		return
	}

	form := profileForm{
		Username:  strings.TrimSpace(r.PostForm.Get("username")),
		Location:  strings.TrimSpace(r.PostForm.Get("location")),
		AvatarURL: strings.TrimSpace(r.PostForm.Get("avatar_url")),
		Interests: r.PostForm.Get("interests"),
	}
	data := editProfileData{baseData: h.base(r), Form: form, Errors: map[string]string{}}

	if err := h.validate.Struct(form); err != nil {
		fillFieldErrors(data.Errors, err)
		h.render(w, "profile_edit", data)
		return
	}

	interests := splitInterests(form.Interests)
	updated, err := h.gw.UpdateProfile(r.Context(), claims.UserID, gateway.ProfilePatch{
		Username:  &form.Username,
		AvatarURL: &form.AvatarURL,
		Location:  &form.Location,
		Interests: interests,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("profile update failed")
		data.Banner = "Could not save your profile. Please try again."
		h.render(w, "profile_edit", data)
		return
	}
	if updated != nil {
		h.profileStore(claims.UserID).Set(*updated)
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

type loginPageData struct {
	baseData
	Next   string
	Form   loginForm
	Errors map[string]string
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", loginPageData{
		baseData: h.base(r),
		Next:     sanitizeNext(r.URL.Query().Get("next")),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	next := sanitizeNext(r.PostForm.Get("next"))
	data := loginPageData{baseData: h.base(r), Next: next, Form: form, Errors: map[string]string{}}

	if err := h.validate.Struct(form); err != nil {
		fillFieldErrors(data.Errors, err)
		h.render(w, "login", data)
		return
	}

	var session *auth.Session
	var err error
	if r.PostForm.Get("mode") == "signup" {
		session, err = h.authc.SignUp(r.Context(), form.Email, form.Password)
	} else {
		session, err = h.authc.SignIn(r.Context(), form.Email, form.Password)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("sign-in failed")
		data.Banner = "Sign-in failed. Check your email and password."
		h.render(w, "login", data)
		return
	}

	h.establishSession(w, r, session, next)
}

// oauthProviders are the identity providers offered on the sign-in page.
var oauthProviders = map[string]bool{
	"google": true,
}

// oauthStart redirects the browser to the hosted auth service's authorize
// endpoint, asking it to return to /auth/callback afterwards.
func (h *Handler) oauthStart(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if !oauthProviders[provider] {
		http.NotFound(w, r)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	redirectTo := scheme + "://" + r.Host + "/auth/callback"
	if next := sanitizeNext(r.URL.Query().Get("next")); next != "" {
		redirectTo += "?next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, h.authc.OAuthURL(provider, redirectTo), http.StatusSeeOther)
}

type oauthCallbackData struct {
	baseData
	Next string
}

// oauthCallback renders the token bridge page. The auth service returns the
// session in the URL fragment, which never reaches the server, so a small
// script reposts it to /auth/session where the cookie is set.
func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	h.render(w, "callback", oauthCallbackData{
		baseData: h.base(r),
		Next:     sanitizeNext(r.URL.Query().Get("next")),
	})
}

// createSession validates a token posted by the callback bridge and turns
// it into a session cookie.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	token := r.PostForm.Get("access_token")
	claims, err := auth.Parse(token, h.authCfg)
	if err != nil {
		h.logger.Error().Err(err).Msg("oauth token rejected")
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	session := &auth.Session{
		AccessToken:  token,
		RefreshToken: r.PostForm.Get("refresh_token"),
		UserID:       claims.UserID,
		Email:        claims.Email,
		ExpiresAt:    claims.ExpiresAt,
	}
	h.establishSession(w, r, session, sanitizeNext(r.PostForm.Get("next")))
}

// establishSession stores the session cookie, makes sure the profile row
// exists, and redirects to the post-login destination.
func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, session *auth.Session, next string) {
	h.ensureProfile(r, session)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if next == "" {
		next = "/activities"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// ensureProfile creates the profile row lazily on first sign-in.
func (h *Handler) ensureProfile(r *http.Request, session *auth.Session) {
	profile, err := h.gw.ProfileByID(r.Context(), session.UserID)
	if err != nil {
		return
	}
	if profile != nil {
		h.profileStore(session.UserID).Set(*profile)
		return
	}

	username := session.Email
	if at := strings.IndexByte(username, '@'); at > 0 {
		username = username[:at]
	}
	created, err := h.gw.InsertProfile(r.Context(), domain.Profile{
		ID:       session.UserID,
		Username: username,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("lazy profile create failed")
		return
	}
	h.profileStore(session.UserID).Set(*created)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		if err := h.authc.SignOut(r.Context(), cookie.Value); err != nil {
			h.logger.Error().Err(err).Msg("sign-out failed")
		}
	}
	if claims, ok := auth.FromContext(r.Context()); ok {
		h.feeds.Drop(claims.UserID)
		h.profileStore(claims.UserID).Clear()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func fillFieldErrors(out map[string]string, err error) {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return
	}
	for _, fe := range fieldErrs {
		out[snakeCase(fe.Field())] = fieldMessage(fe)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

func snakeCase(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitInterests(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// sanitizeNext keeps post-login redirects on-site.
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}

func parseFloat(raw string) float64 {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
