// Package api exposes the JSON surface consumed by the mobile tab app.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"example.com/spring/internal/auth"
	"example.com/spring/internal/chat"
	"example.com/spring/internal/domain"
	"example.com/spring/internal/feed"
	"example.com/spring/internal/gateway"
)

// Handler coordinates API requests with the gateway and the per-user feed
// engines.
type Handler struct {
	gw       gateway.Gateway
	authc    *auth.Client
	feeds    *feed.Registry
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler builds a Handler. authc may be nil when no hosted auth service
// is configured; the refresh endpoint then reports unavailable.
func NewHandler(gw gateway.Gateway, authc *auth.Client, feeds *feed.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		gw:       gw,
		authc:    authc,
		feeds:    feeds,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/feed", h.feedCurrent)
	mux.HandleFunc("POST /v1/feed/decision", h.feedDecision)
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("GET /v1/activities/{id}/messages", h.listMessages)
	mux.HandleFunc("POST /v1/activities/{id}/messages", h.sendMessage)
	mux.HandleFunc("GET /v1/me/activities", h.myActivities)
	mux.HandleFunc("GET /v1/profile", h.getProfile)
	mux.HandleFunc("PATCH /v1/profile", h.updateProfile)
	mux.HandleFunc("POST /v1/auth/refresh", h.refreshSession)
	mux.HandleFunc("GET /healthz", healthz)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// refreshSession exchanges a refresh token for a fresh session so the
// mobile app can renew expiring access tokens.
func (h *Handler) refreshSession(w http.ResponseWriter, r *http.Request) {
	if h.authc == nil {
		writeError(w, http.StatusServiceUnavailable, "auth_unavailable", "no auth service configured")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "refresh_token is required")
		return
	}

	session, err := h.authc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Error().Err(err).Msg("session refresh failed")
		writeError(w, http.StatusUnauthorized, "refresh_failed", "refresh token rejected")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// FeedView is the presented card plus the engine state.
type FeedView struct {
	State    string           `json:"state"`
	Activity *domain.Activity `json:"activity,omitempty"`
}

func (h *Handler) feedCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	engine := h.feeds.Get(claims.UserID)
	if engine.State() == feed.StateLoading {
		engine.Load(r.Context(), gateway.ActivityFilter{})
	}

	writeJSON(w, http.StatusOK, h.feedView(engine))
}

// DecisionRequest is a drag-release vector from the swipe surface.
type DecisionRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// DecisionResponse reports the resolved decision and the next card.
type DecisionResponse struct {
	Decision string   `json:"decision"`
	Feed     FeedView `json:"feed"`
}

func (h *Handler) feedDecision(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	engine := h.feeds.Get(claims.UserID)
	if engine.State() == feed.StateLoading {
		engine.Load(r.Context(), gateway.ActivityFilter{})
	}

	decision := engine.Swipe(r.Context(), feed.Vector{DX: req.DX, DY: req.DY})
	writeJSON(w, http.StatusOK, DecisionResponse{
		Decision: decision.String(),
		Feed:     h.feedView(engine),
	})
}

func (h *Handler) feedView(engine *feed.Engine) FeedView {
	view := FeedView{State: engine.State().String()}
	if activity, ok := engine.Current(); ok {
		view.Activity = &activity
	}
	return view
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	filter := gateway.ActivityFilter{
		HostID:   r.URL.Query().Get("host_id"),
		Location: r.URL.Query().Get("location"),
	}
	if raw := r.URL.Query().Get("start_after"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.StartAfter = parsed
		}
	}
	if raw := r.URL.Query().Get("start_before"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.StartBefore = parsed
		}
	}

	activities, err := h.gw.Activities(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("activity list failed")
		writeError(w, http.StatusBadGateway, "backend_error", "unable to list activities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": activities})
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Title       string   `json:"title" validate:"required,min=3"`
	Description string   `json:"description" validate:"required"`
	StartTime   string   `json:"start_time" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url"`
	ImageURLs   []string `json:"image_urls" validate:"omitempty,dive,url"`
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start_time must be RFC 3339")
		return
	}

	inserted, err := h.gw.InsertActivity(r.Context(), domain.Activity{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		HostID:      claims.UserID,
		StartTime:   startTime.UTC(),
		Location:    strings.TrimSpace(req.Location),
		ImageURL:    req.ImageURL,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("activity create failed")
		writeError(w, http.StatusBadGateway, "backend_error", "unable to create activity")
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	activity, err := h.gw.ActivityByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("activity fetch failed")
		writeError(w, http.StatusBadGateway, "backend_error", "unable to fetch activity")
		return
	}
	if activity == nil {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	messages, err := h.gw.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("message list failed")
		writeError(w, http.StatusBadGateway, "backend_error", "unable to list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": messages})
}

// SendMessageRequest is the payload for posting a chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	room := chat.NewRoom(h.gw, r.PathValue("id"), h.logger)
	inserted, err := room.Send(r.Context(), claims.UserID, req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrNoSender) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "backend_error", "unable to send message")
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

// MyActivitiesResponse lists what the user hosts and what they joined.
type MyActivitiesResponse struct {
	Hosted []domain.Activity `json:"hosted"`
	Joined []domain.Activity `json:"joined"`
}

func (h *Handler) myActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	hosted, err := h.gw.Activities(r.Context(), gateway.ActivityFilter{HostID: claims.UserID})
	if err != nil {
		h.logger.Error().Err(err).Msg("hosted list failed")
		hosted = nil
	}

	var joined []domain.Activity
	participations, err := h.gw.ParticipationsByUser(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("participation list failed")
	}
	for _, participation := range participations {
		activity, err := h.gw.ActivityByID(r.Context(), participation.ActivityID)
		if err != nil || activity == nil {
			continue
		}
		joined = append(joined, *activity)
	}

	writeJSON(w, http.StatusOK, MyActivitiesResponse{Hosted: hosted, Joined: joined})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	profile, err := h.gw.ProfileByID(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile fetch failed")
		writeError(w, http.StatusBadGateway, "backend_error", "unable to fetch profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfileRequest is a partial profile edit.
type UpdateProfileRequest struct {
	Username  *string  `json:"username" validate:"omitempty,min=3"`
	AvatarURL *string  `json:"avatar_url" validate:"omitempty,url"`
	Location  *string  `json:"location"`
	Interests []string `json:"interests"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	updated, err := h.gw.UpdateProfile(r.Context(), claims.UserID, gateway.ProfilePatch{
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		Location:  req.Location,
		Interests: req.Interests,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("profile update failed")
		writeError(w, http.StatusBadGateway, "backend_error", "unable to update profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func writeValidation(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"type":   "validation_failed",
			"fields": fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
