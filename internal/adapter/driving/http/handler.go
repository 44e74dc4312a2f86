// Package httphandler is the driving adapter that serves the local JSON API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/osmpanel/internal/application"
	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Login is the login use case the handler drives.
type Login interface {
	Begin(ctx context.Context) (string, error)
	Complete(ctx context.Context, callbackURI string) (model.Session, error)
	Cancel()
	Status() application.FlowStatus
}

// Sessions is the session use case the handler drives.
type Sessions interface {
	Current() (model.Session, bool)
	Refresh(ctx context.Context) (model.Session, error)
	Logout(ctx context.Context) error
}

// Achievements is the read side of the achievement engine.
type Achievements interface {
	Progress(ctx context.Context) ([]application.AchievementProgress, error)
	Links(ctx context.Context) ([]application.LinkProgress, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	login        Login
	sessions     Sessions
	achievements Achievements
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(login Login, sessions Sessions, achievements Achievements, logger *slog.Logger) *Handler {
	return &Handler{
		login:        login,
		sessions:     sessions,
		achievements: achievements,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. /metrics serves gatherer.
func NewServeMux(h *Handler, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", h.BeginLogin)
	mux.HandleFunc("DELETE /api/v1/auth/login", h.CancelLogin)
	mux.HandleFunc("POST /api/v1/auth/callback", h.CompleteLogin)
	mux.HandleFunc("GET /api/v1/auth/state", h.LoginState)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("POST /api/v1/session/refresh", h.RefreshSession)
	mux.HandleFunc("POST /api/v1/session/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/achievements", h.ListAchievements)
	mux.HandleFunc("GET /api/v1/links", h.ListLinks)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// BeginLogin starts an authorization flow and returns the authorize URL.
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.login.Begin(r.Context())
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	resp := toFlowResponse(h.login.Status())
	resp.AuthorizeURL = authURL
	writeJSON(w, http.StatusOK, resp)
}

// CancelLogin aborts the in-progress authorization flow.
func (h *Handler) CancelLogin(w http.ResponseWriter, _ *http.Request) {
	h.login.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// LoginState reports the authorization flow state.
func (h *Handler) LoginState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toFlowResponse(h.login.Status()))
}

// CompleteLogin accepts the provider redirect, finishes the handshake and
// returns the provisioned session.
func (h *Handler) CompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CallbackURI == "" {
		writeError(w, http.StatusBadRequest, "callback_uri is required")
		return
	}

	session, err := h.login.Complete(r.Context(), req.CallbackURI)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// GetSession returns the current session.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	session, ok := h.sessions.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// RefreshSession re-syncs profile, statistics and achievements.
func (h *Handler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		h.logger.Error("failed to refresh session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Logout clears credentials and the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Error("failed to log out", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAchievements returns every achievement with the user's current rank.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	progress, err := h.achievements.Progress(r.Context())
	if err != nil {
		h.logger.Error("failed to list achievements", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AchievementResponse, 0, len(progress))
	for _, p := range progress {
		resp = append(resp, toAchievementResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListLinks returns every link with its unlock state.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.achievements.Links(r.Context())
	if err != nil {
		h.logger.Error("failed to list links", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, toLinkResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeLoginError maps handshake failures to status codes: a rejected or
// unexpected callback is the client's fault, a provider failure is a bad
// gateway and a failed credential write is ours.
func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrFlowCanceled) {
		writeError(w, http.StatusConflict, "authorization flow was canceled")
		return
	}

	var authErr *model.AuthorizationError
	if !errors.As(err, &authErr) {
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusBadGateway
	message := "authorization failed"
	switch {
	case authErr.Reason == model.ReasonInvalidCallback:
		status = http.StatusBadRequest
		message = "invalid callback"
	case authErr.Reason == model.ReasonNoPendingGrant:
		status = http.StatusConflict
		message = "no authorization pending"
	case authErr.Stage == model.StagePersist:
		status = http.StatusInternalServerError
		message = "could not store credentials"
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			status = http.StatusServiceUnavailable
			message = driven.ErrEncryptionKeyNotSet.Error()
		}
	}

	h.logger.Warn("login failed", "stage", authErr.Stage, "reason", authErr.Reason, "error", authErr.Err)
	writeJSON(w, status, errorResponse{
		Error:  message,
		Stage:  string(authErr.Stage),
		Reason: string(authErr.Reason),
	})
}
