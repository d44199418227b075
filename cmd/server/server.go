package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/internal/pipeline"
	"github.com/Alias1177/ProfitPredictor/internal/presentation"
	"github.com/Alias1177/ProfitPredictor/internal/profile"
	"github.com/Alias1177/ProfitPredictor/internal/validation"
	"github.com/Alias1177/ProfitPredictor/models"
)

// profiles is the part of profile.Service the server uses
type profiles interface {
	Nickname(ctx context.Context, userID string) (string, error)
	UpdateNickname(ctx context.Context, userID, nickname string) (string, error)
	Forget(userID string)
}

type Server struct {
	pipeline *pipeline.Pipeline
	sessions models.SessionProvider
	profiles profiles // nil when no database is configured
	router   *chi.Mux
	logger   zerolog.Logger
}

func NewServer(p *pipeline.Pipeline, sessions models.SessionProvider, prof profiles) *Server {
	s := &Server{
		pipeline: p,
		sessions: sessions,
		profiles: prof,
		logger:   log.With().Str("component", "http_server").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Post("/api/v1/predict", s.handlePredict)
		r.Get("/api/v1/profile", s.handleGetProfile)
		r.Put("/api/v1/profile", s.handleUpdateProfile)
		r.Post("/api/v1/logout", s.handleLogout)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionKey{}).(*models.Session)
	return session
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireSession answers 401 when the request has no signed-in session
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.CurrentSession(r.Context(), bearerToken(r))
		if err != nil {
			s.logger.Error().Err(err).Msg("Session lookup failed")
			respondError(w, http.StatusBadGateway, "auth service unavailable", err)
			return
		}
		if session == nil {
			respondError(w, http.StatusUnauthorized, "AuthRequired", models.ErrAuthRequired)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"profiles": s.profiles != nil,
	})
}

// predictRequest accepts spends as JSON strings or numbers
type predictRequest struct {
	ModelType      string          `json:"model_type"`
	RDSpend        json.RawMessage `json:"rd_spend"`
	AdminSpend     json.RawMessage `json:"admin_spend"`
	MarketingSpend json.RawMessage `json:"marketing_spend"`
	State          string          `json:"state"`
}

func (req predictRequest) form() validation.Form {
	return validation.Form{
		ModelType:      req.ModelType,
		RDSpend:        rawValue(req.RDSpend),
		AdminSpend:     rawValue(req.AdminSpend),
		MarketingSpend: rawValue(req.MarketingSpend),
		Region:         req.State,
	}
}

func rawValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session := sessionFrom(r.Context())
	logger := s.logger.With().Str("user_id", session.User.ID).Logger()
	presenter := presentation.NewPresenter(presentation.SinkFunc(func(u presentation.Update) {
		logger.Debug().Str("state", string(u.State)).Str("status", u.StatusText()).Msg("Prediction update")
	}))

	outcome, err := s.pipeline.Submit(r.Context(), session.User.ID, req.form(), presenter)
	if err != nil {
		var verr *validation.ValidationError
		switch {
		case errors.As(err, &verr):
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "ValidationError",
				"fields": verr.Fields(),
			})
		case errors.Is(err, models.ErrSubmissionInFlight):
			respondError(w, http.StatusConflict, "SubmissionInFlight", err)
		case models.IsRemoteFailure(err):
			respondJSON(w, http.StatusBadGateway, presentation.NewView(presentation.Update{
				State: models.StateError,
				Err:   err,
			}))
		default:
			respondError(w, http.StatusInternalServerError, "prediction failed", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, presentation.NewView(outcome.Update))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	resp := map[string]string{
		"id":    session.User.ID,
		"email": session.User.Email,
	}

	if s.profiles != nil {
		nickname, err := s.profiles.Nickname(r.Context(), session.User.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load profile", err)
			return
		}
		resp["nickname"] = nickname
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		respondError(w, http.StatusServiceUnavailable, "profiles are not configured", nil)
		return
	}

	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session := sessionFrom(r.Context())
	nickname, err := s.profiles.UpdateNickname(r.Context(), session.User.ID, req.Nickname)
	if err != nil {
		if errors.Is(err, profile.ErrEmptyNickname) {
			respondError(w, http.StatusUnprocessableEntity, "nickname is required", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update profile", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":       session.User.ID,
		"nickname": nickname,
	})
}

// handleLogout never fails: auth errors are logged and local state is
// dropped regardless.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	if err := s.sessions.SignOut(r.Context(), session.AccessToken); err != nil {
		s.logger.Warn().Err(err).Str("user_id", session.User.ID).Msg("Sign-out failed, clearing local state anyway")
	}
	if s.profiles != nil {
		s.profiles.Forget(session.User.ID)
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Int("status", status).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
