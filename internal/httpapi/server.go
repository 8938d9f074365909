package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dmarchetti/vera/internal/chat"
	"github.com/dmarchetti/vera/internal/config"
	"github.com/dmarchetti/vera/internal/observability"
	"github.com/dmarchetti/vera/internal/profile"
	"github.com/dmarchetti/vera/internal/transcript"
	"github.com/dmarchetti/vera/internal/upstream"
)

// ownerHeader carries the authenticated user identity. Authentication itself
// is an upstream concern (gateway/middleware); this service only requires
// that the identity is present.
const ownerHeader = "X-User-ID"

// Orchestrator is the chat surface the server exposes.
type Orchestrator interface {
	Exchange(ctx context.Context, owner, message string) (chat.Result, error)
	History(ctx context.Context, owner string) (transcript.Transcript, error)
	Reset(ctx context.Context, owner string) error
}

type Server struct {
	cfg      config.Config
	orch     Orchestrator
	profiles profile.Store
	log      *zap.SugaredLogger
}

func New(cfg config.Config, orch Orchestrator, profiles profile.Store, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:      cfg,
		orch:     orch,
		profiles: profiles,
		log:      log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.ownerAuth)
		r.Get("/chat/history", s.handleHistory)
		r.Post("/chat/message", s.handleSendMessage)
		r.Delete("/chat", s.handleReset)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)
	})

	return r
}

type ctxKey int

const ownerKey ctxKey = 0

func (s *Server) ownerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(ownerHeader))
		if owner == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing "+ownerHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.cfg.UpstreamConfigured() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":              "degraded",
			"upstream_configured": false,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"upstream_configured": true,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tr, err := s.orch.History(r.Context(), ownerFrom(r))
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tr)
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.orch.Exchange(r.Context(), ownerFrom(r), req.Message)
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Reset(r.Context(), ownerFrom(r)); err != nil {
		s.respondChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.profiles.Get(r.Context(), ownerFrom(r))
	if errors.Is(err, profile.ErrNotFound) {
		respondError(w, http.StatusNotFound, "profile_not_found", "no profile stored for this user")
		return
	}
	if err != nil {
		s.log.Errorw("profile lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "persistence_error", "Could not load your profile. Please try again.")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type putProfileRequest struct {
	DisplayName string  `json:"display_name"`
	ResumeLink  *string `json:"resume_link"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req putProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		respondError(w, http.StatusBadRequest, "invalid_profile", "display_name must not be empty")
		return
	}

	rec, err := s.profiles.Upsert(r.Context(), profile.Record{
		Owner:       ownerFrom(r),
		DisplayName: strings.TrimSpace(req.DisplayName),
		ResumeLink:  req.ResumeLink,
	})
	if err != nil {
		s.log.Errorw("profile upsert failed", "error", err)
		respondError(w, http.StatusInternalServerError, "persistence_error", "Could not save your profile. Please try again.")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// respondChatError maps orchestrator failures onto the wire: corrective
// detail for caller mistakes, a generic retry suggestion for upstream and
// persistence faults.
func (s *Server) respondChatError(w http.ResponseWriter, err error) {
	var ue *upstream.Error
	var se *transcript.StoreError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "invalid_message", "Message must not be empty.")
	case errors.Is(err, chat.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, "not_configured", "The assistant is not configured yet. Contact the administrator.")
	case errors.As(err, &ue):
		respondError(w, http.StatusBadGateway, "upstream_error", "The assistant is temporarily unavailable. Please try again.")
	case errors.As(err, &se):
		respondError(w, http.StatusInternalServerError, "persistence_error", "Your message could not be saved. Please try again.")
	default:
		s.log.Errorw("unclassified chat error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
