package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"procbse/server/internal/classifier"
	"procbse/server/internal/config"
	"procbse/server/internal/model"
	"procbse/server/internal/repository"
)

// Indian mobile numbers: one leading digit 6-9 followed by nine more.
var mobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validClasses = map[string]bool{
	"Class 6":  true,
	"Class 7":  true,
	"Class 8":  true,
	"Class 9":  true,
	"Class 10": true,
	"Class 11": true,
	"Class 12": true,
}

const (
	minNameLen = 2
	maxNameLen = 100
)

type Server struct {
	cfg        config.Config
	store      *repository.Store
	classifier *classifier.Client
	redis      *redis.Client
	logger     *zap.Logger
}

func NewServer(cfg config.Config, store *repository.Store, cls *classifier.Client, redisClient *redis.Client, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		classifier: cls,
		redis:      redisClient,
		logger:     logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/session", s.handleGetOrCreateSession)
	r.Get("/api/session/{token}", s.handleRefreshSession)
	r.Post("/api/register", s.handleRegister)
	r.Post("/api/verify-screenshot", s.handleVerifyScreenshot)
	r.Post("/api/drive-link", s.handleDriveLink)
	r.Post("/api/admin", s.handleAdmin)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, content-type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionRequest struct {
	SessionToken string `json:"sessionToken"`
	PagePath     string `json:"pagePath"`
}

func (s *Server) handleGetOrCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if req.SessionToken != "" {
		session, err := s.store.GetSessionByToken(r.Context(), req.SessionToken)
		if err == nil {
			s.trackPageView(req.PagePath, session.SessionToken, r)
			writeJSON(w, http.StatusOK, session)
			return
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("session lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store_unavailable")
			return
		}
		// Unknown token: fall through and mint a fresh session.
	}

	token := uuid.NewString()
	session, err := s.store.CreateSession(r.Context(), uuid.NewString(), token)
	if err != nil {
		s.logger.Error("session create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable")
		return
	}

	sessionsCreated.Inc()
	s.trackPageView(req.PagePath, token, r)
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	session, err := s.store.GetSessionByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		s.logger.Error("session refresh failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable")
		return
	}

	s.trackPageView(r.URL.Query().Get("path"), token, r)
	writeJSON(w, http.StatusOK, session)
}

// trackPageView records one view in the background. Logging must never
// block or fail the visitor-facing call.
func (s *Server) trackPageView(path, token string, r *http.Request) {
	if path == "" {
		path = "/"
	}
	view := model.PageView{
		ID:           uuid.NewString(),
		PagePath:     path,
		SessionToken: token,
	}
	if ua := r.UserAgent(); ua != "" {
		view.UserAgent = &ua
	}
	if ip := clientIP(r); ip != "" {
		view.IPAddress = &ip
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.InsertPageView(ctx, view); err != nil {
			s.logger.Warn("page view insert failed", zap.Error(err))
			return
		}
		pageViews.Inc()
	}()
}

type registerRequest struct {
	SessionToken string `json:"sessionToken"`
	Name         string `json:"name"`
	Class        string `json:"class"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.SessionToken == "" {
		writeError(w, http.StatusBadRequest, "missing_session_token")
		return
	}

	identity, errCode := validateIdentity(req)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	// Fast-path duplicate check for a friendly error. The partial unique
	// index is the authoritative guard; a racing insert still surfaces as
	// ErrDuplicateMobile below.
	taken, err := s.store.MobileRegistered(r.Context(), identity.Mobile)
	if err != nil {
		s.logger.Error("duplicate mobile check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "mobile_already_registered")
		return
	}

	err = s.store.CompleteRegistration(r.Context(), req.SessionToken, identity, time.Now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicateMobile):
		writeError(w, http.StatusConflict, "mobile_already_registered")
		return
	case errors.Is(err, repository.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already_registered")
		return
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	default:
		s.logger.Error("registration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable")
		return
	}

	registrations.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validateIdentity(req registerRequest) (model.Identity, string) {
	name := strings.TrimSpace(req.Name)
	if len(name) < minNameLen || len(name) > maxNameLen {
		return model.Identity{}, "invalid_name"
	}

	mobile := strings.TrimSpace(req.Mobile)
	if !mobilePattern.MatchString(mobile) {
		return model.Identity{}, "invalid_mobile"
	}

	identity := model.Identity{Name: name, Mobile: mobile}

	if email := strings.TrimSpace(req.Email); email != "" {
		if !emailPattern.MatchString(email) {
			return model.Identity{}, "invalid_email"
		}
		identity.Email = &email
	}

	if class := strings.TrimSpace(req.Class); class != "" {
		if !validClasses[class] {
			return model.Identity{}, "invalid_class"
		}
		identity.Class = &class
	}

	return identity, ""
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
