package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procbse/server/internal/auth"
)

type adminRequest struct {
	Action   string   `json:"action"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	IDs      []string `json:"ids"`
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if !s.adminAuthorized(r, req) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	switch req.Action {
	case "login":
		token, err := auth.NewAdminToken(s.cfg.Admin.JWTSecret, s.cfg.Admin.Username, s.cfg.Admin.TokenTTL)
		if err != nil {
			s.logger.Error("admin token mint failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})

	case "fetch":
		sessions, err := s.store.ListSessions(r.Context())
		if err != nil {
			s.logger.Error("session list failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store_unavailable")
			return
		}
		totalViews, err := s.store.CountPageViews(r.Context())
		if err != nil {
			s.logger.Error("page view count failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store_unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions":   sessions,
			"totalViews": totalViews,
		})

	case "delete":
		if len(req.IDs) == 0 {
			writeError(w, http.StatusBadRequest, "no_ids_provided")
			return
		}
		// Every id must be well formed before any delete is issued; a bulk
		// delete never runs on a partially valid list.
		for _, id := range req.IDs {
			if _, err := uuid.Parse(id); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_id_format")
				return
			}
		}
		deleted, err := s.store.DeleteSessions(r.Context(), req.IDs)
		if err != nil {
			s.logger.Error("session delete failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store_unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"deleted": deleted,
		})

	default:
		writeError(w, http.StatusBadRequest, "invalid_action")
	}
}

// adminAuthorized accepts either the configured credential pair
// (constant-time compared) or a bearer token previously minted by the
// login action. Login itself always requires the credential pair.
func (s *Server) adminAuthorized(r *http.Request, req adminRequest) bool {
	if req.Action != "login" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if _, err := auth.ParseAdminToken(s.cfg.Admin.JWTSecret, tokenString); err == nil {
				return true
			}
			return false
		}
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Admin.Username))
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Admin.Password))
	return userOK&passOK == 1
}
