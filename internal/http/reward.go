package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type driveLinkRequest struct {
	SessionToken string `json:"sessionToken"`
}

type notEligibleResponse struct {
	Error         string `json:"error"`
	Step1Verified bool   `json:"step1_verified"`
	Step2Verified bool   `json:"step2_verified"`
}

// handleDriveLink is the one place the reward link leaves the server.
// Eligibility is re-read from the store on every call; the client's idea
// of its own progress is never trusted.
func (s *Server) handleDriveLink(w http.ResponseWriter, r *http.Request) {
	var req driveLinkRequest
	if err := decodeJSON(r, &req); err != nil || req.SessionToken == "" {
		writeError(w, http.StatusBadRequest, "missing_session_token")
		return
	}

	session, err := s.store.GetSessionByToken(r.Context(), req.SessionToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		s.logger.Error("session lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable")
		return
	}

	if !session.Step1Verified || !session.Step2Verified {
		writeJSON(w, http.StatusForbidden, notEligibleResponse{
			Error:         "steps_incomplete",
			Step1Verified: session.Step1Verified,
			Step2Verified: session.Step2Verified,
		})
		return
	}

	// First-write-wins: a repeat eligible call re-returns the link without
	// touching the disclosure timestamp.
	if err := s.store.MarkDriveLinkAccessed(r.Context(), req.SessionToken, time.Now().UTC()); err != nil {
		s.logger.Error("reward disclosure write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable")
		return
	}

	if !session.DriveLinkAccessed {
		rewardDisclosures.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"driveLink": s.cfg.Reward.DriveLink,
	})
}
