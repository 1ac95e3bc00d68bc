package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"procbse/server/internal/classifier"
)

const (
	// MaxScreenshotBytes bounds the decoded image. Checked before any
	// classifier call so oversized uploads cost nothing upstream.
	MaxScreenshotBytes = 5 << 20

	// maxVerifyBodyBytes bounds the encoded transport payload.
	maxVerifyBodyBytes = 10 << 20
)

type verifyRequest struct {
	SessionToken     string `json:"sessionToken"`
	StepNumber       int    `json:"stepNumber"`
	ScreenshotBase64 string `json:"screenshotBase64"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason"`
	Step     int    `json:"step"`
}

func (s *Server) handleVerifyScreenshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVerifyBodyBytes)

	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "payload_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if req.SessionToken == "" || req.ScreenshotBase64 == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.StepNumber != 1 && req.StepNumber != 2 {
		writeError(w, http.StatusBadRequest, "invalid_step")
		return
	}

	imageDataURL, errCode := validateScreenshot(req.ScreenshotBase64)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
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

	// The UI hides the upload cards behind registration and step order, but
	// that is convenience only; eligibility is re-derived here every time.
	if !session.RegistrationCompleted {
		writeError(w, http.StatusForbidden, "registration_required")
		return
	}
	if req.StepNumber == 2 && !session.Step1Verified {
		writeError(w, http.StatusForbidden, "step1_required")
		return
	}

	if !s.allowSubmission(r, req.SessionToken, req.StepNumber) {
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	verdict, err := s.classifier.Verify(r.Context(), req.StepNumber, imageDataURL)
	if err != nil {
		switch {
		case errors.Is(err, classifier.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate_limited")
		case errors.Is(err, classifier.ErrUnavailable):
			writeError(w, http.StatusPaymentRequired, "service_unavailable")
		default:
			s.logger.Error("screenshot verification failed",
				zap.Int("step", req.StepNumber),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "verification_failed")
		}
		return
	}

	if verdict.Verified {
		ref := fmt.Sprintf("screenshot_step%d_%s", req.StepNumber, req.SessionToken)
		if err := s.store.MarkStepVerified(r.Context(), req.SessionToken, req.StepNumber, ref, time.Now().UTC()); err != nil {
			s.logger.Error("step verification write failed",
				zap.Int("step", req.StepNumber),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store_unavailable")
			return
		}
	}

	verifications.WithLabelValues(
		fmt.Sprintf("%d", req.StepNumber),
		verdictLabel(verdict.Verified),
	).Inc()

	writeJSON(w, http.StatusOK, verifyResponse{
		Verified: verdict.Verified,
		Reason:   verdict.Reason,
		Step:     req.StepNumber,
	})
}

// validateScreenshot strips any data-URL prefix, decodes the payload,
// enforces the size ceiling and checks the bytes actually look like an
// image. Returns a normalized data URL for the classifier.
func validateScreenshot(payload string) (string, string) {
	encoded := payload
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx == -1 {
			return "", "invalid_image"
		}
		encoded = encoded[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "invalid_image"
	}
	if len(raw) > MaxScreenshotBytes {
		return "", "image_too_large"
	}

	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", "invalid_image"
	}

	return "data:" + mime + ";base64," + encoded, ""
}

// allowSubmission applies an optional per-session, per-step cooldown so a
// stuck client cannot hammer the paid classifier. Without redis there is
// no cooldown, matching how the attendance flow treats redis as optional.
func (s *Server) allowSubmission(r *http.Request, token string, step int) bool {
	if s.redis == nil || s.cfg.Redis.SubmitCooldown <= 0 {
		return true
	}
	key := fmt.Sprintf("verify_cooldown:%s:%d", token, step)
	ok, err := s.redis.SetNX(r.Context(), key, "1", s.cfg.Redis.SubmitCooldown).Result()
	if err != nil {
		// A degraded cooldown store must not block verification.
		s.logger.Warn("cooldown check failed", zap.Error(err))
		return true
	}
	return ok
}

func verdictLabel(verified bool) string {
	if verified {
		return "verified"
	}
	return "rejected"
}
