package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"procbse/server/internal/model"
)

var (
	// ErrDuplicateMobile means another completed registration already holds
	// the mobile number. Raised by the partial unique index, which is the
	// authoritative check; MobileRegistered is only the friendly fast path.
	ErrDuplicateMobile = errors.New("mobile already registered")

	// ErrAlreadyRegistered means the session completed registration earlier;
	// identity fields are immutable after that.
	ErrAlreadyRegistered = errors.New("session already registered")
)

const uniqueViolation = "23505"

const sessionColumns = `
	id, session_token,
	student_name, student_class, student_email, student_mobile,
	registration_completed, registration_completed_at,
	step1_verified, step1_verified_at, step1_screenshot_url,
	step2_verified, step2_verified_at, step2_screenshot_url,
	drive_link_accessed, drive_link_accessed_at,
	created_at`

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

func (s *Store) CreateSession(ctx context.Context, id, token string) (model.Session, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_sessions (id, session_token)
		VALUES ($1, $2)
		RETURNING`+sessionColumns, id, token)
	return scanSession(row)
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (model.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+sessionColumns+`
		FROM user_sessions
		WHERE session_token = $1
	`, token)
	return scanSession(row)
}

// MobileRegistered reports whether a completed registration already holds
// the number. Subject to a read-then-write race; CompleteRegistration is
// the authoritative guard.
func (s *Store) MobileRegistered(ctx context.Context, mobile string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_sessions
			WHERE student_mobile = $1 AND registration_completed
		)
	`, mobile).Scan(&exists)
	return exists, err
}

func (s *Store) CompleteRegistration(ctx context.Context, token string, identity model.Identity, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_sessions
		SET student_name = $1,
		    student_class = $2,
		    student_email = $3,
		    student_mobile = $4,
		    registration_completed = true,
		    registration_completed_at = $5
		WHERE session_token = $6 AND NOT registration_completed
	`, identity.Name, identity.Class, identity.Email, identity.Mobile, at, token)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateMobile
		}
		return fmt.Errorf("failed to complete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var completed bool
		if err := s.pool.QueryRow(ctx, `
			SELECT registration_completed FROM user_sessions WHERE session_token = $1
		`, token).Scan(&completed); err != nil {
			return err
		}
		if completed {
			return ErrAlreadyRegistered
		}
		return pgx.ErrNoRows
	}
	return nil
}

// MarkStepVerified flips the step flag exactly once; the conditional WHERE
// keeps the timestamp meaning "first verified at" under resubmission or
// concurrent verdicts.
func (s *Store) MarkStepVerified(ctx context.Context, token string, step int, screenshotRef string, at time.Time) error {
	var query string
	switch step {
	case 1:
		query = `
			UPDATE user_sessions
			SET step1_verified = true, step1_verified_at = $1, step1_screenshot_url = $2
			WHERE session_token = $3 AND NOT step1_verified`
	case 2:
		query = `
			UPDATE user_sessions
			SET step2_verified = true, step2_verified_at = $1, step2_screenshot_url = $2
			WHERE session_token = $3 AND NOT step2_verified`
	default:
		return fmt.Errorf("invalid step number %d", step)
	}
	_, err := s.pool.Exec(ctx, query, at, screenshotRef, token)
	return err
}

// MarkDriveLinkAccessed records the first disclosure. Zero rows affected
// means it was already recorded, which is fine.
func (s *Store) MarkDriveLinkAccessed(ctx context.Context, token string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE user_sessions
		SET drive_link_accessed = true, drive_link_accessed_at = $1
		WHERE session_token = $2 AND NOT drive_link_accessed
	`, at, token)
	return err
}

func (s *Store) InsertPageView(ctx context.Context, view model.PageView) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO page_views (id, page_path, session_token, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5)
	`, view.ID, view.PagePath, view.SessionToken, view.UserAgent, view.IPAddress)
	return err
}

func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+sessionColumns+`
		FROM user_sessions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			s.logger.Error("failed to scan session row", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) CountPageViews(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM page_views`).Scan(&count)
	return count, err
}

func (s *Store) DeleteSessions(ctx context.Context, ids []string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (model.Session, error) {
	var session model.Session
	err := row.Scan(
		&session.ID,
		&session.SessionToken,
		&session.StudentName,
		&session.StudentClass,
		&session.StudentEmail,
		&session.StudentMobile,
		&session.RegistrationCompleted,
		&session.RegistrationCompletedAt,
		&session.Step1Verified,
		&session.Step1VerifiedAt,
		&session.Step1ScreenshotURL,
		&session.Step2Verified,
		&session.Step2VerifiedAt,
		&session.Step2ScreenshotURL,
		&session.DriveLinkAccessed,
		&session.DriveLinkAccessedAt,
		&session.CreatedAt,
	)
	return session, err
}
