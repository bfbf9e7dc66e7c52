package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
)

const sessionColumns = `id, tutor_id, student_id, subject, scheduled_at, status, created_at, updated_at`

func scanSession(row pgx.Row) (model.SessionRequest, error) {
	var session model.SessionRequest
	err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.StudentID,
		&session.Subject,
		&session.ScheduledAt,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	return session, err
}

func (s *Store) CreateSessionRequest(ctx context.Context, session model.SessionRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_requests (id, tutor_id, student_id, subject, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.TutorID, session.StudentID, session.Subject, session.ScheduledAt, session.Status, session.CreatedAt, session.UpdatedAt)
	return err
}

func (s *Store) GetSessionRequest(ctx context.Context, sessionID string) (model.SessionRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM session_requests
		WHERE id = $1
	`, sessionID)
	return scanSession(row)
}

// TransitionSessionStatus moves a session out of PENDING with a status
// guard in the UPDATE itself, so two concurrent transitions on the same
// record cannot both succeed. pgx.ErrNoRows means the guard failed: the
// record is either missing or already terminal, and the caller decides
// which by re-reading it.
func (s *Store) TransitionSessionStatus(ctx context.Context, sessionID string, next model.SessionStatus) (model.SessionRequest, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE session_requests
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING `+sessionColumns,
		next, sessionID, model.StatusPending)
	return scanSession(row)
}

func (s *Store) ListSessionsByStudent(ctx context.Context, studentID string) ([]model.SessionRequest, error) {
	return s.listSessions(ctx, `
		SELECT `+sessionColumns+`
		FROM session_requests
		WHERE student_id = $1
		ORDER BY created_at DESC
	`, studentID)
}

func (s *Store) ListSessionsByTutor(ctx context.Context, tutorID string) ([]model.SessionRequest, error) {
	return s.listSessions(ctx, `
		SELECT `+sessionColumns+`
		FROM session_requests
		WHERE tutor_id = $1
		ORDER BY created_at DESC
	`, tutorID)
}

func (s *Store) ListAllSessions(ctx context.Context) ([]model.SessionRequest, error) {
	return s.listSessions(ctx, `
		SELECT `+sessionColumns+`
		FROM session_requests
		ORDER BY created_at DESC
	`)
}

func (s *Store) listSessions(ctx context.Context, query string, args ...interface{}) ([]model.SessionRequest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.SessionRequest
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
