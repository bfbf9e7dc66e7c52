package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
)

type createSessionRequest struct {
	TutorID     string `json:"tutorId"`
	Subject     string `json:"subject"`
	ScheduledAt string `json:"scheduledAt"`
}

type sessionResponse struct {
	ID          string              `json:"id"`
	TutorID     string              `json:"tutorId"`
	StudentID   string              `json:"studentId"`
	Subject     string              `json:"subject"`
	ScheduledAt string              `json:"scheduledAt"`
	Status      model.SessionStatus `json:"status"`
	CreatedAt   string              `json:"createdAt"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.TutorID == "" || req.Subject == "" || req.ScheduledAt == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	// Accepted as given: a past date is not rejected and overlapping
	// requests for the same tutor are not detected.
	scheduledAt, err := parseDateTime(req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scheduled_at")
		return
	}

	tutorRole, err := s.store.GetRole(r.Context(), req.TutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "tutor_not_found")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	if tutorRole != model.RoleTutor {
		writeError(w, http.StatusNotFound, "tutor_not_found")
		return
	}

	now := time.Now().UTC()
	session := model.SessionRequest{
		ID:          uuid.NewString(),
		TutorID:     req.TutorID,
		StudentID:   claims.AccountID,
		Subject:     req.Subject,
		ScheduledAt: scheduledAt,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSessionRequest(r.Context(), session); err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionToResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	role, _ := roleFromContext(r.Context())

	var sessions []model.SessionRequest
	var err error
	switch role {
	case model.RoleStudent:
		sessions, err = s.store.ListSessionsByStudent(r.Context(), claims.AccountID)
	case model.RoleTutor:
		sessions, err = s.store.ListSessionsByTutor(r.Context(), claims.AccountID)
	case model.RoleAdmin:
		sessions, err = s.store.ListAllSessions(r.Context())
	default:
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionToResponse(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleTransitionSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id")
		return
	}

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	next, ok := model.ParseSessionStatus(req.Status)
	if !ok || !next.Terminal() {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	session, err := s.store.GetSessionRequest(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	if session.TutorID != claims.AccountID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	// The status guard lives inside the UPDATE, so even if another
	// transition lands between the read above and this write, only one
	// of them takes effect.
	updated, err := s.store.TransitionSessionStatus(r.Context(), sessionID, next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "invalid_transition")
			return
		}
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionToResponse(updated))
}

func sessionToResponse(session model.SessionRequest) sessionResponse {
	return sessionResponse{
		ID:          session.ID,
		TutorID:     session.TutorID,
		StudentID:   session.StudentID,
		Subject:     session.Subject,
		ScheduledAt: session.ScheduledAt.UTC().Format(time.RFC3339),
		Status:      session.Status,
		CreatedAt:   session.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// parseDateTime accepts RFC 3339 as well as the shorter value an HTML
// datetime-local input produces.
func parseDateTime(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
