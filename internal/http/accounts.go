package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/crypto"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/repository"
)

type updateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`

	// tutor fields
	Subjects        *string `json:"subjects,omitempty"`
	Qualification   *string `json:"qualification,omitempty"`
	ExperienceYears *int    `json:"experienceYears,omitempty"`
	Bio             *string `json:"bio,omitempty"`

	// student fields
	Class         *string `json:"class,omitempty"`
	School        *string `json:"school,omitempty"`
	ContactNumber *string `json:"contactNumber,omitempty"`
	Board         *string `json:"board,omitempty"`
}

// handleUpdateProfile lets an account edit its own record. Only the
// provided fields are written; role and email never change here.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	role, _ := roleFromContext(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.ExperienceYears != nil && *req.ExperienceYears < 0 {
		writeError(w, http.StatusBadRequest, "invalid_experience_years")
		return
	}

	update := repository.AccountUpdate{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != "" {
			update.Name = &name
		}
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		update.PasswordHash = &hash
	}

	account, err := s.store.UpdateAccount(r.Context(), claims.AccountID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "account_not_found")
			return
		}
		s.writeStoreError(w, err)
		return
	}

	switch role {
	case model.RoleTutor:
		err = s.store.UpdateTutorProfile(r.Context(), claims.AccountID, repository.TutorProfileUpdate{
			Subjects:        req.Subjects,
			Qualification:   req.Qualification,
			ExperienceYears: req.ExperienceYears,
			Bio:             req.Bio,
		})
	case model.RoleStudent:
		err = s.store.UpdateStudentProfile(r.Context(), claims.AccountID, repository.StudentProfileUpdate{
			Class:         req.Class,
			School:        req.School,
			ContactNumber: req.ContactNumber,
			Board:         req.Board,
		})
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.writeStoreError(w, err)
		return
	}

	summary, err := s.accountSummaryFor(r.Context(), account)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type setVerifiedRequest struct {
	IsVerified *bool `json:"isVerified"`
}

func (s *Server) handleSetVerified(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing_account_id")
		return
	}

	var req setVerifiedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.IsVerified == nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// Verification only exists for tutor profiles; the write is a no-op
	// with a 404 for any other account.
	if err := s.store.SetTutorVerified(r.Context(), accountID, *req.IsVerified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "tutor_not_found")
			return
		}
		s.writeStoreError(w, err)
		return
	}

	account, err := s.store.GetAccountByID(r.Context(), accountID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	summary, err := s.accountSummaryFor(r.Context(), account)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
