package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/auth"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/crypto"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`

	// tutor fields
	Subjects        string `json:"subjects,omitempty"`
	Qualification   string `json:"qualification,omitempty"`
	ExperienceYears int    `json:"experienceYears,omitempty"`
	Bio             string `json:"bio,omitempty"`

	// student fields
	Class         string `json:"class,omitempty"`
	School        string `json:"school,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
	Board         string `json:"board,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	Account      accountSummary `json:"account"`
}

type accountSummary struct {
	ID      string                 `json:"id"`
	Email   string                 `json:"email"`
	Name    string                 `json:"name"`
	Role    model.Role             `json:"role"`
	Tutor   *tutorProfilePayload   `json:"tutorProfile,omitempty"`
	Student *studentProfilePayload `json:"studentProfile,omitempty"`
}

type tutorProfilePayload struct {
	Subjects        string `json:"subjects"`
	Qualification   string `json:"qualification"`
	ExperienceYears int    `json:"experienceYears"`
	Bio             string `json:"bio"`
	IsVerified      bool   `json:"isVerified"`
}

type studentProfilePayload struct {
	Class         string `json:"class"`
	School        string `json:"school"`
	ContactNumber string `json:"contactNumber"`
	Board         string `json:"board"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	role, ok := model.ParseRole(req.Role)
	if !ok || role == model.RoleAdmin {
		// Admin accounts are provisioned by an existing admin, never by
		// open signup.
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if req.ExperienceYears < 0 {
		writeError(w, http.StatusBadRequest, "invalid_experience_years")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var tutor *model.TutorProfile
	var student *model.StudentProfile
	switch role {
	case model.RoleTutor:
		tutor = &model.TutorProfile{
			AccountID:       account.ID,
			Subjects:        strings.TrimSpace(req.Subjects),
			Qualification:   strings.TrimSpace(req.Qualification),
			ExperienceYears: req.ExperienceYears,
			Bio:             strings.TrimSpace(req.Bio),
		}
	case model.RoleStudent:
		student = &model.StudentProfile{
			AccountID:     account.ID,
			Class:         strings.TrimSpace(req.Class),
			School:        strings.TrimSpace(req.School),
			ContactNumber: strings.TrimSpace(req.ContactNumber),
			Board:         strings.TrimSpace(req.Board),
		}
	}

	if err := s.store.CreateAccount(r.Context(), account, tutor, student); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	s.invalidateRoleCounts(r.Context())

	accessToken, refreshToken, err := s.issueTokens(r.Context(), account, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summary := accountSummary{ID: account.ID, Email: account.Email, Name: account.Name, Role: role}
	if tutor != nil {
		summary.Tutor = tutorPayload(*tutor)
	}
	if student != nil {
		summary.Student = studentPayload(*student)
	}
	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      summary,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	account, err := s.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same code as a wrong password so the response does not
			// reveal whether the email exists.
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	if err := crypto.CheckPassword(account.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), account, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summary, err := s.accountSummaryFor(r.Context(), account)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      summary,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	tokenHash := crypto.HashToken(req.RefreshToken)
	session, err := s.store.GetRefreshSession(r.Context(), tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	if session.RevokedAt != nil || session.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	account, err := s.store.GetAccountByID(r.Context(), session.AccountID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "account_not_found")
		return
	}

	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		s.writeStoreError(w, err)
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), account, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summary, err := s.accountSummaryFor(r.Context(), account)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      summary,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	_ = s.store.RevokeRefreshSessionsByAccount(r.Context(), claims.AccountID, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	account, err := s.store.GetAccountByID(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "account_not_found")
			return
		}
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

func (s *Server) issueTokens(ctx context.Context, account model.Account, userAgent, ip string) (string, string, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		AccountID: account.ID,
		Role:      string(account.Role),
	})
	if err != nil {
		return "", "", err
	}

	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}
	if err := s.store.CreateRefreshSession(ctx, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (s *Server) accountSummaryFor(ctx context.Context, account model.Account) (accountSummary, error) {
	summary := accountSummary{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Role:  account.Role,
	}
	switch account.Role {
	case model.RoleTutor:
		profile, err := s.store.GetTutorProfile(ctx, account.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return summary, err
		}
		if err == nil {
			summary.Tutor = tutorPayload(profile)
		}
	case model.RoleStudent:
		profile, err := s.store.GetStudentProfile(ctx, account.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return summary, err
		}
		if err == nil {
			summary.Student = studentPayload(profile)
		}
	}
	return summary, nil
}

func tutorPayload(profile model.TutorProfile) *tutorProfilePayload {
	return &tutorProfilePayload{
		Subjects:        profile.Subjects,
		Qualification:   profile.Qualification,
		ExperienceYears: profile.ExperienceYears,
		Bio:             profile.Bio,
		IsVerified:      profile.IsVerified,
	}
}

func studentPayload(profile model.StudentProfile) *studentProfilePayload {
	return &studentProfilePayload{
		Class:         profile.Class,
		School:        profile.School,
		ContactNumber: profile.ContactNumber,
		Board:         profile.Board,
	}
}
