package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/crypto"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
)

const roleCountsCacheKey = "tutoring:role_counts"
const roleCountsCacheTTL = 10 * time.Minute

type statsResponse struct {
	Tutors   int64 `json:"tutors"`
	Students int64 `json:"students"`
	Admins   int64 `json:"admins"`
}

// handleAdminStats tallies accounts by role. The tally is recomputed
// from the accounts table; Redis only short-circuits repeat reads and is
// invalidated whenever an account is inserted. Verification toggles skip
// the invalidation since they cannot change the tally.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if cached, err := s.redis.Get(r.Context(), roleCountsCacheKey).Bytes(); err == nil {
			var resp statsResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	counts, err := s.store.CountsByRole(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	resp := statsResponse{Tutors: counts.Tutors, Students: counts.Students, Admins: counts.Admins}

	if s.redis != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			if err := s.redis.Set(r.Context(), roleCountsCacheKey, encoded, roleCountsCacheTTL).Err(); err != nil {
				s.log.Warn("stats cache write failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) invalidateRoleCounts(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, roleCountsCacheKey).Err(); err != nil {
		s.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	accounts, err := s.store.ListAccounts(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := make([]accountSummary, 0, len(accounts))
	for _, account := range accounts {
		summary, err := s.accountSummaryFor(r.Context(), account)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		resp = append(resp, summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleCreateAdminAccount(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
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
		Role:         model.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(r.Context(), account, nil, nil); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	s.invalidateRoleCounts(r.Context())

	writeJSON(w, http.StatusCreated, accountSummary{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Role:  account.Role,
	})
}
