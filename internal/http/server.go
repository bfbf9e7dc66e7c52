package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/auth"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/config"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/repository"
)

type Server struct {
	cfg   config.Config
	store *repository.Store
	redis *redis.Client
	log   *zap.Logger
}

func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:   cfg,
		store: store,
		redis: redisClient,
		log:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware, s.resolveRole).Get("/auth/me", s.handleGetMe)

	r.With(s.authMiddleware, s.resolveRole).Get("/tutors", s.handleListTutors)

	r.With(s.authMiddleware, s.resolveRole, s.requireRole(model.RoleStudent)).Post("/sessions", s.handleCreateSession)
	r.With(s.authMiddleware, s.resolveRole).Get("/sessions", s.handleListSessions)
	r.With(s.authMiddleware, s.resolveRole, s.requireRole(model.RoleTutor)).Patch("/sessions/{sessionId}/status", s.handleTransitionSession)

	r.With(s.authMiddleware, s.resolveRole).Patch("/accounts/me", s.handleUpdateProfile)
	r.With(s.authMiddleware, s.resolveRole, s.requireRole(model.RoleAdmin)).Patch("/accounts/{accountId}/verified", s.handleSetVerified)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware, s.resolveRole, s.requireRole(model.RoleAdmin))
		r.Get("/users", s.handleAdminListUsers)
		r.Get("/stats", s.handleAdminStats)
		r.Post("/accounts", s.handleCreateAdminAccount)
	})

	return r
}

// Auth

type claimsKey struct{}
type roleKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveRole re-reads the caller's role from storage on every request.
// The role inside the token is never used for authorization decisions, so
// a forged or stale role claim buys the caller nothing.
func (s *Server) resolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		role, err := s.store.GetRole(r.Context(), claims.AccountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "account_not_found")
				return
			}
			s.writeStoreError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), roleKey{}, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := roleFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func roleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey{}).(model.Role)
	return role, ok
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Helpers

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

// writeStoreError separates transient store failures, which a caller may
// retry, from everything else.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if isTransient(err) {
		s.log.Warn("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	s.log.Error("store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error")
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
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
