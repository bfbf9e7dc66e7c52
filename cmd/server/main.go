package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/config"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/crypto"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/db"
	internalhttp "github.com/shreemayahome-lgtm/tutor-managment-system/internal/http"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/logging"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/repository"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	store := repository.NewStore(pool)

	if err := ensureBootstrapAdmin(ctx, store, cfg); err != nil {
		logger.Fatal("bootstrap admin failed", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	server := internalhttp.NewServer(cfg, store, redisClient, logger)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsHandler.Handler(server.Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("tutoring service listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

// ensureBootstrapAdmin creates the first admin account from the
// environment, since open signup only mints students and tutors.
func ensureBootstrapAdmin(ctx context.Context, store *repository.Store, cfg config.Config) error {
	if cfg.BootstrapAdmin == "" || cfg.BootstrapPassword == "" {
		return nil
	}

	_, err := store.GetAccountByEmail(ctx, cfg.BootstrapAdmin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := crypto.HashPassword(cfg.BootstrapPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return store.CreateAccount(ctx, model.Account{
		ID:           uuid.NewString(),
		Email:        cfg.BootstrapAdmin,
		Name:         "Administrator",
		Role:         model.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil, nil)
}
