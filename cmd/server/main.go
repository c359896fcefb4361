// Command ak-server runs the single-user archive admin gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/jk100/archiv-admin/internal/config"
	"github.com/jk100/archiv-admin/internal/directus"
	"github.com/jk100/archiv-admin/internal/migrate"
	"github.com/jk100/archiv-admin/internal/repository"
	"github.com/jk100/archiv-admin/internal/repository/file"
	"github.com/jk100/archiv-admin/internal/repository/postgres"
	"github.com/jk100/archiv-admin/internal/router"
	"github.com/jk100/archiv-admin/internal/server/httpserver"
	"github.com/jk100/archiv-admin/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, opens the credential store and serves the gateway.
func main() {
	cfg := config.Load()

	// Flags
	addr := flag.String("addr", cfg.Addr, "listen address")
	baseURL := flag.String("url", cfg.DirectusURL, "backend URL")
	dsn := flag.String("dsn", cfg.DSN, "PostgreSQL DSN of the credential store (optional)")
	storeDir := flag.String("store", cfg.StoreDir, "credential store directory (without -dsn)")
	flag.Parse()
	cfg.Addr, cfg.DirectusURL, cfg.DSN, cfg.StoreDir = *addr, *baseURL, *dsn, *storeDir

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	if err := cfg.Validate(logger); err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credential store
	var store repository.CredentialRepository
	if cfg.DSN != "" {
		ver, err := migrate.Up(ctx, cfg.DSN, logger)
		if err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		logger.Info("credential store schema", zap.Int64("version", ver))
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		store = postgres.NewCredentialRepo(db)
	} else {
		store = file.NewCredentialRepo(cfg.StoreDir)
		logger.Info("file credential store", zap.String("dir", cfg.StoreDir))
	}

	// Services
	client := directus.New(cfg.DirectusURL, directus.WithLogger(logger))
	sess := service.NewSession(client, store, cfg.AdminRoleID, logger)
	objs := service.NewObjects(client.WithTokenSource(sess), sess, logger)
	guard := router.NewGuard(sess, logger)

	// HTTP server
	var h http.Handler = httpserver.New(sess, objs, guard, client.BaseURL(), logger).Handler()
	if len(cfg.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
			handlers.AllowCredentials(),
		)(h)
	}
	h = handlers.ProxyHeaders(h)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
