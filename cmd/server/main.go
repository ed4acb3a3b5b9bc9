package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/quizly/quizly-engine/internal/catalog"
	"github.com/quizly/quizly-engine/internal/config"
	"github.com/quizly/quizly-engine/internal/delivery/httpapi"
	"github.com/quizly/quizly-engine/internal/logger"
	"github.com/quizly/quizly-engine/internal/service"
	"github.com/quizly/quizly-engine/internal/storage/local"
	"github.com/quizly/quizly-engine/internal/storage/remote"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Question catalog.
	var repo *catalog.Repository
	if strings.HasSuffix(cfg.Catalog.Path, ".xlsx") {
		repo, err = catalog.ImportXLSX(cfg.Catalog.Path)
	} else {
		repo, err = catalog.NewRepository(cfg.Catalog.Path)
	}
	if err != nil {
		zl.Fatal("failed to load question catalog",
			zap.String("path", cfg.Catalog.Path),
			zap.Error(err),
		)
	}
	zl.Info("question catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("questions", len(repo.IDs())),
		zap.Int("topics", len(repo.Topics())),
	)

	// Device-local snapshot store, degrading to a file store if needed.
	localStore, err := local.OpenWithFallback(cfg.Local.DBPath, cfg.Local.DataDir, zl)
	if err != nil {
		zl.Fatal("failed to open local progress store", zap.Error(err))
	}

	// Remote snapshot store; optional, the engine runs local-only without it.
	var remoteStore service.RemoteStore
	if cfg.DB.SyncEnabled() {
		pool, err := remote.NewPool(ctx, cfg.DB.URL, remote.PoolConfig{
			MaxConns:        int32(cfg.DB.MaxConnections),
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			zl.Fatal("failed to connect to remote progress database", zap.Error(err))
		}
		defer pool.Close()

		store := remote.NewStore(pool, cfg.DB.QueryTimeout)
		if err := store.EnsureSchema(ctx); err != nil {
			zl.Fatal("failed to prepare remote progress schema", zap.Error(err))
		}
		remoteStore = store
		zl.Info("remote progress sync enabled")
	} else {
		zl.Info("no DATABASE_URL configured, running local-only")
	}

	progressService := service.NewProgressService(localStore, remoteStore, zl)
	api := httpapi.NewServer(progressService, repo, zl)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http server shutdown failed", zap.Error(err))
	}
}
