package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memosync/internal/auth"
	"memosync/internal/config"
	"memosync/internal/db"
	httpx "memosync/internal/http"
	"memosync/internal/logging"
	"memosync/internal/metrics"
	"memosync/internal/remote/gormstore"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	collector := metrics.NewCollector("recordd")
	oauth := auth.OAuth2Providers{}
	if cfg.GitHubClientID != "" {
		oauth["github"] = auth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret)
	}

	r := httpx.NewRouter(cfg, httpx.Deps{
		Store:   metrics.NewStore(gormstore.New(gdb), collector),
		Users:   &auth.GormUsers{DB: gdb},
		JWT:     auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL),
		OAuth:   oauth,
		Metrics: collector,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Int("oauth2_providers", len(oauth)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
