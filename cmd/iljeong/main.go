package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hbkim/iljeong/internal/config"
	"github.com/hbkim/iljeong/internal/database"
	"github.com/hbkim/iljeong/internal/logging"
	"github.com/hbkim/iljeong/internal/push"
	"github.com/hbkim/iljeong/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default iljeong.yaml, or ILJEONG_CONFIG)")
	generateVAPID := flag.Bool("generate-vapid", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *generateVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate vapid keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("vapid_public_key: %s\nvapid_private_key: %s\n", pub, priv)
		return
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("ILJEONG_CONFIG")
	}
	if path == "" {
		path = "iljeong.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, cfg, loc, logger)

	// Background jobs: expired-session sweep, rate limiter cleanup and
	// the nightly encrypted backup.
	jobs := cron.New()
	jobs.AddFunc("@hourly", func() {
		if n, err := srv.SessionStore().DeleteExpired(); err != nil {
			logger.Error("session cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("expired sessions removed", "count", n)
		}
		srv.RateLimiter().Cleanup()
	})
	if srv.BackupManager().Enabled() && cfg.Backup.Cron != "" {
		if _, err := jobs.AddFunc(cfg.Backup.Cron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := srv.BackupManager().Run(ctx); err != nil {
				logger.Error("scheduled backup failed", "error", err)
			}
		}); err != nil {
			logger.Error("invalid backup cron expression", "cron", cfg.Backup.Cron, "error", err)
			os.Exit(1)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(context.Background())
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("iljeong running", "addr", cfg.Listen, "timezone", cfg.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
