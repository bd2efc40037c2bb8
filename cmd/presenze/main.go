package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/presenze/internal/config"
	"github.com/dukerupert/presenze/internal/database"
	"github.com/dukerupert/presenze/internal/logging"
	"github.com/dukerupert/presenze/internal/push"
	"github.com/dukerupert/presenze/internal/server"
	"github.com/dukerupert/presenze/web"
)

const (
	cleanupInterval       = 10 * time.Minute
	notificationRetention = 30 * 24 * time.Hour
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("PRESENZE_VAPID_PUBLIC_KEY=%s\nPRESENZE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	if err := run(); err != nil {
		slog.Error("presenze exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := server.New(cfg, db, server.Assets{Templates: web.Templates(), Static: web.Static()}, nil, logger)

	if err := srv.PushControl().Check(ctx); err != nil {
		logger.Warn("push subscription check failed", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("presenze running", "addr", cfg.Addr(), "public_url", cfg.PublicURL, "api_url", cfg.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		cleanup(ctx, srv, logger.With("component", "cleanup"))
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// cleanup prunes rate limiter buckets and old notifications until ctx ends.
func cleanup(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup()
			n, err := srv.NotificationStore().DeleteBefore(time.Now().Add(-notificationRetention))
			if err != nil {
				logger.Error("prune notifications", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned notifications", "count", n)
			}
		}
	}
}
