package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphabot-ai/threadfeed/internal/api"
	"github.com/alphabot-ai/threadfeed/internal/leaderboard"
	"github.com/alphabot-ai/threadfeed/internal/store"
	"github.com/alphabot-ai/threadfeed/internal/stream"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the discussion API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Port = servePort
	}
	entry := logrus.NewEntry(log)

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer sqliteStore.Close()

	// Leaderboard cache is optional; the API works without it
	var cache api.RankingCache
	if cfg.RedisURL != "" {
		c, err := leaderboard.NewCache(cfg.RedisURL, cfg.LeaderboardTTL)
		if err != nil {
			entry.WithError(err).Warn("leaderboard cache disabled")
		} else {
			defer c.Close()
			cache = c
		}
	}

	hub := stream.NewHub(entry)
	mux := http.NewServeMux()
	api.NewHandler(sqliteStore, hub, cache, cfg, entry).Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.Recover(entry)(api.LogRequests(entry)(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entry.WithField("addr", addr).Info("starting threadfeed")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		entry.Info("shutting down server")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			entry.WithError(err).Warn("server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		return err
	}
	entry.Info("server stopped")
	return nil
}
