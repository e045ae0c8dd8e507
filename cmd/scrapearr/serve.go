package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/scrapearr/internal/server"
	"github.com/vmunix/scrapearr/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve enabled sites as Torznab indexers",
	Long: `Serve every enabled site as a Torznab indexer:

  GET /api/<site>?t=caps|search|tvsearch|movie&q=&cat=&season=&ep=
  GET /api/all?t=search&q=...      all enabled sites at once
  GET /api/sites                   site list with login state
  GET /healthz`,
	Args: cobra.NoArgs,
	RunE: runServeCmd,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Override the configured port")
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.targets) == 0 {
		return errors.New("no sites enabled")
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		a.cfg.Server.Port = port
	}

	srv := server.New(server.Config{
		Addr:   fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		APIKey: a.cfg.Server.APIKey,
	}, a.dispatcher, a.targets, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		pruneCache(gctx, a.store.DetailCache(a.cfg.Store.CacheTTL), a.cfg.Store.CacheTTL, a.log)
		return nil
	})
	err = g.Wait()

	// Keep logins made while serving for the next run.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.saveSessions(saveCtx)
	return err
}

// pruneCache drops expired detail pages every ttl until ctx ends.
func pruneCache(ctx context.Context, cache *store.DetailCache, ttl time.Duration, log *slog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cache.Prune(ctx)
			if err != nil {
				log.Warn("pruning detail cache", "error", err)
				continue
			}
			log.Debug("detail cache pruned", "removed", n)
		}
	}
}
