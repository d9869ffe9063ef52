package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"allycheck/internal/api"
	"allycheck/internal/config"
	"allycheck/internal/engine"
	"allycheck/internal/logging"
)

const shutdownTimeout = 30 * time.Second

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the audit HTTP API",
	Long: `Starts the HTTP API:

  POST /api/audit        run an audit
  GET  /api/audit/{id}   fetch a stored audit
  GET  /api/audits       list recent audits
  GET  /metrics          Prometheus metrics
  GET  /healthz          liveness

With --watch, edits to the deduplication thresholds in the config file
take effect without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload deduplication thresholds when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}

	opts := api.Options{
		MaxConcurrent: int64(cfg.Server.MaxConcurrent),
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Gatherer:      a.prom,
		Version:       cfg.Version,
	}
	if a.store != nil {
		opts.Reader = a.store
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(eng, opts).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.GetReadTimeout(),
		WriteTimeout:      cfg.GetWriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Boot("Listening on %s (%d tools, max %d concurrent audits)", addr, a.registry.Count(), cfg.Server.MaxConcurrent)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.Boot("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	if serveWatch {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, func(next *config.Config) { reload(eng, next) })
			if err != nil {
				// Serving continues without reloads.
				logging.BootWarn("Config watch disabled: %v", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// reload applies the settings that can change while serving.
func reload(eng *engine.Engine, next *config.Config) {
	d := next.Dedup
	eng.SetDeduplicator(&d)
	logging.Boot("Config reloaded: title threshold %.2f, description threshold %.2f",
		d.TitleThreshold, d.DescriptionThreshold)
}
