package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/thsrite/configflow/internal/api"
	"github.com/thsrite/configflow/internal/job"
	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configflow HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildComponents(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	scheduler := job.NewScheduler(logger, 0)
	if spec := cfg.Providers.AggregationRefresh; spec != "" {
		refresh := job.NewAggregationRefreshJob(deps.snapshots, deps.aggregations, logger)
		if _, err := scheduler.Register(spec, refresh); err != nil {
			return err
		}
		go scheduler.RunNow(refresh)
	}
	scheduler.Start()

	router := api.NewRouter(logger, api.Services{
		Snapshots:    deps.snapshots,
		Manager:      protocol.NewDefaultManager(),
		Aggregations: deps.aggregations,
		Source:       deps.source,
		Rules:        rules.DirResolver{Dir: cfg.Rules.LocalDir},
		Prefetcher:   deps.prefetcher,
		Materializer: deps.materializer,
		Recorder:     deps.recorder,
		BaseURL:      cfg.Render.BaseURL,
		NoResolve:    deps.noResolve,
	}, api.RouterOptions{Metrics: cfg.Metrics})

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTP.Addr, "snapshot", cfg.Snapshot.Path, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server exited cleanly")
	return nil
}
