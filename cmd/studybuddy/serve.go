package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/job"
	"github.com/hyperjump/studybuddy/internal/server"
	"github.com/hyperjump/studybuddy/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, inbox watcher and timer scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			defer e.logger.Sync()
			return runServe(cmd.Context(), e)
		},
	}
}

func runServe(parent context.Context, e *env) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger, cfg := e.logger, e.cfg
	logger.Info("config loaded", zap.String("config_path", e.configPath), zap.Bool("debug", e.debug))

	components, err := initializeComponents(ctx, cfg, logger, e.debug)
	if err != nil {
		return err
	}
	defer components.Close()

	if err := components.Scheduler.Start(ctx); err != nil {
		return err
	}

	deps := server.Deps{
		Indexer:   components.Indexer,
		Storage:   components.Storage,
		Index:     components.VectorIndex,
		Retriever: components.Retriever,
		Assistant: components.Assistant,
		Scheduler: components.Scheduler,
		Feed:      components.Feed,
		Config:    cfg,
	}

	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		idx := components.Indexer
		watchOpts := []watcher.Option{}
		if e.debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(),
			func(ctx context.Context, path string) error {
				_, err := idx.IngestFile(ctx, path)
				return err
			}, watchOpts...)
		if err := watchSvc.Start(ctx); err != nil {
			return err
		}
		watchSvc.SyncExisting(ctx)
		deps.Watch = watchSvc
	}

	var cronSched *job.CronScheduler
	if cfg.Jobs.SnapshotSpec != "" && cfg.Storage.IndexSnapshotPath != "" {
		cronSched = job.NewCronScheduler(logger)
		snapshot := job.NewSnapshotJob(components.VectorIndex, cfg.Storage.IndexSnapshotPath, logger)
		if err := cronSched.AddJob(snapshot, cfg.Jobs.SnapshotSpec); err != nil {
			return err
		}
		cronSched.Start(ctx)
	}

	srv := server.NewServer(deps, &cfg.Server, logger)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		logger.Error("Server failed", zap.Error(runErr))
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if watchSvc != nil {
		watchSvc.Stop()
	}
	if cronSched != nil {
		cronSched.Stop()
	}
	if err := components.Scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Warn("timer shutdown", zap.Error(err))
	}
	if cfg.Storage.IndexSnapshotPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.IndexSnapshotPath); err != nil {
			logger.Warn("vector index save failed", zap.String("path", cfg.Storage.IndexSnapshotPath), zap.Error(err))
		}
	}
	return runErr
}
