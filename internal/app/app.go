// Package app initializes and holds the long-lived services behind the HTTP
// server: backup store, notification sink, listmonk client and pipeline.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/api"
	"github.com/JakeFAU/mailproxy/internal/clock/system"
	"github.com/JakeFAU/mailproxy/internal/config"
	"github.com/JakeFAU/mailproxy/internal/id/fallback"
	"github.com/JakeFAU/mailproxy/internal/id/uuid"
	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/listmonk"
	"github.com/JakeFAU/mailproxy/internal/notify"
	"github.com/JakeFAU/mailproxy/internal/pipeline"
	"github.com/JakeFAU/mailproxy/internal/storage"
)

// App owns every shared resource. It is built once at startup.
type App struct {
	logger   *zap.Logger
	store    intake.BackupStore
	sink     *notify.Sink
	pipeline *pipeline.Pipeline
	server   *api.Server
}

// New wires the services described by cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing services",
		zap.String("backup_driver", cfg.Backup.Driver),
		zap.String("notify_driver", cfg.Notify.Driver),
	)

	store, err := storage.Open(ctx, storage.Config{
		Driver:    cfg.Backup.Driver,
		DSN:       cfg.Backup.DSN,
		Table:     cfg.Backup.Table,
		RedisURL:  cfg.Backup.RedisURL,
		GCSBucket: cfg.Backup.GCSBucket,
		Prefix:    cfg.Backup.Prefix,
		HashKey:   cfg.Backup.HashKey,
	}, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("initialize backup store: %w", err)
	}

	sink, err := notify.Open(ctx, notify.Config{
		Driver:     cfg.Notify.Driver,
		WebhookURL: cfg.Notify.WebhookURL,
		Username:   cfg.Notify.Username,
		ProjectID:  cfg.Notify.ProjectID,
		Topic:      cfg.Notify.Topic,
		Timeout:    cfg.NotifyTimeout(),
	}, logger.Named("notify"))
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("initialize notifier: %w", err)
	}

	forwarder, err := listmonk.New(listmonk.Config{
		BaseURL:        cfg.Listmonk.BaseURL,
		Username:       cfg.Listmonk.Username,
		Password:       cfg.Listmonk.Password,
		Timeout:        cfg.ListmonkTimeout(),
		SynthesizeName: cfg.Listmonk.SynthesizeName,
	}, &http.Client{Timeout: cfg.ListmonkTimeout()}, fallback.New(), logger.Named("listmonk"))
	if err != nil {
		closeStore(store)
		_ = sink.Close()
		return nil, fmt.Errorf("initialize listmonk client: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{
		BackupTimeout: cfg.BackupTimeout(),
		NotifyTimeout: cfg.NotifyTimeout(),
	}, forwarder, store, sink, system.New(), logger)
	if err != nil {
		closeStore(store)
		_ = sink.Close()
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}

	logger.Info("services initialized")
	return &App{
		logger:   logger,
		store:    store,
		sink:     sink,
		pipeline: p,
		server:   api.NewServer(p, store, uuid.New(), logger),
	}, nil
}

// Handler returns the HTTP handler for the intake server.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Pipeline exposes the orchestrator for embedding callers.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Close releases the backup store and flushes the notification sink.
func (a *App) Close() {
	a.logger.Info("shutting down services")
	closeStore(a.store)
	if err := a.sink.Close(); err != nil {
		a.logger.Warn("close notifier", zap.Error(err))
	}
}

func closeStore(store intake.BackupStore) {
	if store != nil {
		store.Close()
	}
}
