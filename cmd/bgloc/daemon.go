package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/bgloc/internal/api"
	"github.com/bft-labs/bgloc/internal/cliconfig"
	"github.com/bft-labs/bgloc/internal/metrics"
	"github.com/bft-labs/bgloc/internal/provider/replay"
	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/keepalive"
	"github.com/bft-labs/bgloc/pkg/log"
	"github.com/bft-labs/bgloc/pkg/store"
	"github.com/bft-labs/bgloc/plugins/configwatcher"
	"github.com/bft-labs/bgloc/plugins/permissionwatch"
)

const (
	shutdownTimeout = 10 * time.Second

	// postgresOpTimeout bounds one settings read or write against a
	// remote database.
	postgresOpTimeout = 15 * time.Second
)

func runDaemon(ctx context.Context, cfg cliconfig.Config) error {
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.NewZerologAdapterWithLogger(cliconfig.NewLogger(os.Stderr, level))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	track, err := replay.LoadTrack(cfg.TrackFile)
	if err != nil {
		return err
	}
	provider := replay.New(track, replay.WithLogger(logger))

	backend, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	kv := store.NewKV(backend)
	if cfg.UsesPostgres() {
		kv = kv.WithTimeout(postgresOpTimeout)
	}
	settings := store.NewSettings(kv)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	registry := dispatch.NewRegistry()
	registry.Register(cfg.DispatcherHandle, newEntrypoint(cfg, collector, logger))

	opts := []fetcher.Option{
		fetcher.WithLogger(logger),
		fetcher.WithSources(provider.Sources()),
		fetcher.WithPermission(provider),
		fetcher.WithLeaseProvider(keepalive.FileLeaseProvider{Path: cfg.LeasePath()}),
		fetcher.WithResolver(registry),
		fetcher.WithEventHandler(collector),
		fetcher.WithForegroundRelease(cfg.ForegroundRelease),
	}
	if cfg.PermissionPoll > 0 {
		opts = append(opts, permissionwatch.WithPermissionWatch(permissionwatch.Config{
			Source:   provider,
			Interval: cfg.PermissionPoll,
		}))
	}
	if fb, ok := backend.(*store.FileBackend); ok && cfg.WatchStore {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{Path: fb.Path()}))
	}

	ctrl, err := fetcher.New(settings, opts...)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	if cfg.CallbackHandle != 0 {
		if err := ctrl.SetCallback(ctx, cfg.CallbackHandle, cfg.DispatcherHandle); err != nil {
			return fmt.Errorf("register callback: %w", err)
		}
	}
	if err := ctrl.Launch(ctx); err != nil {
		return fmt.Errorf("launch controller: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(ctrl, api.WithLogger(logger), api.WithMetrics(reg)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := provider.Run(gctx)
		if errors.Is(err, replay.ErrPlaybackDone) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("command API listening", log.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		forwardHostSignals(gctx, ctrl, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ctrl.Close(closeCtx); err != nil {
		logger.Warn("controller close", log.Err(err))
	}
	logger.Info("stopped")
	return runErr
}

// forwardHostSignals maps SIGUSR1, SIGUSR2 and SIGHUP to foreground,
// background and settings reload.
func forwardHostSignals(ctx context.Context, ctrl *fetcher.Controller, logger log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			var err error
			switch sig {
			case syscall.SIGUSR1:
				err = ctrl.OnForeground(ctx)
			case syscall.SIGUSR2:
				err = ctrl.OnBackground(ctx)
			case syscall.SIGHUP:
				err = ctrl.OnConfigChanged(ctx)
			}
			if err != nil {
				logger.Warn("host signal not applied", log.String("signal", sig.String()), log.Err(err))
			}
		}
	}
}

func openStore(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (store.Backend, func(), error) {
	if !cfg.UsesPostgres() {
		fb := store.NewFileBackend(cfg.StoreDir())
		logger.Info("using file settings store", log.String("path", fb.Path()))
		return fb, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.StoreDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open settings database: %w", err)
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect settings database: %w", err)
	}

	pg := store.NewPostgresBackend(db, store.DefaultTable)
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("prepare settings table: %w", err)
	}
	logger.Info("using postgres settings store", log.String("table", store.DefaultTable))
	return pg, func() { db.Close() }, nil
}

func newEntrypoint(cfg cliconfig.Config, collector *metrics.Collector, logger log.Logger) dispatch.Entrypoint {
	if cfg.WebhookURL == "" {
		return dispatch.NewFuncEntrypoint(func(ev dispatch.CallbackEvent) {
			logger.Info("location",
				log.Int64("callback", ev.CallbackHandle),
				log.Float64("lat", ev.Latitude),
				log.Float64("lon", ev.Longitude),
				log.Float64("speed", ev.Speed),
				log.Int("battery", int(ev.Battery)),
			)
		})
	}
	return dispatch.NewWebhookEntrypoint(dispatch.WebhookConfig{
		URL:       cfg.WebhookURL,
		AuthToken: cfg.WebhookToken,
		MaxTries:  uint(cfg.WebhookMaxTries),
		Timeout:   cfg.WebhookTimeout,
		OnDrop: func(ev dispatch.CallbackEvent, err error) {
			logger.Warn("callback event dropped", log.Float64("timestamp", ev.Timestamp), log.Err(err))
			collector.OnDrop(fetcher.DropEvent{Reason: fetcher.DropEnvironment})
		},
	}, &http.Client{}, logger)
}
