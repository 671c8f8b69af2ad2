package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/textproof/textproof/internal/analyzer"
	"github.com/textproof/textproof/internal/config"
	"github.com/textproof/textproof/internal/handlers"
	"github.com/textproof/textproof/internal/ingest"
	"github.com/textproof/textproof/internal/logger"
	"github.com/textproof/textproof/internal/metrics"
	"github.com/textproof/textproof/internal/server"
	"github.com/textproof/textproof/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideMetrics,
			provideQueue,
			provideGate,
			provideAnalyzer,
			providePipeline,
			provideBot,
			providePingHandler,
			provideUploadHandler,
			provideWebhookHandler,
			provideMetricsHandler,
			provideServer,
		),
		fx.Invoke(
			registerWebhook,
			startPipeline,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideQueue(cfg config.Config) *ingest.Queue {
	return ingest.NewQueue(cfg.Queue.Capacity)
}

func provideGate(cfg config.Config) ingest.Gate {
	return ingest.Gate{MaxDocumentBytes: cfg.Upload.MaxBytes}
}

func provideAnalyzer(log *slog.Logger, cfg config.Config) *analyzer.Client {
	return analyzer.NewClient(log, cfg.Analyzer)
}

func providePipeline(log *slog.Logger, cfg config.Config, queue *ingest.Queue, gate ingest.Gate, client *analyzer.Client, m *metrics.Metrics) *ingest.Pipeline {
	analyzeTimeout := time.Duration(cfg.Analyzer.TimeoutSeconds) * time.Second
	return ingest.NewPipeline(log, queue, gate, client, m, analyzeTimeout)
}

func provideBot(log *slog.Logger, cfg config.Config, queue *ingest.Queue, m *metrics.Metrics) (*telegram.Bot, error) {
	return telegram.NewBot(log, cfg.Telegram, queue, m, cfg.Upload.MaxBytes)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideUploadHandler(log *slog.Logger, cfg config.Config, queue *ingest.Queue, m *metrics.Metrics) *handlers.UploadHandler {
	requestTimeout := time.Duration(cfg.Pipeline.RequestTimeoutSeconds) * time.Second
	return handlers.NewUploadHandler(log, queue, m, cfg.Upload.MaxBytes, requestTimeout)
}

func provideWebhookHandler(log *slog.Logger, bot *telegram.Bot) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, bot)
}

func provideMetricsHandler() *handlers.MetricsHandler {
	return handlers.NewMetricsHandler()
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, uploadHandler *handlers.UploadHandler, webhookHandler *handlers.WebhookHandler, metricsHandler *handlers.MetricsHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, pingHandler, uploadHandler, webhookHandler, metricsHandler)
}

// registerWebhook points Telegram at this deployment before the server
// starts taking traffic. The stale webhook is dropped first so updates are
// not delivered against the previous registration.
func registerWebhook(lc fx.Lifecycle, bot *telegram.Bot) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		return bot.RegisterWebhook(ctx)
	}})
}

// startPipeline runs the single pipeline consumer for the process lifetime.
// On stop the queue is closed first; Run then drains the buffered events
// before returning, and the stop context caps how long that may take.
func startPipeline(lc fx.Lifecycle, pipeline *ingest.Pipeline, queue *ingest.Queue) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				pipeline.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			queue.Close()
			select {
			case <-done:
			case <-stopCtx.Done():
				cancel()
				<-done
			}
			cancel()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
