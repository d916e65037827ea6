package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/avian-io/roost/internal/adapters/blobstore"
	"github.com/avian-io/roost/internal/adapters/genai"
	"github.com/avian-io/roost/internal/adapters/http/api"
	"github.com/avian-io/roost/internal/adapters/identity"
	"github.com/avian-io/roost/internal/adapters/imagery"
	"github.com/avian-io/roost/internal/adapters/mq/ingest"
	telemetryqueue "github.com/avian-io/roost/internal/adapters/mq/queue"
	"github.com/avian-io/roost/internal/adapters/repository"
	app "github.com/avian-io/roost/internal/app"
	"github.com/avian-io/roost/internal/config"
	"github.com/avian-io/roost/internal/domain/dedupe"
	"github.com/avian-io/roost/pkg/logger"
	"github.com/avian-io/roost/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 120 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// The custom registry carries everything this service exports.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		os.Stderr.WriteString("failed to connect to database: " + err.Error() + "\n")
		return
	}
	defer store.Close()

	verifier := identity.NewHTTPVerifier(cfg.AuthURL, cfg.AuthAPIKey)

	invoker := genai.NewClient(
		genai.WithAPIKey(cfg.GeminiAPIKey),
		genai.WithEndpoint(cfg.GeminiEndpoint),
		genai.WithTimeout(time.Duration(cfg.GeminiTimeoutS)*time.Second),
	)
	generator := genai.NewResolver(invoker,
		genai.WithFallbackModels(cfg.FallbackModels),
		genai.WithResolverLogger(log.Named("genai")),
	)

	var images blobstore.Store = blobstore.NewDisabled()
	if cfg.BlobConnectionString != "" {
		azure, err := blobstore.NewAzureStore(cfg.BlobConnectionString, cfg.BlobContainer)
		if err != nil {
			os.Stderr.WriteString("failed to connect to blob storage: " + err.Error() + "\n")
			return
		}
		images = azure
	}
	fetcher := imagery.NewFetcher(images,
		imagery.WithTimeout(time.Duration(cfg.ImageFetchTimeoutS)*time.Second),
		imagery.WithLogger(log.Named("imagery")),
	)

	opts := []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithGenerator(generator),
		app.WithImageSource(fetcher),
		app.WithImageRetention(cfg.ImageRetention),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDefaultLeaderboardLimit(cfg.DefaultLeaderboardLimit),
	}
	if cfg.MQTTBroker != "" {
		opts = append(opts, app.WithIngestorFactory(
			func(sink *telemetryqueue.InMemoryQueue, deduper dedupe.Deduper) app.Ingestor {
				return ingest.NewSubscriber(cfg.MQTTBroker, store, sink, deduper,
					ingest.WithTopic(cfg.MQTTTopic),
					ingest.WithLogger(log.Named("ingest")),
				)
			}))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, verifier, svc, cfg.MaxLeaderboardLimit)
	apiServer.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater periodically samples runtime health.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
