// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/avian-io/roost/internal/adapters/genai"
	"github.com/avian-io/roost/internal/adapters/http/api"
	"github.com/avian-io/roost/internal/adapters/imagery"
	telemetryqueue "github.com/avian-io/roost/internal/adapters/mq/queue"
	workerpool "github.com/avian-io/roost/internal/adapters/mq/worker"
	"github.com/avian-io/roost/internal/adapters/repository"
	"github.com/avian-io/roost/internal/domain/dedupe"
	"github.com/avian-io/roost/internal/domain/leaderboard"
	"github.com/avian-io/roost/internal/domain/model"
	"github.com/avian-io/roost/pkg/logger"
	"github.com/avian-io/roost/pkg/metrics"
)

// Default image handling constants. A device vision request that names
// no count reads one frame; retention bounds how many frames any read
// keeps stored.
const (
	defaultMaxImages      = 1
	defaultImageRetention = 5
)

// Generator produces text from a prompt and optional image parts,
// falling back across candidate models.
type Generator interface {
	Generate(ctx context.Context, model string, parts []genai.Part) (string, error)
}

// ImageSource turns image references into inline generation parts.
type ImageSource interface {
	FromURL(ctx context.Context, imageURL string) (genai.Part, error)
	FromDevice(ctx context.Context, deviceID string, maxCount int) ([]genai.Part, error)
}

// Ingestor is an optional broker-side telemetry source with a lifecycle
// tied to the service.
type Ingestor interface {
	Start(ctx context.Context) error
	Stop()
}

// Service implements the API dependencies for the telemetry backend.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	generator Generator
	images    ImageSource
	builder   *leaderboard.Builder
	deduper   dedupe.Deduper
	queue     *telemetryqueue.InMemoryQueue
	pool      *workerpool.Pool
	ingestor  Ingestor

	// Factory for the broker subscriber, invoked on Start once the
	// queue and deduper exist.
	newIngestor func(sink *telemetryqueue.InMemoryQueue, deduper dedupe.Deduper) Ingestor

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	defaultLimit   int
	imageRetention int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistent store. Required.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithGenerator sets the inference gateway.
func WithGenerator(g Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithImageSource sets the image source for vision requests.
func WithImageSource(src ImageSource) Option {
	return func(s *Service) {
		s.images = src
	}
}

// WithIngestorFactory defers broker subscriber construction until the
// queue and deduper are built on Start.
func WithIngestorFactory(f func(sink *telemetryqueue.InMemoryQueue, deduper dedupe.Deduper) Ingestor) Option {
	return func(s *Service) {
		s.newIngestor = f
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the telemetry queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithImageRetention caps how many stored frames a device vision
// request may read; frames past the cap are pruned by the read.
func WithImageRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.imageRetention = n
		}
	}
}

// WithDefaultLeaderboardLimit sets the entry count used when a
// leaderboard request names no limit.
func WithDefaultLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      10000,
		dedupeSize:     50000,
		defaultLimit:   20,
		imageRetention: defaultImageRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return errors.New("service requires a store")
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting telemetry service...")

	s.builder = leaderboard.NewBuilder(
		leaderboard.WithDefaultLimit(s.defaultLimit),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = telemetryqueue.NewInMemoryQueue(
		telemetryqueue.WithCapacity(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.queue, s.store,
		workerpool.WithSize(s.workerCount),
		workerpool.WithLogger(s.logger),
	)
	s.pool.Start(ctx)

	if s.newIngestor != nil {
		s.ingestor = s.newIngestor(s.queue, s.deduper)
		if err := s.ingestor.Start(ctx); err != nil {
			_ = s.pool.Stop()
			return fmt.Errorf("start broker ingest: %w", err)
		}
	}

	s.started = true
	s.logger.Info(ctx, "telemetry service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping telemetry service...")

	if s.ingestor != nil {
		s.ingestor.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		_ = s.pool.Stop()
	}

	s.started = false
	s.logger.Info(context.Background(), "telemetry service stopped")
}

// RegisterDevice creates a device owned by ownerID.
func (s *Service) RegisterDevice(ctx context.Context, ownerID, deviceID, name string) (model.Device, error) {
	device, err := s.store.CreateDevice(ctx, model.Device{
		DeviceID:  deviceID,
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return model.Device{}, fmt.Errorf("register device: %w", err)
	}
	return device, nil
}

// ListDevices returns every device owned by ownerID.
func (s *Service) ListDevices(ctx context.Context, ownerID string) ([]model.Device, error) {
	devices, err := s.store.DevicesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// RemoveDevice deletes a device when it is owned by ownerID.
func (s *Service) RemoveDevice(ctx context.Context, ownerID, deviceID string) error {
	if err := s.store.DeleteDevice(ctx, deviceID, ownerID); err != nil {
		return fmt.Errorf("remove device: %w", err)
	}
	return nil
}

// DeviceTelemetry returns the stored readings for one owned device.
func (s *Service) DeviceTelemetry(ctx context.Context, ownerID, deviceID string) ([]model.TelemetryRecord, error) {
	// Ownership check first so foreign devices read as absent.
	if _, err := s.store.DeviceByOwner(ctx, deviceID, ownerID); err != nil {
		return nil, fmt.Errorf("device telemetry: %w", err)
	}
	records, err := s.store.TelemetryByDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device telemetry: %w", err)
	}
	return records, nil
}

// IngestTelemetry stores one validated reading for a registered device.
func (s *Service) IngestTelemetry(ctx context.Context, deviceID string, payload []byte) (string, error) {
	exists, err := s.store.DeviceExists(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("ingest: device %s: %w", deviceID, repository.ErrNotFound)
	}
	id, err := s.store.InsertTelemetry(ctx, deviceID, payload)
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}
	return id, nil
}

// OwnerTelemetry returns the readings of every device owned by ownerID.
func (s *Service) OwnerTelemetry(ctx context.Context, ownerID string) ([]model.TelemetryRecord, error) {
	devices, err := s.store.DevicesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("owner telemetry: %w", err)
	}
	if len(devices) == 0 {
		return []model.TelemetryRecord{}, nil
	}
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.DeviceID
	}
	records, err := s.store.TelemetryByDevices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("owner telemetry: %w", err)
	}
	return records, nil
}

// Leaderboard scores every owner over the full telemetry history and
// returns at most limit entries. A non-positive limit applies the
// configured default. The board is recomputed on every call.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.ScoreEntry, error) {
	start := time.Now()
	devices, err := s.store.AllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	telemetry, err := s.store.AllTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	entries := s.builder.Build(ctx, devices, telemetry, nil, limit)
	metrics.RecordLeaderboardBuild(float64(time.Since(start).Milliseconds()), len(entries))
	return entries, nil
}

// GenerateText forwards a text prompt to the inference gateway.
func (s *Service) GenerateText(ctx context.Context, modelID, prompt string) (string, error) {
	if s.generator == nil {
		return "", genai.ErrNoAPIKey
	}
	return s.generator.Generate(ctx, modelID, []genai.Part{genai.Text(prompt)})
}

// GenerateVision forwards a prompt plus resolved image parts to the
// inference gateway. The image source is either a remote URL or the
// stored frames of a device.
func (s *Service) GenerateVision(ctx context.Context, req api.VisionRequest) (string, error) {
	if s.generator == nil {
		return "", genai.ErrNoAPIKey
	}
	if s.images == nil {
		return "", fmt.Errorf("%w: no image source configured", imagery.ErrImageFetch)
	}

	parts := []genai.Part{genai.Text(req.Prompt)}
	switch {
	case req.ImageURL != "":
		img, err := s.images.FromURL(ctx, req.ImageURL)
		if err != nil {
			return "", err
		}
		parts = append(parts, img)
	case req.DeviceID != "":
		maxImages := req.MaxImages
		if maxImages <= 0 {
			maxImages = defaultMaxImages
		}
		// Retention caps every device read; asking for more would keep
		// frames the read is supposed to prune.
		if maxImages > s.imageRetention {
			maxImages = s.imageRetention
		}
		imgs, err := s.images.FromDevice(ctx, req.DeviceID, maxImages)
		if err != nil {
			return "", err
		}
		if len(imgs) == 0 {
			return "", fmt.Errorf("%w: no stored images for device %s", imagery.ErrImageFetch, req.DeviceID)
		}
		parts = append(parts, imgs...)
	default:
		return "", fmt.Errorf("%w: no image source in request", imagery.ErrImageFetch)
	}

	return s.generator.Generate(ctx, req.Model, parts)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
