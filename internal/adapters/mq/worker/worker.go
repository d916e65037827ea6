// Package worker drains the ingest queue into the telemetry store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/avian-io/roost/internal/adapters/mq/queue"
	"github.com/avian-io/roost/pkg/logger"
	"github.com/avian-io/roost/pkg/metrics"
)

// Default pool configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Inserter stores one telemetry reading. Satisfied by repository.Store.
type Inserter interface {
	InsertTelemetry(ctx context.Context, deviceID string, payload []byte) (string, error)
}

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Message
}

// Pool runs a fixed number of workers draining messages into the store.
type Pool struct {
	queue    Queue
	inserter Inserter
	size     int
	log      logger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithSize sets the number of worker goroutines.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPool creates a worker pool over q writing to inserter.
func NewPool(q Queue, inserter Inserter, opts ...Option) *Pool {
	p := &Pool{
		queue:    q,
		inserter: inserter,
		size:     runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They run until the queue closes, Stop is
// called, or ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	if p.log == nil {
		p.log = logger.Get().Named("worker")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(name string) {
			defer p.wg.Done()
			p.run(ctx, name)
		}("worker-" + strconv.Itoa(i))
	}
	p.log.Info(ctx, "ingest worker pool started", logger.Int("size", p.size))
}

// Stop cancels the workers and waits for them to finish, bounded by the
// pool shutdown timeout.
func (p *Pool) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(poolShutdownTimeout):
		return fmt.Errorf("worker pool shutdown timed out after %s", poolShutdownTimeout)
	}
}

func (p *Pool) run(ctx context.Context, name string) {
	messages := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			p.store(ctx, name, m)
		}
	}
}

func (p *Pool) store(ctx context.Context, name string, m queue.Message) {
	start := time.Now()
	_, err := p.inserter.InsertTelemetry(ctx, m.DeviceID, m.Payload)
	metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError()
		p.log.Error(ctx, "failed to store telemetry",
			logger.String("worker", name),
			logger.String("device", m.DeviceID),
			logger.String("messageID", m.MessageID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordTelemetryIngested()
}
