package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avian-io/roost/internal/adapters/mq/queue"
	"github.com/avian-io/roost/internal/adapters/mq/worker"
	"github.com/avian-io/roost/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// recordingInserter collects stored readings, optionally failing some.
type recordingInserter struct {
	mu     sync.Mutex
	stored []string
	fail   map[string]bool
}

func (r *recordingInserter) InsertTelemetry(_ context.Context, deviceID string, _ []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[deviceID] {
		return "", errors.New("insert failed")
	}
	r.stored = append(r.stored, deviceID)
	return "id-" + deviceID, nil
}

func (r *recordingInserter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPool(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a worker pool over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ins := &recordingInserter{}
		p := worker.NewPool(q, ins, worker.WithSize(2))

		Convey("When messages are enqueued", func() {
			p.Start(ctx)
			for _, dev := range []string{"pi-1", "pi-2", "pi-3"} {
				So(q.Enqueue(ctx, queue.Message{MessageID: dev + "-m", DeviceID: dev, Payload: []byte(`{}`)}), ShouldBeTrue)
			}

			Convey("Then every message is stored", func() {
				So(waitFor(func() bool { return ins.count() == 3 }), ShouldBeTrue)
				So(p.Stop(), ShouldBeNil)
			})
		})

		Convey("When an insert fails", func() {
			ins.fail = map[string]bool{"pi-bad": true}
			p.Start(ctx)
			q.Enqueue(ctx, queue.Message{MessageID: "a", DeviceID: "pi-bad", Payload: []byte(`{}`)})
			q.Enqueue(ctx, queue.Message{MessageID: "b", DeviceID: "pi-ok", Payload: []byte(`{}`)})

			Convey("Then other messages are still processed", func() {
				So(waitFor(func() bool { return ins.count() == 1 }), ShouldBeTrue)
				So(p.Stop(), ShouldBeNil)
			})
		})

		Convey("When the pool is stopped", func() {
			p.Start(ctx)

			Convey("Then Stop returns without hanging", func() {
				So(p.Stop(), ShouldBeNil)
			})
		})
	})
}
