package ingest

import (
	"context"
	"testing"

	"github.com/avian-io/roost/internal/adapters/mq/queue"
	"github.com/avian-io/roost/internal/domain/dedupe"
	"github.com/avian-io/roost/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeMessage implements mqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
	id      uint16
}

func (f *fakeMessage) Duplicate() bool   { return false }
func (f *fakeMessage) Qos() byte         { return 1 }
func (f *fakeMessage) Retained() bool    { return false }
func (f *fakeMessage) Topic() string     { return f.topic }
func (f *fakeMessage) MessageID() uint16 { return f.id }
func (f *fakeMessage) Payload() []byte   { return f.payload }
func (f *fakeMessage) Ack()              {}

type fakeDevices struct {
	known map[string]bool
}

func (f *fakeDevices) DeviceExists(_ context.Context, deviceID string) (bool, error) {
	return f.known[deviceID], nil
}

type capturingSink struct {
	messages []queue.Message
	full     bool
}

func (c *capturingSink) Enqueue(_ context.Context, m queue.Message) bool {
	if c.full {
		return false
	}
	c.messages = append(c.messages, m)
	return true
}

func newTestSubscriber(devices DeviceChecker, sink Enqueuer, d dedupe.Deduper) *Subscriber {
	_ = logger.Init()
	s := NewSubscriber("tcp://broker.invalid:1883", devices, sink, d)
	s.log = logger.Named("ingest-test")
	return s
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	Convey("Given an MQTT ingest subscriber", t, func() {
		devices := &fakeDevices{known: map[string]bool{"pi-1": true}}
		sink := &capturingSink{}
		d := dedupe.NewInMemoryDeduper()
		s := newTestSubscriber(devices, sink, d)

		Convey("When a valid reading arrives", func() {
			s.handle(ctx, &fakeMessage{
				topic:   "roost/telemetry/pi-1",
				payload: []byte(`{"message_id": "m-1", "potentiometer_value": 42}`),
			})

			Convey("Then it is enqueued with device and message ids", func() {
				So(sink.messages, ShouldHaveLength, 1)
				So(sink.messages[0].DeviceID, ShouldEqual, "pi-1")
				So(sink.messages[0].MessageID, ShouldEqual, "m-1")
			})
		})

		Convey("When the same message is redelivered", func() {
			msg := &fakeMessage{
				topic:   "roost/telemetry/pi-1",
				payload: []byte(`{"message_id": "m-2", "potentiometer_value": 1}`),
			}
			s.handle(ctx, msg)
			s.handle(ctx, msg)

			Convey("Then only the first delivery is enqueued", func() {
				So(sink.messages, ShouldHaveLength, 1)
			})
		})

		Convey("When the payload is not JSON", func() {
			s.handle(ctx, &fakeMessage{topic: "roost/telemetry/pi-1", payload: []byte(`not json`)})

			Convey("Then it is dropped", func() {
				So(sink.messages, ShouldBeEmpty)
			})
		})

		Convey("When the payload lacks the metric field", func() {
			s.handle(ctx, &fakeMessage{
				topic:   "roost/telemetry/pi-1",
				payload: []byte(`{"humidity": 40}`),
			})

			Convey("Then it is dropped", func() {
				So(sink.messages, ShouldBeEmpty)
			})
		})

		Convey("When the device is unknown", func() {
			s.handle(ctx, &fakeMessage{
				topic:   "roost/telemetry/ghost",
				payload: []byte(`{"message_id": "m-3", "potentiometer_value": 5}`),
			})

			Convey("Then it is dropped", func() {
				So(sink.messages, ShouldBeEmpty)
			})
		})

		Convey("When the queue reports backpressure", func() {
			sink.full = true
			msg := &fakeMessage{
				topic:   "roost/telemetry/pi-1",
				payload: []byte(`{"message_id": "m-4", "potentiometer_value": 5}`),
			}
			s.handle(ctx, msg)

			Convey("Then the message id is unrecorded for retry", func() {
				sink.full = false
				s.handle(ctx, msg)
				So(sink.messages, ShouldHaveLength, 1)
			})
		})

		Convey("When no message_id is supplied", func() {
			s.handle(ctx, &fakeMessage{
				topic:   "roost/telemetry/pi-1",
				payload: []byte(`{"potentiometer_value": 9}`),
				id:      7,
			})

			Convey("Then a packet-scoped id is derived", func() {
				So(sink.messages, ShouldHaveLength, 1)
				So(sink.messages[0].MessageID, ShouldEqual, "roost/telemetry/pi-1/7")
			})
		})
	})
}

func TestDeviceFromTopic(t *testing.T) {
	Convey("Given telemetry topics", t, func() {
		Convey("Then the device id is the last segment", func() {
			So(deviceFromTopic("roost/telemetry/pi-9"), ShouldEqual, "pi-9")
		})

		Convey("And malformed topics yield no device", func() {
			So(deviceFromTopic("roost/telemetry/"), ShouldEqual, "")
			So(deviceFromTopic("plain"), ShouldEqual, "")
		})
	})
}
