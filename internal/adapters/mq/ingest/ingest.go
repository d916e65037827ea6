// Package ingest subscribes to the device telemetry topic and bridges
// readings into the ingest queue.
//
// Devices publish JSON payloads to roost/telemetry/{device_id} at QoS 1.
// Redeliveries are dropped by message id before touching the store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/avian-io/roost/internal/adapters/mq/queue"
	"github.com/avian-io/roost/internal/domain/dedupe"
	"github.com/avian-io/roost/pkg/logger"
	"github.com/avian-io/roost/pkg/metrics"
)

// Default subscriber configuration constants.
const (
	defaultTopic         = "roost/telemetry/+"
	defaultQOS           = 1
	connectRetryInterval = 2 * time.Second
	disconnectQuiesceMS  = 250
	metricField          = "potentiometer_value"
)

// DeviceChecker reports whether a device id is registered.
type DeviceChecker interface {
	DeviceExists(ctx context.Context, deviceID string) (bool, error)
}

// Enqueuer accepts validated messages for asynchronous storage.
type Enqueuer interface {
	Enqueue(ctx context.Context, m queue.Message) bool
}

// Option applies a configuration option to the Subscriber.
type Option func(*Subscriber)

// WithTopic overrides the subscription topic filter.
func WithTopic(topic string) Option {
	return func(s *Subscriber) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithQOS sets the subscription quality of service.
func WithQOS(qos byte) Option {
	return func(s *Subscriber) { s.qos = qos }
}

// WithLogger sets the subscriber logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// Subscriber bridges MQTT telemetry into the ingest queue.
type Subscriber struct {
	brokerURL string
	topic     string
	qos       byte

	client  mqtt.Client
	devices DeviceChecker
	sink    Enqueuer
	deduper dedupe.Deduper
	log     logger.Logger
}

// NewSubscriber creates a Subscriber for brokerURL.
func NewSubscriber(brokerURL string, devices DeviceChecker, sink Enqueuer, deduper dedupe.Deduper, opts ...Option) *Subscriber {
	s := &Subscriber{
		brokerURL: brokerURL,
		topic:     defaultTopic,
		qos:       defaultQOS,
		devices:   devices,
		sink:      sink,
		deduper:   deduper,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects to the broker and subscribes to the telemetry topic.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.log == nil {
		s.log = logger.Get().Named("ingest")
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(s.brokerURL)
	o.SetClientID("roost-" + uuid.NewString())
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(connectRetryInterval)
	s.client = mqtt.NewClient(o)

	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect broker %s: %w", s.brokerURL, token.Error())
	}

	handler := func(_ mqtt.Client, m mqtt.Message) {
		s.handle(ctx, m)
	}
	if token := s.client.Subscribe(s.topic, s.qos, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}

	s.log.Info(ctx, "mqtt ingest started",
		logger.String("broker", s.brokerURL),
		logger.String("topic", s.topic),
	)
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (s *Subscriber) Stop() {
	if s.client == nil {
		return
	}
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil && s.log != nil {
		s.log.Warn(context.Background(), "mqtt unsubscribe failed", logger.Error(token.Error()))
	}
	s.client.Disconnect(disconnectQuiesceMS)
}

func (s *Subscriber) handle(ctx context.Context, m mqtt.Message) {
	deviceID := deviceFromTopic(m.Topic())
	if deviceID == "" {
		metrics.RecordTelemetryRejected()
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(m.Payload(), &payload); err != nil {
		metrics.RecordTelemetryRejected()
		s.log.Warn(ctx, "dropping malformed telemetry payload",
			logger.String("device", deviceID),
			logger.Error(err),
		)
		return
	}
	if _, ok := payload[metricField]; !ok {
		metrics.RecordTelemetryRejected()
		s.log.Warn(ctx, "dropping telemetry without metric field",
			logger.String("device", deviceID),
		)
		return
	}

	messageID := messageIDOf(m, payload)
	if s.deduper.SeenAndRecord(ctx, messageID) {
		metrics.RecordIngestDuplicate()
		return
	}

	exists, err := s.devices.DeviceExists(ctx, deviceID)
	if err != nil {
		s.deduper.Unrecord(ctx, messageID)
		s.log.Error(ctx, "device lookup failed", logger.String("device", deviceID), logger.Error(err))
		return
	}
	if !exists {
		metrics.RecordTelemetryRejected()
		s.log.Warn(ctx, "dropping telemetry for unknown device", logger.String("device", deviceID))
		return
	}

	if !s.sink.Enqueue(ctx, queue.Message{
		MessageID: messageID,
		DeviceID:  deviceID,
		Payload:   m.Payload(),
	}) {
		// Allow a retry once the queue has room again.
		s.deduper.Unrecord(ctx, messageID)
		s.log.Warn(ctx, "ingest queue full, dropping telemetry", logger.String("device", deviceID))
	}
}

// deviceFromTopic extracts the device id from roost/telemetry/{device_id}.
func deviceFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}

// messageIDOf prefers a device-supplied message_id so redeliveries across
// reconnects dedupe correctly; the packet id only survives one session.
func messageIDOf(m mqtt.Message, payload map[string]any) string {
	if id, ok := payload["message_id"].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("%s/%d", m.Topic(), m.MessageID())
}
