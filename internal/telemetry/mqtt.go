package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
)

// TelemetryPublisher is the part of the MQTT publisher the sink needs.
type TelemetryPublisher interface {
	PublishTelemetry(payload []byte) error
}

// MQTTSink publishes records as JSON.
type MQTTSink struct {
	pub TelemetryPublisher
}

// NewMQTTSink wraps an MQTT publisher.
func NewMQTTSink(pub TelemetryPublisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Name identifies the sink in logs and metrics.
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Send publishes r. The publisher bounds the call with its own timeout.
func (s *MQTTSink) Send(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	if err := s.pub.PublishTelemetry(payload); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	return nil
}
