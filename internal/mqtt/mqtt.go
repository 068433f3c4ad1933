// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/smart-box/internal/logic"
)

// TopicPrefix is the root of every topic the box publishes to.
const TopicPrefix = "smartbox"

// Topics are the per-box MQTT topics.
type Topics struct {
	State     string // state transitions
	System    string // lifecycle events
	Telemetry string // periodic sensor uploads
}

// TopicsFor returns the topics for a box.
func TopicsFor(boxID string) Topics {
	base := TopicPrefix + "/" + boxID + "/"
	return Topics{
		State:     base + "state",
		System:    base + "system",
		Telemetry: base + "telemetry",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a state transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishTelemetry sends a pre-formatted telemetry record.
	PublishTelemetry(payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Box BoxPayload `json:"box"`
}

// BoxPayload contains the state transition details.
type BoxPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	From      string `json:"from"`
	State     string `json:"state"`
	Code      int    `json:"code"`
	Rule      string `json:"rule,omitempty"`
}

// Event names carried in payloads.
const (
	EventStateChanged = "STATE_CHANGED"
	EventStartup      = "STARTUP"
	EventShutdown     = "SHUTDOWN"
	EventHeartbeat    = "HEARTBEAT"
	EventOffline      = "OFFLINE"
)

// FormatPayload creates the JSON payload for a state transition.
// Every payload carries a fresh event id.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Box: BoxPayload{
			ID:        uuid.NewString(),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     EventStateChanged,
			From:      string(event.From),
			State:     string(event.To),
			Code:      event.To.Code(),
			Rule:      string(event.Rule),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
