// Package status provides a thread-safe status tracker for the smart-box daemon.
// It is read by the HTTP handlers, the heartbeat and the telemetry uploader.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/smart-box/internal/feed"
	"github.com/sweeney/smart-box/internal/logic"
)

// NetworkInfo contains network state as reported by the host environment.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	BoxID       string
	PollMs      int64
	HeartbeatMs int64
	FeedURL     string
	Broker      string
	HTTPAddr    string
	Thresholds  logic.Thresholds
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	BootID        string
	Ticked        bool
	Last          logic.Result
	Counts        logic.TransitionCounts
	Feed          feed.Status
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// State returns the current system state, or NORMAL before the first tick.
func (s Snapshot) State() logic.SystemState {
	if !s.Ticked {
		return logic.StateNormal
	}
	return s.Last.State
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(bootID string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:    bootID,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the result of a tick and the running transition counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(r logic.Result, counts logic.TransitionCounts) {
	t.mu.Lock()
	t.snap.Ticked = true
	t.snap.Last = r
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetFeed records the classification poller status.
func (t *Tracker) SetFeed(s feed.Status) {
	t.mu.Lock()
	t.snap.Feed = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// LatestSample returns the sample of the most recent tick.
// The second value is false until the first tick has run.
func (t *Tracker) LatestSample() (logic.Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Last.Sample, t.snap.Ticked
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
