package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Box           string       `json:"box"`
	BootID        string       `json:"boot_id"`
	State         string       `json:"state"`
	Code          int          `json:"code"`
	Rule          string       `json:"rule,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensors       *SensorsJSON `json:"sensors,omitempty"`
	Sessions      SessionsJSON `json:"sessions"`
	Feed          FeedJSON     `json:"classification"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"state_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorsJSON is the most recent sample.
type SensorsJSON struct {
	DoorOpen     bool     `json:"door_open"`
	Button       bool     `json:"button"`
	Light        int      `json:"light"`
	CounterEmpty bool     `json:"counter_empty"`
	DistanceCM   *float64 `json:"distance_cm"`
	HandInPath   bool     `json:"hand_in_path"`
	SampledAt    string   `json:"sampled_at"`
}

// SessionsJSON is the tracker state with elapsed times.
type SessionsJSON struct {
	DoorOpenSeconds         int64 `json:"door_open_seconds"`
	HandSeenDuringOpen      bool  `json:"hand_seen_during_open"`
	ItemPresent             bool  `json:"item_present"`
	ItemOnCounterSeconds    int64 `json:"item_on_counter_seconds"`
	ClassificationRequested bool  `json:"classification_requested"`
	ClassificationDone      bool  `json:"classification_done"`
	PickupArmed             bool  `json:"pickup_armed"`
	PickupWaitSeconds       int64 `json:"pickup_wait_seconds"`
}

// FeedJSON reports the classification poller.
type FeedJSON struct {
	URL       string `json:"url"`
	Baselined bool   `json:"baselined"`
	LastID    string `json:"last_id,omitempty"`
	LastLabel string `json:"last_label,omitempty"`
	LastPoll  string `json:"last_poll,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Events    int    `json:"events"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of state entry counts.
type CountsJSON struct {
	Normal     int `json:"normal"`
	Processing int `json:"processing"`
	Waiting    int `json:"waiting"`
	Abnormal   int `json:"abnormal"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs              int64   `json:"poll_ms"`
	HeartbeatMs         int64   `json:"heartbeat_ms"`
	Broker              string  `json:"broker"`
	HTTPAddr            string  `json:"http_addr"`
	LightThreshold      int     `json:"light_threshold"`
	HandDistanceCM      float64 `json:"hand_distance_cm"`
	DoorOpenGraceS      int64   `json:"door_open_grace_s"`
	ItemOnCounterGraceS int64   `json:"item_on_counter_grace_s"`
	PickupWaitS         int64   `json:"pickup_wait_s"`
}

func seconds(d time.Duration) int64 {
	return int64(d.Truncate(time.Second).Seconds())
}

func buildInner(snap Snapshot) StatusInner {
	state := snap.State()
	last := snap.Last
	th := snap.Config.Thresholds

	inner := StatusInner{
		Box:           snap.Config.BoxID,
		BootID:        snap.BootID,
		State:         string(state),
		Code:          state.Code(),
		Rule:          string(last.Rule),
		UptimeSeconds: seconds(snap.Uptime()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sessions: SessionsJSON{
			DoorOpenSeconds:         seconds(last.DoorOpenFor),
			HandSeenDuringOpen:      last.Sessions.Door.HandSeenDuringOpen,
			ItemPresent:             last.Sessions.Item.Present,
			ItemOnCounterSeconds:    seconds(last.ItemOnCounterFor),
			ClassificationRequested: last.Sessions.Item.ClassificationRequested,
			ClassificationDone:      last.Sessions.Item.ClassificationDone,
			PickupArmed:             last.Sessions.Pickup.Armed,
			PickupWaitSeconds:       seconds(last.PickupWaitFor),
		},
		Feed: FeedJSON{
			URL:       snap.Config.FeedURL,
			Baselined: snap.Feed.Baselined,
			LastID:    snap.Feed.LastID,
			LastLabel: snap.Feed.LastLabel,
			LastError: snap.Feed.LastError,
			Events:    snap.Feed.Events,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Normal:     snap.Counts.Normal,
			Processing: snap.Counts.Processing,
			Waiting:    snap.Counts.Waiting,
			Abnormal:   snap.Counts.Abnormal,
		},
		Config: ConfigJSON{
			PollMs:              snap.Config.PollMs,
			HeartbeatMs:         snap.Config.HeartbeatMs,
			Broker:              snap.Config.Broker,
			HTTPAddr:            snap.Config.HTTPAddr,
			LightThreshold:      th.LightThreshold,
			HandDistanceCM:      th.HandDistanceCm,
			DoorOpenGraceS:      seconds(th.DoorOpenGrace),
			ItemOnCounterGraceS: seconds(th.ItemOnCounterGrace),
			PickupWaitS:         seconds(th.PickupWait),
		},
	}
	if !snap.Feed.LastPoll.IsZero() {
		inner.Feed.LastPoll = snap.Feed.LastPoll.UTC().Format(time.RFC3339)
	}

	if snap.Ticked {
		s := last.Sample
		sensors := &SensorsJSON{
			DoorOpen:     s.DoorOpen,
			Button:       s.ButtonPressed,
			Light:        s.LightValue,
			CounterEmpty: s.CounterEmpty,
			HandInPath:   s.HandInPath,
			SampledAt:    s.Time.UTC().Format(time.RFC3339),
		}
		if cm, ok := s.Distance.Cm(); ok {
			sensors.DistanceCM = &cm
		}
		inner.Sensors = sensors
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
