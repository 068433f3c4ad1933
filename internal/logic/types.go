// Package logic contains the pure state-fusion engine for the smart box.
// This package has NO external dependencies (no GPIO, MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// SystemState is the operator-facing state of the box.
type SystemState string

const (
	StateNormal     SystemState = "NORMAL"
	StateProcessing SystemState = "PROCESSING"
	StateWaiting    SystemState = "WAITING"
	StateAbnormal   SystemState = "ABNORMAL"
)

// Code returns the numeric state code (0=N, 1=P, 2=W, 3=A) used on the wire.
func (s SystemState) Code() int {
	switch s {
	case StateProcessing:
		return 1
	case StateWaiting:
		return 2
	case StateAbnormal:
		return 3
	default:
		return 0
	}
}

// Distance is a distance-sensor reading that may be absent (sensor timeout).
type Distance struct {
	cm    float64
	valid bool
}

// InvalidDistance is the reading produced when the sensor timed out.
var InvalidDistance = Distance{}

// DistanceCM returns a valid reading. Non-positive values are treated as invalid.
func DistanceCM(cm float64) Distance {
	if cm <= 0 {
		return InvalidDistance
	}
	return Distance{cm: cm, valid: true}
}

// Cm returns the distance and whether it is valid.
func (d Distance) Cm() (float64, bool) {
	return d.cm, d.valid
}

// Valid reports whether the reading is valid.
func (d Distance) Valid() bool {
	return d.valid
}

// Input represents a single raw sample of all sensor channels.
type Input struct {
	DoorClosed    bool // true = magnetic switch reads closed
	ButtonPressed bool
	LightValue    int
	Distance      Distance
	Time          time.Time
}

// Sample is an Input with the derived predicates for one tick.
// Immutable for the tick it belongs to.
type Sample struct {
	Input

	DoorOpen      bool
	CounterEmpty  bool
	ItemOnCounter bool
	HandInPath    bool
}

// Thresholds holds the fixed decision parameters. Never mutated after startup.
type Thresholds struct {
	LightThreshold     int
	HandDistanceCm     float64
	DoorOpenGrace      time.Duration
	ItemOnCounterGrace time.Duration
	PickupWait         time.Duration
}

// DefaultThresholds returns the values the box ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LightThreshold:     2000,
		HandDistanceCm:     35.0,
		DoorOpenGrace:      60 * time.Second,
		ItemOnCounterGrace: 90 * time.Second,
		PickupWait:         60 * time.Second,
	}
}

// Sample derives the per-tick predicates from a raw input.
func (t Thresholds) Sample(in Input) Sample {
	s := Sample{Input: in}
	s.DoorOpen = !in.DoorClosed
	s.CounterEmpty = in.LightValue > t.LightThreshold
	s.ItemOnCounter = !s.CounterEmpty
	if cm, ok := in.Distance.Cm(); ok && s.DoorOpen && cm < t.HandDistanceCm {
		s.HandInPath = true
	}
	return s
}

// DoorSession tracks the interval during which the door reads open.
type DoorSession struct {
	Open               bool
	OpenSince          time.Time
	HadItemAtOpen      bool
	HandSeenDuringOpen bool
}

// ItemSession tracks the interval during which the counter reads occupied.
// Classification flags outlive the removal edge until the item is retired.
type ItemSession struct {
	Present                 bool
	PresentSince            time.Time
	ClassificationRequested bool
	ClassificationDone      bool
}

// PickupWaitSession is armed when a hand was seen during an open-door interval
// and the door closed with the counter empty.
type PickupWaitSession struct {
	Armed       bool
	ClosedSince time.Time
}

// Sessions is a point-in-time copy of all tracker state.
type Sessions struct {
	Door       DoorSession
	Item       ItemSession
	Pickup     PickupWaitSession
	LastButton bool
}

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	From      SystemState
	To        SystemState
	Rule      Rule
}

// TransitionCounts tracks how many times each state was entered since startup.
type TransitionCounts struct {
	Normal     int
	Processing int
	Waiting    int
	Abnormal   int
}

// Result is everything a single tick produced.
type Result struct {
	Sample   Sample
	State    SystemState
	Previous SystemState
	Rule     Rule

	// ClassificationAccepted is true if a classification event was applied
	// to the current item session; ClassificationIgnored if one arrived but
	// no classification had been requested.
	ClassificationAccepted bool
	ClassificationIgnored  bool
	ItemRetired            bool

	DoorOpenFor      time.Duration
	ItemOnCounterFor time.Duration
	PickupWaitFor    time.Duration

	Sessions Sessions

	// Event is non-nil when State differs from Previous.
	Event *Event
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     SystemState
	Counts    TransitionCounts
}
