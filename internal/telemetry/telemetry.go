// Package telemetry periodically uploads the raw sensor sample and the
// hand-detect latch to remote sinks, independent of state resolution.
package telemetry

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/sweeney/smart-box/internal/logic"
)

// InvalidDistanceCM is uploaded when the distance sensor timed out.
const InvalidDistanceCM = 9999.0

// Latch is the sticky hand-detect flag. It is set by the control loop and
// cleared only by an upload.
type Latch struct {
	v atomic.Bool
}

// Set latches the flag.
func (l *Latch) Set() {
	l.v.Store(true)
}

// Take returns the flag and clears it.
func (l *Latch) Take() bool {
	return l.v.Swap(false)
}

// Peek returns the flag without clearing it.
func (l *Latch) Peek() bool {
	return l.v.Load()
}

// Record is one telemetry upload. Field order on the wire is fixed.
type Record struct {
	Magnetic     int     `json:"magnetic"`    // 1 = closed, 0 = open
	Button       int     `json:"button"`      // 1 = pressed
	Light        int     `json:"light"`       // raw ADC value
	LightState   int     `json:"light_state"` // 1 = counter empty
	DistanceCM   float64 `json:"distance_cm"` // InvalidDistanceCM when invalid
	HandDetected int     `json:"hand_detected"`
}

// NewRecord builds a record from a sample and the latched hand flag.
func NewRecord(s logic.Sample, hand bool) Record {
	dist := InvalidDistanceCM
	if cm, ok := s.Distance.Cm(); ok {
		dist = cm
	}
	return Record{
		Magnetic:     b2i(s.DoorClosed),
		Button:       b2i(s.ButtonPressed),
		Light:        s.LightValue,
		LightState:   b2i(s.CounterEmpty),
		DistanceCM:   dist,
		HandDetected: b2i(hand),
	}
}

// Fields returns the six values in upload order.
func (r Record) Fields() []string {
	return []string{
		strconv.Itoa(r.Magnetic),
		strconv.Itoa(r.Button),
		strconv.Itoa(r.Light),
		strconv.Itoa(r.LightState),
		strconv.FormatFloat(r.DistanceCM, 'f', 2, 64),
		strconv.Itoa(r.HandDetected),
	}
}

// Sink receives telemetry records.
type Sink interface {
	Name() string
	Send(ctx context.Context, r Record) error
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
