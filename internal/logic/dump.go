package logic

import (
	"fmt"
	"io"
)

// Dump writes a human-readable report of one tick: every sensor value,
// derived flag and the resolved state.
func Dump(w io.Writer, r Result) error {
	s := r.Sample
	distance := "invalid"
	if cm, ok := s.Distance.Cm(); ok {
		distance = fmt.Sprintf("%.2f cm", cm)
	}
	rule := string(r.Rule)
	if rule == "" {
		rule = "-"
	}

	_, err := fmt.Fprintf(w, `---------------
Magnetic (0=open,1=closed):   %d
DoorOpen:                     %d
ButtonState (1=pressed):      %d
LightVal:                     %d
LightState (1=empty):         %d
Distance:                     %s
HandInPath:                   %d
DoorOpenFor:                  %v
ItemOnCounter:                %d
ItemOnCounterFor:             %v
ClassificationRequested:      %d
ClassificationDone:           %d
PickupWaitArmed:              %d
SystemState (0=N,1=P,2=W,3=A): %d %s
Rule:                         %s
`,
		bit(s.DoorClosed),
		bit(s.DoorOpen),
		bit(s.ButtonPressed),
		s.LightValue,
		bit(s.CounterEmpty),
		distance,
		bit(s.HandInPath),
		r.DoorOpenFor,
		bit(s.ItemOnCounter),
		r.ItemOnCounterFor,
		bit(r.Sessions.Item.ClassificationRequested),
		bit(r.Sessions.Item.ClassificationDone),
		bit(r.Sessions.Pickup.Armed),
		r.State.Code(), r.State,
		rule,
	)
	return err
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
