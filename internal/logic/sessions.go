package logic

import "time"

// updateButton detects a rising button edge. A press with an item on the
// counter requests classification for that item; this is the only way a
// request can be made.
func (s *Sessions) updateButton(sample Sample) {
	if sample.ButtonPressed && !s.LastButton && sample.ItemOnCounter {
		s.Item.ClassificationRequested = true
		s.Item.ClassificationDone = false
	}
	s.LastButton = sample.ButtonPressed
}

// updateDoor opens or closes the door session. Closing with a hand seen and
// the counter empty arms the pickup wait.
func (s *Sessions) updateDoor(sample Sample, now time.Time) {
	switch {
	case sample.DoorOpen && !s.Door.Open:
		s.Door = DoorSession{
			Open:          true,
			OpenSince:     now,
			HadItemAtOpen: sample.ItemOnCounter,
		}
	case !sample.DoorOpen && s.Door.Open:
		if s.Door.HandSeenDuringOpen && sample.CounterEmpty {
			s.Pickup = PickupWaitSession{Armed: true, ClosedSince: now}
		}
		s.Door = DoorSession{}
	}

	if sample.DoorOpen && sample.HandInPath {
		s.Door.HandSeenDuringOpen = true
	}
}

// updateItem tracks placement and removal. A new item always starts
// unprocessed; removal keeps the classification flags for the resolver.
func (s *Sessions) updateItem(sample Sample, now time.Time) {
	switch {
	case sample.ItemOnCounter && !s.Item.Present:
		s.Item = ItemSession{Present: true, PresentSince: now}
	case !sample.ItemOnCounter && s.Item.Present:
		s.Item.Present = false
	}

	if s.Pickup.Armed && sample.ItemOnCounter {
		s.Pickup = PickupWaitSession{}
	}
}

// applyClassification latches ClassificationDone if a request is outstanding.
// Returns false when the event was ignored.
func (s *Sessions) applyClassification() bool {
	if !s.Item.ClassificationRequested {
		return false
	}
	s.Item.ClassificationDone = true
	return true
}

// retireItem clears the classification flags once a classified item has
// left the counter.
func (s *Sessions) retireItem() {
	s.Item.ClassificationRequested = false
	s.Item.ClassificationDone = false
}

// elapsed returns the time spent in each open session at now.
func (s *Sessions) elapsed(now time.Time) (door, item, pickup time.Duration) {
	if s.Door.Open {
		door = now.Sub(s.Door.OpenSince)
	}
	if s.Item.Present {
		item = now.Sub(s.Item.PresentSince)
	}
	if s.Pickup.Armed {
		pickup = now.Sub(s.Pickup.ClosedSince)
	}
	return door, item, pickup
}
