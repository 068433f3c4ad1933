package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/smart-box/internal/logic"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func stateMsg(t *testing.T, from, to logic.SystemState, rule logic.Rule) outMsg {
	t.Helper()
	payload, err := FormatPayload(logic.Event{Timestamp: t0, From: from, To: to, Rule: rule})
	if err != nil {
		t.Fatalf("format state payload: %v", err)
	}
	return outMsg{class: classState, topic: "smartbox/test/state", payload: payload}
}

func systemMsg(t *testing.T, event string, at time.Time) outMsg {
	t.Helper()
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: at, Event: event})
	if err != nil {
		t.Fatalf("format system payload: %v", err)
	}
	return outMsg{class: systemClass(event), topic: "smartbox/test/system", payload: payload, qos: 1}
}

// describe returns "STATE:<to>" or "<EVENT>@<time>" for a queued message.
func describe(t *testing.T, m outMsg) string {
	t.Helper()
	if m.class == classState {
		var p Payload
		if err := json.Unmarshal(m.payload, &p); err != nil {
			t.Fatalf("bad state payload: %v", err)
		}
		return "STATE:" + p.Box.State
	}
	var p SystemPayload
	if err := json.Unmarshal(m.payload, &p); err != nil {
		t.Fatalf("bad system payload: %v", err)
	}
	return p.System.Event + "@" + p.System.Timestamp
}

func drain(t *testing.T, o *outbox) []string {
	t.Helper()
	var got []string
	for {
		m, ok := o.shift()
		if !ok {
			return got
		}
		got = append(got, describe(t, m))
	}
}

func assertQueue(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSystemClass(t *testing.T) {
	tests := map[string]msgClass{
		EventHeartbeat: classHeartbeat,
		EventStartup:   classLifecycle,
		EventShutdown:  classLifecycle,
		EventOffline:   classLifecycle,
	}
	for event, want := range tests {
		if got := systemClass(event); got != want {
			t.Errorf("systemClass(%s): got %v, want %v", event, got, want)
		}
	}
}

func TestOutboxEmpty(t *testing.T) {
	o := newOutbox(4)
	if _, ok := o.shift(); ok {
		t.Error("expected nothing from empty outbox")
	}
	if o.len() != 0 {
		t.Errorf("len: got %d", o.len())
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	o := newOutbox(8)
	o.push(systemMsg(t, EventStartup, t0))
	o.push(stateMsg(t, logic.StateNormal, logic.StateWaiting, logic.RuleItemPlaced))
	o.push(stateMsg(t, logic.StateWaiting, logic.StateProcessing, logic.RuleClassifiedAwaitingPickup))
	o.push(stateMsg(t, logic.StateProcessing, logic.StateNormal, logic.RuleItemRetired))

	assertQueue(t, drain(t, o), []string{
		"STARTUP@2026-03-02T09:00:00Z",
		"STATE:WAITING",
		"STATE:PROCESSING",
		"STATE:NORMAL",
	})
}

func TestOutboxCoalescesHeartbeats(t *testing.T) {
	o := newOutbox(8)
	o.push(systemMsg(t, EventStartup, t0))
	o.push(systemMsg(t, EventHeartbeat, t0.Add(15*time.Minute)))
	o.push(stateMsg(t, logic.StateNormal, logic.StateAbnormal, logic.RuleDoorOpenTooLong))
	o.push(systemMsg(t, EventHeartbeat, t0.Add(30*time.Minute)))

	assertQueue(t, drain(t, o), []string{
		"STARTUP@2026-03-02T09:00:00Z",
		"STATE:ABNORMAL",
		"HEARTBEAT@2026-03-02T09:30:00Z",
	})
	if o.dropped != 0 {
		t.Errorf("coalescing is not a drop, got dropped=%d", o.dropped)
	}
}

func TestOutboxEvictsStateEventsFirst(t *testing.T) {
	o := newOutbox(3)
	o.push(systemMsg(t, EventStartup, t0))
	o.push(stateMsg(t, logic.StateNormal, logic.StateWaiting, logic.RuleItemPlaced))
	o.push(systemMsg(t, EventHeartbeat, t0.Add(time.Minute)))

	// Full: SHUTDOWN evicts the state event, not STARTUP.
	if !o.push(systemMsg(t, EventShutdown, t0.Add(2*time.Minute))) {
		t.Fatal("SHUTDOWN should be kept")
	}
	// No state event left and a state event never evicts a heartbeat.
	if o.push(stateMsg(t, logic.StateWaiting, logic.StateAbnormal, logic.RuleRemovedBeforeClassified)) {
		t.Fatal("state event should be dropped")
	}

	assertQueue(t, drain(t, o), []string{
		"STARTUP@2026-03-02T09:00:00Z",
		"HEARTBEAT@2026-03-02T09:01:00Z",
		"SHUTDOWN@2026-03-02T09:02:00Z",
	})
}

func TestOutboxLifecycleEvictsHeartbeat(t *testing.T) {
	o := newOutbox(2)
	o.push(systemMsg(t, EventStartup, t0))
	o.push(systemMsg(t, EventHeartbeat, t0.Add(time.Minute)))

	if !o.push(systemMsg(t, EventShutdown, t0.Add(2*time.Minute))) {
		t.Fatal("SHUTDOWN should be kept")
	}
	assertQueue(t, drain(t, o), []string{
		"STARTUP@2026-03-02T09:00:00Z",
		"SHUTDOWN@2026-03-02T09:02:00Z",
	})
}

func TestOutboxNeverEvictsLifecycleForStateEvent(t *testing.T) {
	o := newOutbox(2)
	o.push(systemMsg(t, EventStartup, t0))
	o.push(systemMsg(t, EventShutdown, t0.Add(time.Second)))

	if o.push(stateMsg(t, logic.StateNormal, logic.StateProcessing, logic.RuleDoorOpen)) {
		t.Error("state event should be dropped when only lifecycle events are queued")
	}
	if o.dropped != 1 {
		t.Errorf("dropped: got %d, want 1", o.dropped)
	}

	assertQueue(t, drain(t, o), []string{
		"STARTUP@2026-03-02T09:00:00Z",
		"SHUTDOWN@2026-03-02T09:00:01Z",
	})
	if o.dropped != 0 {
		t.Errorf("drop count should reset once drained, got %d", o.dropped)
	}
}

func TestOutboxOverflowKeepsNewestStateEvents(t *testing.T) {
	o := newOutbox(BufferCapacity)
	states := []logic.SystemState{logic.StateWaiting, logic.StateProcessing, logic.StateNormal}
	total := BufferCapacity + 10
	for i := 0; i < total; i++ {
		o.push(stateMsg(t, logic.StateNormal, states[i%3], logic.RuleItemPlaced))
	}
	if o.len() != BufferCapacity {
		t.Fatalf("len: got %d, want %d", o.len(), BufferCapacity)
	}

	got := drain(t, o)
	// The first 10 were evicted, so the queue starts at message 10.
	if want := "STATE:" + string(states[10%3]); got[0] != want {
		t.Errorf("oldest kept: got %s, want %s", got[0], want)
	}
	if want := "STATE:" + string(states[(total-1)%3]); got[len(got)-1] != want {
		t.Errorf("newest kept: got %s, want %s", got[len(got)-1], want)
	}
}

func TestOutboxPreservesDelivery(t *testing.T) {
	o := newOutbox(2)
	m := systemMsg(t, EventShutdown, t0)
	m.retained = true
	o.push(m)

	got, ok := o.shift()
	if !ok {
		t.Fatal("expected message")
	}
	if got.topic != "smartbox/test/system" || got.qos != 1 || !got.retained || got.class != classLifecycle {
		t.Errorf("unexpected message: %+v", got)
	}
}
