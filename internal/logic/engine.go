package logic

import "time"

// Engine owns all session state and turns samples into states.
// Not safe for concurrent use; the control loop is its only caller.
type Engine struct {
	thresholds    Thresholds
	sessions      Sessions
	state         SystemState
	counts        TransitionCounts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewEngine creates an engine in the Normal state.
// The startTime is used for calculating uptime in heartbeat events.
func NewEngine(t Thresholds, startTime time.Time) *Engine {
	return &Engine{
		thresholds:    t,
		state:         StateNormal,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process runs one tick: update the trackers from the input, apply a
// classification event if one arrived, then resolve the state.
// classified must be true at most once per new remote result.
func (e *Engine) Process(in Input, classified bool) Result {
	now := in.Time
	sample := e.thresholds.Sample(in)

	e.sessions.updateButton(sample)
	e.sessions.updateDoor(sample, now)
	e.sessions.updateItem(sample, now)

	res := Result{Sample: sample, Previous: e.state}
	if classified {
		if e.sessions.applyClassification() {
			res.ClassificationAccepted = true
		} else {
			res.ClassificationIgnored = true
		}
	}

	res.DoorOpenFor, res.ItemOnCounterFor, res.PickupWaitFor = e.sessions.elapsed(now)

	r := Resolve(sample, e.sessions, e.thresholds, now)
	if r.RetireItem {
		e.sessions.retireItem()
		res.ItemRetired = true
	}

	res.State = r.State
	res.Rule = r.Rule
	res.Sessions = e.sessions

	if r.State != e.state {
		res.Event = &Event{Timestamp: now, From: e.state, To: r.State, Rule: r.Rule}
		e.count(r.State)
		e.state = r.State
	}
	return res
}

func (e *Engine) count(s SystemState) {
	switch s {
	case StateNormal:
		e.counts.Normal++
	case StateProcessing:
		e.counts.Processing++
	case StateWaiting:
		e.counts.Waiting++
	case StateAbnormal:
		e.counts.Abnormal++
	}
}

// State returns the state resolved on the last tick.
func (e *Engine) State() SystemState {
	return e.state
}

// Sessions returns a copy of the current tracker state.
func (e *Engine) Sessions() Sessions {
	return e.sessions
}

// Counts returns how many times each state has been entered.
func (e *Engine) Counts() TransitionCounts {
	return e.counts
}

// Thresholds returns the engine's configuration.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (e *Engine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(e.lastHeartbeat) < interval {
		return nil
	}

	e.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(e.startTime),
		State:     e.state,
		Counts:    e.counts,
	}
}
