package logic

import "time"

// Rule names the predicate that decided a tick's state.
type Rule string

const (
	RuleRemovedBeforeClassified Rule = "removed_before_classified"
	RuleDoorOpenTooLong         Rule = "door_open_too_long"
	RuleButtonWithoutItem       Rule = "button_without_item"
	RulePickupNotConfirmed      Rule = "pickup_not_confirmed"
	RuleItemUnattended          Rule = "item_unattended"
	RuleHandDuringOpenWithItem  Rule = "hand_during_open_with_item"

	RuleAwaitingClassification Rule = "awaiting_classification"
	RuleAwaitingPickup         Rule = "awaiting_pickup"
	RuleItemPlaced             Rule = "item_placed"

	RuleClassifiedAwaitingPickup Rule = "classified_awaiting_pickup"
	RuleDoorOpen                 Rule = "door_open"
	RuleButtonWithItem           Rule = "button_with_item"

	RuleItemRetired Rule = "item_retired"
)

// ruleInput is what every rule predicate sees.
type ruleInput struct {
	sample           Sample
	sessions         *Sessions
	thresholds       Thresholds
	doorOpenFor      time.Duration
	itemOnCounterFor time.Duration
	sinceDoorClose   time.Duration
}

type rule struct {
	id    Rule
	holds func(in *ruleInput) bool
}

type ruleGroup struct {
	state SystemState
	rules []rule
}

// ruleGroups are evaluated top to bottom; the first group with any rule
// holding decides the state. Within a group the first holding rule is
// reported.
var ruleGroups = []ruleGroup{
	{state: StateAbnormal, rules: []rule{
		{RuleRemovedBeforeClassified, func(in *ruleInput) bool {
			it := in.sessions.Item
			return !in.sample.ItemOnCounter && it.ClassificationRequested && !it.ClassificationDone
		}},
		{RuleDoorOpenTooLong, func(in *ruleInput) bool {
			return in.sample.DoorOpen && in.sample.CounterEmpty && in.doorOpenFor > in.thresholds.DoorOpenGrace
		}},
		{RuleButtonWithoutItem, func(in *ruleInput) bool {
			return in.sample.ButtonPressed && !in.sample.ItemOnCounter
		}},
		{RulePickupNotConfirmed, func(in *ruleInput) bool {
			return in.sessions.Pickup.Armed && in.sample.CounterEmpty && in.sinceDoorClose > in.thresholds.PickupWait
		}},
		{RuleItemUnattended, func(in *ruleInput) bool {
			return in.sample.ItemOnCounter && !in.sessions.Item.ClassificationRequested &&
				in.itemOnCounterFor > in.thresholds.ItemOnCounterGrace
		}},
		{RuleHandDuringOpenWithItem, func(in *ruleInput) bool {
			return in.sample.DoorOpen && in.sessions.Door.HandSeenDuringOpen && in.sample.ItemOnCounter
		}},
	}},
	{state: StateWaiting, rules: []rule{
		// Listed first: waiting on the classifier dominates the other reasons.
		{RuleAwaitingClassification, func(in *ruleInput) bool {
			it := in.sessions.Item
			return in.sample.ItemOnCounter && it.ClassificationRequested && !it.ClassificationDone
		}},
		{RuleAwaitingPickup, func(in *ruleInput) bool {
			return in.sessions.Pickup.Armed && in.sample.CounterEmpty && in.sinceDoorClose <= in.thresholds.PickupWait
		}},
		{RuleItemPlaced, func(in *ruleInput) bool {
			return in.sample.ItemOnCounter && !in.sessions.Item.ClassificationRequested &&
				in.itemOnCounterFor <= in.thresholds.ItemOnCounterGrace
		}},
	}},
	{state: StateProcessing, rules: []rule{
		{RuleClassifiedAwaitingPickup, func(in *ruleInput) bool {
			it := in.sessions.Item
			return in.sample.ItemOnCounter && it.ClassificationRequested && it.ClassificationDone
		}},
		{RuleDoorOpen, func(in *ruleInput) bool {
			return in.sample.DoorOpen
		}},
		{RuleButtonWithItem, func(in *ruleInput) bool {
			return in.sample.ButtonPressed && in.sample.ItemOnCounter
		}},
	}},
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	State SystemState
	Rule  Rule
	// RetireItem asks the caller to clear the item's classification flags.
	RetireItem bool
}

// Resolve computes the state for one tick. It does not modify sessions and
// always returns exactly one of the four states.
func Resolve(sample Sample, sessions Sessions, t Thresholds, now time.Time) Resolution {
	in := ruleInput{
		sample:     sample,
		sessions:   &sessions,
		thresholds: t,
	}
	in.doorOpenFor, in.itemOnCounterFor, in.sinceDoorClose = sessions.elapsed(now)

	res := Resolution{State: StateNormal}
groups:
	for _, g := range ruleGroups {
		for _, r := range g.rules {
			if r.holds(&in) {
				res.State = g.state
				res.Rule = r.id
				break groups
			}
		}
	}

	it := sessions.Item
	if !sample.ItemOnCounter && it.ClassificationRequested && it.ClassificationDone && res.State != StateAbnormal {
		res = Resolution{State: StateNormal, Rule: RuleItemRetired, RetireItem: true}
	}
	return res
}
