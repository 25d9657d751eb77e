package controller

import (
	"fmt"
	"time"
)

// ActionKind enumerates what the controller does with a key after a
// successful reconciliation.
type ActionKind int

const (
	// ActionNoRequeue leaves the key alone until the next watch event.
	ActionNoRequeue ActionKind = iota
	// ActionRequeueAfter reconciles the key again once a delay has passed.
	ActionRequeueAfter
	// ActionAwaitChange is used after cleanup: nothing is scheduled and the
	// removal event of the object is expected to follow.
	ActionAwaitChange
)

func (k ActionKind) String() string {
	switch k {
	case ActionNoRequeue:
		return "NoRequeue"
	case ActionRequeueAfter:
		return "RequeueAfter"
	case ActionAwaitChange:
		return "AwaitChange"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is the scheduling directive returned by a successful reconciliation.
// The zero value is NoRequeue.
type Action struct {
	kind  ActionKind
	delay time.Duration
}

// RequeueAfter schedules another reconciliation no sooner than d.
// A non-positive d requeues immediately.
func RequeueAfter(d time.Duration) Action {
	return Action{kind: ActionRequeueAfter, delay: d}
}

// NoRequeue schedules nothing; only a new watch event triggers the key again.
func NoRequeue() Action {
	return Action{kind: ActionNoRequeue}
}

// AwaitChange schedules nothing and waits for the object's next change,
// typically its removal after cleanup.
func AwaitChange() Action {
	return Action{kind: ActionAwaitChange}
}

// Kind returns the kind of the action.
func (a Action) Kind() ActionKind { return a.kind }

// Delay returns the requeue delay and whether the action requeues at all.
func (a Action) Delay() (time.Duration, bool) {
	if a.kind != ActionRequeueAfter {
		return 0, false
	}
	return a.delay, true
}

func (a Action) String() string {
	if a.kind == ActionRequeueAfter {
		return fmt.Sprintf("RequeueAfter(%v)", a.delay)
	}
	return a.kind.String()
}
