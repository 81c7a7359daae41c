package telnet

import "sync/atomic"

// UrgentState is the state of the UrgentDataTracker (spec.md §4.6).
type UrgentState int32

const (
	// NoUrgent is the steady state: no Synch is in progress.
	NoUrgent UrgentState = iota
	// HasUrgent means the socket layer observed TCP urgent data and is
	// waiting for the matching Data Mark to arrive in the regular stream.
	HasUrgent
	// UnexpectedDataMark means a Data Mark was processed before any urgent
	// notification reached the tracker — the OOB notification and the
	// in-band byte stream race, and the OS is free to deliver either first.
	UnexpectedDataMark
)

func (s UrgentState) String() string {
	switch s {
	case HasUrgent:
		return "has-urgent"
	case UnexpectedDataMark:
		return "unexpected-data-mark"
	default:
		return "no-urgent"
	}
}

// UrgentDataTracker reconciles TCP urgent-pointer notifications (delivered
// out of band, typically from a reader goroutine) with Telnet Data Mark
// bytes (delivered in band, via the FSM). Both sides CAS into the same
// state so neither has to block waiting for the other.
type UrgentDataTracker struct {
	state atomic.Int32
}

// NotifyOOB records that the socket layer observed urgent data. It returns
// the state prior to this call, so the caller can tell whether this
// resolved a dangling UnexpectedDataMark.
func (t *UrgentDataTracker) NotifyOOB() UrgentState {
	for {
		cur := UrgentState(t.state.Load())
		next := cur
		switch cur {
		case NoUrgent:
			next = HasUrgent
		case UnexpectedDataMark:
			next = NoUrgent
		case HasUrgent:
			// Already pending; a second OOB byte before the DM arrives
			// coalesces into the same Synch.
		}
		if t.state.CompareAndSwap(int32(cur), int32(next)) {
			return cur
		}
	}
}

// ObserveDataMark records that the FSM processed an inbound Data Mark. It
// returns the state prior to this call; HasUrgent means this Data Mark
// completes a Synch the caller should now act on (discard buffered input
// up to this point); NoUrgent means the Data Mark arrived first and the
// tracker now remembers it as UnexpectedDataMark until NotifyOOB catches up.
func (t *UrgentDataTracker) ObserveDataMark() UrgentState {
	for {
		cur := UrgentState(t.state.Load())
		next := cur
		switch cur {
		case HasUrgent:
			next = NoUrgent
		case NoUrgent:
			next = UnexpectedDataMark
		case UnexpectedDataMark:
			// A second Data Mark without an intervening OOB notification;
			// nothing more to record.
		}
		if t.state.CompareAndSwap(int32(cur), int32(next)) {
			return cur
		}
	}
}

// State returns the current state for diagnostics.
func (t *UrgentDataTracker) State() UrgentState {
	return UrgentState(t.state.Load())
}
