package telnet

// NegotiationDirection distinguishes which side of the connection an
// operation concerns. Local is what this engine does (it sends
// WILL/WONT, receives DO/DONT); Remote is what the peer does (this
// engine sends DO/DONT, receives WILL/WONT).
type NegotiationDirection byte

const (
	Local NegotiationDirection = iota
	Remote
)

func (d NegotiationDirection) String() string {
	if d == Remote {
		return "remote"
	}
	return "local"
}

// OptionState is one of the four RFC 1143 Q-Method states for a single
// side of a single option.
type OptionState byte

const (
	StateNo OptionState = iota
	StateYes
	StateWantNo
	StateWantYes
)

func (s OptionState) String() string {
	switch s {
	case StateNo:
		return "NO"
	case StateYes:
		return "YES"
	case StateWantNo:
		return "WANTNO"
	case StateWantYes:
		return "WANTYES"
	default:
		return "?"
	}
}

// OptionStatus packs the full RFC 1143 negotiation state for one option —
// local state, remote state, and one queue bit per side — into a single
// byte. Packed this way because OptionStatusDB holds 256 of these per
// connection and is on the hot path of every inbound negotiation command.
//
// Bit layout (high to low): [ unused:2 | remoteQueue:1 | localQueue:1 | remoteState:2 | localState:2 ]
type OptionStatus byte

const (
	localStateShift  = 0
	remoteStateShift = 2
	localQueueBit    = 1 << 4
	remoteQueueBit   = 1 << 5
	stateMask        = 0x3
)

func (s OptionStatus) localState() OptionState {
	return OptionState((s >> localStateShift) & stateMask)
}

func (s OptionStatus) remoteState() OptionState {
	return OptionState((s >> remoteStateShift) & stateMask)
}

func (s OptionStatus) state(dir NegotiationDirection) OptionState {
	if dir == Remote {
		return s.remoteState()
	}
	return s.localState()
}

func (s OptionStatus) queue(dir NegotiationDirection) bool {
	if dir == Remote {
		return s&remoteQueueBit != 0
	}
	return s&localQueueBit != 0
}

func (s OptionStatus) setState(dir NegotiationDirection, state OptionState) OptionStatus {
	if dir == Remote {
		s &^= stateMask << remoteStateShift
		s |= OptionStatus(state) << remoteStateShift
		return s
	}
	s &^= stateMask << localStateShift
	s |= OptionStatus(state) << localStateShift
	return s
}

func (s OptionStatus) setQueue(dir NegotiationDirection, set bool) OptionStatus {
	bit := localQueueBit
	if dir == Remote {
		bit = remoteQueueBit
	}
	if set {
		return s | OptionStatus(bit)
	}
	return s &^ OptionStatus(bit)
}

// LocalEnabled reports whether the local side of this option is YES.
func (s OptionStatus) LocalEnabled() bool { return s.localState() == StateYes }

// RemoteEnabled reports whether the remote side of this option is YES.
func (s OptionStatus) RemoteEnabled() bool { return s.remoteState() == StateYes }

// LocalDisabled reports whether the local side is exactly NO (not WANT*).
func (s OptionStatus) LocalDisabled() bool { return s.localState() == StateNo }

// RemoteDisabled reports whether the remote side is exactly NO (not WANT*).
func (s OptionStatus) RemoteDisabled() bool { return s.remoteState() == StateNo }

// LocalPending reports whether the local side is in WANTNO or WANTYES.
func (s OptionStatus) LocalPending() bool {
	st := s.localState()
	return st == StateWantNo || st == StateWantYes
}

// RemotePending reports whether the remote side is in WANTNO or WANTYES.
func (s OptionStatus) RemotePending() bool {
	st := s.remoteState()
	return st == StateWantNo || st == StateWantYes
}

// Enabled/Disabled/Pending with an explicit direction, for callers that
// already have a NegotiationDirection in hand.
func (s OptionStatus) Enabled(dir NegotiationDirection) bool {
	if dir == Remote {
		return s.RemoteEnabled()
	}
	return s.LocalEnabled()
}

func (s OptionStatus) Disabled(dir NegotiationDirection) bool {
	if dir == Remote {
		return s.RemoteDisabled()
	}
	return s.LocalDisabled()
}

func (s OptionStatus) Pending(dir NegotiationDirection) bool {
	if dir == Remote {
		return s.RemotePending()
	}
	return s.LocalPending()
}

// Enable sets dir's state to YES and clears its queue bit.
func (s OptionStatus) Enable(dir NegotiationDirection) OptionStatus {
	return s.setState(dir, StateYes).setQueue(dir, false)
}

// Disable sets dir's state to NO and clears its queue bit.
func (s OptionStatus) Disable(dir NegotiationDirection) OptionStatus {
	return s.setState(dir, StateNo).setQueue(dir, false)
}

// PendEnable sets dir's state to WANTYES.
func (s OptionStatus) PendEnable(dir NegotiationDirection) OptionStatus {
	return s.setState(dir, StateWantYes)
}

// PendDisable sets dir's state to WANTNO.
func (s OptionStatus) PendDisable(dir NegotiationDirection) OptionStatus {
	return s.setState(dir, StateWantNo)
}

// Enqueue sets dir's queue bit to OPPOSITE. The queue is only meaningful
// while dir is in WANTNO/WANTYES; enqueuing from NO/YES is a contract
// violation and returns ErrNegotiationQueueError.
func (s OptionStatus) Enqueue(dir NegotiationDirection) (OptionStatus, error) {
	if !s.Pending(dir) {
		return s, ErrNegotiationQueueError
	}
	return s.setQueue(dir, true), nil
}

// Dequeue clears dir's queue bit unconditionally.
func (s OptionStatus) Dequeue(dir NegotiationDirection) OptionStatus {
	return s.setQueue(dir, false)
}

// IsValid reports that queue bits are false whenever the corresponding
// state is not WANTNO/WANTYES — the invariant this type exists to
// preserve by construction, exposed here for property tests.
func (s OptionStatus) IsValid() bool {
	if !s.LocalPending() && s.queue(Local) {
		return false
	}
	if !s.RemotePending() && s.queue(Remote) {
		return false
	}
	return true
}

// Reset returns the zero OptionStatus: {NO, NO, empty, empty}.
func (s OptionStatus) Reset() OptionStatus {
	return OptionStatus(0)
}
