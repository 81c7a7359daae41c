package telnet

// Action is the sum type emitted by the FSM (spec.md §3, §4.2-§4.4) for the
// stream composer to execute. Exactly one concrete type below, or nil.
type Action interface {
	isAction()
}

// NegotiationResponse instructs the composer to send IAC (WILL|WONT|DO|DONT)
// opt. Enable selects WILL/DO vs WONT/DONT; Direction selects which pair.
type NegotiationResponse struct {
	Direction NegotiationDirection
	Enable    bool
	Option    OptionID
}

func (NegotiationResponse) isAction() {}

// command returns the IAC opcode this response sends.
func (n NegotiationResponse) command() byte {
	switch {
	case n.Direction == Local && n.Enable:
		return WILL
	case n.Direction == Local && !n.Enable:
		return WONT
	case n.Direction == Remote && n.Enable:
		return DO
	default:
		return DONT
	}
}

// RawWrite instructs the composer to send pre-escaped bytes verbatim (used
// for the AYT textual reply).
type RawWrite struct {
	Bytes []byte
}

func (RawWrite) isAction() {}

// EnablementAwaitable instructs the composer to optionally send Negotiation
// first, then run Handler on a tracked goroutine.
type EnablementAwaitable struct {
	Negotiation *NegotiationResponse
	Option      OptionID
	Direction   NegotiationDirection
	Handler     EnablementHandler
}

func (EnablementAwaitable) isAction() {}

// DisablementAwaitable is the disablement-side mirror of EnablementAwaitable.
type DisablementAwaitable struct {
	Negotiation *NegotiationResponse
	Option      OptionID
	Direction   NegotiationDirection
	Handler     DisablementHandler
}

func (DisablementAwaitable) isAction() {}

// SubnegotiationAwaitable instructs the composer to run Handler with the
// de-escaped payload and, if it returns a non-empty reply, frame and send
// it as an outbound subnegotiation.
type SubnegotiationAwaitable struct {
	Option  OptionID
	Payload []byte
	Handler SubnegotiationHandler
}

func (SubnegotiationAwaitable) isAction() {}
