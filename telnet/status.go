package telnet

// STATUS (RFC 859) subnegotiation sub-commands.
const (
	statusIs   byte = 0
	statusSend byte = 1
)

// buildStatusAction answers an inbound IAC SB STATUS SEND IAC SE with the
// IS report listing every option this connection currently has enabled, in
// either direction (spec.md §4.4). STATUS is handled by the
// FSM itself rather than through the ordinary subnegotiation handler path
// because its answer is derived entirely from OptionStatusDB, which only
// the FSM has direct access to.
func (f *FSM) buildStatusAction(payload []byte) Action {
	if len(payload) == 0 {
		f.logProtocol("empty STATUS subnegotiation", newProtocolError(ErrInvalidSubnegotiation, SB, OptStatus, 0))
		return nil
	}

	switch payload[0] {
	case statusIs:
		// A peer-side status report. Requires the peer to have STATUS
		// enabled; the report itself is application business, so it goes to
		// the user's handler like any other subnegotiation.
		if !f.Status.Get(OptStatus).RemoteEnabled() {
			f.logProtocol("STATUS IS without remote STATUS enabled", newProtocolError(ErrOptionNotAvailable, SB, OptStatus, payload[0]))
			return nil
		}
		handlers, ok := f.Handlers.Lookup(OptStatus)
		if !ok || handlers.OnSubnegotiate == nil {
			f.logProtocol("no handler for STATUS IS", newProtocolError(ErrUserHandlerNotFound, SB, OptStatus, payload[0]))
			return nil
		}
		return SubnegotiationAwaitable{Option: OptStatus, Payload: payload, Handler: handlers.OnSubnegotiate}

	case statusSend:
		if !f.Status.Get(OptStatus).LocalEnabled() {
			f.logProtocol("STATUS SEND without local STATUS enabled", newProtocolError(ErrOptionNotAvailable, SB, OptStatus, payload[0]))
			return nil
		}

	default:
		f.logProtocol("unrecognized STATUS subcommand", newProtocolError(ErrInvalidSubnegotiation, SB, OptStatus, payload[0]))
		return nil
	}

	// RFC 859: report only what is actually in effect. Options still
	// negotiating (WANT*) are omitted; the peer will learn their fate from
	// the negotiation replies themselves. Registry enumeration order keeps
	// the report deterministic. Any 0xFF inside the pairs is doubled by
	// frameSubnegotiation.
	body := []byte{statusIs}
	f.Registry.Range(func(o *Option) {
		status := f.Status.Get(o.ID)
		if status.LocalEnabled() {
			body = append(body, WILL, byte(o.ID))
		}
		if status.RemoteEnabled() {
			body = append(body, DO, byte(o.ID))
		}
	})

	return RawWrite{Bytes: frameSubnegotiation(OptStatus, body)}
}

// frameSubnegotiation wraps body in IAC SB <opt> ... IAC SE, doubling any
// literal 0xFF bytes inside body per RFC 854's transparency rule.
func frameSubnegotiation(opt OptionID, body []byte) []byte {
	out := make([]byte, 0, len(body)+len(body)/10+5)
	out = append(out, IAC, SB, byte(opt))
	for _, b := range body {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	out = append(out, IAC, SE)
	return out
}
