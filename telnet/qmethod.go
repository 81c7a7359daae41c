package telnet

import "log/slog"

// RequestOption begins a locally-initiated negotiation to enable opt in the
// given direction, following the RFC 1143 Q-Method request table (spec.md
// §4.2). It returns the negotiation to send, or nil if no byte needs to go
// out (the request was already satisfied, already in flight, or rejected).
func (f *FSM) RequestOption(opt OptionID, dir NegotiationDirection) (*NegotiationResponse, error) {
	o, ok := f.Registry.Lookup(opt)
	if !ok {
		return nil, ErrOptionNotAvailable
	}
	if (dir == Local && !o.SupportsLocal) || (dir == Remote && !o.SupportsRemote) {
		return nil, ErrOptionNotAvailable
	}

	current := f.Status.Get(opt)
	state := current.state(dir)

	switch state {
	case StateNo:
		f.Status.Set(opt, current.PendEnable(dir))
		return &NegotiationResponse{Direction: dir, Enable: true, Option: opt}, nil

	case StateYes:
		f.Logger.Warn("RequestOption: already enabled", slog.Any("option", opt), slog.String("direction", dir.String()))
		return nil, nil

	case StateWantNo:
		if !current.queue(dir) {
			next, err := current.Enqueue(dir)
			if err != nil {
				return nil, err
			}
			f.Status.Set(opt, next)
		} else {
			f.Logger.Warn("RequestOption: already queued", slog.Any("option", opt), slog.String("direction", dir.String()))
		}
		return nil, nil

	case StateWantYes:
		if current.queue(dir) {
			f.Status.Set(opt, current.Dequeue(dir))
		} else {
			f.Logger.Warn("RequestOption: already in flight", slog.Any("option", opt), slog.String("direction", dir.String()))
		}
		return nil, nil
	}

	return nil, ErrInternal
}

// DisableOption begins a locally-initiated negotiation to disable opt in the
// given direction (spec.md §4.2). The returned handler, if non-nil, is
// scheduled for execution by the caller immediately — disablement handlers
// run at the moment this engine commits to disabling, not when the peer's
// confirmation arrives.
func (f *FSM) DisableOption(opt OptionID, dir NegotiationDirection) (*NegotiationResponse, DisablementHandler, error) {
	o, ok := f.Registry.Lookup(opt)
	if !ok {
		return nil, nil, ErrOptionNotAvailable
	}
	if (dir == Local && !o.SupportsLocal) || (dir == Remote && !o.SupportsRemote) {
		return nil, nil, ErrOptionNotAvailable
	}

	current := f.Status.Get(opt)
	state := current.state(dir)

	switch state {
	case StateYes:
		f.Status.Set(opt, current.PendDisable(dir))
		handlers, _ := f.Handlers.Lookup(opt)
		return &NegotiationResponse{Direction: dir, Enable: false, Option: opt}, handlers.OnDisable, nil

	case StateNo:
		f.Logger.Warn("DisableOption: already disabled", slog.Any("option", opt), slog.String("direction", dir.String()))
		return nil, nil, nil

	case StateWantYes:
		if !current.queue(dir) {
			next, err := current.Enqueue(dir)
			if err != nil {
				return nil, nil, err
			}
			f.Status.Set(opt, next)
		} else {
			f.Logger.Warn("DisableOption: already queued", slog.Any("option", opt), slog.String("direction", dir.String()))
		}
		return nil, nil, nil

	case StateWantNo:
		if current.queue(dir) {
			f.Status.Set(opt, current.Dequeue(dir))
		} else {
			f.Logger.Warn("DisableOption: already in flight", slog.Any("option", opt), slog.String("direction", dir.String()))
		}
		return nil, nil, nil
	}

	return nil, nil, ErrInternal
}

// receiveNegotiation drives the reception-side RFC 1143 decision matrix for
// one inbound WILL/WONT/DO/DONT. command determines both the direction
// (WILL/WONT affect the remote side; DO/DONT affect the local side) and
// whether the peer is proposing enable (WILL/DO) or disable (WONT/DONT).
func (f *FSM) receiveNegotiation(command byte, opt OptionID) Action {
	var dir NegotiationDirection
	if command == DO || command == DONT {
		dir = Local
	} else {
		dir = Remote
	}
	enable := command == WILL || command == DO

	o, ok := f.Registry.Lookup(opt)
	if !ok {
		if f.UnknownOption != nil {
			f.UnknownOption(opt, command)
		}
		// Unknown option: always refuse enablement, never reply to a WONT/DONT.
		if enable {
			f.Status.Set(opt, OptionStatus(0).Disable(dir))
			return NegotiationResponse{Direction: dir, Enable: false, Option: opt}
		}
		return nil
	}

	current := f.Status.Get(opt)
	state := current.state(dir)
	queued := current.queue(dir)

	switch state {
	case StateNo:
		if !enable {
			return nil // duplicate WONT/DONT while already NO: ignore
		}
		if f.allowed(o, dir) {
			f.Status.Set(opt, current.Enable(dir))
			handlers, _ := f.Handlers.Lookup(opt)
			return EnablementAwaitable{
				Negotiation: &NegotiationResponse{Direction: dir, Enable: true, Option: opt},
				Option:      opt,
				Direction:   dir,
				Handler:     handlers.OnEnable,
			}
		}
		return NegotiationResponse{Direction: dir, Enable: false, Option: opt}

	case StateYes:
		if enable {
			return nil // duplicate WILL/DO while already YES: ignore
		}
		f.Status.Set(opt, current.Disable(dir))
		handlers, _ := f.Handlers.Lookup(opt)
		return DisablementAwaitable{
			Negotiation: &NegotiationResponse{Direction: dir, Enable: false, Option: opt},
			Option:      opt,
			Direction:   dir,
			Handler:     handlers.OnDisable,
		}

	case StateWantNo:
		if !queued {
			if enable {
				// Peer answered our WONT/DONT with WILL/DO: treat as settled NO,
				// this is a protocol error on the peer's part but not fatal.
				f.Logger.Warn("received enable while awaiting disable confirmation",
					slog.Any("option", opt), slog.String("direction", dir.String()))
				f.Status.Set(opt, current.Disable(dir))
				return nil
			}
			f.Status.Set(opt, current.Disable(dir))
			return nil
		}
		// queued: a re-enable was requested while our disable was in flight.
		if enable {
			f.Status.Set(opt, current.Enable(dir))
			handlers, _ := f.Handlers.Lookup(opt)
			return EnablementAwaitable{Option: opt, Direction: dir, Handler: handlers.OnEnable}
		}
		f.Status.Set(opt, current.setState(dir, StateWantYes).setQueue(dir, false))
		return NegotiationResponse{Direction: dir, Enable: true, Option: opt}

	case StateWantYes:
		if !queued {
			if enable {
				f.Status.Set(opt, current.Enable(dir))
				handlers, _ := f.Handlers.Lookup(opt)
				return EnablementAwaitable{Option: opt, Direction: dir, Handler: handlers.OnEnable}
			}
			f.Status.Set(opt, current.Disable(dir))
			return nil
		}
		// queued: a disable was requested while our enable was in flight.
		if enable {
			f.Status.Set(opt, current.setState(dir, StateWantNo).setQueue(dir, false))
			handlers, _ := f.Handlers.Lookup(opt)
			return DisablementAwaitable{
				Negotiation: &NegotiationResponse{Direction: dir, Enable: false, Option: opt},
				Option:      opt,
				Direction:   dir,
				Handler:     handlers.OnDisable,
			}
		}
		f.Status.Set(opt, current.Disable(dir))
		return nil
	}

	return nil
}

func (f *FSM) allowed(o *Option, dir NegotiationDirection) bool {
	if dir == Local {
		return o.allowLocal()
	}
	return o.allowRemote()
}
