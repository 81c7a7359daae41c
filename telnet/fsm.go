package telnet

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// fsmState is one of the 7 states of the input byte processor (spec.md §4.3).
type fsmState int

const (
	stateNormal fsmState = iota
	stateHasCR
	stateHasIAC
	stateOptionNegotiation
	stateSubnegotiationOption
	stateSubnegotiation
	stateSubnegotiationIAC
)

// ProcessingSignal is a benign, "value" error returned alongside a byte's
// processing result for conditions the stream composer may need to act on
// (spec.md §6-§7). The composer acts on CarriageReturn, EraseCharacter,
// EraseLine, AbortOutput and DataMark itself; Break and Interrupt (and
// EraseCharacter/EraseLine with nothing buffered to erase, plus
// AbortOutput and DataMark after it has acted on them) go to the Conn's
// Signal hooks. No signal is returned as an error from the read call.
type ProcessingSignal int

const (
	SignalNone ProcessingSignal = iota
	SignalCarriageReturn
	SignalEraseCharacter
	SignalEraseLine
	SignalAbortOutput
	SignalDataMark
	SignalBreak
	SignalInterrupt
)

// FSM is the per-connection input byte processor. It is not safe for
// concurrent use — spec.md §5 requires all calls to happen on the
// connection's single thread/goroutine.
type FSM struct {
	state          fsmState
	currentCommand byte
	currentOption  OptionID
	subneg         []byte
	subnegOverflow bool

	Status   *OptionStatusDB
	Registry *OptionRegistry
	Handlers *HandlerRegistry

	AYTResponse   []byte
	AYTHandler    CommandHandler
	UnknownOption func(id OptionID, command byte)
	Logger        *slog.Logger
}

// NewFSM creates an FSM in the Normal state with a fresh, zeroed status
// table. Registry and handlers must be supplied by the caller (Conn).
func NewFSM(registry *OptionRegistry, handlers *HandlerRegistry, logger *slog.Logger) *FSM {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSM{
		state:       stateNormal,
		Status:      &OptionStatusDB{},
		Registry:    registry,
		Handlers:    handlers,
		AYTResponse: []byte("Telnet system is active."),
		Logger:      logger,
	}
}

func (f *FSM) toNormal() {
	f.state = stateNormal
	f.currentCommand = 0
	f.currentOption = 0
	f.subneg = nil
	f.subnegOverflow = false
}

func (f *FSM) logProtocol(msg string, err error, args ...any) {
	args = append(args, slog.Any("error", err))
	f.Logger.Error(msg, args...)
}

// ProcessByte feeds a single inbound byte through the FSM. It returns a
// processing signal (benign, handled or propagated by the composer),
// whether the byte (or its substitute) should be forwarded to the
// application, the byte to forward, and an optional Action for the
// composer to execute. Protocol errors are logged through the configured
// logger and the FSM recovers to Normal rather than stopping.
func (f *FSM) ProcessByte(b byte) (signal ProcessingSignal, forward bool, forwardByte byte, action Action) {
	switch f.state {
	case stateNormal:
		return f.processNormal(b)
	case stateHasCR:
		return f.processHasCR(b)
	case stateHasIAC:
		return f.processHasIAC(b)
	case stateOptionNegotiation:
		return f.processOptionNegotiation(b)
	case stateSubnegotiationOption:
		return f.processSubnegotiationOption(b)
	case stateSubnegotiation:
		return f.processSubnegotiation(b)
	case stateSubnegotiationIAC:
		return f.processSubnegotiationIAC(b)
	default:
		f.toNormal()
		return SignalNone, false, 0, nil
	}
}

func (f *FSM) localBinary() bool {
	return f.Status.Get(OptTransmitBinary).LocalEnabled()
}

func (f *FSM) processNormal(b byte) (ProcessingSignal, bool, byte, Action) {
	if b == IAC {
		f.state = stateHasIAC
		return SignalNone, false, 0, nil
	}

	if b == '\r' && !f.localBinary() {
		f.state = stateHasCR
		// The CR itself is placed into the destination by the composer via
		// the deferred CarriageReturn signal, before the following byte is
		// processed (spec.md §9's resolved ambiguity).
		return SignalCarriageReturn, false, 0, nil
	}

	return SignalNone, true, b, nil
}

func (f *FSM) processHasCR(b byte) (ProcessingSignal, bool, byte, Action) {
	switch b {
	case 0:
		// CR NUL collapses to the CR already emitted on entry to HasCR.
		f.state = stateNormal
		return SignalNone, false, 0, nil
	case '\n':
		f.state = stateNormal
		return SignalNone, true, '\n', nil
	case IAC:
		f.state = stateHasIAC
		return SignalNone, false, 0, nil
	default:
		f.state = stateNormal
		return SignalNone, true, b, nil
	}
}

func (f *FSM) processHasIAC(b byte) (ProcessingSignal, bool, byte, Action) {
	if b == IAC {
		f.state = stateNormal
		return SignalNone, true, 0xFF, nil
	}

	if isNegotiationCommand(b) {
		f.currentCommand = b
		f.state = stateOptionNegotiation
		return SignalNone, false, 0, nil
	}

	if b == SB {
		f.state = stateSubnegotiationOption
		return SignalNone, false, 0, nil
	}

	f.toNormal()

	switch b {
	case NOP:
		return SignalNone, false, 0, nil
	case DM:
		return SignalDataMark, false, 0, nil
	case BRK:
		return SignalBreak, false, 0, nil
	case IP:
		return SignalInterrupt, false, 0, nil
	case AO:
		return SignalAbortOutput, false, 0, nil
	case EC:
		return SignalEraseCharacter, false, 0, nil
	case EL:
		return SignalEraseLine, false, 0, nil
	case AYT:
		if f.AYTHandler != nil {
			handler := f.AYTHandler
			// The awaitable's reply goes out verbatim, like the default
			// RawWrite would, so the wrapper sends it itself and yields no
			// subnegotiation bytes to the composer.
			return SignalNone, false, 0, SubnegotiationAwaitable{
				Handler: func(conn *Conn, _ OptionID, _ []byte) ([]byte, error) {
					reply, err := handler(conn)
					if err != nil || len(reply) == 0 {
						return nil, err
					}
					return nil, conn.WriteRaw(conn.connCtx, reply)
				},
			}
		}
		return SignalNone, false, 0, RawWrite{Bytes: f.AYTResponse}
	case GA:
		return SignalNone, false, 0, nil
	case SE:
		f.logProtocol("SE received outside subnegotiation", ErrProtocolViolation)
		return SignalNone, false, 0, nil
	default:
		f.logProtocol("unrecognized command after IAC", newProtocolError(ErrInvalidCommand, b, 0, b))
		return SignalNone, false, 0, nil
	}
}

func (f *FSM) processOptionNegotiation(b byte) (ProcessingSignal, bool, byte, Action) {
	command := f.currentCommand
	option := OptionID(b)
	f.toNormal()

	action := f.receiveNegotiation(command, option)
	return SignalNone, false, 0, action
}

func (f *FSM) processSubnegotiationOption(b byte) (ProcessingSignal, bool, byte, Action) {
	option := OptionID(b)

	opt, ok := f.Registry.Lookup(option)
	if !ok || !opt.SupportsSubnegotiation {
		f.logProtocol("subnegotiation for unsupported option", newProtocolError(ErrInvalidSubnegotiation, SB, option, b))
		f.toNormal()
		return SignalNone, false, 0, nil
	}

	f.currentOption = option
	f.subneg = f.subneg[:0]
	f.state = stateSubnegotiation
	return SignalNone, false, 0, nil
}

func (f *FSM) processSubnegotiation(b byte) (ProcessingSignal, bool, byte, Action) {
	if b == IAC {
		f.state = stateSubnegotiationIAC
		return SignalNone, false, 0, nil
	}

	f.appendSubneg(b)
	return SignalNone, false, 0, nil
}

func (f *FSM) appendSubneg(b byte) {
	opt, ok := f.Registry.Lookup(f.currentOption)
	cap := DefaultMaxSubnegotiationBytes
	if ok {
		cap = opt.maxSubnegotiationBytes()
	}

	if f.subnegOverflow {
		return
	}

	if len(f.subneg) >= cap {
		f.subnegOverflow = true
		f.logProtocol("subnegotiation exceeds option cap", newProtocolError(ErrSubnegotiationOverflow, SB, f.currentOption, b),
			slog.String("cap", humanize.Bytes(uint64(cap))))
		return
	}

	f.subneg = append(f.subneg, b)
}

func (f *FSM) processSubnegotiationIAC(b byte) (ProcessingSignal, bool, byte, Action) {
	switch b {
	case IAC:
		f.appendSubneg(0xFF)
		f.state = stateSubnegotiation
		return SignalNone, false, 0, nil
	case SE:
		action := f.closeSubnegotiation()
		f.toNormal()
		return SignalNone, false, 0, action
	default:
		// Only SE or an escaped IAC is legal here. Log and discard the byte,
		// but stay in Subnegotiation rather than Normal so the remainder of
		// the payload (up to the eventual IAC SE) isn't lost (spec.md §9).
		f.logProtocol("expected SE or IAC IAC inside subnegotiation", newProtocolError(ErrInvalidCommand, b, f.currentOption, b))
		f.state = stateSubnegotiation
		return SignalNone, false, 0, nil
	}
}

func (f *FSM) closeSubnegotiation() Action {
	option := f.currentOption
	payload := f.subneg

	if f.subnegOverflow {
		// Overflow was already logged when it occurred; drop the payload.
		return nil
	}

	if option == OptStatus {
		return f.buildStatusAction(payload)
	}

	handlers, ok := f.Handlers.Lookup(option)
	if !ok || handlers.OnSubnegotiate == nil {
		f.logProtocol("no subnegotiation handler registered", newProtocolError(ErrUserHandlerNotFound, SB, option, 0))
		return nil
	}

	return SubnegotiationAwaitable{
		Option:  option,
		Payload: payload,
		Handler: handlers.OnSubnegotiate,
	}
}
