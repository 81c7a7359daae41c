package telnet

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy described in spec.md §7. Use errors.Is
// against these; ProtocolError carries the offending command/option/byte
// for diagnostics via errors.As.
var (
	// ErrProtocolViolation covers peer misbehavior that isn't one of the more
	// specific protocol errors below (e.g. a stray SE outside subnegotiation).
	ErrProtocolViolation = errors.New("telnet: protocol violation")
	// ErrInvalidCommand is returned when a byte following IAC isn't a known
	// command code, or an unexpected byte appears where SE or IAC was required.
	ErrInvalidCommand = errors.New("telnet: invalid command")
	// ErrInvalidNegotiation is returned for malformed WILL/WONT/DO/DONT framing.
	ErrInvalidNegotiation = errors.New("telnet: invalid negotiation")
	// ErrInvalidSubnegotiation is returned when a subnegotiation opens for an
	// option that doesn't support it, or a STATUS subnegotiation is empty or
	// carries an unrecognized subcommand. A missing SE is ErrInvalidCommand.
	ErrInvalidSubnegotiation = errors.New("telnet: invalid subnegotiation")
	// ErrSubnegotiationOverflow is returned when a subnegotiation payload
	// exceeds the option's configured cap.
	ErrSubnegotiationOverflow = errors.New("telnet: subnegotiation exceeds option cap")
	// ErrOptionNotAvailable is returned when request/disable targets an
	// option absent from the registry, or one whose descriptor doesn't
	// support the requested direction (SupportsLocal/SupportsRemote).
	ErrOptionNotAvailable = errors.New("telnet: option not available")
	// ErrNegotiationQueueError is returned by OptionStatus.Enqueue when the
	// option isn't in a WANTNO/WANTYES state.
	ErrNegotiationQueueError = errors.New("telnet: negotiation queue error")
	// ErrUserHandlerNotFound is logged (not returned) when a subnegotiation
	// or STATUS IS arrives for an option with no registered handler.
	ErrUserHandlerNotFound = errors.New("telnet: user handler not found")
	// ErrUserHandlerForbidden is returned synchronously from
	// Conn.RegisterCommandHandler for any command code other than AYT.
	ErrUserHandlerForbidden = errors.New("telnet: user handler forbidden")
	// ErrInternal covers allocation failures and other conditions that
	// should never occur in a functioning connection.
	ErrInternal = errors.New("telnet: internal error")
)

// ProtocolError annotates one of the sentinel protocol errors above with the
// command/option/byte that triggered it, for structured logging.
type ProtocolError struct {
	Err     error
	Command byte
	Option  OptionID
	Byte    byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s (command=%#x option=%d byte=%#x)", e.Err, e.Command, e.Option, e.Byte)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func newProtocolError(err error, command byte, option OptionID, b byte) *ProtocolError {
	return &ProtocolError{Err: err, Command: command, Option: option, Byte: b}
}
