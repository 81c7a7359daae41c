package telnet

import "log/slog"

// ConnSide indicates whether a Conn represents the client or server half of
// a connection. Telnet itself is peer-to-peer (RFC 854 speaks only of
// "local" and "remote"), but a handful of options — and most applications —
// care which end they're running as.
type ConnSide byte

const (
	SideUnknown ConnSide = iota
	SideClient
	SideServer
)

// InitialRequest is one option/direction pair to negotiate as soon as the
// connection starts, before any bytes arrive from the peer.
type InitialRequest struct {
	Option    OptionID
	Direction NegotiationDirection
}

// Config is the full set of construction-time parameters for a Conn,
// mirroring the shape of the teacher's terminal construction config: a
// registry of options, the handlers each one uses, the requests to kick
// off immediately, and the observability surface.
type Config struct {
	// Side records whether this connection is acting as client or server.
	// It is exposed through Conn.Side for code whose behavior differs by
	// side; neither the core engine nor telnet/telopts reads it.
	Side ConnSide

	// Registry supplies the Option descriptors this connection recognizes.
	// If nil, DefaultOptionRegistry() is used.
	Registry *OptionRegistry

	// Handlers registers enablement/disablement/subnegotiation callbacks
	// per option, installed into the connection's HandlerRegistry before
	// the first byte is processed.
	Handlers map[OptionID]OptionHandlers

	// InitialRequests lists the negotiations to send immediately on
	// construction, before reading begins.
	InitialRequests []InitialRequest

	// EventHooks are the hooks to register before construction completes.
	EventHooks EventHooks

	// AYTResponse overrides the textual reply sent for an inbound AYT when
	// no AYT handler is registered. Empty means the default liveness
	// message.
	AYTResponse string

	// UnknownOptionHandler, if set, is told about negotiation commands for
	// options absent from the registry. The engine still refuses
	// enablement requests for them; this is a observation point for
	// logging or metrics, not a veto.
	UnknownOptionHandler func(id OptionID, command byte)

	// Logger receives structured diagnostic output. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger

	// ReadBufferSize is the block size for reads from the underlying
	// stream. Defaults to 1024.
	ReadBufferSize int

	// MaxHandlerGoroutines caps the number of concurrently running
	// enablement/disablement/subnegotiation handler goroutines this
	// connection will track at once; additional completions block the
	// read loop until a slot frees up. Zero means unlimited.
	MaxHandlerGoroutines int
}

func (c Config) registry() *OptionRegistry {
	if c.Registry != nil {
		return c.Registry
	}
	return DefaultOptionRegistry()
}

func (c Config) readBufferSize() int {
	if c.ReadBufferSize > 0 {
		return c.ReadBufferSize
	}
	return 1024
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
