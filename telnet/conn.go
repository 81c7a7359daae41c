package telnet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// readState tracks the composer's read-loop progress across calls to
// ReadContext (spec.md §6): Initializing before the first byte has ever
// been requested, Reading while waiting on the transport, Processing while
// draining bytes already read through the FSM, and Done once the stream
// has signaled EOF or been closed.
type readState int

const (
	readInitializing readState = iota
	readReading
	readProcessing
	readDone
)

// OOBWaiter is an optional capability a Stream may implement to notify a
// Conn when TCP urgent data arrives independently of the regular Read
// path. telnet/telnetsock's TCPStream implements this with a POLLPRI
// watch on the raw socket.
type OOBWaiter interface {
	WaitOOB(ctx context.Context) error
}

// Conn composes a Stream, an FSM, and the egress/escaping logic required
// to speak Telnet over it, matching the role the teacher's Terminal plays
// over a net.Conn — but exposing a single pull-based ReadContext instead
// of a hook-driven printer loop, since nothing in this engine's domain
// needs the richer text/charset layering the teacher built on top of it.
type Conn struct {
	ID uuid.UUID

	stream Stream
	fsm    *FSM
	logger *slog.Logger
	side   ConnSide

	writeMu   sync.Mutex
	readBuf   []byte
	readState readState
	ingress   *byteBuffer
	// egress stands in for spec.md §4.5's output_side_buffer. This composer
	// writes synchronously (each outbound call blocks until the stream
	// accepts it), so nothing ordinarily sits here — it exists so AbortOutput
	// has a concrete buffer to clear per spec, and so a future buffered-write
	// mode has somewhere to stage bytes without changing the AO contract.
	egress *byteBuffer

	urgent      UrgentDataTracker
	oobWatching atomic.Bool
	pending     []byte
	readErr     error

	group     *errgroup.Group
	connCtx   context.Context
	connDone  context.CancelFunc
	maxGroup  int
	groupSema chan struct{}

	errorHooks  *eventPublisher[error]
	dataHooks   *eventPublisher[[]byte]
	outHooks    *eventPublisher[[]byte]
	stateHooks  *eventPublisher[optionStateEvent]
	signalHooks *eventPublisher[ProcessingSignal]
}

type optionStateEvent struct {
	Option    OptionID
	Direction NegotiationDirection
	State     OptionState
}

// NewConn builds a Conn over stream using config, registers its initial
// handlers, and sends any InitialRequests before returning.
func NewConn(ctx context.Context, stream Stream, config Config) (*Conn, error) {
	handlers := NewHandlerRegistry()
	for id, h := range config.Handlers {
		handlers.Register(id, h)
	}

	connCtx, cancel := context.WithCancel(ctx)

	c := &Conn{
		ID:          uuid.New(),
		stream:      stream,
		fsm:         NewFSM(config.registry(), handlers, config.logger()),
		logger:      config.logger(),
		side:        config.Side,
		readBuf:     make([]byte, config.readBufferSize()),
		ingress:     newByteBuffer(256),
		egress:      newByteBuffer(256),
		group:       &errgroup.Group{},
		connCtx:     connCtx,
		connDone:    cancel,
		maxGroup:    config.MaxHandlerGoroutines,
		errorHooks:  newEventPublisher[error](),
		dataHooks:   newEventPublisher[[]byte](),
		outHooks:    newEventPublisher[[]byte](),
		stateHooks:  newEventPublisher[optionStateEvent](),
		signalHooks: newEventPublisher[ProcessingSignal](),
	}
	if c.maxGroup > 0 {
		c.groupSema = make(chan struct{}, c.maxGroup)
	}
	if config.AYTResponse != "" {
		c.fsm.AYTResponse = []byte(config.AYTResponse)
	}
	c.fsm.UnknownOption = config.UnknownOptionHandler

	for _, h := range config.EventHooks.EncounteredError {
		c.errorHooks.Register(EventHook[error](h))
	}
	for _, h := range config.EventHooks.DataReceived {
		c.dataHooks.Register(EventHook[[]byte](h))
	}
	for _, h := range config.EventHooks.OutboundData {
		c.outHooks.Register(EventHook[[]byte](h))
	}
	for _, h := range config.EventHooks.OptionState {
		handler := h
		c.stateHooks.Register(func(conn *Conn, ev optionStateEvent) {
			handler(conn, ev.Option, ev.Direction, ev.State)
		})
	}
	for _, h := range config.EventHooks.Signal {
		c.signalHooks.Register(EventHook[ProcessingSignal](h))
	}

	c.LaunchWaitForUrgentData()

	for _, req := range config.InitialRequests {
		if err := c.RequestOption(ctx, req.Option, req.Direction); err != nil {
			cancel()
			return nil, err
		}
	}

	return c, nil
}

func (c *Conn) watchOOB(waiter OOBWaiter) {
	for {
		if err := waiter.WaitOOB(c.connCtx); err != nil {
			return
		}
		if prev := c.urgent.NotifyOOB(); prev == HasUrgent {
			// A second urgent notification before the matching Data Mark
			// arrived in band; the tracker coalesces them but the stream
			// layer shouldn't have reported twice.
			c.logger.Error("urgent notification while one is already pending",
				slog.String("conn", c.ID.String()), slog.Any("error", ErrInternal))
		}
	}
}

// OnError, OnData, OnOutboundData, OnOptionState, OnSignal register
// additional hooks after construction.
func (c *Conn) OnError(h ErrorHandler) { c.errorHooks.Register(EventHook[error](h)) }
func (c *Conn) OnData(h DataHandler)   { c.dataHooks.Register(EventHook[[]byte](h)) }
func (c *Conn) OnOutboundData(h DataHandler) {
	c.outHooks.Register(EventHook[[]byte](h))
}
func (c *Conn) OnSignal(h SignalHandler) {
	c.signalHooks.Register(EventHook[ProcessingSignal](h))
}
func (c *Conn) OnOptionState(h OptionStateHandler) {
	c.stateHooks.Register(func(conn *Conn, ev optionStateEvent) {
		h(conn, ev.Option, ev.Direction, ev.State)
	})
}

// Status exposes the connection's negotiation table for read-only
// inspection (e.g. building a custom STATUS-like report).
func (c *Conn) Status(id OptionID) OptionStatus { return c.fsm.Status.Get(id) }

// Side reports whether this connection was configured as the client or
// server end.
func (c *Conn) Side() ConnSide { return c.side }

// IsEnabled reports whether opt is fully enabled (YES) in either direction.
func (c *Conn) IsEnabled(opt OptionID) bool {
	status := c.fsm.Status.Get(opt)
	return status.LocalEnabled() || status.RemoteEnabled()
}

// IsEnabledDirection reports whether opt is fully enabled (YES) in dir.
func (c *Conn) IsEnabledDirection(opt OptionID, dir NegotiationDirection) bool {
	return c.fsm.Status.Get(opt).Enabled(dir)
}

// RegisterHandlers installs handlers for opt, replacing any earlier set.
// Must be called from the connection's goroutine, like every other
// per-connection mutation.
func (c *Conn) RegisterHandlers(opt OptionID, handlers OptionHandlers) {
	c.fsm.Handlers.Register(opt, handlers)
}

// UnregisterHandlers removes any handler set for opt.
func (c *Conn) UnregisterHandlers(opt OptionID) {
	c.fsm.Handlers.Unregister(opt)
}

// RegisterCommandHandler installs a handler for a bare IAC command. Only
// AYT accepts a user handler; the engine owns the semantics of every other
// command code (negotiation, subnegotiation framing, signals), so
// registering for them fails with ErrUserHandlerForbidden.
func (c *Conn) RegisterCommandHandler(command byte, handler CommandHandler) error {
	if command != AYT {
		return ErrUserHandlerForbidden
	}
	c.fsm.AYTHandler = handler
	return nil
}

// RegisterAYTHandler replaces the default textual AYT reply with a
// user-supplied handler; its non-empty return value is sent verbatim.
func (c *Conn) RegisterAYTHandler(handler CommandHandler) {
	c.fsm.AYTHandler = handler
}

// LaunchWaitForUrgentData starts the out-of-band watch task if the
// underlying stream supports one and it isn't already running. NewConn
// calls this automatically; it's exposed for streams whose OOB support
// appears after construction, and is idempotent.
func (c *Conn) LaunchWaitForUrgentData() {
	waiter, ok := c.stream.(OOBWaiter)
	if !ok {
		return
	}
	if !c.oobWatching.CompareAndSwap(false, true) {
		return
	}
	go c.watchOOB(waiter)
}

// ReadContext returns the next chunk of application data, running the read
// loop until at least one forwardable byte is produced, the context is
// done, or the stream ends. Control bytes, negotiations, and
// subnegotiations consumed along the way are handled internally and never
// appear in the returned slice.
func (c *Conn) ReadContext(ctx context.Context) ([]byte, error) {
	if c.readState == readDone {
		return nil, io.EOF
	}
	c.readState = readReading

	for {
		select {
		case <-ctx.Done():
			return c.drainIngress(), ctx.Err()
		default:
		}

		n, err := c.stream.Read(ctx, c.readBuf)
		if n > 0 {
			c.readState = readProcessing
			c.processBytes(ctx, c.readBuf[:n])
		}
		if err != nil {
			c.readState = readDone
			out := c.drainIngress()
			if errors.Is(err, io.EOF) && len(out) > 0 {
				return out, nil
			}
			return out, err
		}
		if c.ingress.Len() > 0 {
			c.readState = readReading
			return c.drainIngress(), nil
		}
	}
}

// Read implements io.Reader over ReadContext, holding any overflow from a
// previous chunk until the caller's buffer catches up.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	if c.readErr != nil {
		err := c.readErr
		c.readErr = nil
		return 0, err
	}

	chunk, err := c.ReadContext(context.Background())
	n := copy(p, chunk)
	if n < len(chunk) {
		c.pending = chunk[n:]
	}
	if err != nil && n > 0 {
		// Deliver the data now; the error resurfaces on a later call.
		c.readErr = err
		err = nil
	}
	return n, err
}

// Write implements io.Writer with the same escaping as WriteContext.
func (c *Conn) Write(p []byte) (int, error) {
	return c.WriteContext(context.Background(), p)
}

// drainIngress takes every byte the FSM has forwarded so far and resets
// the buffer for the next read cycle.
func (c *Conn) drainIngress() []byte {
	n := c.ingress.Len()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, c.ingress.Take(n))
	c.ingress.Reset()
	return out
}

func (c *Conn) processBytes(ctx context.Context, in []byte) {
	for _, b := range in {
		signal, forward, fb, action := c.fsm.ProcessByte(b)

		switch signal {
		case SignalCarriageReturn:
			if c.urgent.State() != HasUrgent {
				c.ingress.Append('\r')
			}
		case SignalEraseCharacter:
			// Erase the last undelivered byte if we still hold one; if the
			// application has already taken everything, it has to handle the
			// erase itself.
			if !c.ingress.TrimLast() {
				c.signalHooks.Fire(c, signal)
			}
		case SignalEraseLine:
			if c.ingress.Len() > 0 {
				c.ingress.Reset()
			} else {
				c.signalHooks.Fire(c, signal)
			}
		case SignalAbortOutput:
			// Discard anything queued for send but not yet on the wire, then
			// answer with a Synch so the peer's buffered input is flushed up
			// to this point too (spec.md §4.3/§4.5, §8 scenario 6).
			c.egress.Reset()
			if err := c.SendSynch(ctx); err != nil {
				c.reportError(err)
			}
			c.signalHooks.Fire(c, signal)
		case SignalNone:
		default:
			c.signalHooks.Fire(c, signal)
			if signal == SignalDataMark {
				switch c.urgent.ObserveDataMark() {
				case NoUrgent:
					c.logger.Info("data mark arrived before urgent notification",
						slog.String("conn", c.ID.String()))
				case UnexpectedDataMark:
					c.logger.Warn("redundant data mark",
						slog.String("conn", c.ID.String()))
				}
			}
		}

		// While a Synch flush is in progress (HasUrgent), forwarded bytes are
		// discarded rather than delivered — they precede the Data Mark that
		// hasn't arrived yet (spec.md §4.6).
		if forward && c.urgent.State() != HasUrgent {
			c.ingress.Append(fb)
		}

		if action != nil {
			c.dispatchAction(ctx, action)
		}
	}

	if c.ingress.Len() > 0 {
		c.dataHooks.Fire(c, c.ingress.Peek())
	}
}

func (c *Conn) dispatchAction(ctx context.Context, action Action) {
	switch a := action.(type) {
	case NegotiationResponse:
		if err := c.writeNegotiation(ctx, a); err != nil {
			c.reportError(err)
		}
	case RawWrite:
		if err := c.writeDirect(ctx, a.Bytes); err != nil {
			c.reportError(err)
		}
	case EnablementAwaitable:
		if a.Negotiation != nil {
			if err := c.writeNegotiation(ctx, *a.Negotiation); err != nil {
				c.reportError(err)
			}
		}
		c.stateHooks.Fire(c, optionStateEvent{a.Option, a.Direction, StateYes})
		c.spawnHandler(func() error {
			if a.Handler == nil {
				return nil
			}
			return a.Handler(c, a.Option, a.Direction)
		})
	case DisablementAwaitable:
		if a.Negotiation != nil {
			if err := c.writeNegotiation(ctx, *a.Negotiation); err != nil {
				c.reportError(err)
			}
		}
		c.stateHooks.Fire(c, optionStateEvent{a.Option, a.Direction, StateNo})
		c.spawnHandler(func() error {
			if a.Handler == nil {
				return nil
			}
			return a.Handler(c, a.Option, a.Direction)
		})
	case SubnegotiationAwaitable:
		c.spawnHandler(func() error {
			reply, err := a.Handler(c, a.Option, a.Payload)
			if err != nil {
				return err
			}
			if len(reply) == 0 {
				return nil
			}
			return c.WriteSubnegotiation(c.connCtx, a.Option, reply)
		})
	}
}

// spawnHandler runs fn on a tracked goroutine. Handler goroutines are
// intentionally not cancelled by the read loop's context — closing a
// Conn cancels connCtx, and Wait drains whatever is still running rather
// than abandoning it mid-write.
func (c *Conn) spawnHandler(fn func() error) {
	if c.groupSema != nil {
		c.groupSema <- struct{}{}
	}
	c.group.Go(func() error {
		if c.groupSema != nil {
			defer func() { <-c.groupSema }()
		}
		err := fn()
		if err != nil {
			c.reportError(err)
		}
		return err
	})
}

func (c *Conn) reportError(err error) {
	c.logger.Error("telnet connection error", slog.String("conn", c.ID.String()), slog.Any("error", err))
	c.errorHooks.Fire(c, err)
}

// RequestOption asks to enable opt in dir, per the RFC 1143 request table.
func (c *Conn) RequestOption(ctx context.Context, opt OptionID, dir NegotiationDirection) error {
	resp, err := c.fsm.RequestOption(opt, dir)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return c.writeNegotiation(ctx, *resp)
}

// DisableOption asks to disable opt in dir. If a disablement handler is
// registered for opt, it runs on a tracked goroutine immediately.
func (c *Conn) DisableOption(ctx context.Context, opt OptionID, dir NegotiationDirection) error {
	resp, handler, err := c.fsm.DisableOption(opt, dir)
	if err != nil {
		return err
	}
	if resp != nil {
		if err := c.writeNegotiation(ctx, *resp); err != nil {
			return err
		}
		c.stateHooks.Fire(c, optionStateEvent{opt, dir, StateNo})
	}
	if handler != nil {
		c.spawnHandler(func() error { return handler(c, opt, dir) })
	}
	return nil
}

// WriteNegotiation sends IAC (WILL|WONT|DO|DONT) opt directly, without
// consulting the Q-Method engine. Most callers want RequestOption or
// DisableOption instead; this exists for protocol tooling that needs to
// put a specific negotiation on the wire.
func (c *Conn) WriteNegotiation(ctx context.Context, resp NegotiationResponse) error {
	return c.writeNegotiation(ctx, resp)
}

func (c *Conn) writeNegotiation(ctx context.Context, resp NegotiationResponse) error {
	c.logger.Debug("sending negotiation",
		slog.String("conn", c.ID.String()),
		slog.String("command", CommandString(resp.command(), resp.Option, nil)))
	return c.writeDirect(ctx, []byte{IAC, resp.command(), byte(resp.Option)})
}

// WriteSubnegotiation sends IAC SB opt payload IAC SE, doubling literal
// IAC bytes inside payload. The option must be registered with
// subnegotiation support, and the option must be enabled (YES) on at least
// one side; a pending (WANT*) option is refused with ErrOptionNotAvailable
// like a disabled one.
func (c *Conn) WriteSubnegotiation(ctx context.Context, opt OptionID, payload []byte) error {
	o, ok := c.fsm.Registry.Lookup(opt)
	if !ok {
		return ErrOptionNotAvailable
	}
	if !o.SupportsSubnegotiation {
		return ErrInvalidSubnegotiation
	}
	status := c.fsm.Status.Get(opt)
	if !status.LocalEnabled() && !status.RemoteEnabled() {
		return ErrOptionNotAvailable
	}
	c.logger.Debug("sending subnegotiation",
		slog.String("conn", c.ID.String()),
		slog.String("command", CommandString(SB, opt, payload)))
	return c.writeDirect(ctx, frameSubnegotiation(opt, payload))
}

// WriteCommand sends a bare IAC command (NOP, AYT, GA, DM, and so on —
// anything that doesn't carry an option byte).
func (c *Conn) WriteCommand(ctx context.Context, command byte) error {
	return c.writeDirect(ctx, []byte{IAC, command})
}

// WriteRaw sends pre-escaped bytes verbatim, bypassing the application-data
// escaping WriteContext applies. Callers are responsible for IAC doubling.
func (c *Conn) WriteRaw(ctx context.Context, data []byte) error {
	return c.writeDirect(ctx, data)
}

func (c *Conn) writeDirect(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.stream.Write(ctx, data)
	return err
}

// WriteContext sends application data, escaping IAC bytes (0xFF -> IAC IAC)
// and, unless BINARY is enabled locally, rewriting bare LF as CR LF and
// bare CR as CR NUL per RFC 854. The returned count is of application
// bytes accepted, not wire bytes.
func (c *Conn) WriteContext(ctx context.Context, data []byte) (int, error) {
	escaped := escapeOutbound(data, c.fsm.localBinary())
	c.outHooks.Fire(c, data)
	if err := c.writeDirect(ctx, escaped); err != nil {
		return 0, err
	}
	return len(data), nil
}

// escapeOutbound applies RFC 854 egress transforms: IAC doubling always;
// LF -> CR LF and CR -> CR NUL only when binary transmission is off. A CR
// already followed by LF or NUL in the input is left as the pair it is.
func escapeOutbound(data []byte, binary bool) []byte {
	out := make([]byte, 0, len(data)+len(data)/10+2)
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == IAC:
			out = append(out, IAC, IAC)
		case binary:
			out = append(out, b)
		case b == '\n':
			out = append(out, '\r', '\n')
		case b == '\r':
			out = append(out, '\r')
			if i+1 < len(data) && (data[i+1] == '\n' || data[i+1] == 0) {
				out = append(out, data[i+1])
				i++
			} else {
				out = append(out, 0)
			}
		default:
			out = append(out, b)
		}
	}
	return out
}

// SendSynch transmits a Telnet Synch: the stream's urgent-data byte
// followed by two in-band NULs and IAC DM, per spec.md §4.6.
func (c *Conn) SendSynch(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.stream.SendSynch(ctx); err != nil {
		return err
	}
	_, err := c.stream.Write(ctx, []byte{0, 0, IAC, DM})
	return err
}

// Close closes the underlying stream, cancels handler goroutines' shared
// context, and waits for them to finish.
func (c *Conn) Close() error {
	streamErr := c.stream.Close()
	c.connDone()
	groupErr := c.group.Wait()
	if streamErr != nil {
		return streamErr
	}
	return groupErr
}
