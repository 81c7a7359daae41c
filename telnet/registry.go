package telnet

import "sync"

// OptionRegistry maps OptionID to its Option descriptor. It may be shared
// across connections and mutated at runtime (spec.md §5), so reads and
// writes are guarded by a reader-writer lock; the FSM takes the read path
// on every negotiation command, so Lookup is cheap and allocation-free.
type OptionRegistry struct {
	lock    sync.RWMutex
	options map[OptionID]*Option
	order   []OptionID
}

// NewOptionRegistry creates a registry seeded with the given options, in
// the order given (Range preserves insertion order for deterministic
// enumeration, e.g. for STATUS's reply payload).
func NewOptionRegistry(options ...*Option) *OptionRegistry {
	r := &OptionRegistry{
		options: make(map[OptionID]*Option, len(options)),
	}
	for _, opt := range options {
		r.upsertLocked(opt)
	}
	return r
}

// DefaultOptionRegistry seeds BINARY and SUPPRESS-GO-AHEAD as acceptable
// in both directions, and STATUS as locally acceptable / remotely
// rejected, matching spec.md §6's configuration surface.
func DefaultOptionRegistry() *OptionRegistry {
	return NewOptionRegistry(
		&Option{ID: OptTransmitBinary, Name: "BINARY", SupportsLocal: true, SupportsRemote: true},
		&Option{ID: OptSuppressGoAhead, Name: "SUPPRESS-GO-AHEAD", SupportsLocal: true, SupportsRemote: true},
		&Option{ID: OptStatus, Name: "STATUS", SupportsLocal: true, SupportsRemote: false, SupportsSubnegotiation: true},
	)
}

func (r *OptionRegistry) upsertLocked(opt *Option) {
	if _, exists := r.options[opt.ID]; !exists {
		r.order = append(r.order, opt.ID)
	}
	r.options[opt.ID] = opt
}

// Upsert inserts or replaces the descriptor for opt.ID.
func (r *OptionRegistry) Upsert(opt *Option) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.upsertLocked(opt)
}

// Lookup returns the descriptor for id, or (nil, false) if unregistered.
func (r *OptionRegistry) Lookup(id OptionID) (*Option, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	opt, ok := r.options[id]
	return opt, ok
}

// Range calls fn for every registered option in insertion order. fn must
// not call back into the registry.
func (r *OptionRegistry) Range(fn func(*Option)) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, id := range r.order {
		fn(r.options[id])
	}
}

// SubnegotiationHandler receives the de-escaped subnegotiation payload for
// an option and returns an optional reply payload to be framed as IAC SB
// <opt> reply IAC SE. A nil/empty reply means "no reply".
type SubnegotiationHandler func(conn *Conn, id OptionID, payload []byte) ([]byte, error)

// EnablementHandler runs after an option transitions to YES.
type EnablementHandler func(conn *Conn, id OptionID, dir NegotiationDirection) error

// DisablementHandler runs when an option is being turned off: after the
// peer disables it from YES, or as soon as this engine sends its own
// WONT/DONT (the state is then WANTNO, before the peer confirms).
type DisablementHandler func(conn *Conn, id OptionID, dir NegotiationDirection) error

// CommandHandler runs in response to a bare IAC command (currently only
// AYT is user-handleable). A non-empty return value is sent to the peer
// verbatim, like the default AYT reply; return nil bytes to answer some
// other way (or not at all).
type CommandHandler func(conn *Conn) ([]byte, error)

// OptionHandlers is the set of user callbacks an option may register.
type OptionHandlers struct {
	OnEnable       EnablementHandler
	OnDisable      DisablementHandler
	OnSubnegotiate SubnegotiationHandler
}

// HandlerRegistry maps OptionID to its registered handler set. Unlike
// OptionRegistry, this is per-connection (per spec.md §3) and therefore
// never shared between goroutines, so no lock is required — registration
// happens synchronously on the connection's single-threaded FSM.
type HandlerRegistry struct {
	handlers map[OptionID]OptionHandlers
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[OptionID]OptionHandlers)}
}

// Register installs (or replaces) the handler set for id.
func (h *HandlerRegistry) Register(id OptionID, handlers OptionHandlers) {
	h.handlers[id] = handlers
}

// Unregister removes any handlers for id.
func (h *HandlerRegistry) Unregister(id OptionID) {
	delete(h.handlers, id)
}

// Lookup returns the handler set for id, or the zero value if none is
// registered.
func (h *HandlerRegistry) Lookup(id OptionID) (OptionHandlers, bool) {
	handlers, ok := h.handlers[id]
	return handlers, ok
}
