package telnet

import "sync"

// EventHook is a callback registered to receive one kind of Conn event.
type EventHook[T any] func(conn *Conn, data T)

// eventPublisher fans one event out to every hook registered for it. A
// connection has several of these (one per event kind) rather than one
// hook type with a big switch, so registering for "just errors" doesn't
// mean filtering out everything else in the callback body.
type eventPublisher[T any] struct {
	lock  sync.Mutex
	hooks []EventHook[T]
}

func newEventPublisher[T any]() *eventPublisher[T] {
	return &eventPublisher[T]{}
}

// Register adds hook to the set called by Fire.
func (p *eventPublisher[T]) Register(hook EventHook[T]) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.hooks = append(p.hooks, hook)
}

// Fire calls every registered hook in registration order, synchronously.
func (p *eventPublisher[T]) Fire(conn *Conn, data T) {
	p.lock.Lock()
	hooks := make([]EventHook[T], len(p.hooks))
	copy(hooks, p.hooks)
	p.lock.Unlock()

	for _, hook := range hooks {
		hook(conn, data)
	}
}

// ErrorHandler receives errors the connection encountered that were not
// returned directly to a caller: failed writes of replies or Synch made by
// the read loop, and handler goroutine failures. Protocol violations found
// by the FSM are only logged and do not reach this hook.
type ErrorHandler func(conn *Conn, err error)

// DataHandler receives application byte payloads: DataReceived for inbound
// text/binary data, OutboundData for a mirror of the application data
// passed to WriteContext/Write, before escaping (useful for debug logging,
// matching the teacher's OutboundData hook). Raw writes, commands and
// negotiations are not mirrored.
type DataHandler func(conn *Conn, data []byte)

// OptionStateHandler receives notice that an option's negotiation state
// changed for one direction.
type OptionStateHandler func(conn *Conn, id OptionID, dir NegotiationDirection, state OptionState)

// SignalHandler receives benign control signals the FSM produced while
// processing inbound bytes: break and interrupt; erase character/line when
// there is no buffered data to erase; and abort output and data mark after
// the composer has acted on them.
type SignalHandler func(conn *Conn, signal ProcessingSignal)

// EventHooks is the set of pre-registered callbacks passed to NewConn. More
// can be added afterward with Conn.OnXxx.
type EventHooks struct {
	EncounteredError []ErrorHandler
	DataReceived     []DataHandler
	OutboundData     []DataHandler
	OptionState      []OptionStateHandler
	Signal           []SignalHandler
}
