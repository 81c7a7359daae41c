package telnet

// OptionStatusDB holds the full RFC 1143 negotiation state for all 256
// possible option codes for one connection. It is never shared between
// connections and is not synchronized — per spec.md §5, per-FSM state is
// strictly single-threaded.
type OptionStatusDB [256]OptionStatus

// Get returns the current status for id.
func (db *OptionStatusDB) Get(id OptionID) OptionStatus {
	return db[id]
}

// Set overwrites the status for id.
func (db *OptionStatusDB) Set(id OptionID, status OptionStatus) {
	db[id] = status
}

// Mutate applies fn to id's current status and stores the result. This is
// the usual way callers drive state transitions: db.Mutate(id, func(s
// OptionStatus) OptionStatus { return s.Enable(Local) }).
func (db *OptionStatusDB) Mutate(id OptionID, fn func(OptionStatus) OptionStatus) {
	db[id] = fn(db[id])
}
