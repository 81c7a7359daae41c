package telopts

import "github.com/cannibalvox/telnetcore/telnet"

const exopl = telnet.OptExtendedOptionsList

// RegisterEXOPL builds the EXTENDED-OPTIONS-LIST (RFC 861) descriptor.
// Only the option byte itself is understood; no extended option space is
// implemented behind it, so the descriptor exists so the value can be
// negotiated (and, far more commonly, politely refused) rather than
// falling into the unknown-option path.
func RegisterEXOPL(usage Usage) *telnet.Option {
	return base(exopl, "EXTENDED-OPTIONS-LIST", usage)
}
