package telopts

import "github.com/cannibalvox/telnetcore/telnet"

const suppressgoahead = telnet.OptSuppressGoAhead

// RegisterSUPPRESSGOAHEAD builds the SUPPRESS-GO-AHEAD (RFC 858)
// descriptor. With it active in both directions the connection is
// effectively full-duplex and GA commands stop flowing. The engine already
// passes GA through as a no-op, so nothing else changes here.
func RegisterSUPPRESSGOAHEAD(usage Usage) *telnet.Option {
	return base(suppressgoahead, "SUPPRESS-GO-AHEAD", usage)
}
