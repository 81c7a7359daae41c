package telopts

import "github.com/cannibalvox/telnetcore/telnet"

const transmitbinary = telnet.OptTransmitBinary

// RegisterTRANSMITBINARY builds the TRANSMIT-BINARY (RFC 856) descriptor.
// While active on the local side, the engine stops rewriting CR/LF on
// egress and stops treating inbound CR specially; only IAC doubling
// remains. That behavior lives in the engine core — this descriptor just
// makes the option negotiable.
func RegisterTRANSMITBINARY(usage Usage) *telnet.Option {
	return base(transmitbinary, "TRANSMIT-BINARY", usage)
}
