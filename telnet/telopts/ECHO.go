package telopts

import "github.com/cannibalvox/telnetcore/telnet"

const echo = telnet.OptEcho

// RegisterECHO builds the ECHO (RFC 857) descriptor. ECHO indicates whether
// the local end will repeat text sent from the remote back to the remote.
// In practice clients tend to echo locally when the remote is not set to
// echo, so ECHO is used far more often to stop the remote from echoing than
// to actually echo. The descriptor therefore carries no behavior of its
// own; the consumer decides what ECHO being on means, usually via an
// enablement handler.
func RegisterECHO(usage Usage) *telnet.Option {
	return base(echo, "ECHO", usage)
}
