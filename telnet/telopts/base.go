package telopts

import "github.com/cannibalvox/telnetcore/telnet"

// Usage indicates how a particular option is supposed to be used by this
// endpoint: which sides it may be activated on when the peer asks. The
// same flags set SupportsLocal/SupportsRemote, so a side without its
// Allow flag cannot be requested via Conn.RequestOption either.
type Usage byte

const (
	// AllowRemote - if the peer requests to activate this option on their
	// side (sends WILL), we will accept and answer DO.
	AllowRemote Usage = 1 << iota

	// AllowLocal - if the peer requests that we activate this option on our
	// side (sends DO), we will accept and answer WILL.
	AllowLocal
)

func base(id telnet.OptionID, name string, usage Usage) *telnet.Option {
	return &telnet.Option{
		ID:             id,
		Name:           name,
		SupportsLocal:  usage&AllowLocal != 0,
		SupportsRemote: usage&AllowRemote != 0,
	}
}
