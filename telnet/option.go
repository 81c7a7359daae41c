package telnet

// OptionID identifies a telnet option by its one-byte IANA code. BINARY=0,
// ECHO=1, SUPPRESS-GO-AHEAD=3, STATUS=5, and so on.
type OptionID byte

// Well-known option codes given semantics by this engine. Other values are
// proprietary/unnamed and are negotiated purely on the byte value.
const (
	OptTransmitBinary      OptionID = 0
	OptEcho                OptionID = 1
	OptSuppressGoAhead     OptionID = 3
	OptStatus              OptionID = 5
	OptExtendedOptionsList OptionID = 255
)

// DefaultMaxSubnegotiationBytes is the subnegotiation payload cap applied
// to any Option that doesn't set its own.
const DefaultMaxSubnegotiationBytes = 1024

// Option describes a single telnet option: its identity, whether this
// engine will accept the peer enabling it in either direction, and its
// subnegotiation framing limits. AllowLocalRequest/AllowRemoteRequest are
// consulted only for peer-initiated enablement (§4.2); they are not
// consulted for requests this engine itself initiates via RequestOption.
type Option struct {
	ID   OptionID
	Name string

	// SupportsLocal/SupportsRemote report whether this option is meaningful
	// in the local/remote direction at all — used to reject RequestOption
	// calls for directions the option was never meant to support.
	SupportsLocal  bool
	SupportsRemote bool

	// AllowLocalRequest is consulted when the peer sends DO (asking this
	// engine to enable the option locally). A nil predicate is treated as
	// "always allow" if SupportsLocal is true.
	AllowLocalRequest func(OptionID) bool
	// AllowRemoteRequest is consulted when the peer sends WILL (asking this
	// engine to allow the peer to enable the option). A nil predicate is
	// treated as "always allow" if SupportsRemote is true.
	AllowRemoteRequest func(OptionID) bool

	// SupportsSubnegotiation indicates whether IAC SB <opt> ... IAC SE is
	// meaningful for this option.
	SupportsSubnegotiation bool
	// MaxSubnegotiationBytes caps the subnegotiation buffer for this
	// option. Zero means DefaultMaxSubnegotiationBytes.
	MaxSubnegotiationBytes int
}

func (o *Option) maxSubnegotiationBytes() int {
	if o.MaxSubnegotiationBytes <= 0 {
		return DefaultMaxSubnegotiationBytes
	}
	return o.MaxSubnegotiationBytes
}

func (o *Option) allowLocal() bool {
	if !o.SupportsLocal {
		return false
	}
	if o.AllowLocalRequest == nil {
		return true
	}
	return o.AllowLocalRequest(o.ID)
}

func (o *Option) allowRemote() bool {
	if !o.SupportsRemote {
		return false
	}
	if o.AllowRemoteRequest == nil {
		return true
	}
	return o.AllowRemoteRequest(o.ID)
}
