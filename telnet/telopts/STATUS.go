package telopts

import (
	"context"
	"fmt"

	"github.com/cannibalvox/telnetcore/telnet"
)

const status = telnet.OptStatus

const (
	statusIs   byte = 0
	statusSend byte = 1
)

// RegisterSTATUS builds the STATUS (RFC 859) descriptor. The engine core
// answers inbound SEND subnegotiations itself from its negotiation table,
// so enabling STATUS locally is all a server needs to do. Peer-sent IS
// reports are delivered to whatever subnegotiation handler the consumer
// registers; ParseReport decodes them.
func RegisterSTATUS(usage Usage) *telnet.Option {
	opt := base(status, "STATUS", usage)
	opt.SupportsSubnegotiation = true
	return opt
}

// StatusEntry is one option named by a STATUS IS report, with the side the
// peer claims it is enabled on. Direction follows the report's WILL/DO
// vocabulary: a WILL pair means the sender has the option on, a DO pair
// means the sender believes the receiver has it on.
type StatusEntry struct {
	Option    telnet.OptionID
	Direction telnet.NegotiationDirection
}

// ParseReport decodes the payload of a STATUS IS subnegotiation (as
// delivered to a subnegotiation handler, IAC de-escaping already applied)
// into its option entries. Directions are from the report sender's point
// of view.
func ParseReport(payload []byte) ([]StatusEntry, error) {
	if len(payload) == 0 || payload[0] != statusIs {
		return nil, fmt.Errorf("status: report does not begin with IS: %+v", payload)
	}

	body := payload[1:]
	if len(body)%2 != 0 {
		return nil, fmt.Errorf("status: truncated report pair: %+v", payload)
	}

	entries := make([]StatusEntry, 0, len(body)/2)
	for i := 0; i < len(body); i += 2 {
		var dir telnet.NegotiationDirection
		switch body[i] {
		case telnet.WILL:
			dir = telnet.Local
		case telnet.DO:
			dir = telnet.Remote
		default:
			return nil, fmt.Errorf("status: unexpected report command %#x", body[i])
		}
		entries = append(entries, StatusEntry{Option: telnet.OptionID(body[i+1]), Direction: dir})
	}

	return entries, nil
}

// RequestReport asks the peer for a STATUS report by sending IAC SB STATUS
// SEND IAC SE. STATUS must be enabled on the peer's side first.
func RequestReport(ctx context.Context, conn *telnet.Conn) error {
	return conn.WriteSubnegotiation(ctx, status, []byte{statusSend})
}
