package telnet

import (
	"bytes"
	"testing"
)

func statusFSM() *FSM {
	f := testFSM(nil)
	f.Status.Mutate(OptStatus, func(s OptionStatus) OptionStatus { return s.Enable(Local) })
	return f
}

func TestStatusSendReportsEnabledOptions(t *testing.T) {
	f := statusFSM()
	f.Status.Mutate(OptTransmitBinary, func(s OptionStatus) OptionStatus { return s.Enable(Local) })
	f.Status.Mutate(OptSuppressGoAhead, func(s OptionStatus) OptionStatus { return s.Enable(Remote) })

	r := feed(f, []byte{IAC, SB, byte(OptStatus), 0x01, IAC, SE})
	if len(r.actions) != 1 {
		t.Fatalf("actions = %v, want one RawWrite", r.actions)
	}
	raw, ok := r.actions[0].(RawWrite)
	if !ok {
		t.Fatalf("action type %T, want RawWrite", r.actions[0])
	}

	// Registry enumeration order is BINARY, SUPPRESS-GO-AHEAD, STATUS, so
	// the report is IS, WILL 0, DO 3, WILL 5 inside the frame.
	want := []byte{IAC, SB, byte(OptStatus),
		0x00,
		WILL, byte(OptTransmitBinary),
		DO, byte(OptSuppressGoAhead),
		WILL, byte(OptStatus),
		IAC, SE}
	if !bytes.Equal(raw.Bytes, want) {
		t.Errorf("report = %v, want %v", raw.Bytes, want)
	}
}

func TestStatusSendOmitsPendingOptions(t *testing.T) {
	f := statusFSM()
	f.Status.Mutate(OptTransmitBinary, func(s OptionStatus) OptionStatus { return s.PendEnable(Local) })

	r := feed(f, []byte{IAC, SB, byte(OptStatus), 0x01, IAC, SE})
	raw := r.actions[0].(RawWrite)

	want := []byte{IAC, SB, byte(OptStatus), 0x00, WILL, byte(OptStatus), IAC, SE}
	if !bytes.Equal(raw.Bytes, want) {
		t.Errorf("report = %v, want %v (WANT* options omitted)", raw.Bytes, want)
	}
}

func TestStatusSendRequiresLocalEnable(t *testing.T) {
	f := testFSM(nil) // STATUS registered but not enabled

	r := feed(f, []byte{IAC, SB, byte(OptStatus), 0x01, IAC, SE})
	if len(r.actions) != 0 {
		t.Errorf("STATUS SEND without local enable produced %v", r.actions)
	}
}

func TestStatusIsDeliveredToHandler(t *testing.T) {
	f := statusFSM()
	f.Status.Mutate(OptStatus, func(s OptionStatus) OptionStatus { return s.Enable(Remote) })

	var got []byte
	f.Handlers.Register(OptStatus, OptionHandlers{
		OnSubnegotiate: func(conn *Conn, id OptionID, payload []byte) ([]byte, error) {
			got = payload
			return nil, nil
		},
	})

	r := feed(f, []byte{IAC, SB, byte(OptStatus), 0x00, WILL, 0x01, IAC, SE})
	if len(r.actions) != 1 {
		t.Fatalf("actions = %v, want one awaitable", r.actions)
	}
	sub := r.actions[0].(SubnegotiationAwaitable)
	sub.Handler(nil, sub.Option, sub.Payload)
	if !bytes.Equal(got, []byte{0x00, WILL, 0x01}) {
		t.Errorf("handler payload = %v, want the full IS body", got)
	}
}

func TestStatusIsRequiresRemoteEnable(t *testing.T) {
	f := statusFSM() // local yes, remote no

	r := feed(f, []byte{IAC, SB, byte(OptStatus), 0x00, WILL, 0x01, IAC, SE})
	if len(r.actions) != 0 {
		t.Errorf("STATUS IS without remote enable produced %v", r.actions)
	}
}

func TestStatusUnknownSubcommandDropped(t *testing.T) {
	f := statusFSM()

	r := feed(f, []byte{IAC, SB, byte(OptStatus), 0x07, IAC, SE})
	if len(r.actions) != 0 {
		t.Errorf("bogus STATUS subcommand produced %v", r.actions)
	}
}

func TestFrameSubnegotiationEscapesIAC(t *testing.T) {
	framed := frameSubnegotiation(OptionID(0x18), []byte{0x00, 0xFF, 0x41})

	want := []byte{IAC, SB, 0x18, 0x00, 0xFF, 0xFF, 0x41, IAC, SE}
	if !bytes.Equal(framed, want) {
		t.Errorf("framed = %v, want %v", framed, want)
	}
}
