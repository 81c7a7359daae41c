package telnet

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFSM(registry *OptionRegistry) *FSM {
	if registry == nil {
		registry = DefaultOptionRegistry()
	}
	return NewFSM(registry, NewHandlerRegistry(), discardLogger())
}

// feedResult collects everything a byte sequence produced, applying the
// deferred-CR contract the composer follows: a CarriageReturn signal
// places '\r' into the destination before the next byte is processed.
type feedResult struct {
	forwarded []byte
	signals   []ProcessingSignal
	actions   []Action
}

func feed(f *FSM, input []byte) feedResult {
	var r feedResult
	for _, b := range input {
		signal, forward, forwardByte, action := f.ProcessByte(b)
		switch signal {
		case SignalNone:
		case SignalCarriageReturn:
			r.forwarded = append(r.forwarded, '\r')
		default:
			r.signals = append(r.signals, signal)
		}
		if forward {
			r.forwarded = append(r.forwarded, forwardByte)
		}
		if action != nil {
			r.actions = append(r.actions, action)
		}
	}
	return r
}

func TestFSMPlainData(t *testing.T) {
	f := testFSM(nil)
	r := feed(f, []byte("Hello"))

	if !bytes.Equal(r.forwarded, []byte("Hello")) {
		t.Errorf("forwarded %q, want %q", r.forwarded, "Hello")
	}
	if len(r.actions) != 0 || len(r.signals) != 0 {
		t.Errorf("unexpected actions %v or signals %v", r.actions, r.signals)
	}
	if f.state != stateNormal {
		t.Errorf("state = %v, want Normal", f.state)
	}
	for id := 0; id < 256; id++ {
		if f.Status.Get(OptionID(id)) != OptionStatus(0) {
			t.Fatalf("option %d status disturbed by plain data", id)
		}
	}
}

func TestFSMEscapedIAC(t *testing.T) {
	f := testFSM(nil)
	r := feed(f, []byte{0x41, 0xFF, 0xFF, 0x42})

	if !bytes.Equal(r.forwarded, []byte{0x41, 0xFF, 0x42}) {
		t.Errorf("forwarded %v, want [41 FF 42]", r.forwarded)
	}
	if len(r.actions) != 0 {
		t.Errorf("unexpected actions %v", r.actions)
	}
}

func TestFSMCarriageReturnHandling(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{"CR NUL collapses to CR", []byte{0x41, '\r', 0x00, 0x42}, []byte{0x41, '\r', 0x42}},
		{"CR LF passes through", []byte{0x41, '\r', '\n', 0x42}, []byte{0x41, '\r', '\n', 0x42}},
		{"CR then data", []byte{'\r', 0x58}, []byte{'\r', 0x58}},
		{"CR then IAC IAC", []byte{'\r', 0xFF, 0xFF}, []byte{'\r', 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFSM(nil)
			r := feed(f, tt.input)
			if !bytes.Equal(r.forwarded, tt.want) {
				t.Errorf("forwarded %v, want %v", r.forwarded, tt.want)
			}
			if f.state != stateNormal {
				t.Errorf("state = %v, want Normal", f.state)
			}
		})
	}
}

func TestFSMBinaryModeDisablesCRProcessing(t *testing.T) {
	f := testFSM(nil)
	f.Status.Mutate(OptTransmitBinary, func(s OptionStatus) OptionStatus { return s.Enable(Local) })

	r := feed(f, []byte{0x41, '\r', 0x00, 0x42})
	if !bytes.Equal(r.forwarded, []byte{0x41, '\r', 0x00, 0x42}) {
		t.Errorf("forwarded %v; binary mode must not touch CR NUL", r.forwarded)
	}
}

func TestFSMControlSignals(t *testing.T) {
	tests := []struct {
		command byte
		want    ProcessingSignal
	}{
		{DM, SignalDataMark},
		{BRK, SignalBreak},
		{IP, SignalInterrupt},
		{AO, SignalAbortOutput},
		{EC, SignalEraseCharacter},
		{EL, SignalEraseLine},
	}

	for _, tt := range tests {
		t.Run(commandName(tt.command), func(t *testing.T) {
			f := testFSM(nil)
			r := feed(f, []byte{IAC, tt.command})
			if len(r.signals) != 1 || r.signals[0] != tt.want {
				t.Errorf("signals = %v, want [%v]", r.signals, tt.want)
			}
			if f.state != stateNormal {
				t.Errorf("state = %v, want Normal", f.state)
			}
		})
	}
}

func TestFSMNopAndGAAreSilent(t *testing.T) {
	f := testFSM(nil)
	r := feed(f, []byte{IAC, NOP, 0x41, IAC, GA, 0x42})

	if !bytes.Equal(r.forwarded, []byte{0x41, 0x42}) {
		t.Errorf("forwarded %v, want [41 42]", r.forwarded)
	}
	if len(r.signals) != 0 || len(r.actions) != 0 {
		t.Errorf("NOP/GA produced signals %v actions %v", r.signals, r.actions)
	}
}

func TestFSMAYTDefaultReply(t *testing.T) {
	f := testFSM(nil)
	r := feed(f, []byte{IAC, AYT})

	if len(r.actions) != 1 {
		t.Fatalf("actions = %v, want one RawWrite", r.actions)
	}
	raw, ok := r.actions[0].(RawWrite)
	if !ok {
		t.Fatalf("action type %T, want RawWrite", r.actions[0])
	}
	if !bytes.Equal(raw.Bytes, []byte("Telnet system is active.")) {
		t.Errorf("AYT reply = %q", raw.Bytes)
	}
	if len(r.forwarded) != 0 {
		t.Errorf("AYT forwarded data %v", r.forwarded)
	}
}

func TestFSMAYTUserHandler(t *testing.T) {
	f := testFSM(nil)
	f.AYTHandler = func(conn *Conn) ([]byte, error) { return nil, nil }

	r := feed(f, []byte{IAC, AYT})
	if len(r.actions) != 1 {
		t.Fatalf("actions = %v, want one awaitable", r.actions)
	}
	if _, ok := r.actions[0].(SubnegotiationAwaitable); !ok {
		t.Errorf("action type %T, want SubnegotiationAwaitable", r.actions[0])
	}
}

func TestFSMInvalidCommandRecovers(t *testing.T) {
	f := testFSM(nil)
	r := feed(f, []byte{IAC, 0x01, 0x41})

	if !bytes.Equal(r.forwarded, []byte{0x41}) {
		t.Errorf("forwarded %v, want [41]", r.forwarded)
	}
	if f.state != stateNormal {
		t.Errorf("state = %v, want Normal after recovery", f.state)
	}
}

func TestFSMStraySEOutsideSubnegotiation(t *testing.T) {
	f := testFSM(nil)
	r := feed(f, []byte{IAC, SE, 0x41})

	if !bytes.Equal(r.forwarded, []byte{0x41}) {
		t.Errorf("forwarded %v, want [41]", r.forwarded)
	}
	if len(r.actions) != 0 || len(r.signals) != 0 {
		t.Errorf("stray SE produced actions %v signals %v", r.actions, r.signals)
	}
}

func subnegotiationRegistry(max int) *OptionRegistry {
	return NewOptionRegistry(&Option{
		ID:                     OptionID(0x18),
		Name:                   "TERMINAL-TYPE",
		SupportsLocal:          true,
		SupportsRemote:         true,
		SupportsSubnegotiation: true,
		MaxSubnegotiationBytes: max,
	})
}

func TestFSMSubnegotiationWithEscapedIAC(t *testing.T) {
	f := NewFSM(subnegotiationRegistry(0), NewHandlerRegistry(), discardLogger())
	handler := func(conn *Conn, id OptionID, payload []byte) ([]byte, error) { return nil, nil }
	f.Handlers.Register(OptionID(0x18), OptionHandlers{OnSubnegotiate: handler})

	r := feed(f, []byte{0xFF, 0xFA, 0x18, 0x00, 0xFF, 0xFF, 0x41, 0xFF, 0xF0})

	if len(r.forwarded) != 0 {
		t.Errorf("subnegotiation forwarded data %v", r.forwarded)
	}
	if len(r.actions) != 1 {
		t.Fatalf("actions = %v, want one awaitable", r.actions)
	}
	sub, ok := r.actions[0].(SubnegotiationAwaitable)
	if !ok {
		t.Fatalf("action type %T, want SubnegotiationAwaitable", r.actions[0])
	}
	if sub.Option != OptionID(0x18) {
		t.Errorf("option = %d, want 0x18", sub.Option)
	}
	if !bytes.Equal(sub.Payload, []byte{0x00, 0xFF, 0x41}) {
		t.Errorf("payload = %v, want [00 FF 41]", sub.Payload)
	}
	if f.state != stateNormal {
		t.Errorf("state = %v, want Normal", f.state)
	}
}

func TestFSMSubnegotiationUnsupportedOption(t *testing.T) {
	f := testFSM(nil) // default registry: BINARY has no subnegotiation support
	// The refused option byte returns the FSM to Normal, so the bytes after
	// it are ordinary data and the closing IAC SE is a stray SE.
	r := feed(f, []byte{IAC, SB, 0x00, 0x01, 0x02, IAC, SE, 0x41})

	if !bytes.Equal(r.forwarded, []byte{0x01, 0x02, 0x41}) {
		t.Errorf("forwarded %v, want [01 02 41]", r.forwarded)
	}
	if len(r.actions) != 0 {
		t.Errorf("unsupported subnegotiation produced actions %v", r.actions)
	}
}

func TestFSMSubnegotiationNoHandlerDropped(t *testing.T) {
	f := NewFSM(subnegotiationRegistry(0), NewHandlerRegistry(), discardLogger())
	r := feed(f, []byte{IAC, SB, 0x18, 0x01, IAC, SE})

	if len(r.actions) != 0 {
		t.Errorf("handlerless subnegotiation produced actions %v", r.actions)
	}
	if f.state != stateNormal {
		t.Errorf("state = %v, want Normal", f.state)
	}
}

func TestFSMSubnegotiationOverflowDropsPayload(t *testing.T) {
	f := NewFSM(subnegotiationRegistry(4), NewHandlerRegistry(), discardLogger())
	handled := false
	handler := func(conn *Conn, id OptionID, payload []byte) ([]byte, error) {
		handled = true
		return nil, nil
	}
	f.Handlers.Register(OptionID(0x18), OptionHandlers{OnSubnegotiate: handler})

	input := []byte{IAC, SB, 0x18}
	input = append(input, bytes.Repeat([]byte{0x61}, 10)...)
	input = append(input, IAC, SE, 0x42)

	r := feed(f, input)
	if len(r.actions) != 0 {
		t.Errorf("overflowed subnegotiation produced actions %v", r.actions)
	}
	if handled {
		t.Error("handler must not run for an overflowed payload")
	}
	if !bytes.Equal(r.forwarded, []byte{0x42}) {
		t.Errorf("forwarded %v, want [42]", r.forwarded)
	}
}

func TestFSMSubnegotiationStrayCommandDiscarded(t *testing.T) {
	f := NewFSM(subnegotiationRegistry(0), NewHandlerRegistry(), discardLogger())
	handler := func(conn *Conn, id OptionID, payload []byte) ([]byte, error) { return nil, nil }
	f.Handlers.Register(OptionID(0x18), OptionHandlers{OnSubnegotiate: handler})

	// IAC WILL inside an open subnegotiation: the WILL byte is dropped, the
	// payload keeps accumulating, and IAC SE still closes it.
	r := feed(f, []byte{IAC, SB, 0x18, 0x41, IAC, WILL, 0x42, IAC, SE})

	if len(r.actions) != 1 {
		t.Fatalf("actions = %v, want one awaitable", r.actions)
	}
	sub := r.actions[0].(SubnegotiationAwaitable)
	if !bytes.Equal(sub.Payload, []byte{0x41, 0x42}) {
		t.Errorf("payload = %v, want [41 42]", sub.Payload)
	}
}

func TestFSMDeterministic(t *testing.T) {
	input := []byte{0x41, IAC, IAC, '\r', 0x00, IAC, WILL, 0x01, IAC, SB, 0x18, 0x01, IAC, SE, 0x42}

	run := func() ([]byte, int) {
		f := NewFSM(subnegotiationRegistry(0), NewHandlerRegistry(), discardLogger())
		r := feed(f, input)
		return r.forwarded, len(r.actions)
	}

	f1, a1 := run()
	f2, a2 := run()
	if !bytes.Equal(f1, f2) || a1 != a2 {
		t.Errorf("same input diverged: %v/%d vs %v/%d", f1, a1, f2, a2)
	}
}

func TestFSMNeverLeavesDefinedStates(t *testing.T) {
	// Exhaustively sweep every single-byte input against every reachable
	// state and confirm the FSM lands in a defined state each time.
	prefixes := [][]byte{
		{},                   // Normal
		{'\r'},               // HasCR
		{IAC},                // HasIAC
		{IAC, WILL},          // OptionNegotiation
		{IAC, SB},            // SubnegotiationOption
		{IAC, SB, 0x18},      // Subnegotiation
		{IAC, SB, 0x18, IAC}, // SubnegotiationIAC
	}
	for _, prefix := range prefixes {
		for b := 0; b < 256; b++ {
			f := NewFSM(subnegotiationRegistry(0), NewHandlerRegistry(), discardLogger())
			feed(f, prefix)
			f.ProcessByte(byte(b))
			if f.state < stateNormal || f.state > stateSubnegotiationIAC {
				t.Fatalf("%v then %#x: undefined state %v", prefix, b, f.state)
			}
		}
	}
}
