package telopts

import (
	"testing"

	"github.com/cannibalvox/telnetcore/telnet"
)

func TestUsageMapsToDescriptorSides(t *testing.T) {
	tests := []struct {
		name          string
		usage         Usage
		local, remote bool
	}{
		{"both", AllowLocal | AllowRemote, true, true},
		{"local only", AllowLocal, true, false},
		{"remote only", AllowRemote, false, true},
		{"neither", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := RegisterECHO(tt.usage)
			if opt.SupportsLocal != tt.local || opt.SupportsRemote != tt.remote {
				t.Errorf("local=%v remote=%v, want %v/%v",
					opt.SupportsLocal, opt.SupportsRemote, tt.local, tt.remote)
			}
		})
	}
}

func TestDescriptorIdentities(t *testing.T) {
	tests := []struct {
		opt  *telnet.Option
		id   telnet.OptionID
		name string
	}{
		{RegisterTRANSMITBINARY(AllowLocal), telnet.OptTransmitBinary, "TRANSMIT-BINARY"},
		{RegisterECHO(AllowLocal), telnet.OptEcho, "ECHO"},
		{RegisterSUPPRESSGOAHEAD(AllowLocal), telnet.OptSuppressGoAhead, "SUPPRESS-GO-AHEAD"},
		{RegisterSTATUS(AllowLocal), telnet.OptStatus, "STATUS"},
		{RegisterEXOPL(AllowLocal), telnet.OptExtendedOptionsList, "EXTENDED-OPTIONS-LIST"},
	}

	for _, tt := range tests {
		if tt.opt.ID != tt.id || tt.opt.Name != tt.name {
			t.Errorf("descriptor = %d/%q, want %d/%q", tt.opt.ID, tt.opt.Name, tt.id, tt.name)
		}
	}
}

func TestSTATUSSupportsSubnegotiation(t *testing.T) {
	if !RegisterSTATUS(AllowLocal).SupportsSubnegotiation {
		t.Error("STATUS descriptor must support subnegotiation")
	}
	if RegisterECHO(AllowLocal).SupportsSubnegotiation {
		t.Error("ECHO descriptor must not support subnegotiation")
	}
}

func TestParseReport(t *testing.T) {
	payload := []byte{0x00, telnet.WILL, 0x00, telnet.DO, 0x03}

	entries, err := ParseReport(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0] != (StatusEntry{Option: telnet.OptTransmitBinary, Direction: telnet.Local}) {
		t.Errorf("entry 0 = %v", entries[0])
	}
	if entries[1] != (StatusEntry{Option: telnet.OptSuppressGoAhead, Direction: telnet.Remote}) {
		t.Errorf("entry 1 = %v", entries[1])
	}
}

func TestParseReportRejectsMalformed(t *testing.T) {
	tests := [][]byte{
		nil,                 // empty
		{0x01},              // SEND, not IS
		{0x00, telnet.WILL}, // truncated pair
		{0x00, 0x42, 0x01},  // not WILL/DO
	}

	for _, payload := range tests {
		if _, err := ParseReport(payload); err == nil {
			t.Errorf("ParseReport(%v) accepted malformed input", payload)
		}
	}
}
