package visa

import (
	"bytes"
	"testing"
)

func TestProtocolEncodeDevDepMsgOut(t *testing.T) {
	proto := NewUSBTMCProtocol()

	got := proto.EncodeDevDepMsgOut([]byte("*IDN?\n"))
	want := []byte{
		0x01, 0x01, 0xFE, 0x00, // MsgID, bTag, ~bTag, reserved
		0x06, 0x00, 0x00, 0x00, // TransferSize
		0x01, 0x00, 0x00, 0x00, // EOM
		'*', 'I', 'D', 'N', '?', '\n', 0x00, 0x00, // payload, padded
	}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeDevDepMsgOut() = % X, want % X", got, want)
	}
	if len(got)%4 != 0 {
		t.Errorf("transfer length %d is not 4 byte aligned", len(got))
	}
}

func TestProtocolEncodeRequestDevDepMsgIn(t *testing.T) {
	proto := NewUSBTMCProtocol()
	proto.EncodeDevDepMsgOut([]byte("VOLT?"))

	got := proto.EncodeRequestDevDepMsgIn(4096)
	want := []byte{0x02, 0x02, 0xFD, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeRequestDevDepMsgIn() = % X, want % X", got, want)
	}
}

func TestProtocolTagWraps(t *testing.T) {
	proto := NewUSBTMCProtocol()
	for i := 0; i < 255; i++ {
		proto.EncodeRequestDevDepMsgIn(64)
	}
	got := proto.EncodeRequestDevDepMsgIn(64)
	if got[1] != 0x01 {
		t.Errorf("bTag after wrap = 0x%02X, want 0x01 (0 is reserved)", got[1])
	}
}

func reply(tag byte, payload string, eom bool) []byte {
	out := []byte{MsgDevDepMsgIn, tag, ^tag, 0, byte(len(payload)), 0, 0, 0, 0, 0, 0, 0}
	if eom {
		out[8] = 0x01
	}
	return append(out, payload...)
}

func TestProtocolDecodeDevDepMsgIn(t *testing.T) {
	tests := []struct {
		name    string
		resp    []byte
		want    string
		eom     bool
		wantErr bool
	}{
		{name: "complete", resp: reply(1, "5.000\n", true), want: "5.000\n", eom: true},
		{name: "partial", resp: reply(1, "Acme,", false), want: "Acme,"},
		{name: "padding ignored", resp: append(reply(1, "1\n", true), 0, 0), want: "1\n", eom: true},
		{name: "too short", resp: []byte{0x02, 0x01}, wantErr: true},
		{name: "wrong message id", resp: append([]byte{0x01}, reply(1, "x", true)[1:]...), wantErr: true},
		{name: "corrupt tag", resp: func() []byte { r := reply(1, "x", true); r[2] = 0; return r }(), wantErr: true},
		{name: "stale tag", resp: reply(7, "x", true), wantErr: true},
		{name: "truncated", resp: reply(1, "12345", true)[:14], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto := NewUSBTMCProtocol()
			proto.EncodeRequestDevDepMsgIn(64) // bTag 1

			payload, eom, err := proto.DecodeDevDepMsgIn(tt.resp)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeDevDepMsgIn() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDevDepMsgIn() unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("payload = %q, want %q", payload, tt.want)
			}
			if eom != tt.eom {
				t.Errorf("eom = %v, want %v", eom, tt.eom)
			}
		})
	}
}
