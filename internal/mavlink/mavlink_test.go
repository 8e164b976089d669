package mavlink

import (
	"testing"
)

func TestEncodeFrameShape(t *testing.T) {
	h := Heartbeat{Type: 2, Autopilot: 3, SystemStatus: 4, MavlinkVersion: 3}
	payload := h.Encode()

	buf, err := Encode(Frame{Seq: 7, SysID: 1, CompID: 1, MsgID: MsgHeartbeat, Payload: payload})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(buf) != 6+len(payload)+2 {
		t.Fatalf("frame length = %d, want %d", len(buf), 6+len(payload)+2)
	}
	if buf[0] != MagicV1 {
		t.Errorf("magic = 0x%02x", buf[0])
	}
	if buf[1] != uint8(len(payload)) {
		t.Errorf("len byte = %d, want %d", buf[1], len(payload))
	}
	if buf[2] != 7 || buf[3] != 1 || buf[4] != 1 || buf[5] != MsgHeartbeat {
		t.Errorf("header = % x", buf[:6])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := GlobalPositionInt{
		TimeBootMs:    123456,
		LatE7:         520072900, // 52.00729 deg
		LonE7:         211245670, // 21.124567 deg
		AltMM:         110500,
		RelativeAltMM: 10500,
		VxCMS:         120, VyCMS: -30, VzCMS: 5,
		HdgCDeg: 27000,
	}

	buf, err := Encode(Frame{Seq: 42, SysID: 5, CompID: 1, MsgID: MsgGlobalPositionInt, Payload: g.Encode()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	frame, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(buf) {
		t.Errorf("consumed %d of %d bytes", consumed, len(buf))
	}
	if frame.Seq != 42 || frame.SysID != 5 || frame.MsgID != MsgGlobalPositionInt {
		t.Errorf("header fields lost: %+v", frame)
	}

	got := DecodeGlobalPositionInt(frame.Payload)
	if got != g {
		t.Errorf("payload round trip: %+v != %+v", got, g)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	h := Heartbeat{CustomMode: 99, Type: 2, Autopilot: 3, BaseMode: 81, SystemStatus: 4, MavlinkVersion: 3}

	buf, err := Encode(Frame{MsgID: MsgHeartbeat, Payload: h.Encode()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := DecodeHeartbeat(frame.Payload); got != h {
		t.Errorf("heartbeat round trip: %+v != %+v", got, h)
	}
}

func TestDecodeRejectsCorruptCRC(t *testing.T) {
	buf, err := Encode(Frame{MsgID: MsgHeartbeat, Payload: Heartbeat{}.Encode()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	buf[8] ^= 0xFF
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("Decode accepted a corrupted payload")
	}
}

// The CRC must be message-id specific: the same bytes under a different
// message id fail the check.
func TestCRCExtraIsPerMessage(t *testing.T) {
	payload := make([]byte, 9)
	buf, err := Encode(Frame{MsgID: MsgHeartbeat, Payload: payload})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	buf[5] = MsgGlobalPositionInt
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("Decode accepted a frame whose message id was swapped")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, _, err := Decode([]byte{0xFE, 1}); err == nil {
		t.Error("short buffer accepted")
	}
	if _, _, err := Decode([]byte{0x55, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Error("bad magic accepted")
	}
	if _, err := Encode(Frame{MsgID: 77}); err == nil {
		t.Error("unsupported message id encoded")
	}
}

// The CRC is seeded with 0xFFFF and folds the extra byte last.
func TestCRCAccumulate(t *testing.T) {
	// With no data, the CRC is the 0xFFFF seed with only the extra byte
	// folded in.
	if got := crc16MCRF4XX(nil, 0); got != crcAccumulate(0, 0xFFFF) {
		t.Errorf("empty-data crc = 0x%04x", got)
	}

	// Folding bytes is order sensitive.
	a := crc16MCRF4XX([]byte{1, 2}, 0)
	b := crc16MCRF4XX([]byte{2, 1}, 0)
	if a == b {
		t.Error("crc insensitive to byte order")
	}
}
