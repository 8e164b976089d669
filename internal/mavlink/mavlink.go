// Package mavlink implements the MAVLink v1.0 wire codec used for
// telemetry output: a 6-byte header, payload, and a CRC-16/MCRF4XX
// trailer computed over the header (excluding the magic byte), the
// payload, and a per-message "extra" byte that is never transmitted.
package mavlink

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MagicV1 is the v1.0 frame start byte.
const MagicV1 = 0xFE

// Message ids this codec supports.
const (
	MsgHeartbeat         = 0
	MsgGlobalPositionInt = 33
)

// crcExtra holds the per-message-type byte folded into the CRC
// calculation but never placed on the wire, per the MAVLink v1.0 message
// definitions for HEARTBEAT and GLOBAL_POSITION_INT.
var crcExtra = map[uint8]uint8{
	MsgHeartbeat:         50,
	MsgGlobalPositionInt: 104,
}

// Frame is one decoded MAVLink v1.0 frame.
type Frame struct {
	Seq     uint8
	SysID   uint8
	CompID  uint8
	MsgID   uint8
	Payload []byte
}

// Encode serializes f to its wire bytes: 6-byte header, payload, 2-byte
// little-endian CRC. The crc-extra byte for f.MsgID is folded into the
// CRC but never appears in the returned bytes.
func Encode(f Frame) ([]byte, error) {
	extra, ok := crcExtra[f.MsgID]
	if !ok {
		return nil, fmt.Errorf("mavlink: unsupported message id %d", f.MsgID)
	}

	buf := make([]byte, 0, 6+len(f.Payload)+2)
	buf = append(buf, MagicV1, uint8(len(f.Payload)), f.Seq, f.SysID, f.CompID, f.MsgID)
	buf = append(buf, f.Payload...)

	crc := crc16MCRF4XX(buf[1:], extra)
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)

	return buf, nil
}

// Decode parses one frame from buf, returning the frame and the number
// of bytes consumed. It fails if the magic byte, declared length, or CRC
// do not match.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < 8 {
		return Frame{}, 0, fmt.Errorf("mavlink: frame too short")
	}
	if buf[0] != MagicV1 {
		return Frame{}, 0, fmt.Errorf("mavlink: bad magic byte 0x%02x", buf[0])
	}

	length := int(buf[1])
	total := 6 + length + 2
	if len(buf) < total {
		return Frame{}, 0, fmt.Errorf("mavlink: short frame, need %d bytes, have %d", total, len(buf))
	}

	msgID := buf[5]
	extra, ok := crcExtra[msgID]
	if !ok {
		return Frame{}, 0, fmt.Errorf("mavlink: unsupported message id %d", msgID)
	}

	wantCRC := crc16MCRF4XX(buf[1:6+length], extra)
	gotCRC := binary.LittleEndian.Uint16(buf[6+length : 6+length+2])
	if wantCRC != gotCRC {
		return Frame{}, 0, fmt.Errorf("mavlink: crc mismatch: want 0x%04x got 0x%04x", wantCRC, gotCRC)
	}

	payload := bytes.Clone(buf[6 : 6+length])
	f := Frame{
		Seq:     buf[2],
		SysID:   buf[3],
		CompID:  buf[4],
		MsgID:   msgID,
		Payload: payload,
	}
	return f, total, nil
}
