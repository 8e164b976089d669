package mavlink

import "encoding/binary"

// Heartbeat is the HEARTBEAT (id 0) message payload.
type Heartbeat struct {
	CustomMode     uint32
	Type           uint8
	Autopilot      uint8
	BaseMode       uint8
	SystemStatus   uint8
	MavlinkVersion uint8
}

// Encode packs h into its 9-byte wire payload.
func (h Heartbeat) Encode() []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint32(buf[0:4], h.CustomMode)
	buf[4] = h.Type
	buf[5] = h.Autopilot
	buf[6] = h.BaseMode
	buf[7] = h.SystemStatus
	buf[8] = h.MavlinkVersion
	return buf
}

// DecodeHeartbeat unpacks a HEARTBEAT payload.
func DecodeHeartbeat(payload []byte) Heartbeat {
	var h Heartbeat
	h.CustomMode = binary.LittleEndian.Uint32(payload[0:4])
	h.Type = payload[4]
	h.Autopilot = payload[5]
	h.BaseMode = payload[6]
	h.SystemStatus = payload[7]
	h.MavlinkVersion = payload[8]
	return h
}

// GlobalPositionInt is the GLOBAL_POSITION_INT (id 33) message payload:
// filtered global position, relative altitude, and ground velocity.
type GlobalPositionInt struct {
	TimeBootMs          uint32
	LatE7               int32  // degrees * 1e7
	LonE7               int32  // degrees * 1e7
	AltMM               int32  // millimeters, AMSL
	RelativeAltMM       int32  // millimeters, above ground
	VxCMS, VyCMS, VzCMS int16  // cm/s
	HdgCDeg             uint16 // centidegrees, 0xFFFF if unknown
}

// Encode packs g into its 28-byte wire payload.
func (g GlobalPositionInt) Encode() []byte {
	buf := make([]byte, 28)
	binary.LittleEndian.PutUint32(buf[0:4], g.TimeBootMs)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(g.LatE7))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(g.LonE7))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(g.AltMM))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(g.RelativeAltMM))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(g.VxCMS))
	binary.LittleEndian.PutUint16(buf[22:24], uint16(g.VyCMS))
	binary.LittleEndian.PutUint16(buf[24:26], uint16(g.VzCMS))
	binary.LittleEndian.PutUint16(buf[26:28], g.HdgCDeg)
	return buf
}

// DecodeGlobalPositionInt unpacks a GLOBAL_POSITION_INT payload.
func DecodeGlobalPositionInt(payload []byte) GlobalPositionInt {
	var g GlobalPositionInt
	g.TimeBootMs = binary.LittleEndian.Uint32(payload[0:4])
	g.LatE7 = int32(binary.LittleEndian.Uint32(payload[4:8]))
	g.LonE7 = int32(binary.LittleEndian.Uint32(payload[8:12]))
	g.AltMM = int32(binary.LittleEndian.Uint32(payload[12:16]))
	g.RelativeAltMM = int32(binary.LittleEndian.Uint32(payload[16:20]))
	g.VxCMS = int16(binary.LittleEndian.Uint16(payload[20:22]))
	g.VyCMS = int16(binary.LittleEndian.Uint16(payload[22:24]))
	g.VzCMS = int16(binary.LittleEndian.Uint16(payload[24:26]))
	g.HdgCDeg = binary.LittleEndian.Uint16(payload[26:28])
	return g
}
