package mavlink

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Transport owns the serial link to the telemetry radio and emits
// heartbeat and global-position-int frames at a fixed rate, matching the
// teacher's heartbeat/telemetry sub-loop idiom.
type Transport struct {
	port serial.Port
	seq  uint8

	sysID, compID uint8

	log *logrus.Logger
}

// Open opens the named serial port at baud for MAVLink v1.0 telemetry
// output.
func Open(path string, baud int, sysID, compID uint8, log *logrus.Logger) (*Transport, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("mavlink: open %s: %w", path, err)
	}
	return &Transport{port: port, sysID: sysID, compID: compID, log: log}, nil
}

// Close closes the underlying serial port.
func (t *Transport) Close() error {
	return t.port.Close()
}

func (t *Transport) send(msgID uint8, payload []byte) error {
	frame := Frame{Seq: t.seq, SysID: t.sysID, CompID: t.compID, MsgID: msgID, Payload: payload}
	t.seq++

	buf, err := Encode(frame)
	if err != nil {
		return err
	}
	_, err = t.port.Write(buf)
	return err
}

// SendHeartbeat emits a HEARTBEAT frame.
func (t *Transport) SendHeartbeat(h Heartbeat) error {
	return t.send(MsgHeartbeat, h.Encode())
}

// SendGlobalPosition emits a GLOBAL_POSITION_INT frame.
func (t *Transport) SendGlobalPosition(g GlobalPositionInt) error {
	return t.send(MsgGlobalPositionInt, g.Encode())
}

// StateSource supplies the values a telemetry tick needs to build the
// next HEARTBEAT and GLOBAL_POSITION_INT frames.
type StateSource interface {
	// Position returns latitude (deg), longitude (deg), altitude (m AMSL),
	// and relative altitude (m).
	Position() (lat, lon, alt, relAlt float64)
	// Velocity returns ground velocity in m/s, body/world per caller
	// convention.
	Velocity() (vx, vy, vz float32)
	// HeadingDeg returns current heading in degrees, or a negative value
	// if unknown.
	HeadingDeg() float32
	// BootTime returns the time the estimator process started, used to
	// compute time_boot_ms.
	BootTime() time.Time
}

// Run emits a heartbeat and a global-position-int frame every period,
// reading the current state from src, until ctx is canceled.
func (t *Transport) Run(ctx context.Context, src StateSource, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.SendHeartbeat(Heartbeat{Type: 2, Autopilot: 3, BaseMode: 0, SystemStatus: 4, MavlinkVersion: 3}); err != nil {
				t.log.WithError(err).Warn("mavlink: heartbeat send failed")
			}

			lat, lon, alt, relAlt := src.Position()
			vx, vy, vz := src.Velocity()
			hdg := src.HeadingDeg()
			hdgCDeg := uint16(0xFFFF)
			if hdg >= 0 {
				hdgCDeg = uint16(hdg * 100)
			}

			g := GlobalPositionInt{
				TimeBootMs:    uint32(time.Since(src.BootTime()).Milliseconds()),
				LatE7:         int32(lat * 1e7),
				LonE7:         int32(lon * 1e7),
				AltMM:         int32(alt * 1000),
				RelativeAltMM: int32(relAlt * 1000),
				VxCMS:         int16(vx * 100),
				VyCMS:         int16(vy * 100),
				VzCMS:         int16(vz * 100),
				HdgCDeg:       hdgCDeg,
			}
			if err := t.SendGlobalPosition(g); err != nil {
				t.log.WithError(err).Warn("mavlink: global position send failed")
			}
		}
	}
}
