// Package sensors implements the sensor client: it opens up to three
// descriptors into the sensor-manager device (IMU, barometer, GPS),
// decodes typed event batches, and runs each sample through the
// correction pipeline before handing it to the caller.
package sensors

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/correction"
)

// Type is a bitmask of sensor groups, sent to the device in the open
// control message to declare which types the client wants.
type Type uint8

const (
	TypeIMU Type = 1 << iota
	TypeBaro
	TypeGPS
)

// Device is the sensor-manager device: an external collaborator, opened
// by path with a control message declaring the desired sensor types.
// ReadBatch blocks until a batch of events matching the requested types
// is available.
type Device interface {
	Open(path string, types Type) error
	ReadBatch() (Batch, error)
	Close() error
}

// Batch is one decoded {count, events[count]} read from the device.
type Batch struct {
	Events []Event
}

// Event is a single typed, timestamped sensor sample.
type Event struct {
	Type        Type
	TimestampUs int64
	Accel       algebra.Vec3 // valid when Type == TypeIMU
	Gyro        algebra.Vec3 // valid when Type == TypeIMU
	Mag         algebra.Vec3 // valid when Type == TypeIMU
	Altitude    float32      // valid when Type == TypeBaro
	Position    algebra.Vec3 // valid when Type == TypeGPS
	Velocity    algebra.Vec3 // valid when Type == TypeGPS
}

// ErrMissingType is returned when a read's batch does not contain an
// event of the requested type.
var ErrMissingType = fmt.Errorf("sensors: requested type missing from batch")

// Client opens up to three device descriptors (IMU, baro, GPS) and
// applies the correction pipeline to magnetometer and accelerometer
// samples before returning them.
type Client struct {
	imu, baro, gps Device
	corrections    *correction.Pipeline
}

// New builds a client over already-constructed device handles. A nil
// handle means that sensor group is not in use; reads for it return
// ErrMissingType.
func New(imu, baro, gps Device, corrections *correction.Pipeline) *Client {
	return &Client{imu: imu, baro: baro, gps: gps, corrections: corrections}
}

// Open opens whichever of imu/baro/gps device paths are non-empty,
// declaring the matching type bitmask to each.
func (c *Client) Open(imuPath, baroPath, gpsPath string) error {
	if imuPath != "" && c.imu != nil {
		if err := c.imu.Open(imuPath, TypeIMU); err != nil {
			return fmt.Errorf("sensors: open imu: %w", err)
		}
	}
	if baroPath != "" && c.baro != nil {
		if err := c.baro.Open(baroPath, TypeBaro); err != nil {
			return fmt.Errorf("sensors: open baro: %w", err)
		}
	}
	if gpsPath != "" && c.gps != nil {
		if err := c.gps.Open(gpsPath, TypeGPS); err != nil {
			return fmt.Errorf("sensors: open gps: %w", err)
		}
	}
	return nil
}

// Close closes every opened device.
func (c *Client) Close() error {
	var first error
	for _, d := range []Device{c.imu, c.baro, c.gps} {
		if d == nil {
			continue
		}
		if err := d.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func firstOfType(b Batch, t Type) (Event, bool) {
	for _, e := range b.Events {
		if e.Type == t {
			return e, true
		}
	}
	return Event{}, false
}

// ReadIMU reads one IMU batch and returns the corrected accel/gyro/mag
// event. It fails if the batch does not contain an IMU event.
func (c *Client) ReadIMU() (Event, error) {
	if c.imu == nil {
		return Event{}, ErrMissingType
	}
	b, err := c.imu.ReadBatch()
	if err != nil {
		return Event{}, fmt.Errorf("sensors: read imu: %w", err)
	}
	e, ok := firstOfType(b, TypeIMU)
	if !ok {
		return Event{}, ErrMissingType
	}

	if c.corrections != nil {
		c.corrections.ApplyAccel(&e.Accel)
		c.corrections.ApplyMag(&e.Mag)
	}
	return e, nil
}

// ReadBaro reads one barometer batch.
func (c *Client) ReadBaro() (Event, error) {
	if c.baro == nil {
		return Event{}, ErrMissingType
	}
	b, err := c.baro.ReadBatch()
	if err != nil {
		return Event{}, fmt.Errorf("sensors: read baro: %w", err)
	}
	e, ok := firstOfType(b, TypeBaro)
	if !ok {
		return Event{}, ErrMissingType
	}
	return e, nil
}

// ReadGPS reads one GPS batch.
func (c *Client) ReadGPS() (Event, error) {
	if c.gps == nil {
		return Event{}, ErrMissingType
	}
	b, err := c.gps.ReadBatch()
	if err != nil {
		return Event{}, fmt.Errorf("sensors: read gps: %w", err)
	}
	e, ok := firstOfType(b, TypeGPS)
	if !ok {
		return Event{}, ErrMissingType
	}
	return e, nil
}

// wireEvent is the packed on-the-wire layout of a single sensor event, as
// emitted by the sensor-manager device: a type tag, a microsecond
// timestamp, and nine little-endian float32 payload slots (accel/gyro/mag
// for IMU; slot 0 for altitude; slots 0-5 for GPS position+velocity).
type wireEvent struct {
	Type        uint8
	_           [7]byte // alignment padding, matches the device's C struct layout
	TimestampUs int64
	Payload     [9]float32
}

const wireEventSize = 1 + 7 + 8 + 9*4

// maxBatchEvents bounds the event count a single batch may declare; a
// larger count means a corrupt read, not a bigger batch.
const maxBatchEvents = 64

// DecodeBatch decodes a raw {count, events[count]} buffer produced by the
// sensor-manager device into a Batch.
func DecodeBatch(r io.Reader) (Batch, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return Batch{}, fmt.Errorf("sensors: decode count: %w", err)
	}
	if count > maxBatchEvents {
		return Batch{}, fmt.Errorf("sensors: implausible event count %d", count)
	}

	events := make([]Event, 0, count)
	buf := make([]byte, wireEventSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Batch{}, fmt.Errorf("sensors: decode event %d: %w", i, err)
		}
		events = append(events, decodeEvent(buf))
	}
	return Batch{Events: events}, nil
}

func decodeEvent(buf []byte) Event {
	t := Type(1 << buf[0])
	ts := int64(binary.LittleEndian.Uint64(buf[8:16]))

	readF32 := func(off int) float32 {
		bits := binary.LittleEndian.Uint32(buf[16+off*4:])
		return math.Float32frombits(bits)
	}

	e := Event{Type: t, TimestampUs: ts}
	switch t {
	case TypeIMU:
		e.Accel = algebra.Vec3{X: readF32(0), Y: readF32(1), Z: readF32(2)}
		e.Gyro = algebra.Vec3{X: readF32(3), Y: readF32(4), Z: readF32(5)}
		e.Mag = algebra.Vec3{X: readF32(6), Y: readF32(7), Z: readF32(8)}
	case TypeBaro:
		e.Altitude = readF32(0)
	case TypeGPS:
		e.Position = algebra.Vec3{X: readF32(0), Y: readF32(1), Z: readF32(2)}
		e.Velocity = algebra.Vec3{X: readF32(3), Y: readF32(4), Z: readF32(5)}
	}
	return e
}
