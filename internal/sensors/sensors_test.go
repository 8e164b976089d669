package sensors

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/calib"
	"github.com/phoenix-pilot/ekfd/internal/correction"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// encodeBatch builds the packed {count, events[count]} wire form the
// device emits, for feeding DecodeBatch.
func encodeBatch(events []Event) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(events)))

	for _, e := range events {
		raw := make([]byte, wireEventSize)
		switch e.Type {
		case TypeIMU:
			raw[0] = 0
		case TypeBaro:
			raw[0] = 1
		case TypeGPS:
			raw[0] = 2
		}
		binary.LittleEndian.PutUint64(raw[8:16], uint64(e.TimestampUs))

		var payload [9]float32
		switch e.Type {
		case TypeIMU:
			payload = [9]float32{e.Accel.X, e.Accel.Y, e.Accel.Z, e.Gyro.X, e.Gyro.Y, e.Gyro.Z, e.Mag.X, e.Mag.Y, e.Mag.Z}
		case TypeBaro:
			payload[0] = e.Altitude
		case TypeGPS:
			payload = [9]float32{e.Position.X, e.Position.Y, e.Position.Z, e.Velocity.X, e.Velocity.Y, e.Velocity.Z, 0, 0, 0}
		}
		for i, v := range payload {
			binary.LittleEndian.PutUint32(raw[16+i*4:], math.Float32bits(v))
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

func TestDecodeBatchRoundTrip(t *testing.T) {
	in := []Event{
		{
			Type:        TypeIMU,
			TimestampUs: 123456,
			Accel:       algebra.Vec3{X: 0.1, Y: -0.2, Z: 0.98},
			Gyro:        algebra.Vec3{X: 0.01, Y: 0.02, Z: -0.03},
			Mag:         algebra.Vec3{X: 22.5, Y: -3.1, Z: 40},
		},
		{Type: TypeBaro, TimestampUs: 123460, Altitude: 152.25},
		{
			Type:        TypeGPS,
			TimestampUs: 123500,
			Position:    algebra.Vec3{X: 10, Y: 20, Z: 30},
			Velocity:    algebra.Vec3{X: 1, Y: 2, Z: 3},
		},
	}

	batch, err := DecodeBatch(bytes.NewReader(encodeBatch(in)))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(batch.Events) != len(in) {
		t.Fatalf("decoded %d events, want %d", len(batch.Events), len(in))
	}
	for i, e := range batch.Events {
		if e != in[i] {
			t.Errorf("event %d = %+v, want %+v", i, e, in[i])
		}
	}
}

func TestDecodeBatchTruncated(t *testing.T) {
	raw := encodeBatch([]Event{{Type: TypeBaro, Altitude: 100}})
	if _, err := DecodeBatch(bytes.NewReader(raw[:len(raw)-4])); err == nil {
		t.Fatal("DecodeBatch accepted a truncated buffer")
	}
}

// stubDevice hands back a fixed batch per read.
type stubDevice struct {
	batch Batch
	err   error
}

func (d *stubDevice) Open(path string, types Type) error { return nil }
func (d *stubDevice) ReadBatch() (Batch, error)          { return d.batch, d.err }
func (d *stubDevice) Close() error                       { return nil }

func TestReadIMUAppliesCorrections(t *testing.T) {
	dev := &stubDevice{batch: Batch{Events: []Event{{
		Type:  TypeIMU,
		Accel: algebra.Vec3{X: 1, Y: 0, Z: 1},
		Mag:   algebra.Vec3{X: 10, Y: 0, Z: 0},
	}}}}

	// Accel correction subtracts an offset; mag correction scales x.
	ao := calib.DefaultAccOrth()
	ao.Offset[0] = 0.5
	mi := calib.DefaultMagIron()
	mi.Soft[0][0] = 2
	pipe := correction.New(
		correction.Chain{correction.NewMagIronCorrector(mi)},
		correction.Chain{correction.NewAccOrthCorrector(ao)},
		quietLogger(),
	)

	c := New(dev, nil, nil, pipe)
	evt, err := c.ReadIMU()
	if err != nil {
		t.Fatalf("ReadIMU: %v", err)
	}

	if evt.Accel.X != 0.5 {
		t.Errorf("accel correction not applied: %+v", evt.Accel)
	}
	if evt.Mag.X != 20 {
		t.Errorf("mag correction not applied: %+v", evt.Mag)
	}
}

func TestReadMissingType(t *testing.T) {
	// Batch contains only a baro event; an IMU read must fail.
	dev := &stubDevice{batch: Batch{Events: []Event{{Type: TypeBaro, Altitude: 1}}}}
	c := New(dev, nil, nil, nil)

	if _, err := c.ReadIMU(); !errors.Is(err, ErrMissingType) {
		t.Errorf("ReadIMU on baro-only batch = %v, want ErrMissingType", err)
	}

	// Unconfigured sensors fail the same way.
	if _, err := c.ReadBaro(); !errors.Is(err, ErrMissingType) {
		t.Errorf("ReadBaro with no device = %v, want ErrMissingType", err)
	}
	if _, err := c.ReadGPS(); !errors.Is(err, ErrMissingType) {
		t.Errorf("ReadGPS with no device = %v, want ErrMissingType", err)
	}
}

func TestReadBaroAndGPS(t *testing.T) {
	baro := &stubDevice{batch: Batch{Events: []Event{{Type: TypeBaro, Altitude: 99.5}}}}
	gps := &stubDevice{batch: Batch{Events: []Event{{
		Type:     TypeGPS,
		Position: algebra.Vec3{X: 5, Y: 6, Z: 7},
		Velocity: algebra.Vec3{X: -1, Y: 0, Z: 1},
	}}}}

	c := New(&stubDevice{}, baro, gps, nil)

	b, err := c.ReadBaro()
	if err != nil {
		t.Fatalf("ReadBaro: %v", err)
	}
	if b.Altitude != 99.5 {
		t.Errorf("altitude = %g", b.Altitude)
	}

	g, err := c.ReadGPS()
	if err != nil {
		t.Fatalf("ReadGPS: %v", err)
	}
	if g.Position != (algebra.Vec3{X: 5, Y: 6, Z: 7}) {
		t.Errorf("position = %+v", g.Position)
	}
}
