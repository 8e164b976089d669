package calib

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const sampleFile = `# full calibration
@magiron
s00 1.05
s01 0.02
s02 -0.01
s10 0.02
s11 0.98
s12 0.00
s20 -0.01
s21 0.00
s22 1.01
h0 12.5
h1 -3.25
h2 0.75

@magmot
m0xa 0.1
m0xb 0.2
m0xc 0.05
m2ya -0.3
m3zc 1.5

@motlin
m0a 1.1
m0b -0.05
m2a 0.9

@accorth
o00 1.02
o11 0.97
o22 1.0
h0 0.01
h1 -0.02
h2 0.03
q0 1
q1 0
q2 0
q3 0
ss0 1
ss1 -1
ss2 1
so021 0
`

func TestLoadFullFile(t *testing.T) {
	store := Load(strings.NewReader(sampleFile), quietLogger())

	if store.MagIron.Soft[0][0] != 1.05 || store.MagIron.Soft[0][1] != 0.02 {
		t.Errorf("magiron soft matrix wrong: %+v", store.MagIron.Soft)
	}
	if store.MagIron.Hard != [3]float32{12.5, -3.25, 0.75} {
		t.Errorf("magiron hard offset wrong: %+v", store.MagIron.Hard)
	}

	if store.MagMot.Motors[0][0] != (quadCoeffs{A: 0.1, B: 0.2, C: 0.05}) {
		t.Errorf("magmot motor 0 x wrong: %+v", store.MagMot.Motors[0][0])
	}
	if store.MagMot.Motors[2][1].A != -0.3 {
		t.Errorf("m2ya not routed: %+v", store.MagMot.Motors[2][1])
	}
	if store.MagMot.Motors[3][2].C != 1.5 {
		t.Errorf("m3zc not routed: %+v", store.MagMot.Motors[3][2])
	}

	if store.MotLin.Motors[0].A != 1.1 || store.MotLin.Motors[0].B != -0.05 {
		t.Errorf("motlin motor 0 wrong: %+v", store.MotLin.Motors[0])
	}
	if store.MotLin.Motors[1].A != 1 {
		t.Errorf("unset motlin motor lost its default: %+v", store.MotLin.Motors[1])
	}

	if store.AccOrth.Shape[0][0] != 1.02 || store.AccOrth.Sign[1] != -1 {
		t.Errorf("accorth wrong: %+v", store.AccOrth)
	}
	if store.AccOrth.Swap != [3]int{0, 2, 1} {
		t.Errorf("accorth swap wrong: %+v", store.AccOrth.Swap)
	}
}

// Parsing a file, re-emitting it, and parsing again must yield identical
// calibration structures.
func TestParseEmitParseIdempotent(t *testing.T) {
	first := Load(strings.NewReader(sampleFile), quietLogger())

	var buf bytes.Buffer
	if err := first.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	second := Load(&buf, quietLogger())
	if first != second {
		t.Errorf("round-tripped store differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

// A section truncated mid-line reverts to defaults alone; sections after
// it are still read.
func TestLoadSectionFallback(t *testing.T) {
	const file = `@magiron
s00 1.4
h0
@magmot
m1yb 0.25
`
	store := Load(strings.NewReader(file), quietLogger())

	if store.MagIron != DefaultMagIron() {
		t.Errorf("truncated magiron did not revert to defaults: %+v", store.MagIron)
	}
	if store.MagMot.Motors[1][1].B != 0.25 {
		t.Errorf("magmot after a broken section was not read: %+v", store.MagMot.Motors[1][1])
	}
}

func TestLoadUnknownTagSkipped(t *testing.T) {
	const file = `@gyrocal
bias 0.1
@motlin
m1a 1.2
`
	store := Load(strings.NewReader(file), quietLogger())
	if store.MotLin.Motors[1].A != 1.2 {
		t.Errorf("section after unknown tag lost: %+v", store.MotLin.Motors[1])
	}
}

func TestLoadBadValueFallsBack(t *testing.T) {
	const file = `@motlin
m0a fast
`
	store := Load(strings.NewReader(file), quietLogger())
	if store.MotLin != DefaultMotLin() {
		t.Errorf("unparseable value did not revert section: %+v", store.MotLin)
	}
}

func TestAccOrthPostConditions(t *testing.T) {
	// Non-unit rotation quaternion rejects the block.
	badQuat := `@accorth
q0 0.5
q1 0.5
`
	store := Load(strings.NewReader(badQuat), quietLogger())
	if store.AccOrth != DefaultAccOrth() {
		t.Errorf("non-unit quaternion accepted: %+v", store.AccOrth)
	}

	// Negative shape diagonal rejects the block.
	badDiag := `@accorth
o11 -0.5
`
	store = Load(strings.NewReader(badDiag), quietLogger())
	if store.AccOrth != DefaultAccOrth() {
		t.Errorf("negative shape diagonal accepted: %+v", store.AccOrth)
	}
}

func TestMagIronApply(t *testing.T) {
	mi := DefaultMagIron()
	mi.Hard = [3]float32{1, 2, 3}
	mi.Soft[0][0] = 2

	got := mi.Apply(algebra.Vec3{X: 3, Y: 4, Z: 5})
	want := algebra.Vec3{X: 4, Y: 2, Z: 2}
	if got != want {
		t.Errorf("Apply = %+v, want %+v", got, want)
	}
}

func TestMagMotInterference(t *testing.T) {
	var mm MagMot
	mm.Motors[0][0] = quadCoeffs{A: 1, B: 2, C: 3}
	mm.Motors[1][0] = quadCoeffs{C: 0.5}

	got := mm.Interference([NumMotors]float32{0.5, 0.9, 0, 0})
	want := float32(1*0.25 + 2*0.5 + 3 + 0.5)
	if math32.Abs(got.X-want) > 1e-6 {
		t.Errorf("interference x = %g, want %g", got.X, want)
	}
	if got.Y != 0 || got.Z != 0 {
		t.Errorf("unexpected off-axis interference: %+v", got)
	}
}

func TestAccOrthApply(t *testing.T) {
	ao := DefaultAccOrth()
	ao.Offset = [3]float32{1, 0, 0}
	ao.Swap = [3]int{1, 0, 2}
	ao.Sign = [3]float32{1, -1, 1}

	// (2, 3, 4): offset -> (1, 3, 4); swap -> (3, 1, 4); sign -> (3, -1, 4).
	got := ao.Apply(algebra.Vec3{X: 2, Y: 3, Z: 4})
	want := algebra.Vec3{X: 3, Y: -1, Z: 4}
	if got != want {
		t.Errorf("Apply = %+v, want %+v", got, want)
	}
}
