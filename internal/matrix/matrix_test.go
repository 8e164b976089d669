package matrix

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func randomMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := New(rows, cols)
	for i := range m.Data {
		m.Data[i] = float32(rng.NormFloat64())
	}
	return m
}

// physicalTranspose returns a matrix whose Data is the physically
// transposed copy of m, flagged so its logical shape matches m.
func physicalTranspose(m *Matrix) *Matrix {
	t := New(m.Cols, m.Rows)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			t.Data[c*m.Rows+r] = m.Data[r*m.Cols+c]
		}
	}
	t.Transposed = true
	return t
}

func matNear(a, b *Matrix, tol float32) bool {
	if a.NRows() != b.NRows() || a.NCols() != b.NCols() {
		return false
	}
	for r := 0; r < a.NRows(); r++ {
		for c := 0; c < a.NCols(); c++ {
			if math32.Abs(a.At(r, c)-b.At(r, c)) > tol {
				return false
			}
		}
	}
	return true
}

// Applying the transpose twice must leave the matrix bytewise equal.
func TestTransposeInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := randomMatrix(rng, 5, 7)
	orig := make([]float32, len(a.Data))
	copy(orig, a.Data)

	Transpose(a)
	if a.NRows() != 7 || a.NCols() != 5 {
		t.Fatalf("logical shape after transpose: %dx%d", a.NRows(), a.NCols())
	}
	Transpose(a)

	if a.Transposed {
		t.Error("flag set after double transpose")
	}
	for i := range a.Data {
		if a.Data[i] != orig[i] {
			t.Fatalf("data changed at %d: %g != %g", i, a.Data[i], orig[i])
		}
	}
}

func TestDiag(t *testing.T) {
	m := New(3, 5)
	for i := range m.Data {
		m.Data[i] = 9
	}
	Diag(m)
	for r := 0; r < 3; r++ {
		for c := 0; c < 5; c++ {
			want := float32(0)
			if r == c {
				want = 1
			}
			if m.At(r, c) != want {
				t.Fatalf("diag(%d,%d) = %g, want %g", r, c, m.At(r, c), want)
			}
		}
	}
}

// Dense and sparse products must agree, and both must be insensitive to
// whether an operand is pre-transposed in memory and flagged.
func TestProdVariants(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := randomMatrix(rng, 4, 6)
	b := randomMatrix(rng, 6, 3)

	dense := New(4, 3)
	if err := Prod(a, b, dense); err != nil {
		t.Fatalf("Prod: %v", err)
	}

	sparse := New(4, 3)
	if err := SparseProd(a, b, sparse); err != nil {
		t.Fatalf("SparseProd: %v", err)
	}
	if !matNear(dense, sparse, 1e-5) {
		t.Error("dense and sparse products disagree")
	}

	aT := physicalTranspose(a)
	bT := physicalTranspose(b)
	for _, tc := range []struct {
		name string
		a, b *Matrix
	}{
		{"A flagged", aT, b},
		{"B flagged", a, bT},
		{"both flagged", aT, bT},
	} {
		got := New(4, 3)
		if err := Prod(tc.a, tc.b, got); err != nil {
			t.Fatalf("%s: Prod: %v", tc.name, err)
		}
		if !matNear(dense, got, 1e-5) {
			t.Errorf("%s: product differs from dense baseline", tc.name)
		}

		got2 := New(4, 3)
		if err := SparseProd(tc.a, tc.b, got2); err != nil {
			t.Fatalf("%s: SparseProd: %v", tc.name, err)
		}
		if !matNear(dense, got2, 1e-5) {
			t.Errorf("%s: sparse product differs from dense baseline", tc.name)
		}
	}
}

func TestProdShapeMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(4, 2)
	c := New(2, 2)
	if err := Prod(a, b, c); !errors.Is(err, ErrShape) {
		t.Errorf("Prod shape mismatch = %v, want ErrShape", err)
	}
	if err := SparseProd(a, b, c); !errors.Is(err, ErrShape) {
		t.Errorf("SparseProd shape mismatch = %v, want ErrShape", err)
	}
}

// sandwich(I, B) == B for any square B.
func TestSandwichIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, n := range []int{1, 3, 8} {
		id := New(n, n)
		Diag(id)
		b := randomMatrix(rng, n, n)

		c := New(n, n)
		tmp := New(n, n)
		if err := Sandwich(id, b, c, tmp); err != nil {
			t.Fatalf("n=%d: Sandwich: %v", n, err)
		}
		if !matNear(b, c, 1e-6) {
			t.Errorf("n=%d: sandwich(I, B) != B", n)
		}

		c2 := New(n, n)
		if err := SparseSandwich(id, b, c2, tmp); err != nil {
			t.Fatalf("n=%d: SparseSandwich: %v", n, err)
		}
		if !matNear(b, c2, 1e-6) {
			t.Errorf("n=%d: sparseSandwich(I, B) != B", n)
		}
	}
}

func TestSandwichMatchesProducts(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomMatrix(rng, 3, 5)
	b := randomMatrix(rng, 5, 5)

	c := New(3, 3)
	tmp := New(3, 5)
	if err := Sandwich(a, b, c, tmp); err != nil {
		t.Fatalf("Sandwich: %v", err)
	}

	// Reference: A*B, then times A^T.
	ab := New(3, 5)
	if err := Prod(a, b, ab); err != nil {
		t.Fatalf("Prod: %v", err)
	}
	at := physicalTranspose(a)
	Transpose(at) // logical 5x3
	want := New(3, 3)
	if err := Prod(ab, at, want); err != nil {
		t.Fatalf("Prod: %v", err)
	}
	if !matNear(c, want, 1e-4) {
		t.Error("sandwich differs from explicit products")
	}
}

// inverse(A) must round-trip to the identity for well-conditioned A up
// to n = 16.
func TestInverseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, n := range []int{1, 2, 4, 9, 16} {
		a := randomMatrix(rng, n, n)
		for i := 0; i < n; i++ {
			a.Set(i, i, a.At(i, i)+float32(n))
		}

		inv := New(n, n)
		buf := make([]float32, 2*n*n)
		if err := Inverse(a, inv, buf); err != nil {
			t.Fatalf("n=%d: Inverse: %v", n, err)
		}

		prod := New(n, n)
		if err := Prod(a, inv, prod); err != nil {
			t.Fatalf("n=%d: Prod: %v", n, err)
		}
		id := New(n, n)
		Diag(id)
		if !matNear(prod, id, 1e-4) {
			t.Errorf("n=%d: A * inverse(A) is not the identity", n)
		}
	}
}

func TestInverseErrors(t *testing.T) {
	n := 3
	a := New(n, n)
	Diag(a)
	inv := New(n, n)

	if err := Inverse(a, inv, make([]float32, 2*n*n-1)); !errors.Is(err, ErrWorkspace) {
		t.Errorf("short workspace = %v, want ErrWorkspace", err)
	}

	rect := New(2, 3)
	if err := Inverse(rect, inv, make([]float32, 2*n*n)); !errors.Is(err, ErrShape) {
		t.Errorf("rectangular input = %v, want ErrShape", err)
	}

	singular := New(n, n)
	if err := Inverse(singular, inv, make([]float32, 2*n*n)); !errors.Is(err, ErrSingular) {
		t.Errorf("singular input = %v, want ErrSingular", err)
	}
}

// The inverse result always comes out with the flag cleared.
func TestInverseClearsFlag(t *testing.T) {
	a := New(2, 2)
	a.Data = []float32{4, 0, 0, 2}
	inv := New(2, 2)
	inv.Transposed = true
	if err := Inverse(a, inv, make([]float32, 8)); err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	if inv.Transposed {
		t.Error("inverse result left Transposed set")
	}
	if inv.At(0, 0) != 0.25 || inv.At(1, 1) != 0.5 {
		t.Errorf("inverse values wrong: %+v", inv.Data)
	}
}

func TestWriteSubmatrix(t *testing.T) {
	dst := New(4, 4)
	src := New(2, 2)
	src.Data = []float32{1, 2, 3, 4}

	if err := WriteSubmatrix(dst, 1, 2, src); err != nil {
		t.Fatalf("WriteSubmatrix: %v", err)
	}
	if dst.At(1, 2) != 1 || dst.At(1, 3) != 2 || dst.At(2, 2) != 3 || dst.At(2, 3) != 4 {
		t.Error("submatrix landed in the wrong place")
	}

	if err := WriteSubmatrix(dst, 3, 3, src); !errors.Is(err, ErrBounds) {
		t.Errorf("out of bounds write = %v, want ErrBounds", err)
	}

	dst.Transposed = true
	if err := WriteSubmatrix(dst, 0, 0, src); !errors.Is(err, ErrTransposed) {
		t.Errorf("transposed destination = %v, want ErrTransposed", err)
	}
}

func TestAddSub(t *testing.T) {
	a := New(2, 2)
	a.Data = []float32{1, 2, 3, 4}
	b := New(2, 2)
	b.Data = []float32{10, 20, 30, 40}

	c := New(2, 2)
	if err := Add(a, b, c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.Data[0] != 11 || c.Data[3] != 44 {
		t.Errorf("Add result: %+v", c.Data)
	}

	if err := Sub(b, a, nil); err != nil {
		t.Fatalf("Sub in place: %v", err)
	}
	if b.Data[0] != 9 || b.Data[3] != 36 {
		t.Errorf("Sub in place result: %+v", b.Data)
	}

	bad := New(3, 2)
	if err := Add(a, bad, nil); !errors.Is(err, ErrShape) {
		t.Errorf("Add shape mismatch = %v, want ErrShape", err)
	}
}

func TestCmpRespectsFlag(t *testing.T) {
	a := New(2, 3)
	for i := range a.Data {
		a.Data[i] = float32(i)
	}
	b := physicalTranspose(a)

	if !Cmp(a, b) {
		t.Error("Cmp does not treat a flagged physical transpose as equal")
	}

	b.Data[0] += 1
	if Cmp(a, b) {
		t.Error("Cmp missed a changed element")
	}
}
