// Package matrix implements the dense row-major f32 matrix kernel: a
// transpose-by-flag representation, dense and sparse-aware products, a
// sandwich product, and a Gauss-Jordan inverse over a caller-supplied
// workspace. Every operation here is the one place in the repository that
// reasons about storage order; higher layers treat matrices abstractly.
package matrix

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by kernel operations. Orchestration layers
// test against these with errors.Is instead of inspecting message text.
var (
	ErrShape      = errors.New("matrix: shape mismatch")
	ErrSingular   = errors.New("matrix: singular pivot")
	ErrWorkspace  = errors.New("matrix: workspace too small")
	ErrBounds     = errors.New("matrix: submatrix out of bounds")
	ErrTransposed = errors.New("matrix: destination must not be transposed")
)

// Matrix is a dense row-major f32 matrix. Transposed flips logical
// indexing only: Data is never reordered by Transpose, so len(Data) stays
// Rows*Cols regardless of the flag.
type Matrix struct {
	Data       []float32
	Rows, Cols int
	Transposed bool
}

// New allocates a zeroed rows x cols matrix.
func New(rows, cols int) *Matrix {
	return &Matrix{
		Data: make([]float32, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// NRows returns the logical row count, honoring Transposed.
func (m *Matrix) NRows() int {
	if m.Transposed {
		return m.Cols
	}
	return m.Rows
}

// NCols returns the logical column count, honoring Transposed.
func (m *Matrix) NCols() int {
	if m.Transposed {
		return m.Rows
	}
	return m.Cols
}

// pos maps a logical (row, col) index to a physical offset into Data,
// honoring Transposed.
func (m *Matrix) pos(row, col int) int {
	if m.Transposed {
		return col*m.Cols + row
	}
	return row*m.Cols + col
}

// At returns the logical element (row, col).
func (m *Matrix) At(row, col int) float32 {
	return m.Data[m.pos(row, col)]
}

// Set writes the logical element (row, col).
func (m *Matrix) Set(row, col int, v float32) {
	m.Data[m.pos(row, col)] = v
}

// Zero sets every element of A to zero.
func Zero(a *Matrix) {
	for i := range a.Data {
		a.Data[i] = 0
	}
}

// Diag zeroes A then writes 1 to min(rows, cols) diagonal entries.
func Diag(a *Matrix) {
	Zero(a)
	n := a.Rows
	if a.Cols < n {
		n = a.Cols
	}
	for i := 0; i < n; i++ {
		a.Data[i*a.Cols+i] = 1
	}
}

// Scale multiplies every element of A by s in place.
func Scale(a *Matrix, s float32) {
	for i := range a.Data {
		a.Data[i] *= s
	}
}

// Transpose flips A's Transposed flag. The physical layout is untouched.
func Transpose(a *Matrix) {
	a.Transposed = !a.Transposed
}

// Cmp reports whether A and B are exactly, element-wise equal, honoring
// each matrix's own Transposed flag.
func Cmp(a, b *Matrix) bool {
	if a.NRows() != b.NRows() || a.NCols() != b.NCols() {
		return false
	}
	for r := 0; r < a.NRows(); r++ {
		for c := 0; c < a.NCols(); c++ {
			if a.At(r, c) != b.At(r, c) {
				return false
			}
		}
	}
	return true
}

// Add performs C = A + B, or A += B in place when c is nil.
func Add(a, b, c *Matrix) error {
	if a.NRows() != b.NRows() || a.NCols() != b.NCols() {
		return fmt.Errorf("%w: add %dx%d + %dx%d", ErrShape, a.NRows(), a.NCols(), b.NRows(), b.NCols())
	}
	if c == nil {
		for r := 0; r < a.NRows(); r++ {
			for col := 0; col < a.NCols(); col++ {
				a.Set(r, col, a.At(r, col)+b.At(r, col))
			}
		}
		return nil
	}
	if c.NRows() != a.NRows() || c.NCols() != a.NCols() {
		return fmt.Errorf("%w: add dst %dx%d", ErrShape, c.NRows(), c.NCols())
	}
	for r := 0; r < a.NRows(); r++ {
		for col := 0; col < a.NCols(); col++ {
			c.Set(r, col, a.At(r, col)+b.At(r, col))
		}
	}
	return nil
}

// Sub performs C = A - B, or A -= B in place when c is nil.
func Sub(a, b, c *Matrix) error {
	if a.NRows() != b.NRows() || a.NCols() != b.NCols() {
		return fmt.Errorf("%w: sub %dx%d - %dx%d", ErrShape, a.NRows(), a.NCols(), b.NRows(), b.NCols())
	}
	if c == nil {
		for r := 0; r < a.NRows(); r++ {
			for col := 0; col < a.NCols(); col++ {
				a.Set(r, col, a.At(r, col)-b.At(r, col))
			}
		}
		return nil
	}
	if c.NRows() != a.NRows() || c.NCols() != a.NCols() {
		return fmt.Errorf("%w: sub dst %dx%d", ErrShape, c.NRows(), c.NCols())
	}
	for r := 0; r < a.NRows(); r++ {
		for col := 0; col < a.NCols(); col++ {
			c.Set(r, col, a.At(r, col)-b.At(r, col))
		}
	}
	return nil
}

// WriteSubmatrix copies src into dst at logical position (row, col). It
// fails if src would run out of dst's bounds, and refuses a transposed
// destination (the submatrix write only makes sense against dst's
// physical layout).
func WriteSubmatrix(dst *Matrix, row, col int, src *Matrix) error {
	if dst.Transposed {
		return ErrTransposed
	}
	if row < 0 || col < 0 || row+src.NRows() > dst.NRows() || col+src.NCols() > dst.NCols() {
		return fmt.Errorf("%w: write %dx%d at (%d,%d) into %dx%d", ErrBounds, src.NRows(), src.NCols(), row, col, dst.NRows(), dst.NCols())
	}
	for r := 0; r < src.NRows(); r++ {
		for c := 0; c < src.NCols(); c++ {
			dst.Set(row+r, col+c, src.At(r, c))
		}
	}
	return nil
}

// Prod computes C = A * B via the dense GEMM, branching on both operands'
// Transposed flags so the physical layout is never touched.
func Prod(a, b, c *Matrix) error {
	if a.NCols() != b.NRows() {
		return fmt.Errorf("%w: prod %dx%d * %dx%d", ErrShape, a.NRows(), a.NCols(), b.NRows(), b.NCols())
	}
	if c.NRows() != a.NRows() || c.NCols() != b.NCols() {
		return fmt.Errorf("%w: prod dst %dx%d, want %dx%d", ErrShape, c.NRows(), c.NCols(), a.NRows(), b.NCols())
	}

	inner := a.NCols()
	for r := 0; r < a.NRows(); r++ {
		for col := 0; col < b.NCols(); col++ {
			var sum float32
			for k := 0; k < inner; k++ {
				sum += a.At(r, k) * b.At(k, col)
			}
			c.Set(r, col, sum)
		}
	}
	return nil
}

// SparseProd computes C = A * B like Prod, but iterates the inner loop
// only over A's nonzero entries. Used where A is mostly identity/zero, as
// in the prediction Jacobian multiply.
func SparseProd(a, b, c *Matrix) error {
	if a.NCols() != b.NRows() {
		return fmt.Errorf("%w: sparseProd %dx%d * %dx%d", ErrShape, a.NRows(), a.NCols(), b.NRows(), b.NCols())
	}
	if c.NRows() != a.NRows() || c.NCols() != b.NCols() {
		return fmt.Errorf("%w: sparseProd dst %dx%d, want %dx%d", ErrShape, c.NRows(), c.NCols(), a.NRows(), b.NCols())
	}

	Zero(c)
	inner := a.NCols()
	for r := 0; r < a.NRows(); r++ {
		for k := 0; k < inner; k++ {
			av := a.At(r, k)
			if av == 0 {
				continue
			}
			for col := 0; col < b.NCols(); col++ {
				c.Set(r, col, c.At(r, col)+av*b.At(k, col))
			}
		}
	}
	return nil
}

func sandwichValid(a, b, c *Matrix) error {
	if a.NCols() != b.NRows() || b.NCols() != a.NCols() {
		return fmt.Errorf("%w: sandwich A %dx%d, B %dx%d", ErrShape, a.NRows(), a.NCols(), b.NRows(), b.NCols())
	}
	if c.NRows() != a.NRows() || c.NCols() != a.NRows() {
		return fmt.Errorf("%w: sandwich dst %dx%d, want %dx%d", ErrShape, c.NRows(), c.NCols(), a.NRows(), a.NRows())
	}
	return nil
}

// Sandwich computes C = A * B * A^T using tmp (sized A.Rows x A.Cols) as
// scratch for the first product. A and B are never aliased with C.
func Sandwich(a, b, c, tmp *Matrix) error {
	if err := sandwichValid(a, b, c); err != nil {
		return err
	}
	if err := Prod(a, b, tmp); err != nil {
		return err
	}
	at := &Matrix{Data: a.Data, Rows: a.Rows, Cols: a.Cols, Transposed: !a.Transposed}
	return Prod(tmp, at, c)
}

// SparseSandwich is Sandwich using SparseProd for the first product,
// since A is usually sparse (e.g. the prediction Jacobian).
func SparseSandwich(a, b, c, tmp *Matrix) error {
	if err := sandwichValid(a, b, c); err != nil {
		return err
	}
	if err := SparseProd(a, b, tmp); err != nil {
		return err
	}
	at := &Matrix{Data: a.Data, Rows: a.Rows, Cols: a.Cols, Transposed: !a.Transposed}
	return Prod(tmp, at, c)
}

// Inverse computes B = A^-1 via Gauss-Jordan elimination on a horizontally
// augmented [A | I], carried in the caller-supplied buf of at least
// 2*rows*cols floats. There is no partial pivoting: a zero pivot is a hard
// failure. B is always emitted with Transposed cleared.
func Inverse(a, b *Matrix, buf []float32) error {
	n := a.NRows()
	if a.NCols() != n {
		return fmt.Errorf("%w: inverse requires square matrix, got %dx%d", ErrShape, a.NRows(), a.NCols())
	}
	if b.Rows != n || b.Cols != n {
		return fmt.Errorf("%w: inverse dst %dx%d, want %dx%d", ErrShape, b.Rows, b.Cols, n, n)
	}
	width := 2 * n
	if len(buf) < n*width {
		return fmt.Errorf("%w: need %d, have %d", ErrWorkspace, n*width, len(buf))
	}

	aug := buf[:n*width]
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			aug[r*width+c] = a.At(r, c)
		}
		for c := 0; c < n; c++ {
			if c == r {
				aug[r*width+n+c] = 1
			} else {
				aug[r*width+n+c] = 0
			}
		}
	}

	for p := 0; p < n; p++ {
		pivot := aug[p*width+p]
		if pivot == 0 {
			return fmt.Errorf("%w: zero pivot at row %d", ErrSingular, p)
		}
		inv := 1 / pivot
		for c := 0; c < width; c++ {
			aug[p*width+c] *= inv
		}

		for r := 0; r < n; r++ {
			if r == p {
				continue
			}
			factor := aug[r*width+p]
			if factor == 0 {
				continue
			}
			for c := 0; c < width; c++ {
				aug[r*width+c] -= factor * aug[p*width+c]
			}
		}
	}

	b.Transposed = false
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			b.Set(r, c, aug[r*width+n+c])
		}
	}
	return nil
}
