package storage

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/strand-ml/strand/internal/device"
	"gonum.org/v1/gonum/blas/blas32"
)

// Matrix is a dense row-major float32 matrix handle. Views and clones
// share the underlying buffer. The transposed flag is carried as an
// interpretation hint for consumers; accessors address physical layout.
type Matrix struct {
	buf    *buffer[float32]
	offset int // element offset into buf
	rows   int
	cols   int
	trans  bool
	dev    device.ID
}

// NewMatrix allocates a zeroed rows×cols host matrix.
func NewMatrix(rows, cols int) *Matrix {
	return NewMatrixOn(rows, cols, device.Host)
}

// NewMatrixOn allocates a zeroed rows×cols matrix tagged with dev. The
// elements live in process memory; dev records affinity for routing.
func NewMatrixOn(rows, cols int, dev device.ID) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative dimensions %dx%d", rows, cols))
	}
	return &Matrix{
		buf:  newBuffer[float32](rows * cols),
		rows: rows,
		cols: cols,
		dev:  dev,
	}
}

// MatrixFromSlice copies data into a new rows×cols host matrix.
func MatrixFromSlice(data []float32, rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, errors.Wrapf(ErrShape, "%d elements for %dx%d matrix", len(data), rows, cols)
	}
	m := NewMatrix(rows, cols)
	copy(m.buf.data, data)
	return m, nil
}

// Rows returns the row count.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the column count.
func (m *Matrix) Cols() int { return m.cols }

// Transposed reports whether consumers should read the matrix transposed.
func (m *Matrix) Transposed() bool { return m.trans }

// DeviceID returns the matrix's device affinity.
func (m *Matrix) DeviceID() device.ID { return m.dev }

// Data returns the rows*cols elements backing this handle, row-major,
// without copying.
func (m *Matrix) Data() []float32 {
	return m.buf.data[m.offset : m.offset+m.rows*m.cols]
}

// Row returns row i without copying.
func (m *Matrix) Row(i int) []float32 {
	start := m.offset + i*m.cols
	return m.buf.data[start : start+m.cols]
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float32 {
	return m.buf.data[m.offset+i*m.cols+j]
}

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float32) {
	m.buf.data[m.offset+i*m.cols+j] = v
}

// View returns a handle onto rows [row, row+rows), sharing this matrix's
// buffer. Writes through the view are visible to every other handle.
func (m *Matrix) View(row, rows int) (*Matrix, error) {
	if row < 0 || rows < 0 || row+rows > m.rows {
		return nil, errors.Wrapf(ErrOutOfRange, "view rows [%d, %d) of %d", row, row+rows, m.rows)
	}
	m.buf.retain()
	v := *m
	v.offset = m.offset + row*m.cols
	v.rows = rows
	return &v, nil
}

// ViewRange reinterprets rows*cols elements starting offset elements into
// this matrix's data as a standalone rows×cols matrix, transposed when
// trans is set. Layer inputs are carved out of wider batches this way.
func (m *Matrix) ViewRange(offset, rows, cols int, trans bool) (*Matrix, error) {
	if offset < 0 || rows < 0 || cols < 0 || offset+rows*cols > m.rows*m.cols {
		return nil, errors.Wrapf(ErrOutOfRange,
			"%dx%d range at element %d exceeds %d elements", rows, cols, offset, m.rows*m.cols)
	}
	m.buf.retain()
	return &Matrix{
		buf:    m.buf,
		offset: m.offset + offset,
		rows:   rows,
		cols:   cols,
		trans:  trans,
		dev:    m.dev,
	}, nil
}

// Resize reshapes the handle to rows×cols. A uniquely-owned, zero-offset
// buffer with enough capacity is reused; otherwise a fresh buffer replaces
// it so sibling views keep the old elements. Contents after a resize are
// unspecified.
func (m *Matrix) Resize(rows, cols int) {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative dimensions %dx%d", rows, cols))
	}
	need := rows * cols
	if m.buf.isUnique() && m.offset == 0 && need <= cap(m.buf.data) {
		m.buf.data = m.buf.data[:need]
	} else {
		m.buf.release()
		m.buf = newBuffer[float32](need)
		m.offset = 0
	}
	m.rows, m.cols, m.trans = rows, cols, false
}

// CopyFrom resizes the matrix to src's shape and copies src's elements.
// stream orders the transfer; the host path is synchronous.
func (m *Matrix) CopyFrom(src *Matrix, stream device.Stream) error {
	_ = stream
	m.Resize(src.rows, src.cols)
	copy(m.Data(), src.Data())
	m.trans = src.trans
	return nil
}

// CopyRowsFrom copies n rows of src starting at srcRow into this matrix
// starting at dstRow. Column widths must match.
func (m *Matrix) CopyRowsFrom(src *Matrix, srcRow, dstRow, n int, stream device.Stream) error {
	_ = stream
	if m.cols != src.cols {
		return errors.Wrapf(ErrShape, "copy rows of width %d into width %d", src.cols, m.cols)
	}
	if srcRow < 0 || n < 0 || srcRow+n > src.rows {
		return errors.Wrapf(ErrOutOfRange, "source rows [%d, %d) of %d", srcRow, srcRow+n, src.rows)
	}
	if dstRow < 0 || dstRow+n > m.rows {
		return errors.Wrapf(ErrOutOfRange, "destination rows [%d, %d) of %d", dstRow, dstRow+n, m.rows)
	}
	copy(m.buf.data[m.offset+dstRow*m.cols:m.offset+(dstRow+n)*m.cols],
		src.buf.data[src.offset+srcRow*src.cols:src.offset+(srcRow+n)*src.cols])
	return nil
}

// AddFrom accumulates src into the matrix element-wise. Shapes must match;
// src is left untouched. Gradient fan-in sums contributions this way.
func (m *Matrix) AddFrom(src *Matrix) error {
	if m.rows != src.rows || m.cols != src.cols {
		return errors.Wrapf(ErrShape, "add %dx%d into %dx%d", src.rows, src.cols, m.rows, m.cols)
	}
	n := m.rows * m.cols
	if n == 0 {
		return nil
	}
	blas32.Axpy(1,
		blas32.Vector{N: n, Inc: 1, Data: src.Data()},
		blas32.Vector{N: n, Inc: 1, Data: m.Data()})
	return nil
}

// Scale multiplies every element by alpha.
func (m *Matrix) Scale(alpha float32) {
	n := m.rows * m.cols
	if n == 0 {
		return
	}
	blas32.Scal(alpha, blas32.Vector{N: n, Inc: 1, Data: m.Data()})
}

// Sum returns the sum of all elements.
func (m *Matrix) Sum() float32 {
	var s float32
	for _, v := range m.Data() {
		s += v
	}
	return s
}

// Clone returns a new handle sharing this matrix's buffer.
func (m *Matrix) Clone() *Matrix {
	m.buf.retain()
	c := *m
	return &c
}

// Release drops this handle's reference; the buffer is freed with the
// last one.
func (m *Matrix) Release() { m.buf.release() }

// IsUnique reports whether this handle holds the only reference to its
// buffer.
func (m *Matrix) IsUnique() bool { return m.buf.isUnique() }
