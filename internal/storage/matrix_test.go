package storage

import (
	"errors"
	"testing"

	"github.com/strand-ml/strand/internal/device"
)

func TestMatrixViewSharesBuffer(t *testing.T) {
	m := NewMatrix(4, 3)
	m.Set(1, 0, 7)

	v, err := m.View(1, 2)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Rows() != 2 || v.Cols() != 3 {
		t.Fatalf("view shape = %dx%d, want 2x3", v.Rows(), v.Cols())
	}
	if v.At(0, 0) != 7 {
		t.Errorf("view row 0 should be source row 1, got %v", v.At(0, 0))
	}

	// Writes through the view land in the shared buffer.
	v.Set(1, 2, 9)
	if m.At(2, 2) != 9 {
		t.Errorf("write through view not visible in source, got %v", m.At(2, 2))
	}
}

func TestMatrixViewBounds(t *testing.T) {
	m := NewMatrix(4, 3)
	if _, err := m.View(3, 2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("View past end = %v, want ErrOutOfRange", err)
	}
	if _, err := m.ViewRange(6, 3, 3, false); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ViewRange past end = %v, want ErrOutOfRange", err)
	}
}

func TestMatrixViewRangeReinterprets(t *testing.T) {
	m, err := MatrixFromSlice([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 4, 2)
	if err != nil {
		t.Fatalf("MatrixFromSlice: %v", err)
	}

	// Elements 2..8 reinterpreted as a 3x2 block starting at row 1.
	v, err := m.ViewRange(2, 3, 2, true)
	if err != nil {
		t.Fatalf("ViewRange: %v", err)
	}
	if v.At(0, 0) != 2 || v.At(2, 1) != 7 {
		t.Errorf("reinterpreted view reads wrong elements: %v, %v", v.At(0, 0), v.At(2, 1))
	}
	if !v.Transposed() {
		t.Error("transposed hint dropped")
	}
}

func TestMatrixResizeUniqueReusesBuffer(t *testing.T) {
	m := NewMatrix(4, 3)
	p := &m.Data()[0]

	m.Resize(2, 3)
	if m.Rows() != 2 || m.Cols() != 3 {
		t.Fatalf("shape after resize = %dx%d", m.Rows(), m.Cols())
	}
	if &m.Data()[0] != p {
		t.Error("unique resize within capacity should keep the buffer")
	}
}

func TestMatrixResizeSharedReallocates(t *testing.T) {
	m := NewMatrix(4, 3)
	m.Set(0, 0, 5)
	v, _ := m.View(0, 4)

	m.Resize(4, 3)
	m.Set(0, 0, 11)

	if v.At(0, 0) != 5 {
		t.Errorf("sibling view disturbed by shared resize: %v", v.At(0, 0))
	}
	if m.At(0, 0) != 11 {
		t.Errorf("resized matrix lost its write: %v", m.At(0, 0))
	}
}

func TestMatrixCopyRowsFrom(t *testing.T) {
	src, _ := MatrixFromSlice([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	dst := NewMatrix(4, 2)

	if err := dst.CopyRowsFrom(src, 1, 2, 2, device.DefaultStream); err != nil {
		t.Fatalf("CopyRowsFrom: %v", err)
	}
	if dst.At(2, 0) != 3 || dst.At(3, 1) != 6 {
		t.Errorf("copied rows wrong: %v %v", dst.At(2, 0), dst.At(3, 1))
	}

	wide := NewMatrix(4, 3)
	if err := wide.CopyRowsFrom(src, 0, 0, 1, device.DefaultStream); !errors.Is(err, ErrShape) {
		t.Errorf("width mismatch = %v, want ErrShape", err)
	}
	if err := dst.CopyRowsFrom(src, 2, 0, 2, device.DefaultStream); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("source overrun = %v, want ErrOutOfRange", err)
	}
}

func TestMatrixAddFromAccumulates(t *testing.T) {
	dst, _ := MatrixFromSlice([]float32{1, 1, 1, 1}, 2, 2)
	src, _ := MatrixFromSlice([]float32{1, 2, 3, 4}, 2, 2)

	if err := dst.AddFrom(src); err != nil {
		t.Fatalf("AddFrom: %v", err)
	}
	want := []float32{2, 3, 4, 5}
	for i, v := range dst.Data() {
		if v != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, v, want[i])
		}
	}
	// Source must be untouched.
	if src.At(0, 0) != 1 || src.At(1, 1) != 4 {
		t.Error("AddFrom mutated its source")
	}

	other := NewMatrix(3, 2)
	if err := dst.AddFrom(other); !errors.Is(err, ErrShape) {
		t.Errorf("shape mismatch = %v, want ErrShape", err)
	}
}

func TestMatrixScaleAndSum(t *testing.T) {
	m, _ := MatrixFromSlice([]float32{1, 2, 3, 4}, 2, 2)
	m.Scale(0.5)
	if got := m.Sum(); got != 5 {
		t.Errorf("Sum after Scale = %v, want 5", got)
	}
}

func TestMatrixCloneSharesAndReleases(t *testing.T) {
	m := NewMatrix(2, 2)
	if !m.IsUnique() {
		t.Fatal("fresh matrix should be unique")
	}

	c := m.Clone()
	if m.IsUnique() {
		t.Error("clone should share the buffer")
	}
	c.Set(0, 0, 3)
	if m.At(0, 0) != 3 {
		t.Error("clone write not visible through source handle")
	}

	c.Release()
	if !m.IsUnique() {
		t.Error("release should return uniqueness")
	}
}

func TestMatrixFromSliceShapeCheck(t *testing.T) {
	if _, err := MatrixFromSlice([]float32{1, 2, 3}, 2, 2); !errors.Is(err, ErrShape) {
		t.Errorf("bad element count = %v, want ErrShape", err)
	}
}
