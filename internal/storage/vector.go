package storage

import (
	"fmt"

	"github.com/pkg/errors"
)

// vecOf is the view machinery shared by the typed row-vector handles.
type vecOf[T any] struct {
	buf    *buffer[T]
	offset int
	n      int
}

func newVecOf[T any](n int) vecOf[T] {
	if n < 0 {
		panic(fmt.Sprintf("vector: negative length %d", n))
	}
	return vecOf[T]{buf: newBuffer[T](n), n: n}
}

func (v *vecOf[T]) data() []T { return v.buf.data[v.offset : v.offset+v.n] }

func (v *vecOf[T]) view(off, n int) (vecOf[T], error) {
	if off < 0 || n < 0 || off+n > v.n {
		return vecOf[T]{}, errors.Wrapf(ErrOutOfRange, "view [%d, %d) of %d", off, off+n, v.n)
	}
	v.buf.retain()
	return vecOf[T]{buf: v.buf, offset: v.offset + off, n: n}, nil
}

func (v *vecOf[T]) resize(n int) {
	if n < 0 {
		panic(fmt.Sprintf("vector: negative length %d", n))
	}
	if v.buf.isUnique() && v.offset == 0 && n <= cap(v.buf.data) {
		v.buf.data = v.buf.data[:n]
	} else {
		v.buf.release()
		v.buf = newBuffer[T](n)
		v.offset = 0
	}
	v.n = n
}

func (v *vecOf[T]) copyRangeFrom(src *vecOf[T], srcOff, dstOff, n int) error {
	if srcOff < 0 || n < 0 || srcOff+n > src.n {
		return errors.Wrapf(ErrOutOfRange, "source range [%d, %d) of %d", srcOff, srcOff+n, src.n)
	}
	if dstOff < 0 || dstOff+n > v.n {
		return errors.Wrapf(ErrOutOfRange, "destination range [%d, %d) of %d", dstOff, dstOff+n, v.n)
	}
	copy(v.buf.data[v.offset+dstOff:v.offset+dstOff+n],
		src.buf.data[src.offset+srcOff:src.offset+srcOff+n])
	return nil
}

func (v *vecOf[T]) clone() vecOf[T] {
	v.buf.retain()
	return *v
}

// IntVector is a shared handle over an int32 row vector, the shape token
// and class ids travel in.
type IntVector struct {
	vecOf[int32]
}

// NewIntVector allocates a zeroed vector of n elements.
func NewIntVector(n int) *IntVector { return &IntVector{newVecOf[int32](n)} }

// IntVectorFromSlice copies data into a new vector.
func IntVectorFromSlice(data []int32) *IntVector {
	v := NewIntVector(len(data))
	copy(v.buf.data, data)
	return v
}

// Len returns the element count.
func (v *IntVector) Len() int { return v.n }

// Data returns the elements without copying.
func (v *IntVector) Data() []int32 { return v.data() }

// At returns element i.
func (v *IntVector) At(i int) int32 { return v.data()[i] }

// Set stores x at index i.
func (v *IntVector) Set(i int, x int32) { v.data()[i] = x }

// View returns a handle onto [off, off+n), sharing this vector's buffer.
func (v *IntVector) View(off, n int) (*IntVector, error) {
	w, err := v.view(off, n)
	if err != nil {
		return nil, err
	}
	return &IntVector{w}, nil
}

// Resize sets the length to n. Contents after a resize are unspecified.
func (v *IntVector) Resize(n int) { v.resize(n) }

// CopyRangeFrom copies n elements of src starting at srcOff into this
// vector starting at dstOff.
func (v *IntVector) CopyRangeFrom(src *IntVector, srcOff, dstOff, n int) error {
	return v.copyRangeFrom(&src.vecOf, srcOff, dstOff, n)
}

// Clone returns a new handle sharing the buffer.
func (v *IntVector) Clone() *IntVector { return &IntVector{v.clone()} }

// Release drops this handle's reference.
func (v *IntVector) Release() { v.buf.release() }
