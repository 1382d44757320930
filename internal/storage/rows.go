package storage

// StringVector is a shared handle over per-row strings, for edges that
// carry raw text alongside or instead of numeric data.
type StringVector struct {
	vecOf[string]
}

// NewStringVector allocates a vector of n empty strings.
func NewStringVector(n int) *StringVector { return &StringVector{newVecOf[string](n)} }

// StringVectorFromSlice copies data into a new vector.
func StringVectorFromSlice(data []string) *StringVector {
	v := NewStringVector(len(data))
	copy(v.buf.data, data)
	return v
}

// Len returns the row count.
func (v *StringVector) Len() int { return v.n }

// Data returns the rows without copying.
func (v *StringVector) Data() []string { return v.data() }

// At returns row i.
func (v *StringVector) At(i int) string { return v.data()[i] }

// Set stores s at row i.
func (v *StringVector) Set(i int, s string) { v.data()[i] = s }

// View returns a handle onto rows [off, off+n), sharing the buffer.
func (v *StringVector) View(off, n int) (*StringVector, error) {
	w, err := v.view(off, n)
	if err != nil {
		return nil, err
	}
	return &StringVector{w}, nil
}

// Resize sets the row count to n. Contents after a resize are unspecified.
func (v *StringVector) Resize(n int) { v.resize(n) }

// CopyRangeFrom copies n rows of src starting at srcOff into this vector
// starting at dstOff.
func (v *StringVector) CopyRangeFrom(src *StringVector, srcOff, dstOff, n int) error {
	return v.copyRangeFrom(&src.vecOf, srcOff, dstOff, n)
}

// Clone returns a new handle sharing the buffer.
func (v *StringVector) Clone() *StringVector { return &StringVector{v.clone()} }

// Release drops this handle's reference.
func (v *StringVector) Release() { v.buf.release() }

// RowPayloads is a shared handle over opaque per-row values attached by
// user code. The core never inspects the elements.
type RowPayloads struct {
	vecOf[any]
}

// NewRowPayloads allocates a vector of n nil payloads.
func NewRowPayloads(n int) *RowPayloads { return &RowPayloads{newVecOf[any](n)} }

// Len returns the row count.
func (v *RowPayloads) Len() int { return v.n }

// At returns the payload at row i.
func (v *RowPayloads) At(i int) any { return v.data()[i] }

// Set stores p at row i.
func (v *RowPayloads) Set(i int, p any) { v.data()[i] = p }

// View returns a handle onto rows [off, off+n), sharing the buffer.
func (v *RowPayloads) View(off, n int) (*RowPayloads, error) {
	w, err := v.view(off, n)
	if err != nil {
		return nil, err
	}
	return &RowPayloads{w}, nil
}

// Resize sets the row count to n. Contents after a resize are unspecified.
func (v *RowPayloads) Resize(n int) { v.resize(n) }

// CopyRangeFrom copies n rows of src starting at srcOff into this vector
// starting at dstOff.
func (v *RowPayloads) CopyRangeFrom(src *RowPayloads, srcOff, dstOff, n int) error {
	return v.copyRangeFrom(&src.vecOf, srcOff, dstOff, n)
}

// Clone returns a new handle sharing the buffer.
func (v *RowPayloads) Clone() *RowPayloads { return &RowPayloads{v.clone()} }

// Release drops this handle's reference.
func (v *RowPayloads) Release() { v.buf.release() }
