package batch

import (
	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/device"
	"github.com/strand-ml/strand/internal/storage"
)

// Argument is the batch descriptor for one graph edge. Storage-bearing
// fields are independently optional; the present ones must agree on row
// count. Fields are exported for the execution driver and layer code, but
// the synchronization state is not: configure it through SetAllCount and
// drive it through the notify/wait methods.
//
// An Argument must not be copied by value once its notify/wait methods have
// been called; use Clone, which shares every storage reference and starts
// with fresh synchronization state.
type Argument struct {
	In    *storage.Matrix // raw pre-transform input, kept for layers that need it
	Value *storage.Matrix // forward output
	Grad  *storage.Matrix // backward gradient; nil means not required for this edge
	IDs   *storage.IntVector
	Strs  *storage.StringVector

	// Frame shape hint for grid-like per-sample data. Zero means the hint
	// does not apply.
	FrameHeight int
	FrameWidth  int

	// SeqStarts holds row offsets of sequence boundaries: length
	// numberOfSequences+1, first element 0, last element the batch size.
	// Nil means every row is an independent sequence of length 1.
	SeqStarts *storage.SyncVector

	// SubSeqStarts is a finer partition with the same shape contract. When
	// present, SeqStarts must also be present and every sequence boundary
	// must reappear here; CheckSubset verifies that.
	SubSeqStarts *storage.SyncVector

	// CPUSeqDims carries per-sequence dimensionality for frame-shaped
	// sequence data. Host-only.
	CPUSeqDims *storage.IntVector

	// Payloads holds opaque per-row values the framework never inspects.
	Payloads *storage.RowPayloads

	DeviceID device.ID // affinity of the storage handles
	DataID   int       // which data source produced this batch

	// Synchronization state. allCount is the edge's fan-out degree forward
	// and fan-in degree backward, fixed before the pass begins; the two
	// counters are guarded by their gates.
	allCount   int
	valueCount int
	gradCount  int
	valueGate  gate
	gradGate   gate
}

// New returns an empty descriptor with host affinity. Literal construction
// works too, but leaves DeviceID at 0, which names an accelerator.
func New() *Argument {
	return &Argument{DeviceID: device.Host}
}

// SetAllCount fixes the number of consumers entitled to read Value and the
// number of producers contributing to Grad. Call it before the pass starts;
// the readiness protocol reads it unguarded.
func (a *Argument) SetAllCount(n int) { a.allCount = n }

// AllCount returns the edge's fan degree.
func (a *Argument) AllCount() int { return a.allCount }

// CountIncrement registers one more layer using this argument.
func (a *Argument) CountIncrement() { a.allCount++ }

// SetFrameSize records the 2-D interpretation of each sample's flat vector.
func (a *Argument) SetFrameSize(h, w int) {
	a.FrameHeight = h
	a.FrameWidth = w
}

// BatchSize returns the row count of the first present storage field, in
// the order Value, IDs, Grad, In, Payloads, Strs; 0 when none is present.
func (a *Argument) BatchSize() int {
	switch {
	case a.Value != nil:
		return a.Value.Rows()
	case a.IDs != nil:
		return a.IDs.Len()
	case a.Grad != nil:
		return a.Grad.Rows()
	case a.In != nil:
		return a.In.Rows()
	case a.Payloads != nil:
		return a.Payloads.Len()
	case a.Strs != nil:
		return a.Strs.Len()
	}
	return 0
}

// NumSequences returns the sequence count, or the batch size when the
// descriptor has no sequence structure.
func (a *Argument) NumSequences() int {
	if a.SeqStarts != nil {
		return a.SeqStarts.Len() - 1
	}
	return a.BatchSize()
}

// NumSubSequences returns the sub-sequence count, or the batch size when
// the descriptor has no sub-sequence structure.
func (a *Argument) NumSubSequences() int {
	if a.SubSeqStarts != nil {
		return a.SubSeqStarts.Len() - 1
	}
	return a.BatchSize()
}

// HasSubseq reports whether the descriptor carries sub-sequence boundaries.
func (a *Argument) HasSubseq() bool { return a.SubSeqStarts != nil }

// StartPositions materializes the finer boundary vector on host memory:
// sub-sequence boundaries when present, sequence boundaries otherwise.
// Returns ErrMissingField when the descriptor has neither.
func (a *Argument) StartPositions() ([]int32, error) {
	switch {
	case a.SubSeqStarts != nil:
		return a.SubSeqStarts.HostData(), nil
	case a.SeqStarts != nil:
		return a.SeqStarts.HostData(), nil
	}
	return nil, errors.Wrap(ErrMissingField, "start positions: no boundary vector")
}

// Span locates one sequence inside a batch: its rows and, when the batch is
// two-level, the index range of its sub-sequences.
type Span struct {
	Length   int // rows in the sequence
	Start    int // row offset of the first row
	SubCount int // sub-sequences inside it; 1 when the batch is one-level
	SubStart int // index of its first sub-sequence; equals the sequence index when one-level
}

// SeqSpans describes every top-level sequence and returns the maximum
// sequence length, for layers that pad or unpad variable-length input.
// Returns ErrMissingField without sequence structure and ErrInvariant when
// the sub-sequence boundaries do not refine the sequence boundaries.
func (a *Argument) SeqSpans() ([]Span, int, error) {
	if a.SeqStarts == nil {
		return nil, 0, errors.Wrap(ErrMissingField, "sequence spans: no sequence boundaries")
	}
	starts := a.SeqStarts.HostData()
	n := len(starts) - 1
	spans := make([]Span, n)
	maxLen := 0

	if !a.HasSubseq() {
		for i := 0; i < n; i++ {
			l := int(starts[i+1] - starts[i])
			spans[i] = Span{Length: l, Start: int(starts[i]), SubCount: 1, SubStart: i}
			maxLen = max(maxLen, l)
		}
		return spans, maxLen, nil
	}

	subStarts := a.SubSeqStarts.HostData()
	subIdx := 0
	for i := 0; i < n; i++ {
		if subIdx >= len(subStarts) || subStarts[subIdx] != starts[i] {
			return nil, 0, errors.Wrapf(ErrInvariant,
				"sequence %d starts at row %d, which is not a sub-sequence boundary", i, starts[i])
		}
		s := Span{Length: int(starts[i+1] - starts[i]), Start: int(starts[i]), SubStart: subIdx}
		for subIdx < len(subStarts)-1 && subStarts[subIdx+1] <= starts[i+1] {
			s.SubCount++
			subIdx++
		}
		if subStarts[subIdx] != starts[i+1] {
			return nil, 0, errors.Wrapf(ErrInvariant,
				"sequence %d ends at row %d, which is not a sub-sequence boundary", i, starts[i+1])
		}
		spans[i] = s
		maxLen = max(maxLen, s.Length)
	}
	return spans, maxLen, nil
}

// CheckSubset verifies that every sequence boundary reappears in the
// sub-sequence boundaries. Returns ErrInvariant on the first boundary that
// does not; nil when the descriptor has no sub-sequence structure.
func (a *Argument) CheckSubset() error {
	if a.SubSeqStarts == nil {
		return nil
	}
	if a.SeqStarts == nil {
		return errors.Wrap(ErrInvariant, "sub-sequence boundaries without sequence boundaries")
	}
	starts := a.SeqStarts.HostData()
	subStarts := a.SubSeqStarts.HostData()
	j := 0
	for _, s := range starts {
		for j < len(subStarts) && subStarts[j] < s {
			j++
		}
		if j == len(subStarts) || subStarts[j] != s {
			return errors.Wrapf(ErrInvariant,
				"sequence boundary %d missing from sub-sequence boundaries", s)
		}
	}
	return nil
}

// CheckConsistency verifies the descriptor's structural invariants: present
// storage fields agree on row count, boundary vectors run non-decreasing
// from 0 to the batch size, and sub-sequence boundaries refine sequence
// boundaries. Violations return ErrInvariant.
func (a *Argument) CheckConsistency() error {
	size := a.BatchSize()
	check := func(name string, rows int) error {
		if rows != size {
			return errors.Wrapf(ErrInvariant, "%s has %d rows, batch size is %d", name, rows, size)
		}
		return nil
	}
	if a.Value != nil {
		if err := check("value", a.Value.Rows()); err != nil {
			return err
		}
	}
	if a.IDs != nil {
		if err := check("ids", a.IDs.Len()); err != nil {
			return err
		}
	}
	if a.Grad != nil {
		if err := check("grad", a.Grad.Rows()); err != nil {
			return err
		}
	}
	if a.In != nil {
		if err := check("in", a.In.Rows()); err != nil {
			return err
		}
	}
	if a.Payloads != nil {
		if err := check("payloads", a.Payloads.Len()); err != nil {
			return err
		}
	}
	if a.Strs != nil {
		if err := check("strs", a.Strs.Len()); err != nil {
			return err
		}
	}
	if err := a.checkBoundaries("sequence", a.SeqStarts, size); err != nil {
		return err
	}
	if err := a.checkBoundaries("sub-sequence", a.SubSeqStarts, size); err != nil {
		return err
	}
	return a.CheckSubset()
}

func (a *Argument) checkBoundaries(name string, v *storage.SyncVector, size int) error {
	if v == nil {
		return nil
	}
	starts := v.HostData()
	if len(starts) < 2 {
		return errors.Wrapf(ErrInvariant, "%s boundaries need at least 2 entries, have %d", name, len(starts))
	}
	if starts[0] != 0 {
		return errors.Wrapf(ErrInvariant, "%s boundaries start at %d, want 0", name, starts[0])
	}
	if int(starts[len(starts)-1]) != size {
		return errors.Wrapf(ErrInvariant,
			"%s boundaries end at %d, batch size is %d", name, starts[len(starts)-1], size)
	}
	for i := 1; i < len(starts); i++ {
		if starts[i] < starts[i-1] {
			return errors.Wrapf(ErrInvariant,
				"%s boundaries decrease at index %d: %d after %d", name, i, starts[i], starts[i-1])
		}
	}
	return nil
}

// Clone returns a descriptor sharing every storage reference of a, with the
// same fan degree but zeroed counters and fresh gates. A clone never
// inherits in-flight synchronization state.
func (a *Argument) Clone() *Argument {
	return &Argument{
		In:           a.In,
		Value:        a.Value,
		Grad:         a.Grad,
		IDs:          a.IDs,
		Strs:         a.Strs,
		FrameHeight:  a.FrameHeight,
		FrameWidth:   a.FrameWidth,
		SeqStarts:    a.SeqStarts,
		SubSeqStarts: a.SubSeqStarts,
		CPUSeqDims:   a.CPUSeqDims,
		Payloads:     a.Payloads,
		DeviceID:     a.DeviceID,
		DataID:       a.DataID,
		allCount:     a.allCount,
	}
}

// Reset clears every field so the descriptor can be reused for another
// edge. Storage handles are dropped, not released; shared buffers stay
// alive for their other holders. The gates survive, so Reset must not run
// while a wait is in flight.
func (a *Argument) Reset() {
	a.In, a.Value, a.Grad = nil, nil, nil
	a.IDs, a.Strs = nil, nil
	a.FrameHeight, a.FrameWidth = 0, 0
	a.SeqStarts, a.SubSeqStarts = nil, nil
	a.CPUSeqDims, a.Payloads = nil, nil
	a.DeviceID = device.Host
	a.DataID = 0
	a.allCount = 0
	a.valueGate.run(func() { a.valueCount = 0 })
	a.gradGate.run(func() { a.gradCount = 0 })
}
