package batch

import (
	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/device"
	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/storage"
)

// PassType tells structural operators whether the pass trains or only
// evaluates; gradients are assembled for training passes alone.
type PassType int

// Pass kinds.
const (
	PassTrain PassType = iota
	PassTest
)

// gatherCfg controls how ConcatSelected spreads row copies across worker
// goroutines. Replace it before the first pass; gathers read it unguarded.
var gatherCfg = parallel.DefaultConfig()

// SetGatherConfig replaces the worker configuration used by row gathers.
func SetGatherConfig(cfg parallel.Config) { gatherCfg = cfg }

// SeqRange selects a slice of a source's sequence boundary vector for
// SubArgFrom: Len boundary entries starting at index Start.
type SeqRange struct {
	Start int
	Len   int
}

// SubArgFrom points this descriptor at a row range of input without
// copying: Value, Grad and IDs become views of height rows starting at row
// offset, width columns each, transposed when trans is set. The element
// offset is computed in the new width, so a caller may reinterpret the
// source geometry. When seq is non-nil, seq.Len boundary entries starting
// at seq.Start are copied out of input's sequence boundaries and
// renormalized so the view's own first boundary is 0.
func (a *Argument) SubArgFrom(input *Argument, offset, height, width int, trans bool, seq *SeqRange) error {
	if input.Value != nil {
		v, err := input.Value.ViewRange(offset*width, height, width, trans)
		if err != nil {
			return errors.Wrap(err, "sub-argument value")
		}
		a.Value = v
	}
	if input.IDs != nil {
		ids, err := input.IDs.View(offset, height)
		if err != nil {
			return errors.Wrap(err, "sub-argument ids")
		}
		a.IDs = ids
	}
	if input.Grad != nil {
		g, err := input.Grad.ViewRange(offset*width, height, width, trans)
		if err != nil {
			return errors.Wrap(err, "sub-argument grad")
		}
		a.Grad = g
	}
	if seq != nil {
		if input.SeqStarts == nil {
			return errors.Wrap(ErrMissingField, "sub-argument boundaries: input has no sequence boundaries")
		}
		starts := input.SeqStarts.HostData()
		if seq.Len < 2 {
			return errors.Wrapf(ErrInvariant, "sub-argument boundaries: %d entries cannot delimit a sequence", seq.Len)
		}
		if seq.Start < 0 || seq.Start+seq.Len > len(starts) {
			return errors.Wrapf(storage.ErrOutOfRange,
				"sub-argument boundaries [%d, %d) of %d", seq.Start, seq.Start+seq.Len, len(starts))
		}
		sub := make([]int32, seq.Len)
		base := starts[seq.Start]
		for i := range sub {
			sub[i] = starts[seq.Start+i] - base
		}
		a.SeqStarts = storage.SyncVectorFromSlice(sub)
		a.SubSeqStarts = nil
	}
	a.DeviceID = input.DeviceID
	return nil
}

// ResizeAndCopyFrom deep-copies every present field of src into this
// descriptor, resizing destination storage to fit and dropping destination
// fields src does not carry. Destination storage keeps this descriptor's
// device affinity, so copying a descriptor from another device lands the
// data here.
func (a *Argument) ResizeAndCopyFrom(src *Argument, stream device.Stream) error {
	a.DataID = src.DataID
	a.FrameHeight, a.FrameWidth = src.FrameHeight, src.FrameWidth

	if err := copyMatrix(&a.Value, src.Value, a.DeviceID, stream, "value"); err != nil {
		return err
	}
	if err := copyMatrix(&a.Grad, src.Grad, a.DeviceID, stream, "grad"); err != nil {
		return err
	}
	if err := copyMatrix(&a.In, src.In, a.DeviceID, stream, "in"); err != nil {
		return err
	}
	copyInts(&a.IDs, src.IDs)
	copyInts(&a.CPUSeqDims, src.CPUSeqDims)
	copyStrings(&a.Strs, src.Strs)
	copyPayloads(&a.Payloads, src.Payloads)
	copyBoundaries(&a.SeqStarts, src.SeqStarts)
	copyBoundaries(&a.SubSeqStarts, src.SubSeqStarts)
	return nil
}

// ResizeAndCopyFromN copies n whole sequences of src starting at sequence
// startSeq — or, when src has no sequence structure, n rows starting at row
// startSeq — resizing this descriptor's storage to fit. The request is
// clamped to what src still holds and the returned count is rows actually
// copied, so callers can detect batch truncation near a dataset boundary.
func (a *Argument) ResizeAndCopyFromN(src *Argument, startSeq, n int, stream device.Stream) (int, error) {
	if startSeq < 0 || n < 0 {
		return 0, errors.Wrapf(storage.ErrOutOfRange, "copy %d sequences from %d", n, startSeq)
	}
	a.DataID = src.DataID
	a.FrameHeight, a.FrameWidth = src.FrameHeight, src.FrameWidth

	if src.SeqStarts == nil {
		total := src.BatchSize()
		if startSeq > total {
			return 0, errors.Wrapf(storage.ErrOutOfRange, "start row %d of %d", startSeq, total)
		}
		rows := min(n, total-startSeq)
		if err := a.copyRowRange(src, startSeq, rows, stream); err != nil {
			return 0, err
		}
		a.SeqStarts, a.SubSeqStarts = nil, nil
		copySeqDims(&a.CPUSeqDims, src.CPUSeqDims, startSeq, rows)
		return rows, nil
	}

	starts := src.SeqStarts.HostData()
	numSeq := len(starts) - 1
	if startSeq > numSeq {
		return 0, errors.Wrapf(storage.ErrOutOfRange, "start sequence %d of %d", startSeq, numSeq)
	}
	nSeq := min(n, numSeq-startSeq)
	if nSeq == 0 {
		if err := a.copyRowRange(src, 0, 0, stream); err != nil {
			return 0, err
		}
		a.SeqStarts, a.SubSeqStarts, a.CPUSeqDims = nil, nil, nil
		return 0, nil
	}
	startRow := int(starts[startSeq])
	endRow := int(starts[startSeq+nSeq])
	rows := endRow - startRow

	if err := a.copyRowRange(src, startRow, rows, stream); err != nil {
		return 0, err
	}

	bounds := make([]int32, nSeq+1)
	for i := range bounds {
		bounds[i] = starts[startSeq+i] - int32(startRow)
	}
	a.SeqStarts = storage.SyncVectorFromSlice(bounds)

	if src.SubSeqStarts != nil {
		var sub []int32
		for _, v := range src.SubSeqStarts.HostData() {
			if int(v) >= startRow && int(v) <= endRow {
				sub = append(sub, v-int32(startRow))
			}
		}
		a.SubSeqStarts = storage.SyncVectorFromSlice(sub)
	} else {
		a.SubSeqStarts = nil
	}
	copySeqDims(&a.CPUSeqDims, src.CPUSeqDims, startSeq, nSeq)
	return rows, nil
}

// copyRowRange copies rows [startRow, startRow+rows) of src's row-bearing
// fields into this descriptor, resizing each destination.
func (a *Argument) copyRowRange(src *Argument, startRow, rows int, stream device.Stream) error {
	if err := copyMatrixRows(&a.Value, src.Value, startRow, rows, a.DeviceID, stream, "value"); err != nil {
		return err
	}
	if err := copyMatrixRows(&a.Grad, src.Grad, startRow, rows, a.DeviceID, stream, "grad"); err != nil {
		return err
	}
	if err := copyMatrixRows(&a.In, src.In, startRow, rows, a.DeviceID, stream, "in"); err != nil {
		return err
	}
	if err := copyIntRange(&a.IDs, src.IDs, startRow, rows); err != nil {
		return errors.Wrap(err, "copy ids")
	}
	if err := copyStringRange(&a.Strs, src.Strs, startRow, rows); err != nil {
		return errors.Wrap(err, "copy strs")
	}
	if err := copyPayloadRange(&a.Payloads, src.Payloads, startRow, rows); err != nil {
		return errors.Wrap(err, "copy payloads")
	}
	return nil
}

// Concat assembles this descriptor as the row-wise concatenation of sources
// in order. Sources must agree on data id, on which fields they carry, and
// on per-field column width; their boundary vectors are merged with a
// running row offset so the result's boundaries stay monotonic from 0 to
// the combined batch size. Gradients are gathered only for training passes;
// a test pass clears Grad.
func (a *Argument) Concat(sources []*Argument, stream device.Stream, pass PassType) error {
	if len(sources) == 0 {
		return errors.Wrap(ErrMissingField, "concat: no sources")
	}
	totalRows := 0
	totalSeqs, totalSubSeqs := 0, 0
	withSeq, withSub := 0, 0
	dataID := sources[0].DataID
	for i, s := range sources {
		if s.DataID != dataID {
			return errors.Wrapf(ErrInvariant,
				"concat: source %d has data id %d, source 0 has %d", i, s.DataID, dataID)
		}
		totalRows += s.BatchSize()
		if s.SeqStarts != nil {
			withSeq++
			totalSeqs += s.NumSequences()
		}
		if s.SubSeqStarts != nil {
			withSub++
			totalSubSeqs += s.NumSubSequences()
		}
	}
	if withSeq != 0 && withSeq != len(sources) {
		return errors.Wrap(ErrInvariant, "concat: mixed sequence structure across sources")
	}
	if withSub != 0 && withSub != len(sources) {
		return errors.Wrap(ErrInvariant, "concat: mixed sub-sequence structure across sources")
	}

	if err := concatMatrix(&a.Value, sources, matValue, totalRows, a.DeviceID, stream, "value"); err != nil {
		return err
	}
	if err := concatMatrix(&a.In, sources, matIn, totalRows, a.DeviceID, stream, "in"); err != nil {
		return err
	}
	if pass == PassTrain {
		if err := concatMatrix(&a.Grad, sources, matGrad, totalRows, a.DeviceID, stream, "grad"); err != nil {
			return err
		}
	} else {
		a.Grad = nil
	}
	if err := concatInts(&a.IDs, sources, func(s *Argument) *storage.IntVector { return s.IDs }, "ids"); err != nil {
		return err
	}
	if err := concatInts(&a.CPUSeqDims, sources, func(s *Argument) *storage.IntVector { return s.CPUSeqDims }, "sequence dims"); err != nil {
		return err
	}
	if err := concatStrings(&a.Strs, sources); err != nil {
		return err
	}
	if err := concatPayloads(&a.Payloads, sources); err != nil {
		return err
	}

	if withSeq == len(sources) {
		a.SeqStarts = storage.SyncVectorFromSlice(mergeBoundaries(sources, totalSeqs,
			func(s *Argument) *storage.SyncVector { return s.SeqStarts }))
	} else {
		a.SeqStarts = nil
	}
	if withSub == len(sources) {
		a.SubSeqStarts = storage.SyncVectorFromSlice(mergeBoundaries(sources, totalSubSeqs,
			func(s *Argument) *storage.SyncVector { return s.SubSeqStarts }))
	} else {
		a.SubSeqStarts = nil
	}
	a.DataID = dataID
	a.FrameHeight, a.FrameWidth = sources[0].FrameHeight, sources[0].FrameWidth
	return nil
}

// ConcatSelected gathers single rows from across sources into contiguous
// destination storage. Destination row j falls inside one span of
// seqStarts; within a span beginning at row s, row j is read from source
// j-s at row selectRows[j], so each span interleaves one row from each
// source in order. The caller supplies seqStarts because the logical
// sequence structure of a gather is defined by how rows were selected, not
// recoverable from the sources; it is installed as the result's boundaries.
// Sources with sub-sequence structure are rejected.
func (a *Argument) ConcatSelected(sources []*Argument, selectRows []int, seqStarts []int32, stream device.Stream, pass PassType) error {
	if len(sources) == 0 {
		return errors.Wrap(ErrMissingField, "concat selected: no sources")
	}
	n := len(selectRows)
	if len(seqStarts) < 2 || seqStarts[0] != 0 || int(seqStarts[len(seqStarts)-1]) != n {
		return errors.Wrapf(ErrInvariant,
			"concat selected: boundaries must run 0..%d, got %v", n, seqStarts)
	}
	for _, s := range sources {
		if s.HasSubseq() {
			return errors.Wrap(ErrInvariant, "concat selected: sources with sub-sequence structure")
		}
	}

	// Destination row -> source index, from the span walk. Validate every
	// selected row up front so the parallel copy below cannot fail.
	srcOf := make([]int, n)
	for i := 0; i+1 < len(seqStarts); i++ {
		s, e := int(seqStarts[i]), int(seqStarts[i+1])
		if s > e || e > n {
			return errors.Wrapf(ErrInvariant, "concat selected: span %d runs [%d, %d)", i, s, e)
		}
		if e-s > len(sources) {
			return errors.Wrapf(ErrInvariant,
				"concat selected: span %d needs %d sources, have %d", i, e-s, len(sources))
		}
		for j := s; j < e; j++ {
			srcOf[j] = j - s
		}
	}
	for j, r := range selectRows {
		if r < 0 || r >= sources[srcOf[j]].BatchSize() {
			return errors.Wrapf(storage.ErrOutOfRange,
				"concat selected: row %d of source %d (batch size %d)", r, srcOf[j], sources[srcOf[j]].BatchSize())
		}
	}

	if err := gatherMatrix(&a.Value, sources, matValue, srcOf, selectRows, a.DeviceID, "value"); err != nil {
		return err
	}
	if err := gatherMatrix(&a.In, sources, matIn, srcOf, selectRows, a.DeviceID, "in"); err != nil {
		return err
	}
	if pass == PassTrain {
		if err := gatherMatrix(&a.Grad, sources, matGrad, srcOf, selectRows, a.DeviceID, "grad"); err != nil {
			return err
		}
	} else {
		a.Grad = nil
	}
	if err := gatherInts(&a.IDs, sources, srcOf, selectRows); err != nil {
		return err
	}
	if err := gatherStrings(&a.Strs, sources, srcOf, selectRows); err != nil {
		return err
	}
	if err := gatherPayloads(&a.Payloads, sources, srcOf, selectRows); err != nil {
		return err
	}

	a.SeqStarts = storage.SyncVectorFromSlice(seqStarts)
	a.SubSeqStarts = nil
	a.CPUSeqDims = nil
	a.DataID = sources[0].DataID
	return nil
}

// SplitByDataID partitions args into groups, preserving relative order,
// starting a new group wherever DataID drops below its predecessor's. Ids
// run non-decreasing within one source stream, so a drop marks the start of
// the next interleaved cycle. This is not a group-by-key: data ids
// 0,1,2,0,1 yield the groups 0,1,2 and 0,1.
func SplitByDataID(args []*Argument) [][]*Argument {
	var groups [][]*Argument
	for i, arg := range args {
		if i == 0 || arg.DataID < args[i-1].DataID {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], arg)
	}
	return groups
}

// DegradeSequence flattens input's two-level structure into this
// descriptor: data fields are shared, each former sub-sequence becomes an
// independent top-level sequence, and the sub-sequence vector is dropped.
// Per-sequence dims are dropped too, since they described the old
// sequences. Returns ErrMissingField when input has no sub-sequence
// structure.
func (a *Argument) DegradeSequence(input *Argument) error {
	if !input.HasSubseq() {
		return errors.Wrap(ErrMissingField, "degrade: input has no sub-sequence boundaries")
	}
	a.In, a.Value, a.Grad = input.In, input.Value, input.Grad
	a.IDs, a.Strs, a.Payloads = input.IDs, input.Strs, input.Payloads
	a.FrameHeight, a.FrameWidth = input.FrameHeight, input.FrameWidth
	a.DeviceID, a.DataID = input.DeviceID, input.DataID
	a.SeqStarts = input.SubSeqStarts
	a.SubSeqStarts = nil
	a.CPUSeqDims = nil
	return nil
}
