package batch

import (
	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/device"
	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/storage"
)

// Field selectors shared by the concat and gather helpers.
func matValue(a *Argument) *storage.Matrix { return a.Value }
func matIn(a *Argument) *storage.Matrix    { return a.In }
func matGrad(a *Argument) *storage.Matrix  { return a.Grad }

// copyMatrix deep-copies src into *dst, allocating on dev when the
// destination handle is missing. A nil src drops the destination field.
func copyMatrix(dst **storage.Matrix, src *storage.Matrix, dev device.ID, stream device.Stream, what string) error {
	if src == nil {
		*dst = nil
		return nil
	}
	if *dst == nil {
		*dst = storage.NewMatrixOn(0, 0, dev)
	}
	if err := (*dst).CopyFrom(src, stream); err != nil {
		return errors.Wrapf(err, "copy %s", what)
	}
	return nil
}

// copyMatrixRows copies rows [startRow, startRow+rows) of src into *dst,
// resized to exactly those rows.
func copyMatrixRows(dst **storage.Matrix, src *storage.Matrix, startRow, rows int, dev device.ID, stream device.Stream, what string) error {
	if src == nil {
		*dst = nil
		return nil
	}
	if *dst == nil {
		*dst = storage.NewMatrixOn(rows, src.Cols(), dev)
	} else {
		(*dst).Resize(rows, src.Cols())
	}
	if err := (*dst).CopyRowsFrom(src, startRow, 0, rows, stream); err != nil {
		return errors.Wrapf(err, "copy %s rows", what)
	}
	return nil
}

func copyInts(dst **storage.IntVector, src *storage.IntVector) {
	if src == nil {
		*dst = nil
		return
	}
	if *dst == nil {
		*dst = storage.NewIntVector(src.Len())
	} else {
		(*dst).Resize(src.Len())
	}
	// Full-range copy into an equally sized destination cannot fail.
	_ = (*dst).CopyRangeFrom(src, 0, 0, src.Len())
}

func copyIntRange(dst **storage.IntVector, src *storage.IntVector, off, n int) error {
	if src == nil {
		*dst = nil
		return nil
	}
	if *dst == nil {
		*dst = storage.NewIntVector(n)
	} else {
		(*dst).Resize(n)
	}
	return (*dst).CopyRangeFrom(src, off, 0, n)
}

// copySeqDims carries the per-sequence dims aligned with a copied sequence
// range when the source holds enough entries; otherwise the destination
// drops them rather than carrying misaligned dims.
func copySeqDims(dst **storage.IntVector, src *storage.IntVector, off, n int) {
	if src == nil || off+n > src.Len() {
		*dst = nil
		return
	}
	if *dst == nil {
		*dst = storage.NewIntVector(n)
	} else {
		(*dst).Resize(n)
	}
	_ = (*dst).CopyRangeFrom(src, off, 0, n)
}

func copyStrings(dst **storage.StringVector, src *storage.StringVector) {
	if src == nil {
		*dst = nil
		return
	}
	if *dst == nil {
		*dst = storage.NewStringVector(src.Len())
	} else {
		(*dst).Resize(src.Len())
	}
	_ = (*dst).CopyRangeFrom(src, 0, 0, src.Len())
}

func copyStringRange(dst **storage.StringVector, src *storage.StringVector, off, n int) error {
	if src == nil {
		*dst = nil
		return nil
	}
	if *dst == nil {
		*dst = storage.NewStringVector(n)
	} else {
		(*dst).Resize(n)
	}
	return (*dst).CopyRangeFrom(src, off, 0, n)
}

func copyPayloads(dst **storage.RowPayloads, src *storage.RowPayloads) {
	if src == nil {
		*dst = nil
		return
	}
	if *dst == nil {
		*dst = storage.NewRowPayloads(src.Len())
	} else {
		(*dst).Resize(src.Len())
	}
	_ = (*dst).CopyRangeFrom(src, 0, 0, src.Len())
}

func copyPayloadRange(dst **storage.RowPayloads, src *storage.RowPayloads, off, n int) error {
	if src == nil {
		*dst = nil
		return nil
	}
	if *dst == nil {
		*dst = storage.NewRowPayloads(n)
	} else {
		(*dst).Resize(n)
	}
	return (*dst).CopyRangeFrom(src, off, 0, n)
}

// copyBoundaries deep-copies a boundary vector so the destination's
// boundaries stay independent of the source's.
func copyBoundaries(dst **storage.SyncVector, src *storage.SyncVector) {
	if src == nil {
		*dst = nil
		return
	}
	if *dst == nil {
		*dst = storage.NewSyncVector(0)
	}
	(*dst).CopyFromInts(src.HostData())
}

// concatMatrix stacks one matrix field of every source into *dst. The field
// must be carried by all sources or by none, with one column width.
func concatMatrix(dst **storage.Matrix, sources []*Argument, get func(*Argument) *storage.Matrix, totalRows int, dev device.ID, stream device.Stream, what string) error {
	present, width := 0, 0
	for _, s := range sources {
		m := get(s)
		if m == nil {
			continue
		}
		if present == 0 {
			width = m.Cols()
		} else if m.Cols() != width {
			return errors.Wrapf(storage.ErrShape, "concat %s: width %d after width %d", what, m.Cols(), width)
		}
		present++
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "concat %s: carried by %d of %d sources", what, present, len(sources))
	}
	if *dst == nil {
		*dst = storage.NewMatrixOn(totalRows, width, dev)
	} else {
		(*dst).Resize(totalRows, width)
	}
	row := 0
	for _, s := range sources {
		m := get(s)
		if err := (*dst).CopyRowsFrom(m, 0, row, m.Rows(), stream); err != nil {
			return errors.Wrapf(err, "concat %s", what)
		}
		row += m.Rows()
	}
	return nil
}

// concatInts appends one int-vector field of every source into *dst, with
// the same all-or-none presence contract as concatMatrix.
func concatInts(dst **storage.IntVector, sources []*Argument, get func(*Argument) *storage.IntVector, what string) error {
	present, total := 0, 0
	for _, s := range sources {
		if v := get(s); v != nil {
			present++
			total += v.Len()
		}
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "concat %s: carried by %d of %d sources", what, present, len(sources))
	}
	if *dst == nil {
		*dst = storage.NewIntVector(total)
	} else {
		(*dst).Resize(total)
	}
	off := 0
	for _, s := range sources {
		v := get(s)
		if err := (*dst).CopyRangeFrom(v, 0, off, v.Len()); err != nil {
			return errors.Wrapf(err, "concat %s", what)
		}
		off += v.Len()
	}
	return nil
}

func concatStrings(dst **storage.StringVector, sources []*Argument) error {
	present, total := 0, 0
	for _, s := range sources {
		if s.Strs != nil {
			present++
			total += s.Strs.Len()
		}
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "concat strs: carried by %d of %d sources", present, len(sources))
	}
	if *dst == nil {
		*dst = storage.NewStringVector(total)
	} else {
		(*dst).Resize(total)
	}
	off := 0
	for _, s := range sources {
		if err := (*dst).CopyRangeFrom(s.Strs, 0, off, s.Strs.Len()); err != nil {
			return errors.Wrap(err, "concat strs")
		}
		off += s.Strs.Len()
	}
	return nil
}

func concatPayloads(dst **storage.RowPayloads, sources []*Argument) error {
	present, total := 0, 0
	for _, s := range sources {
		if s.Payloads != nil {
			present++
			total += s.Payloads.Len()
		}
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "concat payloads: carried by %d of %d sources", present, len(sources))
	}
	if *dst == nil {
		*dst = storage.NewRowPayloads(total)
	} else {
		(*dst).Resize(total)
	}
	off := 0
	for _, s := range sources {
		if err := (*dst).CopyRangeFrom(s.Payloads, 0, off, s.Payloads.Len()); err != nil {
			return errors.Wrap(err, "concat payloads")
		}
		off += s.Payloads.Len()
	}
	return nil
}

// mergeBoundaries concatenates per-source boundary vectors with a running
// row offset. Each source's leading 0 collapses onto the previous source's
// final boundary, keeping the result monotonic from 0 to the combined batch
// size.
func mergeBoundaries(sources []*Argument, totalSeqs int, get func(*Argument) *storage.SyncVector) []int32 {
	out := make([]int32, 0, totalSeqs+1)
	out = append(out, 0)
	offset := int32(0)
	for _, s := range sources {
		starts := get(s).HostData()
		for _, v := range starts[1:] {
			out = append(out, v+offset)
		}
		offset = out[len(out)-1]
	}
	return out
}

// gatherMatrix fills *dst row j from get(sources[srcOf[j]]) row
// selectRows[j], spreading the copies across workers. Row bounds were
// validated by the caller, so the parallel bodies cannot fail.
func gatherMatrix(dst **storage.Matrix, sources []*Argument, get func(*Argument) *storage.Matrix, srcOf, selectRows []int, dev device.ID, what string) error {
	present, width := 0, 0
	for _, s := range sources {
		m := get(s)
		if m == nil {
			continue
		}
		if present == 0 {
			width = m.Cols()
		} else if m.Cols() != width {
			return errors.Wrapf(storage.ErrShape, "gather %s: width %d after width %d", what, m.Cols(), width)
		}
		present++
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "gather %s: carried by %d of %d sources", what, present, len(sources))
	}
	n := len(selectRows)
	if *dst == nil {
		*dst = storage.NewMatrixOn(n, width, dev)
	} else {
		(*dst).Resize(n, width)
	}
	out := *dst
	parallel.For(n, func(j int) {
		copy(out.Row(j), get(sources[srcOf[j]]).Row(selectRows[j]))
	}, gatherCfg)
	return nil
}

func gatherInts(dst **storage.IntVector, sources []*Argument, srcOf, selectRows []int) error {
	present := 0
	for _, s := range sources {
		if s.IDs != nil {
			present++
		}
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "gather ids: carried by %d of %d sources", present, len(sources))
	}
	n := len(selectRows)
	if *dst == nil {
		*dst = storage.NewIntVector(n)
	} else {
		(*dst).Resize(n)
	}
	out := *dst
	parallel.For(n, func(j int) {
		out.Set(j, sources[srcOf[j]].IDs.At(selectRows[j]))
	}, gatherCfg)
	return nil
}

func gatherStrings(dst **storage.StringVector, sources []*Argument, srcOf, selectRows []int) error {
	present := 0
	for _, s := range sources {
		if s.Strs != nil {
			present++
		}
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "gather strs: carried by %d of %d sources", present, len(sources))
	}
	n := len(selectRows)
	if *dst == nil {
		*dst = storage.NewStringVector(n)
	} else {
		(*dst).Resize(n)
	}
	for j := 0; j < n; j++ {
		(*dst).Set(j, sources[srcOf[j]].Strs.At(selectRows[j]))
	}
	return nil
}

func gatherPayloads(dst **storage.RowPayloads, sources []*Argument, srcOf, selectRows []int) error {
	present := 0
	for _, s := range sources {
		if s.Payloads != nil {
			present++
		}
	}
	if present == 0 {
		*dst = nil
		return nil
	}
	if present != len(sources) {
		return errors.Wrapf(ErrInvariant, "gather payloads: carried by %d of %d sources", present, len(sources))
	}
	n := len(selectRows)
	if *dst == nil {
		*dst = storage.NewRowPayloads(n)
	} else {
		(*dst).Resize(n)
	}
	for j := 0; j < n; j++ {
		(*dst).Set(j, sources[srcOf[j]].Payloads.At(selectRows[j]))
	}
	return nil
}
