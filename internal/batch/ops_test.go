package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/device"
	"github.com/strand-ml/strand/internal/storage"
)

func TestSubArgFromSharesRows(t *testing.T) {
	src := New()
	src.Value = mat(t, 10, 4, 0) // row r holds 4r, 4r+1, 4r+2, 4r+3
	src.Grad = mat(t, 10, 4, 100)
	src.IDs = storage.IntVectorFromSlice([]int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	sub := New()
	require.NoError(t, sub.SubArgFrom(src, 2, 3, 4, false, nil))

	assert.Equal(t, 3, sub.BatchSize())
	assert.Equal(t, src.Value.At(2, 0), sub.Value.At(0, 0), "view row 0 is source row 2")
	assert.Equal(t, src.Value.At(4, 3), sub.Value.At(2, 3))
	assert.Equal(t, int32(2), sub.IDs.At(0))
	assert.Equal(t, src.Grad.At(2, 1), sub.Grad.At(0, 1))

	// The view aliases the source storage; a write through it is visible.
	sub.Value.Set(0, 0, -1)
	assert.Equal(t, float32(-1), src.Value.At(2, 0))
}

func TestSubArgFromTransposedHint(t *testing.T) {
	src := New()
	src.Value = mat(t, 6, 2, 0)

	sub := New()
	require.NoError(t, sub.SubArgFrom(src, 0, 2, 6, true, nil))
	assert.True(t, sub.Value.Transposed())
	assert.Equal(t, 2, sub.Value.Rows())
	assert.Equal(t, 6, sub.Value.Cols())
}

func TestSubArgFromBounds(t *testing.T) {
	src := New()
	src.Value = mat(t, 10, 4, 0)

	sub := New()
	err := sub.SubArgFrom(src, 8, 3, 4, false, nil)
	assert.ErrorIs(t, err, storage.ErrOutOfRange, "rows [8, 11) of 10")
}

func TestSubArgFromBoundaryRange(t *testing.T) {
	src := New()
	src.Value = mat(t, 10, 1, 0)
	src.SeqStarts = bounds(0, 2, 5, 9, 10)

	sub := New()
	require.NoError(t, sub.SubArgFrom(src, 2, 7, 1, false, &SeqRange{Start: 1, Len: 3}))
	assert.Equal(t, []int32{0, 3, 7}, sub.SeqStarts.HostData(),
		"boundaries [2 5 9] renormalized to start at 0")

	err := sub.SubArgFrom(src, 0, 10, 1, false, &SeqRange{Start: 3, Len: 3})
	assert.ErrorIs(t, err, storage.ErrOutOfRange)

	src.SeqStarts = nil
	err = sub.SubArgFrom(src, 0, 10, 1, false, &SeqRange{Start: 0, Len: 2})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestResizeAndCopyFromDeepCopies(t *testing.T) {
	src := New()
	src.Value = mat(t, 3, 2, 0)
	src.IDs = storage.IntVectorFromSlice([]int32{5, 6, 7})
	src.Strs = storage.StringVectorFromSlice([]string{"a", "b", "c"})
	src.SeqStarts = bounds(0, 2, 3)
	src.DataID = 4
	src.SetFrameSize(1, 2)

	dst := New()
	require.NoError(t, dst.ResizeAndCopyFrom(src, device.DefaultStream))

	assert.Equal(t, 3, dst.BatchSize())
	assert.Equal(t, 4, dst.DataID)
	assert.Equal(t, 1, dst.FrameHeight)
	assert.Equal(t, []int32{0, 2, 3}, dst.SeqStarts.HostData())
	assert.Equal(t, "c", dst.Strs.At(2))

	// A copy owns its storage: mutating it leaves the source alone.
	dst.Value.Set(0, 0, 42)
	assert.Zero(t, src.Value.At(0, 0))
	dst.SeqStarts.MutableHostData()[0] = 9
	assert.Equal(t, int32(0), src.SeqStarts.HostData()[0])
}

func TestResizeAndCopyFromDropsAbsentFields(t *testing.T) {
	src := New()
	src.Value = mat(t, 2, 2, 0)

	dst := New()
	dst.Grad = mat(t, 5, 5, 0)
	dst.IDs = storage.IntVectorFromSlice([]int32{1})
	dst.SeqStarts = bounds(0, 1)
	require.NoError(t, dst.ResizeAndCopyFrom(src, device.DefaultStream))

	assert.NotNil(t, dst.Value)
	assert.Nil(t, dst.Grad, "source carries no grad")
	assert.Nil(t, dst.IDs)
	assert.Nil(t, dst.SeqStarts)
}

func TestResizeAndCopyFromNSequences(t *testing.T) {
	src := New()
	src.Value = mat(t, 9, 2, 0)
	src.IDs = storage.IntVectorFromSlice([]int32{0, 1, 2, 3, 4, 5, 6, 7, 8})
	src.SeqStarts = bounds(0, 2, 5, 9)

	dst := New()
	rows, err := dst.ResizeAndCopyFromN(src, 1, 5, device.DefaultStream)
	require.NoError(t, err)

	assert.Equal(t, 7, rows, "sequences 1..2 cover rows 2..9, clamped from the requested 5")
	assert.Equal(t, 7, dst.BatchSize())
	assert.Equal(t, []int32{0, 3, 7}, dst.SeqStarts.HostData())
	assert.Equal(t, src.Value.At(2, 0), dst.Value.At(0, 0), "copy starts at row 2")
	assert.Equal(t, int32(2), dst.IDs.At(0))
}

func TestResizeAndCopyFromNFlatRows(t *testing.T) {
	src := New()
	src.Value = mat(t, 10, 1, 0)

	dst := New()
	rows, err := dst.ResizeAndCopyFromN(src, 8, 5, device.DefaultStream)
	require.NoError(t, err)
	assert.Equal(t, 2, rows, "only rows 8..9 remain")
	assert.Equal(t, 2, dst.BatchSize())
	assert.Nil(t, dst.SeqStarts)
	assert.Equal(t, src.Value.At(8, 0), dst.Value.At(0, 0))

	rows, err = dst.ResizeAndCopyFromN(src, 10, 3, device.DefaultStream)
	require.NoError(t, err)
	assert.Zero(t, rows, "start at the end copies nothing")

	_, err = dst.ResizeAndCopyFromN(src, 11, 1, device.DefaultStream)
	assert.ErrorIs(t, err, storage.ErrOutOfRange)
}

func TestResizeAndCopyFromNKeepsSubBoundaries(t *testing.T) {
	src := New()
	src.Value = mat(t, 9, 1, 0)
	src.SeqStarts = bounds(0, 2, 5, 9)
	src.SubSeqStarts = bounds(0, 1, 2, 4, 5, 7, 9)

	dst := New()
	rows, err := dst.ResizeAndCopyFromN(src, 1, 2, device.DefaultStream)
	require.NoError(t, err)
	assert.Equal(t, 7, rows)
	assert.Equal(t, []int32{0, 3, 7}, dst.SeqStarts.HostData())
	assert.Equal(t, []int32{0, 2, 3, 5, 7}, dst.SubSeqStarts.HostData(),
		"sub-boundaries inside rows [2, 9) renormalized")
	assert.NoError(t, dst.CheckSubset())
}

func TestResizeAndCopyFromWholeMirrorsSource(t *testing.T) {
	src := New()
	src.Value = mat(t, 4, 3, 0)
	src.SubSeqStarts = bounds(0, 2, 4)
	src.SeqStarts = bounds(0, 4)

	dst := New()
	require.NoError(t, dst.ResizeAndCopyFrom(src, device.DefaultStream))
	assert.Equal(t, []int32{0, 2, 4}, dst.SubSeqStarts.HostData())
}

func TestConcatWholeDescriptors(t *testing.T) {
	a := New()
	a.Value = mat(t, 4, 2, 0)
	a.SeqStarts = bounds(0, 4)

	b := New()
	b.Value = mat(t, 5, 2, 100)
	b.SeqStarts = bounds(0, 5)

	dst := New()
	require.NoError(t, dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTest))

	assert.Equal(t, 9, dst.BatchSize())
	assert.Equal(t, []int32{0, 4, 9}, dst.SeqStarts.HostData())
	assert.Equal(t, a.Value.At(0, 0), dst.Value.At(0, 0))
	assert.Equal(t, b.Value.At(0, 0), dst.Value.At(4, 0), "source b starts at row 4")
	assert.Equal(t, b.Value.At(4, 1), dst.Value.At(8, 1))
}

func TestConcatGradOnlyWhenTraining(t *testing.T) {
	a := New()
	a.Value = mat(t, 2, 2, 0)
	a.Grad = mat(t, 2, 2, 10)
	b := New()
	b.Value = mat(t, 3, 2, 0)
	b.Grad = mat(t, 3, 2, 20)

	dst := New()
	require.NoError(t, dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTest))
	assert.Nil(t, dst.Grad, "test passes skip gradient assembly")

	require.NoError(t, dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTrain))
	require.NotNil(t, dst.Grad)
	assert.Equal(t, b.Grad.At(0, 0), dst.Grad.At(2, 0))
}

func TestConcatRejectsMismatches(t *testing.T) {
	a := New()
	a.Value = mat(t, 2, 2, 0)
	b := New()
	b.Value = mat(t, 2, 3, 0)

	dst := New()
	err := dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, storage.ErrShape, "column widths differ")

	b.Value = mat(t, 2, 2, 0)
	b.DataID = 1
	err = dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, ErrInvariant, "data ids differ")

	b.DataID = 0
	b.SeqStarts = bounds(0, 2)
	err = dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, ErrInvariant, "mixed sequence structure")

	err = dst.Concat(nil, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestConcatMergesSubBoundaries(t *testing.T) {
	a := New()
	a.Value = mat(t, 4, 1, 0)
	a.SeqStarts = bounds(0, 4)
	a.SubSeqStarts = bounds(0, 2, 4)

	b := New()
	b.Value = mat(t, 6, 1, 0)
	b.SeqStarts = bounds(0, 6)
	b.SubSeqStarts = bounds(0, 3, 6)

	dst := New()
	require.NoError(t, dst.Concat([]*Argument{a, b}, device.DefaultStream, PassTest))
	assert.Equal(t, []int32{0, 4, 10}, dst.SeqStarts.HostData())
	assert.Equal(t, []int32{0, 2, 4, 7, 10}, dst.SubSeqStarts.HostData())
	assert.NoError(t, dst.CheckConsistency())
}

func TestConcatSelectedInterleavesSources(t *testing.T) {
	// Two frames; each destination span takes one row from each in order.
	f0 := New()
	f0.Value = mat(t, 3, 2, 0)
	f1 := New()
	f1.Value = mat(t, 3, 2, 100)

	dst := New()
	selectRows := []int{2, 0, 1, 1}
	seqStarts := []int32{0, 2, 4}
	require.NoError(t, dst.ConcatSelected([]*Argument{f0, f1}, selectRows, seqStarts, device.DefaultStream, PassTest))

	assert.Equal(t, 4, dst.BatchSize())
	assert.Equal(t, []int32{0, 2, 4}, dst.SeqStarts.HostData())
	assert.Equal(t, f0.Value.At(2, 0), dst.Value.At(0, 0), "span 0, row 0 from frame 0 row 2")
	assert.Equal(t, f1.Value.At(0, 0), dst.Value.At(1, 0), "span 0, row 1 from frame 1 row 0")
	assert.Equal(t, f0.Value.At(1, 1), dst.Value.At(2, 1), "span 1, row 0 from frame 0 row 1")
	assert.Equal(t, f1.Value.At(1, 1), dst.Value.At(3, 1), "span 1, row 1 from frame 1 row 1")
}

func TestConcatSelectedValidation(t *testing.T) {
	f0 := New()
	f0.Value = mat(t, 3, 2, 0)
	f1 := New()
	f1.Value = mat(t, 3, 2, 0)
	sources := []*Argument{f0, f1}

	dst := New()
	err := dst.ConcatSelected(sources, []int{0, 0, 0}, []int32{0, 3}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, ErrInvariant, "span of 3 rows needs 3 sources")

	err = dst.ConcatSelected(sources, []int{0, 5}, []int32{0, 2}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, storage.ErrOutOfRange, "row 5 of a 3-row source")

	err = dst.ConcatSelected(sources, []int{0, 0}, []int32{0, 1}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, ErrInvariant, "boundaries must end at the gathered row count")

	f1.SubSeqStarts = bounds(0, 3)
	err = dst.ConcatSelected(sources, []int{0, 0}, []int32{0, 2}, device.DefaultStream, PassTest)
	assert.ErrorIs(t, err, ErrInvariant, "sub-sequence sources are rejected")
}

func TestSplitByDataID(t *testing.T) {
	ids := []int{0, 1, 2, 0, 1}
	args := make([]*Argument, len(ids))
	for i, id := range ids {
		args[i] = New()
		args[i].DataID = id
	}

	groups := SplitByDataID(args)
	require.Len(t, groups, 2, "the id drop after 2 starts a new group")
	assert.Equal(t, []*Argument{args[0], args[1], args[2]}, groups[0])
	assert.Equal(t, []*Argument{args[3], args[4]}, groups[1])

	assert.Nil(t, SplitByDataID(nil))

	single := SplitByDataID(args[:1])
	require.Len(t, single, 1)

	// Equal consecutive ids stay in one group; only a decrease splits.
	for i, id := range []int{3, 3, 5} {
		args[i].DataID = id
	}
	groups = SplitByDataID(args[:3])
	assert.Len(t, groups, 1)
}

func TestDegradeSequence(t *testing.T) {
	src := New()
	src.Value = mat(t, 6, 2, 0)
	src.SeqStarts = bounds(0, 6)
	src.SubSeqStarts = bounds(0, 2, 4, 6)

	dst := New()
	require.NoError(t, dst.DegradeSequence(src))

	assert.Equal(t, []int32{0, 2, 4, 6}, dst.SeqStarts.HostData(),
		"former sub-sequences become top-level sequences")
	assert.False(t, dst.HasSubseq())
	assert.Equal(t, 3, dst.NumSequences())
	assert.Same(t, src.Value, dst.Value, "data is shared, not copied")

	flat := New()
	flat.Value = mat(t, 4, 1, 0)
	err := dst.DegradeSequence(flat)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestSumCosts(t *testing.T) {
	a := New()
	a.Value = mat(t, 2, 2, 1) // 1+2+3+4

	b := New()
	b.Value = mat(t, 1, 3, 10) // 10+11+12
	b.DeviceID = 2

	c := New() // no value, contributes nothing

	total := SumCosts([]*Argument{a, b, c})
	assert.Equal(t, float32(43), total)
	assert.Equal(t, device.Host, device.Current(), "device context restored after summation")
}
