package source

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/batch"
)

// Interleave combines sources round-robin: Next pulls one descriptor from
// each source in turn, skipping exhausted ones, and overwrites each
// descriptor's DataID with the index of the source that produced it. The
// resulting DataID stream drops exactly at cycle boundaries, which is the
// shape batch.SplitByDataID recovers per-cycle groups from.
type Interleave struct {
	name    string
	sources []Source
	done    []bool
	next    int
}

// NewInterleave combines sources in the given order.
func NewInterleave(sources ...Source) *Interleave {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return &Interleave{
		name:    "interleave(" + strings.Join(names, ",") + ")",
		sources: sources,
		done:    make([]bool, len(sources)),
	}
}

// Name identifies the combined source.
func (in *Interleave) Name() string { return in.name }

// Reset rewinds every underlying source and restarts the rotation.
func (in *Interleave) Reset() {
	for i, s := range in.sources {
		s.Reset()
		in.done[i] = false
	}
	in.next = 0
}

// Next yields one descriptor from the next live source in rotation, or
// io.EOF once every source is exhausted.
func (in *Interleave) Next() (*batch.Argument, error) {
	for tried := 0; tried < len(in.sources); tried++ {
		i := in.next
		in.next = (in.next + 1) % len(in.sources)
		if in.done[i] {
			continue
		}
		arg, err := in.sources[i].Next()
		if errors.Is(err, io.EOF) {
			in.done[i] = true
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "source %q", in.sources[i].Name())
		}
		arg.DataID = i
		return arg, nil
	}
	return nil, io.EOF
}
