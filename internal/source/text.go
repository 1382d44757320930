package source

import (
	"io"

	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/batch"
	"github.com/strand-ml/strand/internal/storage"
)

// TextSource yields id-carrying descriptors built from lines of text. Each
// Next encodes up to its configured number of lines, concatenates the token
// ids into IDs and records one sequence per line in SeqStarts, so a line
// that encodes to zero tokens becomes an empty sequence rather than
// disappearing.
type TextSource struct {
	name   string
	enc    Encoder
	lines  []string
	batch  int
	dataID int
	pos    int
}

// NewTextSource builds a source named name over lines, yielding
// linesPerBatch lines per descriptor and stamping each descriptor with
// dataID.
func NewTextSource(name string, enc Encoder, lines []string, linesPerBatch, dataID int) (*TextSource, error) {
	if enc == nil {
		return nil, errors.Errorf("text source %q: nil encoder", name)
	}
	if linesPerBatch <= 0 {
		return nil, errors.Errorf("text source %q: %d lines per batch", name, linesPerBatch)
	}
	return &TextSource{
		name:   name,
		enc:    enc,
		lines:  lines,
		batch:  linesPerBatch,
		dataID: dataID,
	}, nil
}

// Name identifies the source.
func (s *TextSource) Name() string { return s.name }

// Reset rewinds the source to its first line.
func (s *TextSource) Reset() { s.pos = 0 }

// Next encodes the next batch of lines into one descriptor, or returns
// io.EOF when every line has been consumed.
func (s *TextSource) Next() (*batch.Argument, error) {
	if s.pos >= len(s.lines) {
		return nil, io.EOF
	}
	end := min(s.pos+s.batch, len(s.lines))
	chunk := s.lines[s.pos:end]

	bounds := make([]int32, 1, len(chunk)+1)
	var ids []int32
	for i, line := range chunk {
		toks, err := s.enc.Encode(line)
		if err != nil {
			return nil, errors.Wrapf(err, "text source %q: encode line %d", s.name, s.pos+i)
		}
		ids = append(ids, toks...)
		bounds = append(bounds, int32(len(ids)))
	}
	s.pos = end

	arg := batch.New()
	arg.IDs = storage.IntVectorFromSlice(ids)
	arg.SeqStarts = storage.SyncVectorFromSlice(bounds)
	arg.DataID = s.dataID
	return arg, nil
}
