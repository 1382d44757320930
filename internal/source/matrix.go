package source

import (
	"io"

	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/batch"
	"github.com/strand-ml/strand/internal/storage"
)

// MatrixSource yields dense row batches from an in-memory table. Every Next
// copies up to its configured number of rows into a fresh Value matrix, so
// consumers may mutate a yielded descriptor without touching the table.
type MatrixSource struct {
	name   string
	rows   [][]float32
	width  int
	batch  int
	dataID int
	pos    int
}

// NewMatrixSource builds a source named name over rows, yielding
// rowsPerBatch rows per descriptor and stamping each descriptor with
// dataID. All rows must share one width.
func NewMatrixSource(name string, rows [][]float32, rowsPerBatch, dataID int) (*MatrixSource, error) {
	if rowsPerBatch <= 0 {
		return nil, errors.Errorf("matrix source %q: %d rows per batch", name, rowsPerBatch)
	}
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	for i, r := range rows {
		if len(r) != width {
			return nil, errors.Wrapf(storage.ErrShape,
				"matrix source %q: row %d has width %d, row 0 has %d", name, i, len(r), width)
		}
	}
	return &MatrixSource{
		name:   name,
		rows:   rows,
		width:  width,
		batch:  rowsPerBatch,
		dataID: dataID,
	}, nil
}

// Name identifies the source.
func (s *MatrixSource) Name() string { return s.name }

// Reset rewinds the source to its first row.
func (s *MatrixSource) Reset() { s.pos = 0 }

// Next copies the next batch of rows into one descriptor, or returns io.EOF
// when every row has been consumed.
func (s *MatrixSource) Next() (*batch.Argument, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	end := min(s.pos+s.batch, len(s.rows))
	chunk := s.rows[s.pos:end]

	flat := make([]float32, 0, len(chunk)*s.width)
	for _, r := range chunk {
		flat = append(flat, r...)
	}
	m, err := storage.MatrixFromSlice(flat, len(chunk), s.width)
	if err != nil {
		return nil, errors.Wrapf(err, "matrix source %q", s.name)
	}
	s.pos = end

	arg := batch.New()
	arg.Value = m
	arg.DataID = s.dataID
	return arg, nil
}
