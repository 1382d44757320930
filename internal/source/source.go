package source

import (
	"github.com/strand-ml/strand/internal/batch"
)

// Source yields batch descriptors, one per Next call.
type Source interface {
	// Name identifies the source in logs and diagnostics.
	Name() string

	// Reset restarts the source from the beginning. Next may be called
	// again after it returned io.EOF, for instance to run another epoch.
	Reset()

	// Next yields the next descriptor. It returns io.EOF at exhaustion;
	// any other error interrupts the pass.
	Next() (*batch.Argument, error)
}
