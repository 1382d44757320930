// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package batch provides the public API for batch descriptors, the unit of
// data exchanged between layers of a computation graph during one pass.
//
// The package exposes:
//   - Argument: the batch descriptor (values, gradients, ids, sequence
//     boundaries, opaque payloads) with its readiness synchronizer
//   - Structural operators: sub-views, deep copies, concatenation, row
//     gathers, data-id grouping, sequence degradation
//   - SumCosts: cost aggregation across descriptors
//
// Example:
//
//	arg := batch.New()
//	arg.Value = storage.NewMatrix(64, 128)
//	arg.SetAllCount(2)
//
//	go func() { arg.NotifyValueReady() }()
//	arg.WaitValueReady() // returns once the producer has notified
package batch

import (
	"time"

	"github.com/strand-ml/strand/internal/batch"
	"github.com/strand-ml/strand/internal/parallel"
)

// Argument is the batch descriptor for one graph edge.
type Argument = batch.Argument

// Span locates one sequence inside a batch.
type Span = batch.Span

// SeqRange selects a slice of a source's sequence boundary vector for
// SubArgFrom.
type SeqRange = batch.SeqRange

// PassType tells structural operators whether the pass trains or only
// evaluates.
type PassType = batch.PassType

// Pass kinds.
const (
	PassTrain PassType = batch.PassTrain
	PassTest  PassType = batch.PassTest
)

// Sentinel errors of the descriptor operations.
var (
	ErrInvariant    = batch.ErrInvariant
	ErrMissingField = batch.ErrMissingField
)

// New returns an empty descriptor with host affinity.
func New() *Argument { return batch.New() }

// SumCosts reduces the Value matrices of args to one scalar, switching the
// device context to each descriptor's affinity while it is summed.
func SumCosts(args []*Argument) float32 { return batch.SumCosts(args) }

// SplitByDataID partitions args into groups, starting a new group wherever
// DataID drops below its predecessor's.
func SplitByDataID(args []*Argument) [][]*Argument { return batch.SplitByDataID(args) }

// SetStallWarning makes WaitValueReady and WaitGradReady log a warning when
// blocked longer than d. Zero disables the warning, which is the default.
// The warning never unblocks a wait.
func SetStallWarning(d time.Duration) { batch.SetStallWarning(d) }

// GatherConfig controls how ConcatSelected spreads row copies across worker
// goroutines.
type GatherConfig = parallel.Config

// DefaultGatherConfig returns the worker configuration row gathers start
// with.
func DefaultGatherConfig() GatherConfig { return parallel.DefaultConfig() }

// SetGatherConfig replaces the worker configuration used by row gathers.
// Replace it before the first pass; gathers read it unguarded.
func SetGatherConfig(cfg GatherConfig) { batch.SetGatherConfig(cfg) }
