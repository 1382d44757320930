// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package storage provides the public API for the storage handles batch
// descriptors carry: dense float32 matrices, int32 and string row vectors,
// opaque per-row payloads, and host/device mirrored boundary vectors.
//
// Handles reference-count a shared buffer, so views alias their parent
// without copying and a buffer is reclaimed with its last handle. A resize
// reuses the buffer only when the handle holds the sole reference; shared
// buffers are reallocated instead so sibling views are never disturbed.
//
// Example:
//
//	m := storage.NewMatrix(10, 4)
//	view, err := m.View(2, 3) // rows 2..4, shared storage
//	if err != nil {
//	    log.Fatal(err)
//	}
//	view.Set(0, 0, 1) // visible through m at row 2
package storage

import (
	"github.com/strand-ml/strand/internal/device"
	"github.com/strand-ml/strand/internal/storage"
)

// Matrix is a dense row-major float32 matrix handle.
type Matrix = storage.Matrix

// IntVector is a shared handle over an int32 row vector.
type IntVector = storage.IntVector

// StringVector is a shared handle over per-row strings.
type StringVector = storage.StringVector

// RowPayloads is a shared handle over opaque per-row values.
type RowPayloads = storage.RowPayloads

// SyncVector is a host/device mirrored int32 vector, used for sequence
// boundaries that accelerator kernels need a device copy of.
type SyncVector = storage.SyncVector

// Sentinel errors of the storage operations.
var (
	ErrOutOfRange = storage.ErrOutOfRange
	ErrShape      = storage.ErrShape
)

// NewMatrix allocates a zeroed rows-by-cols matrix in host memory.
func NewMatrix(rows, cols int) *Matrix { return storage.NewMatrix(rows, cols) }

// NewMatrixOn allocates a zeroed rows-by-cols matrix with affinity to dev.
func NewMatrixOn(rows, cols int, dev device.ID) *Matrix {
	return storage.NewMatrixOn(rows, cols, dev)
}

// MatrixFromSlice copies data, interpreted row-major, into a new
// rows-by-cols matrix.
func MatrixFromSlice(data []float32, rows, cols int) (*Matrix, error) {
	return storage.MatrixFromSlice(data, rows, cols)
}

// NewIntVector allocates a zeroed vector of n elements.
func NewIntVector(n int) *IntVector { return storage.NewIntVector(n) }

// IntVectorFromSlice copies data into a new vector.
func IntVectorFromSlice(data []int32) *IntVector { return storage.IntVectorFromSlice(data) }

// NewStringVector allocates a vector of n empty strings.
func NewStringVector(n int) *StringVector { return storage.NewStringVector(n) }

// StringVectorFromSlice copies data into a new vector.
func StringVectorFromSlice(data []string) *StringVector {
	return storage.StringVectorFromSlice(data)
}

// NewRowPayloads allocates a vector of n nil payloads.
func NewRowPayloads(n int) *RowPayloads { return storage.NewRowPayloads(n) }

// NewSyncVector allocates a host-resident boundary vector of n elements.
func NewSyncVector(n int) *SyncVector { return storage.NewSyncVector(n) }

// SyncVectorFromSlice copies data into a new host-resident boundary vector.
func SyncVectorFromSlice(data []int32) *SyncVector { return storage.SyncVectorFromSlice(data) }
