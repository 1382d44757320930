// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package source provides the public API for data providers that yield
// batch descriptors.
//
// A Source produces one descriptor per Next call and reports exhaustion
// with io.EOF, after which Reset rewinds it for another epoch.
//
// Example:
//
//	enc, err := source.NewTikTokenEncoder("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	src, err := source.NewTextSource("train", enc, lines, 32, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
package source

import (
	"github.com/strand-ml/strand/internal/source"
)

// Source yields batch descriptors, one per Next call, with io.EOF at
// exhaustion.
type Source = source.Source

// Encoder turns text into the token ids an id-carrying descriptor holds.
type Encoder = source.Encoder

// TikTokenEncoder adapts the pkoukk/tiktoken-go BPE tokenizers.
type TikTokenEncoder = source.TikTokenEncoder

// TextSource yields id-carrying descriptors built from lines of text.
type TextSource = source.TextSource

// MatrixSource yields dense row batches from an in-memory table.
type MatrixSource = source.MatrixSource

// Interleave combines sources round-robin, stamping each descriptor with
// the index of the source that produced it.
type Interleave = source.Interleave

// NewTikTokenEncoder loads a tiktoken encoding by name, such as
// "cl100k_base" (GPT-4) or "p50k_base" (GPT-3).
func NewTikTokenEncoder(encodingName string) (*TikTokenEncoder, error) {
	return source.NewTikTokenEncoder(encodingName)
}

// NewTikTokenEncoderForModel loads the encoding a model was trained with,
// such as "gpt-4" or "text-embedding-ada-002".
func NewTikTokenEncoderForModel(modelName string) (*TikTokenEncoder, error) {
	return source.NewTikTokenEncoderForModel(modelName)
}

// NewTextSource builds a source named name over lines, yielding
// linesPerBatch lines per descriptor and stamping each descriptor with
// dataID.
func NewTextSource(name string, enc Encoder, lines []string, linesPerBatch, dataID int) (*TextSource, error) {
	return source.NewTextSource(name, enc, lines, linesPerBatch, dataID)
}

// NewMatrixSource builds a source named name over rows, yielding
// rowsPerBatch rows per descriptor and stamping each descriptor with
// dataID. All rows must share one width.
func NewMatrixSource(name string, rows [][]float32, rowsPerBatch, dataID int) (*MatrixSource, error) {
	return source.NewMatrixSource(name, rows, rowsPerBatch, dataID)
}

// NewInterleave combines sources in the given order.
func NewInterleave(sources ...Source) *Interleave {
	return source.NewInterleave(sources...)
}
