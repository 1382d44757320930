// Package storage provides the shared, reference-counted storage handles a
// batch descriptor bundles: dense float32 matrices, int32 vectors, string
// rows, opaque per-row payloads, and a host/device mirrored vector.
//
// Handles derived from one another (views, clones) share one buffer;
// writes through any of them are visible to all. The reference count is
// what lets Resize tell a private buffer it may reuse from a shared one it
// must leave alone.
package storage

import "sync/atomic"

// buffer is a reference-counted shared block. Each handle that views the
// block retains it; the backing slice is dropped when the last handle
// releases. refCount == 1 is what permits in-place reuse.
type buffer[T any] struct {
	data     []T
	refCount atomic.Int32
}

func newBuffer[T any](n int) *buffer[T] {
	b := &buffer[T]{data: make([]T, n)}
	b.refCount.Store(1)
	return b
}

func (b *buffer[T]) retain() { b.refCount.Add(1) }

func (b *buffer[T]) release() {
	if b.refCount.Add(-1) == 0 {
		b.data = nil
	}
}

func (b *buffer[T]) isUnique() bool { return b.refCount.Load() == 1 }
