package device

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Handle is an opaque reference to device-resident storage. Its concrete
// type belongs to the Allocator that produced it.
type Handle any

// Allocator moves raw bytes between process memory and one device.
type Allocator interface {
	// Alloc reserves size bytes on the device.
	Alloc(size int) (Handle, error)
	// Write copies src into the allocation. len(src) must equal the
	// allocation size.
	Write(h Handle, src []byte) error
	// Read copies the allocation into dst. len(dst) must equal the
	// allocation size.
	Read(h Handle, dst []byte) error
	// Free releases the allocation.
	Free(h Handle)
}

var (
	regMu      sync.RWMutex
	allocators = make(map[ID]Allocator)
)

// Register installs the Allocator that reaches device id. Registering the
// same id again replaces the earlier Allocator.
func Register(id ID, a Allocator) {
	regMu.Lock()
	allocators[id] = a
	regMu.Unlock()
	klog.V(1).Infof("device: registered allocator for %s", id)
}

// AllocatorFor returns the Allocator registered for id. The host always
// has one.
func AllocatorFor(id ID) (Allocator, bool) {
	if id.IsHost() {
		return hostAllocator{}, true
	}
	regMu.RLock()
	defer regMu.RUnlock()
	a, ok := allocators[id]
	return a, ok
}

// hostAllocator keeps allocations in ordinary heap slices.
type hostAllocator struct{}

func (hostAllocator) Alloc(size int) (Handle, error) {
	if size < 0 {
		return nil, errors.Errorf("alloc: negative size %d", size)
	}
	return make([]byte, size), nil
}

func (hostAllocator) Write(h Handle, src []byte) error {
	dst, ok := h.([]byte)
	if !ok {
		return errors.Errorf("write: foreign handle %T", h)
	}
	if len(src) != len(dst) {
		return errors.Errorf("write: %d bytes into %d-byte allocation", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func (hostAllocator) Read(h Handle, dst []byte) error {
	src, ok := h.([]byte)
	if !ok {
		return errors.Errorf("read: foreign handle %T", h)
	}
	if len(dst) != len(src) {
		return errors.Errorf("read: %d bytes from %d-byte allocation", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

func (hostAllocator) Free(Handle) {}
