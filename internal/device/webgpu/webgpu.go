//go:build windows

// Package webgpu provides a device.Allocator backed by a WebGPU device,
// using go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU
// bindings. Register one under a device id to give SyncVector and the copy
// operations a real accelerator to mirror onto:
//
//	alloc, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer alloc.Close()
//	device.Register(0, alloc)
package webgpu

import (
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/strand-ml/strand/internal/device"
)

// Allocator moves byte blocks between host memory and one WebGPU device.
// Allocations are storage buffers so compute kernels can bind them; both
// upload and read-back go through transient staging buffers because storage
// buffers cannot be mapped directly.
type Allocator struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	mu      sync.Mutex
	buffers map[*wgpu.Buffer]uint64 // live allocations and their sizes
}

var _ device.Allocator = (*Allocator)(nil)

// New brings up a WebGPU instance, adapter, device and queue.
// Returns an error if WebGPU is not available or initialization fails.
func New() (a *Allocator, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			a = nil
			err = errors.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.Wrap(adapterErr, "webgpu: request adapter")
	}

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(deviceErr, "webgpu: request device")
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: no queue")
	}

	return &Allocator{
		instance: instance,
		adapter:  adapter,
		device:   dev,
		queue:    queue,
		buffers:  make(map[*wgpu.Buffer]uint64),
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// Alloc reserves size bytes of storage-usable memory on the device.
func (a *Allocator) Alloc(size int) (device.Handle, error) {
	if size < 0 {
		return nil, errors.Errorf("webgpu: alloc: negative size %d", size)
	}
	buf := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  uint64(size),
	})
	a.mu.Lock()
	a.buffers[buf] = uint64(size)
	a.mu.Unlock()
	return buf, nil
}

// Write copies src into the allocation. len(src) must equal the allocation
// size.
func (a *Allocator) Write(h device.Handle, src []byte) error {
	buf, size, err := a.lookup(h)
	if err != nil {
		return errors.Wrap(err, "webgpu: write")
	}
	if uint64(len(src)) != size {
		return errors.Errorf("webgpu: write: %d bytes into %d-byte allocation", len(src), size)
	}
	if size == 0 {
		return nil
	}

	// Upload through a buffer mapped at creation, then copy on-device.
	staging := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), src)
	staging.Unmap()

	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, buf, 0, size)
	a.queue.Submit(encoder.Finish(nil))
	return nil
}

// Read copies the allocation into dst. len(dst) must equal the allocation
// size.
func (a *Allocator) Read(h device.Handle, dst []byte) error {
	buf, size, err := a.lookup(h)
	if err != nil {
		return errors.Wrap(err, "webgpu: read")
	}
	if uint64(len(dst)) != size {
		return errors.Errorf("webgpu: read: %d bytes from %d-byte allocation", len(dst), size)
	}
	if size == 0 {
		return nil
	}

	// Staging buffer for reading (MAP_READ | COPY_DST); storage buffers
	// can't be mapped directly.
	staging := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(buf, 0, staging, 0, size)
	a.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(a.device, wgpu.MapModeRead, 0, size); err != nil {
		return errors.Wrap(err, "webgpu: read: map staging buffer")
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(dst, unsafe.Slice((*byte)(mappedPtr), size))
	staging.Unmap()
	return nil
}

// Free releases the allocation. Freeing a foreign or already-freed handle
// is a no-op.
func (a *Allocator) Free(h device.Handle) {
	buf, ok := h.(*wgpu.Buffer)
	if !ok || buf == nil {
		return
	}
	a.mu.Lock()
	_, live := a.buffers[buf]
	delete(a.buffers, buf)
	a.mu.Unlock()
	if live {
		buf.Release()
	}
}

// Close releases every live allocation and the WebGPU objects.
// The allocator must not be used afterwards.
func (a *Allocator) Close() {
	a.mu.Lock()
	for buf := range a.buffers {
		buf.Release()
	}
	a.buffers = nil
	a.mu.Unlock()

	if a.queue != nil {
		a.queue.Release()
		a.queue = nil
	}
	if a.device != nil {
		a.device.Release()
		a.device = nil
	}
	if a.adapter != nil {
		a.adapter.Release()
		a.adapter = nil
	}
	if a.instance != nil {
		a.instance.Release()
		a.instance = nil
	}
}

func (a *Allocator) lookup(h device.Handle) (*wgpu.Buffer, uint64, error) {
	buf, ok := h.(*wgpu.Buffer)
	if !ok {
		return nil, 0, errors.Errorf("foreign handle %T", h)
	}
	a.mu.Lock()
	size, live := a.buffers[buf]
	a.mu.Unlock()
	if !live {
		return nil, 0, errors.New("handle already freed")
	}
	return buf, size, nil
}
