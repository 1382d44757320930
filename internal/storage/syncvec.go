package storage

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/strand-ml/strand/internal/device"
)

// syncState tracks which side of a mirrored vector is current.
type syncState int

const (
	hostAhead   syncState = iota // host copy is newer
	inSync                       // both copies match
	deviceAhead                  // device copy is newer
)

// SyncVector is an int32 vector mirrored between host memory and one
// device allocation. Reads and writes go through the host side; the
// device mirror is refreshed lazily. Sequence boundary vectors use it so
// the same boundaries can feed host bookkeeping and device kernels.
//
// A SyncVector is shared between descriptors as a plain pointer; it is
// not reference counted.
type SyncVector struct {
	host   []int32
	state  syncState
	dev    device.ID
	handle device.Handle
	alloc  device.Allocator
}

// NewSyncVector allocates an n-element vector with no device mirror yet.
func NewSyncVector(n int) *SyncVector {
	return &SyncVector{host: make([]int32, n), state: hostAhead, dev: device.Host}
}

// SyncVectorFromSlice copies data into a new vector.
func SyncVectorFromSlice(data []int32) *SyncVector {
	v := NewSyncVector(len(data))
	copy(v.host, data)
	return v
}

// Len returns the element count.
func (v *SyncVector) Len() int { return len(v.host) }

// HostData materializes the vector on host and returns it without
// copying. Treat the slice as read-only; use MutableHostData before
// writing through it.
func (v *SyncVector) HostData() []int32 {
	if v.state == deviceAhead {
		if err := v.alloc.Read(v.handle, int32Bytes(v.host)); err != nil {
			panic("syncvector: device read: " + err.Error())
		}
		v.state = inSync
	}
	return v.host
}

// MutableHostData is HostData plus invalidation of the device mirror.
func (v *SyncVector) MutableHostData() []int32 {
	d := v.HostData()
	v.state = hostAhead
	return d
}

// DeviceSync ensures the mirror on dev holds the host contents and
// returns its handle for kernels to consume.
func (v *SyncVector) DeviceSync(dev device.ID) (device.Handle, error) {
	alloc, ok := device.AllocatorFor(dev)
	if !ok {
		return nil, errors.Errorf("no allocator registered for %s", dev)
	}
	if v.handle != nil && v.dev == dev && v.state != hostAhead {
		return v.handle, nil
	}
	if v.handle != nil && v.dev != dev {
		v.dropMirror()
	}
	if v.handle == nil {
		h, err := alloc.Alloc(len(v.host) * 4)
		if err != nil {
			return nil, errors.Wrap(err, "alloc device mirror")
		}
		v.handle = h
		v.alloc = alloc
		v.dev = dev
	}
	if err := v.alloc.Write(v.handle, int32Bytes(v.host)); err != nil {
		return nil, errors.Wrap(err, "write device mirror")
	}
	v.state = inSync
	return v.handle, nil
}

// MarkDeviceMutated records that a kernel wrote through the device
// handle, so the next host read refreshes from the device first.
func (v *SyncVector) MarkDeviceMutated() {
	if v.handle != nil {
		v.state = deviceAhead
	}
}

// Resize sets the length to n and drops the device mirror. Contents after
// a resize are unspecified.
func (v *SyncVector) Resize(n int) {
	if n <= cap(v.host) {
		v.host = v.host[:n]
	} else {
		v.host = make([]int32, n)
	}
	v.dropMirror()
	v.state = hostAhead
}

// CopyFromInts replaces the contents with data.
func (v *SyncVector) CopyFromInts(data []int32) {
	v.Resize(len(data))
	copy(v.host, data)
}

// Clone returns an independent vector holding the same host contents. The
// device mirror is not cloned.
func (v *SyncVector) Clone() *SyncVector {
	c := NewSyncVector(v.Len())
	copy(c.host, v.HostData())
	return c
}

// Release frees the device mirror. The host contents remain usable.
func (v *SyncVector) Release() {
	v.dropMirror()
	v.state = hostAhead
}

func (v *SyncVector) dropMirror() {
	if v.handle != nil {
		v.alloc.Free(v.handle)
		v.handle = nil
		v.alloc = nil
		v.dev = device.Host
	}
}

// int32Bytes reinterprets v as its underlying bytes without copying.
func int32Bytes(v []int32) []byte {
	if len(v) == 0 {
		return nil
	}
	//nolint:gosec // zero-copy reinterpret, length derived from len(v)
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}
