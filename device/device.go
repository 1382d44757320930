// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides the public API for device identity, the active
// device context, and raw-byte allocators.
//
// The host is ordinary process memory and always has an allocator;
// accelerator devices are reached through allocators the execution driver
// registers. Copy operations take a Stream token that orders transfers
// issued on the same stream.
//
// Example:
//
//	restore := device.Use(arg.DeviceID)
//	defer restore()
//	// work against the descriptor's device
package device

import (
	"github.com/strand-ml/strand/internal/device"
)

// ID identifies a compute device. Host is process memory; non-negative
// values name accelerator devices.
type ID = device.ID

// Host is the CPU-side pseudo device.
const Host ID = device.Host

// Stream is an opaque ordering token for copy operations.
type Stream = device.Stream

// DefaultStream orders transfers that never asked for anything finer.
const DefaultStream Stream = device.DefaultStream

// Handle is an opaque reference to device-resident storage.
type Handle = device.Handle

// Allocator moves raw bytes between process memory and one device.
type Allocator = device.Allocator

// Use switches the active device context to id and returns a function that
// reinstates the previous context. Call the restore function on every exit
// path.
func Use(id ID) func() { return device.Use(id) }

// Current returns the active device context.
func Current() ID { return device.Current() }

// Register installs the Allocator that reaches device id.
func Register(id ID, a Allocator) { device.Register(id, a) }

// AllocatorFor returns the Allocator registered for id. The host always
// has one.
func AllocatorFor(id ID) (Allocator, bool) { return device.AllocatorFor(id) }
