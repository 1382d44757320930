//go:build windows

// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides a WebGPU-backed allocator for accelerator-side
// batch storage, using go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO
// WebGPU bindings.
//
// Example:
//
//	import (
//	    "github.com/strand-ml/strand/device"
//	    "github.com/strand-ml/strand/device/webgpu"
//	)
//
//	func main() {
//	    alloc, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer alloc.Close()
//	    device.Register(0, alloc)
//	}
package webgpu

import (
	"github.com/strand-ml/strand/internal/device/webgpu"
)

// Allocator moves byte blocks between host memory and one WebGPU device.
type Allocator = webgpu.Allocator

// New brings up a WebGPU instance, adapter, device and queue.
//
// Returns an error if WebGPU is not available or initialization fails.
// Call Close when done to free GPU resources.
func New() (*Allocator, error) {
	return webgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// It attempts to bring up a WebGPU adapter to verify that a compatible GPU
// and drivers are present, which makes graceful host-memory fallback easy:
//
//	if webgpu.IsAvailable() {
//	    alloc, _ := webgpu.New()
//	    device.Register(0, alloc)
//	}
func IsAvailable() bool {
	return webgpu.IsAvailable()
}
