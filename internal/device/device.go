// Package device identifies where batch storage lives and routes raw byte
// transfers to it. The host is ordinary process memory; accelerator devices
// are reached through registered Allocators.
package device

import "fmt"

// ID identifies a compute device. Host is process memory; non-negative
// values name accelerator devices registered by the execution driver.
type ID int

// Host is the CPU-side pseudo device.
const Host ID = -1

// IsHost reports whether the ID refers to process memory.
func (id ID) IsHost() bool { return id < 0 }

// String returns a human-readable device name.
func (id ID) String() string {
	if id.IsHost() {
		return "host"
	}
	return fmt.Sprintf("device%d", int(id))
}

// Stream is an opaque ordering token for copy operations. Transfers issued
// on one stream complete in issue order. The host path is synchronous and
// treats the token as advisory.
type Stream int

// DefaultStream orders transfers that never asked for anything finer.
const DefaultStream Stream = 0
