package device

import "sync"

var (
	currentMu sync.Mutex
	currentID = Host
)

// Current returns the active device context.
func Current() ID {
	currentMu.Lock()
	defer currentMu.Unlock()
	return currentID
}

// Use switches the active device context to id and returns a function that
// reinstates the previous context. Call the restore function on every exit
// path.
//
// Example:
//
//	defer device.Use(arg.DeviceID)()
//	total += arg.Value.Sum()
func Use(id ID) func() {
	currentMu.Lock()
	prev := currentID
	currentID = id
	currentMu.Unlock()
	return func() {
		currentMu.Lock()
		currentID = prev
		currentMu.Unlock()
	}
}
