// Package config holds the process-wide configuration for quiver.
//
// There is deliberately very little here: a single debug toggle shared by all
// conversions in the process. The toggle is read once per compilation, never
// during interpretation, so flipping it mid-conversion cannot change behavior
// of an in-flight program. The cell is guarded by a reader/writer lock and is
// safe to read and write from any goroutine.
package config

import "sync"

// Configuration holds the process-wide settings.
type Configuration struct {
	// DebugPrintProgram logs compiled serialization and deserialization
	// programs at debug level. Intended for troubleshooting schema issues;
	// compilers read it once per compile call.
	DebugPrintProgram bool
}

var (
	mu      sync.RWMutex
	current Configuration
)

// Configure applies f to the shared configuration under the write lock.
//
// Usage:
//
//	config.Configure(func(c *config.Configuration) {
//	    c.DebugPrintProgram = true
//	})
func Configure(f func(*Configuration)) {
	mu.Lock()
	defer mu.Unlock()
	f(&current)
}

// Snapshot returns a copy of the current configuration.
func Snapshot() Configuration {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
