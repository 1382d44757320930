// Package parallel splits index ranges across worker goroutines for the
// row-gather and copy loops of batch assembly.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how loops split across goroutines.
type Config struct {
	Enabled      bool // run chunks on worker goroutines
	NumWorkers   int  // goroutines to spread chunks over
	MinChunkSize int  // below this many items, run inline
}

// DefaultConfig sizes workers to the machine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For runs f(i) for every i in [0, n), chunked across workers when the
// range is large enough. Bodies must not depend on iteration order and
// must write to disjoint destinations.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForRange runs f(start, end) once per chunk, letting the body amortize
// per-item setup across the chunk. Same disjointness contract as For.
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || n < cfg.MinChunkSize {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}
