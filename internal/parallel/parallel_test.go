package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForRange(t *testing.T) {
	cfg := DefaultConfig()

	n := 1000
	seen := make([]bool, n)

	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			seen[i] = true
		}
	}, cfg)

	for i, ok := range seen {
		if !ok {
			t.Errorf("Index %d never visited", i)
		}
	}
}

func TestForRange_Empty(t *testing.T) {
	called := false
	ForRange(0, func(start, end int) {
		called = true
	}, DefaultConfig())
	if called {
		t.Error("Body ran for an empty range")
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Test that small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}

func BenchmarkForRange(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			ForRange(n, func(start, end int) {
				var local int64
				for i := start; i < end; i++ {
					local += int64(i)
				}
				atomic.AddInt64(&sum, local)
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			ForRange(n, func(start, end int) {
				var local int64
				for i := start; i < end; i++ {
					local += int64(i)
				}
				atomic.AddInt64(&sum, local)
			}, cfgSeq)
		}
	})
}
