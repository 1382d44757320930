package batch

import (
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"
)

// stallWarning holds the opt-in wait diagnostic threshold in nanoseconds.
// Zero disables it.
var stallWarning atomic.Int64

// SetStallWarning arms a diagnostic for every subsequent wait: a wait still
// blocked after d logs a warning naming the blocked direction and the
// counter state. The wait itself is unaffected; a misconfigured fan degree
// still blocks forever. Zero or negative d turns the diagnostic off.
func SetStallWarning(d time.Duration) {
	if d < 0 {
		d = 0
	}
	stallWarning.Store(int64(d))
}

// gate pairs a mutex with a lazily created condition variable. The counter
// it guards lives on the Argument so that copy semantics stay in one place;
// every wait and notify for a descriptor serializes through its own gate,
// and descriptors never share one.
type gate struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// run applies f under the gate's lock without waking anyone.
func (g *gate) run(f func()) {
	g.mu.Lock()
	f()
	g.mu.Unlock()
}

// signal applies update under the lock, then wakes every waiter.
func (g *gate) signal(update func()) {
	g.mu.Lock()
	if g.cond == nil {
		g.cond = sync.NewCond(&g.mu)
	}
	update()
	cond := g.cond
	g.mu.Unlock()
	cond.Broadcast()
}

// wait blocks until ready() holds, then applies then() before releasing
// the lock.
func (g *gate) wait(ready func() bool, then func()) {
	g.mu.Lock()
	if g.cond == nil {
		g.cond = sync.NewCond(&g.mu)
	}
	for !ready() {
		g.cond.Wait()
	}
	then()
	g.mu.Unlock()
}

// NotifyValueReady marks Value fully written and releases every consumer.
// The producing layer calls it exactly once per pass, after its last write
// to Value; the gate's lock publishes those writes to the waiters.
func (a *Argument) NotifyValueReady() {
	a.valueGate.signal(func() { a.valueCount = a.allCount })
}

// WaitValueReady blocks until the producer has notified, then consumes one
// of the allCount read entitlements. Each consumer calls it exactly once
// per pass; a consumer arriving after the notify returns immediately.
func (a *Argument) WaitValueReady() {
	defer a.stallTimer("value")()
	a.valueGate.wait(
		func() bool { return a.valueCount != 0 },
		func() { a.valueCount-- })
}

// NotifyGradReady records one gradient contribution and wakes the producer.
// Each of the allCount contributors calls it exactly once per pass, after
// accumulating its share into Grad.
func (a *Argument) NotifyGradReady() {
	a.gradGate.signal(func() { a.gradCount++ })
}

// WaitGradReady blocks until all allCount contributions are in, then resets
// the counter so the descriptor is armed for the next pass. The producing
// layer calls it exactly once per pass.
func (a *Argument) WaitGradReady() {
	defer a.stallTimer("grad")()
	a.gradGate.wait(
		func() bool { return a.gradCount == a.allCount },
		func() { a.gradCount = 0 })
}

// stallTimer starts the optional stall diagnostic for one wait and returns
// the function that disarms it. The log fires from a timer goroutine, so it
// reads the counters through the gates rather than assuming any lock.
func (a *Argument) stallTimer(what string) func() {
	d := time.Duration(stallWarning.Load())
	if d <= 0 {
		return func() {}
	}
	t := time.AfterFunc(d, func() {
		v, g := a.syncCounts()
		klog.Warningf("batch: %s wait blocked for %v (allCount=%d valueCount=%d gradCount=%d); notify calls and fan degree disagree",
			what, d, a.allCount, v, g)
	})
	return func() { t.Stop() }
}

// syncCounts snapshots both counters.
func (a *Argument) syncCounts() (valueCount, gradCount int) {
	a.valueGate.run(func() { valueCount = a.valueCount })
	a.gradGate.run(func() { gradCount = a.gradCount })
	return valueCount, gradCount
}
