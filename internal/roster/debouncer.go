package roster

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Debouncer runs fn once the trigger has been quiet for delay.
type Debouncer struct {
	mu      sync.Mutex
	clock   clock.WithDelayedExecution
	delay   time.Duration
	fn      func()
	timer   clock.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(clk clock.WithDelayedExecution, delay time.Duration, fn func()) *Debouncer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Debouncer{clock: clk, delay: delay, fn: fn}
}

// Trigger (re)arms the timer, discarding any earlier deadline.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	// The callback hops to its own goroutine: fake clocks invoke it while holding their lock.
	d.timer = d.clock.AfterFunc(d.delay, func() { go d.fire(gen) })
}

// Cancel disarms a pending deadline without stopping the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
}

// Stop disarms the timer permanently.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.disarm()
}

// Armed reports whether a deadline is pending.
func (d *Debouncer) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) disarm() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
