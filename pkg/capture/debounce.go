package capture

import (
	"sync"
	"time"
)

// debounce is a single-slot reschedulable timer. Each schedule call
// replaces whatever was armed before, so at most one fire is ever
// outstanding and cancel races stay confined to this struct.
type debounce struct {
	mu    sync.Mutex
	timer *time.Timer
}

// schedule arms the timer, replacing any previously armed fire
func (d *debounce) schedule(delay time.Duration, fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, fire)
}

// cancel disarms the timer. Returns false when the fire already ran or
// nothing was armed.
func (d *debounce) cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
