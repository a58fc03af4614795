package camconfig

import (
	"context"
	"sync"
	"time"

	"github.com/pion/logging"
)

// pendingResult is a boolean delivered once to any number of waiters.
type pendingResult struct {
	done chan struct{}
	once sync.Once
	ok   bool

	// waiters counts joined callers, guarded by the owner's lock.
	waiters int
}

func newPendingResult() *pendingResult {
	return &pendingResult{done: make(chan struct{})}
}

func (p *pendingResult) resolve(ok bool) {
	p.once.Do(func() {
		p.ok = ok
		close(p.done)
	})
}

// wait returns the result, or false when ctx ends first.
func (p *pendingResult) wait(ctx context.Context) bool {
	select {
	case <-p.done:
		return p.ok
	case <-ctx.Done():
		return false
	}
}

// watchdog retries reconfiguring at a fixed interval after a reconfigure
// found no usable camera, until a trial succeeds. Callers asking for a
// result all share the soonest trial.
type watchdog struct {
	interval time.Duration
	trial    func() bool
	metrics  *metrics
	log      logging.LeveledLogger

	mu      sync.Mutex
	running bool
	closed  bool
	next    *pendingResult
	kick    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newWatchdog(interval time.Duration, trial func() bool, m *metrics, log logging.LeveledLogger) *watchdog {
	return &watchdog{interval: interval, trial: trial, metrics: m, log: log}
}

// Start launches the retry loop unless it already runs.
func (w *watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.closed {
		return
	}
	w.running = true
	w.next = newPendingResult()
	w.kick = make(chan struct{}, 1)
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.loop(w.kick, w.stop)

	w.metrics.watchdogRunning.Set(1)
	w.log.Infof("resume watchdog started, retrying every %v", w.interval)
}

// Running reports whether the retry loop is active.
func (w *watchdog) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// NextResult returns the result of the soonest trial, the one in flight if
// any, and makes the loop run it without waiting for the interval. ok is
// false when the watchdog is not running.
func (w *watchdog) NextResult() (*pendingResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil, false
	}
	select {
	case w.kick <- struct{}{}:
	default:
	}
	return w.next, true
}

func (w *watchdog) loop(kick, stop chan struct{}) {
	defer w.wg.Done()

	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-kick:
		case <-timer.C:
		}

		// select picks at random among ready cases, so a kick or the
		// timer may win over a concurrent Close.
		w.mu.Lock()
		current := w.next
		if w.closed || current == nil {
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		ok := w.trial()

		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			current.resolve(ok)
			return
		}
		if ok {
			w.running = false
			w.next = nil
			w.metrics.watchdogRunning.Set(0)
			w.log.Infof("resume watchdog stopped, camera is back")
		} else {
			w.next = newPendingResult()
		}
		w.mu.Unlock()
		current.resolve(ok)
		if ok {
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.interval)
	}
}

// Close stops the loop, fails the pending result and waits for the loop
// to exit. The trial in flight, if any, must return on its own.
func (w *watchdog) Close() {
	w.mu.Lock()
	w.closed = true
	var next *pendingResult
	if w.running {
		close(w.stop)
		w.running = false
		next = w.next
		w.next = nil
		w.metrics.watchdogRunning.Set(0)
	}
	w.mu.Unlock()

	w.wg.Wait()
	if next != nil {
		next.resolve(false)
	}
}
