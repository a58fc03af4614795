// Package camconfig decides which camera configuration to open, in which
// order to try alternatives when one fails, and serializes configuration
// changes against captures so the device is never opened twice or torn
// down mid-shot.
package camconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/camconfig/internal/logging"
	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/config"
	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/preference"
	"github.com/pion/camconfig/pkg/ptz"
	pionlogging "github.com/pion/logging"
)

// Operation is the holder of the camera.
type Operation int

// Operations. At most one of capturing and reconfiguring holds at a time.
const (
	OperationNone Operation = iota
	OperationCapturing
	OperationReconfiguring
)

func (o Operation) String() string {
	switch o {
	case OperationNone:
		return "none"
	case OperationCapturing:
		return "capturing"
	case OperationReconfiguring:
		return "reconfiguring"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Recorder pauses and resumes a video recording.
type Recorder interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Scheduler arbitrates the camera between captures and reconfigures.
type Scheduler struct {
	source    driver.CapabilitySource
	manager   *driver.Manager
	prefs     *preference.Store
	observers *event.Registry
	reconf    *Reconfigurer
	watchdog  *watchdog
	queue     *dropQueue
	recorder  Recorder
	reporter  ErrorReporter
	metrics   *metrics
	log       pionlogging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// held counts the camera holder, added when op leaves none while
	// not closed and done when it returns to none.
	held sync.WaitGroup

	mu          sync.Mutex
	op          Operation
	stopCapture context.CancelFunc
	pending     *pendingResult
	deferred    *[]driver.DeviceInfo
	closed      bool
}

// New creates a Scheduler driving backend.
func New(backend driver.Backend, opts ...SchedulerOption) *Scheduler {
	o := SchedulerOptions{
		watchdogInterval: config.DefaultWatchdogInterval,
		mode:             ModeConstraint{Mode: candidate.ModePhoto},
	}
	for _, opt := range opts {
		opt(&o)
	}

	observers := event.NewRegistry(o.observers...)
	prefOpts := []preference.Option{
		preference.WithObservers(observers),
		preference.WithScreenSize(o.screen),
		preference.WithLoggerFactory(o.loggerFactory),
	}
	if o.aspectOrder != nil {
		prefOpts = append(prefOpts, preference.WithAspectOrder(o.aspectOrder))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		source:    backend,
		manager:   driver.NewManager(backend),
		prefs:     preference.New(o.persist, prefOpts...),
		observers: observers,
		queue:     newDropQueue(),
		recorder:  o.recorder,
		reporter:  o.reporter,
		metrics:   newMetrics(o.registerer),
		log:       logging.NewLoggerFrom(o.loggerFactory, "camconfig.scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.reconf = newReconfigurer(backend, s.manager, s.prefs, observers, o.reporter, s.metrics,
		logging.NewLoggerFrom(o.loggerFactory, "camconfig.reconfigurer"))
	s.reconf.SetModeConstraint(o.mode)
	s.reconf.SetHasAudio(o.hasAudio)
	s.watchdog = newWatchdog(o.watchdogInterval, func() bool { return s.reconfigure(s.ctx) }, s.metrics,
		logging.NewLoggerFrom(o.loggerFactory, "camconfig.watchdog"))
	return s
}

// Preferences returns the candidate preference store.
func (s *Scheduler) Preferences() *preference.Store { return s.prefs }

// Reconfigurer returns the reconfigurer the scheduler drives.
func (s *Scheduler) Reconfigurer() *Reconfigurer { return s.reconf }

// AddObserver registers o and returns a function removing it.
func (s *Scheduler) AddObserver(o event.Observer) (remove func()) { return s.observers.Add(o) }

// Config returns the live configuration.
func (s *Scheduler) Config() (CameraConfig, bool) { return s.reconf.Config() }

// Operation returns the current holder of the camera.
func (s *Scheduler) Operation() Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op
}

// WatchdogRunning reports whether the resume watchdog is retrying.
func (s *Scheduler) WatchdogRunning() bool { return s.watchdog.Running() }

// SetSuspended sets the flag that aborts reconfigures, e.g. while the
// window is minimized.
func (s *Scheduler) SetSuspended(suspend bool) { s.reconf.SetSuspended(suspend) }

// SetModeConstraint sets the modes tried by the next reconfigure.
func (s *Scheduler) SetModeConstraint(mc ModeConstraint) { s.reconf.SetModeConstraint(mc) }

// SetDeviceID asks the next reconfigure to try device id first.
func (s *Scheduler) SetDeviceID(id string) { s.reconf.SetDeviceID(id) }

// PTZCapabilities returns the pan/tilt/zoom ranges of the live stream.
func (s *Scheduler) PTZCapabilities() (ptz.Capabilities, bool) { return s.reconf.PTZCapabilities() }

// PTZSettings returns the live pan/tilt/zoom settings.
func (s *Scheduler) PTZSettings() (ptz.Settings, bool) { return s.reconf.PTZSettings() }

// SetPTZ applies pan/tilt/zoom settings to the live stream.
func (s *Scheduler) SetPTZ(settings ptz.Settings) error {
	err := s.reconf.SetPTZ(settings)
	if err != nil && !errors.Is(err, ErrNoPTZ) {
		report(s.reporter, s.log, ErrorKindPTZ, SeverityWarning, err)
	}
	return err
}

// SetRotation sets the live sensor rotation.
func (s *Scheduler) SetRotation(r ptz.Rotation) error { return s.reconf.SetRotation(r) }

// StartCapture runs capture while holding the camera. The context passed
// to capture is canceled when a reconfigure asks the capture to stop. It
// fails with ErrOperationInProgress unless the camera is free.
func (s *Scheduler) StartCapture(ctx context.Context, capture func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.op != OperationNone {
		op := s.op
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOperationInProgress, op)
	}
	s.op = OperationCapturing
	s.held.Add(1)
	cctx, cancel := context.WithCancel(ctx)
	s.stopCapture = cancel
	s.mu.Unlock()

	id := uuid.NewString()
	s.log.Debugf("capture %s started", id)
	defer func() {
		cancel()
		s.finish()
		s.log.Debugf("capture %s finished", id)
	}()
	return capture(cctx)
}

// StopCapture asks the running capture to stop.
func (s *Scheduler) StopCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op == OperationCapturing && s.stopCapture != nil {
		s.stopCapture()
	}
}

// Reconfigure opens the best available configuration and reports whether
// one opened. Called while a capture runs, it asks the capture to stop and
// joins the single reconfigure that follows; every caller joining it gets
// the same result. While the resume watchdog retries, the result is the
// one of its soonest trial. ctx only bounds the wait.
func (s *Scheduler) Reconfigure(ctx context.Context) bool {
	if p, ok := s.watchdog.NextResult(); ok {
		return p.wait(ctx)
	}
	return s.reconfigure(ctx)
}

func (s *Scheduler) reconfigure(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.op == OperationNone {
		s.op = OperationReconfiguring
		s.held.Add(1)
		s.mu.Unlock()

		ok := s.reconfigureOnce()
		s.finish()
		return ok
	}

	if s.pending == nil {
		s.pending = newPendingResult()
	}
	p := s.pending
	p.waiters++
	if s.op == OperationCapturing && s.stopCapture != nil {
		s.stopCapture()
	}
	s.mu.Unlock()
	return p.wait(ctx)
}

// reconfigureOnce runs the reconfigurer while holding the camera. A panic
// counts as a failure.
func (s *Scheduler) reconfigureOnce() (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Errorf("reconfigure panicked: %v", p)
			s.metrics.reconfigures.WithLabelValues(outcomePanic).Inc()
			report(s.reporter, s.log, ErrorKindReconfigure, SeverityError, fmt.Errorf("reconfigure panicked: %v", p))
			ok = false
		}
	}()

	res := s.reconf.Start(s.ctx)
	s.metrics.reconfigures.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == OutcomeExhausted {
		s.watchdog.Start()
	}
	return res.OK()
}

// finish releases the camera. A deferred capability update is applied
// first, then pending reconfigure waiters get exactly one reconfigure.
// Events held by capability updates are delivered once the camera is free.
func (s *Scheduler) finish() {
	for {
		s.mu.Lock()
		if d := s.deferred; d != nil && !s.closed {
			s.deferred = nil
			s.mu.Unlock()
			s.reconf.applyCapability(s.ctx, *d)
			continue
		}
		s.deferred = nil
		s.stopCapture = nil
		p := s.pending
		s.pending = nil
		if p == nil || s.closed {
			s.op = OperationNone
			s.mu.Unlock()
			if p != nil {
				p.resolve(false)
			}
			s.observers.Deliver(s.reconf.takeEvents())
			s.held.Done()
			return
		}
		s.op = OperationReconfiguring
		s.wg.Add(1)
		s.log.Debugf("reconfiguring for %d waiting callers", p.waiters)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			ok := s.reconfigureOnce()
			p.resolve(ok)
			s.finish()
		}()
		return
	}
}

// UpdateCapability replaces the device capability. While the camera is
// held the update is deferred until it is released; only the latest
// deferred update is kept.
func (s *Scheduler) UpdateCapability(devices []driver.DeviceInfo) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.op != OperationNone {
		d := append([]driver.DeviceInfo(nil), devices...)
		s.deferred = &d
		s.mu.Unlock()
		return
	}
	s.op = OperationReconfiguring
	s.held.Add(1)
	s.mu.Unlock()

	s.reconf.applyCapability(s.ctx, devices)
	s.finish()
}

// Refresh enumerates the devices and applies them as in UpdateCapability.
func (s *Scheduler) Refresh(ctx context.Context) error {
	devices, err := s.source.EnumerateDevices(ctx)
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}
	s.UpdateCapability(devices)
	return nil
}

// SetRecordingPaused pauses or resumes the recording. Requests are served
// one at a time; of several requests arriving while one is served, only
// the latest runs and the others fail with ErrJobDropped.
func (s *Scheduler) SetRecordingPaused(ctx context.Context, paused bool) error {
	if s.recorder == nil {
		return ErrNoRecorder
	}
	return s.queue.Push(ctx, func(ctx context.Context) error {
		var err error
		if paused {
			err = s.recorder.Pause(ctx)
		} else {
			err = s.recorder.Resume(ctx)
		}
		if err != nil {
			report(s.reporter, s.log, ErrorKindRecording, SeverityError, err)
		}
		return err
	})
}

// Close stops the capture, fails pending waiters, stops the watchdog and
// the recording queue, waits for their goroutines and releases the stream.
// A running capture is asked to stop and Close waits until it returns.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.stopCapture
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.cancel()
	if stop != nil {
		stop()
	}
	if p != nil {
		p.resolve(false)
	}
	s.watchdog.Close()
	s.queue.Close()
	s.wg.Wait()
	s.held.Wait()
	return s.manager.Close()
}
