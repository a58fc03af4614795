package camconfig

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/driver/videotest"
	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/prop"
	"github.com/pion/camconfig/pkg/ptz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photoCam(id string, facing driver.Facing) driver.DeviceInfo {
	return driver.DeviceInfo{
		ID:                 id,
		Facing:             facing,
		PhotoResolutions:   []prop.Resolution{{Width: 1280, Height: 960}},
		PreviewResolutions: []prop.Resolution{{Width: 640, Height: 480}},
	}
}

type reported struct {
	kind     ErrorKind
	severity Severity
	err      error
}

type reportLog struct {
	mu      sync.Mutex
	reports []reported
}

func (l *reportLog) Report(kind ErrorKind, severity Severity, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, reported{kind, severity, err})
}

func (l *reportLog) get() []reported {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]reported(nil), l.reports...)
}

func attemptsOn(b *videotest.Backend, id string) int {
	n := 0
	for _, cs := range b.Attempts() {
		if cs.DeviceID == nil {
			continue
		}
		if v, ok := cs.DeviceID.Value(); ok && v == id {
			n++
		}
	}
	return n
}

func metricValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetGauge().GetValue() + m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestReconfigure(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	s := New(b)
	defer s.Close()

	require.True(t, s.Reconfigure(context.Background()))

	cfg, ok := s.Config()
	require.True(t, ok)
	assert.Equal(t, "cam", cfg.DeviceID)
	assert.Equal(t, driver.FacingEnvironment, cfg.Facing)
	assert.Equal(t, candidate.ModePhoto, cfg.Mode)
	assert.Equal(t, prop.Media{DeviceID: "cam", Width: 640, Height: 480, FrameRate: 30}, cfg.Settings)
	assert.Equal(t, PTZNone, cfg.PTZ)
	assert.NotEmpty(t, cfg.StreamID)
	assert.Equal(t, PhaseOpen, s.Reconfigurer().Phase())
	assert.Equal(t, OperationNone, s.Operation())
	assert.Equal(t, 1, b.Live())

	// Reopening releases the previous stream first.
	require.True(t, s.Reconfigure(context.Background()))
	assert.Equal(t, 1, b.Live())
	assert.Equal(t, 1, b.MaxLive())
}

func TestReconfigureCoalescedDuringCapture(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	s := New(b)
	defer s.Close()
	ctx := context.Background()

	require.True(t, s.Reconfigure(ctx))
	before, _ := s.Config()
	attempts := len(b.Attempts())

	started := make(chan struct{})
	release := make(chan struct{})
	captured := make(chan error, 1)
	go func() {
		captured <- s.StartCapture(ctx, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			<-release
			return nil
		})
	}()
	<-started
	assert.Equal(t, OperationCapturing, s.Operation())

	const n = 5
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() { results <- s.Reconfigure(ctx) }()
	}
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pending != nil && s.pending.waiters == n
	})
	close(release)

	require.NoError(t, <-captured)
	for i := 0; i < n; i++ {
		assert.True(t, <-results)
	}
	assert.Equal(t, attempts+1, len(b.Attempts()))

	after, ok := s.Config()
	require.True(t, ok)
	assert.Equal(t, before.DeviceID, after.DeviceID)
	assert.Equal(t, before.Settings, after.Settings)
	assert.NotEqual(t, before.StreamID, after.StreamID)
	waitFor(t, func() bool { return s.Operation() == OperationNone })
}

func TestCoalescedReconfigureFailure(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	s := New(b, WithWatchdogInterval(time.Hour))
	defer s.Close()
	ctx := context.Background()

	require.True(t, s.Reconfigure(ctx))

	started := make(chan struct{})
	release := make(chan struct{})
	captured := make(chan error, 1)
	go func() {
		captured <- s.StartCapture(ctx, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			<-release
			return nil
		})
	}()
	<-started

	const n = 3
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() { results <- s.Reconfigure(ctx) }()
	}
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pending != nil && s.pending.waiters == n
	})
	b.FailAlways("cam", errors.New("sensor fault"))
	close(release)

	require.NoError(t, <-captured)
	for i := 0; i < n; i++ {
		assert.False(t, <-results)
	}
	assert.True(t, s.WatchdogRunning())
	assert.Equal(t, PhaseExhausted, s.Reconfigurer().Phase())
	_, ok := s.Config()
	assert.False(t, ok)
}

func TestStartCaptureBusy(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	s := New(b)
	defer s.Close()
	ctx := context.Background()

	boom := errors.New("shutter failed")
	err := s.StartCapture(ctx, func(ctx context.Context) error {
		err := s.StartCapture(ctx, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrOperationInProgress)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OperationNone, s.Operation())
}

func TestExternalDeviceGone(t *testing.T) {
	b := videotest.New(photoCam("usb", driver.FacingExternal), photoCam("back", driver.FacingEnvironment))
	b.FailAlways("usb", &availability.OverconstrainedError{Constraint: prop.ConstraintDeviceID})
	reports := &reportLog{}
	s := New(b, WithReporter(reports))
	defer s.Close()

	require.True(t, s.Reconfigure(context.Background()))

	cfg, _ := s.Config()
	assert.Equal(t, "back", cfg.DeviceID)
	assert.Empty(t, reports.get())
	assert.Equal(t, 1, attemptsOn(b, "usb"))
}

func TestStartFailureTriesNextCandidate(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingUser))
	b.FailNext("cam", &availability.OverconstrainedError{Constraint: prop.ConstraintDeviceID})
	reports := &reportLog{}
	s := New(b, WithReporter(reports))
	defer s.Close()

	require.True(t, s.Reconfigure(context.Background()))

	cfg, _ := s.Config()
	assert.Equal(t, "cam", cfg.DeviceID)
	assert.Equal(t, candidate.ModeVideo, cfg.Mode)
	rs := reports.get()
	require.Len(t, rs, 1)
	assert.Equal(t, ErrorKindStartCamera, rs[0].kind)
	assert.Equal(t, 2, attemptsOn(b, "cam"))
}

func TestExhaustedStartsWatchdog(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	b.FailAlways("cam", errors.New("sensor fault"))
	reg := prometheus.NewRegistry()
	reports := &reportLog{}
	s := New(b, WithWatchdogInterval(time.Hour), WithRegisterer(reg), WithReporter(reports))
	defer s.Close()
	ctx := context.Background()

	require.False(t, s.Reconfigure(ctx))
	assert.True(t, s.WatchdogRunning())
	assert.Equal(t, PhaseExhausted, s.Reconfigurer().Phase())
	assert.NotEmpty(t, reports.get())
	assert.Equal(t, 1.0, metricValue(t, reg, "camconfig_reconfigure_total", "outcome", "exhausted"))
	assert.Equal(t, 1.0, metricValue(t, reg, "camconfig_watchdog_running", "", ""))

	// A manual reconfigure observes the next watchdog trial.
	attempts := len(b.Attempts())
	require.False(t, s.Reconfigure(ctx))
	assert.Greater(t, len(b.Attempts()), attempts)
	assert.True(t, s.WatchdogRunning())

	b.FailAlways("cam", nil)
	require.True(t, s.Reconfigure(ctx))
	waitFor(t, func() bool { return !s.WatchdogRunning() })
	assert.Equal(t, 0.0, metricValue(t, reg, "camconfig_watchdog_running", "", ""))
	assert.Equal(t, 1.0, metricValue(t, reg, "camconfig_reconfigure_total", "outcome", "success"))
	assert.Equal(t, 1.0, metricValue(t, reg, "camconfig_open_attempts_total", "result", "success"))
}

func TestDeviceOrder(t *testing.T) {
	b := videotest.New(
		photoCam("front", driver.FacingUser),
		photoCam("back", driver.FacingEnvironment),
		photoCam("wide", driver.FacingEnvironment),
	)
	s := New(b)
	defer s.Close()
	ctx := context.Background()

	require.True(t, s.Reconfigure(ctx))
	cfg, _ := s.Config()
	assert.Equal(t, "front", cfg.DeviceID)

	s.SetDeviceID("wide")
	require.True(t, s.Reconfigure(ctx))
	cfg, _ = s.Config()
	assert.Equal(t, "wide", cfg.DeviceID)

	// The last opened device stays first once the request is cleared.
	s.SetDeviceID("")
	require.True(t, s.Reconfigure(ctx))
	cfg, _ = s.Config()
	assert.Equal(t, "wide", cfg.DeviceID)
}

func TestBusyDeviceRecheck(t *testing.T) {
	b := videotest.New(photoCam("front", driver.FacingUser), photoCam("back", driver.FacingEnvironment))
	b.SetBusy("front", true)
	reports := &reportLog{}
	s := New(b, WithReporter(reports))
	defer s.Close()
	ctx := context.Background()

	require.True(t, s.Reconfigure(ctx))
	cfg, _ := s.Config()
	assert.Equal(t, "back", cfg.DeviceID)
	assert.Empty(t, reports.get())
	assert.Equal(t, 1, attemptsOn(b, "front"))

	// Still busy: skipped without an open attempt.
	s.SetDeviceID("front")
	require.True(t, s.Reconfigure(ctx))
	assert.Equal(t, 1, attemptsOn(b, "front"))

	b.SetBusy("front", false)
	require.True(t, s.Reconfigure(ctx))
	cfg, _ = s.Config()
	assert.Equal(t, "front", cfg.DeviceID)
}

func TestSuspended(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	reg := prometheus.NewRegistry()
	s := New(b, WithRegisterer(reg))
	defer s.Close()

	s.SetSuspended(true)
	assert.False(t, s.Reconfigure(context.Background()))
	assert.False(t, s.WatchdogRunning())
	assert.Empty(t, b.Attempts())
	assert.Equal(t, PhaseIdle, s.Reconfigurer().Phase())
	assert.Equal(t, 1.0, metricValue(t, reg, "camconfig_reconfigure_total", "outcome", "suspended"))

	s.SetSuspended(false)
	assert.True(t, s.Reconfigure(context.Background()))
}

func TestDigitalPTZ(t *testing.T) {
	d := photoCam("cam", driver.FacingEnvironment)
	d.ActiveArray = image.Rect(0, 0, 4000, 3000)
	b := videotest.New(d)
	s := New(b)
	defer s.Close()

	require.True(t, s.Reconfigure(context.Background()))
	cfg, _ := s.Config()
	require.Equal(t, PTZDigital, cfg.PTZ)

	streams := b.Streams()
	live := streams[len(streams)-1]
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 4000, 3000)}, live.CropRegions())

	caps, ok := s.PTZCapabilities()
	require.True(t, ok)
	assert.Equal(t, float64(ptz.DefaultMaxZoom), caps.Zoom.Max)

	require.NoError(t, s.SetPTZ(ptz.Settings{Zoom: 2}))
	regions := live.CropRegions()
	require.Len(t, regions, 2)
	assert.Equal(t, 2000, regions[1].Dx())
	assert.Equal(t, 1500, regions[1].Dy())

	settings, _ := s.PTZSettings()
	assert.Equal(t, 2.0, settings.Zoom)
}

func TestPTZDisabled(t *testing.T) {
	hw := photoCam("hw", driver.FacingEnvironment)
	hw.PTZ.Hardware = true
	b := videotest.New(hw)
	s := New(b)
	defer s.Close()
	ctx := context.Background()

	require.True(t, s.Reconfigure(ctx))
	cfg, _ := s.Config()
	assert.Equal(t, PTZHardware, cfg.PTZ)
	assert.ErrorIs(t, s.SetPTZ(ptz.Settings{Zoom: 2}), ErrNoPTZ)

	scan := photoCam("scan", driver.FacingEnvironment)
	scan.ActiveArray = image.Rect(0, 0, 4000, 3000)
	b.SetDevices(scan)
	require.NoError(t, s.Refresh(ctx))
	s.SetModeConstraint(ModeConstraint{Exact: true, Mode: candidate.ModeScan})
	require.True(t, s.Reconfigure(ctx))
	cfg, _ = s.Config()
	assert.Equal(t, candidate.ModeScan, cfg.Mode)
	assert.Equal(t, PTZNone, cfg.PTZ)
}

func TestDeferredCapability(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	var (
		mu      sync.Mutex
		updates [][]driver.DeviceInfo
	)
	s := New(b, WithObserver(event.ObserverFunc(func(e event.Event) {
		if e.Kind != event.UpdateCapability {
			return
		}
		mu.Lock()
		updates = append(updates, e.Payload.([]driver.DeviceInfo))
		mu.Unlock()
	})))
	defer s.Close()
	ctx := context.Background()
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(updates)
	}

	require.True(t, s.Reconfigure(ctx))
	require.Equal(t, 1, count())

	err := s.StartCapture(ctx, func(context.Context) error {
		s.UpdateCapability([]driver.DeviceInfo{photoCam("a", driver.FacingUser)})
		s.UpdateCapability([]driver.DeviceInfo{photoCam("b", driver.FacingUser)})
		assert.Equal(t, 1, count())
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, 2, count())
	mu.Lock()
	last := updates[1]
	mu.Unlock()
	require.Len(t, last, 1)
	assert.Equal(t, "b", last[0].ID)
	assert.True(t, s.Preferences().HasDevice("b"))
	assert.Equal(t, OperationNone, s.Operation())

	s.UpdateCapability([]driver.DeviceInfo{photoCam("c", driver.FacingUser)})
	assert.Equal(t, 3, count())
}

func TestCapabilityObserverReconfigures(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	var (
		s       *Scheduler
		results = make(chan bool, 1)
	)
	s = New(b, WithObserver(event.ObserverFunc(func(e event.Event) {
		if e.Kind == event.UpdateCapability {
			assert.Equal(t, OperationNone, s.Operation())
			results <- s.Reconfigure(context.Background())
		}
	})))
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.UpdateCapability([]driver.DeviceInfo{photoCam("cam", driver.FacingEnvironment)})
	}()
	waitFor(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})

	assert.True(t, <-results)
	cfg, ok := s.Config()
	require.True(t, ok)
	assert.Equal(t, "cam", cfg.DeviceID)
	assert.Equal(t, OperationNone, s.Operation())
}

type panicBackend struct {
	*videotest.Backend
}

func (panicBackend) OpenStream(context.Context, prop.ConstraintSet) (driver.Stream, error) {
	panic("driver crashed")
}

func TestReconfigurePanic(t *testing.T) {
	reports := &reportLog{}
	reg := prometheus.NewRegistry()
	s := New(panicBackend{videotest.New(photoCam("cam", driver.FacingEnvironment))},
		WithReporter(reports), WithRegisterer(reg))
	defer s.Close()

	assert.False(t, s.Reconfigure(context.Background()))
	assert.Equal(t, OperationNone, s.Operation())
	rs := reports.get()
	require.Len(t, rs, 1)
	assert.Equal(t, ErrorKindReconfigure, rs[0].kind)
	assert.Equal(t, SeverityError, rs[0].severity)
	assert.Equal(t, 1.0, metricValue(t, reg, "camconfig_reconfigure_total", "outcome", outcomePanic))
}

type fakeRecorder struct {
	mu     sync.Mutex
	calls  []string
	resume error
}

func (r *fakeRecorder) Pause(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "pause")
	return nil
}

func (r *fakeRecorder) Resume(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "resume")
	return r.resume
}

func TestSetRecordingPaused(t *testing.T) {
	ctx := context.Background()
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))

	s := New(b)
	assert.ErrorIs(t, s.SetRecordingPaused(ctx, true), ErrNoRecorder)
	require.NoError(t, s.Close())

	boom := errors.New("encoder stalled")
	rec := &fakeRecorder{resume: boom}
	reports := &reportLog{}
	s = New(b, WithRecorder(rec), WithReporter(reports))
	defer s.Close()

	require.NoError(t, s.SetRecordingPaused(ctx, true))
	assert.ErrorIs(t, s.SetRecordingPaused(ctx, false), boom)
	assert.Equal(t, []string{"pause", "resume"}, rec.calls)

	rs := reports.get()
	require.Len(t, rs, 1)
	assert.Equal(t, ErrorKindRecording, rs[0].kind)
}

func TestClose(t *testing.T) {
	b := videotest.New(photoCam("cam", driver.FacingEnvironment))
	s := New(b)
	ctx := context.Background()
	require.True(t, s.Reconfigure(ctx))

	started := make(chan struct{})
	release := make(chan struct{})
	captured := make(chan error, 1)
	go func() {
		captured <- s.StartCapture(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	waiter := make(chan bool, 1)
	go func() { waiter <- s.Reconfigure(ctx) }()
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pending != nil
	})

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	assert.False(t, <-waiter)

	// The stream stays open until the capture returns.
	select {
	case err := <-closed:
		t.Fatalf("Close returned before the capture: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, b.Live())

	close(release)
	require.NoError(t, <-captured)
	require.NoError(t, <-closed)
	assert.Equal(t, 0, b.Live())
	assert.Equal(t, OperationNone, s.Operation())
	assert.ErrorIs(t, s.StartCapture(ctx, func(context.Context) error { return nil }), ErrClosed)
	assert.False(t, s.Reconfigure(ctx))
	assert.NoError(t, s.Close())
}
