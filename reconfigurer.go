package camconfig

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/preference"
	"github.com/pion/camconfig/pkg/prop"
	"github.com/pion/camconfig/pkg/ptz"
	"github.com/pion/logging"
)

// Phase is the state of a Reconfigurer.
type Phase int

// Reconfigurer phases.
const (
	PhaseIdle Phase = iota
	PhaseEnumerating
	PhaseAttempting
	PhaseOpen
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEnumerating:
		return "enumerating"
	case PhaseAttempting:
		return "attempting"
	case PhaseOpen:
		return "open"
	case PhaseExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Outcome is how a reconfigure ended.
type Outcome int

// Outcomes.
const (
	OutcomeSuccess Outcome = iota
	// OutcomeExhausted: every candidate of every device failed.
	OutcomeExhausted
	// OutcomeSuspended: the caller asked to suspend. Not a failure.
	OutcomeSuspended
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeSuspended:
		return "suspended"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result of one reconfigure. Config is set on success only.
type Result struct {
	Outcome Outcome
	Config  *CameraConfig
}

// OK reports success.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// attemptResult tells the device loop how to go on after one attempt.
type attemptResult int

const (
	attemptNext attemptResult = iota
	attemptSkipDevice
	attemptOpened
)

// Reconfigurer converges on one open stream matching the best available
// candidate. Start must not be called concurrently; the Scheduler
// guarantees that.
type Reconfigurer struct {
	source    driver.CapabilitySource
	manager   *driver.Manager
	prefs     *preference.Store
	observers *event.Registry
	reporter  ErrorReporter
	metrics   *metrics
	log       logging.LeveledLogger

	suspend atomic.Bool

	mu              sync.Mutex
	phase           Phase
	devices         []driver.DeviceInfo
	haveCapability  bool
	stale           bool
	config          *CameraConfig
	session         *ptz.Session
	preferredFacing driver.Facing
	lastDeviceID    string
	requestedDevice string
	modeConstraint  ModeConstraint
	hasAudio        bool
	failed          map[string]bool
	held            []event.Event
}

func newReconfigurer(source driver.CapabilitySource, manager *driver.Manager, prefs *preference.Store,
	observers *event.Registry, reporter ErrorReporter, m *metrics, log logging.LeveledLogger,
) *Reconfigurer {
	return &Reconfigurer{
		source:         source,
		manager:        manager,
		prefs:          prefs,
		observers:      observers,
		reporter:       reporter,
		metrics:        m,
		log:            log,
		modeConstraint: ModeConstraint{Mode: candidate.ModePhoto},
		failed:         map[string]bool{},
	}
}

// Phase returns the current phase.
func (r *Reconfigurer) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Reconfigurer) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

// Config returns the live configuration.
func (r *Reconfigurer) Config() (CameraConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		return CameraConfig{}, false
	}
	return *r.config, true
}

// SetSuspended sets the flag checked before starting and before every
// attempt.
func (r *Reconfigurer) SetSuspended(suspend bool) { r.suspend.Store(suspend) }

func (r *Reconfigurer) shouldSuspend() bool { return r.suspend.Load() }

// SetModeConstraint sets the modes tried by the next reconfigure.
func (r *Reconfigurer) SetModeConstraint(mc ModeConstraint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modeConstraint = mc
}

// SetDeviceID asks the next reconfigure to try device id first. An empty
// id clears the request.
func (r *Reconfigurer) SetDeviceID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestedDevice = id
}

// SetHasAudio tells whether video candidates record audio.
func (r *Reconfigurer) SetHasAudio(hasAudio bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasAudio = hasAudio
}

// applyCapability replaces the device list and the preference tables. The
// events it causes are held until takeEvents, which the Scheduler calls
// once the camera is released.
func (r *Reconfigurer) applyCapability(ctx context.Context, devices []driver.DeviceInfo) {
	devices = append([]driver.DeviceInfo(nil), devices...)
	events := r.observers.Collect(func() {
		r.prefs.UpdateCapability(ctx, devices)
	})
	events = append(events, event.Event{Kind: event.UpdateCapability, Payload: devices})

	r.mu.Lock()
	r.held = append(r.held, events...)
	r.devices = devices
	r.haveCapability = true
	r.stale = false
	for id := range r.failed {
		if len(driver.Query(devices, driver.FilterID(id))) == 0 {
			delete(r.failed, id)
		}
	}
	r.mu.Unlock()
}

func (r *Reconfigurer) takeEvents() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.held
	r.held = nil
	return events
}

// enumerate refreshes the device list from the capability source when it
// was never set or the previous reconfigure found no usable camera.
func (r *Reconfigurer) enumerate(ctx context.Context) {
	r.mu.Lock()
	stale := !r.haveCapability || r.stale
	r.mu.Unlock()
	if !stale {
		return
	}
	devices, err := r.source.EnumerateDevices(ctx)
	if err != nil {
		report(r.reporter, r.log, ErrorKindEnumerateDevices, SeverityWarning, err)
		return
	}
	r.applyCapability(ctx, devices)
}

// orderDevices puts devices facing preferred first, keeping the order
// otherwise, then rotates the sticky device to the front. A sticky device
// that is gone leaves the order as is.
func orderDevices(devices []driver.DeviceInfo, preferred driver.Facing, sticky string) []driver.DeviceInfo {
	ordered := append([]driver.DeviceInfo(nil), devices...)
	if preferred != "" {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Facing == preferred && ordered[j].Facing != preferred
		})
	}
	for i, d := range ordered {
		if d.ID == sticky {
			return append(ordered[i:], ordered[:i]...)
		}
	}
	return ordered
}

// Start closes the live stream and tries candidates until one opens.
func (r *Reconfigurer) Start(ctx context.Context) Result {
	if r.shouldSuspend() {
		return r.suspended()
	}

	if err := r.manager.Close(); err != nil {
		r.log.Warnf("%v", err)
	}
	r.mu.Lock()
	r.config = nil
	r.session = nil
	r.mu.Unlock()

	r.enumerate(ctx)
	r.setPhase(PhaseEnumerating)

	r.mu.Lock()
	devices := orderDevices(r.devices, r.preferredFacing, r.lastDeviceID)
	if r.requestedDevice != "" {
		requested := driver.Query(devices, driver.FilterID(r.requestedDevice))
		if len(requested) == 0 {
			r.log.Debugf("requested device %s is not enumerated", r.requestedDevice)
		}
		devices = append(requested, driver.Query(devices, driver.FilterNot(driver.FilterID(r.requestedDevice)))...)
	}
	mc := r.modeConstraint
	hasAudio := r.hasAudio
	r.mu.Unlock()

	for _, d := range devices {
		if !r.available(ctx, d) {
			r.metrics.openAttempts.WithLabelValues(attemptSkipped).Inc()
			continue
		}
	device:
		for _, mode := range mc.modes(d.SupportedModes()) {
			for _, c := range r.prefs.SortedCandidates(d.ID, mode, hasAudio) {
				for _, cs := range c.ConstraintSets() {
					if r.shouldSuspend() || ctx.Err() != nil {
						return r.suspended()
					}
					switch r.attempt(ctx, d, mode, c, cs) {
					case attemptOpened:
						cfg, _ := r.Config()
						return Result{Outcome: OutcomeSuccess, Config: &cfg}
					case attemptSkipDevice:
						break device
					}
				}
			}
		}
	}

	r.mu.Lock()
	r.phase = PhaseExhausted
	r.stale = true
	r.mu.Unlock()
	return Result{Outcome: OutcomeExhausted}
}

func (r *Reconfigurer) suspended() Result {
	r.setPhase(PhaseIdle)
	return Result{Outcome: OutcomeSuspended}
}

// available rechecks a device that failed as busy before.
func (r *Reconfigurer) available(ctx context.Context, d driver.DeviceInfo) bool {
	r.mu.Lock()
	failed := r.failed[d.ID]
	r.mu.Unlock()
	if !failed {
		return true
	}
	inUse, err := r.source.IsDeviceInUse(ctx, d.ID)
	if err != nil || inUse {
		r.log.Debugf("skipping %s, still in use", d.ID)
		return false
	}
	r.mu.Lock()
	delete(r.failed, d.ID)
	r.mu.Unlock()
	return true
}

func (r *Reconfigurer) attempt(ctx context.Context, d driver.DeviceInfo, mode candidate.Mode, c *candidate.Candidate, cs prop.ConstraintSet) attemptResult {
	r.setPhase(PhaseAttempting)
	r.observers.Notify(event.Event{
		Kind:     event.TryingNewConfig,
		DeviceID: d.ID,
		Payload: ConfigCandidate{
			DeviceID:    d.ID,
			Facing:      d.Facing,
			Mode:        mode,
			Candidate:   c,
			Constraints: cs,
		},
	})
	r.log.Debugf("opening %s in %s mode with %v", d.ID, mode, cs)

	s, err := r.manager.Open(ctx, cs)
	if err != nil {
		if cerr := r.manager.Close(); cerr != nil {
			r.log.Warnf("%v", cerr)
		}
		return r.classify(ctx, d, cs, err)
	}

	settings := s.Settings()
	cfg := &CameraConfig{
		DeviceID:    settings.DeviceID,
		Facing:      s.Facing(),
		Mode:        mode,
		Candidate:   c,
		Constraints: cs,
		Settings:    settings,
		StreamID:    s.ID(),
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = d.ID
	}
	if cfg.Facing == "" || cfg.Facing == driver.FacingUnknown {
		cfg.Facing = d.Facing
	}
	cfg.PTZ = r.enablePTZ(d, mode, c, s)

	r.mu.Lock()
	r.config = cfg
	r.phase = PhaseOpen
	r.preferredFacing = cfg.Facing
	r.lastDeviceID = d.ID
	delete(r.failed, d.ID)
	r.mu.Unlock()

	r.metrics.openAttempts.WithLabelValues(attemptSuccess).Inc()
	r.log.Infof("camera %s opened: %v", cfg.DeviceID, cfg.Settings)
	r.observers.Notify(event.Event{Kind: event.UpdateConfig, DeviceID: cfg.DeviceID, Payload: *cfg})
	return attemptOpened
}

func (r *Reconfigurer) classify(ctx context.Context, d driver.DeviceInfo, cs prop.ConstraintSet, err error) attemptResult {
	var over *availability.OverconstrainedError
	var notReadable *availability.NotReadableError
	switch {
	case errors.As(err, &over) && over.Constraint == prop.ConstraintDeviceID && d.Facing == driver.FacingExternal:
		r.log.Debugf("external device %s disappeared", d.ID)
		r.metrics.openAttempts.WithLabelValues(attemptGone).Inc()
		return attemptSkipDevice
	case errors.As(err, &notReadable):
		if inUse, perr := r.source.IsDeviceInUse(ctx, d.ID); perr == nil && inUse {
			r.log.Debugf("device %s is in use", d.ID)
			r.mu.Lock()
			r.failed[d.ID] = true
			r.mu.Unlock()
			r.metrics.openAttempts.WithLabelValues(attemptBusy).Inc()
			return attemptSkipDevice
		}
		r.metrics.openAttempts.WithLabelValues(attemptError).Inc()
	case errors.As(err, &over):
		r.metrics.openAttempts.WithLabelValues(attemptOverconstrained).Inc()
	default:
		r.metrics.openAttempts.WithLabelValues(attemptError).Inc()
	}
	report(r.reporter, r.log, ErrorKindStartCamera, SeverityError, fmt.Errorf("open %s with %v: %w", d.ID, cs, err))
	return attemptNext
}

// enablePTZ applies the pan/tilt/zoom policy to a freshly opened stream.
func (r *Reconfigurer) enablePTZ(d driver.DeviceInfo, mode candidate.Mode, c *candidate.Candidate, s driver.ManagedStream) PTZMode {
	if d.PTZ.Hardware {
		return PTZHardware
	}
	res, ok := c.Resolution()
	if d.ActiveArray.Empty() || mode == candidate.ModeScan || !ok {
		return PTZNone
	}

	full := ptz.FullCropRegionForAspectRatio(d.ActiveArray, res.AspectRatio())
	session := ptz.NewSession(full, ptz.DigitalCapabilities(ptz.DefaultMaxZoom))
	if err := s.SetCropRegion(session.Reset()); err != nil && !errors.Is(err, availability.ErrUnimplemented) {
		report(r.reporter, r.log, ErrorKindPTZ, SeverityWarning, err)
	}

	r.mu.Lock()
	r.session = session
	r.mu.Unlock()
	return PTZDigital
}

// PTZCapabilities returns the digital pan/tilt/zoom ranges of the live
// stream.
func (r *Reconfigurer) PTZCapabilities() (ptz.Capabilities, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ptz.Capabilities{}, false
	}
	return r.session.Capabilities(), true
}

// PTZSettings returns the current settings at the live rotation.
func (r *Reconfigurer) PTZSettings() (ptz.Settings, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ptz.Settings{}, false
	}
	return r.session.Settings(), true
}

// SetPTZ applies settings expressed at the live rotation.
func (r *Reconfigurer) SetPTZ(s ptz.Settings) error {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return ErrNoPTZ
	}
	stream := r.manager.Current()
	if stream == nil {
		return ErrNoPTZ
	}
	return stream.SetCropRegion(session.Apply(s))
}

// SetRotation sets the live sensor rotation used to present pan/tilt.
func (r *Reconfigurer) SetRotation(rot ptz.Rotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ErrNoPTZ
	}
	r.session.SetRotation(rot)
	return nil
}
