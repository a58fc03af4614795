package camconfig

import (
	"time"

	"github.com/pion/camconfig/pkg/config"
	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/preference"
	"github.com/pion/camconfig/pkg/prop"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerOptions stores parameters used by a Scheduler.
type SchedulerOptions struct {
	loggerFactory    logging.LoggerFactory
	reporter         ErrorReporter
	observers        []event.Observer
	recorder         Recorder
	watchdogInterval time.Duration
	registerer       prometheus.Registerer
	aspectOrder      []prop.AspectClass
	screen           prop.Resolution
	persist          preference.KeyValueStore
	hasAudio         bool
	mode             ModeConstraint
}

// SchedulerOption is a type of Scheduler functional option.
type SchedulerOption func(*SchedulerOptions)

// WithLoggerFactory sets the factory of every logger of the scheduler.
func WithLoggerFactory(f logging.LoggerFactory) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.loggerFactory = f
	}
}

// WithReporter sets the sink of unhandled errors.
func WithReporter(r ErrorReporter) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.reporter = r
	}
}

// WithObserver adds an observer of option and configuration changes.
func WithObserver(obs event.Observer) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.observers = append(o.observers, obs)
	}
}

// WithRecorder sets the recorder paused and resumed by
// SetRecordingPaused.
func WithRecorder(r Recorder) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.recorder = r
	}
}

// WithWatchdogInterval overrides the resume watchdog retry delay.
func WithWatchdogInterval(d time.Duration) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.watchdogInterval = d
	}
}

// WithRegisterer registers the scheduler metrics on reg.
func WithRegisterer(reg prometheus.Registerer) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.registerer = reg
	}
}

// WithBoard sets the photo aspect ratio order of the hardware family.
func WithBoard(order []prop.AspectClass) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.aspectOrder = order
	}
}

// WithScreenSize sets the screen size preview resolutions are sorted for.
func WithScreenSize(screen prop.Resolution) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.screen = screen
	}
}

// WithPreferenceStore persists user preferences in kv.
func WithPreferenceStore(kv preference.KeyValueStore) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.persist = kv
	}
}

// WithAudio makes video candidates record audio.
func WithAudio(hasAudio bool) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.hasAudio = hasAudio
	}
}

// WithModeConstraint sets the initial mode constraint.
func WithModeConstraint(mc ModeConstraint) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.mode = mc
	}
}

// WithConfig applies a loaded configuration file.
func WithConfig(cfg config.Config) SchedulerOption {
	return func(o *SchedulerOptions) {
		if order := cfg.AspectOrder(); order != nil {
			o.aspectOrder = order
		}
		if screen := cfg.ScreenSize(); !screen.IsZero() {
			o.screen = screen
		}
		o.watchdogInterval = cfg.Watchdog()
	}
}
