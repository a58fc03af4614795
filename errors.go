package camconfig

import (
	"errors"
	"fmt"

	"github.com/pion/logging"
)

var (
	// ErrOperationInProgress is returned by StartCapture when a capture or
	// reconfigure already holds the device.
	ErrOperationInProgress = errors.New("camconfig: another operation holds the camera")
	// ErrJobDropped is returned for a queued request replaced by a newer
	// one before it ran.
	ErrJobDropped = errors.New("camconfig: request dropped by a newer one")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("camconfig: scheduler closed")
	// ErrNoRecorder is returned by SetRecordingPaused without a Recorder.
	ErrNoRecorder = errors.New("camconfig: no recorder configured")
	// ErrNoPTZ is returned when the live stream has no pan/tilt/zoom.
	ErrNoPTZ = errors.New("camconfig: pan/tilt/zoom not available")
)

// ErrorKind classifies reported errors.
type ErrorKind string

// Error kinds.
const (
	ErrorKindStartCamera      ErrorKind = "start-camera-failed"
	ErrorKindEnumerateDevices ErrorKind = "enumerate-devices-failed"
	ErrorKindReconfigure      ErrorKind = "reconfigure-failed"
	ErrorKindRecording        ErrorKind = "recording-pause-resume-failed"
	ErrorKindPTZ              ErrorKind = "ptz-failed"
)

// Severity of a reported error.
type Severity int

// Severities.
const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ErrorReporter receives the errors the core does not handle itself.
// Report must not block.
type ErrorReporter interface {
	Report(kind ErrorKind, severity Severity, err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(kind ErrorKind, severity Severity, err error)

// Report implements ErrorReporter.
func (f ErrorReporterFunc) Report(kind ErrorKind, severity Severity, err error) {
	f(kind, severity, err)
}

// report forwards to r, logging always. A panicking reporter is logged and
// otherwise ignored.
func report(r ErrorReporter, log logging.LeveledLogger, kind ErrorKind, severity Severity, err error) {
	log.Warnf("%s (%s): %v", kind, severity, err)
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("error reporter panicked: %v", p)
		}
	}()
	r.Report(kind, severity, err)
}
