package camconfig

import (
	"fmt"

	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/prop"
)

// CameraConfig is the configuration currently applied.
type CameraConfig struct {
	DeviceID  string
	Facing    driver.Facing
	Mode      candidate.Mode
	Candidate *candidate.Candidate
	// Constraints is the variant of Candidate the stream was opened with.
	Constraints prop.ConstraintSet
	// Settings is what the stream actually runs at.
	Settings prop.Media
	// StreamID identifies the opened stream.
	StreamID string
	// PTZ tells how pan/tilt/zoom is implemented for this stream.
	PTZ PTZMode
}

func (c CameraConfig) String() string {
	return fmt.Sprintf("%s (%s, %s) %v", c.DeviceID, c.Facing, c.Mode, c.Candidate)
}

// ConfigCandidate is the configuration about to be tried. DeviceID and
// Facing are only the expected values: some backends reveal the real ones
// after the stream is open.
type ConfigCandidate struct {
	DeviceID    string
	Facing      driver.Facing
	Mode        candidate.Mode
	Candidate   *candidate.Candidate
	Constraints prop.ConstraintSet
}

// PTZMode is the pan/tilt/zoom implementation of an opened stream.
type PTZMode int

// PTZ modes.
const (
	PTZNone PTZMode = iota
	PTZHardware
	PTZDigital
)

func (m PTZMode) String() string {
	switch m {
	case PTZNone:
		return "none"
	case PTZHardware:
		return "hardware"
	case PTZDigital:
		return "digital"
	}
	return fmt.Sprintf("PTZMode(%d)", int(m))
}

// ModeConstraint selects the capture modes tried on each device. With
// Exact only Mode is tried; otherwise Mode is a hint tried first, followed
// by the other supported modes in candidate.ModeOrder.
type ModeConstraint struct {
	Exact bool
	Mode  candidate.Mode
}

// modes returns the modes to try, restricted to supported.
func (mc ModeConstraint) modes(supported []candidate.Mode) []candidate.Mode {
	has := func(m candidate.Mode) bool {
		for _, s := range supported {
			if s == m {
				return true
			}
		}
		return false
	}
	if mc.Exact {
		if has(mc.Mode) {
			return []candidate.Mode{mc.Mode}
		}
		return nil
	}
	var modes []candidate.Mode
	if mc.Mode != "" && has(mc.Mode) {
		modes = append(modes, mc.Mode)
	}
	for _, m := range candidate.ModeOrder {
		if m != mc.Mode && has(m) {
			modes = append(modes, m)
		}
	}
	return modes
}
