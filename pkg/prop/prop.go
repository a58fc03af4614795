// Package prop describes camera resolutions, the settings of an opened
// stream, and the constraint sets used to request one.
package prop

import (
	"fmt"
	"strings"
)

// Media represents the actual settings of an opened stream.
type Media struct {
	DeviceID  string
	Width     int
	Height    int
	FrameRate float32
	Audio     bool
}

// Resolution returns the frame size of m.
func (m Media) Resolution() Resolution {
	return Resolution{Width: m.Width, Height: m.Height}
}

// Names of the constraints reported by ConstraintSet.Unsatisfied.
const (
	ConstraintDeviceID  = "deviceId"
	ConstraintWidth     = "width"
	ConstraintHeight    = "height"
	ConstraintFrameRate = "frameRate"
	ConstraintAudio     = "audio"
)

// ConstraintSet is one concrete set of parameters to request a stream with.
// A nil constraint accepts any value.
type ConstraintSet struct {
	DeviceID  StringConstraint
	Width     IntConstraint
	Height    IntConstraint
	FrameRate FloatConstraint
	Audio     BoolConstraint
}

type check struct {
	name string
	dist float64
	ok   bool
}

func (c *ConstraintSet) checks(m Media) []check {
	var checks []check
	if c.DeviceID != nil {
		d, ok := c.DeviceID.Compare(m.DeviceID)
		checks = append(checks, check{ConstraintDeviceID, d, ok})
	}
	if c.Width != nil {
		d, ok := c.Width.Compare(m.Width)
		checks = append(checks, check{ConstraintWidth, d, ok})
	}
	if c.Height != nil {
		d, ok := c.Height.Compare(m.Height)
		checks = append(checks, check{ConstraintHeight, d, ok})
	}
	if c.FrameRate != nil {
		d, ok := c.FrameRate.Compare(m.FrameRate)
		checks = append(checks, check{ConstraintFrameRate, d, ok})
	}
	if c.Audio != nil {
		d, ok := c.Audio.Compare(m.Audio)
		checks = append(checks, check{ConstraintAudio, d, ok})
	}
	return checks
}

// Unsatisfied returns the name of the first constraint m violates.
// ok is false when m satisfies every constraint.
func (c *ConstraintSet) Unsatisfied(m Media) (string, bool) {
	for _, ch := range c.checks(m) {
		if !ch.ok {
			return ch.name, true
		}
	}
	return "", false
}

// FitnessDistance is an implementation for https://w3c.github.io/mediacapture-main/#dfn-fitness-distance
// The second return value is false if any required constraint is violated.
func (c *ConstraintSet) FitnessDistance(m Media) (float64, bool) {
	var dist float64
	for _, ch := range c.checks(m) {
		if !ch.ok {
			return dist, false
		}
		dist += ch.dist
	}
	return dist, true
}

// Merge fills the values c pins down into m, leaving the others untouched.
func (c *ConstraintSet) Merge(m *Media) {
	if c.DeviceID != nil {
		if v, ok := c.DeviceID.Value(); ok {
			m.DeviceID = v
		}
	}
	if c.Width != nil {
		if v, ok := c.Width.Value(); ok {
			m.Width = v
		}
	}
	if c.Height != nil {
		if v, ok := c.Height.Value(); ok {
			m.Height = v
		}
	}
	if c.FrameRate != nil {
		if v, ok := c.FrameRate.Value(); ok {
			m.FrameRate = v
		}
	}
	if c.Audio != nil {
		m.Audio = c.Audio.Value()
	}
}

func (c ConstraintSet) String() string {
	var parts []string
	add := func(name string, v interface{}) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", name, v))
		}
	}
	if c.DeviceID != nil {
		add(ConstraintDeviceID, c.DeviceID)
	}
	if c.Width != nil {
		add(ConstraintWidth, c.Width)
	}
	if c.Height != nil {
		add(ConstraintHeight, c.Height)
	}
	if c.FrameRate != nil {
		add(ConstraintFrameRate, c.FrameRate)
	}
	if c.Audio != nil {
		add(ConstraintAudio, c.Audio)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
