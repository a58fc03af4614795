package ptz

import (
	"image"
	"sync"
)

// DefaultMaxZoom is the largest digital zoom offered when the device does
// not say otherwise.
const DefaultMaxZoom = 6

// Range is the accepted interval and step of one PTZ axis.
type Range struct {
	Min, Max, Step float64
}

// Capabilities are the ranges of a digital PTZ session.
type Capabilities struct {
	Pan, Tilt, Zoom Range
}

// DigitalCapabilities returns the ranges of a digital PTZ session zooming
// up to maxZoom.
func DigitalCapabilities(maxZoom float64) Capabilities {
	if maxZoom < 1 {
		maxZoom = DefaultMaxZoom
	}
	return Capabilities{
		Pan:  Range{Min: -1, Max: 1, Step: 0.1},
		Tilt: Range{Min: -1, Max: 1, Step: 0.1},
		Zoom: Range{Min: 1, Max: maxZoom, Step: 0.1},
	}
}

// Session holds the digital PTZ state of one opened stream.
type Session struct {
	caps Capabilities
	full image.Rectangle

	mu       sync.Mutex
	base     Settings
	rotation Rotation
}

// NewSession creates a session cropping inside full, starting at Identity.
func NewSession(full image.Rectangle, caps Capabilities) *Session {
	if full.Empty() {
		panic("ptz: empty full crop region")
	}
	return &Session{caps: caps, full: full, base: Identity}
}

// Capabilities returns the ranges of the session.
func (s *Session) Capabilities() Capabilities { return s.caps }

// FullCropRegion returns the region shown when fully zoomed out.
func (s *Session) FullCropRegion() image.Rectangle { return s.full }

// SetRotation updates the live sensor rotation.
func (s *Session) SetRotation(r Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = NewRotation(int(r))
}

// Settings returns the current settings as seen at the live rotation.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.Rotate(s.rotation)
}

// Apply takes settings expressed at the live rotation and returns the crop
// region to use. Zoom is clamped to the session range; a zoom within one
// step of the minimum resets to the full frame.
func (s *Session) Apply(presented Settings) image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := presented.Unrotate(s.rotation)
	base.Zoom = clamp(base.Zoom, s.caps.Zoom.Min, s.caps.Zoom.Max)
	if IsFullFrame(base.Zoom, s.caps.Zoom.Min, s.caps.Zoom.Step) {
		s.base = Identity
		return s.full
	}
	r := CropRegion(base, s.full)
	s.base = base
	return r
}

// Reset returns to Identity and the full crop region.
func (s *Session) Reset() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = Identity
	return s.full
}
