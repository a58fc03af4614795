// Package driver defines the contracts between the configuration core and
// the camera backends it drives: capability enumeration, busy probing and
// stream transport.
package driver

import (
	"context"
	"image"

	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/prop"
	"github.com/pion/camconfig/pkg/ptz"
)

// VideoMode is a video resolution together with the constant frame rates
// it can be captured at.
type VideoMode struct {
	Resolution prop.Resolution
	ConstFPS   []int
}

// PTZCapability describes the pan/tilt/zoom support of a device.
type PTZCapability struct {
	// Hardware is true when the device implements PTZ itself.
	Hardware bool
	// Defaults are the settings the device starts with.
	Defaults ptz.Settings
}

// DeviceInfo is the raw capability of one camera device.
type DeviceInfo struct {
	ID     string
	Label  string
	Facing Facing

	PhotoResolutions   []prop.Resolution
	VideoModes         []VideoMode
	PreviewResolutions []prop.Resolution

	PTZ PTZCapability
	// ActiveArray is the native active pixel rectangle of the sensor. An
	// empty rectangle disables digital zoom.
	ActiveArray image.Rectangle
	// Modes lists the capture modes the device supports. Empty means the
	// default set.
	Modes []candidate.Mode
}

// HasCapability reports whether the device exposes any resolution at all.
// Devices without one are opened through a fallback candidate.
func (d *DeviceInfo) HasCapability() bool {
	return len(d.PhotoResolutions) > 0 || len(d.VideoModes) > 0
}

// SupportedModes returns the capture modes of the device.
func (d *DeviceInfo) SupportedModes() []candidate.Mode {
	if len(d.Modes) == 0 {
		return candidate.DefaultModes
	}
	return d.Modes
}

// VideoResolutions returns the resolutions of all video modes.
func (d *DeviceInfo) VideoResolutions() []prop.Resolution {
	rs := make([]prop.Resolution, 0, len(d.VideoModes))
	for _, m := range d.VideoModes {
		rs = append(rs, m.Resolution)
	}
	return rs
}

// CapabilitySource enumerates camera devices.
type CapabilitySource interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	// IsDeviceInUse reports whether another consumer holds the device.
	IsDeviceInUse(ctx context.Context, id string) (bool, error)
}

// Stream is an opened camera stream.
type Stream interface {
	// Settings returns what the backend actually opened, which may only be
	// known after the open succeeded.
	Settings() prop.Media
	Facing() Facing
	Close() error
}

// CropRegionSetter is implemented by streams that accept a digital zoom
// crop region in active array coordinates.
type CropRegionSetter interface {
	SetCropRegion(r image.Rectangle) error
}

// StreamTransport opens streams. Failures should be reported with the
// error types from the availability package so they can be classified.
type StreamTransport interface {
	OpenStream(ctx context.Context, c prop.ConstraintSet) (Stream, error)
}

// Backend is a complete camera backend.
type Backend interface {
	CapabilitySource
	StreamTransport
}
