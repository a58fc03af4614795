// Package candidate models the capturable configurations the reconfigurer
// tries: a device, a target resolution, an optional constant frame rate and
// the ordered constraint sets derived from them.
package candidate

import (
	"fmt"

	"github.com/pion/camconfig/pkg/prop"
)

// Frame rate bounds requested when no constant frame rate is pinned.
const (
	MinFrameRate   = 20
	IdealFrameRate = 30
)

// Resolution asked for, as an ideal, when opening a device that exposes no
// capability.
var fallbackResolution = prop.Resolution{Width: 1280, Height: 720}

// Kind tells which family a candidate belongs to.
type Kind int

// Candidate kinds.
const (
	KindPhoto Kind = iota
	KindVideo
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindFallback:
		return "fallback"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Candidate is an immutable capturable configuration.
type Candidate struct {
	kind        Kind
	deviceID    string
	resolution  prop.Resolution
	constFPS    int
	hasAudio    bool
	previews    []prop.Resolution
	constraints []prop.ConstraintSet
}

// NewPhoto creates a photo candidate capturing at res with the given
// preview resolutions, most preferred first.
func NewPhoto(deviceID string, res prop.Resolution, previews []prop.Resolution) *Candidate {
	c := newWithResolution(KindPhoto, deviceID, res, previews)
	for _, p := range c.previews {
		c.constraints = append(c.constraints, prop.ConstraintSet{
			DeviceID:  prop.StringExact(deviceID),
			Width:     prop.IntExact(p.Width),
			Height:    prop.IntExact(p.Height),
			FrameRate: prop.FloatRanged{Min: MinFrameRate, Ideal: IdealFrameRate},
			Audio:     prop.BoolExact(false),
		})
	}
	return c
}

// NewVideo creates a video candidate. A constFPS of zero means variable
// frame rate.
func NewVideo(deviceID string, res prop.Resolution, constFPS int, previews []prop.Resolution, hasAudio bool) *Candidate {
	if constFPS < 0 {
		panic(fmt.Sprintf("candidate: negative constant fps %d", constFPS))
	}
	c := newWithResolution(KindVideo, deviceID, res, previews)
	c.constFPS = constFPS
	c.hasAudio = hasAudio

	var frameRate prop.FloatConstraint = prop.FloatRanged{Min: MinFrameRate, Ideal: IdealFrameRate}
	if constFPS != 0 {
		frameRate = prop.FloatExact(constFPS)
	}
	for _, p := range c.previews {
		c.constraints = append(c.constraints, prop.ConstraintSet{
			DeviceID:  prop.StringExact(deviceID),
			Width:     prop.IntExact(p.Width),
			Height:    prop.IntExact(p.Height),
			FrameRate: frameRate,
			Audio:     prop.BoolExact(hasAudio),
		})
	}
	return c
}

// NewFallback creates the candidate used for a device without capability.
func NewFallback(deviceID string, hasAudio bool) *Candidate {
	if deviceID == "" {
		panic("candidate: empty device id")
	}
	return &Candidate{
		kind:     KindFallback,
		deviceID: deviceID,
		hasAudio: hasAudio,
		constraints: []prop.ConstraintSet{
			{
				DeviceID: prop.StringExact(deviceID),
				Width:    prop.Int(fallbackResolution.Width),
				Height:   prop.Int(fallbackResolution.Height),
				Audio:    prop.BoolExact(hasAudio),
			},
			{
				DeviceID: prop.StringExact(deviceID),
				Audio:    prop.BoolExact(hasAudio),
			},
		},
	}
}

func newWithResolution(kind Kind, deviceID string, res prop.Resolution, previews []prop.Resolution) *Candidate {
	switch {
	case deviceID == "":
		panic("candidate: empty device id")
	case res.Width <= 0 || res.Height <= 0:
		panic(fmt.Sprintf("candidate: invalid %s resolution %v", kind, res))
	case len(previews) == 0:
		panic(fmt.Sprintf("candidate: %s resolution %v has no preview resolution", kind, res))
	}
	return &Candidate{
		kind:       kind,
		deviceID:   deviceID,
		resolution: res,
		previews:   append([]prop.Resolution(nil), previews...),
	}
}

// Kind returns the candidate family.
func (c *Candidate) Kind() Kind { return c.kind }

// DeviceID returns the device to open.
func (c *Candidate) DeviceID() string { return c.deviceID }

// Resolution returns the capture resolution. ok is false only for
// fallback candidates.
func (c *Candidate) Resolution() (res prop.Resolution, ok bool) {
	return c.resolution, c.kind != KindFallback
}

// ConstFPS returns the constant frame rate. ok is false for variable frame
// rate.
func (c *Candidate) ConstFPS() (fps int, ok bool) {
	return c.constFPS, c.constFPS != 0
}

// HasAudio reports whether audio is requested alongside video.
func (c *Candidate) HasAudio() bool { return c.hasAudio }

// PreviewResolutions returns the paired preview resolutions in the order
// they are tried.
func (c *Candidate) PreviewResolutions() []prop.Resolution {
	return append([]prop.Resolution(nil), c.previews...)
}

// ConstraintSets returns the constraint sets to try, most preferred first.
// The list is never empty.
func (c *Candidate) ConstraintSets() []prop.ConstraintSet {
	return append([]prop.ConstraintSet(nil), c.constraints...)
}

// Equal reports whether c and o describe the same configuration.
func (c *Candidate) Equal(o *Candidate) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.kind != o.kind || c.deviceID != o.deviceID || c.resolution != o.resolution ||
		c.constFPS != o.constFPS || c.hasAudio != o.hasAudio || len(c.previews) != len(o.previews) {
		return false
	}
	for i := range c.previews {
		if c.previews[i] != o.previews[i] {
			return false
		}
	}
	return true
}

func (c *Candidate) String() string {
	switch c.kind {
	case KindFallback:
		return fmt.Sprintf("fallback(%s)", c.deviceID)
	case KindVideo:
		fps := "vfr"
		if c.constFPS != 0 {
			fps = fmt.Sprintf("%dfps", c.constFPS)
		}
		return fmt.Sprintf("video(%s, %v, %s, audio=%t)", c.deviceID, c.resolution, fps, c.hasAudio)
	default:
		return fmt.Sprintf("photo(%s, %v)", c.deviceID, c.resolution)
	}
}
