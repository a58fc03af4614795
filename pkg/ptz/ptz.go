// Package ptz implements digital pan/tilt/zoom: crop regions computed from
// normalized settings over the sensor active array, with the pan/tilt
// vector kept in a rotation independent frame.
package ptz

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/math/f64"
)

// Epsilon is the tolerance accepted around the normalized [-1, 1] pan and
// tilt range.
const Epsilon = 1e-6

// Settings are normalized PTZ values. Pan and tilt are in [-1, 1] where
// pan=-1 is leftmost and tilt=-1 is bottommost; zoom is >= 1.
type Settings struct {
	Pan, Tilt, Zoom float64
}

// Identity is the fully zoomed out, centered setting.
var Identity = Settings{Pan: 0, Tilt: 0, Zoom: 1}

func (s Settings) String() string {
	return fmt.Sprintf("pan=%.3f tilt=%.3f zoom=%.3f", s.Pan, s.Tilt, s.Zoom)
}

// Rotation is a clockwise sensor rotation in degrees.
type Rotation int

// NewRotation normalizes deg into [0, 360). It panics unless deg is a
// multiple of 90.
func NewRotation(deg int) Rotation {
	r := ((deg % 360) + 360) % 360
	if r%90 != 0 {
		panic(fmt.Sprintf("ptz: rotation %d is not a multiple of 90", deg))
	}
	return Rotation(r)
}

func (r Rotation) cosSin() (float64, float64) {
	switch NewRotation(int(r)) {
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	default:
		return 1, 0
	}
}

// matrix turns a vector clockwise by r.
func (r Rotation) matrix() f64.Aff3 {
	c, s := r.cosSin()
	return f64.Aff3{
		c, s, 0,
		-s, c, 0,
	}
}

// apply maps v through m.
func apply(m f64.Aff3, v f64.Vec2) f64.Vec2 {
	return f64.Vec2{
		m[0]*v[0] + m[1]*v[1] + m[2],
		m[3]*v[0] + m[4]*v[1] + m[5],
	}
}

// Rotate returns s with its pan/tilt vector turned clockwise by r. This is
// how base-frame settings are presented at a live rotation.
func (s Settings) Rotate(r Rotation) Settings {
	v := apply(r.matrix(), f64.Vec2{s.Pan, s.Tilt})
	return Settings{Pan: v[0], Tilt: v[1], Zoom: s.Zoom}
}

// Unrotate turns the pan/tilt vector counter-clockwise by r, mapping
// values given at a live rotation back into the base frame.
func (s Settings) Unrotate(r Rotation) Settings {
	return s.Rotate(NewRotation(-int(r)))
}

func inTolerance(v float64) bool {
	return v >= -1-Epsilon && v <= 1+Epsilon
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// CropRegion returns the region of full to crop for s. The crop keeps the
// aspect ratio of full and is 1/zoom of its size, centered and then shifted
// by pan and tilt. It panics on settings outside the accepted range, which
// indicates a caller bug.
func CropRegion(s Settings, full image.Rectangle) image.Rectangle {
	if full.Empty() {
		panic("ptz: empty full crop region")
	}
	if math.IsNaN(s.Zoom) || s.Zoom < 1-Epsilon {
		panic(fmt.Sprintf("ptz: zoom %f below 1", s.Zoom))
	}
	if !inTolerance(s.Pan) || !inTolerance(s.Tilt) {
		panic(fmt.Sprintf("ptz: pan/tilt out of range: %v", s))
	}
	zoom := math.Max(1, s.Zoom)
	pan := clamp(s.Pan, -1, 1)
	tilt := clamp(s.Tilt, -1, 1)

	fw, fh := float64(full.Dx()), float64(full.Dy())
	cw, ch := fw/zoom, fh/zoom
	// Maps pan/tilt to the crop origin; tilt=1 is the top edge.
	sx, sy := (fw-cw)/2, (fh-ch)/2
	origin := apply(f64.Aff3{
		sx, 0, float64(full.Min.X) + sx,
		0, -sy, float64(full.Min.Y) + sy,
	}, f64.Vec2{pan, tilt})
	x, y := origin[0], origin[1]

	r := image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+cw)), int(math.Round(y+ch)),
	)
	if !r.In(full) {
		panic(fmt.Sprintf("ptz: crop region %v exceeds %v", r, full))
	}
	return r
}

// IsFullFrame reports whether zoom is close enough to minZoom to show the
// whole frame.
func IsFullFrame(zoom, minZoom, zoomStep float64) bool {
	return math.Abs(zoom-minZoom) < zoomStep
}

// FullCropRegionForAspectRatio returns the largest region of active with
// the given width/height ratio, centered on active.
func FullCropRegionForAspectRatio(active image.Rectangle, aspectRatio float64) image.Rectangle {
	if active.Empty() || aspectRatio <= 0 {
		panic(fmt.Sprintf("ptz: invalid active array %v or aspect ratio %f", active, aspectRatio))
	}
	aw, ah := active.Dx(), active.Dy()
	if float64(aw)/float64(ah) > aspectRatio {
		// Wider than the target, crop horizontally.
		w := int(math.Round(float64(ah) * aspectRatio))
		x := active.Min.X + (aw-w)/2
		return image.Rect(x, active.Min.Y, x+w, active.Max.Y)
	}
	h := int(math.Round(float64(aw) / aspectRatio))
	y := active.Min.Y + (ah-h)/2
	return image.Rect(active.Min.X, y, active.Max.X, y+h)
}
