/*
Package camera provides the V4L2 capability source and stream transport.

# Device Label Generation Rules

On Linux, the device label will be in the format of:

	pci-0000:00:00.0-usb-0:0:0.0-video-index0;video0

If /dev/v4l/by-path/* is not available (for example in a docker container without
bindings in /dev/v4l/by-path/), it will be:

	video0;video0
*/
package camera

import (
	"path/filepath"
	"sort"

	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/prop"
	"github.com/pion/logging"
)

// LabelSeparator is used to separate labels for a driver that
// is found from multiple locations on a host.
const LabelSeparator = ";"

// DefaultSearchPatterns are scanned in order; a node reachable from an
// earlier pattern is not reported again.
var DefaultSearchPatterns = []string{"/dev/v4l/by-path/*", "/dev/video*"}

type device struct {
	id    string
	label string
	path  string
}

// discover appends the nodes matching pattern whose target was not seen
// before.
func discover(discovered map[string]struct{}, pattern string) []device {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var devices []device
	for _, p := range paths {
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			continue
		}
		if _, ok := discovered[real]; ok {
			continue
		}
		discovered[real] = struct{}{}
		devices = append(devices, device{
			id:    p,
			label: filepath.Base(p) + LabelSeparator + filepath.Base(real),
			path:  p,
		})
	}
	return devices
}

// Option configures a Backend.
type Option func(*options)

type options struct {
	patterns      []string
	loggerFactory logging.LoggerFactory
}

// WithSearchPatterns overrides DefaultSearchPatterns.
func WithSearchPatterns(patterns ...string) Option {
	return func(o *options) {
		o.patterns = patterns
	}
}

// WithLoggerFactory sets the logger factory.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(o *options) {
		o.loggerFactory = f
	}
}

func newOptions(opts []Option) options {
	o := options{patterns: DefaultSearchPatterns}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// deviceInfo turns the frame sizes and frame rates a node reports into a
// capability. Every size is offered for photo, video and preview.
func deviceInfo(d device, fps map[prop.Resolution][]int) driver.DeviceInfo {
	info := driver.DeviceInfo{
		ID:     d.id,
		Label:  d.label,
		Facing: driver.FacingExternal,
	}
	for r, rates := range fps {
		rates = append([]int(nil), rates...)
		sort.Ints(rates)
		info.PhotoResolutions = append(info.PhotoResolutions, r)
		info.VideoModes = append(info.VideoModes, driver.VideoMode{Resolution: r, ConstFPS: rates})
	}
	prop.SortByArea(info.PhotoResolutions)
	sort.SliceStable(info.VideoModes, func(i, j int) bool {
		a, b := info.VideoModes[i].Resolution, info.VideoModes[j].Resolution
		if a.Area() != b.Area() {
			return a.Area() > b.Area()
		}
		return a.Width > b.Width
	})
	info.PreviewResolutions = append([]prop.Resolution(nil), info.PhotoResolutions...)
	return info
}

// selectMode picks the mode of info closest to c. When nothing satisfies c
// the name of the constraint the closest-looking mode violated is
// returned.
func selectMode(info driver.DeviceInfo, c prop.ConstraintSet) (prop.Media, string, bool) {
	var (
		best      prop.Media
		bestDist  float64
		found     bool
		violation string
	)
	consider := func(m prop.Media) {
		// Audio comes from a separate capture device, so the request is
		// taken as is.
		if c.Audio != nil {
			m.Audio = c.Audio.Value()
		}
		dist, ok := c.FitnessDistance(m)
		if !ok {
			if name, bad := c.Unsatisfied(m); bad && violation == "" {
				violation = name
			}
			return
		}
		if !found || dist < bestDist {
			best, bestDist, found = m, dist, true
		}
	}
	for _, vm := range info.VideoModes {
		m := prop.Media{DeviceID: info.ID, Width: vm.Resolution.Width, Height: vm.Resolution.Height}
		if len(vm.ConstFPS) == 0 {
			consider(m)
			continue
		}
		for _, f := range vm.ConstFPS {
			m.FrameRate = float32(f)
			consider(m)
		}
	}
	if found {
		return best, "", true
	}
	if violation == "" {
		violation = prop.ConstraintWidth
	}
	return prop.Media{}, violation, false
}
