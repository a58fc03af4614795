package preference

import (
	"math"
	"sort"

	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/prop"
)

// Fixed policy constants. They are tied to the hardware families the
// store has been tuned on and are deliberately not configurable.
const (
	// Resolutions with at least this share of the largest area are "full".
	fullLevelAreaRatio = 0.6
	// Preview resolutions larger than this are never paired.
	MaxPreviewWidth  = 1920
	MaxPreviewHeight = 1200

	// Width/height ratio tolerance when pairing capture and preview sizes.
	pairingTolerance = 0.01
	// Constant frame rate preferred when the user has not chosen one.
	defaultConstFPS = 30
)

// Level is a named resolution tier.
type Level string

// Resolution levels. Full and Medium come from the area split; the others
// are the canonical video tiers, recognized on an exact resolution match.
// LevelExact marks per-resolution options in show-all mode.
const (
	LevelFull   Level = "full"
	LevelMedium Level = "medium"
	Level4K     Level = "4K"
	LevelQHD    Level = "QHD"
	LevelFHD    Level = "FHD"
	LevelHD     Level = "HD"
	Level360p   Level = "360p"
	LevelExact  Level = "exact"
)

var canonicalVideoLevels = []struct {
	level Level
	res   prop.Resolution
}{
	{Level4K, prop.Resolution{Width: 3840, Height: 2160}},
	{LevelQHD, prop.Resolution{Width: 2560, Height: 1440}},
	{LevelFHD, prop.Resolution{Width: 1920, Height: 1080}},
	{LevelHD, prop.Resolution{Width: 1280, Height: 720}},
	{Level360p, prop.Resolution{Width: 640, Height: 360}},
}

// levelRank breaks ties between levels of equal maximum area.
var levelRank = map[Level]int{
	Level4K: 0, LevelQHD: 1, LevelFHD: 2, LevelHD: 3, Level360p: 4,
	LevelFull: 5, LevelMedium: 6,
}

// FpsOption is a frame rate choice within a video resolution option.
type FpsOption struct {
	// ConstFPS is the constant frame rate, or 0 for variable frame rate.
	ConstFPS    int
	Resolutions []prop.Resolution
	Checked     bool
}

// ResolutionOption groups resolutions under a level. In show-all mode the
// Level is LevelExact and Resolutions has exactly one element.
type ResolutionOption struct {
	Level       Level
	Resolutions []prop.Resolution
	FpsOptions  []FpsOption
	Checked     bool
}

// Key identifies the option for per-option preferences such as the
// constant frame rate.
func (o ResolutionOption) Key() string {
	if o.Level == LevelExact && len(o.Resolutions) > 0 {
		return o.Resolutions[0].String()
	}
	return string(o.Level)
}

// AspectOption is one selectable photo aspect ratio.
type AspectOption struct {
	Class   prop.AspectClass
	Checked bool
}

type videoEntry struct {
	res prop.Resolution
	fps []int
}

// table is the option table of one device, rebuilt wholesale on every
// capability update.
type table struct {
	info driver.DeviceInfo

	previews []prop.Resolution

	photo       []prop.Resolution
	photoLevels map[prop.Resolution]Level

	video           []videoEntry
	videoLevels     map[prop.Resolution]Level
	videoLevelOrder []Level
}

func newTable(info driver.DeviceInfo) *table {
	t := &table{info: info}

	for _, p := range info.PreviewResolutions {
		if p.Width <= MaxPreviewWidth && p.Height <= MaxPreviewHeight && p.Width > 0 && p.Height > 0 {
			t.previews = append(t.previews, p)
		}
	}

	seen := map[prop.Resolution]bool{}
	for _, r := range info.PhotoResolutions {
		if seen[r] || len(t.pairedPreviews(r)) == 0 {
			continue
		}
		seen[r] = true
		t.photo = append(t.photo, r)
	}
	prop.SortByArea(t.photo)
	t.photoLevels = splitLevels(t.photo)

	fps := map[prop.Resolution]map[int]bool{}
	for _, m := range info.VideoModes {
		if len(t.pairedPreviews(m.Resolution)) == 0 {
			continue
		}
		if fps[m.Resolution] == nil {
			fps[m.Resolution] = map[int]bool{}
		}
		for _, f := range m.ConstFPS {
			if f > 0 {
				fps[m.Resolution][f] = true
			}
		}
	}
	for r, set := range fps {
		e := videoEntry{res: r}
		for f := range set {
			e.fps = append(e.fps, f)
		}
		sort.Ints(e.fps)
		t.video = append(t.video, e)
	}
	sort.SliceStable(t.video, func(i, j int) bool {
		a, b := t.video[i].res, t.video[j].res
		if a.Area() != b.Area() {
			return a.Area() > b.Area()
		}
		return a.Width > b.Width
	})
	t.videoLevels, t.videoLevelOrder = videoLevels(t.videoResolutions())
	return t
}

func (t *table) videoResolutions() []prop.Resolution {
	rs := make([]prop.Resolution, len(t.video))
	for i, e := range t.video {
		rs[i] = e.res
	}
	return rs
}

func (t *table) videoEntry(r prop.Resolution) (videoEntry, bool) {
	for _, e := range t.video {
		if e.res == r {
			return e, true
		}
	}
	return videoEntry{}, false
}

func (t *table) hasPhoto(r prop.Resolution) bool {
	for _, p := range t.photo {
		if p == r {
			return true
		}
	}
	return false
}

func sameAspect(a, b prop.Resolution) bool {
	return math.Abs(a.AspectRatio()-b.AspectRatio()) < pairingTolerance
}

// pairedPreviews returns the preview resolutions sharing the aspect ratio
// of capture, unsorted.
func (t *table) pairedPreviews(capture prop.Resolution) []prop.Resolution {
	var rs []prop.Resolution
	for _, p := range t.previews {
		if sameAspect(p, capture) {
			rs = append(rs, p)
		}
	}
	return rs
}

// splitLevels tiers rs (sorted by decreasing area) into full and medium.
func splitLevels(rs []prop.Resolution) map[prop.Resolution]Level {
	levels := make(map[prop.Resolution]Level, len(rs))
	if len(rs) == 0 {
		return levels
	}
	maxArea := float64(rs[0].Area())
	for _, r := range rs {
		if float64(r.Area()) >= fullLevelAreaRatio*maxArea {
			levels[r] = LevelFull
		} else {
			levels[r] = LevelMedium
		}
	}
	return levels
}

// SplitLevels exposes the area split used for photo resolutions: every
// resolution with at least 60% of the largest area is full, the rest
// medium. The returned options are ordered full first.
func SplitLevels(rs []prop.Resolution) []ResolutionOption {
	sorted := append([]prop.Resolution(nil), rs...)
	prop.SortByArea(sorted)
	levels := splitLevels(sorted)
	var opts []ResolutionOption
	for _, l := range []Level{LevelFull, LevelMedium} {
		o := ResolutionOption{Level: l}
		for _, r := range sorted {
			if levels[r] == l {
				o.Resolutions = append(o.Resolutions, r)
			}
		}
		if len(o.Resolutions) > 0 {
			opts = append(opts, o)
		}
	}
	return opts
}

// videoLevels tiers rs (sorted by decreasing area). Canonical resolutions
// get their named tier, the rest fall back to the area split relative to
// the largest video resolution. Levels are ordered by their largest area.
func videoLevels(rs []prop.Resolution) (map[prop.Resolution]Level, []Level) {
	levels := make(map[prop.Resolution]Level, len(rs))
	if len(rs) == 0 {
		return levels, nil
	}
	maxArea := float64(rs[0].Area())
	for _, r := range rs {
		canonical := false
		for _, c := range canonicalVideoLevels {
			if c.res == r {
				levels[r] = c.level
				canonical = true
				break
			}
		}
		if canonical {
			continue
		}
		if float64(r.Area()) >= fullLevelAreaRatio*maxArea {
			levels[r] = LevelFull
		} else {
			levels[r] = LevelMedium
		}
	}

	largest := map[Level]int{}
	var order []Level
	for _, r := range rs {
		l := levels[r]
		if _, ok := largest[l]; !ok {
			order = append(order, l)
			largest[l] = r.Area()
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if largest[order[i]] != largest[order[j]] {
			return largest[order[i]] > largest[order[j]]
		}
		return levelRank[order[i]] < levelRank[order[j]]
	})
	return levels, order
}

// SortPreviewResolutions orders previews for a capture resolution given the
// screen size. With rc the capture width and rs the effective screen width
// (the screen width, or screen height times the capture aspect ratio if
// smaller):
//
//	rc <= rs: largest preview <= rc, then smallest preview > rc
//	rc >  rs: smallest preview in [rs, rc], then largest < rs, then smallest > rc
//
// A zero screen is treated as large enough for any capture.
func SortPreviewResolutions(previews []prop.Resolution, capture, screen prop.Resolution) []prop.Resolution {
	rc := capture.Width
	rs := rc
	if !screen.IsZero() {
		rs = screen.Width
		if alt := int(math.Round(float64(screen.Height) * capture.AspectRatio())); alt < rs {
			rs = alt
		}
	}

	byWidthAsc := append([]prop.Resolution(nil), previews...)
	sort.SliceStable(byWidthAsc, func(i, j int) bool {
		if byWidthAsc[i].Width != byWidthAsc[j].Width {
			return byWidthAsc[i].Width < byWidthAsc[j].Width
		}
		return byWidthAsc[i].Height < byWidthAsc[j].Height
	})
	var below, inside, above []prop.Resolution
	if rc <= rs {
		for _, p := range byWidthAsc {
			if p.Width <= rc {
				below = append(below, p)
			} else {
				above = append(above, p)
			}
		}
		return append(reversed(below), above...)
	}
	for _, p := range byWidthAsc {
		switch {
		case p.Width < rs:
			below = append(below, p)
		case p.Width <= rc:
			inside = append(inside, p)
		default:
			above = append(above, p)
		}
	}
	sorted := append(inside, reversed(below)...)
	return append(sorted, above...)
}

func reversed(rs []prop.Resolution) []prop.Resolution {
	out := make([]prop.Resolution, len(rs))
	for i, r := range rs {
		out[len(rs)-1-i] = r
	}
	return out
}
