package prop

import (
	"fmt"
	"math"
	"sort"
)

// Resolution is a frame size in pixels.
type Resolution struct {
	Width, Height int
}

// ParseResolution parses the "WxH" form produced by Resolution.String.
func ParseResolution(s string) (Resolution, error) {
	var r Resolution
	if _, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height); err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return Resolution{}, fmt.Errorf("invalid resolution %q", s)
	}
	return r, nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// IsZero reports whether r is the zero resolution.
func (r Resolution) IsZero() bool { return r.Width == 0 && r.Height == 0 }

// Area returns the number of pixels in a frame.
func (r Resolution) Area() int { return r.Width * r.Height }

// AspectRatio returns width / height.
func (r Resolution) AspectRatio() float64 {
	if r.Height == 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// AspectClass classifies r into one of the known aspect ratios.
func (r Resolution) AspectClass() AspectClass {
	return ClassifyAspectRatio(r.AspectRatio())
}

// SameAspectRatio reports whether r and o have the same width/height ratio.
func (r Resolution) SameAspectRatio(o Resolution) bool {
	return r.Width*o.Height == o.Width*r.Height
}

// Fits reports whether r is not larger than o in either dimension.
func (r Resolution) Fits(o Resolution) bool {
	return r.Width <= o.Width && r.Height <= o.Height
}

// SortByArea sorts rs by decreasing area. Ties are broken by decreasing
// width so the order is deterministic.
func SortByArea(rs []Resolution) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Area() != rs[j].Area() {
			return rs[i].Area() > rs[j].Area()
		}
		return rs[i].Width > rs[j].Width
	})
}

// AspectClass is a named aspect ratio bucket.
type AspectClass string

// Known aspect ratio classes.
const (
	Aspect4x3   AspectClass = "4:3"
	Aspect16x9  AspectClass = "16:9"
	Aspect16x10 AspectClass = "16:10"
	Aspect3x2   AspectClass = "3:2"
	Aspect1x1   AspectClass = "1:1"
	AspectOther AspectClass = "other"
)

const aspectTolerance = 0.02

var aspectRatios = []struct {
	class AspectClass
	ratio float64
}{
	{Aspect4x3, 4.0 / 3.0},
	{Aspect16x9, 16.0 / 9.0},
	{Aspect16x10, 16.0 / 10.0},
	{Aspect3x2, 3.0 / 2.0},
	{Aspect1x1, 1.0},
}

// ClassifyAspectRatio maps a width/height ratio onto an AspectClass.
func ClassifyAspectRatio(ratio float64) AspectClass {
	for _, a := range aspectRatios {
		if math.Abs(ratio-a.ratio) < aspectTolerance {
			return a.class
		}
	}
	return AspectOther
}

// ParseAspectClass validates s as an AspectClass.
func ParseAspectClass(s string) (AspectClass, error) {
	c := AspectClass(s)
	if c == AspectOther {
		return c, nil
	}
	for _, a := range aspectRatios {
		if a.class == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown aspect ratio class %q", s)
}
