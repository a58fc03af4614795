package candidate

import (
	"testing"

	"github.com/pion/camconfig/pkg/prop"
)

func TestPhotoConstraintSets(t *testing.T) {
	previews := []prop.Resolution{{Width: 1280, Height: 960}, {Width: 640, Height: 480}}
	c := NewPhoto("cam0", prop.Resolution{Width: 4000, Height: 3000}, previews)

	sets := c.ConstraintSets()
	if len(sets) != len(previews) {
		t.Fatalf("expected %d constraint sets, got %d", len(previews), len(sets))
	}
	for i, p := range previews {
		m := prop.Media{DeviceID: "cam0", Width: p.Width, Height: p.Height, FrameRate: 30}
		if name, bad := sets[i].Unsatisfied(m); bad {
			t.Errorf("set %d: expected %v to satisfy, failed on %s", i, m, name)
		}
	}

	if name, bad := sets[0].Unsatisfied(prop.Media{DeviceID: "cam0", Width: 1280, Height: 960, FrameRate: 15}); !bad || name != prop.ConstraintFrameRate {
		t.Errorf("expected a frame rate below the minimum to be rejected, got %q", name)
	}

	if res, ok := c.Resolution(); !ok || res != (prop.Resolution{Width: 4000, Height: 3000}) {
		t.Errorf("unexpected resolution %v (ok=%v)", res, ok)
	}
	if _, ok := c.ConstFPS(); ok {
		t.Error("expected photo candidates to have variable frame rate")
	}
}

func TestVideoConstraintSets(t *testing.T) {
	previews := []prop.Resolution{{Width: 1280, Height: 720}}
	constant := NewVideo("cam0", prop.Resolution{Width: 1920, Height: 1080}, 60, previews, true)

	sets := constant.ConstraintSets()
	if len(sets) != 1 {
		t.Fatalf("expected 1 constraint set, got %d", len(sets))
	}
	good := prop.Media{DeviceID: "cam0", Width: 1280, Height: 720, FrameRate: 60, Audio: true}
	if name, bad := sets[0].Unsatisfied(good); bad {
		t.Fatalf("expected %v to satisfy, failed on %s", good, name)
	}
	if _, bad := sets[0].Unsatisfied(prop.Media{DeviceID: "cam0", Width: 1280, Height: 720, FrameRate: 30, Audio: true}); !bad {
		t.Error("expected 30fps to be rejected by a constant 60fps candidate")
	}
	if fps, ok := constant.ConstFPS(); !ok || fps != 60 {
		t.Errorf("expected 60fps, got %d (ok=%v)", fps, ok)
	}

	variable := NewVideo("cam0", prop.Resolution{Width: 1920, Height: 1080}, 0, previews, false)
	if _, ok := variable.ConstFPS(); ok {
		t.Error("expected variable frame rate")
	}
	if _, bad := variable.ConstraintSets()[0].Unsatisfied(prop.Media{DeviceID: "cam0", Width: 1280, Height: 720, FrameRate: 24}); bad {
		t.Error("expected 24fps to satisfy a variable frame rate candidate")
	}
}

func TestFallback(t *testing.T) {
	c := NewFallback("virtual", false)
	if _, ok := c.Resolution(); ok {
		t.Error("expected fallback candidate to have no resolution")
	}
	sets := c.ConstraintSets()
	if len(sets) == 0 {
		t.Fatal("expected fallback candidate to expose constraint sets")
	}
	last := sets[len(sets)-1]
	if _, bad := last.Unsatisfied(prop.Media{DeviceID: "virtual", Width: 320, Height: 240}); bad {
		t.Error("expected the last fallback set to accept any resolution")
	}
	if _, bad := last.Unsatisfied(prop.Media{DeviceID: "other"}); !bad {
		t.Error("expected the fallback set to pin the device id")
	}
}

func TestConstraintSetsAreCopies(t *testing.T) {
	c := NewPhoto("cam0", prop.Resolution{Width: 640, Height: 480}, []prop.Resolution{{Width: 640, Height: 480}})
	sets := c.ConstraintSets()
	sets[0] = prop.ConstraintSet{}
	if c.ConstraintSets()[0].DeviceID == nil {
		t.Error("expected candidate constraint sets to be immutable")
	}
}

func TestInvalidCandidatesPanic(t *testing.T) {
	cases := map[string]func(){
		"NoPreview":    func() { NewPhoto("cam0", prop.Resolution{Width: 640, Height: 480}, nil) },
		"NoResolution": func() { NewVideo("cam0", prop.Resolution{}, 30, []prop.Resolution{{Width: 640, Height: 480}}, false) },
		"NoDevice":     func() { NewFallback("", false) },
		"NegativeFps": func() {
			NewVideo("cam0", prop.Resolution{Width: 640, Height: 480}, -1, []prop.Resolution{{Width: 640, Height: 480}}, false)
		},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			f()
		})
	}
}

func TestEqual(t *testing.T) {
	previews := []prop.Resolution{{Width: 640, Height: 480}}
	a := NewVideo("cam0", prop.Resolution{Width: 640, Height: 480}, 30, previews, true)
	b := NewVideo("cam0", prop.Resolution{Width: 640, Height: 480}, 30, previews, true)
	c := NewVideo("cam0", prop.Resolution{Width: 640, Height: 480}, 60, previews, true)
	if !a.Equal(b) {
		t.Error("expected equal candidates")
	}
	if a.Equal(c) {
		t.Error("expected candidates with different fps to differ")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range ModeOrder {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Errorf("expected %s, got %s (%v)", m, got, err)
		}
	}
	if _, err := ParseMode("timelapse"); err == nil {
		t.Error("expected unknown mode to be rejected")
	}
}
