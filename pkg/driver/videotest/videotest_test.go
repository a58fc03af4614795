package videotest

import (
	"context"
	"errors"
	"testing"

	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/prop"
)

func testDevice() driver.DeviceInfo {
	return driver.DeviceInfo{
		ID:                 "front",
		Facing:             driver.FacingUser,
		PhotoResolutions:   []prop.Resolution{{Width: 1280, Height: 960}},
		PreviewResolutions: []prop.Resolution{{Width: 640, Height: 480}},
		VideoModes:         []driver.VideoMode{{Resolution: prop.Resolution{Width: 640, Height: 480}, ConstFPS: []int{60}}},
	}
}

func TestOpenStream(t *testing.T) {
	b := New(testDevice())
	ctx := context.Background()

	s, err := b.OpenStream(ctx, prop.ConstraintSet{
		DeviceID:  prop.StringExact("front"),
		Width:     prop.IntExact(640),
		Height:    prop.IntExact(480),
		FrameRate: prop.FloatExact(60),
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := prop.Media{DeviceID: "front", Width: 640, Height: 480, FrameRate: 60}
	if s.Settings() != expected {
		t.Errorf("expected %+v, got %+v", expected, s.Settings())
	}
	if s.Facing() != driver.FacingUser {
		t.Errorf("expected user facing, got %s", s.Facing())
	}
	if b.Live() != 1 {
		t.Errorf("expected one live stream, got %d", b.Live())
	}
	_ = s.Close()
	_ = s.Close()
	if b.Live() != 0 || b.MaxLive() != 1 {
		t.Errorf("expected 0 live and max 1, got %d and %d", b.Live(), b.MaxLive())
	}
}

func TestOpenStreamErrors(t *testing.T) {
	b := New(testDevice())
	ctx := context.Background()

	var over *availability.OverconstrainedError
	_, err := b.OpenStream(ctx, prop.ConstraintSet{DeviceID: prop.StringExact("gone")})
	if !errors.As(err, &over) || over.Constraint != prop.ConstraintDeviceID {
		t.Errorf("expected deviceId overconstrained, got %v", err)
	}

	_, err = b.OpenStream(ctx, prop.ConstraintSet{DeviceID: prop.StringExact("front"), Width: prop.IntExact(1920)})
	if !errors.As(err, &over) || over.Constraint != prop.ConstraintWidth {
		t.Errorf("expected width overconstrained, got %v", err)
	}

	b.SetBusy("front", true)
	var notReadable *availability.NotReadableError
	if _, err = b.OpenStream(ctx, prop.ConstraintSet{}); !errors.As(err, &notReadable) {
		t.Errorf("expected not readable, got %v", err)
	}
	if busy, _ := b.IsDeviceInUse(ctx, "front"); !busy {
		t.Error("expected device to be in use")
	}
	b.SetBusy("front", false)

	boom := errors.New("boom")
	b.FailNext("front", boom)
	if _, err = b.OpenStream(ctx, prop.ConstraintSet{}); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
	if _, err = b.OpenStream(ctx, prop.ConstraintSet{}); err != nil {
		t.Errorf("expected queued failure to be consumed, got %v", err)
	}
	if n := len(b.Attempts()); n != 5 {
		t.Errorf("expected 5 attempts, got %d", n)
	}
}

func TestGate(t *testing.T) {
	b := New(testDevice())
	gate := make(chan struct{})
	b.SetGate(gate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.OpenStream(ctx, prop.ConstraintSet{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}

	close(gate)
	if _, err := b.OpenStream(context.Background(), prop.ConstraintSet{}); err != nil {
		t.Fatal(err)
	}
}
