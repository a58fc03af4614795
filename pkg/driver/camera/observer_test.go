package camera

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type change struct {
	id  string
	typ DeviceEventType
}

func TestObserverPoll(t *testing.T) {
	dir := t.TempDir()
	touch := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	touch("video0")

	o := NewObserver(time.Hour, WithSearchPatterns(filepath.Join(dir, "video*")))
	var changes []change
	o.SetOnDeviceChange(func(d Device, typ DeviceEventType) {
		changes = append(changes, change{filepath.Base(d.ID), typ})
	})
	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	defer o.Stop()

	if devices := o.Devices(); len(devices) != 1 {
		t.Fatalf("expected the initial snapshot to hold 1 device, got %v", devices)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no events for the initial snapshot, got %v", changes)
	}

	touch("video1")
	if err := os.Remove(filepath.Join(dir, "video0")); err != nil {
		t.Fatal(err)
	}
	o.poll()

	expected := []change{{"video0", DeviceEventDisconnected}, {"video1", DeviceEventConnected}}
	if len(changes) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, changes)
	}
	for i := range expected {
		if changes[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected[i], changes[i])
		}
	}

	if _, ok := o.LookupCachedDevice(filepath.Join(dir, "video1")); !ok {
		t.Error("expected video1 to be cached")
	}
	if _, ok := o.LookupCachedDevice(filepath.Join(dir, "video0")); ok {
		t.Error("expected video0 to be gone from the cache")
	}

	o.poll()
	if len(changes) != 2 {
		t.Errorf("expected no event without a change, got %v", changes[2:])
	}
}

func TestObserverLifecycle(t *testing.T) {
	o := NewObserver(time.Millisecond, WithSearchPatterns(filepath.Join(t.TempDir(), "video*")))
	if o.IsRunning() {
		t.Fatal("expected a new observer not to run")
	}
	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("expected a second start to be a no-op, got %v", err)
	}
	if !o.IsRunning() {
		t.Fatal("expected the observer to run")
	}
	o.Stop()
	o.Stop()
	if o.IsRunning() {
		t.Fatal("expected the observer to be stopped")
	}
	if err := o.Start(); err == nil {
		t.Fatal("expected a stopped observer not to restart")
	}
}
