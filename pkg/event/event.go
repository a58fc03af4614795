// Package event is the observer registry the configuration core notifies
// option and configuration changes through.
package event

import (
	"sync"

	"github.com/pion/camconfig/internal/logging"
)

// Kind identifies what changed.
type Kind string

// Event kinds.
const (
	// PhotoResolutionOptions: the checked photo resolution options of a
	// device changed. Payload is []preference.ResolutionOption.
	PhotoResolutionOptions Kind = "photo-resolution-options"
	// PhotoAspectOptions: the photo aspect ratio options of a device
	// changed. Payload is []preference.AspectOption.
	PhotoAspectOptions Kind = "photo-aspect-options"
	// VideoResolutionOptions: the video resolution options of a device
	// changed. Payload is []preference.ResolutionOption.
	VideoResolutionOptions Kind = "video-resolution-options"
	// TryingNewConfig: a configuration is about to be opened. Payload is
	// camconfig.ConfigCandidate.
	TryingNewConfig Kind = "trying-new-config"
	// UpdateConfig: a configuration went live. Payload is
	// camconfig.CameraConfig.
	UpdateConfig Kind = "update-config"
	// UpdateCapability: device capability was replaced. Payload is
	// []driver.DeviceInfo.
	UpdateCapability Kind = "update-capability"
)

// Event is one notification.
type Event struct {
	Kind     Kind
	DeviceID string
	Payload  interface{}
}

// Observer receives events. Notify is called synchronously, mostly on the
// goroutine holding the camera, and must not block. Capability events and
// the option events they cause are delivered once the camera is released,
// so their observers may reconfigure in place; observers of TryingNewConfig
// and UpdateConfig must hand a reconfigure off to another goroutine.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(e Event) { f(e) }

type entry struct {
	id       int
	observer Observer
}

// Registry fans events out to observers in registration order.
type Registry struct {
	mu         sync.RWMutex
	entries    []entry
	nextID     int
	collecting *[]Event
}

// NewRegistry creates a Registry with the given observers.
func NewRegistry(observers ...Observer) *Registry {
	r := &Registry{}
	for _, o := range observers {
		r.Add(o)
	}
	return r
}

// Add registers o and returns a function removing it again.
func (r *Registry) Add(o Observer) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.entries = append(r.entries, entry{id: id, observer: o})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e.id == id {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers e to every observer. Observers are best effort: a
// panicking observer is logged and skipped.
func (r *Registry) Notify(e Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.collecting != nil {
		*r.collecting = append(*r.collecting, e)
		r.mu.Unlock()
		return
	}
	entries := append([]entry(nil), r.entries...)
	r.mu.Unlock()

	for _, en := range entries {
		notify(en.observer, e)
	}
}

// Collect runs f and returns the events notified meanwhile instead of
// delivering them. Calls must not overlap.
func (r *Registry) Collect(f func()) []Event {
	if r == nil {
		f()
		return nil
	}
	var events []Event
	r.mu.Lock()
	r.collecting = &events
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.collecting = nil
		r.mu.Unlock()
	}()

	f()

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), events...)
}

// Deliver notifies events in order.
func (r *Registry) Deliver(events []Event) {
	for _, e := range events {
		r.Notify(e)
	}
}

func notify(o Observer, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.NewLogger("event").Warnf("observer panicked on %s: %v", e.Kind, rec)
		}
	}()
	o.Notify(e)
}
