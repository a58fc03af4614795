package camera

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pion/camconfig/internal/logging"
	pionlogging "github.com/pion/logging"
)

// DeviceEventType tells whether a node appeared or vanished.
type DeviceEventType int

const (
	DeviceEventConnected DeviceEventType = iota
	DeviceEventDisconnected
)

func (e DeviceEventType) String() string {
	switch e {
	case DeviceEventConnected:
		return "connected"
	case DeviceEventDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("DeviceEventType(%d)", int(e))
}

// Device is a node seen by an Observer.
type Device struct {
	ID    string
	Label string
}

type observerState int

const (
	observerInitial observerState = iota
	observerRunning
	observerStopped
)

var errObserverStopped = errors.New("camera: observer stopped")

// Observer polls the search patterns and reports nodes appearing and
// vanishing. The callback runs on the polling goroutine.
type Observer struct {
	patterns []string
	interval time.Duration
	log      pionlogging.LeveledLogger

	mu             sync.Mutex
	state          observerState
	deviceCache    map[string]Device
	onDeviceChange func(Device, DeviceEventType)
	stop           chan struct{}
	wg             sync.WaitGroup
}

// NewObserver creates an Observer polling every interval.
func NewObserver(interval time.Duration, opts ...Option) *Observer {
	o := newOptions(opts)
	return &Observer{
		patterns:    o.patterns,
		interval:    interval,
		log:         logging.NewLoggerFrom(o.loggerFactory, "camera.observer"),
		deviceCache: map[string]Device{},
	}
}

// SetOnDeviceChange sets the callback invoked for every change.
func (o *Observer) SetOnDeviceChange(f func(Device, DeviceEventType)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDeviceChange = f
}

// Start takes the initial snapshot, without events, and starts polling.
// Starting a running observer is a no-op; a stopped one cannot restart.
func (o *Observer) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case observerRunning:
		return nil
	case observerStopped:
		return errObserverStopped
	}

	for _, d := range o.scan() {
		o.deviceCache[d.ID] = d
	}
	o.state = observerRunning
	o.stop = make(chan struct{})
	o.wg.Add(1)
	go o.run(o.stop)
	return nil
}

// Stop ends polling and waits for the polling goroutine.
func (o *Observer) Stop() {
	o.mu.Lock()
	if o.state != observerRunning {
		o.state = observerStopped
		o.mu.Unlock()
		return
	}
	o.state = observerStopped
	close(o.stop)
	o.mu.Unlock()

	o.wg.Wait()
}

// IsRunning reports whether the observer polls.
func (o *Observer) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == observerRunning
}

// Devices returns the known nodes sorted by ID.
func (o *Observer) Devices() []Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	devices := make([]Device, 0, len(o.deviceCache))
	for _, d := range o.deviceCache {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// LookupCachedDevice returns the known node with id.
func (o *Observer) LookupCachedDevice(id string) (Device, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.deviceCache[id]
	return d, ok
}

func (o *Observer) scan() []Device {
	discovered := make(map[string]struct{})
	var devices []Device
	for _, pattern := range o.patterns {
		for _, d := range discover(discovered, pattern) {
			devices = append(devices, Device{ID: d.id, Label: d.label})
		}
	}
	return devices
}

func (o *Observer) run(stop chan struct{}) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.poll()
		}
	}
}

type deviceEvent struct {
	device Device
	typ    DeviceEventType
}

// poll diffs a fresh scan against the cache and notifies the changes,
// disconnections first.
func (o *Observer) poll() {
	current := o.scan()

	o.mu.Lock()
	seen := make(map[string]Device, len(current))
	for _, d := range current {
		seen[d.ID] = d
	}
	var events []deviceEvent
	for id, d := range o.deviceCache {
		if _, ok := seen[id]; !ok {
			delete(o.deviceCache, id)
			events = append(events, deviceEvent{d, DeviceEventDisconnected})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].device.ID < events[j].device.ID })
	for _, d := range current {
		if _, ok := o.deviceCache[d.ID]; !ok {
			o.deviceCache[d.ID] = d
			events = append(events, deviceEvent{d, DeviceEventConnected})
		}
	}
	cb := o.onDeviceChange
	o.mu.Unlock()

	for _, e := range events {
		o.log.Infof("device %s %s", e.device.ID, e.typ)
		if cb != nil {
			cb(e.device, e.typ)
		}
	}
}
