// Package videotest provides a scriptable in-memory camera backend for
// testing.
package videotest

import (
	"context"
	"image"
	"sync"

	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/prop"
)

// Streams of devices without any capability open at this size.
var fallbackMedia = prop.Media{Width: 640, Height: 480, FrameRate: 30}

// Backend implements driver.Backend. Streams are opened at one of the
// device preview resolutions, with any frame rate of its video modes or
// 30fps.
type Backend struct {
	mu sync.Mutex

	devices  []driver.DeviceInfo
	enumErr  error
	busy     map[string]bool
	failNext map[string][]error
	failAll  map[string]error
	gate     <-chan struct{}

	attempts []prop.ConstraintSet
	streams  []*Stream
	live     int
	maxLive  int
}

var _ driver.Backend = (*Backend)(nil)

// New returns a backend exposing devices.
func New(devices ...driver.DeviceInfo) *Backend {
	return &Backend{
		devices:  devices,
		busy:     map[string]bool{},
		failNext: map[string][]error{},
		failAll:  map[string]error{},
	}
}

// SetDevices replaces the enumerated devices.
func (b *Backend) SetDevices(devices ...driver.DeviceInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devices
}

// SetEnumerateError makes EnumerateDevices fail with err until cleared
// with nil.
func (b *Backend) SetEnumerateError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enumErr = err
}

// SetBusy marks a device as held by another consumer. Opening a busy
// device fails with a NotReadableError.
func (b *Backend) SetBusy(id string, busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy[id] = busy
}

// FailNext queues errors returned by the next opens of a device, one per
// attempt.
func (b *Backend) FailNext(id string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[id] = append(b.failNext[id], errs...)
}

// FailAlways makes every open of a device fail with err. A nil err clears
// it.
func (b *Backend) FailAlways(id string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failAll, id)
		return
	}
	b.failAll[id] = err
}

// SetGate blocks every open until gate yields or is closed. A nil gate
// disables blocking.
func (b *Backend) SetGate(gate <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = gate
}

// Attempts returns every constraint set OpenStream was called with.
func (b *Backend) Attempts() []prop.ConstraintSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]prop.ConstraintSet(nil), b.attempts...)
}

// Streams returns every stream opened so far.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.streams...)
}

// Live returns the number of streams not closed yet.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// MaxLive returns the largest number of simultaneously open streams.
func (b *Backend) MaxLive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxLive
}

// EnumerateDevices implements driver.CapabilitySource.
func (b *Backend) EnumerateDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enumErr != nil {
		return nil, b.enumErr
	}
	return append([]driver.DeviceInfo(nil), b.devices...), nil
}

// IsDeviceInUse implements driver.CapabilitySource.
func (b *Backend) IsDeviceInUse(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy[id], nil
}

// OpenStream implements driver.StreamTransport.
func (b *Backend) OpenStream(ctx context.Context, c prop.ConstraintSet) (driver.Stream, error) {
	b.mu.Lock()
	b.attempts = append(b.attempts, c)
	gate := b.gate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.resolve(c)
	if !ok {
		return nil, &availability.OverconstrainedError{Constraint: prop.ConstraintDeviceID}
	}
	if errs := b.failNext[info.ID]; len(errs) > 0 {
		b.failNext[info.ID] = errs[1:]
		return nil, errs[0]
	}
	if err := b.failAll[info.ID]; err != nil {
		return nil, err
	}
	if b.busy[info.ID] {
		return nil, &availability.NotReadableError{Err: availability.ErrBusy}
	}

	m, violation, ok := selectMedia(info, c)
	if !ok {
		return nil, &availability.OverconstrainedError{Constraint: violation}
	}

	s := &Stream{backend: b, media: m, facing: info.Facing}
	b.streams = append(b.streams, s)
	b.live++
	if b.live > b.maxLive {
		b.maxLive = b.live
	}
	return s, nil
}

func (b *Backend) resolve(c prop.ConstraintSet) (driver.DeviceInfo, bool) {
	for _, d := range b.devices {
		if c.DeviceID == nil {
			return d, true
		}
		if _, ok := c.DeviceID.Compare(d.ID); ok {
			return d, true
		}
	}
	return driver.DeviceInfo{}, false
}

func offered(info driver.DeviceInfo) []prop.Media {
	if len(info.PreviewResolutions) == 0 {
		m := fallbackMedia
		m.DeviceID = info.ID
		return []prop.Media{m}
	}
	rates := []float32{30}
	for _, vm := range info.VideoModes {
		for _, f := range vm.ConstFPS {
			seen := false
			for _, r := range rates {
				seen = seen || r == float32(f)
			}
			if !seen {
				rates = append(rates, float32(f))
			}
		}
	}
	var ms []prop.Media
	for _, p := range info.PreviewResolutions {
		for _, r := range rates {
			ms = append(ms, prop.Media{DeviceID: info.ID, Width: p.Width, Height: p.Height, FrameRate: r})
		}
	}
	return ms
}

func selectMedia(info driver.DeviceInfo, c prop.ConstraintSet) (prop.Media, string, bool) {
	var (
		best      prop.Media
		bestDist  float64
		found     bool
		violation string
	)
	for _, m := range offered(info) {
		if c.Audio != nil {
			m.Audio = c.Audio.Value()
		}
		dist, ok := c.FitnessDistance(m)
		if !ok {
			if name, bad := c.Unsatisfied(m); bad && violation == "" {
				violation = name
			}
			continue
		}
		if !found || dist < bestDist {
			best, bestDist, found = m, dist, true
		}
	}
	return best, violation, found
}

// Stream is an opened fake stream. It accepts digital zoom crop regions.
type Stream struct {
	backend *Backend
	media   prop.Media
	facing  driver.Facing

	mu     sync.Mutex
	closed bool
	crops  []image.Rectangle
}

var _ driver.CropRegionSetter = (*Stream)(nil)

func (s *Stream) Settings() prop.Media { return s.media }

func (s *Stream) Facing() driver.Facing { return s.facing }

// SetCropRegion records r.
func (s *Stream) SetCropRegion(r image.Rectangle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crops = append(s.crops, r)
	return nil
}

// CropRegions returns every crop region set so far.
func (s *Stream) CropRegions() []image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Rectangle(nil), s.crops...)
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.backend.mu.Lock()
	s.backend.live--
	s.backend.mu.Unlock()
	return nil
}
