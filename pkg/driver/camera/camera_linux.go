//go:build linux

package camera

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"syscall"

	"github.com/blackjack/webcam"
	"github.com/pion/camconfig/internal/logging"
	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/prop"
	pionlogging "github.com/pion/logging"
)

func fourcc(a, b, c, d byte) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// Pixel formats in order of preference.
var preferredFormats = []webcam.PixelFormat{
	fourcc('M', 'J', 'P', 'G'),
	fourcc('Y', 'U', 'Y', 'V'),
	fourcc('N', 'V', '1', '2'),
}

type capability struct {
	info    driver.DeviceInfo
	formats map[prop.Resolution][]webcam.PixelFormat
}

// Backend implements driver.Backend on top of V4L2.
type Backend struct {
	opts options
	log  pionlogging.LeveledLogger

	mu      sync.Mutex
	devices map[string]device
	cache   map[string]capability
	open    map[string]*stream
}

var _ driver.Backend = (*Backend)(nil)

// New returns a V4L2 backend.
func New(opts ...Option) *Backend {
	o := newOptions(opts)
	return &Backend{
		opts:    o,
		log:     logging.NewLoggerFrom(o.loggerFactory, "camera"),
		devices: map[string]device{},
		cache:   map[string]capability{},
		open:    map[string]*stream{},
	}
}

// EnumerateDevices implements driver.CapabilitySource. Nodes that cannot be
// queried right now keep their last known capability.
func (b *Backend) EnumerateDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	discovered := make(map[string]struct{})
	var found []device
	for _, pattern := range b.opts.patterns {
		found = append(found, discover(discovered, pattern)...)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.devices = map[string]device{}
	var infos []driver.DeviceInfo
	for _, d := range found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.devices[d.id] = d
		c, err := b.query(d)
		if err != nil {
			cached, ok := b.cache[d.id]
			if !ok {
				b.log.Warnf("skipping %s: %v", d.path, err)
				continue
			}
			c = cached
		}
		b.cache[d.id] = c
		infos = append(infos, c.info)
	}
	return infos, nil
}

func (b *Backend) query(d device) (capability, error) {
	if s, ok := b.open[d.id]; ok {
		if c, ok := b.cache[d.id]; ok && !s.isClosed() {
			return c, nil
		}
	}
	cam, err := webcam.Open(d.path)
	if err != nil {
		return capability{}, err
	}
	defer cam.Close()

	c := capability{formats: map[prop.Resolution][]webcam.PixelFormat{}}
	fps := map[prop.Resolution][]int{}
	supported := cam.GetSupportedFormats()
	for _, pf := range preferredFormats {
		if _, ok := supported[pf]; !ok {
			continue
		}
		for _, size := range cam.GetSupportedFrameSizes(pf) {
			r := prop.Resolution{Width: int(size.MaxWidth), Height: int(size.MaxHeight)}
			if r.Width == 0 || r.Height == 0 {
				continue
			}
			if _, ok := fps[r]; !ok {
				fps[r] = nil
			}
			c.formats[r] = append(c.formats[r], pf)
			for _, rate := range cam.GetSupportedFramerates(pf, size.MaxWidth, size.MaxHeight) {
				if f, ok := constFPS(rate); ok && !containsInt(fps[r], f) {
					fps[r] = append(fps[r], f)
				}
			}
		}
	}
	c.info = deviceInfo(d, fps)
	return c, nil
}

// constFPS converts a discrete frame interval into an integral frame rate.
func constFPS(r webcam.FrameRate) (int, bool) {
	if r.MinNumerator != r.MaxNumerator || r.MinDenominator != r.MaxDenominator || r.MaxNumerator == 0 {
		return 0, false
	}
	f := float64(r.MaxDenominator) / float64(r.MaxNumerator)
	if math.Abs(f-math.Round(f)) > 0.01 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func containsInt(vs []int, v int) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// IsDeviceInUse implements driver.CapabilitySource by briefly streaming
// from the node.
func (b *Backend) IsDeviceInUse(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	d, ok := b.devices[id]
	if s, mine := b.open[id]; mine && !s.isClosed() {
		b.mu.Unlock()
		return false, nil
	}
	b.mu.Unlock()
	if !ok {
		return false, availability.ErrNoDevice
	}

	cam, err := webcam.Open(d.path)
	if err != nil {
		if errors.Is(err, syscall.EBUSY) {
			return true, nil
		}
		return false, err
	}
	defer cam.Close()

	if err := cam.StartStreaming(); err != nil {
		if errors.Is(err, syscall.EBUSY) {
			return true, nil
		}
		return false, err
	}
	return false, cam.StopStreaming()
}

// OpenStream implements driver.StreamTransport.
func (b *Backend) OpenStream(ctx context.Context, c prop.ConstraintSet) (driver.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.resolve(c)
	if !ok {
		return nil, &availability.OverconstrainedError{Constraint: prop.ConstraintDeviceID}
	}
	if _, err := os.Stat(d.path); err != nil {
		return nil, &availability.OverconstrainedError{Constraint: prop.ConstraintDeviceID}
	}
	capab, ok := b.cache[d.id]
	if !ok {
		var err error
		if capab, err = b.query(d); err != nil {
			return nil, classify(err)
		}
		b.cache[d.id] = capab
	}

	m, violation, ok := selectMode(capab.info, c)
	if !ok {
		return nil, &availability.OverconstrainedError{Constraint: violation}
	}
	formats := capab.formats[m.Resolution()]
	if len(formats) == 0 {
		return nil, &availability.OverconstrainedError{Constraint: prop.ConstraintWidth}
	}

	cam, err := webcam.Open(d.path)
	if err != nil {
		return nil, classify(err)
	}
	if _, _, _, err := cam.SetImageFormat(formats[0], uint32(m.Width), uint32(m.Height)); err != nil {
		cam.Close()
		return nil, classify(err)
	}
	if m.FrameRate > 0 {
		if err := cam.SetFramerate(m.FrameRate); err != nil {
			b.log.Debugf("%s: cannot set %v fps: %v", d.path, m.FrameRate, err)
		}
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, classify(err)
	}

	s := &stream{cam: cam, media: m}
	b.open[d.id] = s
	b.log.Infof("opened %s at %dx%d", d.label, m.Width, m.Height)
	return s, nil
}

func (b *Backend) resolve(c prop.ConstraintSet) (device, bool) {
	ids := make([]string, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if c.DeviceID == nil {
			return b.devices[id], true
		}
		if _, ok := c.DeviceID.Compare(id); ok {
			return b.devices[id], true
		}
	}
	return device{}, false
}

func classify(err error) error {
	switch {
	case errors.Is(err, syscall.EBUSY):
		return &availability.NotReadableError{Err: availability.ErrBusy}
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV):
		return &availability.OverconstrainedError{Constraint: prop.ConstraintDeviceID}
	}
	return fmt.Errorf("v4l2: %w", err)
}

type stream struct {
	mu     sync.Mutex
	cam    *webcam.Webcam
	media  prop.Media
	closed bool
}

func (s *stream) Settings() prop.Media { return s.media }

func (s *stream) Facing() driver.Facing { return driver.FacingExternal }

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// StopStreaming frees the mmap buffers, nothing reads from them here.
	_ = s.cam.StopStreaming()
	return s.cam.Close()
}
