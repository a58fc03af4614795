// Package preference keeps per-device capability tables and user
// preferences, and derives from them the ordered capture candidates the
// reconfigurer tries.
package preference

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pion/camconfig/internal/logging"
	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/prop"
	pionlogging "github.com/pion/logging"
)

// DefaultAspectOrder is the photo aspect ratio order used when the board
// does not define one.
var DefaultAspectOrder = []prop.AspectClass{
	prop.Aspect4x3, prop.Aspect16x9, prop.Aspect16x10, prop.Aspect3x2, prop.Aspect1x1,
}

// Options configures a Store.
type Options struct {
	AspectOrder   []prop.AspectClass
	Screen        prop.Resolution
	Observers     *event.Registry
	LoggerFactory pionlogging.LoggerFactory
}

// Option mutates Options.
type Option func(*Options)

// WithAspectOrder sets the board specific photo aspect ratio order.
func WithAspectOrder(order []prop.AspectClass) Option {
	return func(o *Options) {
		o.AspectOrder = order
	}
}

// WithScreenSize sets the screen size the preview sort policy uses.
func WithScreenSize(screen prop.Resolution) Option {
	return func(o *Options) {
		o.Screen = screen
	}
}

// WithObservers sets the registry option changes are published on.
func WithObservers(r *event.Registry) Option {
	return func(o *Options) {
		o.Observers = r
	}
}

// WithLoggerFactory sets the logger factory.
func WithLoggerFactory(f pionlogging.LoggerFactory) Option {
	return func(o *Options) {
		o.LoggerFactory = f
	}
}

type devicePrefs struct {
	photoLevel      Level
	photoAspect     prop.AspectClass
	photoResolution prop.Resolution
	videoLevel      Level
	videoResolution prop.Resolution
	// videoFPS maps a resolution option key to a constant frame rate, 0
	// meaning variable.
	videoFPS  map[string]int
	loadedFPS map[string]bool
}

// Store is the candidate preference store. All methods are safe for
// concurrent use; every mutation is applied atomically.
type Store struct {
	mu sync.Mutex

	persist   KeyValueStore
	observers *event.Registry
	log       pionlogging.LeveledLogger

	aspectOrder []prop.AspectClass
	screen      prop.Resolution

	showAll       bool
	loadedShowAll bool

	tables map[string]*table
	prefs  map[string]*devicePrefs
}

// New returns a Store persisting to persist. A nil persist keeps
// preferences in memory only.
func New(persist KeyValueStore, opts ...Option) *Store {
	o := Options{AspectOrder: DefaultAspectOrder}
	for _, opt := range opts {
		opt(&o)
	}
	if persist == nil {
		persist = NewMemoryStore()
	}
	return &Store{
		persist:     persist,
		observers:   o.Observers,
		log:         logging.NewLoggerFrom(o.LoggerFactory, "camconfig.preference"),
		aspectOrder: o.AspectOrder,
		screen:      o.Screen,
		tables:      map[string]*table{},
		prefs:       map[string]*devicePrefs{},
	}
}

// UpdateCapability replaces the capability tables of all devices. Existing
// preferences are kept; a preferred resolution that disappeared is
// replaced, for selection purposes only, by the largest resolution of the
// same aspect ratio class. Preferences of devices seen for the first time
// are loaded from persistent storage; load failures are logged and the
// defaults are used.
func (s *Store) UpdateCapability(ctx context.Context, devices []driver.DeviceInfo) {
	s.mu.Lock()
	if !s.loadedShowAll {
		s.loadShowAllLocked(ctx)
	}
	tables := make(map[string]*table, len(devices))
	var ids []string
	for _, d := range devices {
		if _, dup := tables[d.ID]; !dup {
			ids = append(ids, d.ID)
		}
		t := newTable(d)
		tables[d.ID] = t
		s.loadPrefsLocked(ctx, d.ID, t)
	}
	s.tables = tables
	var events []event.Event
	for _, id := range ids {
		events = append(events, s.optionEventsLocked(id)...)
	}
	s.mu.Unlock()

	s.notify(events)
}

// HasDevice reports whether the last capability update contained id.
func (s *Store) HasDevice(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[id]
	return ok
}

// ShowAllResolutions reports whether options list every exact resolution
// instead of tiers.
func (s *Store) ShowAllResolutions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showAll
}

func (s *Store) notify(events []event.Event) {
	for _, e := range events {
		s.observers.Notify(e)
	}
}

func (s *Store) tableLocked(id string) *table {
	t, ok := s.tables[id]
	if !ok {
		panic(fmt.Sprintf("preference: no capability for device %q", id))
	}
	return t
}

func (s *Store) prefsLocked(id string) *devicePrefs {
	p, ok := s.prefs[id]
	if !ok {
		p = &devicePrefs{videoFPS: map[string]int{}, loadedFPS: map[string]bool{}}
		s.prefs[id] = p
	}
	return p
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.persist.Get(ctx, key)
	if err != nil {
		s.log.Warnf("failed to load preference %s: %v", key, err)
		return "", false
	}
	return v, ok
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := s.persist.Set(ctx, key, value); err != nil {
		s.log.Errorf("failed to save preference %s: %v", key, err)
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) loadShowAllLocked(ctx context.Context) {
	s.loadedShowAll = true
	v, ok := s.get(ctx, Key(KindShowAll, ""))
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		s.log.Warnf("ignoring invalid %s preference %q", KindShowAll, v)
		return
	}
	s.showAll = b
}

func (s *Store) loadPrefsLocked(ctx context.Context, id string, t *table) {
	p, loaded := s.prefs[id]
	if !loaded {
		p = s.prefsLocked(id)
		if v, ok := s.get(ctx, Key(KindPhotoLevel, id)); ok {
			p.photoLevel = Level(v)
		}
		if v, ok := s.get(ctx, Key(KindPhotoAspect, id)); ok {
			if c, err := prop.ParseAspectClass(v); err == nil {
				p.photoAspect = c
			} else {
				s.log.Warnf("ignoring invalid %s preference %q", KindPhotoAspect, v)
			}
		}
		if v, ok := s.get(ctx, Key(KindPhotoResolution, id)); ok {
			if r, err := prop.ParseResolution(v); err == nil {
				p.photoResolution = r
			} else {
				s.log.Warnf("ignoring invalid %s preference %q", KindPhotoResolution, v)
			}
		}
		if v, ok := s.get(ctx, Key(KindVideoLevel, id)); ok {
			p.videoLevel = Level(v)
		}
		if v, ok := s.get(ctx, Key(KindVideoResolution, id)); ok {
			if r, err := prop.ParseResolution(v); err == nil {
				p.videoResolution = r
			} else {
				s.log.Warnf("ignoring invalid %s preference %q", KindVideoResolution, v)
			}
		}
	}

	// Frame rate preferences are per option, so load the ones this table
	// exposes and that were not seen before.
	var keys []string
	for _, l := range t.videoLevelOrder {
		keys = append(keys, string(l))
	}
	for _, e := range t.video {
		keys = append(keys, e.res.String())
	}
	for _, k := range keys {
		if p.loadedFPS[k] {
			continue
		}
		p.loadedFPS[k] = true
		v, ok := s.get(ctx, Key(KindVideoFPS, id, k))
		if !ok {
			continue
		}
		fps, err := strconv.Atoi(v)
		if err != nil || fps < 0 {
			s.log.Warnf("ignoring invalid %s preference %q", KindVideoFPS, v)
			continue
		}
		p.videoFPS[k] = fps
	}
}

// photoAspectClasses returns the aspect classes present among the photo
// resolutions: board order first, then the others by largest area.
func (s *Store) photoAspectClasses(t *table) []prop.AspectClass {
	largest := map[prop.AspectClass]int{}
	var classes []prop.AspectClass
	for _, r := range t.photo {
		c := r.AspectClass()
		if _, ok := largest[c]; !ok {
			largest[c] = r.Area()
			classes = append(classes, c)
		}
	}
	rank := func(c prop.AspectClass) int {
		for i, o := range s.aspectOrder {
			if o == c {
				return i
			}
		}
		return len(s.aspectOrder)
	}
	sort.SliceStable(classes, func(i, j int) bool {
		ri, rj := rank(classes[i]), rank(classes[j])
		if ri != rj {
			return ri < rj
		}
		return largest[classes[i]] > largest[classes[j]]
	})
	return classes
}

func photoResolutionsOf(t *table, class prop.AspectClass) []prop.Resolution {
	var rs []prop.Resolution
	for _, r := range t.photo {
		if r.AspectClass() == class {
			rs = append(rs, r)
		}
	}
	return rs
}

func (s *Store) effectivePhotoResolution(t *table, p *devicePrefs) (prop.Resolution, bool) {
	if len(t.photo) == 0 {
		return prop.Resolution{}, false
	}
	if !p.photoResolution.IsZero() {
		if t.hasPhoto(p.photoResolution) {
			return p.photoResolution, true
		}
		if rs := photoResolutionsOf(t, p.photoResolution.AspectClass()); len(rs) > 0 {
			return rs[0], true
		}
	}
	if rs := photoResolutionsOf(t, s.preferredAspect(t, p)); len(rs) > 0 {
		return rs[0], true
	}
	return t.photo[0], true
}

func (s *Store) preferredAspect(t *table, p *devicePrefs) prop.AspectClass {
	classes := s.photoAspectClasses(t)
	if len(classes) == 0 {
		return ""
	}
	for _, c := range classes {
		if c == p.photoAspect {
			return c
		}
	}
	return classes[0]
}

func (s *Store) effectivePhotoAspect(t *table, p *devicePrefs) prop.AspectClass {
	if s.showAll {
		if r, ok := s.effectivePhotoResolution(t, p); ok {
			return r.AspectClass()
		}
	}
	return s.preferredAspect(t, p)
}

func effectivePhotoLevel(t *table, p *devicePrefs, class prop.AspectClass) Level {
	present := map[Level]bool{}
	for _, r := range photoResolutionsOf(t, class) {
		present[t.photoLevels[r]] = true
	}
	if present[p.photoLevel] {
		return p.photoLevel
	}
	if present[LevelFull] {
		return LevelFull
	}
	return LevelMedium
}

func effectiveVideoLevel(t *table, p *devicePrefs) Level {
	for _, l := range t.videoLevelOrder {
		if l == p.videoLevel {
			return l
		}
	}
	for _, l := range t.videoLevelOrder {
		if l == LevelFHD {
			return l
		}
	}
	if len(t.videoLevelOrder) == 0 {
		return ""
	}
	return t.videoLevelOrder[0]
}

func effectiveVideoResolution(t *table, p *devicePrefs) (prop.Resolution, bool) {
	if len(t.video) == 0 {
		return prop.Resolution{}, false
	}
	if !p.videoResolution.IsZero() {
		if _, ok := t.videoEntry(p.videoResolution); ok {
			return p.videoResolution, true
		}
		class := p.videoResolution.AspectClass()
		for _, e := range t.video {
			if e.res.AspectClass() == class {
				return e.res, true
			}
		}
	}
	fhd := prop.Resolution{Width: 1920, Height: 1080}
	if _, ok := t.videoEntry(fhd); ok {
		return fhd, true
	}
	return t.video[0].res, true
}

func videoResolutionsOf(t *table, l Level) []prop.Resolution {
	var rs []prop.Resolution
	for _, e := range t.video {
		if t.videoLevels[e.res] == l {
			rs = append(rs, e.res)
		}
	}
	return rs
}

// fpsOptions lists the constant frame rates any of rs supports in
// increasing order, followed by the variable frame rate option.
func fpsOptions(t *table, rs []prop.Resolution) []FpsOption {
	byFPS := map[int][]prop.Resolution{}
	for _, r := range rs {
		e, _ := t.videoEntry(r)
		for _, f := range e.fps {
			byFPS[f] = append(byFPS[f], r)
		}
	}
	fpss := make([]int, 0, len(byFPS))
	for f := range byFPS {
		fpss = append(fpss, f)
	}
	sort.Ints(fpss)
	opts := make([]FpsOption, 0, len(fpss)+1)
	for _, f := range fpss {
		opts = append(opts, FpsOption{ConstFPS: f, Resolutions: byFPS[f]})
	}
	return append(opts, FpsOption{ConstFPS: 0, Resolutions: append([]prop.Resolution(nil), rs...)})
}

func effectiveFPS(opts []FpsOption, p *devicePrefs, key string) int {
	has := func(fps int) bool {
		for _, o := range opts {
			if o.ConstFPS == fps {
				return true
			}
		}
		return false
	}
	if fps, ok := p.videoFPS[key]; ok && has(fps) {
		return fps
	}
	if has(defaultConstFPS) {
		return defaultConstFPS
	}
	return 0
}
