package preference

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/prop"
)

// PhotoAspectOptions returns the photo aspect ratio classes of a device in
// display order, with the effective preference checked.
func (s *Store) PhotoAspectOptions(deviceID string) []AspectOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoAspectOptionsLocked(deviceID)
}

// PhotoResolutionOptions returns the photo resolution options of the
// checked aspect class: one per level, or one per resolution in show-all
// mode.
func (s *Store) PhotoResolutionOptions(deviceID string) []ResolutionOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoResolutionOptionsLocked(deviceID)
}

// VideoResolutionOptions returns the video resolution options of a device
// with their frame rate options.
func (s *Store) VideoResolutionOptions(deviceID string) []ResolutionOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoResolutionOptionsLocked(deviceID)
}

func (s *Store) photoAspectOptionsLocked(id string) []AspectOption {
	t, p := s.tableLocked(id), s.prefsLocked(id)
	checked := s.effectivePhotoAspect(t, p)
	classes := s.photoAspectClasses(t)
	opts := make([]AspectOption, len(classes))
	for i, c := range classes {
		opts[i] = AspectOption{Class: c, Checked: c == checked}
	}
	return opts
}

func (s *Store) photoResolutionOptionsLocked(id string) []ResolutionOption {
	t, p := s.tableLocked(id), s.prefsLocked(id)
	class := s.effectivePhotoAspect(t, p)
	rs := photoResolutionsOf(t, class)

	var opts []ResolutionOption
	if s.showAll {
		checked, _ := s.effectivePhotoResolution(t, p)
		for _, r := range rs {
			opts = append(opts, ResolutionOption{
				Level:       LevelExact,
				Resolutions: []prop.Resolution{r},
				Checked:     r == checked,
			})
		}
		return opts
	}

	checked := effectivePhotoLevel(t, p, class)
	for _, l := range []Level{LevelFull, LevelMedium} {
		o := ResolutionOption{Level: l, Checked: l == checked}
		for _, r := range rs {
			if t.photoLevels[r] == l {
				o.Resolutions = append(o.Resolutions, r)
			}
		}
		if len(o.Resolutions) > 0 {
			opts = append(opts, o)
		}
	}
	return opts
}

func (s *Store) videoResolutionOptionsLocked(id string) []ResolutionOption {
	t, p := s.tableLocked(id), s.prefsLocked(id)

	var opts []ResolutionOption
	if s.showAll {
		checked, _ := effectiveVideoResolution(t, p)
		for _, e := range t.video {
			opts = append(opts, ResolutionOption{
				Level:       LevelExact,
				Resolutions: []prop.Resolution{e.res},
				Checked:     e.res == checked,
			})
		}
	} else {
		checked := effectiveVideoLevel(t, p)
		for _, l := range t.videoLevelOrder {
			opts = append(opts, ResolutionOption{
				Level:       l,
				Resolutions: videoResolutionsOf(t, l),
				Checked:     l == checked,
			})
		}
	}
	for i := range opts {
		fps := fpsOptions(t, opts[i].Resolutions)
		selected := effectiveFPS(fps, p, opts[i].Key())
		for j := range fps {
			fps[j].Checked = fps[j].ConstFPS == selected
		}
		opts[i].FpsOptions = fps
	}
	return opts
}

func (s *Store) optionEventsLocked(id string) []event.Event {
	return []event.Event{
		{Kind: event.PhotoAspectOptions, DeviceID: id, Payload: s.photoAspectOptionsLocked(id)},
		{Kind: event.PhotoResolutionOptions, DeviceID: id, Payload: s.photoResolutionOptionsLocked(id)},
		{Kind: event.VideoResolutionOptions, DeviceID: id, Payload: s.videoResolutionOptionsLocked(id)},
	}
}

// mutate runs f under the lock, then publishes the option events of the
// touched devices.
func (s *Store) mutate(ids []string, f func() error) error {
	events, err := func() ([]event.Event, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := f(); err != nil {
			return nil, err
		}
		var events []event.Event
		for _, id := range ids {
			if _, ok := s.tables[id]; ok {
				events = append(events, s.optionEventsLocked(id)...)
			}
		}
		return events, nil
	}()

	s.notify(events)
	return err
}

// SetPhotoAspectClass prefers class for the photos of a device. class must
// be one of PhotoAspectOptions.
func (s *Store) SetPhotoAspectClass(ctx context.Context, deviceID string, class prop.AspectClass) error {
	return s.mutate([]string{deviceID}, func() error {
		t, p := s.tableLocked(deviceID), s.prefsLocked(deviceID)
		if len(photoResolutionsOf(t, class)) == 0 {
			panic(fmt.Sprintf("preference: aspect class %s not offered by device %q", class, deviceID))
		}
		p.photoAspect = class
		return s.set(ctx, Key(KindPhotoAspect, deviceID), string(class))
	})
}

// SetPhotoLevel prefers the photo level l.
func (s *Store) SetPhotoLevel(ctx context.Context, deviceID string, l Level) error {
	return s.mutate([]string{deviceID}, func() error {
		s.tableLocked(deviceID)
		if l != LevelFull && l != LevelMedium {
			panic(fmt.Sprintf("preference: invalid photo level %q", l))
		}
		s.prefsLocked(deviceID).photoLevel = l
		return s.set(ctx, Key(KindPhotoLevel, deviceID), string(l))
	})
}

// SetPhotoResolution prefers the exact photo resolution r, which also
// selects its aspect class.
func (s *Store) SetPhotoResolution(ctx context.Context, deviceID string, r prop.Resolution) error {
	return s.mutate([]string{deviceID}, func() error {
		t, p := s.tableLocked(deviceID), s.prefsLocked(deviceID)
		if !t.hasPhoto(r) {
			panic(fmt.Sprintf("preference: photo resolution %v not offered by device %q", r, deviceID))
		}
		p.photoResolution = r
		p.photoAspect = r.AspectClass()
		if err := s.set(ctx, Key(KindPhotoResolution, deviceID), r.String()); err != nil {
			return err
		}
		return s.set(ctx, Key(KindPhotoAspect, deviceID), string(p.photoAspect))
	})
}

// SetVideoLevel prefers the video level l, which must be offered.
func (s *Store) SetVideoLevel(ctx context.Context, deviceID string, l Level) error {
	return s.mutate([]string{deviceID}, func() error {
		t := s.tableLocked(deviceID)
		if len(videoResolutionsOf(t, l)) == 0 {
			panic(fmt.Sprintf("preference: video level %q not offered by device %q", l, deviceID))
		}
		s.prefsLocked(deviceID).videoLevel = l
		return s.set(ctx, Key(KindVideoLevel, deviceID), string(l))
	})
}

// SetVideoResolution prefers the exact video resolution r.
func (s *Store) SetVideoResolution(ctx context.Context, deviceID string, r prop.Resolution) error {
	return s.mutate([]string{deviceID}, func() error {
		t := s.tableLocked(deviceID)
		if _, ok := t.videoEntry(r); !ok {
			panic(fmt.Sprintf("preference: video resolution %v not offered by device %q", r, deviceID))
		}
		s.prefsLocked(deviceID).videoResolution = r
		return s.set(ctx, Key(KindVideoResolution, deviceID), r.String())
	})
}

// SetVideoConstFPS prefers fps for the video option identified by
// optionKey (see ResolutionOption.Key). fps 0 selects variable frame rate.
func (s *Store) SetVideoConstFPS(ctx context.Context, deviceID, optionKey string, fps int) error {
	return s.mutate([]string{deviceID}, func() error {
		t := s.tableLocked(deviceID)
		var rs []prop.Resolution
		if r, err := prop.ParseResolution(optionKey); err == nil {
			if _, ok := t.videoEntry(r); ok {
				rs = []prop.Resolution{r}
			}
		} else {
			rs = videoResolutionsOf(t, Level(optionKey))
		}
		if len(rs) == 0 {
			panic(fmt.Sprintf("preference: video option %q not offered by device %q", optionKey, deviceID))
		}
		found := false
		for _, o := range fpsOptions(t, rs) {
			if o.ConstFPS == fps {
				found = true
				break
			}
		}
		if !found {
			panic(fmt.Sprintf("preference: frame rate %d not offered by video option %q", fps, optionKey))
		}
		p := s.prefsLocked(deviceID)
		p.videoFPS[optionKey] = fps
		p.loadedFPS[optionKey] = true
		return s.set(ctx, Key(KindVideoFPS, deviceID, optionKey), strconv.Itoa(fps))
	})
}

// SetShowAllResolutions switches between tiered and exact resolution
// options on every device.
func (s *Store) SetShowAllResolutions(ctx context.Context, showAll bool) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tables))
	for id := range s.tables {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	return s.mutate(ids, func() error {
		s.showAll = showAll
		s.loadedShowAll = true
		return s.set(ctx, Key(KindShowAll, ""), strconv.FormatBool(showAll))
	})
}
