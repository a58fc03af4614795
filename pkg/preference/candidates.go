package preference

import (
	"sort"

	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/prop"
)

// SortedCandidates returns the capture candidates of a device for mode,
// most preferred first. Devices without any usable resolution yield a
// single fallback candidate. It panics when the device has no capability
// table.
func (s *Store) SortedCandidates(deviceID string, mode candidate.Mode, hasAudio bool) []*candidate.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, p := s.tableLocked(deviceID), s.prefsLocked(deviceID)
	var cs []*candidate.Candidate
	switch mode {
	case candidate.ModeVideo:
		cs = s.videoCandidatesLocked(t, p, hasAudio)
	case candidate.ModeScan:
		for _, r := range t.photo {
			cs = append(cs, s.photoCandidate(t, r))
		}
	default:
		cs = s.photoCandidatesLocked(t, p)
	}
	if len(cs) == 0 {
		return []*candidate.Candidate{candidate.NewFallback(deviceID, hasAudio && mode.IsVideo())}
	}
	return cs
}

func (s *Store) previewsFor(t *table, r prop.Resolution) []prop.Resolution {
	return SortPreviewResolutions(t.pairedPreviews(r), r, s.screen)
}

func (s *Store) photoCandidate(t *table, r prop.Resolution) *candidate.Candidate {
	return candidate.NewPhoto(t.info.ID, r, s.previewsFor(t, r))
}

func (s *Store) photoCandidatesLocked(t *table, p *devicePrefs) []*candidate.Candidate {
	preferred := s.effectivePhotoAspect(t, p)
	classes := []prop.AspectClass{preferred}
	for _, c := range s.photoAspectClasses(t) {
		if c != preferred {
			classes = append(classes, c)
		}
	}

	exact, _ := s.effectivePhotoResolution(t, p)
	var cs []*candidate.Candidate
	for _, class := range classes {
		rs := photoResolutionsOf(t, class)
		if s.showAll {
			moveToFront(rs, func(r prop.Resolution) bool { return r == exact })
		} else {
			l := effectivePhotoLevel(t, p, class)
			moveToFront(rs, func(r prop.Resolution) bool { return t.photoLevels[r] == l })
		}
		for _, r := range rs {
			cs = append(cs, s.photoCandidate(t, r))
		}
	}
	return cs
}

type videoGroup struct {
	key string
	rs  []prop.Resolution
}

func (s *Store) videoCandidatesLocked(t *table, p *devicePrefs, hasAudio bool) []*candidate.Candidate {
	var groups []videoGroup
	var preferred string
	if s.showAll {
		for _, e := range t.video {
			groups = append(groups, videoGroup{e.res.String(), []prop.Resolution{e.res}})
		}
		if r, ok := effectiveVideoResolution(t, p); ok {
			preferred = r.String()
		}
	} else {
		for _, l := range t.videoLevelOrder {
			groups = append(groups, videoGroup{string(l), videoResolutionsOf(t, l)})
		}
		preferred = string(effectiveVideoLevel(t, p))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].key == preferred && groups[j].key != preferred
	})

	var cs []*candidate.Candidate
	add := func(r prop.Resolution, fps int) {
		cs = append(cs, candidate.NewVideo(t.info.ID, r, fps, s.previewsFor(t, r), hasAudio))
	}
	for _, g := range groups {
		fps := effectiveFPS(fpsOptions(t, g.rs), p, g.key)
		for _, r := range g.rs {
			if e, _ := t.videoEntry(r); fps == 0 || containsInt(e.fps, fps) {
				add(r, fps)
			}
		}
		for _, r := range g.rs {
			e, _ := t.videoEntry(r)
			for i := len(e.fps) - 1; i >= 0; i-- {
				if e.fps[i] != fps {
					add(r, e.fps[i])
				}
			}
			if fps != 0 {
				add(r, 0)
			}
		}
	}
	return cs
}

// moveToFront stably moves the elements matching f before the others.
func moveToFront(rs []prop.Resolution, f func(prop.Resolution) bool) {
	sort.SliceStable(rs, func(i, j int) bool {
		return f(rs[i]) && !f(rs[j])
	})
}

func containsInt(vs []int, v int) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
