package preference

import (
	"context"
	"strings"
	"sync"
)

// KeyValueStore persists preferences. Values are textual. Get reports
// ok=false for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Kind names one persisted preference.
type Kind string

// Preference kinds.
const (
	KindPhotoLevel      Kind = "photoLevel"
	KindPhotoAspect     Kind = "photoAspect"
	KindPhotoResolution Kind = "photoResolution"
	KindVideoLevel      Kind = "videoLevel"
	KindVideoResolution Kind = "videoResolution"
	// KindVideoFPS is qualified by the resolution option key.
	KindVideoFPS Kind = "videoFps"
	// KindShowAll is global and not tied to a device.
	KindShowAll Kind = "showAllResolutions"
)

// Key builds the storage key "<kind>[.<qualifier>...].<deviceID>".
func Key(kind Kind, deviceID string, qualifiers ...string) string {
	parts := append([]string{string(kind)}, qualifiers...)
	if deviceID != "" {
		parts = append(parts, deviceID)
	}
	return strings.Join(parts, ".")
}

// MemoryStore is an in-process KeyValueStore.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Get implements KeyValueStore.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements KeyValueStore.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
