package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/camconfig/pkg/prop"
)

// Manager owns the single live stream of a camera session. Opening a new
// stream always releases the previous one first, so the device is never
// held twice. A Manager is constructed by the application root and shared
// with whoever needs the stream; there is no package-level instance.
type Manager struct {
	transport StreamTransport

	mu      sync.Mutex
	current *streamWrapper
}

// NewManager creates a Manager opening streams through t.
func NewManager(t StreamTransport) *Manager {
	return &Manager{transport: t}
}

// Open releases the current stream and opens a new one satisfying c.
func (m *Manager) Open(ctx context.Context, c prop.ConstraintSet) (ManagedStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeLocked(); err != nil {
		return nil, err
	}

	s, err := m.transport.OpenStream(ctx, c)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("transport returned no stream for %v", c)
	}

	w := wrapStream(s)
	if err := w.start(); err != nil {
		_ = s.Close()
		return nil, err
	}
	m.current = w
	return m.current, nil
}

// Current returns the live stream, or nil.
func (m *Manager) Current() ManagedStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	return m.current
}

// Close releases the live stream if there is one.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	if err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}
