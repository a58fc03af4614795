package driver

import (
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/prop"
)

// ManagedStream is a Stream handed out by a Manager.
type ManagedStream interface {
	Stream
	CropRegionSetter
	ID() string
	Status() State
}

type streamWrapper struct {
	Stream
	id string

	mu    sync.Mutex
	state State
}

func wrapStream(s Stream) *streamWrapper {
	return &streamWrapper{
		Stream: s,
		id:     uuid.NewString(),
		state:  StateClosed,
	}
}

// start moves a freshly wrapped stream through opened to running.
func (w *streamWrapper) start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	noop := func() error { return nil }
	if err := w.state.Update(StateOpened, noop); err != nil {
		return err
	}
	return w.state.Update(StateRunning, noop)
}

func (w *streamWrapper) ID() string {
	return w.id
}

func (w *streamWrapper) Status() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *streamWrapper) Settings() prop.Media {
	return w.Stream.Settings()
}

// SetCropRegion forwards r to the underlying stream when it supports
// digital zoom.
func (w *streamWrapper) SetCropRegion(r image.Rectangle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateRunning {
		return fmt.Errorf("invalid state: stream %s is %s", w.id, w.state)
	}
	setter, ok := w.Stream.(CropRegionSetter)
	if !ok {
		return availability.ErrUnimplemented
	}
	return setter.SetCropRegion(r)
}

// Close closes the underlying stream once. Subsequent calls are no-ops.
func (w *streamWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateClosed {
		return nil
	}
	return w.state.Update(StateClosed, w.Stream.Close)
}
