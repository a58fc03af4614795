//go:build !linux

package camera

import (
	"context"

	"github.com/pion/camconfig/pkg/driver"
	"github.com/pion/camconfig/pkg/driver/availability"
	"github.com/pion/camconfig/pkg/prop"
)

// Backend reports no devices outside Linux.
type Backend struct{}

var _ driver.Backend = (*Backend)(nil)

// New returns a backend without devices.
func New(opts ...Option) *Backend {
	_ = newOptions(opts)
	return &Backend{}
}

func (b *Backend) EnumerateDevices(context.Context) ([]driver.DeviceInfo, error) {
	return nil, nil
}

func (b *Backend) IsDeviceInUse(context.Context, string) (bool, error) {
	return false, availability.ErrUnimplemented
}

func (b *Backend) OpenStream(context.Context, prop.ConstraintSet) (driver.Stream, error) {
	return nil, availability.ErrUnimplemented
}
