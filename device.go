package rthandle

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Device is the part of the host rendering backend that backing textures
// are created and destroyed through. hal.Device satisfies it.
//
// Destroying a texture that in-flight GPU work still references is the
// device's problem: the registry calls DestroyTexture as soon as a handle
// is released or resized and expects the backend to defer the actual free
// until submitted work completes.
type Device interface {
	CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error)
	DestroyTexture(texture hal.Texture)
	CreateTextureView(texture hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error)
	DestroyTextureView(view hal.TextureView)
}

var _ Device = hal.Device(nil)

// ErrNoHALDevice is returned when a provider does not expose a hal.Device.
var ErrNoHALDevice = errors.New("rthandle: provider does not expose a HAL device")

// DeviceFromProvider extracts the HAL device from a host provider such as a
// gogpu application. The provider must implement HalDevice() any returning
// a hal.Device.
func DeviceFromProvider(provider gpucontext.DeviceProvider) (Device, error) {
	type halProvider interface {
		HalDevice() any
	}
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no HalDevice method", ErrNoHALDevice, provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice returned %T", ErrNoHALDevice, hp.HalDevice())
	}
	return device, nil
}
