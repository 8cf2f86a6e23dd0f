package rthandle

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// RegistryOption configures a Registry during creation.
//
// Example:
//
//	reg, err := rthandle.NewRegistry(device,
//	    rthandle.WithPlatform(rthandle.DesktopPlatform()),
//	    rthandle.WithMSAASamples(4))
type RegistryOption func(*registryOptions)

type registryOptions struct {
	platform    Platform
	colorFormat gputypes.TextureFormat
	baseSize    Size
	msaaSamples uint32
}

func defaultRegistryOptions() registryOptions {
	return registryOptions{
		platform:    StaticPlatform{},
		colorFormat: gputypes.TextureFormatRGBA8Unorm,
		msaaSamples: 1,
	}
}

// WithPlatform sets the platform-abstraction collaborator that supplies
// capability flags and, optionally, fast memory. The default platform
// reports no capabilities.
func WithPlatform(p Platform) RegistryOption {
	return func(o *registryOptions) {
		if p != nil {
			o.platform = p
		}
	}
}

// WithColorFormat sets the format of handles whose descriptor leaves it
// undefined. The default is RGBA8Unorm.
func WithColorFormat(f gputypes.TextureFormat) RegistryOption {
	return func(o *registryOptions) {
		if f != gputypes.TextureFormatUndefined {
			o.colorFormat = f
		}
	}
}

// WithSurfaceFormat uses the host's surface format as the default color
// format, so intermediate targets can be copied to the swapchain without
// conversion.
func WithSurfaceFormat(provider gpucontext.DeviceProvider) RegistryOption {
	return func(o *registryOptions) {
		if provider == nil {
			return
		}
		if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			o.colorFormat = f
		}
	}
}

// WithBaseSize sets the reference size the registry starts with and
// returns to at every frame boundary. The default is 0x0.
func WithBaseSize(s Size) RegistryOption {
	return func(o *registryOptions) {
		o.baseSize = s
	}
}

// WithMSAASamples sets the initial sample count for FlagMSAA handles.
func WithMSAASamples(samples uint32) RegistryOption {
	return func(o *registryOptions) {
		o.msaaSamples = samples
	}
}
