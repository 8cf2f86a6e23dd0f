package rthandle

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"
)

// Flags are per-handle feature switches.
type Flags uint8

const (
	// FlagMSAA allocates the handle with the registry's MSAA sample count
	// and reallocates it when that count changes.
	FlagMSAA Flags = 1 << iota

	// FlagRandomWrite adds storage (UAV-style) usage to the texture.
	FlagRandomWrite

	// FlagDynamicScale requests hardware dynamic-resolution scaling.
	// It has effect only when the platform reports the capability.
	FlagDynamicScale
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String returns a '|'-separated flag list.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var s string
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f.Has(FlagMSAA) {
		add("msaa")
	}
	if f.Has(FlagRandomWrite) {
		add("random-write")
	}
	if f.Has(FlagDynamicScale) {
		add("dynamic-scale")
	}
	return s
}

// DefaultUsage is the usage given to handles whose descriptor leaves it
// empty.
const DefaultUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// Descriptor describes a handle to allocate.
//
// A non-zero FixedSize creates a handle whose size never follows the
// reference size. Otherwise the handle scales: ScaleFunc wins when set,
// else ScaleFactor, where the zero value means (1, 1).
type Descriptor struct {
	Name string

	FixedSize   Size
	ScaleFactor f32.Vec2
	ScaleFunc   ScaleFunc

	// Format defaults to the registry's color format.
	Format gputypes.TextureFormat

	// Usage defaults to DefaultUsage. FlagRandomWrite adds storage usage.
	Usage gputypes.TextureUsage

	// MipLevels and ArrayLayers default to 1.
	MipLevels   uint32
	ArrayLayers uint32

	Flags Flags
}

// Scaling reports whether the descriptor creates a scaling handle.
func (d Descriptor) Scaling() bool {
	return d.FixedSize.IsZero()
}

// textureParams are the parts of a descriptor that survive reallocation.
type textureParams struct {
	format      gputypes.TextureFormat
	usage       gputypes.TextureUsage
	mipLevels   uint32
	arrayLayers uint32
}

func (d Descriptor) params(defaultFormat gputypes.TextureFormat) textureParams {
	p := textureParams{
		format:      d.Format,
		usage:       d.Usage,
		mipLevels:   d.MipLevels,
		arrayLayers: d.ArrayLayers,
	}
	if p.format == gputypes.TextureFormatUndefined {
		p.format = defaultFormat
	}
	if p.usage == 0 {
		p.usage = DefaultUsage
	}
	if d.Flags.Has(FlagRandomWrite) {
		p.usage |= gputypes.TextureUsageStorageBinding
	}
	if p.mipLevels == 0 {
		p.mipLevels = 1
	}
	if p.arrayLayers == 0 {
		p.arrayLayers = 1
	}
	return p
}

func (d Descriptor) validate(caps Capabilities) error {
	if !d.Scaling() && !d.FixedSize.Valid() {
		return fmt.Errorf("%w: fixed size %v for %q", ErrInvalidSize, d.FixedSize, d.Name)
	}
	if d.Scaling() && d.ScaleFunc == nil {
		for _, f := range d.ScaleFactor {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) || f < 0 {
				return fmt.Errorf("%w: %q has scale factor %v", ErrInvalidDescriptor, d.Name, d.ScaleFactor)
			}
		}
	}
	if d.Flags.Has(FlagMSAA | FlagRandomWrite) {
		return fmt.Errorf("%w: %q cannot be both multisampled and random-write", ErrInvalidDescriptor, d.Name)
	}
	if d.Flags.Has(FlagRandomWrite) && !caps.RandomWrite {
		return fmt.Errorf("%w: %q requests random-write on a platform without storage textures",
			ErrInvalidDescriptor, d.Name)
	}
	return nil
}

// bytes approximates the memory a texture of the given size occupies.
// Mip chains are not counted.
func (p textureParams) bytes(size Size, samples uint32) uint64 {
	//nolint:gosec // G115: sizes are validated positive before allocation
	return uint64(size.Width) * uint64(size.Height) * uint64(p.arrayLayers) *
		uint64(max(samples, 1)) * bytesPerPixel(p.format)
}

// bytesPerPixel approximates the memory cost of a format for statistics.
func bytesPerPixel(f gputypes.TextureFormat) uint64 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
