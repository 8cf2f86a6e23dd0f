package rthandle

import (
	"errors"
	"fmt"
	"iter"
	"weak"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"
)

// Stats are cumulative registry counters.
type Stats struct {
	// LiveHandles is the number of registered scaling handles.
	LiveHandles int

	// Allocations counts backing textures created by Alloc.
	Allocations uint64

	// Reallocations counts backing textures recreated by rescale
	// propagation or sample count changes.
	Reallocations uint64

	// SkippedResizes counts handles whose size did not change during a
	// propagation and therefore kept their backing.
	SkippedResizes uint64

	// Destroys counts owned backing textures freed.
	Destroys uint64

	// Propagations counts rescale passes over the live handles.
	Propagations uint64

	// BytesOwned approximates the memory held by owned backings.
	BytesOwned uint64
}

// Properties describe the registry's reference size state.
type Properties struct {
	ReferenceSize         Size
	PreviousReferenceSize Size
	MaxReferenceSize      Size
	MSAASamples           uint32
}

// Registry owns the frame's reference size and the set of live scaling
// handles, and resizes those handles when the reference size changes.
//
// All methods run on the rendering goroutine; Registry performs no
// locking. Within a frame the host first reports every camera size via
// RefreshReferenceSize, which resizes handles synchronously, and only then
// lets passes read handles. ResetReferenceSize marks the frame boundary.
type Registry struct {
	device   Device
	platform Platform
	caps     Capabilities

	colorFormat gputypes.TextureFormat
	msaaSamples uint32

	base    Size
	refSize Size
	prev    Size
	maxSize Size

	live   []*Handle
	stats  Stats
	closed bool
}

// NewRegistry creates a registry that allocates through device.
func NewRegistry(device Device, opts ...RegistryOption) (*Registry, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	o := defaultRegistryOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		device:      device,
		platform:    o.platform,
		caps:        o.platform.Capabilities(),
		colorFormat: o.colorFormat,
		base:        o.baseSize,
		refSize:     o.baseSize,
		maxSize:     o.baseSize,
	}
	r.msaaSamples = r.supportedSamples(o.msaaSamples)

	Logger().Info("rthandle: registry created",
		"base", r.base.String(),
		"format", r.colorFormat,
		"msaa", r.msaaSamples,
		"fastMemory", r.caps.FastMemory,
		"dynamicResolution", r.caps.HardwareDynamicResolution)
	return r, nil
}

// Capabilities returns the platform flags the registry was created with.
func (r *Registry) Capabilities() Capabilities {
	return r.caps
}

// ReferenceSize returns the current reference size.
func (r *Registry) ReferenceSize() Size {
	return r.refSize
}

// Properties returns the reference size state.
func (r *Registry) Properties() Properties {
	return Properties{
		ReferenceSize:         r.refSize,
		PreviousReferenceSize: r.prev,
		MaxReferenceSize:      r.maxSize,
		MSAASamples:           r.msaaSamples,
	}
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	s := r.stats
	s.LiveHandles = len(r.live)
	return s
}

// Handles iterates the live scaling handles.
func (r *Registry) Handles() iter.Seq[*Handle] {
	return func(yield func(*Handle) bool) {
		for _, h := range r.live {
			if !yield(h) {
				return
			}
		}
	}
}

// RefreshReferenceSize folds a camera's size into the reference size,
// which becomes the component-wise maximum of every candidate reported
// since the last ResetReferenceSize. If the reference size changed, every
// live handle is resized before RefreshReferenceSize returns.
//
// Handles that fail to reallocate keep their previous backing; their
// errors are joined into the returned error.
func (r *Registry) RefreshReferenceSize(candidate Size) error {
	return r.RefreshReferenceSizes(candidate)
}

// RefreshReferenceSizes folds several candidates and propagates once.
// Reporting all cameras of a frame in one call avoids intermediate
// reallocations.
func (r *Registry) RefreshReferenceSizes(candidates ...Size) error {
	next := r.refSize
	for _, c := range candidates {
		next = next.Max(c)
	}
	if next == r.refSize {
		return nil
	}
	r.prev = r.refSize
	r.refSize = next
	r.maxSize = r.maxSize.Max(next)
	return r.propagate()
}

// ResetReferenceSize marks a frame boundary: the reference size returns to
// the base size. Handles are not resized until the next refresh changes
// the reference size.
func (r *Registry) ResetReferenceSize() {
	if r.refSize == r.base {
		return
	}
	r.prev = r.refSize
	r.refSize = r.base
}

// SetMSAASamples changes the sample count of handles created with
// FlagMSAA. Live MSAA handles are reallocated immediately; fixed-size
// handles keep the count they were created with. Unsupported counts are
// lowered to the platform maximum.
func (r *Registry) SetMSAASamples(samples uint32) error {
	samples = r.supportedSamples(samples)
	if samples == r.msaaSamples {
		return nil
	}
	r.msaaSamples = samples

	var errs []error
	for _, h := range r.live {
		if !h.flags.Has(FlagMSAA) {
			continue
		}
		if err := r.resize(h, h.refSize); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Alloc creates a handle. A descriptor with a FixedSize creates a
// non-scaling handle of exactly that size. Otherwise the handle is sized
// from the current reference size and registered for rescale
// propagation.
//
// On failure Alloc returns an error wrapping ErrAllocationFailure and no
// handle.
func (r *Registry) Alloc(desc Descriptor) (*Handle, error) {
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if err := desc.validate(r.caps); err != nil {
		return nil, err
	}

	h := &Handle{
		name:        desc.Name,
		params:      desc.params(r.colorFormat),
		flags:       desc.Flags,
		scaleFactor: desc.ScaleFactor,
		scaleFunc:   desc.ScaleFunc,
		useScaling:  desc.Scaling(),
		device:      r.device,
		owner:       weak.Make(r),
		slot:        -1,
	}
	if h.scaleFactor == (f32.Vec2{}) {
		h.scaleFactor = f32.Vec2{1, 1}
	}
	if !h.useScaling {
		h.scaleFunc = nil
	}

	size := desc.FixedSize
	if h.useScaling {
		var err error
		if size, err = r.allocSize(h, h.ScaledSize(r.refSize)); err != nil {
			return nil, err
		}
	} else if err := r.checkLimit(h, size); err != nil {
		return nil, err
	}

	samples := r.samplesFor(h.flags)
	tex, view, err := r.createTexture(h, size, samples)
	if err != nil {
		return nil, err
	}
	h.sampleCount = samples
	h.refSize = r.refSize
	if err := h.AssignOwned(tex, view, size); err != nil {
		r.destroy(tex, view)
		return nil, err
	}
	r.stats.Allocations++

	if h.useScaling {
		h.slot = len(r.live)
		r.live = append(r.live, h)
	}

	Logger().Debug("rthandle: allocated",
		"handle", h.name, "size", size.String(), "scaled", h.useScaling, "samples", samples)
	return h, nil
}

// AllocExternalTexture wraps a texture owned elsewhere. The handle has a
// fixed size, is never resized and never frees the texture.
func (r *Registry) AllocExternalTexture(name string, tex hal.Texture, view hal.TextureView, size Size) *Handle {
	h := r.newExternal(name, size)
	_ = h.AssignExternalTexture(tex, view)
	return h
}

// AllocExternalID wraps a raw platform target such as a swapchain image.
// Only RawID is usable on the returned handle.
func (r *Registry) AllocExternalID(name string, id RawID) *Handle {
	h := r.newExternal(name, Size{})
	_ = h.AssignExternalID(id)
	return h
}

func (r *Registry) newExternal(name string, size Size) *Handle {
	return &Handle{
		name:   name,
		params: textureParams{format: r.colorFormat, mipLevels: 1, arrayLayers: 1},
		owner:  weak.Make(r),
		slot:   -1,
		size:   size,
	}
}

// Remove takes a handle out of rescale propagation. Handle.Release calls
// it; calling it for a handle that was never registered does nothing.
func (r *Registry) Remove(h *Handle) {
	if h == nil || h.slot < 0 {
		return
	}
	if h.slot >= len(r.live) || r.live[h.slot] != h {
		if debugChecks {
			panic(fmt.Sprintf("rthandle: %s has stale slot %d", h, h.slot))
		}
		return
	}
	last := len(r.live) - 1
	if h.slot != last {
		moved := r.live[last]
		r.live[h.slot] = moved
		moved.slot = h.slot
	}
	r.live[last] = nil
	r.live = r.live[:last]
	h.slot = -1
}

// Close releases every live handle. Handles created with a FixedSize or
// wrapping external resources are released by their users. Alloc fails on
// a closed registry.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	for len(r.live) > 0 {
		h := r.live[len(r.live)-1]
		if err := h.Release(); err != nil {
			Logger().Warn("rthandle: release on close failed", "handle", h.name, "err", err)
			r.Remove(h)
		}
	}
	r.closed = true
	Logger().Info("rthandle: registry closed", "destroys", r.stats.Destroys)
}

// propagate resizes every live handle against the current reference size.
// Handles whose size does not change keep their backing.
func (r *Registry) propagate() error {
	r.stats.Propagations++

	var errs []error
	for _, h := range r.live {
		if err := r.resize(h, r.refSize); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resize reallocates h for ref only if its size or sample count would
// change.
func (r *Registry) resize(h *Handle, ref Size) error {
	size, err := r.allocSize(h, h.ScaledSize(ref))
	if err != nil {
		return err
	}
	h.refSize = ref

	samples := r.samplesFor(h.flags)
	if size == h.size && samples == h.sampleCount && h.Owned() {
		r.stats.SkippedResizes++
		return nil
	}

	tex, view, err := r.createTexture(h, size, samples)
	if err != nil {
		return err
	}
	old := h.size
	h.sampleCount = samples
	if err := h.AssignOwned(tex, view, size); err != nil {
		r.destroy(tex, view)
		return err
	}
	r.stats.Reallocations++

	Logger().Debug("rthandle: reallocated",
		"handle", h.name, "from", old.String(), "to", size.String(), "samples", samples)
	return nil
}

// allocSize turns a computed scaled size into an allocatable one. Zero
// axes become 1 so handles exist before any camera reports a size.
func (r *Registry) allocSize(h *Handle, scaled Size) (Size, error) {
	if scaled.Width < 0 || scaled.Height < 0 {
		return Size{}, fmt.Errorf("%w: %q scaled to %v", ErrInvalidSize, h.name, scaled)
	}
	size := scaled.clampZero()
	if err := r.checkLimit(h, size); err != nil {
		return Size{}, err
	}
	return size, nil
}

func (r *Registry) checkLimit(h *Handle, size Size) error {
	limit := r.caps.MaxTextureSize
	if limit > 0 && (size.Width > limit || size.Height > limit) {
		return fmt.Errorf("%w: %q is %v, limit %d", ErrSizeLimit, h.name, size, limit)
	}
	return nil
}

func (r *Registry) samplesFor(flags Flags) uint32 {
	if flags.Has(FlagMSAA) {
		return r.msaaSamples
	}
	return 1
}

// supportedSamples lowers a sample count to a power of two the platform
// supports.
func (r *Registry) supportedSamples(samples uint32) uint32 {
	limit := max(r.caps.MaxMSAASamples, 1)
	samples = min(max(samples, 1), limit)
	for samples&(samples-1) != 0 {
		samples &= samples - 1
	}
	return samples
}

// createTexture creates a backing texture and its default view. Nothing
// is left allocated on failure.
func (r *Registry) createTexture(h *Handle, size Size, samples uint32) (hal.Texture, hal.TextureView, error) {
	p := h.params
	mips := p.mipLevels
	if samples > 1 {
		mips = 1
	}

	//nolint:gosec // G115: size validated positive and below the platform limit
	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label: h.name,
		Size: hal.Extent3D{
			Width:              uint32(size.Width),
			Height:             uint32(size.Height),
			DepthOrArrayLayers: p.arrayLayers,
		},
		MipLevelCount: mips,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        p.format,
		Usage:         p.usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create texture %q (%v): %w", ErrAllocationFailure, h.name, size, err)
	}

	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: h.name + "_view",
	})
	if err != nil {
		r.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("%w: create view %q: %w", ErrAllocationFailure, h.name, err)
	}
	return tex, view, nil
}

func (r *Registry) destroy(tex hal.Texture, view hal.TextureView) {
	r.device.DestroyTextureView(view)
	r.device.DestroyTexture(tex)
}
