package rthandle

import (
	"fmt"
	"math"
	"sync/atomic"
	"weak"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"
)

// RawID is a platform target identifier that GPU submission code binds
// with. NullID is the identifier of an absent or released handle.
type RawID uint64

// NullID is the null-equivalent identifier.
const NullID RawID = 0

// serialBit marks identifiers minted by this package for textures that do
// not expose a native handle, so they never collide with native values.
const serialBit RawID = 1 << 63

var nextSerial atomic.Uint64

func mintID(tex hal.Texture) RawID {
	type nativeHandle interface{ NativeHandle() uintptr }
	if nh, ok := tex.(nativeHandle); ok {
		if v := nh.NativeHandle(); v != 0 {
			return RawID(v)
		}
	}
	return serialBit | RawID(nextSerial.Add(1))
}

type backingKind uint8

const (
	backingNone backingKind = iota
	backingOwned
	backingExternal
	backingRaw
	backingReleased
)

func (k backingKind) String() string {
	switch k {
	case backingNone:
		return "none"
	case backingOwned:
		return "owned"
	case backingExternal:
		return "external"
	case backingRaw:
		return "raw"
	case backingReleased:
		return "released"
	default:
		return fmt.Sprintf("backingKind(%d)", k)
	}
}

// backing is the single resource a handle refers to. The kind tag decides
// which fields are meaningful; the others are always zero.
type backing struct {
	kind    backingKind
	texture hal.Texture
	view    hal.TextureView
	id      RawID
	bytes   uint64
}

// RenderTarget is the typed view of a handle that owns its texture and can
// therefore be attached as a render pass color or depth target.
type RenderTarget struct {
	ID          RawID
	Texture     hal.Texture
	View        hal.TextureView
	Size        Size
	Format      gputypes.TextureFormat
	SampleCount uint32
}

// Handle refers to one logical render target.
//
// Handles are created by Registry.Alloc (or the AllocExternal variants)
// and destroyed by Release. A scaling handle is resized by its registry
// whenever the reference size changes; a fixed handle keeps its size until
// its owner reassigns the backing.
//
// Handle is not safe for concurrent use; see Registry.
type Handle struct {
	name   string
	params textureParams
	flags  Flags

	scaleFactor f32.Vec2
	scaleFunc   ScaleFunc
	useScaling  bool

	// refSize is the reference size this handle was last sized against,
	// size is the size of the current owned backing.
	refSize     Size
	size        Size
	sampleCount uint32

	backing backing
	device  Device

	owner weak.Pointer[Registry]
	slot  int // index in owner's live table, -1 when not registered
}

// Name returns the debug name.
func (h *Handle) Name() string {
	return h.name
}

// UseScaling reports whether the handle follows the reference size.
func (h *Handle) UseScaling() bool {
	return h.useScaling
}

// ScaleFactor returns the scale factor, (1, 1) unless set.
func (h *Handle) ScaleFactor() f32.Vec2 {
	return h.scaleFactor
}

// Flags returns the handle's feature flags.
func (h *Handle) Flags() Flags {
	return h.flags
}

// Size returns the size of the current backing.
func (h *Handle) Size() Size {
	return h.size
}

// ReferenceSize returns the reference size in effect when the handle was
// last sized.
func (h *Handle) ReferenceSize() Size {
	return h.refSize
}

// SampleCount returns the sample count of the owned backing.
func (h *Handle) SampleCount() uint32 {
	return h.sampleCount
}

// Format returns the texture format.
func (h *Handle) Format() gputypes.TextureFormat {
	return h.params.format
}

// DynamicScale reports whether hardware dynamic-resolution scaling is in
// effect for this handle.
func (h *Handle) DynamicScale() bool {
	if !h.flags.Has(FlagDynamicScale) {
		return false
	}
	r := h.owner.Value()
	return r != nil && r.caps.HardwareDynamicResolution
}

// Owned reports whether the handle owns its backing texture.
func (h *Handle) Owned() bool {
	return h.backing.kind == backingOwned
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.backing.kind == backingReleased
}

// ScaledSize computes the pixel size this handle has for the given
// reference size. It is pure: a non-scaling handle returns ref unchanged,
// a scale function overrides the scale factor, and the factor is applied
// per axis with rounding half away from zero.
func (h *Handle) ScaledSize(ref Size) Size {
	if !h.useScaling {
		return ref
	}
	if h.scaleFunc != nil {
		return h.scaleFunc(ref)
	}
	return ref.Scale(h.scaleFactor)
}

// AssignOwned hands the handle ownership of a newly created texture.
// Any previous owned texture is destroyed and any external alias is
// dropped. A released handle stays released: the call fails and the
// caller keeps ownership of tex and view.
func (h *Handle) AssignOwned(tex hal.Texture, view hal.TextureView, size Size) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	h.destroyOwned()
	h.backing = backing{
		kind:    backingOwned,
		texture: tex,
		view:    view,
		id:      mintID(tex),
		bytes:   h.params.bytes(size, h.sampleCount),
	}
	h.size = size
	if r := h.owner.Value(); r != nil {
		r.stats.BytesOwned += h.backing.bytes
	}
	return nil
}

// AssignExternalTexture makes the handle an alias of a texture owned by
// someone else. Any owned texture is destroyed first. The handle never
// frees an external texture and stops following the reference size.
func (h *Handle) AssignExternalTexture(tex hal.Texture, view hal.TextureView) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	h.detach()
	h.destroyOwned()
	h.backing = backing{kind: backingExternal, texture: tex, view: view, id: mintID(tex)}
	return nil
}

// AssignExternalID makes the handle an alias of a raw platform target.
// Any owned texture is destroyed first.
func (h *Handle) AssignExternalID(id RawID) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	h.detach()
	h.destroyOwned()
	h.backing = backing{kind: backingRaw, id: id}
	return nil
}

func (h *Handle) checkLive() error {
	if h.backing.kind == backingReleased {
		return violation(fmt.Errorf("%w: %q", ErrHandleReleased, h.name))
	}
	return nil
}

// RawID returns the identifier to bind this handle with. It never fails:
// a nil, empty or released handle yields NullID.
func (h *Handle) RawID() RawID {
	if h == nil {
		return NullID
	}
	return h.backing.id
}

// Texture returns the backing texture. The handle must own a texture or
// alias an external one; a raw-identifier-only handle violates the
// precondition.
func (h *Handle) Texture() (hal.Texture, error) {
	if err := h.requireTexture(); err != nil {
		return nil, err
	}
	return h.backing.texture, nil
}

// View returns the default view of the backing texture, under the same
// precondition as Texture.
func (h *Handle) View() (hal.TextureView, error) {
	if err := h.requireTexture(); err != nil {
		return nil, err
	}
	return h.backing.view, nil
}

// RenderTarget returns the attachable render-target view. It requires an
// owned texture: external aliases may lack render-attachment usage.
func (h *Handle) RenderTarget() (RenderTarget, error) {
	if h == nil {
		return RenderTarget{}, violation(ErrNotOwned)
	}
	switch h.backing.kind {
	case backingOwned:
		return RenderTarget{
			ID:          h.backing.id,
			Texture:     h.backing.texture,
			View:        h.backing.view,
			Size:        h.size,
			Format:      h.params.format,
			SampleCount: h.sampleCount,
		}, nil
	case backingReleased:
		return RenderTarget{}, violation(fmt.Errorf("%w: %q", ErrHandleReleased, h.name))
	default:
		return RenderTarget{}, violation(fmt.Errorf("%w: %q is %s", ErrNotOwned, h.name, h.backing.kind))
	}
}

func (h *Handle) requireTexture() error {
	if h == nil {
		return violation(ErrNoBacking)
	}
	switch h.backing.kind {
	case backingOwned, backingExternal:
		return nil
	case backingReleased:
		return violation(fmt.Errorf("%w: %q", ErrHandleReleased, h.name))
	default:
		return violation(fmt.Errorf("%w: %q is %s", ErrNoBacking, h.name, h.backing.kind))
	}
}

// Release unregisters the handle from its registry, destroys the owned
// texture if any and poisons the backing. A handle must be released
// exactly once; a second call returns ErrHandleReleased (and panics in
// rthandle_debug builds).
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	if h.Released() {
		return violation(fmt.Errorf("%w: %q released twice", ErrHandleReleased, h.name))
	}
	if r := h.owner.Value(); r != nil {
		r.Remove(h)
	}
	h.destroyOwned()
	h.backing = backing{kind: backingReleased}
	h.scaleFunc = nil
	h.size = Size{}
	h.owner = weak.Pointer[Registry]{}
	return nil
}

// detach takes the handle out of rescale propagation; an alias has no
// texture the registry could resize.
func (h *Handle) detach() {
	if r := h.owner.Value(); r != nil {
		r.Remove(h)
	}
	h.useScaling = false
}

// destroyOwned frees the owned texture, if any, and leaves the backing
// empty.
func (h *Handle) destroyOwned() {
	if h.backing.kind != backingOwned {
		h.backing = backing{}
		return
	}
	if h.device != nil {
		if h.backing.view != nil {
			h.device.DestroyTextureView(h.backing.view)
		}
		if h.backing.texture != nil {
			h.device.DestroyTexture(h.backing.texture)
		}
	}
	if r := h.owner.Value(); r != nil {
		r.stats.Destroys++
		r.stats.BytesOwned -= h.backing.bytes
	}
	Logger().Debug("rthandle: destroyed backing", "handle", h.name, "size", h.size.String())
	h.backing = backing{}
}

// SwitchToFastMemory moves residency (clamped to [0, 1], NaN as 0) of the
// owned texture into the platform's fast memory tier. It is a no-op when the
// platform lacks the capability or the handle does not own a texture.
func (h *Handle) SwitchToFastMemory(residency float32, spill SpillPolicy, copyContents bool) {
	fm := h.fastMemory()
	if fm == nil {
		return
	}
	if math.IsNaN(float64(residency)) {
		residency = 0
	}
	residency = min(max(residency, 0), 1)
	fm.SwitchToFastMemory(h.backing.texture, residency, spill, copyContents)
}

// SwitchOutOfFastMemory moves the owned texture back to regular memory.
// It is a no-op where fast memory is unavailable.
func (h *Handle) SwitchOutOfFastMemory(copyContents bool) {
	fm := h.fastMemory()
	if fm == nil {
		return
	}
	fm.SwitchOutOfFastMemory(h.backing.texture, copyContents)
}

func (h *Handle) fastMemory() FastMemory {
	if h.backing.kind != backingOwned {
		return nil
	}
	r := h.owner.Value()
	if r == nil || !r.caps.FastMemory {
		Logger().Debug("rthandle: fast memory unavailable, ignoring residency switch", "handle", h.name)
		return nil
	}
	fm, ok := r.platform.(FastMemory)
	if !ok {
		Logger().Debug("rthandle: platform reports fast memory but does not implement it", "handle", h.name)
		return nil
	}
	return fm
}

// String returns a debug description.
func (h *Handle) String() string {
	if h == nil {
		return "Handle[nil]"
	}
	mode := "fixed"
	if h.useScaling {
		mode = "scaled"
	}
	return fmt.Sprintf("Handle[%s %s %s %s %s]", h.name, h.size, mode, h.backing.kind, h.flags)
}
