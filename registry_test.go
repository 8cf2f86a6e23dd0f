package rthandle

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/image/math/f32"
)

func TestNewRegistryNilDevice(t *testing.T) {
	if _, err := NewRegistry(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewRegistry(nil) err = %v, want ErrNilDevice", err)
	}
}

func TestRegistryReferenceSizeScenario(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	if reg.ReferenceSize() != (Size{}) {
		t.Fatalf("initial reference size = %v, want 0x0", reg.ReferenceSize())
	}

	h := mustAlloc(t, reg, Descriptor{Name: "color", ScaleFactor: f32.Vec2{1, 1}})

	if err := reg.RefreshReferenceSize(Sz(1920, 1080)); err != nil {
		t.Fatalf("RefreshReferenceSize: %v", err)
	}
	if got := h.ScaledSize(reg.ReferenceSize()); got != Sz(1920, 1080) {
		t.Errorf("scaled size = %v, want 1920x1080", got)
	}
	if got := backingSize(t, h); got != Sz(1920, 1080) {
		t.Errorf("backing size = %v, want 1920x1080", got)
	}

	if err := reg.RefreshReferenceSize(Sz(1280, 720)); err != nil {
		t.Fatalf("RefreshReferenceSize: %v", err)
	}
	if got := reg.ReferenceSize(); got != Sz(1920, 1080) {
		t.Errorf("reference size after smaller candidate = %v, want 1920x1080", got)
	}
	if got := h.Size(); got != Sz(1920, 1080) {
		t.Errorf("handle size after smaller candidate = %v, want 1920x1080", got)
	}

	reg.ResetReferenceSize()
	if got := reg.ReferenceSize(); got != (Size{}) {
		t.Errorf("reference size after reset = %v, want 0x0", got)
	}
	if err := reg.RefreshReferenceSize(Sz(1280, 720)); err != nil {
		t.Fatalf("RefreshReferenceSize: %v", err)
	}
	if got := h.Size(); got != Sz(1280, 720) {
		t.Errorf("handle size in next frame = %v, want 1280x720", got)
	}
}

func TestRegistryReferenceSizeIsComponentwiseMax(t *testing.T) {
	reg := mustRegistry(t, newMockDevice())
	for _, c := range []Size{Sz(1920, 200), Sz(100, 1080), Sz(640, 480)} {
		if err := reg.RefreshReferenceSize(c); err != nil {
			t.Fatal(err)
		}
	}
	if got := reg.ReferenceSize(); got != Sz(1920, 1080) {
		t.Errorf("ReferenceSize = %v, want 1920x1080", got)
	}
}

func TestRescaleRoundTripIsExact(t *testing.T) {
	factors := []f32.Vec2{{1, 1}, {0.5, 0.5}, {0.333, 0.25}, {0.125, 0.75}}
	sizes := []struct{ small, large Size }{
		{Sz(1023, 767), Sz(1920, 1080)},
		{Sz(1, 1), Sz(3840, 2160)},
		{Sz(1280, 720), Sz(1281, 721)},
	}

	for _, f := range factors {
		for _, s := range sizes {
			dev := newMockDevice()
			reg := mustRegistry(t, dev)
			h := mustAlloc(t, reg, Descriptor{Name: "rt", ScaleFactor: f})

			if err := reg.RefreshReferenceSize(s.small); err != nil {
				t.Fatal(err)
			}
			original := h.Size()

			if err := reg.RefreshReferenceSize(s.large); err != nil {
				t.Fatal(err)
			}
			reg.ResetReferenceSize()
			if err := reg.RefreshReferenceSize(s.small); err != nil {
				t.Fatal(err)
			}

			if got := h.Size(); got != original {
				t.Errorf("factor %v: %v -> %v -> %v gave %v, want %v", f, s.small, s.large, s.small, got, original)
			}
		}
	}
}

func TestRescaleSkipsUnchangedSizes(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)

	// 0.01 rounds to the same size for both reference sizes below.
	tiny := mustAlloc(t, reg, Descriptor{Name: "tiny", ScaleFactor: f32.Vec2{0.01, 0.01}})
	full := mustAlloc(t, reg, Descriptor{Name: "full"})

	if err := reg.RefreshReferenceSize(Sz(1000, 1000)); err != nil {
		t.Fatal(err)
	}
	tinyTex, _ := tiny.Texture()
	created := dev.texturesCreated
	reallocs := reg.Stats().Reallocations

	if err := reg.RefreshReferenceSize(Sz(1020, 1020)); err != nil {
		t.Fatal(err)
	}

	if got := dev.texturesCreated - created; got != 1 {
		t.Errorf("textures created = %d, want 1 (only the full-size handle)", got)
	}
	if got := reg.Stats().Reallocations - reallocs; got != 1 {
		t.Errorf("reallocations = %d, want 1", got)
	}
	if tex, _ := tiny.Texture(); tex != tinyTex {
		t.Error("tiny handle was reallocated although its size did not change")
	}
	if tiny.Size() != Sz(10, 10) || full.Size() != Sz(1020, 1020) {
		t.Errorf("sizes = %v, %v", tiny.Size(), full.Size())
	}
	if reg.Stats().SkippedResizes == 0 {
		t.Error("SkippedResizes not counted")
	}
}

func TestReleasedHandleLeavesPropagation(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	h := mustAlloc(t, reg, Descriptor{Name: "transient"})
	keep := mustAlloc(t, reg, Descriptor{Name: "keep", ScaleFactor: f32.Vec2{0.5, 0.5}})

	if err := reg.RefreshReferenceSize(Sz(640, 480)); err != nil {
		t.Fatal(err)
	}
	if h.Size() != Sz(640, 480) {
		t.Fatalf("handle not reallocated before release: %v", h.Size())
	}

	if err := h.Release(); err != nil {
		t.Fatal(err)
	}
	created := dev.texturesCreated

	if err := reg.RefreshReferenceSize(Sz(1920, 1080)); err != nil {
		t.Fatal(err)
	}
	if got := dev.texturesCreated - created; got != 1 {
		t.Errorf("textures created after release = %d, want 1 (kept handle only)", got)
	}
	if h.Size() != (Size{}) || h.RawID() != NullID {
		t.Errorf("released handle touched by propagation: %v", h)
	}
	if keep.Size() != Sz(960, 540) {
		t.Errorf("kept handle size = %v, want 960x540", keep.Size())
	}
	for live := range reg.Handles() {
		if live == h {
			t.Error("released handle still iterated")
		}
	}
}

func TestRemoveUnregisteredIsNoop(t *testing.T) {
	reg := mustRegistry(t, newMockDevice())
	a := mustAlloc(t, reg, Descriptor{Name: "a"})
	fixed := mustAlloc(t, reg, Descriptor{Name: "fixed", FixedSize: Sz(16, 16)})

	reg.Remove(fixed)
	reg.Remove(nil)
	reg.Remove(&Handle{slot: -1})

	if got := reg.Stats().LiveHandles; got != 1 {
		t.Errorf("LiveHandles = %d, want 1", got)
	}
	reg.Remove(a)
	reg.Remove(a)
	if got := reg.Stats().LiveHandles; got != 0 {
		t.Errorf("LiveHandles = %d, want 0", got)
	}
}

func TestRemoveKeepsSlotsConsistent(t *testing.T) {
	reg := mustRegistry(t, newMockDevice())
	var hs []*Handle
	for _, name := range []string{"a", "b", "c", "d"} {
		hs = append(hs, mustAlloc(t, reg, Descriptor{Name: name}))
	}

	if err := hs[1].Release(); err != nil {
		t.Fatal(err)
	}
	if err := hs[0].Release(); err != nil {
		t.Fatal(err)
	}

	var names []string
	for h := range reg.Handles() {
		names = append(names, h.Name())
		if reg.live[h.slot] != h {
			t.Errorf("%s slot %d does not point back", h.Name(), h.slot)
		}
	}
	if diff := cmp.Diff([]string{"c", "d"}, names, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("live handles mismatch (-want +got):\n%s", diff)
	}
}

func TestFixedHandleIgnoresReferenceSize(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	h := mustAlloc(t, reg, Descriptor{Name: "shadow", FixedSize: Sz(2048, 2048), Format: gputypes.TextureFormatDepth24PlusStencil8})

	if err := reg.RefreshReferenceSize(Sz(3840, 2160)); err != nil {
		t.Fatal(err)
	}
	if h.Size() != Sz(2048, 2048) || h.UseScaling() {
		t.Errorf("fixed handle = %v", h)
	}
	if dev.texturesCreated != 1 {
		t.Errorf("textures created = %d, want 1", dev.texturesCreated)
	}
}

func TestAllocFailures(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		device   func(*mockDevice)
		desc     Descriptor
		want     error
	}{
		{
			name: "invalid fixed size",
			desc: Descriptor{Name: "bad", FixedSize: Sz(0, 16)},
			want: ErrInvalidSize,
		},
		{
			name: "negative scale function",
			desc: Descriptor{Name: "neg", ScaleFunc: func(Size) Size { return Sz(-1, 4) }},
			want: ErrInvalidSize,
		},
		{
			name: "NaN scale factor",
			desc: Descriptor{Name: "nan", ScaleFactor: f32.Vec2{float32(math.NaN()), 1}},
			want: ErrInvalidDescriptor,
		},
		{
			name: "infinite scale factor",
			desc: Descriptor{Name: "inf", ScaleFactor: f32.Vec2{1, float32(math.Inf(1))}},
			want: ErrInvalidDescriptor,
		},
		{
			name: "negative scale factor",
			desc: Descriptor{Name: "neg-factor", ScaleFactor: f32.Vec2{-0.5, 0.5}},
			want: ErrInvalidDescriptor,
		},
		{
			name:     "over platform limit",
			platform: StaticPlatform{MaxTextureSize: 1024},
			desc:     Descriptor{Name: "huge", FixedSize: Sz(4096, 16)},
			want:     ErrSizeLimit,
		},
		{
			name:     "msaa random write",
			platform: StaticPlatform{RandomWrite: true, MaxMSAASamples: 4},
			desc:     Descriptor{Name: "uav", Flags: FlagMSAA | FlagRandomWrite},
			want:     ErrInvalidDescriptor,
		},
		{
			name: "random write unsupported",
			desc: Descriptor{Name: "uav", Flags: FlagRandomWrite},
			want: ErrInvalidDescriptor,
		},
		{
			name:   "device texture failure",
			device: func(d *mockDevice) { d.failTexture = errDeviceLost },
			desc:   Descriptor{Name: "lost"},
			want:   errDeviceLost,
		},
		{
			name:   "device view failure",
			device: func(d *mockDevice) { d.failView = errDeviceLost },
			desc:   Descriptor{Name: "lost-view"},
			want:   errDeviceLost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newMockDevice()
			if tt.device != nil {
				tt.device(dev)
			}
			reg := mustRegistry(t, dev, WithPlatform(tt.platform))

			h, err := reg.Alloc(tt.desc)
			if h != nil {
				t.Errorf("Alloc returned handle %v alongside error", h)
			}
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrAllocationFailure) {
				t.Errorf("Alloc err = %v, want %v wrapping ErrAllocationFailure", err, tt.want)
			}
			if len(dev.live) != 0 {
				t.Errorf("%d textures left allocated after failure", len(dev.live))
			}
			if reg.Stats().LiveHandles != 0 {
				t.Error("failed handle registered")
			}
		})
	}
}

func TestPropagationFailureKeepsOldBacking(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev, WithPlatform(StaticPlatform{MaxTextureSize: 2048}))
	h := mustAlloc(t, reg, Descriptor{Name: "double", ScaleFactor: f32.Vec2{2, 2}})

	if err := reg.RefreshReferenceSize(Sz(800, 600)); err != nil {
		t.Fatal(err)
	}
	before, _ := h.Texture()

	err := reg.RefreshReferenceSize(Sz(1920, 1080))
	if !errors.Is(err, ErrSizeLimit) {
		t.Fatalf("err = %v, want ErrSizeLimit", err)
	}
	after, aerr := h.Texture()
	if aerr != nil || after != before || h.Size() != Sz(1600, 1200) {
		t.Errorf("handle changed after failed resize: %v", h)
	}
}

func TestAllocBeforeAnyCameraIsOnePixel(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	h := mustAlloc(t, reg, Descriptor{Name: "early", ScaleFactor: f32.Vec2{0.5, 0.5}})

	if h.Size() != Sz(1, 1) {
		t.Errorf("Size = %v, want 1x1", h.Size())
	}
	if got := h.ScaledSize(reg.ReferenceSize()); got != (Size{}) {
		t.Errorf("ScaledSize should stay unclamped, got %v", got)
	}
}

func TestAllocDescriptorDefaults(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev,
		WithPlatform(DesktopPlatform()),
		WithColorFormat(gputypes.TextureFormatBGRA8Unorm),
		WithBaseSize(Sz(320, 240)))

	h := mustAlloc(t, reg, Descriptor{Name: "uav", Flags: FlagRandomWrite})
	desc := dev.lastDesc

	if desc.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format = %v, want BGRA8Unorm", desc.Format)
	}
	if desc.Usage&gputypes.TextureUsageStorageBinding == 0 || desc.Usage&gputypes.TextureUsageRenderAttachment == 0 {
		t.Errorf("Usage = %v, want storage and render attachment", desc.Usage)
	}
	if desc.MipLevelCount != 1 || desc.SampleCount != 1 || desc.Size.DepthOrArrayLayers != 1 {
		t.Errorf("descriptor = %+v", desc)
	}
	if desc.Label != "uav" || h.ScaleFactor() != (f32.Vec2{1, 1}) {
		t.Errorf("label %q, factor %v", desc.Label, h.ScaleFactor())
	}
}

func TestBatchRefreshPropagatesOnce(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	mustAlloc(t, reg, Descriptor{Name: "color"})
	created := dev.texturesCreated

	if err := reg.RefreshReferenceSizes(Sz(1280, 720), Sz(1920, 1080), Sz(640, 1200)); err != nil {
		t.Fatal(err)
	}
	if got := dev.texturesCreated - created; got != 1 {
		t.Errorf("textures created = %d, want 1", got)
	}
	if got := reg.Stats().Propagations; got != 1 {
		t.Errorf("Propagations = %d, want 1", got)
	}
	if got := reg.ReferenceSize(); got != Sz(1920, 1200) {
		t.Errorf("ReferenceSize = %v", got)
	}
}

func TestResetDoesNotReallocate(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	h := mustAlloc(t, reg, Descriptor{Name: "color"})
	if err := reg.RefreshReferenceSize(Sz(1920, 1080)); err != nil {
		t.Fatal(err)
	}
	created := dev.texturesCreated

	reg.ResetReferenceSize()
	if dev.texturesCreated != created || h.Size() != Sz(1920, 1080) {
		t.Error("frame boundary reallocated handles")
	}
	if err := reg.RefreshReferenceSize(Sz(1920, 1080)); err != nil {
		t.Fatal(err)
	}
	if dev.texturesCreated != created {
		t.Error("same reference size in the next frame reallocated handles")
	}

	want := Properties{
		ReferenceSize:         Sz(1920, 1080),
		PreviousReferenceSize: Size{},
		MaxReferenceSize:      Sz(1920, 1080),
		MSAASamples:           1,
	}
	if diff := cmp.Diff(want, reg.Properties()); diff != "" {
		t.Errorf("Properties mismatch (-want +got):\n%s", diff)
	}
}

func TestSetMSAASamples(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev, WithPlatform(StaticPlatform{MaxMSAASamples: 4}), WithBaseSize(Sz(64, 64)))

	msaa := mustAlloc(t, reg, Descriptor{Name: "msaa", Flags: FlagMSAA, MipLevels: 4})
	plain := mustAlloc(t, reg, Descriptor{Name: "plain"})
	plainTex, _ := plain.Texture()

	if err := reg.SetMSAASamples(8); err != nil {
		t.Fatal(err)
	}
	if got := reg.Properties().MSAASamples; got != 4 {
		t.Errorf("MSAASamples = %d, want clamped to 4", got)
	}
	if msaa.SampleCount() != 4 {
		t.Errorf("msaa SampleCount = %d, want 4", msaa.SampleCount())
	}
	if dev.lastDesc.MipLevelCount != 1 {
		t.Errorf("multisampled texture created with %d mips", dev.lastDesc.MipLevelCount)
	}
	if tex, _ := plain.Texture(); tex != plainTex {
		t.Error("non-MSAA handle reallocated on sample count change")
	}

	if err := reg.SetMSAASamples(3); err != nil {
		t.Fatal(err)
	}
	if msaa.SampleCount() != 2 {
		t.Errorf("SampleCount = %d, want 3 lowered to 2", msaa.SampleCount())
	}
}

func TestRegistryClose(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	a := mustAlloc(t, reg, Descriptor{Name: "a"})
	b := mustAlloc(t, reg, Descriptor{Name: "b", ScaleFactor: f32.Vec2{0.5, 0.5}})
	fixed := mustAlloc(t, reg, Descriptor{Name: "fixed", FixedSize: Sz(8, 8)})

	reg.Close()
	reg.Close()

	if !a.Released() || !b.Released() {
		t.Error("live handles not released on Close")
	}
	if fixed.Released() {
		t.Error("fixed handle released by Close")
	}
	if _, err := reg.Alloc(Descriptor{Name: "late"}); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Alloc after Close err = %v, want ErrRegistryClosed", err)
	}
	if err := fixed.Release(); err != nil {
		t.Fatal(err)
	}
	if len(dev.live) != 0 {
		t.Errorf("%d textures leaked", len(dev.live))
	}
	if s := reg.Stats(); s.BytesOwned != 0 || s.Destroys != 3 {
		t.Errorf("Stats after close = %+v", s)
	}
}

func TestAllocBetweenFramesFollowsNextRefresh(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev)
	mustAlloc(t, reg, Descriptor{Name: "color"})
	if err := reg.RefreshReferenceSize(Sz(800, 600)); err != nil {
		t.Fatal(err)
	}
	reg.ResetReferenceSize()

	late := mustAlloc(t, reg, Descriptor{Name: "late"})
	if late.Size() != Sz(1, 1) {
		t.Fatalf("late handle size = %v, want 1x1 before any camera", late.Size())
	}
	if err := reg.RefreshReferenceSize(Sz(800, 600)); err != nil {
		t.Fatal(err)
	}
	if late.Size() != Sz(800, 600) {
		t.Errorf("late handle size = %v, want 800x600", late.Size())
	}
}

func TestSetMSAASamplesBetweenFramesKeepsSize(t *testing.T) {
	dev := newMockDevice()
	reg := mustRegistry(t, dev, WithPlatform(StaticPlatform{MaxMSAASamples: 8}))
	h := mustAlloc(t, reg, Descriptor{Name: "forward", Flags: FlagMSAA})
	if err := reg.RefreshReferenceSize(Sz(640, 480)); err != nil {
		t.Fatal(err)
	}
	reg.ResetReferenceSize()

	if err := reg.SetMSAASamples(4); err != nil {
		t.Fatal(err)
	}
	if h.Size() != Sz(640, 480) || h.SampleCount() != 4 {
		t.Errorf("after SetMSAASamples: %v x%d, want 640x480 x4", h.Size(), h.SampleCount())
	}
	if got := backingSize(t, h); got != Sz(640, 480) {
		t.Errorf("backing size = %v, want 640x480", got)
	}
}
