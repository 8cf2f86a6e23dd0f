package rthandle

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// mockDevice is a test double for the Device collaborator.
type mockDevice struct {
	failTexture error
	failView    error

	texturesCreated   int
	viewsCreated      int
	texturesDestroyed int
	viewsDestroyed    int

	lastDesc hal.TextureDescriptor
	live     map[*mockTexture]bool
}

func newMockDevice() *mockDevice {
	return &mockDevice{live: make(map[*mockTexture]bool)}
}

func (d *mockDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if d.failTexture != nil {
		return nil, d.failTexture
	}
	d.texturesCreated++
	d.lastDesc = *desc
	tex := &mockTexture{
		width:   desc.Size.Width,
		height:  desc.Size.Height,
		samples: desc.SampleCount,
		format:  desc.Format,
	}
	d.live[tex] = true
	return tex, nil
}

func (d *mockDevice) DestroyTexture(texture hal.Texture) {
	d.texturesDestroyed++
	tex := texture.(*mockTexture)
	if !d.live[tex] {
		panic("mockDevice: destroying texture twice or foreign texture")
	}
	delete(d.live, tex)
}

func (d *mockDevice) CreateTextureView(texture hal.Texture, _ *hal.TextureViewDescriptor) (hal.TextureView, error) {
	if d.failView != nil {
		return nil, d.failView
	}
	d.viewsCreated++
	return &mockTextureView{texture: texture}, nil
}

func (d *mockDevice) DestroyTextureView(_ hal.TextureView) {
	d.viewsDestroyed++
}

// mockTexture is a test double for hal.Texture.
type mockTexture struct {
	width   uint32
	height  uint32
	samples uint32
	format  gputypes.TextureFormat
}

func (t *mockTexture) Destroy()                            {}
func (t *mockTexture) NativeHandle() uintptr               { return 0 }
func (t *mockTexture) CurrentUsage() gputypes.TextureUsage { return 0 }
func (t *mockTexture) AddPendingRef()                      {}
func (t *mockTexture) DecPendingRef()                      {}

func (t *mockTexture) size() Size {
	return Sz(int(t.width), int(t.height))
}

// mockTextureView is a test double for hal.TextureView.
type mockTextureView struct {
	texture hal.Texture
}

func (v *mockTextureView) Destroy()              {}
func (v *mockTextureView) NativeHandle() uintptr { return 0 }

// mockFastMemory is a Platform with fast memory.
type mockFastMemory struct {
	caps Capabilities

	switchedIn  int
	switchedOut int
	residency   float32
	spill       SpillPolicy
	copied      bool
}

func (p *mockFastMemory) Capabilities() Capabilities { return p.caps }

func (p *mockFastMemory) SwitchToFastMemory(_ hal.Texture, residency float32, spill SpillPolicy, copyContents bool) {
	p.switchedIn++
	p.residency = residency
	p.spill = spill
	p.copied = copyContents
}

func (p *mockFastMemory) SwitchOutOfFastMemory(_ hal.Texture, copyContents bool) {
	p.switchedOut++
	p.copied = copyContents
}

var errDeviceLost = errors.New("device lost")

var halDesc8x8 = hal.TextureDescriptor{
	Label:         "replacement",
	Size:          hal.Extent3D{Width: 8, Height: 8, DepthOrArrayLayers: 1},
	MipLevelCount: 1,
	SampleCount:   1,
	Dimension:     gputypes.TextureDimension2D,
	Format:        gputypes.TextureFormatRGBA8Unorm,
	Usage:         DefaultUsage,
}

func mustRegistry(t *testing.T, dev Device, opts ...RegistryOption) *Registry {
	t.Helper()
	reg, err := NewRegistry(dev, opts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func mustAlloc(t *testing.T, reg *Registry, desc Descriptor) *Handle {
	t.Helper()
	h, err := reg.Alloc(desc)
	if err != nil {
		t.Fatalf("Alloc(%q): %v", desc.Name, err)
	}
	return h
}

func backingSize(t *testing.T, h *Handle) Size {
	t.Helper()
	tex, err := h.Texture()
	if err != nil {
		t.Fatalf("Texture(): %v", err)
	}
	return tex.(*mockTexture).size()
}
