// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package memdevice provides an in-memory texture device for tests and
// the rtsim tool. It implements the texture subset of hal.Device without
// a GPU, tracks every live allocation and rejects double destroys.
package memdevice

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrOutOfMemory is returned when an allocation would exceed the budget.
var ErrOutOfMemory = errors.New("memdevice: out of memory")

// Texture is an in-memory texture.
type Texture struct {
	Desc   hal.TextureDescriptor
	handle uintptr
	bytes  uint64
	dev    *Device

	// Guarded by dev.mu.
	pendingRefs int
	dying       bool
}

// Destroy is a no-op; textures are destroyed through the Device.
func (t *Texture) Destroy() {}

// NativeHandle returns a process-unique nonzero identifier.
func (t *Texture) NativeHandle() uintptr { return t.handle }

// CurrentUsage returns 0; the device does not track usage state.
func (t *Texture) CurrentUsage() gputypes.TextureUsage { return 0 }

// AddPendingRef marks the texture as used by in-flight work. While refs
// are held, DestroyTexture is deferred.
func (t *Texture) AddPendingRef() {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	t.pendingRefs++
}

// DecPendingRef releases a reference taken by AddPendingRef and completes
// a deferred destroy when the last one is dropped.
func (t *Texture) DecPendingRef() {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	if t.pendingRefs == 0 {
		panic(fmt.Sprintf("memdevice: texture %q: DecPendingRef without AddPendingRef", t.Desc.Label))
	}
	t.pendingRefs--
	if t.pendingRefs == 0 && t.dying {
		t.dev.free(t)
	}
}

// Pending returns the number of pending references.
func (t *Texture) Pending() int {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	return t.pendingRefs
}

// TextureView is a view of a Texture.
type TextureView struct {
	Texture *Texture
	handle  uintptr
}

// Destroy is a no-op; views are destroyed through the Device.
func (v *TextureView) Destroy() {}

// NativeHandle returns a process-unique nonzero identifier.
func (v *TextureView) NativeHandle() uintptr { return v.handle }

// Stats summarizes device activity. DeferredDestroys counts destroys
// postponed by pending references.
type Stats struct {
	TexturesCreated   int
	TexturesDestroyed int
	DeferredDestroys  int
	ViewsCreated      int
	ViewsDestroyed    int
	LiveTextures      int
	LiveBytes         uint64
	PeakBytes         uint64
}

// Device is an in-memory texture device. It is safe for concurrent use.
type Device struct {
	mu     sync.Mutex
	budget uint64
	next   uintptr
	live   map[*Texture]struct{}
	views  map[*TextureView]struct{}
	stats  Stats
}

// New returns a device with the given memory budget in bytes.
// A zero budget is unlimited.
func New(budget uint64) *Device {
	return &Device{
		budget: budget,
		live:   make(map[*Texture]struct{}),
		views:  make(map[*TextureView]struct{}),
	}
}

func (d *Device) nextHandle() uintptr {
	d.next++
	return d.next
}

// CreateTexture allocates an in-memory texture.
func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if desc == nil {
		return nil, errors.New("memdevice: nil texture descriptor")
	}
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return nil, fmt.Errorf("memdevice: %q: zero-sized texture %dx%d", desc.Label, desc.Size.Width, desc.Size.Height)
	}
	n := textureBytes(desc)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.budget > 0 && d.stats.LiveBytes+n > d.budget {
		return nil, fmt.Errorf("%w: %q needs %d bytes, %d of %d in use",
			ErrOutOfMemory, desc.Label, n, d.stats.LiveBytes, d.budget)
	}
	tex := &Texture{Desc: *desc, handle: d.nextHandle(), bytes: n, dev: d}
	d.live[tex] = struct{}{}
	d.stats.TexturesCreated++
	d.stats.LiveTextures++
	d.stats.LiveBytes += n
	d.stats.PeakBytes = max(d.stats.PeakBytes, d.stats.LiveBytes)
	return tex, nil
}

// DestroyTexture frees a texture created by this device. If the texture
// has pending references the memory is freed when the last one is
// dropped. Destroying a texture twice or one from another device panics.
func (d *Device) DestroyTexture(texture hal.Texture) {
	tex, ok := texture.(*Texture)
	d.mu.Lock()
	defer d.mu.Unlock()
	if !ok || tex.dev != d {
		panic(fmt.Sprintf("memdevice: destroying foreign texture %T", texture))
	}
	if _, live := d.live[tex]; !live || tex.dying {
		panic(fmt.Sprintf("memdevice: texture %q destroyed twice", tex.Desc.Label))
	}
	if tex.pendingRefs > 0 {
		tex.dying = true
		d.stats.DeferredDestroys++
		return
	}
	d.free(tex)
}

func (d *Device) free(tex *Texture) {
	delete(d.live, tex)
	d.stats.TexturesDestroyed++
	d.stats.LiveTextures--
	d.stats.LiveBytes -= tex.bytes
}

// CreateTextureView creates a view of a live texture.
func (d *Device) CreateTextureView(texture hal.Texture, _ *hal.TextureViewDescriptor) (hal.TextureView, error) {
	tex, ok := texture.(*Texture)
	if !ok {
		return nil, fmt.Errorf("memdevice: view of foreign texture %T", texture)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, live := d.live[tex]; !live || tex.dying {
		return nil, fmt.Errorf("memdevice: view of destroyed texture %q", tex.Desc.Label)
	}
	v := &TextureView{Texture: tex, handle: d.nextHandle()}
	d.views[v] = struct{}{}
	d.stats.ViewsCreated++
	return v, nil
}

// DestroyTextureView frees a view.
func (d *Device) DestroyTextureView(view hal.TextureView) {
	v, ok := view.(*TextureView)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, live := d.views[v]; !live {
		return
	}
	delete(d.views, v)
	d.stats.ViewsDestroyed++
}

// Stats returns a snapshot of device activity.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Live returns the live textures whose label matches label, or all live
// textures when label is empty.
func (d *Device) Live(label string) []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Texture
	for tex := range d.live {
		if label == "" || tex.Desc.Label == label {
			out = append(out, tex)
		}
	}
	return out
}

func textureBytes(desc *hal.TextureDescriptor) uint64 {
	bpp := uint64(4)
	switch desc.Format {
	case gputypes.TextureFormatR8Unorm:
		bpp = 1
	case gputypes.TextureFormatRG32Float:
		bpp = 8
	case gputypes.TextureFormatRGBA32Float:
		bpp = 16
	}
	layers := uint64(max(desc.Size.DepthOrArrayLayers, 1))
	samples := uint64(max(desc.SampleCount, 1))
	return uint64(desc.Size.Width) * uint64(desc.Size.Height) * layers * samples * bpp
}
