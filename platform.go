package rthandle

import (
	"github.com/gogpu/wgpu/hal"
)

// Capabilities are read-only platform flags. The registry forwards them
// verbatim and does not interpret them beyond gating its own optional
// features (fast memory, dynamic scale, size limit).
type Capabilities struct {
	// HardwareDynamicResolution reports that the platform can scale render
	// targets in hardware without reallocation.
	HardwareDynamicResolution bool

	// FastMemory reports that the platform has an on-chip memory tier that
	// textures can be moved into.
	FastMemory bool

	// RandomWrite reports support for storage (UAV-style) textures.
	RandomWrite bool

	// DepthNormals reports that the platform renders a combined
	// depth+normals prepass that passes can sample instead of depth only.
	DepthNormals bool

	// MaxTextureSize is the largest texture dimension, 0 means unlimited.
	MaxTextureSize int

	// MaxMSAASamples is the largest supported sample count, 0 means 1.
	MaxMSAASamples uint32
}

// Platform is the platform-abstraction collaborator. It is queried once
// when the registry is created.
type Platform interface {
	Capabilities() Capabilities
}

// FastMemory is implemented by platforms with an on-chip memory tier.
// A Platform that reports Capabilities.FastMemory must also implement it;
// otherwise residency requests are ignored.
type FastMemory interface {
	// SwitchToFastMemory moves residency (0..1) of the texture into fast
	// memory. The spill policy selects which part stays in slow memory.
	SwitchToFastMemory(tex hal.Texture, residency float32, spill SpillPolicy, copyContents bool)

	// SwitchOutOfFastMemory moves the texture back to regular memory.
	SwitchOutOfFastMemory(tex hal.Texture, copyContents bool)
}

// SpillPolicy selects which portion of a partially resident texture is
// evicted from fast memory.
type SpillPolicy uint8

const (
	// SpillTop keeps the bottom of the texture resident.
	SpillTop SpillPolicy = iota

	// SpillBottom keeps the top of the texture resident.
	SpillBottom
)

// String returns the policy name.
func (p SpillPolicy) String() string {
	switch p {
	case SpillTop:
		return "SpillTop"
	case SpillBottom:
		return "SpillBottom"
	default:
		return "SpillUnknown"
	}
}

// StaticPlatform is a Platform with fixed capabilities and no fast memory.
type StaticPlatform Capabilities

// Capabilities returns the receiver.
func (p StaticPlatform) Capabilities() Capabilities {
	return Capabilities(p)
}

// DesktopPlatform returns the capabilities of a typical discrete GPU.
func DesktopPlatform() StaticPlatform {
	return StaticPlatform{
		RandomWrite:    true,
		DepthNormals:   true,
		MaxTextureSize: 16384,
		MaxMSAASamples: 8,
	}
}
