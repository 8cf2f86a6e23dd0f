// Package rthandle provides resolution-aware render-target handles.
//
// A renderer that draws many cameras per frame, each at its own
// resolution, would churn GPU memory if it allocated fresh targets per view.
// rthandle puts a Handle between passes and textures: a handle knows how
// to derive its pixel size from a shared per-frame reference size, and a
// Registry resizes every scaling handle when that reference size changes,
// reallocating only handles whose size actually changed.
//
// # Frame protocol
//
// Each frame has two phases on the rendering goroutine:
//
//  1. Setup: the host calls ResetReferenceSize at the frame boundary, then
//     RefreshReferenceSize (or RefreshReferenceSizes) for every camera.
//     The reference size is the component-wise maximum of all candidates;
//     live handles are resized before each call returns.
//  2. Execution: passes read handles, which already have their final size
//     for the frame, and bind them through RawID, View or RenderTarget.
//
// # Accessors
//
// Handles have three views with different contracts:
//
//   - RawID never fails; nil and released handles yield NullID.
//   - Texture and View require an owned or external texture.
//   - RenderTarget requires an owned texture.
//
// Violations return errors wrapping ErrPreconditionViolation. Building with
// -tags rthandle_debug turns them into panics.
//
// # Platform capabilities
//
// Capabilities come from a Platform collaborator and are exposed verbatim.
// Fast-memory residency switches and hardware dynamic scaling are compiled
// everywhere and silently do nothing where the platform lacks them.
//
// # Usage
//
//	device, err := rthandle.DeviceFromProvider(app)
//	reg, err := rthandle.NewRegistry(device, rthandle.WithSurfaceFormat(app))
//	half, err := reg.Alloc(rthandle.Descriptor{
//	    Name:        "ao",
//	    ScaleFactor: f32.Vec2{0.5, 0.5},
//	    Format:      gputypes.TextureFormatR8Unorm,
//	})
//
//	// every frame
//	reg.ResetReferenceSize()
//	err = reg.RefreshReferenceSizes(mainCamera, reflectionProbe)
//	rt, err := half.RenderTarget()
//
// Transient per-pass objects such as command buffers come from
// [github.com/gogpu/rthandle/pool].
package rthandle
