// Package ao implements a screen-space ambient occlusion pass on top of
// resolution-aware render-target handles.
//
// The pass owns two scaling targets: the occlusion term and a blur
// scratch target, both at full or half camera resolution. Each frame,
// Record checks out a command buffer from a pool and records four
// fullscreen draws: occlusion estimation, a horizontal and a vertical
// blur, and a composite into the camera color target. When the
// platform provides a normals prepass the occlusion draw samples it,
// otherwise normals are reconstructed from depth.
//
// Because handles are bound by raw identifier, a buffer must be
// submitted before the next reference-size change.
package ao

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/rthandle"
	"github.com/gogpu/rthandle/cmdbuf"
	"github.com/gogpu/rthandle/internal/shadercache"
	"github.com/gogpu/rthandle/pool"
)

// compiled is shared by every pass that uses the default compiler.
var compiled = shadercache.New(len(programSources))

var (
	// ErrClosed is returned when a closed pass is used.
	ErrClosed = errors.New("ao: pass is closed")

	// ErrMissingInput is returned by Record when a required input handle
	// is nil or has no backing.
	ErrMissingInput = errors.New("ao: missing input")
)

// Inputs are the per-camera handles the pass reads and writes.
type Inputs struct {
	// Depth is the camera depth target. Required.
	Depth *rthandle.Handle
	// Normals is the normals prepass target. Required when the platform
	// reports DepthNormals, ignored otherwise.
	Normals *rthandle.Handle
	// Color is the camera color target the occlusion is composited into.
	Color *rthandle.Handle
}

// Pass is an ambient occlusion pass bound to a handle registry.
type Pass struct {
	reg      *rthandle.Registry
	buffers  *pool.Pool[*cmdbuf.Buffer]
	settings Settings
	compile  func(wgsl string) ([]byte, error)
	cache    *shadercache.Cache

	occlusion *rthandle.Handle
	scratch   *rthandle.Handle

	shaders map[string][]uint32
	closed  bool
}

// Option configures a Pass.
type Option func(*Pass)

// WithSettings sets the pass settings. Values are clamped.
func WithSettings(s Settings) Option {
	return func(p *Pass) {
		p.settings = s.Clamp()
	}
}

// WithCompiler replaces the WGSL compiler used by Shaders. Its output is
// cached per pass rather than in the process-wide cache.
func WithCompiler(compile func(wgsl string) ([]byte, error)) Option {
	return func(p *Pass) {
		if compile != nil {
			p.compile = compile
			p.cache = shadercache.New(len(programSources))
		}
	}
}

// New allocates the pass targets from reg. Command buffers are checked
// out of buffers; a nil pool gets a private one.
func New(reg *rthandle.Registry, buffers *pool.Pool[*cmdbuf.Buffer], opts ...Option) (*Pass, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil registry", rthandle.ErrPreconditionViolation)
	}
	if buffers == nil {
		buffers = cmdbuf.NewPool()
	}
	p := &Pass{
		reg:      reg,
		buffers:  buffers,
		settings: DefaultSettings(),
		compile:  naga.Compile,
		cache:    compiled,
	}
	for _, opt := range opts {
		opt(p)
	}

	scale := float32(1)
	if p.settings.Downsample {
		scale = 0.5
	}
	desc := rthandle.Descriptor{
		ScaleFactor: f32.Vec2{scale, scale},
		Format:      gputypes.TextureFormatR8Unorm,
	}
	if reg.Capabilities().RandomWrite {
		desc.Flags |= rthandle.FlagRandomWrite
	}

	var err error
	desc.Name = "ao/occlusion"
	if p.occlusion, err = reg.Alloc(desc); err != nil {
		return nil, fmt.Errorf("ao: %w", err)
	}
	desc.Name = "ao/blur"
	if p.scratch, err = reg.Alloc(desc); err != nil {
		_ = p.occlusion.Release()
		return nil, fmt.Errorf("ao: %w", err)
	}

	rthandle.Logger().Debug("ao: pass created",
		"scale", scale,
		"samples", p.settings.Samples,
		"random_write", desc.Flags.Has(rthandle.FlagRandomWrite))
	return p, nil
}

// Settings returns the active settings.
func (p *Pass) Settings() Settings { return p.settings }

// Occlusion returns the handle holding the occlusion term.
func (p *Pass) Occlusion() *rthandle.Handle { return p.occlusion }

// Scratch returns the blur scratch handle.
func (p *Pass) Scratch() *rthandle.Handle { return p.scratch }

// Record records the pass for one camera into a pooled command buffer.
// The caller submits the buffer and hands it back with Done.
func (p *Pass) Record(in Inputs) (*cmdbuf.Buffer, error) {
	if p.closed {
		return nil, ErrClosed
	}
	normals := p.reg.Capabilities().DepthNormals

	depth := in.Depth.RawID()
	color := in.Color.RawID()
	if depth == rthandle.NullID {
		return nil, fmt.Errorf("%w: depth", ErrMissingInput)
	}
	if color == rthandle.NullID {
		return nil, fmt.Errorf("%w: color", ErrMissingInput)
	}
	var normalID rthandle.RawID
	if normals {
		if normalID = in.Normals.RawID(); normalID == rthandle.NullID {
			return nil, fmt.Errorf("%w: normals", ErrMissingInput)
		}
	}

	occ := p.occlusion.RawID()
	scratch := p.scratch.RawID()

	buf := p.buffers.Get()
	buf.SetLabel("ao")
	buf.SetParams(p.params())

	buf.SetTarget(occ)
	buf.Clear(cmdbuf.Color{1, 1, 1, 1})
	if normals {
		buf.Draw(ProgramOcclusionNormals, depth, normalID)
	} else {
		buf.Draw(ProgramOcclusionDepth, depth)
	}

	buf.SetTarget(scratch)
	buf.Draw(ProgramBlurH, occ)
	buf.SetTarget(occ)
	buf.Draw(ProgramBlurV, scratch)

	buf.SetTarget(color)
	buf.Draw(ProgramComposite, occ)
	return buf, nil
}

// Done returns a buffer obtained from Record to the pool.
func (p *Pass) Done(buf *cmdbuf.Buffer) {
	if buf != nil {
		p.buffers.Release(buf)
	}
}

// params packs the uniform block shared by all programs.
func (p *Pass) params() [8]float32 {
	size := p.occlusion.Size()
	var texel [2]float32
	if size.Width > 0 && size.Height > 0 {
		texel = [2]float32{1 / float32(size.Width), 1 / float32(size.Height)}
	}
	s := p.settings
	return [8]float32{
		s.Intensity,
		s.Radius,
		s.DirectLightingStrength,
		float32(s.Samples),
		texel[0],
		texel[1],
	}
}

// Shaders compiles every program to SPIR-V words, keyed by program name.
// The result is cached after the first successful call. Passes using the
// default compiler share compiled programs.
func (p *Pass) Shaders() (map[string][]uint32, error) {
	if p.shaders != nil {
		return p.shaders, nil
	}
	out := make(map[string][]uint32, len(programSources))
	for _, prog := range programSources {
		words, err := p.cache.GetOrCompile(prog.source, p.compileWords)
		if err != nil {
			return nil, fmt.Errorf("ao: compile %s: %w", prog.name, err)
		}
		out[prog.name] = words
	}
	p.shaders = out
	return out, nil
}

func (p *Pass) compileWords(wgsl string) ([]uint32, error) {
	b, err := p.compile(wgsl)
	if err != nil {
		return nil, err
	}
	return spirvWords(b)
}

// Close releases the pass targets. Close is idempotent, and targets
// already released by Registry.Close are skipped.
func (p *Pass) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for _, h := range []*rthandle.Handle{p.occlusion, p.scratch} {
		if !h.Released() {
			errs = append(errs, h.Release())
		}
	}
	return errors.Join(errs...)
}
