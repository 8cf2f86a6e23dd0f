package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/image/math/f32"
	"golang.org/x/text/message"

	"github.com/gogpu/rthandle"
	"github.com/gogpu/rthandle/cmdbuf"
	"github.com/gogpu/rthandle/internal/memdevice"
	"github.com/gogpu/rthandle/metrics"
	"github.com/gogpu/rthandle/passes/ao"
	"github.com/gogpu/rthandle/pool"
)

// RunOptions control a simulation run.
type RunOptions struct {
	// MaxFrames stops the run early; zero runs every frame.
	MaxFrames int
	// Quiet suppresses the per-frame lines.
	Quiet bool
	// Metrics, if set, receives the run's collector.
	Metrics prometheus.Registerer
}

// Report summarizes a run.
type Report struct {
	Frames     int
	MaxRefSize rthandle.Size
	Registry   rthandle.Stats
	Device     memdevice.Stats
	Commands   int
	PoolBuilt  int
}

// countingExecutor plays command buffers back without a GPU.
type countingExecutor struct {
	commands int
}

func (e *countingExecutor) SetTarget(rthandle.RawID) error {
	e.commands++
	return nil
}

func (e *countingExecutor) Clear(cmdbuf.Color) error {
	e.commands++
	return nil
}

func (e *countingExecutor) SetParams([8]float32) error {
	e.commands++
	return nil
}

func (e *countingExecutor) Draw(string, []rthandle.RawID) error {
	e.commands++
	return nil
}

func (e *countingExecutor) Copy(_, _ rthandle.RawID) error {
	e.commands++
	return nil
}

// Run replays s against a registry backed by an in-memory device and
// writes per-frame lines to w.
func Run(s *Scenario, w io.Writer, p *message.Printer, opts RunOptions) (rep Report, err error) {
	dev := memdevice.New(s.Budget)
	regOpts := []rthandle.RegistryOption{
		rthandle.WithPlatform(rthandle.StaticPlatform(s.Platform.Capabilities())),
		rthandle.WithBaseSize(rthandle.Sz(s.BaseSize[0], s.BaseSize[1])),
	}
	if s.MSAA > 0 {
		regOpts = append(regOpts, rthandle.WithMSAASamples(s.MSAA))
	}
	reg, err := rthandle.NewRegistry(dev, regOpts...)
	if err != nil {
		return rep, err
	}

	var handles []*rthandle.Handle
	defer func() {
		for _, h := range handles {
			err = errors.Join(err, h.Release())
		}
		reg.Close()
		rep.Device = dev.Stats()
	}()

	for _, hc := range s.Handles {
		desc, derr := hc.Descriptor()
		if derr != nil {
			return rep, derr
		}
		h, aerr := reg.Alloc(desc)
		if aerr != nil {
			return rep, aerr
		}
		handles = append(handles, h)
	}

	buffers := cmdbuf.NewPool()
	collector := metrics.NewCollector(reg, metrics.WithPool("cmdbuf", buffers))
	if opts.Metrics != nil {
		if err := opts.Metrics.Register(collector); err != nil {
			return rep, fmt.Errorf("register metrics: %w", err)
		}
	}

	var (
		pass   *ao.Pass
		inputs ao.Inputs
		exec   countingExecutor
	)
	if s.AO != nil {
		inputs, err = allocCamera(reg, &handles)
		if err != nil {
			return rep, err
		}
		if pass, err = ao.New(reg, buffers, ao.WithSettings(s.AO.Settings)); err != nil {
			return rep, err
		}
		defer func() { err = errors.Join(err, pass.Close()) }()
	}

	if s.Grading != nil {
		gray := s.Grading.Profile.Apply(f32.Vec3{0.18, 0.18, 0.18})
		p.Fprintf(w, "grading %q: mid-gray -> %.3f %.3f %.3f\n", s.Grading.Profile.Name, gray[0], gray[1], gray[2])
	}

	for range s.Repeat {
		for i, f := range s.Frames {
			if opts.MaxFrames > 0 && rep.Frames >= opts.MaxFrames {
				break
			}
			if err := runFrame(reg, pass, inputs, &exec, buffers, f); err != nil {
				return rep, fmt.Errorf("frame %d (scenario frame %d): %w", rep.Frames+1, i, err)
			}
			collector.Observe()
			rep.Frames++

			st := reg.Stats()
			if !opts.Quiet {
				p.Fprintf(w, "frame %5d  ref %-11s  live %3d  allocs %d  reallocs %d  skipped %d  bytes %d\n",
					rep.Frames, reg.ReferenceSize().String(), st.LiveHandles,
					st.Allocations, st.Reallocations, st.SkippedResizes, st.BytesOwned)
			}
			reg.ResetReferenceSize()
		}
	}

	rep.MaxRefSize = reg.Properties().MaxReferenceSize
	rep.Registry = reg.Stats()
	rep.Commands = exec.commands
	rep.PoolBuilt = buffers.CountAll()
	return rep, nil
}

func runFrame(reg *rthandle.Registry, pass *ao.Pass, in ao.Inputs, exec cmdbuf.Executor,
	buffers *pool.Pool[*cmdbuf.Buffer], f FrameConfig,
) error {
	if f.MSAA > 0 {
		if err := reg.SetMSAASamples(f.MSAA); err != nil {
			return err
		}
	}
	cams := make([]rthandle.Size, len(f.Cameras))
	for i, c := range f.Cameras {
		cams[i] = rthandle.Sz(c[0], c[1])
	}
	if err := reg.RefreshReferenceSizes(cams...); err != nil {
		return err
	}
	if pass == nil {
		return nil
	}

	buf, err := pass.Record(in)
	if err != nil {
		return err
	}
	defer pass.Done(buf)
	if err := buf.Playback(exec); err != nil {
		return err
	}
	if n := buffers.CountActive(); n != 1 {
		return fmt.Errorf("command buffer pool has %d checkouts, want 1", n)
	}
	return nil
}

// allocCamera allocates the camera targets the AO pass reads.
func allocCamera(reg *rthandle.Registry, handles *[]*rthandle.Handle) (ao.Inputs, error) {
	unit := f32.Vec2{1, 1}
	descs := []rthandle.Descriptor{
		{Name: "camera/depth", ScaleFactor: unit, Format: depthFormat},
		{Name: "camera/color", ScaleFactor: unit},
	}
	if reg.Capabilities().DepthNormals {
		descs = append(descs, rthandle.Descriptor{Name: "camera/normals", ScaleFactor: unit})
	}
	var out [3]*rthandle.Handle
	for i, d := range descs {
		h, err := reg.Alloc(d)
		if err != nil {
			return ao.Inputs{}, err
		}
		*handles = append(*handles, h)
		out[i] = h
	}
	return ao.Inputs{Depth: out[0], Color: out[1], Normals: out[2]}, nil
}

var depthFormat = formats["depth24plus-stencil8"]
