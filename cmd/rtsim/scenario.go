package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/rthandle"
	"github.com/gogpu/rthandle/grading"
	"github.com/gogpu/rthandle/passes/ao"
)

// Scenario is a replayable sequence of frames. Budget is the device
// memory budget in bytes; zero is unlimited.
type Scenario struct {
	Name     string         `yaml:"name"`
	Budget   uint64         `yaml:"budget"`
	BaseSize [2]int         `yaml:"base_size"`
	MSAA     uint32         `yaml:"msaa"`
	Platform PlatformConfig `yaml:"platform"`
	Handles  []HandleConfig `yaml:"handles"`
	Frames   []FrameConfig  `yaml:"frames"`
	Repeat   int            `yaml:"repeat"`
	AO       *AOConfig      `yaml:"ao,omitempty"`
	Grading  *GradingConfig `yaml:"grading,omitempty"`
}

// AOConfig enables the ambient occlusion pass. Omitted settings keep
// their defaults.
type AOConfig struct {
	Settings ao.Settings
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *AOConfig) UnmarshalYAML(value *yaml.Node) error {
	c.Settings = ao.DefaultSettings()
	if err := decodeStrict(value, &c.Settings); err != nil {
		return err
	}
	c.Settings = c.Settings.Clamp()
	return nil
}

// GradingConfig is an inline grading profile. Omitted blocks keep their
// defaults.
type GradingConfig struct {
	Profile grading.Profile
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *GradingConfig) UnmarshalYAML(value *yaml.Node) error {
	c.Profile = grading.Default()
	if err := decodeStrict(value, &c.Profile); err != nil {
		return err
	}
	c.Profile = c.Profile.Clamp()
	return nil
}

// decodeStrict decodes value into out, rejecting unknown fields.
// Node.Decode does not inherit the outer decoder's KnownFields setting.
func decodeStrict(value *yaml.Node, out any) error {
	b, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("block at line %d: %w", value.Line, err)
	}
	return nil
}

// PlatformConfig mirrors rthandle.Capabilities.
type PlatformConfig struct {
	HardwareDynamicResolution bool   `yaml:"hardware_dynamic_resolution"`
	FastMemory                bool   `yaml:"fast_memory"`
	RandomWrite               bool   `yaml:"random_write"`
	DepthNormals              bool   `yaml:"depth_normals"`
	MaxTextureSize            int    `yaml:"max_texture_size"`
	MaxMSAASamples            uint32 `yaml:"max_msaa_samples"`
}

// Capabilities converts the config.
func (p PlatformConfig) Capabilities() rthandle.Capabilities {
	return rthandle.Capabilities(p)
}

// HandleConfig describes one handle to allocate before the first frame.
type HandleConfig struct {
	Name   string   `yaml:"name"`
	Scale  f32.Vec2 `yaml:"scale"`
	Fixed  [2]int   `yaml:"fixed"`
	Format string   `yaml:"format"`
	Flags  []string `yaml:"flags"`
}

// FrameConfig is one frame: the camera sizes reported and an optional
// MSAA change applied before them.
type FrameConfig struct {
	Cameras [][2]int `yaml:"cameras"`
	MSAA    uint32   `yaml:"msaa"`
}

var formats = map[string]gputypes.TextureFormat{
	"":                     gputypes.TextureFormatUndefined,
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"rg32float":            gputypes.TextureFormatRG32Float,
	"rgba32float":          gputypes.TextureFormatRGBA32Float,
	"depth24plus-stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

var flagNames = map[string]rthandle.Flags{
	"msaa":          rthandle.FlagMSAA,
	"random-write":  rthandle.FlagRandomWrite,
	"dynamic-scale": rthandle.FlagDynamicScale,
}

// Descriptor converts the config into an allocation descriptor.
func (h HandleConfig) Descriptor() (rthandle.Descriptor, error) {
	format, ok := formats[strings.ToLower(h.Format)]
	if !ok {
		return rthandle.Descriptor{}, fmt.Errorf("handle %q: unknown format %q", h.Name, h.Format)
	}
	d := rthandle.Descriptor{
		Name:        h.Name,
		FixedSize:   rthandle.Sz(h.Fixed[0], h.Fixed[1]),
		ScaleFactor: h.Scale,
		Format:      format,
	}
	for _, name := range h.Flags {
		f, ok := flagNames[strings.ToLower(name)]
		if !ok {
			return rthandle.Descriptor{}, fmt.Errorf("handle %q: unknown flag %q", h.Name, name)
		}
		d.Flags |= f
	}
	return d, nil
}

// LoadScenario decodes a scenario document.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario: empty document")
		}
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarioFile reads a scenario from path.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadScenario(f)
}

func (s *Scenario) validate() error {
	if len(s.Frames) == 0 {
		return errors.New("scenario: no frames")
	}
	seen := make(map[string]bool, len(s.Handles))
	for _, h := range s.Handles {
		if h.Name == "" {
			return errors.New("scenario: handle without name")
		}
		if seen[h.Name] {
			return fmt.Errorf("scenario: duplicate handle %q", h.Name)
		}
		seen[h.Name] = true
		if _, err := h.Descriptor(); err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
	}
	for i, f := range s.Frames {
		for _, c := range f.Cameras {
			if c[0] < 0 || c[1] < 0 {
				return fmt.Errorf("scenario: frame %d: negative camera size %dx%d", i, c[0], c[1])
			}
		}
	}
	s.Repeat = max(s.Repeat, 1)
	return nil
}
