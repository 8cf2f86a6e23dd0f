package grading

import (
	"slices"

	"golang.org/x/image/math/f32"
)

// Curve is a piecewise-linear transfer curve over [0, 1]. Each point is
// an (input, output) pair. An empty curve is the identity.
type Curve []f32.Vec2

// Evaluate returns the curve value at x. Inputs outside the first and
// last point hold the end values.
func (c Curve) Evaluate(x float32) float32 {
	switch len(c) {
	case 0:
		return x
	case 1:
		return c[0][1]
	}
	if x <= c[0][0] {
		return c[0][1]
	}
	last := c[len(c)-1]
	if x >= last[0] {
		return last[1]
	}
	i, _ := slices.BinarySearchFunc(c, x, func(p f32.Vec2, x float32) int {
		switch {
		case p[0] < x:
			return -1
		case p[0] > x:
			return 1
		}
		return 0
	})
	if c[i][0] == x {
		return c[i][1]
	}
	a, b := c[i-1], c[i]
	t := (x - a[0]) / (b[0] - a[0])
	return a[1] + t*(b[1]-a[1])
}

// Clamp returns a copy with points limited to [0, 1], sorted by input,
// and duplicate inputs collapsed to the last one.
func (c Curve) Clamp() Curve {
	if len(c) == 0 {
		return nil
	}
	out := make(Curve, len(c))
	for i, p := range c {
		out[i] = f32.Vec2{clamp01(p[0]), clamp01(p[1])}
	}
	slices.SortStableFunc(out, func(a, b f32.Vec2) int {
		switch {
		case a[0] < b[0]:
			return -1
		case a[0] > b[0]:
			return 1
		}
		return 0
	})
	dedup := out[:1]
	for _, p := range out[1:] {
		if p[0] == dedup[len(dedup)-1][0] {
			dedup[len(dedup)-1] = p
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}

// ColorCurves applies a master curve followed by per-channel curves.
type ColorCurves struct {
	Master Curve `yaml:"master,omitempty"`
	Red    Curve `yaml:"red,omitempty"`
	Green  Curve `yaml:"green,omitempty"`
	Blue   Curve `yaml:"blue,omitempty"`
}

// Apply runs rgb through the curves.
func (c ColorCurves) Apply(rgb f32.Vec3) f32.Vec3 {
	return f32.Vec3{
		c.Red.Evaluate(c.Master.Evaluate(rgb[0])),
		c.Green.Evaluate(c.Master.Evaluate(rgb[1])),
		c.Blue.Evaluate(c.Master.Evaluate(rgb[2])),
	}
}

// Clamp clamps every curve.
func (c ColorCurves) Clamp() ColorCurves {
	return ColorCurves{
		Master: c.Master.Clamp(),
		Red:    c.Red.Clamp(),
		Green:  c.Green.Clamp(),
		Blue:   c.Blue.Clamp(),
	}
}
