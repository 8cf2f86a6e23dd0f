package grading

import (
	"math"

	"golang.org/x/image/math/f32"
)

// ColorAdjustments are global exposure, contrast and saturation controls.
type ColorAdjustments struct {
	// PostExposure in EV stops.
	PostExposure float32 `yaml:"post_exposure"`
	// Contrast in [-100, 100].
	Contrast float32 `yaml:"contrast"`
	// Saturation in [-100, 100].
	Saturation float32 `yaml:"saturation"`
	// HueShift in degrees, [-180, 180].
	HueShift float32 `yaml:"hue_shift"`
	// ColorFilter multiplies the result; alpha is ignored.
	ColorFilter f32.Vec4 `yaml:"color_filter"`
}

// DefaultAdjustments returns neutral adjustments.
func DefaultAdjustments() ColorAdjustments {
	return ColorAdjustments{ColorFilter: f32.Vec4{1, 1, 1, 1}}
}

// Clamp limits every field to its range.
func (a ColorAdjustments) Clamp() ColorAdjustments {
	a.Contrast = min(max(a.Contrast, -100), 100)
	a.Saturation = min(max(a.Saturation, -100), 100)
	a.HueShift = min(max(a.HueShift, -180), 180)
	for i := range a.ColorFilter {
		a.ColorFilter[i] = max(a.ColorFilter[i], 0)
	}
	return a
}

// Apply adjusts a linear rgb color. Hue shift is applied by the GPU
// shader only and is not evaluated here.
func (a ColorAdjustments) Apply(rgb f32.Vec3) f32.Vec3 {
	exposure := float32(math.Exp2(float64(a.PostExposure)))
	contrast := a.Contrast/100 + 1
	saturation := a.Saturation/100 + 1

	var out f32.Vec3
	for i := range 3 {
		c := rgb[i] * exposure
		c = (c-0.5)*contrast + 0.5
		out[i] = max(c*a.ColorFilter[i], 0)
	}
	luma := 0.2126*out[0] + 0.7152*out[1] + 0.0722*out[2]
	for i := range out {
		out[i] = max(luma+(out[i]-luma)*saturation, 0)
	}
	return out
}

// LiftGammaGain is a three-way color corrector. The first three
// components tint the range; the fourth offsets it uniformly.
type LiftGammaGain struct {
	Lift  f32.Vec4 `yaml:"lift"`
	Gamma f32.Vec4 `yaml:"gamma"`
	Gain  f32.Vec4 `yaml:"gain"`
}

// DefaultLiftGammaGain returns the neutral corrector.
func DefaultLiftGammaGain() LiftGammaGain {
	return LiftGammaGain{
		Lift:  f32.Vec4{1, 1, 1, 0},
		Gamma: f32.Vec4{1, 1, 1, 0},
		Gain:  f32.Vec4{1, 1, 1, 0},
	}
}

// Clamp limits tints to [0, 2] and offsets to [-1, 1].
func (l LiftGammaGain) Clamp() LiftGammaGain {
	for _, v := range []*f32.Vec4{&l.Lift, &l.Gamma, &l.Gain} {
		for i := range 3 {
			v[i] = min(max(v[i], 0), 2)
		}
		v[3] = min(max(v[3], -1), 1)
	}
	return l
}

// Factors returns the per-channel lift, gamma and gain the shader uses:
// out = pow(max(in*gain + lift, 0), 1/gamma).
func (l LiftGammaGain) Factors() (lift, gamma, gain f32.Vec3) {
	for i := range 3 {
		lift[i] = (l.Lift[i] - 1) + l.Lift[3]
		gamma[i] = max(l.Gamma[i]+l.Gamma[3], 0.01)
		gain[i] = l.Gain[i] + l.Gain[3]
	}
	return lift, gamma, gain
}

// Apply runs rgb through the corrector.
func (l LiftGammaGain) Apply(rgb f32.Vec3) f32.Vec3 {
	lift, gamma, gain := l.Factors()
	var out f32.Vec3
	for i := range 3 {
		c := max(rgb[i]*gain[i]+lift[i], 0)
		out[i] = float32(math.Pow(float64(c), 1/float64(gamma[i])))
	}
	return out
}
