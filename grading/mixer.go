package grading

import "golang.org/x/image/math/f32"

// ChannelMixer remixes RGB. Each row gives the contribution of the input
// red, green and blue channels to one output channel, in percent.
type ChannelMixer struct {
	Red   f32.Vec3 `yaml:"red"`
	Green f32.Vec3 `yaml:"green"`
	Blue  f32.Vec3 `yaml:"blue"`
}

// IdentityMixer returns a mixer that leaves colors unchanged.
func IdentityMixer() ChannelMixer {
	return ChannelMixer{
		Red:   f32.Vec3{100, 0, 0},
		Green: f32.Vec3{0, 100, 0},
		Blue:  f32.Vec3{0, 0, 100},
	}
}

// Matrix returns the mixer as a row-major 3x3 matrix of fractions.
func (m ChannelMixer) Matrix() f32.Mat3 {
	var out f32.Mat3
	for r, row := range [3]f32.Vec3{m.Red, m.Green, m.Blue} {
		for c := range 3 {
			out[r*3+c] = row[c] / 100
		}
	}
	return out
}

// Apply multiplies rgb by the mixer matrix.
func (m ChannelMixer) Apply(rgb f32.Vec3) f32.Vec3 {
	mat := m.Matrix()
	var out f32.Vec3
	for r := range 3 {
		out[r] = mat[r*3]*rgb[0] + mat[r*3+1]*rgb[1] + mat[r*3+2]*rgb[2]
	}
	return out
}

// Clamp limits every coefficient to [-200, 200].
func (m ChannelMixer) Clamp() ChannelMixer {
	for _, row := range []*f32.Vec3{&m.Red, &m.Green, &m.Blue} {
		for i := range row {
			row[i] = min(max(row[i], -200), 200)
		}
	}
	return m
}
