package rthandle

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f32"
)

// Size is a pixel size in two dimensions.
type Size struct {
	Width  int
	Height int
}

// Sz is shorthand for Size{Width: w, Height: h}.
func Sz(w, h int) Size {
	return Size{Width: w, Height: h}
}

// IsZero reports whether both dimensions are zero.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Valid reports whether both dimensions are strictly positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Max returns the component-wise maximum of s and o.
func (s Size) Max(o Size) Size {
	return Size{Width: max(s.Width, o.Width), Height: max(s.Height, o.Height)}
}

// Contains reports whether o fits inside s on both axes.
func (s Size) Contains(o Size) bool {
	return o.Width <= s.Width && o.Height <= s.Height
}

// Scale multiplies each axis by the matching factor and rounds half away
// from zero. The axes are independent.
func (s Size) Scale(factor f32.Vec2) Size {
	return Size{
		Width:  roundAxis(factor[0], s.Width),
		Height: roundAxis(factor[1], s.Height),
	}
}

// clampZero returns s with every zero axis raised to 1.
// Negative axes are left to the caller to reject.
func (s Size) clampZero() Size {
	if s.Width == 0 {
		s.Width = 1
	}
	if s.Height == 0 {
		s.Height = 1
	}
	return s
}

// String returns "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// roundAxis evaluates in float64 so the result is identical for identical
// inputs regardless of the float32 factor's neighbourhood. Results beyond
// the int32 range saturate so they fail the texture size limit.
func roundAxis(factor float32, v int) int {
	x := math.Round(float64(factor) * float64(v))
	switch {
	case math.IsNaN(x):
		return 0
	case x > math.MaxInt32:
		return math.MaxInt32
	case x < math.MinInt32:
		return math.MinInt32
	}
	return int(x)
}

// ScaleFunc maps a reference size to a pixel size.
// It must be deterministic: identical inputs give identical outputs.
type ScaleFunc func(ref Size) Size
