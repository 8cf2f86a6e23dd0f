package ao

// Settings controls the screen-space ambient occlusion pass.
type Settings struct {
	// Intensity scales the occlusion term. Range [0, 4].
	Intensity float32 `yaml:"intensity"`
	// Radius is the sampling radius in normalized screen units. Range [0.001, 10].
	Radius float32 `yaml:"radius"`
	// DirectLightingStrength is how much occlusion darkens directly lit
	// color in the composite. Range [0, 1].
	DirectLightingStrength float32 `yaml:"direct_lighting_strength"`
	// Downsample runs occlusion and blur at half the camera resolution.
	Downsample bool `yaml:"downsample"`
	// Samples is the number of taps per pixel. Range [2, 32].
	Samples int `yaml:"samples"`
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		Intensity:              3,
		Radius:                 0.035,
		DirectLightingStrength: 0.25,
		Samples:                8,
	}
}

// Clamp returns s with every field limited to its valid range.
func (s Settings) Clamp() Settings {
	s.Intensity = clampf(s.Intensity, 0, 4)
	s.Radius = clampf(s.Radius, 0.001, 10)
	s.DirectLightingStrength = clampf(s.DirectLightingStrength, 0, 1)
	s.Samples = min(max(s.Samples, 2), 32)
	return s
}

func clampf(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
