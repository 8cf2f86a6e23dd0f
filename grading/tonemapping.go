package grading

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// ToneMappingMode selects the tone mapping operator.
type ToneMappingMode uint8

const (
	// ToneMappingNone passes colors through unchanged.
	ToneMappingNone ToneMappingMode = iota
	// ToneMappingNeutral is a hue-preserving curve with a soft shoulder.
	ToneMappingNeutral
	// ToneMappingACES is the filmic ACES approximation.
	ToneMappingACES
)

var toneMappingNames = [...]string{
	ToneMappingNone:    "none",
	ToneMappingNeutral: "neutral",
	ToneMappingACES:    "aces",
}

// String returns the lowercase name of the mode.
func (m ToneMappingMode) String() string {
	if int(m) < len(toneMappingNames) {
		return toneMappingNames[m]
	}
	return fmt.Sprintf("ToneMappingMode(%d)", m)
}

// ParseToneMappingMode parses a mode name as returned by String.
func ParseToneMappingMode(s string) (ToneMappingMode, error) {
	for i, name := range toneMappingNames {
		if name == s {
			return ToneMappingMode(i), nil
		}
	}
	return ToneMappingNone, fmt.Errorf("%w: tone mapping mode %q", ErrInvalidProfile, s)
}

// MarshalYAML implements yaml.Marshaler.
func (m ToneMappingMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *ToneMappingMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	mode, err := ParseToneMappingMode(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = mode
	return nil
}

// ToneMapping maps HDR scene color into display range.
type ToneMapping struct {
	Mode ToneMappingMode `yaml:"mode"`
}

// Apply tone maps a linear color channel.
func (t ToneMapping) Apply(x float32) float32 {
	switch t.Mode {
	case ToneMappingNeutral:
		return neutral(x)
	case ToneMappingACES:
		return aces(x)
	default:
		return x
	}
}

// aces is Narkowicz's fit of the ACES reference rendering transform.
func aces(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	x = max(x, 0)
	return clamp01((x * (a*x + b)) / (x*(c*x+d) + e))
}

// neutral is an exponential shoulder that is linear near black.
func neutral(x float32) float32 {
	x = max(x, 0)
	return 1 - float32(math.Exp(-float64(x)))
}
