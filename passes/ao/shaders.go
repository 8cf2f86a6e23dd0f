package ao

import (
	_ "embed"
	"encoding/binary"
	"fmt"
)

// Program names recorded into command buffers.
const (
	ProgramOcclusionDepth   = "ao/occlusion-depth"
	ProgramOcclusionNormals = "ao/occlusion-normals"
	ProgramBlurH            = "ao/blur-h"
	ProgramBlurV            = "ao/blur-v"
	ProgramComposite        = "ao/composite"
)

//go:embed shaders/occlusion_depth.wgsl
var occlusionDepthWGSL string

//go:embed shaders/occlusion_normals.wgsl
var occlusionNormalsWGSL string

//go:embed shaders/blur_h.wgsl
var blurHWGSL string

//go:embed shaders/blur_v.wgsl
var blurVWGSL string

//go:embed shaders/composite.wgsl
var compositeWGSL string

// programSources lists every program in the order they are compiled.
var programSources = []struct {
	name   string
	source string
}{
	{ProgramOcclusionDepth, occlusionDepthWGSL},
	{ProgramOcclusionNormals, occlusionNormalsWGSL},
	{ProgramBlurH, blurHWGSL},
	{ProgramBlurV, blurVWGSL},
	{ProgramComposite, compositeWGSL},
}

// Source returns the WGSL source of a program, or "" if name is unknown.
func Source(name string) string {
	for _, p := range programSources {
		if p.name == name {
			return p.source
		}
	}
	return ""
}

// spirvWords converts little-endian SPIR-V bytes into 32-bit words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("ao: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
