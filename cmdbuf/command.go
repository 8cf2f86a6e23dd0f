// Package cmdbuf records the GPU work of a single render pass into a
// transient, reusable buffer.
//
// A Buffer is a list of typed commands. Render targets are bound by
// their raw identifier (rthandle.RawID), so a recorded buffer stays
// valid only until the next reference-size change reallocates the
// handles it names. Buffers are meant to be recorded, submitted and
// returned to a pool within one frame.
//
// # Example
//
//	buffers := cmdbuf.NewPool()
//	buf := buffers.Get()
//	buf.SetTarget(occlusion.RawID())
//	buf.Clear(cmdbuf.Color{1, 1, 1, 1})
//	buf.Draw("ao/occlusion", depth.RawID())
//	err := buf.Playback(exec)
//	buffers.Release(buf)
package cmdbuf

import "github.com/gogpu/rthandle"

// CommandType identifies the type of a command.
type CommandType uint8

const (
	CmdSetTarget CommandType = iota // Bind the color target
	CmdClear                        // Clear the bound target
	CmdSetParams                    // Set the uniform block for following draws
	CmdDraw                         // Fullscreen draw with sampled inputs
	CmdCopy                         // Copy one texture into another
)

var commandTypeNames = [...]string{
	CmdSetTarget: "SetTarget",
	CmdClear:     "Clear",
	CmdSetParams: "SetParams",
	CmdDraw:      "Draw",
	CmdCopy:      "Copy",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// Color is a linear RGBA clear color.
type Color [4]float32

// SetTargetCommand binds the color target for subsequent clears and draws.
type SetTargetCommand struct {
	Target rthandle.RawID
}

// Type implements Command.
func (SetTargetCommand) Type() CommandType { return CmdSetTarget }

// ClearCommand clears the bound target.
type ClearCommand struct {
	Color Color
}

// Type implements Command.
func (ClearCommand) Type() CommandType { return CmdClear }

// SetParamsCommand sets the uniform block read by subsequent draws.
type SetParamsCommand struct {
	Params [8]float32
}

// Type implements Command.
func (SetParamsCommand) Type() CommandType { return CmdSetParams }

// DrawCommand runs a fullscreen program over the bound target.
type DrawCommand struct {
	// Program names the shader program, e.g. "ao/blur-h".
	Program string
	// Inputs are the textures bound for sampling, in binding order.
	Inputs []rthandle.RawID
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// CopyCommand copies Src into Dst.
type CopyCommand struct {
	Src rthandle.RawID
	Dst rthandle.RawID
}

// Type implements Command.
func (CopyCommand) Type() CommandType { return CmdCopy }
