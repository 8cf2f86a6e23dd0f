package cmdbuf

import (
	"errors"
	"fmt"

	"github.com/gogpu/rthandle"
	"github.com/gogpu/rthandle/pool"
)

// ErrNullTarget is returned by Playback when a command names NullID.
var ErrNullTarget = errors.New("cmdbuf: command references a null render target")

// Executor receives the commands of a Buffer during Playback.
type Executor interface {
	SetTarget(target rthandle.RawID) error
	Clear(c Color) error
	SetParams(params [8]float32) error
	Draw(program string, inputs []rthandle.RawID) error
	Copy(src, dst rthandle.RawID) error
}

// Buffer is a transient list of recorded commands.
//
// The zero value is an empty buffer ready for recording.
type Buffer struct {
	label    string
	commands []Command
	// inputs backs the Inputs slices of recorded draws so that a reset
	// buffer reuses its storage.
	inputs []rthandle.RawID
}

// New returns an empty buffer. It is the factory used by NewPool.
func New() *Buffer {
	return &Buffer{}
}

// NewPool returns a pool of buffers that are reset on release.
func NewPool(opts ...pool.Option[*Buffer]) *pool.Pool[*Buffer] {
	opts = append([]pool.Option[*Buffer]{pool.WithReset((*Buffer).Reset)}, opts...)
	return pool.New(New, opts...)
}

// SetLabel names the buffer for logs.
func (b *Buffer) SetLabel(label string) { b.label = label }

// Label returns the buffer label.
func (b *Buffer) Label() string { return b.label }

// SetTarget records a target bind.
func (b *Buffer) SetTarget(target rthandle.RawID) {
	b.commands = append(b.commands, SetTargetCommand{Target: target})
}

// Clear records a clear of the bound target.
func (b *Buffer) Clear(c Color) {
	b.commands = append(b.commands, ClearCommand{Color: c})
}

// SetParams records a uniform block update.
func (b *Buffer) SetParams(params [8]float32) {
	b.commands = append(b.commands, SetParamsCommand{Params: params})
}

// Draw records a fullscreen draw sampling inputs.
func (b *Buffer) Draw(program string, inputs ...rthandle.RawID) {
	start := len(b.inputs)
	b.inputs = append(b.inputs, inputs...)
	b.commands = append(b.commands, DrawCommand{
		Program: program,
		Inputs:  b.inputs[start:len(b.inputs):len(b.inputs)],
	})
}

// Copy records a texture copy.
func (b *Buffer) Copy(src, dst rthandle.RawID) {
	b.commands = append(b.commands, CopyCommand{Src: src, Dst: dst})
}

// Len returns the number of recorded commands.
func (b *Buffer) Len() int { return len(b.commands) }

// Commands returns the recorded commands. The slice is only valid until
// the next Reset.
func (b *Buffer) Commands() []Command { return b.commands }

// Reset clears the buffer, keeping its storage.
func (b *Buffer) Reset() {
	clear(b.commands)
	b.commands = b.commands[:0]
	b.inputs = b.inputs[:0]
	b.label = ""
}

// Playback replays the recorded commands to exec in order. It stops at
// the first error.
func (b *Buffer) Playback(exec Executor) error {
	for i, cmd := range b.commands {
		var err error
		switch c := cmd.(type) {
		case SetTargetCommand:
			if c.Target == rthandle.NullID {
				err = ErrNullTarget
				break
			}
			err = exec.SetTarget(c.Target)
		case ClearCommand:
			err = exec.Clear(c.Color)
		case SetParamsCommand:
			err = exec.SetParams(c.Params)
		case DrawCommand:
			err = exec.Draw(c.Program, c.Inputs)
		case CopyCommand:
			if c.Src == rthandle.NullID || c.Dst == rthandle.NullID {
				err = ErrNullTarget
				break
			}
			err = exec.Copy(c.Src, c.Dst)
		}
		if err != nil {
			return fmt.Errorf("cmdbuf: %s command %d (%s): %w", b.label, i, cmd.Type(), err)
		}
	}
	return nil
}
