// Package vm provides a reference Brainfuck interpreter. It executes the
// token stream directly and is used by the compiler tests as an oracle
// for the behavior of compiled programs.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/gaidardzhiev/bfelfx64/internal/core"
)

// RuntimeError represents an error during VM execution.
type RuntimeError struct {
	Msg string
	Pos *core.Position
	PC  int
}

func (e *RuntimeError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("runtime error at PC %d (line %d, col %d): %s",
			e.PC,
			e.Pos.Line,
			e.Pos.Column,
			e.Msg,
		)
	}
	return fmt.Sprintf("runtime error at PC %d: %s", e.PC, e.Msg)
}

// EOFBehavior specifies how the VM handles EOF on input.
type EOFBehavior int

const (
	// EOFNoChange leaves the cell unchanged, which is what a compiled
	// program's zero-length read does. Default.
	EOFNoChange EOFBehavior = iota
	EOFZero                 // Set cell to 0
	EOFMinusOne             // Set cell to 255
)

// VM executes Brainfuck token streams.
type VM struct {
	memSize     int
	input       io.Reader
	output      io.Writer
	eofBehavior EOFBehavior
	memory      []byte
	dp          int     // data pointer
	pc          int     // program counter
	ioBuf       [1]byte // reusable I/O buffer to avoid allocations
}

// VMOption is a functional option for configuring a VM.
type VMOption func(*VM)

// WithMemorySize sets the memory size (default 30000).
func WithMemorySize(size int) VMOption {
	return func(v *VM) {
		v.memSize = size
	}
}

// WithInput sets the input reader (default os.Stdin).
func WithInput(r io.Reader) VMOption {
	return func(v *VM) {
		v.input = r
	}
}

// WithOutput sets the output writer (default os.Stdout).
func WithOutput(w io.Writer) VMOption {
	return func(v *VM) {
		v.output = w
	}
}

// WithEOFBehavior sets the EOF handling behavior (default EOFNoChange).
func WithEOFBehavior(b EOFBehavior) VMOption {
	return func(v *VM) {
		v.eofBehavior = b
	}
}

// NewVM creates a new VM with the given options.
func NewVM(opts ...VMOption) *VM {
	vm := &VM{
		memSize:     core.TapeSize,
		input:       os.Stdin,
		output:      os.Stdout,
		eofBehavior: EOFNoChange,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// matchBrackets pairs each TokLBracket with its TokRBracket by index.
func matchBrackets(toks []core.Token) ([]int, error) {
	match := make([]int, len(toks))
	stack := make([]int, 0, 8)

	for i, tok := range toks {
		switch tok.Kind {
		case core.TokLBracket:
			stack = append(stack, i)
		case core.TokRBracket:
			if len(stack) == 0 {
				return nil, &RuntimeError{Msg: "unmatched ']'", Pos: &toks[i].Pos, PC: i}
			}
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			match[j] = i
			match[i] = j
		}
	}

	if len(stack) > 0 {
		i := stack[0]
		return nil, &RuntimeError{Msg: "unmatched '['", Pos: &toks[i].Pos, PC: i}
	}
	return match, nil
}

// Run executes the given token stream.
func (v *VM) Run(toks []core.Token) error {
	match, err := matchBrackets(toks)
	if err != nil {
		return err
	}

	v.memory = make([]byte, v.memSize)
	v.dp = 0
	v.pc = 0

	// Cache frequently accessed values for the hot loop
	memory := v.memory
	memSize := v.memSize
	numToks := len(toks)

	for v.pc < numToks {
		tok := toks[v.pc]

		switch tok.Kind {
		case core.TokShiftRight:
			v.dp++
			if v.dp >= memSize {
				return &RuntimeError{
					Msg: fmt.Sprintf("data pointer out of bounds: %d (valid range 0-%d)", v.dp, memSize-1),
					Pos: &tok.Pos,
					PC:  v.pc,
				}
			}

		case core.TokShiftLeft:
			v.dp--
			if v.dp < 0 {
				return &RuntimeError{
					Msg: fmt.Sprintf("data pointer out of bounds: %d (valid range 0-%d)", v.dp, memSize-1),
					Pos: &tok.Pos,
					PC:  v.pc,
				}
			}

		case core.TokAdd:
			memory[v.dp]++

		case core.TokSub:
			memory[v.dp]--

		case core.TokIn:
			n, err := v.input.Read(v.ioBuf[:])
			if err == io.EOF || n == 0 {
				switch v.eofBehavior {
				case EOFNoChange:
					// leave unchanged
				case EOFZero:
					memory[v.dp] = 0
				case EOFMinusOne:
					memory[v.dp] = 255
				}
			} else if err != nil {
				return &RuntimeError{
					Msg: fmt.Sprintf("input error: %v", err),
					Pos: &tok.Pos,
					PC:  v.pc,
				}
			} else {
				memory[v.dp] = v.ioBuf[0]
			}

		case core.TokOut:
			v.ioBuf[0] = memory[v.dp]
			_, err := v.output.Write(v.ioBuf[:])
			if err != nil {
				return &RuntimeError{
					Msg: fmt.Sprintf("output error: %v", err),
					Pos: &tok.Pos,
					PC:  v.pc,
				}
			}

		case core.TokLBracket:
			if memory[v.dp] == 0 {
				v.pc = match[v.pc] + 1
				continue
			}

		case core.TokRBracket:
			if memory[v.dp] != 0 {
				v.pc = match[v.pc] + 1
				continue
			}
		}

		v.pc++
	}

	return nil
}
