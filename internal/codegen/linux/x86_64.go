// Package linux produces ELF64 x86_64 Linux executables from a Brainfuck
// token stream in a single pass, without an intermediate representation.
package linux

import (
	"encoding/binary"
	"fmt"

	"github.com/gaidardzhiev/bfelfx64/internal/core"
	"github.com/gaidardzhiev/bfelfx64/pkg/amd64"
	"github.com/gaidardzhiev/bfelfx64/pkg/elf"
)

// Linux syscall numbers
const (
	// sysRead = 0 // Omitted, it's quicker to use xor to zero out
	sysWrite = 1
	sysExit  = 60
)

// Memory layout constants
const (
	CodeBase = 0x400000 // Virtual address the file image is mapped at
	TapeBase = 0x600000 // Virtual address for the BSS segment (tape)
)

// headersSize is the ELF prefix in front of the code: one ELF header and
// two program headers. The entry point is CodeBase + headersSize.
const headersSize = elf.ELF64HeaderSize + 2*elf.ELF64PhdrSize

// MaxLoopDepth is the maximum loop nesting depth the compiler accepts.
const MaxLoopDepth = 1024

// maxImageSize keeps the text mapping below the tape mapping. The file is
// mapped at CodeBase; once it reaches TapeBase-CodeBase the two PT_LOAD
// segments would overlap.
const maxImageSize = TapeBase - CodeBase

// openLoop records a `[` whose forward jump is still awaiting its
// matching `]`.
type openLoop struct {
	disp int           // code offset of the jz rel32 slot
	top  int           // code offset of the cmp test heading the loop
	pos  core.Position // source location of the `[`
}

// X86_64Generator produces x86_64 machine code from a token stream.
type X86_64Generator struct {
	toks  []core.Token
	code  []byte
	loops []openLoop
}

// NewX86_64Generator creates a new x86_64 machine code generator.
func NewX86_64Generator(toks []core.Token) *X86_64Generator {
	return &X86_64Generator{
		toks: toks,
		code: make([]byte, 0, 4096),
	}
}

// Generate produces raw x86_64 machine code: the tape-pointer prologue,
// one instruction sequence per command token, and the exit epilogue.
func (g *X86_64Generator) Generate() ([]byte, error) {
	g.emitPrologue()

	for _, tok := range g.toks {
		switch tok.Kind {
		case core.TokShiftRight:
			g.emitBytes(amd64.IncR12()) // incq %r12
		case core.TokShiftLeft:
			g.emitBytes(amd64.DecR12()) // decq %r12
		case core.TokAdd:
			g.emitBytes(amd64.IncbMem()) // incb (%r12)
		case core.TokSub:
			g.emitBytes(amd64.DecbMem()) // decb (%r12)
		case core.TokOut:
			g.emitWrite()
		case core.TokIn:
			g.emitRead()
		case core.TokLBracket:
			if err := g.emitLoopStart(tok); err != nil {
				return nil, err
			}
		case core.TokRBracket:
			if err := g.emitLoopEnd(tok); err != nil {
				return nil, err
			}
		}
	}

	if len(g.loops) > 0 {
		return nil, &core.Error{Msg: "unclosed loops detected", Pos: g.loops[0].pos}
	}

	g.emitEpilogue()
	return g.code, nil
}

// GenerateELF produces a complete ELF64 executable image.
func (g *X86_64Generator) GenerateELF() ([]byte, error) {
	code, err := g.Generate()
	if err != nil {
		return nil, err
	}

	if headersSize+len(code) >= maxImageSize {
		return nil, fmt.Errorf("program too large: %d byte image would overlap the tape mapping at %#x",
			headersSize+len(code), TapeBase)
	}

	builder := elf.NewBuilder()
	builder.SetEntry(CodeBase + headersSize)
	builder.AddLoadSegment(code, CodeBase, elf.PF_R|elf.PF_X)
	builder.AddBSSSegment(TapeBase, core.TapeSize, elf.PF_R|elf.PF_W)

	return builder.Build(), nil
}

// emitBytes appends a byte slice to the code buffer.
func (g *X86_64Generator) emitBytes(b []byte) {
	g.code = append(g.code, b...)
}

// patch32 overwrites 4 bytes at off with a little-endian value. Offsets
// come from the generator's own bookkeeping; one outside the buffer is a
// compiler bug.
func (g *X86_64Generator) patch32(off int, v uint32) {
	if off < 0 || off+4 > len(g.code) {
		panic(fmt.Sprintf("patch32 out of bounds: offset %d, code length %d", off, len(g.code)))
	}
	binary.LittleEndian.PutUint32(g.code[off:], v)
}

// emitPrologue loads the tape base into R12. The address is a compile-time
// constant, baked into the immediate here.
func (g *X86_64Generator) emitPrologue() {
	g.emitBytes(amd64.MovabsR12(TapeBase)) // movabs $tape, %r12
}

// emitEpilogue outputs the exit(0) syscall (number 60).
func (g *X86_64Generator) emitEpilogue() {
	g.emitBytes(amd64.MovqImm32RAX(sysExit)) // movq $60, %rax
	g.emitBytes(amd64.XorRDIRDI())           // xorq %rdi, %rdi
	g.emitBytes(amd64.Syscall())             // syscall
}

// emitWrite outputs write(1, r12, 1).
func (g *X86_64Generator) emitWrite() {
	g.emitBytes(amd64.MovqImm32RAX(sysWrite)) // movq $1, %rax
	g.emitBytes(amd64.MovqImm32RDI(1))        // movq $1, %rdi
	g.emitBytes(amd64.MovR12RSI())            // movq %r12, %rsi
	g.emitBytes(amd64.MovqImm32RDX(1))        // movq $1, %rdx
	g.emitBytes(amd64.Syscall())              // syscall
}

// emitRead outputs read(0, r12, 1). A zero-length read leaves the cell
// unchanged.
func (g *X86_64Generator) emitRead() {
	g.emitBytes(amd64.XorRAXRAX())     // xorq %rax, %rax - syscall 0 (read)
	g.emitBytes(amd64.XorRDIRDI())     // xorq %rdi, %rdi
	g.emitBytes(amd64.MovR12RSI())     // movq %r12, %rsi
	g.emitBytes(amd64.MovqImm32RDX(1)) // movq $1, %rdx
	g.emitBytes(amd64.Syscall())       // syscall
}

// emitLoopStart outputs the loop-head test and a forward jz with a
// placeholder displacement, to be patched at the matching `]`. The offset
// of the test is recorded so the back jump can re-run it.
func (g *X86_64Generator) emitLoopStart(tok core.Token) error {
	if len(g.loops) >= MaxLoopDepth {
		return &core.Error{Msg: "too many nested loops", Pos: tok.Pos}
	}

	top := len(g.code)
	g.emitBytes(amd64.CmpbMemZero()) // cmpb $0, (%r12)
	g.emitBytes(amd64.JzRel32(0))    // jz <end of loop>, patched later

	g.loops = append(g.loops, openLoop{
		disp: len(g.code) - 4,
		top:  top,
		pos:  tok.Pos,
	})
	return nil
}

// emitLoopEnd outputs the loop-tail test and the backward jnz, then
// resolves both displacements: the `[`'s jz lands on the instruction
// after this jnz, and the jnz lands on the test at the top of the loop.
func (g *X86_64Generator) emitLoopEnd(tok core.Token) error {
	if len(g.loops) == 0 {
		return &core.Error{Msg: "loop end without matching start", Pos: tok.Pos}
	}
	open := g.loops[len(g.loops)-1]
	g.loops = g.loops[:len(g.loops)-1]

	g.emitBytes(amd64.CmpbMemZero()) // cmpb $0, (%r12)
	g.emitBytes(amd64.JnzRel32(0))   // jnz <top of loop>, patched below

	disp := len(g.code) - 4
	end := len(g.code)

	// rel32 is relative to the byte after the displacement slot
	g.patch32(open.disp, uint32(int32(end-(open.disp+4))))
	g.patch32(disp, uint32(int32(open.top-(disp+4))))
	return nil
}
