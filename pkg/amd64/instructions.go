package amd64

// This file contains x86_64 instruction encoders.
// Each function returns the machine code bytes for a specific instruction.
//
// For details on x86-64 instruction encoding (REX prefixes, ModRM, SIB bytes),
// see: https://wiki.osdev.org/X86-64_Instruction_Encoding
//
// The code model here keeps the data pointer in R12 holding an absolute
// address, so memory operands are plain (%r12). R12's low register bits
// collide with the SIB-escape value in ModRM.rm, which is why every
// (%r12) operand below carries the 24 SIB byte.

// MovabsR12 encodes: movabs $imm64, %r12 (49 BC <imm64>)
// Loads a 64-bit immediate into R12.
func MovabsR12(imm64 uint64) []byte {
	// REX.WB (49) = REX.W (64-bit) + REX.B (R12)
	// B8+r = mov imm64 to register, with R12: BC
	buf := make([]byte, 10)
	buf[0] = 0x49 // REX.WB
	buf[1] = 0xBC // mov r12, imm64
	writeLE64(buf[2:], imm64)
	return buf
}

// IncR12 encodes: incq %r12 (49 FF C4)
func IncR12() []byte {
	// REX.WB (49) = REX.W + REX.B (R12)
	// FF /0 = inc r/m64
	// ModRM: 11 (reg) 000 (/0) 100 (r12) = C4
	return []byte{0x49, 0xFF, 0xC4}
}

// DecR12 encodes: decq %r12 (49 FF CC)
func DecR12() []byte {
	// REX.WB (49) = REX.W + REX.B (R12)
	// FF /1 = dec r/m64
	// ModRM: 11 (reg) 001 (/1) 100 (r12) = CC
	return []byte{0x49, 0xFF, 0xCC}
}

// IncbMem encodes: incb (%r12) (41 FE 04 24)
// Increments the byte at (%r12).
func IncbMem() []byte {
	// 41 = REX.B (r12 in SIB.base)
	// FE /0 = inc r/m8
	// ModRM: 00 (no disp) 000 (/0) 100 (SIB) = 04
	// SIB: 00 (scale=1) 100 (no index) 100 (r12 base) = 24
	return []byte{0x41, 0xFE, 0x04, 0x24}
}

// DecbMem encodes: decb (%r12) (41 FE 0C 24)
// Decrements the byte at (%r12).
func DecbMem() []byte {
	// 41 = REX.B
	// FE /1 = dec r/m8
	// ModRM: 00 (no disp) 001 (/1) 100 (SIB) = 0C
	// SIB: 00 (scale=1) 100 (no index) 100 (r12 base) = 24
	return []byte{0x41, 0xFE, 0x0C, 0x24}
}

// CmpbMemZero encodes: cmpb $0, (%r12) (41 80 3C 24 00)
// Compares the byte at (%r12) against zero, setting flags.
func CmpbMemZero() []byte {
	// 41 = REX.B
	// 80 /7 ib = cmp r/m8, imm8
	// ModRM: 00 (no disp) 111 (/7) 100 (SIB) = 3C
	// SIB: 00 (scale=1) 100 (no index) 100 (r12 base) = 24
	// imm8 = 00
	return []byte{0x41, 0x80, 0x3C, 0x24, 0x00}
}

// MovR12RSI encodes: movq %r12, %rsi (4C 89 E6)
// Copies R12 into RSI.
func MovR12RSI() []byte {
	// REX.WR (4C) = REX.W + REX.R (r12 in ModRM.reg)
	// 89 /r = mov r/m64, r64
	// ModRM: 11 (reg-reg) 100 (r12) 110 (rsi) = E6
	return []byte{0x4C, 0x89, 0xE6}
}

// JzRel32 encodes: jz rel32 (0F 84 <rel32>)
// Jump if zero flag is set. rel32 is relative to end of instruction.
func JzRel32(rel32 int32) []byte {
	buf := make([]byte, 6)
	buf[0] = 0x0F
	buf[1] = 0x84
	writeLE32(buf[2:], uint32(rel32))
	return buf
}

// JnzRel32 encodes: jnz rel32 (0F 85 <rel32>)
// Jump if zero flag is not set. rel32 is relative to end of instruction.
func JnzRel32(rel32 int32) []byte {
	buf := make([]byte, 6)
	buf[0] = 0x0F
	buf[1] = 0x85
	writeLE32(buf[2:], uint32(rel32))
	return buf
}

// Syscall encodes: syscall (0F 05)
func Syscall() []byte {
	return []byte{0x0F, 0x05}
}

// XorRAXRAX encodes: xorq %rax, %rax (48 31 C0)
// Zeros RAX.
func XorRAXRAX() []byte {
	return []byte{0x48, 0x31, 0xC0}
}

// XorRDIRDI encodes: xorq %rdi, %rdi (48 31 FF)
// Zeros RDI.
func XorRDIRDI() []byte {
	return []byte{0x48, 0x31, 0xFF}
}

// MovqImm32RAX encodes: movq $imm32, %rax (48 C7 C0 <imm32>)
// Load 32-bit sign-extended immediate into RAX.
func MovqImm32RAX(imm32 int32) []byte {
	buf := make([]byte, 7)
	buf[0] = 0x48 // REX.W
	buf[1] = 0xC7 // mov r/m64, imm32
	buf[2] = 0xC0 // ModRM: 11 000 000 (rax)
	writeLE32(buf[3:], uint32(imm32))
	return buf
}

// MovqImm32RDI encodes: movq $imm32, %rdi (48 C7 C7 <imm32>)
// Load 32-bit sign-extended immediate into RDI.
func MovqImm32RDI(imm32 int32) []byte {
	buf := make([]byte, 7)
	buf[0] = 0x48 // REX.W
	buf[1] = 0xC7 // mov r/m64, imm32
	buf[2] = 0xC7 // ModRM: 11 000 111 (rdi)
	writeLE32(buf[3:], uint32(imm32))
	return buf
}

// MovqImm32RDX encodes: movq $imm32, %rdx (48 C7 C2 <imm32>)
// Load 32-bit sign-extended immediate into RDX.
func MovqImm32RDX(imm32 int32) []byte {
	buf := make([]byte, 7)
	buf[0] = 0x48 // REX.W
	buf[1] = 0xC7 // mov r/m64, imm32
	buf[2] = 0xC2 // ModRM: 11 000 010 (rdx)
	writeLE32(buf[3:], uint32(imm32))
	return buf
}
