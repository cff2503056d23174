package linux

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/gaidardzhiev/bfelfx64/internal/core"
)

var (
	// movabs $0x600000, %r12
	prologue = []byte{0x49, 0xBC, 0x00, 0x00, 0x60, 0x00, 0x00, 0x00, 0x00, 0x00}
	// movq $60, %rax; xorq %rdi, %rdi; syscall
	epilogue = []byte{0x48, 0xC7, 0xC0, 0x3C, 0x00, 0x00, 0x00, 0x48, 0x31, 0xFF, 0x0F, 0x05}
)

func mustGenerate(t *testing.T, src string) []byte {
	t.Helper()
	code, err := NewX86_64Generator(core.Tokenize([]byte(src))).Generate()
	if err != nil {
		t.Fatalf("Generate(%q): %v", src, err)
	}
	return code
}

func TestEmptyProgram(t *testing.T) {
	code := mustGenerate(t, "")

	want := append(append([]byte{}, prologue...), epilogue...)
	if !bytes.Equal(code, want) {
		t.Fatalf("empty program code:\ngot  % X\nwant % X", code, want)
	}
	if len(code) != 22 {
		t.Fatalf("code length %d, want 22", len(code))
	}
}

func TestEmptyProgramImage(t *testing.T) {
	img, err := NewX86_64Generator(core.Tokenize(nil)).GenerateELF()
	if err != nil {
		t.Fatal(err)
	}
	if len(img) != 198 {
		t.Fatalf("image size %d, want 198", len(img))
	}
	if !bytes.Equal(img[0:4], []byte{0x7F, 'E', 'L', 'F'}) {
		t.Fatalf("bad magic % X", img[0:4])
	}
	if entry := binary.LittleEndian.Uint64(img[0x18:]); entry != 0x4000B0 {
		t.Fatalf("e_entry %#x, want 0x4000B0", entry)
	}
	// The entry point is the first prologue byte.
	if !bytes.Equal(img[0xB0:0xB0+len(prologue)], prologue) {
		t.Fatalf("prologue not at entry offset: % X", img[0xB0:0xB0+len(prologue)])
	}
}

func TestCommentsDoNotChangeCode(t *testing.T) {
	plain := mustGenerate(t, "++[>.<-]")
	noisy := mustGenerate(t, "+ two pluses + [ > dot . shift < minus - ]\n")
	if !bytes.Equal(plain, noisy) {
		t.Error("comment bytes changed the emitted code")
	}
}

// Per-command emitted sizes, used to locate instruction boundaries.
const (
	sizeArith = 4  // incb/decb (%r12)
	sizeCmp   = 5  // cmpb $0, (%r12)
	sizeLoop  = 11 // cmp + jcc rel32
)

func TestLoopDisplacements(t *testing.T) {
	code := mustGenerate(t, "[+]")

	// Layout: prologue | cmp jz | incb | cmp jnz | epilogue
	top := len(prologue)
	fwdSlot := top + sizeCmp + 2
	backSlot := top + sizeLoop + sizeArith + sizeCmp + 2
	end := backSlot + 4

	fwd := int32(binary.LittleEndian.Uint32(code[fwdSlot:]))
	back := int32(binary.LittleEndian.Uint32(code[backSlot:]))

	// Forward jump lands on the instruction after the jnz.
	if target := fwdSlot + 4 + int(fwd); target != end {
		t.Errorf("jz lands at %d, want %d (disp %d)", target, end, fwd)
	}
	// Backward jump lands on the cmp at the top of the loop.
	if target := backSlot + 4 + int(back); target != top {
		t.Errorf("jnz lands at %d, want %d (disp %d)", target, top, back)
	}
	if fwd != 15 || back != -26 {
		t.Errorf("displacements %d/%d, want 15/-26", fwd, back)
	}
}

func TestNestedLoopDisplacements(t *testing.T) {
	code := mustGenerate(t, "[[]]")

	outerTop := len(prologue)
	innerTop := outerTop + sizeLoop
	innerFwdSlot := innerTop + sizeCmp + 2
	innerBackSlot := innerTop + sizeLoop + sizeCmp + 2
	innerEnd := innerBackSlot + 4
	outerFwdSlot := outerTop + sizeCmp + 2
	outerBackSlot := innerEnd + sizeCmp + 2
	outerEnd := outerBackSlot + 4

	checks := []struct {
		name   string
		slot   int
		target int
	}{
		{"inner jz", innerFwdSlot, innerEnd},
		{"inner jnz", innerBackSlot, innerTop},
		{"outer jz", outerFwdSlot, outerEnd},
		{"outer jnz", outerBackSlot, outerTop},
	}
	for _, c := range checks {
		disp := int32(binary.LittleEndian.Uint32(code[c.slot:]))
		if target := c.slot + 4 + int(disp); target != c.target {
			t.Errorf("%s lands at %d, want %d (disp %d)", c.name, target, c.target, disp)
		}
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"close without open", "]", "loop end without matching start"},
		{"unclosed", "[", "unclosed loops detected"},
		{"partially closed", "[[]", "unclosed loops detected"},
		{"too deep", strings.Repeat("[", 1025), "too many nested loops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewX86_64Generator(core.Tokenize([]byte(tt.src))).Generate()
			if err == nil {
				t.Fatalf("Generate(%q) succeeded, want error", tt.src)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestMaxLoopDepthAccepted(t *testing.T) {
	src := strings.Repeat("[", 1024) + strings.Repeat("]", 1024)
	if _, err := NewX86_64Generator(core.Tokenize([]byte(src))).Generate(); err != nil {
		t.Fatalf("depth 1024 rejected: %v", err)
	}
}

func TestUnclosedLoopReportsFirstBracket(t *testing.T) {
	_, err := NewX86_64Generator(core.Tokenize([]byte("+[+[]"))).Generate()
	cerr, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("got %T, want *core.Error", err)
	}
	if cerr.Pos.Offset != 1 {
		t.Errorf("reported offset %d, want 1 (the first unclosed '[')", cerr.Pos.Offset)
	}
}

func TestImageTooLarge(t *testing.T) {
	// Each '+' is 4 bytes of code; 600000 of them push the image past the
	// 2 MiB window between the text and tape mappings.
	src := strings.Repeat("+", 600000)
	_, err := NewX86_64Generator(core.Tokenize([]byte(src))).GenerateELF()
	if err == nil {
		t.Fatal("oversized image accepted")
	}
	if !strings.Contains(err.Error(), "program too large") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWriteSequence(t *testing.T) {
	code := mustGenerate(t, ".")

	want := []byte{
		0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00, // movq $1, %rax
		0x48, 0xC7, 0xC7, 0x01, 0x00, 0x00, 0x00, // movq $1, %rdi
		0x4C, 0x89, 0xE6, // movq %r12, %rsi
		0x48, 0xC7, 0xC2, 0x01, 0x00, 0x00, 0x00, // movq $1, %rdx
		0x0F, 0x05, // syscall
	}
	if got := code[len(prologue) : len(code)-len(epilogue)]; !bytes.Equal(got, want) {
		t.Errorf("write sequence:\ngot  % X\nwant % X", got, want)
	}
}

func TestReadSequence(t *testing.T) {
	code := mustGenerate(t, ",")

	want := []byte{
		0x48, 0x31, 0xC0, // xorq %rax, %rax
		0x48, 0x31, 0xFF, // xorq %rdi, %rdi
		0x4C, 0x89, 0xE6, // movq %r12, %rsi
		0x48, 0xC7, 0xC2, 0x01, 0x00, 0x00, 0x00, // movq $1, %rdx
		0x0F, 0x05, // syscall
	}
	if got := code[len(prologue) : len(code)-len(epilogue)]; !bytes.Equal(got, want) {
		t.Errorf("read sequence:\ngot  % X\nwant % X", got, want)
	}
}
