package main

import (
	"fmt"
	"os"

	"github.com/gaidardzhiev/bfelfx64/internal/codegen/linux"
	"github.com/gaidardzhiev/bfelfx64/internal/core"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <input.bf> [-o <output>]\n", os.Args[0])
	os.Exit(1)
}

func readSource(file string) []byte {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return src
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	in := os.Args[1]
	out := "a.out"

	// The input path precedes the flag, so arguments are scanned by hand.
	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "-o" && i+1 < len(os.Args) {
			i++
			out = os.Args[i]
		} else {
			fmt.Fprintf(os.Stderr, "unknown argument: %s\n", os.Args[i])
			os.Exit(1)
		}
	}

	src := readSource(in)
	toks := core.Tokenize(src)

	gen := linux.NewX86_64Generator(toks)
	image, err := gen.GenerateELF()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Write executable file with executable permissions
	if err := os.WriteFile(out, image, 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "wrote ELF64 x86_64 Brainf*ck program to %s\n", out)
}
