package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/bcasm/manifest"
	"github.com/chazu/bcasm/pkg/bytecode"
	"github.com/chazu/bcasm/pkg/codeobj"
	"github.com/chazu/bcasm/pkg/isa"
	"github.com/chazu/bcasm/pkg/isa/tables"
)

// ---------------------------------------------------------------------------
// bcasm dis
// ---------------------------------------------------------------------------

func handleDisCommand(m *manifest.Manifest, args []string) error {
	fs := flag.NewFlagSet("dis", flag.ExitOnError)
	isaName := fs.String("isa", "", "Instruction set name or descriptor file")
	asCodeObj := fs.Bool("codeobj", false, "Input is a CBOR code object")
	out := fs.String("o", "", "Write the listing to this file instead of stdout")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcasm dis [options] <file>\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", fs.Arg(0), err)
	}

	var desc *isa.Descriptor
	var seq []bytecode.Element
	if *asCodeObj {
		c, err := loadCodeObject(m, data, *isaName)
		if err != nil {
			return err
		}
		desc = c.Descriptor()
		if seq, err = c.Disassemble(); err != nil {
			return err
		}
	} else {
		if desc, err = m.ResolveISA(*isaName); err != nil {
			return err
		}
		if seq, err = bytecode.Disassemble(data, desc); err != nil {
			return err
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "; isa %s\n", desc.Name())
	if depth, err := bytecode.MaxStackDepth(seq, desc); err != nil {
		fmt.Fprintf(&sb, "; max stack depth unknown: %v\n", err)
	} else {
		fmt.Fprintf(&sb, "; max stack depth %d\n", depth)
	}
	sb.WriteString(bytecode.Format(seq))
	return writeOutput(*out, []byte(sb.String()))
}

// ---------------------------------------------------------------------------
// bcasm asm
// ---------------------------------------------------------------------------

func handleAsmCommand(m *manifest.Manifest, args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	isaName := fs.String("isa", "", "Instruction set name or descriptor file")
	asCodeObj := fs.Bool("codeobj", false, "Write a CBOR code object instead of raw bytecode")
	name := fs.String("name", "", "Code object name (defaults to the input file name)")
	out := fs.String("o", "", "Output file (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcasm asm [options] -o <output> <listing>\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		fs.Usage()
		os.Exit(2)
	}

	seq, err := readListing(fs.Arg(0))
	if err != nil {
		return err
	}
	desc, err := m.ResolveISA(*isaName)
	if err != nil {
		return err
	}

	if !*asCodeObj {
		code, err := bytecode.Assemble(seq, desc)
		if err != nil {
			return err
		}
		return writeOutput(*out, code)
	}

	unitName := *name
	if unitName == "" {
		unitName = strings.TrimSuffix(filepath.Base(fs.Arg(0)), filepath.Ext(fs.Arg(0)))
	}
	c := codeobj.New(desc).With(codeobj.WithName(unitName), codeobj.WithFilename(fs.Arg(0)))
	if err := c.Assemble(seq, desc); err != nil {
		return err
	}
	data, err := codeobj.Marshal(c)
	if err != nil {
		return err
	}
	return writeOutput(*out, data)
}

// ---------------------------------------------------------------------------
// bcasm depth
// ---------------------------------------------------------------------------

func handleDepthCommand(m *manifest.Manifest, args []string) error {
	fs := flag.NewFlagSet("depth", flag.ExitOnError)
	isaName := fs.String("isa", "", "Instruction set name or descriptor file")
	blocks := fs.Bool("blocks", false, "Also list the basic blocks")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcasm depth [options] <listing>\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	seq, err := readListing(fs.Arg(0))
	if err != nil {
		return err
	}
	desc, err := m.ResolveISA(*isaName)
	if err != nil {
		return err
	}

	b := bytecode.Partition(seq)
	depth, err := b.MaxStackDepth(desc)
	if err != nil {
		return err
	}
	if *blocks {
		for _, blk := range b.All() {
			fmt.Println(blk)
		}
	}
	fmt.Println(depth)
	return nil
}

// ---------------------------------------------------------------------------
// bcasm rebuild
// ---------------------------------------------------------------------------

func handleRebuildCommand(m *manifest.Manifest, args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	isaName := fs.String("isa", "", "Instruction set name or descriptor file (defaults to the one recorded in the code object)")
	listing := fs.String("listing", "", "Replace the code with this listing")
	out := fs.String("o", "", "Output file (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcasm rebuild [options] -o <output> <codeobj>\n\n")
		fmt.Fprintf(os.Stderr, "Reassembles the code object, or assembles -listing into it, and\n")
		fmt.Fprintf(os.Stderr, "recomputes its stack size. All other fields are kept.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		fs.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", fs.Arg(0), err)
	}
	c, err := loadCodeObject(m, data, *isaName)
	if err != nil {
		return err
	}
	var seq []bytecode.Element
	if *listing != "" {
		seq, err = readListing(*listing)
	} else {
		seq, err = c.Disassemble()
	}
	if err != nil {
		return err
	}
	if err := c.Assemble(seq, nil); err != nil {
		return err
	}
	data, err = codeobj.Marshal(c)
	if err != nil {
		return err
	}
	return writeOutput(*out, data)
}

// ---------------------------------------------------------------------------
// bcasm isa
// ---------------------------------------------------------------------------

func handleISACommand(m *manifest.Manifest, args []string) error {
	fs := flag.NewFlagSet("isa", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcasm isa [name]\n\n")
		fmt.Fprintf(os.Stderr, "Without a name, lists the shipped instruction sets.\n")
	}
	fs.Parse(args)

	if fs.NArg() == 0 {
		for _, name := range tables.Names() {
			fmt.Println(name)
		}
		return nil
	}

	desc, err := m.ResolveISA(fs.Arg(0))
	if err != nil {
		return err
	}
	fp := desc.Fingerprint()
	fmt.Printf("name:          %s\n", desc.Name())
	fmt.Printf("fingerprint:   %s\n", hex.EncodeToString(fp[:]))
	fmt.Printf("have_argument: %d\n", desc.HaveArgument())
	fmt.Printf("extended_arg:  %d\n", desc.ExtendedArg())
	fmt.Printf("traits:        %d\n", desc.Traits())
	fmt.Printf("mnemonics:     %d\n", len(desc.Mnemonics()))
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// loadCodeObject decodes a code object and attaches a descriptor to it.
// An explicit isaName is resolved as given and must match the recorded
// fingerprint; otherwise the descriptor recorded in the object is looked up
// by name.
func loadCodeObject(m *manifest.Manifest, data []byte, isaName string) (*codeobj.CodeObject, error) {
	c, err := codeobj.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	name := isaName
	if name == "" {
		name = c.ISA
	}
	desc, err := m.ResolveISA(name)
	if err != nil {
		return nil, err
	}
	if err := c.Attach(desc); err != nil {
		return nil, err
	}
	return c, nil
}

func readListing(path string) ([]bytecode.Element, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	seq, err := bytecode.ParseListing(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
