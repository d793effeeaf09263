// bcasm CLI - assemble, disassemble and analyze bytecode
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcasm/manifest"

	_ "github.com/tliron/commonlog/simple"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: bcasm <command> [options] [args...]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  dis      Disassemble raw bytecode or a code object into a listing\n")
	fmt.Fprintf(os.Stderr, "  asm      Assemble a listing into raw bytecode or a code object\n")
	fmt.Fprintf(os.Stderr, "  depth    Print the maximum stack depth of a listing\n")
	fmt.Fprintf(os.Stderr, "  rebuild  Reassemble a code object and recompute its stack size\n")
	fmt.Fprintf(os.Stderr, "  isa      List or describe instruction sets\n")
	fmt.Fprintf(os.Stderr, "\nRun 'bcasm <command> -h' for command options.\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  bcasm dis -isa cpython-3.4 func.bin\n")
	fmt.Fprintf(os.Stderr, "  bcasm asm -isa cpython-2.7 -o func.bin func.s\n")
	fmt.Fprintf(os.Stderr, "  bcasm rebuild -o fixed.cbor unit.cbor\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// A bcasm.toml in the working directory or above supplies defaults.
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	configureLogging(m)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "dis":
		err = handleDisCommand(m, args)
	case "asm":
		err = handleAsmCommand(m, args)
	case "depth":
		err = handleDepthCommand(m, args)
	case "rebuild":
		err = handleRebuildCommand(m, args)
	case "isa":
		err = handleISACommand(m, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(m *manifest.Manifest) {
	verbosity := 0
	var path *string
	if m != nil {
		verbosity = m.Log.Verbosity
		if m.Log.File != "" {
			path = &m.Log.File
		}
	}
	verbosity, err := envVerbosity(os.Getenv("BCASM_VERBOSITY"), verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	commonlog.Configure(verbosity, path)
}

// envVerbosity parses the BCASM_VERBOSITY value v. An empty or malformed
// value leaves fallback in place; the latter is also reported.
func envVerbosity(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("ignoring BCASM_VERBOSITY=%q: not an integer", v)
	}
	return n, nil
}
