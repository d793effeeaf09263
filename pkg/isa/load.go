package isa

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Parse reads a descriptor file. The format is TOML:
//
//	name = "cpython-2.7"
//	have_argument = 90
//	extended_arg = 145
//	traits = 3
//	jrel = ["FOR_ITER", "JUMP_FORWARD"]
//	jabs = ["JUMP_ABSOLUTE"]
//	unconditional = ["JUMP_ABSOLUTE", "JUMP_FORWARD"]
//
//	[opcodes]
//	POP_TOP = 1
//
//	[effects]
//	POP_TOP = -1
//	CALL_FUNCTION = { lo = -1, hi = -2 }
func Parse(data []byte) (*Descriptor, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("isa: parse error: %w", err)
	}
	for _, key := range md.Undecoded() {
		// Stack effect tables are consumed by Formula.UnmarshalTOML.
		if len(key) > 0 && key[0] == "effects" {
			continue
		}
		return nil, fmt.Errorf("isa %s: unknown key %s", cfg.Name, key)
	}
	return New(cfg)
}

// Load reads and builds the descriptor file at path.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded descriptor %s from %s", d.Name(), path)
	return d, nil
}
