// Package manifest handles bcasm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/bcasm/pkg/isa"
	"github.com/chazu/bcasm/pkg/isa/tables"
)

// FileName is the name of the project configuration file.
const FileName = "bcasm.toml"

// Manifest represents a bcasm.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	ISA     ISAConfig `toml:"isa"`
	Log     LogConfig `toml:"log"`

	// Dir is the directory containing the bcasm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ISAConfig selects instruction-set descriptors.
type ISAConfig struct {
	// Default names the descriptor used when a command is given none.
	Default string `toml:"default"`
	// Descriptors lists extra descriptor files, relative to Dir.
	Descriptors []string `toml:"descriptors"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a bcasm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a bcasm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// DescriptorPaths returns absolute paths for the configured descriptor files.
func (m *Manifest) DescriptorPaths() []string {
	var paths []string
	for _, p := range m.ISA.Descriptors {
		if filepath.IsAbs(p) {
			paths = append(paths, p)
			continue
		}
		paths = append(paths, filepath.Join(m.Dir, p))
	}
	return paths
}

// LoadDescriptors loads every configured descriptor file, keyed by the
// descriptor's name.
func (m *Manifest) LoadDescriptors() (map[string]*isa.Descriptor, error) {
	out := make(map[string]*isa.Descriptor)
	for _, path := range m.DescriptorPaths() {
		d, err := isa.Load(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := out[d.Name()]; ok && !prev.Compatible(d) {
			return nil, fmt.Errorf("%s: descriptor %s is defined twice with different contents", path, d.Name())
		}
		out[d.Name()] = d
	}
	return out, nil
}

// ResolveISA finds a descriptor by name. An empty name selects the
// manifest's default. Names are looked up in the manifest's descriptor
// files, then in the shipped tables; a name ending in .toml is loaded as a
// file. A nil manifest only consults the tables and file paths.
func (m *Manifest) ResolveISA(name string) (*isa.Descriptor, error) {
	if name == "" && m != nil {
		name = m.ISA.Default
	}
	if name == "" {
		return nil, fmt.Errorf("no instruction set selected (known: %s)", strings.Join(tables.Names(), ", "))
	}

	if m != nil && len(m.ISA.Descriptors) > 0 {
		descs, err := m.LoadDescriptors()
		if err != nil {
			return nil, err
		}
		if d, ok := descs[name]; ok {
			return d, nil
		}
	}
	if strings.HasSuffix(name, ".toml") {
		return isa.Load(name)
	}
	return tables.Lookup(name)
}
