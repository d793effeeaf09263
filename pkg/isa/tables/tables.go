// Package tables ships descriptors for the bytecode formats the tools know
// out of the box. Nothing in the core packages consults this registry; it
// exists for callers that want a conventional choice at their own boundary.
package tables

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/bcasm/pkg/isa"
)

//go:embed *.toml
var files embed.FS

var registry = map[string]string{
	"cpython-2.7": "cpython27.toml",
	"cpython-3.4": "cpython34.toml",
}

var (
	mu     sync.Mutex
	loaded = make(map[string]*isa.Descriptor)
)

// Lookup returns the shipped descriptor with the given name.
func Lookup(name string) (*isa.Descriptor, error) {
	file, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("tables: no descriptor named %q (known: %v)", name, Names())
	}

	mu.Lock()
	defer mu.Unlock()
	if d, ok := loaded[name]; ok {
		return d, nil
	}
	data, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	d, err := isa.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("tables: %s: %w", file, err)
	}
	loaded[name] = d
	return d, nil
}

// Names lists the shipped descriptors in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
