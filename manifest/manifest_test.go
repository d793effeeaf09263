package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const customISA = `
name = "custom"
have_argument = 90
extended_arg = 144
jabs = ["JUMP_ABSOLUTE"]
unconditional = ["JUMP_ABSOLUTE"]

[opcodes]
NOP = 9
RETURN_VALUE = 83
JUMP_ABSOLUTE = 113
EXTENDED_ARG = 144

[effects]
NOP = 0
RETURN_VALUE = -1
JUMP_ABSOLUTE = 0
EXTENDED_ARG = 0
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a bcasm.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "patcher"
version = "0.1.0"

[isa]
default = "cpython-2.7"
descriptors = ["isa/custom.toml"]

[log]
verbosity = 2
file = "bcasm.log"
`
	writeFile(t, filepath.Join(dir, "bcasm.toml"), tomlContent)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "patcher" {
		t.Errorf("project name = %q, want patcher", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.ISA.Default != "cpython-2.7" {
		t.Errorf("isa default = %q, want cpython-2.7", m.ISA.Default)
	}
	if len(m.ISA.Descriptors) != 1 {
		t.Errorf("isa descriptors count = %d, want 1", len(m.ISA.Descriptors))
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.Log.File != "bcasm.log" {
		t.Errorf("log file = %q, want bcasm.log", m.Log.File)
	}
	if !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want an absolute path", m.Dir)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bcasm.toml"), "[project]\nname = \"minimal\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// No instruction set is chosen unless the project names one.
	if m.ISA.Default != "" {
		t.Errorf("default isa = %q, want empty", m.ISA.Default)
	}
	if m.Log.Verbosity != 0 || m.Log.File != "" {
		t.Errorf("log = %+v, want zero value", m.Log)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("missing file: error = %v, want cannot read", err)
	}

	writeFile(t, filepath.Join(dir, "bcasm.toml"), "[project\n")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("bad toml: error = %v, want parse error", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "bcasm.toml"), "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no bcasm.toml exists")
	}
}

func TestDescriptorPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		ISA: ISAConfig{
			Descriptors: []string{"isa/a.toml", "/opt/b.toml"},
		},
	}

	paths := m.DescriptorPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/isa/a.toml" {
		t.Errorf("paths[0] = %q, want /app/isa/a.toml", paths[0])
	}
	if paths[1] != "/opt/b.toml" {
		t.Errorf("paths[1] = %q, want /opt/b.toml", paths[1])
	}
}

func TestLoadDescriptors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "isa", "custom.toml"), customISA)
	m := &Manifest{Dir: dir, ISA: ISAConfig{Descriptors: []string{"isa/custom.toml"}}}

	descs, err := m.LoadDescriptors()
	if err != nil {
		t.Fatalf("LoadDescriptors failed: %v", err)
	}
	d, ok := descs["custom"]
	if !ok {
		t.Fatalf("descriptors = %v, want custom", descs)
	}
	if len(d.Mnemonics()) != 4 {
		t.Errorf("mnemonic count = %d, want 4", len(d.Mnemonics()))
	}
}

func TestLoadDescriptorsConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.toml"), customISA)
	writeFile(t, filepath.Join(dir, "b.toml"), strings.Replace(customISA, "NOP = 0", "NOP = 1", 1))
	m := &Manifest{Dir: dir, ISA: ISAConfig{Descriptors: []string{"a.toml", "b.toml"}}}

	if _, err := m.LoadDescriptors(); err == nil || !strings.Contains(err.Error(), "defined twice") {
		t.Errorf("error = %v, want defined twice", err)
	}
}

func TestResolveISA(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "custom.toml"), customISA)
	m := &Manifest{
		Dir: dir,
		ISA: ISAConfig{Default: "custom", Descriptors: []string{"custom.toml"}},
	}

	tests := []struct {
		name string
		m    *Manifest
		isa  string
		want string
	}{
		{"manifest default", m, "", "custom"},
		{"manifest descriptor", m, "custom", "custom"},
		{"shipped table", m, "cpython-3.4", "cpython-3.4"},
		{"nil manifest", nil, "cpython-2.7", "cpython-2.7"},
		{"file path", nil, filepath.Join(dir, "custom.toml"), "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.m.ResolveISA(tt.isa)
			if err != nil {
				t.Fatalf("ResolveISA(%q) failed: %v", tt.isa, err)
			}
			if d.Name() != tt.want {
				t.Errorf("ResolveISA(%q) = %s, want %s", tt.isa, d.Name(), tt.want)
			}
		})
	}
}

func TestResolveISAErrors(t *testing.T) {
	var m *Manifest
	if _, err := m.ResolveISA(""); err == nil || !strings.Contains(err.Error(), "no instruction set selected") {
		t.Errorf("empty name: error = %v", err)
	}
	if _, err := m.ResolveISA("cpython-9.9"); err == nil {
		t.Error("unknown name: ResolveISA succeeded, want error")
	}
}
