package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joomcode/errorx"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[builtins.instructions]
halt = 0

[builtins.functions]
print = 1

[vm]
step-limit = 10000
trace = true

[cache]
path = ".subpy/cache.db"

[server]
addr = ":9000"
workers = 8
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.VM.StepLimit != 10000 || !m.VM.Trace {
		t.Errorf("vm = %+v, want step-limit 10000 with trace", m.VM)
	}
	if m.Server.Addr != ":9000" || m.Server.Workers != 8 {
		t.Errorf("server = %+v", m.Server)
	}
	if want := filepath.Join(m.Dir, ".subpy", "cache.db"); m.CachePath() != want {
		t.Errorf("CachePath = %q, want %q", m.CachePath(), want)
	}

	cfg := m.CompilerConfig()
	if diff := cmp.Diff(map[string]int{"halt": 0}, cfg.BuiltinInstructions); diff != "" {
		t.Errorf("instructions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"print": 1}, cfg.BuiltinFunctions); diff != "" {
		t.Errorf("functions (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nname = \"bare\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if diff := cmp.Diff(d.Builtins, m.Builtins); diff != "" {
		t.Errorf("builtins (-want +got):\n%s", diff)
	}
	if m.Server != d.Server {
		t.Errorf("server = %+v, want %+v", m.Server, d.Server)
	}
	if m.CachePath() != "" {
		t.Errorf("cache enabled by default: %q", m.CachePath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown builtin", "[builtins.functions]\nlaunch = 1\n"},
		{"wrong arity", "[builtins.functions]\nprint = 2\n"},
		{"listed twice", "[builtins.instructions]\nprint = 1\n[builtins.functions]\nprint = 1\n"},
		{"negative step limit", "[vm]\nstep-limit = -1\n"},
		{"negative workers", "[server]\nworkers = -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if !errorx.IsOfType(err, InvalidManifestError) {
				t.Fatalf("err = %v, want InvalidManifestError", err)
			}
		})
	}
}

func TestLoadBadTOML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"outer\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Project.Name != "outer" {
		t.Fatalf("FindAndLoad = %+v, want the outer manifest", m)
	}
}
