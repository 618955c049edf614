package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
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
name = "test-app"
version = "0.1.0"

[source]
dirs = ["target/classes", "lib"]
exclude = ["*Test.class"]

[analysis]
workers = 3
eager-stack = true
skip-unsupported = true
verbosity = 2

[cache]
enabled = true
path = "/tmp/jflow.db"

[server]
address = ":9000"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Analysis.Workers != 3 || !m.Analysis.EagerStack || !m.Analysis.SkipUnsupported || m.Analysis.Verbosity != 2 {
		t.Errorf("analysis = %+v", m.Analysis)
	}
	if !m.Cache.Enabled || m.CachePath() != "/tmp/jflow.db" {
		t.Errorf("cache = %+v, path %q", m.Cache, m.CachePath())
	}
	if m.Server.Address != ":9000" {
		t.Errorf("server address = %q, want :9000", m.Server.Address)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "build/classes" {
		t.Errorf("default source dirs = %v, want [build/classes]", m.Source.Dirs)
	}
	if m.Analysis.Workers < 1 {
		t.Errorf("default workers = %d, want at least 1", m.Analysis.Workers)
	}
	if m.Cache.Enabled {
		t.Error("cache should be disabled by default")
	}
	if want := filepath.Join(m.Dir, ".jflow", "cache.db"); m.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", m.CachePath(), want)
	}
	if m.Server.Address != "localhost:8765" {
		t.Errorf("default address = %q", m.Server.Address)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[analysis]
wokers = 4
`)
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "analysis.wokers") {
		t.Errorf("Load error = %v, want unknown key analysis.wokers", err)
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname = 1")
	if _, err := Load(dir); err == nil {
		t.Error("Load of invalid TOML succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

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
		t.Error("expected nil manifest when no jflow.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"classes", "/abs/lib"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/classes" {
		t.Errorf("paths[0] = %q, want /app/classes", paths[0])
	}
	if paths[1] != "/abs/lib" {
		t.Errorf("paths[1] = %q, want /abs/lib", paths[1])
	}
}

func TestClassFiles(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "classes", "demo")
	if err := os.MkdirAll(pkg, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"B.class", "A.class", "ATest.class", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(pkg, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	m := Default(dir)
	m.Source.Dirs = []string{"classes", "missing"}
	m.Source.Exclude = []string{"*Test.class"}

	files, err := m.ClassFiles()
	if err != nil {
		t.Fatalf("ClassFiles: %v", err)
	}
	want := []string{filepath.Join(pkg, "A.class"), filepath.Join(pkg, "B.class")}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("ClassFiles() = %v, want %v", files, want)
	}
}
