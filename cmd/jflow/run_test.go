package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/jflow/analysis"
	"github.com/chazu/jflow/classfile"
	"github.com/chazu/jflow/manifest"
	"github.com/chazu/jflow/pkg/bytecode"
)

// writeClass writes a class with a working method and, when broken is set,
// one whose code runs off its end.
func writeClass(t *testing.T, dir string, broken bool) string {
	t.Helper()
	a := bytecode.NewAssembler()
	a.Emit(bytecode.OpIload0)
	a.Emit(bytecode.OpIreturn)
	code, err := a.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	b := classfile.NewBuilder("demo/Id", "java/lang/Object")
	b.AddMethod(classfile.MethodSpec{
		AccessFlags: bytecode.AccStatic, Name: "id", Descriptor: "(I)I",
		MaxStack: 1, MaxLocals: 1, Code: code,
	})
	if broken {
		b.AddMethod(classfile.MethodSpec{
			AccessFlags: bytecode.AccStatic, Name: "bad", Descriptor: "()V",
			MaxStack: 1, Code: []byte{byte(bytecode.OpNop)},
		})
	}

	path := filepath.Join(dir, "Id.class")
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeClass(t, dir, false)
	out := filepath.Join(dir, "out.cbor")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-C", dir, "-d", "-o", out, path}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("run = %d, stderr:\n%s", code, stderr.String())
	}
	for _, want := range []string{"// class demo/Id", "IRETURN", "class demo/Id (run", "id(I)I: 2 instructions, 1 blocks"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, stdout.String())
		}
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	reports, err := analysis.ReadReports(f)
	if err != nil {
		t.Fatalf("ReadReports: %v", err)
	}
	if len(reports) != 1 || reports[0].Class != "demo/Id" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestRunManifestProject(t *testing.T) {
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes")
	if err := os.MkdirAll(classes, 0755); err != nil {
		t.Fatal(err)
	}
	writeClass(t, classes, true)
	manifest := "[source]\ndirs = [\"classes\"]\n\n[cache]\nenabled = true\n"
	if err := os.WriteFile(filepath.Join(dir, "jflow.toml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-C", dir}, &stdout, &stderr)
	if code != exitFailed {
		t.Fatalf("run = %d, want %d; stderr:\n%s", code, exitFailed, stderr.String())
	}
	if !strings.Contains(stdout.String(), "bad()V: malformed error") {
		t.Errorf("output missing failure:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dir, ".jflow", "cache.db")); err != nil {
		t.Errorf("cache not created: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "Bad.class")
	if err := os.WriteFile(garbage, []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"-h"}, exitOK},
		{"bad flag", []string{"-nope"}, exitUsage},
		{"missing file", []string{"-C", dir, filepath.Join(dir, "Missing.class")}, exitError},
		{"not a class", []string{"-C", dir, garbage}, exitError},
		{"no classes", []string{"-C", dir}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("run = %d, want %d; stderr:\n%s", got, tt.want, stderr.String())
			}
		})
	}
}

func TestVerbosityFromManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jflow.toml"), []byte("[analysis]\nverbosity = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"manifest", []string{"-C", dir}, 3},
		{"flag wins", []string{"-C", dir, "-v", "1"}, 1},
		{"flag wins at zero", []string{"-C", dir, "-v", "0"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			o, _, err := parseFlags(tt.args, &stderr)
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}
			m, err := manifest.FindAndLoad(o.dir)
			if err != nil || m == nil {
				t.Fatalf("FindAndLoad = %v, %v", m, err)
			}
			applyOverrides(m, o)
			if m.Analysis.Verbosity != tt.want {
				t.Errorf("Verbosity = %d, want %d", m.Analysis.Verbosity, tt.want)
			}
		})
	}

	path := writeClass(t, dir, false)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-C", dir, path}, &stdout, &stderr); code != exitOK {
		t.Errorf("run = %d, stderr:\n%s", code, stderr.String())
	}
}
