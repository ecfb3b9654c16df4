package main

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/savefile"
	"github.com/wippyai/savefile/schema"
)

type point struct {
	X int32
	Y int32
}

type route struct {
	Name   string
	Points []point
	Note   *string
}

type routeV1 struct {
	Name   string
	Points []point
	Note   *string
	Speed  uint16 `savefile:",versions=1.."`
}

func saveFile(t *testing.T, name string, version uint32, value any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := savefile.SaveFile(path, version, value); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	path := saveFile(t, "route.bin", 3, route{Name: "r"})

	out, err := run(t, "inspect", path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"version: 3", "root:    aggregate route", "Points: [point {"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSchemaFormats(t *testing.T) {
	path := saveFile(t, "route.bin", 0, route{})

	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"route {", "Name: string"}},
		{"yaml", []string{"kind: aggregate", "name: Points", "primitive: i32"}},
		{"json", []string{`"kind": "aggregate"`, `"name": "Note"`, `"kind": "optional"`}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := run(t, "schema", path, "--format", tt.format)
			if err != nil {
				t.Fatalf("schema: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}

	if _, err := run(t, "schema", path, "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDiff(t *testing.T) {
	old := saveFile(t, "old.bin", 0, route{})
	same := saveFile(t, "same.bin", 0, route{Name: "other"})
	grown := saveFile(t, "grown.bin", 1, routeV1{})

	out, err := run(t, "diff", old, same)
	if err != nil {
		t.Fatalf("diff of equal schemas: %v", err)
	}
	if !strings.Contains(out, "compatible") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "diff", old, grown)
	if !stderrors.Is(err, errMismatch) {
		t.Fatalf("error = %v, want mismatch", err)
	}
	if !strings.Contains(out, "At location [.]") {
		t.Errorf("output = %q", out)
	}
}

func TestCompressedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := savefile.SaveCompressed(f, 2, route{Name: "z"}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := run(t, "inspect", path, "--compressed")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "version: 2") {
		t.Errorf("output = %q", out)
	}
}

func TestEnvironmentConfig(t *testing.T) {
	path := saveFile(t, "route.bin", 0, route{})
	t.Setenv("SAVEFILE_FORMAT", "json")

	out, err := run(t, "schema", path)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("SAVEFILE_FORMAT not applied:\n%s", out)
	}
}

func TestLogFile(t *testing.T) {
	path := saveFile(t, "route.bin", 0, route{})
	logPath := filepath.Join(t.TempDir(), "savefile.log")

	if _, err := run(t, "inspect", path, "--log-file", logPath, "--log-level", "debug"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if _, err := run(t, "inspect", path, "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid log level")
	}
	if _, err := run(t, "inspect", path, "--log-file", t.TempDir()); err == nil {
		t.Error("expected error for directory log file")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := run(t, "inspect", filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCorruptFile(t *testing.T) {
	dir := t.TempDir()
	noSchema := filepath.Join(dir, "raw.bin")
	f, err := os.Create(noSchema)
	if err != nil {
		t.Fatal(err)
	}
	if err := savefile.SaveNoSchema(f, 0, route{Name: "r"}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	garbage := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(garbage, []byte{0, 0, 0, 0, 0xEE, 1, 2, 3}, 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{noSchema, garbage} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			if _, err := run(t, "inspect", path); err == nil {
				t.Error("expected error for a file without a valid schema block")
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	s := schema.Aggregate("shape",
		schema.F("tags", schema.Sequence(schema.Prim(schema.String))),
		schema.F("kind", schema.Union("kind", 1,
			schema.Variant{Name: "dot", Discriminant: 0},
			schema.Variant{Name: "box", Discriminant: 1, Fields: []schema.Field{
				schema.F("w", schema.Prim(schema.U32)),
			}},
		)),
	)

	got := make([]string, 0)
	for _, n := range flatten(s) {
		got = append(got, n.path)
	}
	want := []string{".", "./tags", "./tags/*", "./kind", "./kind/dot", "./kind/box", "./kind/box/w"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestBrowseModel(t *testing.T) {
	s := schema.Aggregate("route",
		schema.F("name", schema.Prim(schema.String)),
		schema.F("points", schema.Sequence(schema.Aggregate("point",
			schema.F("x", schema.Prim(schema.I32)),
		))),
	)
	m := newBrowseModel("route.bin", s)
	if len(m.visible) != 5 {
		t.Fatalf("visible = %d rows, want 5", len(m.visible))
	}

	// collapse the root
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.visible) != 1 {
		t.Errorf("after fold visible = %d rows, want 1", len(m.visible))
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	if !m.filtering {
		t.Fatal("slash should start filtering")
	}
	for _, r := range "i32" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if len(m.visible) != 1 || m.nodes[m.visible[0]].path != "./points/*/x" {
		t.Errorf("filtered rows = %v", m.visible)
	}
	if !strings.Contains(m.View(), "./points/*/x") {
		t.Error("view does not show the selected path")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.filtering || len(m.visible) != 5 {
		t.Errorf("esc should clear the filter, visible = %d", len(m.visible))
	}
}
