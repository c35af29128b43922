// Tests for zip archival.

package exporter

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveTree(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "export")
	for rel, content := range map[string]string{
		"docs.json":              `[]`,
		"doc-1/doc_meta.json":    `{"id": "doc-1"}`,
		"doc-1/pages/Welcome.md": "# hi\n",
		"doc-1/tables/grid.json": `[]`,
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	dest := filepath.Join(dir, "export.zip")
	if err := ArchiveTree(root, dest); err != nil {
		t.Fatalf("ArchiveTree failed: %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer func() { _ = zr.Close() }()

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Name, err)
		}
		got[f.Name] = string(data)
	}

	// Entry names are forward-slash relative paths regardless of platform.
	if got["doc-1/pages/Welcome.md"] != "# hi\n" {
		t.Errorf("unexpected entries: %v", keys(got))
	}
	if len(got) != 4 {
		t.Errorf("expected 4 entries, got %d: %v", len(got), keys(got))
	}

	// No temp file left next to the archive.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "export" && e.Name() != "export.zip" {
			t.Errorf("stray file left behind: %s", e.Name())
		}
	}
}

func TestArchiveTreeMissingRoot(t *testing.T) {
	dir := t.TempDir()
	err := ArchiveTree(filepath.Join(dir, "nope"), filepath.Join(dir, "out.zip"))
	if err == nil {
		t.Fatal("expected an error for a missing root")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.zip")); !os.IsNotExist(statErr) {
		t.Error("no archive should be written on failure")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
