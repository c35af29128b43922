// Tests for run manifest parsing.

package exporter

import (
	"testing"
)

func TestParseRunManifestBytes(t *testing.T) {
	yaml := `
version: 1
formats: [markdown, html]
docs:
  - doc-abc
  - doc-def
concurrency: 2
skip_archive: true
`
	m, err := ParseRunManifestBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseRunManifestBytes failed: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("expected version 1, got %d", m.Version)
	}
	if len(m.Formats) != 2 || m.Formats[0] != "markdown" || m.Formats[1] != "html" {
		t.Errorf("unexpected formats %v", m.Formats)
	}
	if len(m.Docs) != 2 || m.Docs[0] != "doc-abc" {
		t.Errorf("unexpected docs %v", m.Docs)
	}
	if m.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", m.Concurrency)
	}
	if !m.SkipArchive {
		t.Error("expected skip_archive true")
	}
}

func TestParseRunManifestBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			"unsupported version",
			`version: 99`,
		},
		{
			"missing version",
			`formats: [markdown]`,
		},
		{
			"unknown format",
			`version: 1
formats: [pdf]`,
		},
		{
			"negative concurrency",
			`version: 1
concurrency: -1`,
		},
		{
			"not yaml",
			`{{{`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRunManifestBytes([]byte(tt.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
