// Parses the optional YAML run manifest.

package exporter

import (
	"fmt"
	"os"

	"github.com/zah/coda-exporter/internal/coda"
	"gopkg.in/yaml.v3"
)

// manifestVersion is the only supported run manifest version.
const manifestVersion = 1

// RunManifest is an optional YAML file selecting what and how to export.
// CLI flags take precedence over manifest values.
type RunManifest struct {
	Version     int      `yaml:"version"`
	Formats     []string `yaml:"formats,omitempty"`
	Docs        []string `yaml:"docs,omitempty"`
	Concurrency int      `yaml:"concurrency,omitempty"`
	SkipArchive bool     `yaml:"skip_archive,omitempty"`
}

// LoadRunManifest reads and validates a run manifest file.
func LoadRunManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseRunManifestBytes(data)
}

// ParseRunManifestBytes parses and validates run manifest content.
func ParseRunManifestBytes(data []byte) (*RunManifest, error) {
	var m RunManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d (expected %d)", m.Version, manifestVersion)
	}
	for _, f := range m.Formats {
		if f != coda.FormatMarkdown && f != coda.FormatHTML {
			return nil, fmt.Errorf("unknown export format %q", f)
		}
	}
	if m.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", m.Concurrency)
	}
	return &m, nil
}
