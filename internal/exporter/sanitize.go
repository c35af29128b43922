// Filename sanitization for page content files.

package exporter

import (
	"regexp"
	"strings"
)

const maxFilenameLength = 100

var (
	unsafeChars   = regexp.MustCompile(`[<>:"/\\|?*]`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// SanitizeFilename converts a human-readable name to a safe filename,
// keeping as much readability as possible. The mapping is deterministic:
// the same input always yields the same output.
func SanitizeFilename(name string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	safe = controlChars.ReplaceAllString(safe, "")
	safe = strings.TrimSpace(safe)
	safe = whitespaceRun.ReplaceAllString(safe, "_")
	safe = underscoreRun.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")

	if safe == "" {
		safe = "untitled"
	}
	if len(safe) > maxFilenameLength {
		safe = strings.TrimRight(safe[:maxFilenameLength], "_")
	}
	return safe
}

// nameAllocator hands out collision-free sanitized filenames within one
// pages directory. When two distinct pages sanitize to the same name, later
// pages get a suffix derived from their id, so the result stays
// deterministic across runs and never silently overwrites unrelated
// content.
type nameAllocator struct {
	used map[string]string // sanitized name -> owning page id
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]string)}
}

// Allocate returns the sanitized filename (without extension) for a page.
func (a *nameAllocator) Allocate(pageID, name string) string {
	base := SanitizeFilename(name)
	if owner, ok := a.used[base]; !ok || owner == pageID {
		a.used[base] = pageID
		return base
	}
	// Page ids are unique, so the suffixed name cannot collide with another
	// suffixed name. It could still collide with a page literally named that
	// way, hence the second check.
	candidate := base + "-" + SanitizeFilename(pageID)
	if owner, ok := a.used[candidate]; ok && owner != pageID {
		candidate = candidate + "-dup"
	}
	a.used[candidate] = pageID
	return candidate
}
