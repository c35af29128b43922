// Archives the export tree into a single zip file.

package exporter

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArchiveTree zips the directory rooted at root into dest. Entries use
// forward-slash paths relative to root. The zip is written to a temp file
// and renamed into place.
func ArchiveTree(root, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	zw := zip.NewWriter(tmp)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path) //nolint:gosec // G304: path comes from walking the export tree
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		_ = f.Close()
		return err
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to archive %s: %w", root, err)
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}
