// Writes exported entities to the deterministic output layout.

package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zah/coda-exporter/internal/coda"
)

// Writer maps fetched entities to deterministic paths under the export
// root and persists them idempotently. Every file is keyed by the entity's
// stable remote id, except page content files which use a sanitized name;
// the id to name mapping is persisted in pages_metadata.json.
//
// Layout:
//
//	docs.json
//	{docID}/doc_meta.json
//	{docID}/tables/{tableID}.json
//	{docID}/tables/{tableID}_columns.json
//	{docID}/tables/{tableID}_meta.json
//	{docID}/views/{viewID}_meta.json
//	{docID}/pages/{sanitizedName}.{md,html}
//	{docID}/pages/pages_metadata.json
//
// Concurrent doc exports write to disjoint per-doc subtrees, so the Writer
// needs no locking.
type Writer struct {
	Root string
}

// NewWriter creates a writer rooted at the export directory.
func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

// Reset removes any previous export tree and recreates the root, so a run
// never leaves stale files from a prior snapshot behind.
func (w *Writer) Reset() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("failed to remove previous export: %w", err)
	}
	if err := os.MkdirAll(w.Root, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	return nil
}

func (w *Writer) docDir(docID string) string {
	return filepath.Join(w.Root, docID)
}

// EnsureDocLayout creates the fixed subfolders for one doc.
func (w *Writer) EnsureDocLayout(docID string) error {
	for _, sub := range []string{"tables", "views", "pages"} {
		if err := os.MkdirAll(filepath.Join(w.docDir(docID), sub), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return fmt.Errorf("failed to create %s directory for doc %s: %w", sub, docID, err)
		}
	}
	return nil
}

// WriteDocList writes the ordered doc summary list to docs.json.
func (w *Writer) WriteDocList(docs []coda.Doc) error {
	summaries := make([]coda.DocSummary, 0, len(docs))
	for i := range docs {
		summaries = append(summaries, docs[i].Summary())
	}
	return w.writeJSON(filepath.Join(w.Root, "docs.json"), summaries)
}

// WriteDocMeta writes the full metadata of one doc.
func (w *Writer) WriteDocMeta(doc *coda.Doc) error {
	return w.writeJSON(filepath.Join(w.docDir(doc.ID), "doc_meta.json"), doc)
}

// WriteTableRows writes the complete ordered row set of a table.
func (w *Writer) WriteTableRows(docID, tableID string, rows []coda.Row) error {
	if rows == nil {
		rows = []coda.Row{}
	}
	return w.writeJSON(filepath.Join(w.docDir(docID), "tables", tableID+".json"), rows)
}

// WriteTableColumns writes the complete ordered column set of a table.
func (w *Writer) WriteTableColumns(docID, tableID string, columns []coda.Column) error {
	if columns == nil {
		columns = []coda.Column{}
	}
	return w.writeJSON(filepath.Join(w.docDir(docID), "tables", tableID+"_columns.json"), columns)
}

// WriteTableMeta writes detailed table metadata.
func (w *Writer) WriteTableMeta(docID string, table *coda.Table) error {
	return w.writeJSON(filepath.Join(w.docDir(docID), "tables", table.ID+"_meta.json"), table)
}

// WriteViewMeta writes a view's configuration. Views project a table and
// never carry row data, so only the configuration is persisted.
func (w *Writer) WriteViewMeta(docID string, view *coda.Table) error {
	return w.writeJSON(filepath.Join(w.docDir(docID), "views", view.ID+"_meta.json"), view)
}

// WritePageContent writes one exported page artifact and returns the
// filename written.
func (w *Writer) WritePageContent(docID, safeName, format string, content []byte) (string, error) {
	filename := safeName + "." + coda.FileExtension(format)
	path := filepath.Join(w.docDir(docID), "pages", filename)
	if err := writeFileAtomic(path, content); err != nil {
		return "", fmt.Errorf("failed to write page content %s: %w", filename, err)
	}
	return filename, nil
}

// PageRecord maps a page id to its sanitized filename and full metadata.
type PageRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SafeFilename     string    `json:"safeFilename"`
	MarkdownFilename string    `json:"markdownFilename,omitempty"`
	HTMLFilename     string    `json:"htmlFilename,omitempty"`
	Page             coda.Page `json:"page"`
}

// WritePagesMetadata writes the id to filename mapping for all pages of a
// doc.
func (w *Writer) WritePagesMetadata(docID string, records []PageRecord) error {
	if records == nil {
		records = []PageRecord{}
	}
	return w.writeJSON(filepath.Join(w.docDir(docID), "pages", "pages_metadata.json"), records)
}

// writeJSON marshals v with indentation and writes it atomically.
func (w *Writer) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so a cancelled run never leaves a partially
// written file at a final path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // G302: 0o644 is intentional for readable files
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
