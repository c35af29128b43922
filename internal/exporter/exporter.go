// Orchestrates the full workspace export.

package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/zah/coda-exporter/internal/coda"
	"golang.org/x/sync/errgroup"
)

// Options configures a single export run.
type Options struct {
	// Formats are the page export formats, defaulting to markdown and html.
	Formats []string
	// DocIDs restricts the run to specific docs; empty means all.
	DocIDs []string
	// Concurrency bounds how many docs are processed in parallel. Zero or
	// one means serial.
	Concurrency int
	// SkipArchive disables the final zip step.
	SkipArchive bool
	// ArchivePath is where the zip is written. Empty means Root + ".zip".
	ArchivePath string
}

// Exporter sequences credential validation, doc discovery, per-doc
// traversal, and archival into a full export run. Each doc is an
// independent failure domain: an error inside one doc is recorded and does
// not stop siblings. Only credential failure aborts the run.
type Exporter struct {
	client   *coda.Client
	writer   *Writer
	progress ProgressReporter

	mu    sync.Mutex
	stats Stats
}

// New creates an exporter.
func New(client *coda.Client, writer *Writer, progress ProgressReporter) *Exporter {
	if progress == nil {
		progress = &NullProgress{}
	}
	return &Exporter{
		client:   client,
		writer:   writer,
		progress: progress,
	}
}

// Run performs a complete export. It returns an error only for run-fatal
// conditions (rejected credential, unusable output directory, cancelled
// context); entity-scoped failures are recorded in the returned stats and
// the run still reaches the archive step.
func (e *Exporter) Run(ctx context.Context, opts Options) (*Stats, error) {
	start := time.Now()
	e.stats = Stats{}

	if len(opts.Formats) == 0 {
		opts.Formats = []string{coda.FormatMarkdown, coda.FormatHTML}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	user, err := e.client.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential validation failed: %w", err)
	}
	slog.InfoContext(ctx, "Connected to Coda API", "user", user.Name, "token", user.TokenName)

	if err := e.writer.Reset(); err != nil {
		return nil, err
	}

	docs, err := e.client.ListDocs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Nothing to traverse, but the run still produces its (empty) tree
		// and archive so downstream tooling sees a consistent layout.
		e.fail(Failure{Kind: "docs", Err: err.Error()})
		docs = nil
	}
	if len(opts.DocIDs) > 0 {
		filtered := docs[:0]
		for i := range docs {
			if slices.Contains(opts.DocIDs, docs[i].ID) {
				filtered = append(filtered, docs[i])
			}
		}
		docs = filtered
	}

	if err := e.writer.WriteDocList(docs); err != nil {
		e.fail(Failure{Kind: "docs", Err: err.Error()})
	}
	e.progress.OnStart(len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range docs {
		doc := docs[i]
		current := i + 1
		g.Go(func() error {
			e.progress.OnProgress(current, "Doc: "+doc.Name)
			e.exportDoc(gctx, &doc, opts)
			// Doc failures are recorded, never returned: one doc must not
			// cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !opts.SkipArchive {
		dest := opts.ArchivePath
		if dest == "" {
			dest = e.writer.Root + ".zip"
		}
		if err := ArchiveTree(e.writer.Root, dest); err != nil {
			e.fail(Failure{Kind: "archive", Err: err.Error()})
		} else {
			slog.InfoContext(ctx, "Created archive", "path", dest)
		}
	}

	e.stats.Duration = time.Since(start)
	stats := e.snapshot()
	e.progress.OnComplete(stats)
	return &stats, nil
}

// exportDoc exports everything owned by one doc. Failures below doc
// granularity are recorded per entity and do not stop the remaining
// entities of the same doc.
func (e *Exporter) exportDoc(ctx context.Context, doc *coda.Doc, opts Options) {
	if err := e.writer.EnsureDocLayout(doc.ID); err != nil {
		e.fail(Failure{Kind: "doc", ID: doc.ID, Err: err.Error()})
		return
	}

	meta, err := e.client.GetDoc(ctx, doc.ID)
	if err != nil {
		e.fail(Failure{Kind: "doc", ID: doc.ID, Err: err.Error()})
		// Fall back to the listing entry so the doc subtree still carries
		// metadata.
		meta = doc
	}
	if err := e.writer.WriteDocMeta(meta); err != nil {
		e.fail(Failure{Kind: "doc", ID: doc.ID, Err: err.Error()})
	}

	e.exportTablesAndViews(ctx, doc.ID)
	e.exportPages(ctx, doc.ID, opts)

	e.mu.Lock()
	e.stats.Docs++
	e.mu.Unlock()
}

// exportTablesAndViews fetches the tables listing and dispatches each item
// by its tableType.
func (e *Exporter) exportTablesAndViews(ctx context.Context, docID string) {
	items, err := e.client.ListTables(ctx, docID)
	if err != nil {
		e.fail(Failure{Kind: "tables", DocID: docID, Err: err.Error()})
		return
	}
	for i := range items {
		if items[i].TableType == coda.TableTypeView {
			e.exportView(ctx, docID, &items[i])
		} else {
			e.exportTable(ctx, docID, &items[i])
		}
	}
}

// exportTable writes a table's detailed metadata, complete column set, and
// complete row set with rich cell values.
func (e *Exporter) exportTable(ctx context.Context, docID string, table *coda.Table) {
	slog.DebugContext(ctx, "Exporting table", "doc", docID, "table", table.ID, "name", table.Name)

	detail, err := e.client.GetTable(ctx, docID, table.ID)
	if err != nil {
		e.fail(Failure{Kind: "table", ID: table.ID, DocID: docID, Err: err.Error()})
		detail = table
	}
	if err := e.writer.WriteTableMeta(docID, detail); err != nil {
		e.fail(Failure{Kind: "table", ID: table.ID, DocID: docID, Err: err.Error()})
	}

	columns, err := e.client.ListColumns(ctx, docID, table.ID)
	if err != nil {
		e.fail(Failure{Kind: "table", ID: table.ID, DocID: docID, Err: err.Error()})
	} else {
		// The listing carries basic column objects only; formulas, default
		// values, and full formats come from per-column detail. A failed
		// detail fetch keeps the listing entry.
		for i := range columns {
			detail, derr := e.client.GetColumn(ctx, docID, table.ID, columns[i].ID)
			if derr != nil {
				if ctx.Err() != nil {
					return
				}
				e.progress.OnWarning(fmt.Sprintf("column %s of table %s: keeping listing metadata: %v", columns[i].ID, table.ID, derr))
				continue
			}
			columns[i] = *detail
		}
		if err := e.writer.WriteTableColumns(docID, table.ID, columns); err != nil {
			e.fail(Failure{Kind: "table", ID: table.ID, DocID: docID, Err: err.Error()})
		}
	}

	rows, err := e.client.ListRows(ctx, docID, table.ID)
	if err != nil {
		e.fail(Failure{Kind: "table", ID: table.ID, DocID: docID, Err: err.Error()})
		return
	}
	if err := e.writer.WriteTableRows(docID, table.ID, rows); err != nil {
		e.fail(Failure{Kind: "table", ID: table.ID, DocID: docID, Err: err.Error()})
		return
	}

	e.mu.Lock()
	e.stats.Tables++
	e.stats.Rows += len(rows)
	e.mu.Unlock()
}

// exportView writes a view's configuration. Row data is never duplicated
// into view files; views only project their parent table.
func (e *Exporter) exportView(ctx context.Context, docID string, view *coda.Table) {
	slog.DebugContext(ctx, "Exporting view", "doc", docID, "view", view.ID, "name", view.Name)

	detail, err := e.client.GetTable(ctx, docID, view.ID)
	if err != nil {
		e.fail(Failure{Kind: "view", ID: view.ID, DocID: docID, Err: err.Error()})
		detail = view
	}
	if err := e.writer.WriteViewMeta(docID, detail); err != nil {
		e.fail(Failure{Kind: "view", ID: view.ID, DocID: docID, Err: err.Error()})
		return
	}

	e.mu.Lock()
	e.stats.Views++
	e.mu.Unlock()
}

// exportPages lists a doc's pages, exports each canvas page in every
// requested format, and persists the id to filename mapping.
func (e *Exporter) exportPages(ctx context.Context, docID string, opts Options) {
	pages, err := e.client.ListPages(ctx, docID)
	if err != nil {
		e.fail(Failure{Kind: "pages", DocID: docID, Err: err.Error()})
		return
	}

	alloc := newNameAllocator()
	records := make([]PageRecord, 0, len(pages))
	for i := range pages {
		page := &pages[i]
		safeName := alloc.Allocate(page.ID, page.Name)
		record := PageRecord{
			ID:           page.ID,
			Name:         page.Name,
			SafeFilename: safeName,
			Page:         *page,
		}

		// Only canvas pages carry exportable content; others are listed in
		// the metadata mapping but skipped for content.
		if page.ContentType != "canvas" {
			slog.DebugContext(ctx, "Skipping page content", "doc", docID, "page", page.ID, "contentType", page.ContentType)
			records = append(records, record)
			continue
		}

		exported := false
		for _, format := range opts.Formats {
			content, err := e.client.ExportPage(ctx, docID, page.ID, format)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.fail(Failure{Kind: "page", ID: page.ID, DocID: docID, Err: err.Error()})
				continue
			}
			filename, err := e.writer.WritePageContent(docID, safeName, format, content)
			if err != nil {
				e.fail(Failure{Kind: "page", ID: page.ID, DocID: docID, Err: err.Error()})
				continue
			}
			exported = true
			switch format {
			case coda.FormatMarkdown:
				record.MarkdownFilename = filename
			case coda.FormatHTML:
				record.HTMLFilename = filename
			}
		}

		records = append(records, record)
		// A page counts only once at least one artifact is on disk; a page
		// whose every format failed shows up in Failures instead.
		if exported {
			e.mu.Lock()
			e.stats.Pages++
			e.mu.Unlock()
		}
	}

	if err := e.writer.WritePagesMetadata(docID, records); err != nil {
		e.fail(Failure{Kind: "pages", DocID: docID, Err: err.Error()})
	}
}

// fail records an entity-scoped failure and reports it.
func (e *Exporter) fail(f Failure) {
	e.progress.OnError(fmt.Errorf("%s", f))
	e.mu.Lock()
	e.stats.Failures = append(e.stats.Failures, f)
	e.mu.Unlock()
}

// snapshot copies stats under the lock.
func (e *Exporter) snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
