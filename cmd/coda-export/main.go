// Package main is the entry point for the coda-export CLI tool.
//
// coda-export extracts the complete contents of a Coda workspace (docs,
// pages, tables, columns, rows, views) through the read-only API and writes
// it to a local file tree, then archives the tree into a single zip file.
// The API token is read from -token, the CODA_API_TOKEN environment
// variable, or a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/zah/coda-exporter/internal/coda"
	"github.com/zah/coda-exporter/internal/exporter"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "coda-export: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	token := flag.String("token", "", "Coda API token (or set CODA_API_TOKEN)")
	outputDir := flag.String("output", "./output", "Output directory; the export tree goes to <output>/coda-export")
	manifestPath := flag.String("config", "", "Optional YAML run manifest")
	docIDs := flag.String("docs", "", "Comma-separated doc IDs to export (default: all)")
	formats := flag.String("formats", "", "Comma-separated page export formats (default: markdown,html)")
	concurrency := flag.Int("concurrency", 0, "Docs processed in parallel (default: 1)")
	skipArchive := flag.Bool("skip-archive", false, "Skip the final zip archive")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	env, err := loadDotEnv(".")
	if err != nil {
		return err
	}
	if *token == "" {
		*token = os.Getenv("CODA_API_TOKEN")
	}
	if *token == "" {
		*token = env["CODA_API_TOKEN"]
	}
	if *token == "" {
		return errors.New("-token, CODA_API_TOKEN environment variable, or a .env entry is required")
	}

	opts := exporter.Options{}
	if *manifestPath != "" {
		manifest, err := exporter.LoadRunManifest(*manifestPath)
		if err != nil {
			return err
		}
		opts.Formats = manifest.Formats
		opts.DocIDs = manifest.Docs
		opts.Concurrency = manifest.Concurrency
		opts.SkipArchive = manifest.SkipArchive
	}
	// Flags win over the manifest.
	if *docIDs != "" {
		opts.DocIDs = splitList(*docIDs)
	}
	if *formats != "" {
		opts.Formats = splitList(*formats)
		for _, f := range opts.Formats {
			if f != coda.FormatMarkdown && f != coda.FormatHTML {
				return fmt.Errorf("unknown export format %q", f)
			}
		}
	}
	if *concurrency > 0 {
		opts.Concurrency = *concurrency
	}
	if *skipArchive {
		opts.SkipArchive = true
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	exportRoot := filepath.Join(*outputDir, "coda-export")
	opts.ArchivePath = filepath.Join(*outputDir, "coda-export.zip")

	client := coda.NewClient(*token)
	writer := exporter.NewWriter(exportRoot)
	progress := &exporter.CLIProgress{
		Out: os.Stdout,
		Err: os.Stderr,
	}
	exp := exporter.New(client, writer, progress)

	fmt.Println("Coda Workspace Export")
	fmt.Println("=====================")
	fmt.Println("Connecting to Coda API...")
	fmt.Println()

	stats, err := exp.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("\nOutput: %s/\n", exportRoot)
	if !opts.SkipArchive {
		fmt.Printf("Archive: %s\n", opts.ArchivePath)
	}

	if len(stats.Failures) > 0 {
		return fmt.Errorf("%d entities failed during export", len(stats.Failures))
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printVersion() {
	version := "dev"
	goVersion := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		goVersion = info.GoVersion
	}
	fmt.Printf("coda-export %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
}

func loadDotEnv(dir string) (map[string]string, error) {
	env := make(map[string]string)
	path := filepath.Join(dir, ".env")
	envContent, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from the working directory, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return nil, err
	}

	for line := range strings.SplitSeq(string(envContent), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}

		env[key] = val
	}
	return env, nil
}
