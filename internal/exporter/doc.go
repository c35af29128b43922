// Package exporter turns a Coda workspace into a local file tree.
//
// It walks docs, their pages, tables (columns and rows), and views through
// the read-only API, writes every entity to a deterministic, idempotent
// layout under an output root, and finally zips the tree. Docs are
// independent failure domains processed with bounded concurrency.
package exporter
