// Package coda is a read-only client for the Coda API v1.
//
// It covers credential validation, cursor-paginated listings for docs,
// pages, tables, columns, and rows, and the asynchronous page content
// export protocol. All requests share one rate limiter and a bounded
// retry policy.
package coda
