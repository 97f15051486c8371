// Package core runs spreadsheet imports as tracked runs.
//
// It sits between the transports (HTTP handlers, the importer CLI) and the
// pipeline in package importer. For every run the [Service]:
//
//  1. waits for a slot on the [ImportLimiter]
//  2. assigns a run ID and tags the context's logger with it
//  3. opens a store session from the configured [Backend]
//  4. runs the pipeline and records the [Run] in [History]
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError]. Each
// category has a code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - FILE001-FILE006: File errors (size, format, encoding, headers)
//   - IMP001-IMP005: Import run errors (cancelled, busy, not found, timeouts)
//
// Row-level messages recorded for failed writes use [FormatUserError], so
// the error list a user downloads never carries raw driver text.
package core
