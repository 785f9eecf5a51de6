// Package queryir is the filter language used to query the run log.
//
// A query names one run-log table and a predicate over its columns. The
// IR is backend independent; internal/querysql compiles it to
// parameterized SQLite. Column names are checked against a fixed schema
// by Validate before any backend sees them, so a backend may splice them
// into query text.
//
// Supported forms:
//   - Select(from, filter, columns): one table, optional filter
//   - Predicates: Equals, And, Or
//
// Values are sealed to String and Int. There is no NULL: every column of
// the run log is NOT NULL.
package queryir
