// Package store is the sqlite run log of combine runs.
//
// Each run is written once, atomically, as three kinds of rows:
//   - runs: the function, configuration, input and output text and hashes,
//     final status and counters
//   - firings: every rule that matched and applied, in order
//   - events: every observer notification the run produced
//
// Ordering uses the logical clock column seq, never timestamps, so reading
// a log back is deterministic. A run can be replayed from its stored input
// and configuration and compared against what was recorded.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
