package testutil

// FixedRunID names every run the same.
//
// Unlike engine.FixedGenerator which returns IDs in sequence and panics
// when they run out, FixedRunID can be reused for any number of runs, so
// a scenario that combines a function twice still gets stable output.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID string

// Generate returns the fixed ID, or "test-run" when it is empty.
func (id FixedRunID) Generate() string {
	if id == "" {
		return "test-run"
	}
	return string(id)
}
