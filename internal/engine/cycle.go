package engine

import "sync"

// CycleDetector remembers the states a function has been in during one
// combine run, keyed by ir.FunctionHash.
//
// A repeat means some sequence of rewrites undid itself, for example one
// rule commuting operands and another commuting them back. Without the
// detector such a pair only stops when the iteration budget runs out.
//
// Detection hashes the whole function after every rewrite, so it is off by
// default and enabled with WithCycleDetection.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // function name -> state hash
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// WouldCycle reports whether fn has already been in state hash.
func (c *CycleDetector) WouldCycle(fn, hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.history[fn][hash]
}

// Record marks state hash as seen for fn.
func (c *CycleDetector) Record(fn, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[fn] == nil {
		c.history[fn] = make(map[string]bool)
	}
	c.history[fn][hash] = true
}

// Clear removes all history for fn.
func (c *CycleDetector) Clear(fn string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, fn)
}

// HistorySize returns the number of functions with tracked history.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}

// FunctionHistorySize returns the number of states recorded for fn.
func (c *CycleDetector) FunctionHistorySize(fn string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[fn])
}
