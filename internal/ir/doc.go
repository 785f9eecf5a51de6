// Package ir is the typed instruction graph the combiner rewrites.
//
// A Function owns an arena of Instructions in program order and an arena of
// virtual registers. Every register has at most one defining instruction
// and an index of the operands that read it; all mutation goes through
// Function methods so that index never goes stale. Erased instructions stay
// in the arena with their ID retired, so a queued ID can always be checked
// for liveness.
//
// Types follow the low-level scalar/vector/pointer model. The package also
// provides a textual form (Print and Parse) and content hashes used to
// identify graph states.
//
// ir imports nothing internal except apint.
package ir
