// Package engine implements the combine driver: the worklist scheduler
// that applies a rule table to one function until nothing more matches.
//
// ARCHITECTURE:
//
// Single-Threaded Per Function:
// One Run owns one function from seeding to the empty worklist. Nothing
// else mutates the graph while it runs, so rules see a stable graph
// between their match and their apply.
//
// Driver Loop:
//  1. Every instruction is pushed in reverse program order, so the first
//     pop is the first instruction.
//  2. Pop an instruction. Erased instructions are skipped.
//  3. If DCE is on and the instruction is trivially dead, erase it.
//  4. Otherwise try the enabled rules anchored on its opcode in table
//     order. The first match is applied.
//  5. The tracker observer collected every instruction and register the
//     apply touched. Their definers and users go back on the worklist.
//
// Independent functions may be combined in parallel with RunAll. Each gets
// its own worklist, observers and helper; the Combiner and legal table are
// read-only and shared.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Firings and observer events are stamped with Clock.Next().
// Wall-clock time never orders anything.
//
// Deterministic Scheduling:
// Seeding order, requeue order and rule order are all fixed, so the same
// input and configuration always produce the same firing sequence.
//
// Termination:
// MaxIterations bounds dequeues per function. Rules are expected to
// reduce cost or normalize, but the driver does not trust that.
package engine
