// Package combine defines the match/apply protocol shared by every combine
// rule, the ordered opcode-indexed rule table, and the enable/disable filter
// applied to that table.
//
// PROTOCOL:
//
// A rule is anchored on one opcode. Match is a pure predicate: it may walk
// the def-use graph through any number of producers but never mutates it.
// On success it hands a MatchInfo to the paired Apply, which always
// succeeds and performs the rewrite through the Helper's builder.
//
// Rules sharing an anchor opcode are tried in table order. The first rule
// whose Match succeeds is applied and no other rule is tried for that
// instruction in the same step.
//
// A Table is read-only after construction and may be shared by combiners
// running over different functions in parallel.
package combine
