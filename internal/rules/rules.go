// Package rules is the post-legalization combine rule library.
//
// Rules are declared in table order; that order is the tie-break when more
// than one rule anchored on the same opcode could match.
package rules

import (
	"github.com/roach88/peephole/internal/combine"
)

// Rule IDs, in table order.
const (
	CopyProp              = "copy_prop"
	CommuteConstantToRHS  = "commute_constant_to_rhs"
	MulConst              = "mul_const"
	ExtractVecEltPairwise = "extractvecelt_pairwise_add"
	FoldMergeToZext       = "fold_merge_to_zext"
	MutateAnyExtToZext    = "mutate_anyext_to_zext"
	SplitStoreZero128     = "split_store_zero_128"
)

// All returns the rule library in table order.
func All() []combine.Rule {
	return []combine.Rule{
		copyProp(),
		commuteConstantToRHS(),
		mulConst(),
		extractVecEltPairwiseAdd(),
		foldMergeToZext(),
		mutateAnyExtToZext(),
		splitStoreZero128(),
	}
}

// Table returns a fresh table over All. The result is read-only and may be
// shared between combiners.
func Table() *combine.Table {
	return combine.MustTable(All()...)
}
