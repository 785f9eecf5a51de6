package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/rules"
)

// TestRules_List tests the flat rule listing.
func TestRules_List(t *testing.T) {
	out, _, err := execute(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "*  2 mul_const")
	assert.Contains(t, out, "G_MUL")
	assert.Contains(t, out, rules.SplitStoreZero128)
}

// TestRules_JSON tests the rule listing as seen by a configured combiner.
func TestRules_JSON(t *testing.T) {
	out, _, err := execute(t, "rules", "--format", "json", "--config", "testdata/config", "--combiner", "no-mul")
	require.NoError(t, err)

	var result RulesResult
	decodeData(t, out, &result)
	assert.Equal(t, "no-mul", result.Combiner)
	require.Len(t, result.Rules, len(rules.All()))
	for i, r := range result.Rules {
		assert.Equal(t, i, r.Number)
		assert.Equal(t, r.ID != rules.MulConst, r.Enabled, r.ID)
	}
	mul := result.Rules[2]
	assert.Equal(t, rules.MulConst, mul.ID)
	assert.Equal(t, "G_MUL", mul.Anchor)
	assert.Contains(t, mul.Produces, "G_SHL")
}

// TestRules_Tree tests the dispatch tree rendering.
func TestRules_Tree(t *testing.T) {
	out, _, err := execute(t, "rules", "--tree", "--disable-rule", rules.MulConst)
	require.NoError(t, err)
	assert.Contains(t, out, "postlegalizer")
	assert.Contains(t, out, "G_MUL")
	assert.Contains(t, out, "2 mul_const (disabled)")
	assert.Contains(t, out, "1 commute_constant_to_rhs")
	assert.Contains(t, out, "produces G_SHL")
}

// TestMatch_Text tests the dry-run listing of matching rules.
func TestMatch_Text(t *testing.T) {
	out, _, err := execute(t, "match", "testdata/mul.mir")
	require.NoError(t, err)
	assert.Contains(t, out, "@mul9:\n")
	assert.Regexp(t, `%2:s32 = G_MUL %0, %1\s+mul_const`, out)
	assert.Contains(t, out, "@merge:\n")
	assert.Regexp(t, `G_MERGE_VALUES %0, %1\s+fold_merge_to_zext`, out)
	assert.NotContains(t, out, "ARG 0")
}

// TestMatch_All tests listing unmatched instructions with --all.
func TestMatch_All(t *testing.T) {
	out, _, err := execute(t, "match", "--all", "--format", "json", "testdata/mul9.mir")
	require.NoError(t, err)

	var fns []FunctionMatches
	decodeData(t, out, &fns)
	require.Len(t, fns, 1)
	require.Len(t, fns[0].Matches, 4)
	assert.Equal(t, []string{}, fns[0].Matches[0].Rules)
	assert.Equal(t, []string{rules.MulConst}, fns[0].Matches[2].Rules)
}

// TestMatch_NoMatches tests a function no enabled rule matches.
func TestMatch_NoMatches(t *testing.T) {
	out, _, err := execute(t, "match", "--disable-rule", rules.MulConst, "testdata/mul9.mir")
	require.NoError(t, err)
	assert.Contains(t, out, "no rule matches")
}

// TestExplain_Tree tests the producer tree of a register.
func TestExplain_Tree(t *testing.T) {
	out, _, err := execute(t, "explain", "testdata/mul9.mir", "%2")
	require.NoError(t, err)
	assert.Contains(t, out, "@mul9")
	assert.Contains(t, out, "%2:s32 <- %2:s32 = G_MUL %0, %1")
	assert.Contains(t, out, "%0:s32 <- %0:s32 = ARG 0")
	assert.Contains(t, out, "%1:s32 <- %1:s32 = G_CONSTANT 9")
	assert.Contains(t, out, "RET %2")
}

// TestExplain_JSON tests the JSON register node.
func TestExplain_JSON(t *testing.T) {
	out, _, err := execute(t, "explain", "--format", "json", "--function", "mul9", "testdata/mul.mir", "2")
	require.NoError(t, err)

	var node RegNode
	decodeData(t, out, &node)
	assert.Equal(t, "%2", node.Reg)
	assert.Equal(t, "s32", node.Type)
	assert.Equal(t, "%2:s32 = G_MUL %0, %1", node.Def)
	require.Len(t, node.Operands, 2)
	assert.Equal(t, "%0", node.Operands[0].Reg)
	assert.Empty(t, node.Operands[0].Operands)
	assert.Empty(t, node.Operands[0].Users)
	assert.Equal(t, []string{"RET %2"}, node.Users)
}

// TestExplain_Depth tests that --depth stops the walk.
func TestExplain_Depth(t *testing.T) {
	out, _, err := execute(t, "explain", "--format", "json", "--depth", "0", "testdata/mul9.mir", "%2")
	require.NoError(t, err)

	var node RegNode
	decodeData(t, out, &node)
	assert.NotEmpty(t, node.Def)
	assert.Empty(t, node.Operands)
}

// TestExplain_Errors tests argument errors.
func TestExplain_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ambiguous function", []string{"testdata/mul.mir", "%2"}, "use --function"},
		{"unknown function", []string{"--function", "nope", "testdata/mul.mir", "%2"}, "no function @nope"},
		{"bad register", []string{"testdata/mul9.mir", "%x"}, `invalid register "%x"`},
		{"missing register", []string{"testdata/mul9.mir", "%42"}, "does not exist in @mul9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append([]string{"explain"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
