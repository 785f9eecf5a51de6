package combine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
)

type constRHS struct {
	val int64
}

func matchConstRHS(h *Helper, mi *ir.Instruction, info *constRHS) bool {
	v, ok := h.Q.IConstantValueOf(mi.Reg(2))
	if !ok {
		return false
	}
	info.val = v.Int64()
	return true
}

func testTable(t *testing.T) *Table {
	t.Helper()
	never := func(*Helper, *ir.Instruction, *struct{}) bool { return false }
	always := func(*Helper, *ir.Instruction, *struct{}) bool { return true }
	noop := func(*Helper, *ir.Instruction, *struct{}) {}
	tbl, err := NewTable(
		NewRule("never_add", ir.G_ADD, nil, "", never, noop),
		NewRule("add_const", ir.G_ADD, nil, "", matchConstRHS, func(*Helper, *ir.Instruction, *constRHS) {}),
		NewRule("any_add", ir.G_ADD, nil, "", always, noop),
		NewRule("any_mul", ir.G_MUL, nil, "", always, noop),
	)
	require.NoError(t, err)
	return tbl
}

const addSrc = `func @f legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT 7
  %2:s32 = G_ADD %0, %1
  %3:s32 = G_ADD %0, %0
  RET %2
}`

func TestTable_NumbersAndIndex(t *testing.T) {
	tbl := testTable(t)
	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []int{0, 1, 2}, tbl.ForOpcode(ir.G_ADD))
	assert.Equal(t, []ir.Opcode{ir.G_ADD, ir.G_MUL}, tbl.Anchors())
	r, ok := tbl.Lookup("any_mul")
	require.True(t, ok)
	assert.Equal(t, 3, r.Number)
}

func TestNewTable_Rejects(t *testing.T) {
	m := func(*Helper, *ir.Instruction, *struct{}) bool { return true }
	a := func(*Helper, *ir.Instruction, *struct{}) {}
	_, err := NewTable(NewRule("x", ir.G_ADD, nil, "", m, a), NewRule("x", ir.G_SUB, nil, "", m, a))
	assert.ErrorContains(t, err, "duplicate")
	_, err = NewTable(NewRule("y", ir.OpInvalid, nil, "", m, a))
	assert.ErrorContains(t, err, "anchor")
	_, err = NewTable(Rule{ID: "z", Opcode: ir.G_ADD})
	assert.ErrorContains(t, err, "missing match")
}

// The first matching rule in table order wins and carries its typed info.
func TestCombiner_FirstMatchWins(t *testing.T) {
	f := ir.MustParse(addSrc)
	c, err := BuildCombiner(testTable(t), DefaultConfig())
	require.NoError(t, err)
	h := NewHelper(f, legal.AArch64(), false, nil)

	r, info, ok := c.Match(h, f.Def(2))
	require.True(t, ok)
	assert.Equal(t, "add_const", r.ID)
	assert.Equal(t, int64(7), info.(*constRHS).val)

	r, _, ok = c.Match(h, f.Def(3))
	require.True(t, ok)
	assert.Equal(t, "any_add", r.ID)

	assert.Len(t, c.MatchAll(h, f.Def(2)), 2)
}

func TestCombiner_DisabledRulesSkipped(t *testing.T) {
	f := ir.MustParse(addSrc)
	cfg := DefaultConfig()
	cfg.Filter = RuleFilter{Disable: []string{"add_const"}}
	c, err := BuildCombiner(testTable(t), cfg)
	require.NoError(t, err)
	h := NewHelper(f, nil, false, nil)

	r, _, ok := c.Match(h, f.Def(2))
	require.True(t, ok)
	assert.Equal(t, "any_add", r.ID)
	assert.Equal(t, []string{"never_add", "any_add", "any_mul"}, c.EnabledIDs())
}

func TestRuleFilter_Resolve(t *testing.T) {
	tbl := testTable(t)
	tests := []struct {
		name   string
		filter RuleFilter
		want   []bool
	}{
		{"zero", RuleFilter{}, []bool{true, true, true, true}},
		{"disable id", RuleFilter{Disable: []string{"any_add"}}, []bool{true, true, false, true}},
		{"disable number", RuleFilter{Disable: []string{"0"}}, []bool{false, true, true, true}},
		{"disable range", RuleFilter{Disable: []string{"1-3"}}, []bool{true, false, false, false}},
		{"disable all then re-enable", RuleFilter{Disable: []string{"*", "!any_mul"}}, []bool{false, false, false, true}},
		{"only enable", RuleFilter{OnlyEnable: []string{"add_const", "3"}}, []bool{false, true, false, true}},
		{"only enable then disable", RuleFilter{OnlyEnable: []string{"*"}, Disable: []string{"any_mul"}}, []bool{true, true, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Resolve(tbl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Unknown identifiers are configuration errors, never silently ignored.
func TestRuleFilter_UnknownIsConfigError(t *testing.T) {
	tbl := testTable(t)
	for _, f := range []RuleFilter{
		{Disable: []string{"no_such_rule"}},
		{Disable: []string{"9"}},
		{Disable: []string{"2-1"}},
		{Disable: []string{"0-17"}},
		{OnlyEnable: []string{"!any_add"}},
		{OnlyEnable: []string{""}},
	} {
		_, err := BuildCombiner(tbl, Config{Filter: f})
		require.Error(t, err, "%+v", f)
		assert.True(t, IsConfigError(err))
	}
}

func TestParseRuleFilter(t *testing.T) {
	f, err := ParseRuleFilter("-mul_const, split_store_zero_128,+copy_prop")
	require.NoError(t, err)
	assert.Equal(t, []string{"mul_const"}, f.Disable)
	assert.Equal(t, []string{"split_store_zero_128", "copy_prop"}, f.OnlyEnable)

	f, err = ParseRuleFilter("")
	require.NoError(t, err)
	assert.True(t, f.IsZero())

	_, err = ParseRuleFilter("a,,b")
	assert.True(t, IsConfigError(err))
}

func TestBuildCombiner_Budget(t *testing.T) {
	c, err := BuildCombiner(testTable(t), Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, c.Config().MaxIterations)

	_, err = BuildCombiner(testTable(t), Config{MaxIterations: -1})
	assert.True(t, IsConfigError(err))
}

func TestHelper_IsLegal(t *testing.T) {
	f := ir.MustParse(addSrc)
	h := NewHelper(f, legal.AArch64(), false, nil)
	assert.True(t, h.IsLegal(ir.G_ADD, ir.S32))
	assert.False(t, h.IsLegal(ir.G_ADD, ir.S16))
	h.AllowIllegal = true
	assert.True(t, h.IsLegal(ir.G_ADD, ir.S16))
}
