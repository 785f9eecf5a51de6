package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/ir"
)

// Parse parses one function and verifies it, failing the test on error.
func Parse(t testing.TB, src string) *ir.Function {
	t.Helper()
	f, err := ir.Parse(src)
	require.NoError(t, err)
	require.NoError(t, f.Verify())
	return f
}

// Opcodes returns the opcode names of f in program order.
func Opcodes(f *ir.Function) []string {
	var out []string
	for _, mi := range f.Instrs() {
		out = append(out, mi.Opcode().String())
	}
	return out
}
