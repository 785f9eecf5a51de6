package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Identical printed graphs hash identically even when arena IDs differ.
func TestFunctionHash_IgnoresArenaLayout(t *testing.T) {
	a := MustParse(`func @f legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT 7
  RET %0
}`)
	b := a.Clone()
	dead := b.Append(G_IMPLICIT_DEF, []Operand{DefOp(b.NewReg(S32))}, nil)
	b.Erase(dead)

	assert.Equal(t, FunctionHash(a), FunctionHash(b))
	assert.Len(t, FunctionHash(a), 64)
}

func TestFunctionHash_ChangesWithBody(t *testing.T) {
	f := MustParse(`func @f legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT 7
  RET %0
}`)
	before := FunctionHash(f)
	f.Erase(f.Def(1))
	assert.NotEqual(t, before, FunctionHash(f))
}

// Domains keep equal payloads from colliding.
func TestContentHash_DomainSeparation(t *testing.T) {
	v := map[string]any{"name": "f"}
	h1, err := ContentHash(DomainFunction, v)
	require.NoError(t, err)
	h2, err := ContentHash(DomainConfig, v)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	_, err = ContentHash(DomainConfig, 0.5)
	assert.Error(t, err)
}
