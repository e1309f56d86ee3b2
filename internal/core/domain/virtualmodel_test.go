package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAliasResolver_EmptyIsNil(t *testing.T) {
	r := NewAliasResolver(nil)
	assert.Nil(t, r)
	assert.False(t, r.IsAlias("anything"))
}

func TestAliasResolver_ResolvesPrimary(t *testing.T) {
	r := NewAliasResolver(map[string][]string{
		"fast": {"default", "reasoning"},
	})
	require.True(t, r.IsAlias("fast"))

	vm, ok := r.ResolvedVirtualModel("fast")
	require.True(t, ok)
	assert.Equal(t, "default", vm)

	assert.Equal(t, []string{"default", "reasoning"}, r.CandidateVirtualModels("fast"))
}

func TestAliasResolver_ReverseIndex(t *testing.T) {
	r := NewAliasResolver(map[string][]string{
		"fast": {"default"},
	})
	alias, ok := r.AliasFor("default")
	require.True(t, ok)
	assert.Equal(t, "fast", alias)
}

func TestAliasResolver_UnknownAlias(t *testing.T) {
	r := NewAliasResolver(map[string][]string{"fast": {"default"}})
	assert.False(t, r.IsAlias("slow"))
	_, ok := r.ResolvedVirtualModel("slow")
	assert.False(t, ok)
}
