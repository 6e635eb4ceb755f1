package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

// two modules, "a" on the default path and "b" as an alternative
func testProcess() *Process {
	return &Process{
		ID:   "p",
		Name: "process",
		Modules: []*ProcessModule{
			{ID: "a", ProcessID: "p", Name: "module a"},
			{ID: "b", ProcessID: "p", Name: "module b"},
		},
		Pairings: []*ModulePairing{
			{ToModuleID: strp("a"), DefaultPath: true},
			{FromModuleID: strp("a"), DefaultPath: true},
			{ToModuleID: strp("b")},
			{FromModuleID: strp("b")},
		},
	}
}

func TestProcess_DefaultPath(t *testing.T) {
	path, err := testProcess().DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, path)
}

func TestProcess_ValidatePath(t *testing.T) {
	p := testProcess()
	assert.NoError(t, p.ValidatePath([]string{"a"}))
	assert.NoError(t, p.ValidatePath([]string{"b"}))

	err := p.ValidatePath(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no modules")

	err = p.ValidatePath([]string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot follow")

	err = p.ValidatePath([]string{"zzz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not part of")
}

func TestProcess_DefaultPathChain(t *testing.T) {
	p := &Process{
		Name:    "chain",
		Modules: []*ProcessModule{{ID: "x"}, {ID: "y"}},
		Pairings: []*ModulePairing{
			{ToModuleID: strp("x"), DefaultPath: true},
			{FromModuleID: strp("x"), ToModuleID: strp("y"), DefaultPath: true},
			{FromModuleID: strp("y"), DefaultPath: true},
		},
	}
	path, err := p.DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, path)
	assert.NoError(t, p.ValidatePath(path))

	err = p.ValidatePath([]string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot end")
}

func TestProcess_BrokenDefaultPath(t *testing.T) {
	p := &Process{Name: "broken", Modules: []*ProcessModule{{ID: "x"}}}
	_, err := p.DefaultPath()
	assert.Error(t, err)
}
