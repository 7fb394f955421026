package condition

import (
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSetAndFilesExistSkipsWhenFileMissing(t *testing.T) {
	t.Setenv("FOO", "1")
	dir := t.TempDir()

	c := &types.Condition{
		EnvSet:      []string{"FOO"},
		FilesExist:  []string{dir + "/missing.txt"},
		FailMessage: "nope",
	}
	ctx := DefaultContext()
	ctx.Cwd = dir

	result, err := Evaluate(c, ctx)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "nope", result.FailMessage)
}

func TestGroupOrPassesWhenOneGroupFullyPasses(t *testing.T) {
	c := &types.Condition{
		Type:      types.ConditionGroupOr,
		Platforms: []string{"does-not-exist"},
		OS:        []string{"linux"},
	}
	ctx := DefaultContext()
	ctx.OS = "linux"
	ctx.Platform = "mac"

	result, err := Evaluate(c, ctx)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestFilesModifiedEmptyListsAutoPass(t *testing.T) {
	ctx := DefaultContext()
	ctx.Cwd = t.TempDir()

	pass, err := validateFilesModified(&types.FilesModifiedCondition{}, ctx)
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestEnvTruePassesAndEnvFalseFailsForTruthyValue(t *testing.T) {
	t.Setenv("FLAG", "true")

	result, err := Evaluate(&types.Condition{EnvTrue: []string{"FLAG"}}, DefaultContext())
	require.NoError(t, err)
	assert.True(t, result.Pass)

	result, err = Evaluate(&types.Condition{EnvFalse: []string{"FLAG"}}, DefaultContext())
	require.NoError(t, err)
	assert.False(t, result.Pass)
}

func TestEnvFalsePassesForFalsyValue(t *testing.T) {
	t.Setenv("FLAG", "false")

	result, err := Evaluate(&types.Condition{EnvFalse: []string{"FLAG"}}, DefaultContext())
	require.NoError(t, err)
	assert.True(t, result.Pass)

	result, err = Evaluate(&types.Condition{EnvTrue: []string{"FLAG"}}, DefaultContext())
	require.NoError(t, err)
	assert.False(t, result.Pass)
}

func TestEnvContainsIsCaseInsensitive(t *testing.T) {
	t.Setenv("MSG", "Hello World")
	c := &types.Condition{EnvContains: map[string]string{"MSG": "hello"}}
	result, err := Evaluate(c, DefaultContext())
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestEnvExactMatchIsCaseSensitive(t *testing.T) {
	t.Setenv("MSG", "Hello")
	c := &types.Condition{Env: map[string]string{"MSG": "hello"}}
	result, err := Evaluate(c, DefaultContext())
	require.NoError(t, err)
	assert.False(t, result.Pass)
}
