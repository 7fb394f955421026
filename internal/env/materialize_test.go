package env

import (
	"os"
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noLookup(string) (string, bool) { return "", false }

func TestExpandArgsStandaloneMarkerJoinsArguments(t *testing.T) {
	sep := string(os.PathListSeparator)

	out := ExpandArgs("${@}", noLookup, []string{"a", "b"})
	assert.Equal(t, []string{"a" + sep + "b"}, out)
}

func TestExpandArgsStandaloneMarkerDroppedWithoutArguments(t *testing.T) {
	assert.Empty(t, ExpandArgs("${@}", noLookup, nil))
}

func TestExpandArgsEmbeddedMarkerDuplicatesPerArgument(t *testing.T) {
	out := ExpandArgs("-o=${@}", noLookup, []string{"a", "b"})
	assert.Equal(t, []string{"-o=a", "-o=b"}, out)
}

func TestExpandResolvesMarkerThroughArgsLookup(t *testing.T) {
	sep := string(os.PathListSeparator)
	lookup := ArgsLookup(noLookup, []string{"a", "b"})

	assert.Equal(t, "args="+"a"+sep+"b", Expand("args=${@}", lookup))
	// without an args-aware lookup the marker stays literal
	assert.Equal(t, "args=${@}", Expand("args=${@}", noLookup))
}

func TestOverlayExpandsMarkerInEnvValues(t *testing.T) {
	sep := string(os.PathListSeparator)
	merged := types.NewOrderedEnv()
	merged.Set("TASK_ARGS", types.EnvValue{Kind: types.EnvValueLiteral, Literal: "${@}"})

	fake := &fakeStore{values: map[string]string{}}
	require.NoError(t, Overlay(fake, merged, "", nil, []string{"x", "y"}))
	assert.Equal(t, "x"+sep+"y", fake.values["TASK_ARGS"])
}
