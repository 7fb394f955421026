package core

import (
	"os"
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReplacesStepWithWatchWrapper(t *testing.T) {
	watched := cmdTask("cargo")
	watched.Watch = &types.TaskWatchOptions{Enabled: true}
	cfg := newConfig(map[string]*types.Task{"build": watched})

	os.Unsetenv("CARGO_MAKE_DISABLE_WATCH")
	plan, err := NewPlanner(cfg).Build("build", Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.NotNil(t, plan.Steps[0].Config.Command)
	assert.Equal(t, "watchexec", *plan.Steps[0].Config.Command)
}

func TestBuildSkipsWatchWrapperWhenDisableWatchSet(t *testing.T) {
	watched := cmdTask("cargo")
	watched.Watch = &types.TaskWatchOptions{Enabled: true}
	cfg := newConfig(map[string]*types.Task{"build": watched})

	os.Setenv("CARGO_MAKE_DISABLE_WATCH", "TRUE")
	defer os.Unsetenv("CARGO_MAKE_DISABLE_WATCH")

	plan, err := NewPlanner(cfg).Build("build", Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "cargo", *plan.Steps[0].Config.Command)
}
