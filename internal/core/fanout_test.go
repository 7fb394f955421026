package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmitsWorkspaceFanOutStep(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b"} {
		dir := filepath.Join(root, "packages", name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cargorun.toml"), []byte("[tasks.build]\ncommand=\"true\"\n"), 0644))
	}

	cfg := newConfig(map[string]*types.Task{"build": cmdTask("cargo")})
	cfg.Config.Workspace = &types.WorkspaceConfig{Members: []string{"packages/*"}}

	plan, err := NewPlanner(cfg).Build("build", Options{Root: root})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "build::workspace", plan.Steps[0].Name)
	require.NotNil(t, plan.Steps[0].Config.Script)
	script := plan.Steps[0].Config.Script.Lines
	joined := ""
	for _, l := range script {
		joined += l + "\n"
	}
	assert.Contains(t, joined, "packages/a")
	assert.Contains(t, joined, "packages/b")
}

func TestBuildSkipsWorkspaceFanOutWhenDisabled(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "packages", "a")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cargorun.toml"), []byte("[tasks.build]\ncommand=\"true\"\n"), 0644))

	cfg := newConfig(map[string]*types.Task{"build": cmdTask("cargo")})
	cfg.Config.Workspace = &types.WorkspaceConfig{Members: []string{"packages/*"}}

	plan, err := NewPlanner(cfg).Build("build", Options{Root: root, DisableWorkspace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, plan.Names())
}

func TestBuildSkipsWorkspaceFanOutWhenTaskOptsOut(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "packages", "a")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cargorun.toml"), []byte("[tasks.build]\ncommand=\"true\"\n"), 0644))

	noFanOut := cmdTask("cargo")
	f := false
	noFanOut.Workspace = &f
	cfg := newConfig(map[string]*types.Task{"build": noFanOut})
	cfg.Config.Workspace = &types.WorkspaceConfig{Members: []string{"packages/*"}}

	plan, err := NewPlanner(cfg).Build("build", Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, plan.Names())
}
