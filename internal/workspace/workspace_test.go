package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkMember(t *testing.T, root, name string) string {
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFileName), []byte("[tasks.build]\ncommand = \"true\"\n"), 0644))
	return dir
}

func TestDiscoverReturnsNilWithoutWorkspaceConfig(t *testing.T) {
	root := t.TempDir()
	members, err := Discover(root, &types.Config{})
	require.NoError(t, err)
	assert.Nil(t, members)
}

func TestDiscoverMatchesGlobsAndRequiresDescriptor(t *testing.T) {
	root := t.TempDir()
	m1 := mkMember(t, root, "packages/a")
	m2 := mkMember(t, root, "packages/b")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages", "no-descriptor"), 0755))

	cfg := &types.Config{Config: types.ConfigSection{Workspace: &types.WorkspaceConfig{
		Members: []string{"packages/*"},
	}}}

	members, err := Discover(root, cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m1, m2}, members)
}

func TestDiscoverAppliesGitignoreStyleExclude(t *testing.T) {
	root := t.TempDir()
	keep := mkMember(t, root, "packages/keep")
	mkMember(t, root, "packages/skip-ignored")

	cfg := &types.Config{Config: types.ConfigSection{Workspace: &types.WorkspaceConfig{
		Members: []string{"packages/*"},
		Exclude: []string{"packages/skip-ignored"},
	}}}

	members, err := Discover(root, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, members)
}
