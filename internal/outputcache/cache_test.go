package outputcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestComputeKeyIsStableAndSensitiveToInputs(t *testing.T) {
	task := &types.Task{Command: strp("cargo"), Args: []string{"build"}, CacheOutputs: []string{"target/**"}}
	envA := env.VariableMap{"PROFILE": "release"}

	k1 := ComputeKey("build", task, envA, nil)
	k2 := ComputeKey("build", task, envA, nil)
	assert.Equal(t, k1, k2)

	k3 := ComputeKey("build", task, env.VariableMap{"PROFILE": "debug"}, nil)
	assert.NotEqual(t, k1, k3)

	k4 := ComputeKey("build", task, envA, []string{"dep-hash-1"})
	assert.NotEqual(t, k1, k4)
}

func TestPutThenRestoreRoundTripsFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "out.bin"), []byte("artifact"), 0o644))

	cacheDir := t.TempDir()
	c, err := Open(cacheDir)
	require.NoError(t, err)

	key := Key("test-key")
	require.NoError(t, c.Put(key, root, []string{"dist/**"}, "build log"))

	hit, err := c.Fetch(key)
	require.NoError(t, err)
	assert.True(t, hit)

	dest := t.TempDir()
	require.NoError(t, c.Restore(key, dest))
	restored, err := os.ReadFile(filepath.Join(dest, "dist", "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, "artifact", string(restored))

	log, err := c.ReplayLog(key)
	require.NoError(t, err)
	assert.Equal(t, "build log", log)
}

func TestFetchMissReportsFalseWithoutError(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	hit, err := c.Fetch(Key("never-written"))
	require.NoError(t, err)
	assert.False(t, hit)
}
