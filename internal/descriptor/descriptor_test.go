package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadDecodesTasksInDeclaredOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, "cargorun.toml", `
[tasks.build]
command = "cargo"
args = ["build"]

[tasks.test]
dependencies = ["build"]
command = "cargo"
args = ["test"]
`)

	cfg, err := Load(path, nil, "", hclog.NewNullLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"build", "test"}, cfg.Tasks.Names())
	build, ok := cfg.Tasks.Get("build")
	require.True(t, ok)
	require.NotNil(t, build.Command)
	assert.Equal(t, "cargo", *build.Command)
	assert.Equal(t, []string{"build"}, build.Args)

	test, ok := cfg.Tasks.Get("test")
	require.True(t, ok)
	assert.Equal(t, []string{"build"}, test.Dependencies)
}

func TestLoadMergesExtendChainChildOverridesParent(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "base.toml", `
[env]
GREETING = "hello"

[tasks.build]
command = "cargo"
args = ["build"]
`)
	childPath := writeDescriptor(t, dir, "child.toml", `
extend = "base.toml"

[env]
GREETING = "overridden"

[tasks.build]
args = ["build", "--release"]
`)

	cfg, err := Load(childPath, nil, "", hclog.NewNullLogger())
	require.NoError(t, err)

	greeting, ok := cfg.Env.Get("GREETING")
	require.True(t, ok)
	assert.Equal(t, "overridden", greeting.Literal)

	build, ok := cfg.Tasks.Get("build")
	require.True(t, ok)
	assert.Equal(t, []string{"build", "--release"}, build.Args)
	require.NotNil(t, build.Command)
	assert.Equal(t, "cargo", *build.Command)
}

func TestLoadConcatenatesEnvFilesExtendedFirst(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "base.toml", `
env_files = ["base.env"]
`)
	childPath := writeDescriptor(t, dir, "child.toml", `
extend = "base.toml"
env_files = ["child.env"]
`)

	cfg, err := Load(childPath, nil, "", hclog.NewNullLogger())
	require.NoError(t, err)

	paths := make([]string, len(cfg.EnvFiles))
	for i, ref := range cfg.EnvFiles {
		paths[i] = ref.Path
	}
	assert.Equal(t, []string{"base.env", "child.env"}, paths)
}

func TestLoadWarnsOnUnknownTopLevelKey(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, "cargorun.toml", `
bogus_key = "nope"

[tasks.noop]
command = "true"
`)

	var warned []string
	logger := &capturingLogger{Logger: hclog.NewNullLogger(), warnings: &warned}
	_, err := Load(path, nil, "", logger)
	require.NoError(t, err)
	require.Len(t, warned, 1)
	assert.Contains(t, warned[0], "bogus_key")
}

func TestLoadRejectsToolVersionBelowMinVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, "cargorun.toml", `
[config]
min_version = "2.0.0"

[tasks.noop]
command = "true"
`)

	_, err := Load(path, nil, "1.0.0", hclog.NewNullLogger())
	require.Error(t, err)
	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, types.ErrMinVersion, flowErr.Kind)
}

func TestDecodeEnvValuePolymorphicShapes(t *testing.T) {
	m := map[string]interface{}{
		"literal": "text",
		"flag":    true,
		"count":   int64(3),
		"list":    []interface{}{"a", "b"},
		"scripted": map[string]interface{}{
			"script": []interface{}{"echo hi"},
		},
		"decoded": map[string]interface{}{
			"source":        "${PROFILE}",
			"default_value": "fallback",
			"mapping":       map[string]interface{}{"dev": "development"},
		},
		"gone": map[string]interface{}{
			"unset": true,
		},
	}

	lit := decodeEnvValue(m["literal"])
	assert.Equal(t, types.EnvValueLiteral, lit.Kind)
	assert.Equal(t, "text", lit.Literal)

	flag := decodeEnvValue(m["flag"])
	assert.Equal(t, types.EnvValueBool, flag.Kind)
	assert.True(t, flag.Bool)

	count := decodeEnvValue(m["count"])
	assert.Equal(t, types.EnvValueInt, count.Kind)
	assert.Equal(t, int64(3), count.Int)

	list := decodeEnvValue(m["list"])
	assert.Equal(t, types.EnvValueList, list.Kind)
	assert.Equal(t, []string{"a", "b"}, list.List)

	scripted := decodeEnvValue(m["scripted"])
	require.Equal(t, types.EnvValueScriptKind, scripted.Kind)
	assert.Equal(t, []string{"echo hi"}, scripted.Script.Lines)

	decoded := decodeEnvValue(m["decoded"])
	require.Equal(t, types.EnvValueDecodeKind, decoded.Kind)
	assert.Equal(t, "fallback", decoded.Decode.DefaultValue)
	assert.Equal(t, "development", decoded.Decode.Mapping["dev"])

	gone := decodeEnvValue(m["gone"])
	assert.Equal(t, types.EnvValueUnset, gone.Kind)
}

func TestDecodeInstallCrateShapeCascade(t *testing.T) {
	assert.Equal(t, types.InstallCrateEnabled, decodeInstallCrate(true).Kind)
	assert.Equal(t, types.InstallCrateName, decodeInstallCrate("cargo-watch").Kind)

	info := decodeInstallCrate(map[string]interface{}{
		"crate_name": "cargo-watch",
		"binary":     "cargo-watch",
		"min_version": "1.0.0",
	})
	require.Equal(t, types.InstallCrateInfoKind, info.Kind)
	assert.Equal(t, "cargo-watch", info.Info.CrateName)
}

func TestDecodeRunTaskShapeCascade(t *testing.T) {
	single := decodeRunTask("build")
	assert.Equal(t, types.RunTaskSingle, single.Kind)
	assert.Equal(t, "build", single.Name)

	details := decodeRunTask(map[string]interface{}{
		"name": []interface{}{"build", "test"},
		"fork": true,
	})
	require.Equal(t, types.RunTaskDetailsKind, details.Kind)
	assert.Equal(t, []string{"build", "test"}, details.Details.Names)
	assert.True(t, details.Details.Fork)

	routing := decodeRunTask([]interface{}{
		map[string]interface{}{
			"name": "build-linux",
			"condition": map[string]interface{}{
				"platforms": []interface{}{"linux"},
			},
		},
	})
	require.Equal(t, types.RunTaskRouting, routing.Kind)
	require.Len(t, routing.Routing, 1)
	assert.Equal(t, "build-linux", routing.Routing[0].Name)
	require.NotNil(t, routing.Routing[0].Condition)
	assert.Equal(t, []string{"linux"}, routing.Routing[0].Condition.Platforms)
}

func TestDecodeTaskRecursesIntoPlatformOverrides(t *testing.T) {
	m := map[string]interface{}{
		"command": "echo",
		"linux": map[string]interface{}{
			"args": []interface{}{"linux-only"},
		},
	}

	task, err := decodeTask(m, nil, "tasks.build")
	require.NoError(t, err)
	require.NotNil(t, task.Linux)
	assert.Equal(t, []string{"linux-only"}, task.Linux.Args)
}

type capturingLogger struct {
	hclog.Logger
	warnings *[]string
}

func (c *capturingLogger) Warn(msg string, args ...interface{}) {
	*c.warnings = append(*c.warnings, fmt.Sprint(append([]interface{}{msg}, args...)...))
}

func TestTaskEnvPreservesDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, "cargorun.toml", `
[tasks.build]
command = "echo"

[tasks.build.env]
ZULU = "z"
ALPHA = "a"
MID = "m"

[tasks.inline]
command = "echo"
env = { ZED = "z", AAA = "a" }
`)

	cfg, err := Load(path, nil, "", hclog.NewNullLogger())
	require.NoError(t, err)

	build, ok := cfg.Tasks.Get("build")
	require.True(t, ok)
	require.NotNil(t, build.Env)
	assert.Equal(t, []string{"ZULU", "ALPHA", "MID"}, build.Env.Keys())

	inline, ok := cfg.Tasks.Get("inline")
	require.True(t, ok)
	require.NotNil(t, inline.Env)
	assert.Equal(t, []string{"ZED", "AAA"}, inline.Env.Keys())
}
