package core

import (
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func cmdTask(cmd string, deps ...string) *types.Task {
	return &types.Task{Command: strp(cmd), Dependencies: deps}
}

func newConfig(tasks map[string]*types.Task) *types.Config {
	ot := types.NewOrderedTasks()
	for _, name := range []string{"init", "build", "test", "clean", "end", "cyclic-a", "cyclic-b", "secret", "skip-me"} {
		if t, ok := tasks[name]; ok {
			ot.Set(name, t)
		}
	}
	return &types.Config{Tasks: ot, Env: types.NewOrderedEnv()}
}

func TestBuildOrdersDependenciesBeforeDependent(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"clean": cmdTask("rm"),
		"build": cmdTask("cargo", "clean"),
		"test":  cmdTask("cargo", "build"),
	})

	plan, err := NewPlanner(cfg).Build("test", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "build", "test"}, plan.Names())
}

func TestBuildDeduplicatesSharedDependency(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"clean": cmdTask("rm"),
		"build": cmdTask("cargo", "clean"),
		"test":  cmdTask("cargo", "clean", "build"),
	})

	plan, err := NewPlanner(cfg).Build("test", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "build", "test"}, plan.Names())
}

func TestBuildDetectsDependencyCycle(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"cyclic-a": cmdTask("a", "cyclic-b"),
		"cyclic-b": cmdTask("b", "cyclic-a"),
	})

	_, err := NewPlanner(cfg).Build("cyclic-a", Options{})
	require.Error(t, err)
	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, types.ErrConfigSemantic, flowErr.Kind)
}

func TestBuildInjectsInitAndEndTasks(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"init":  cmdTask("echo-init"),
		"build": cmdTask("cargo"),
		"end":   cmdTask("echo-end"),
	})
	cfg.Config.InitTask = strp("init")
	cfg.Config.EndTask = strp("end")

	plan, err := NewPlanner(cfg).Build("build", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "build", "end"}, plan.Names())
}

func TestBuildSkipsInitEndWhenRequested(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"init":  cmdTask("echo-init"),
		"build": cmdTask("cargo"),
		"end":   cmdTask("echo-end"),
	})
	cfg.Config.InitTask = strp("init")
	cfg.Config.EndTask = strp("end")

	plan, err := NewPlanner(cfg).Build("build", Options{SkipInitEndTasks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, plan.Names())
}

func TestBuildRejectsPrivateTaskAsDirectTarget(t *testing.T) {
	secret := cmdTask("ssh")
	secret.Private = boolp(true)
	cfg := newConfig(map[string]*types.Task{"secret": secret})

	_, err := NewPlanner(cfg).Build("secret", Options{})
	require.Error(t, err)

	plan, err := NewPlanner(cfg).Build("secret", Options{AllowPrivate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"secret"}, plan.Names())
}

func TestBuildAllowsPrivateTaskAsDependency(t *testing.T) {
	secret := cmdTask("ssh")
	secret.Private = boolp(true)
	cfg := newConfig(map[string]*types.Task{
		"secret": secret,
		"build":  cmdTask("cargo", "secret"),
	})

	plan, err := NewPlanner(cfg).Build("build", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"secret", "build"}, plan.Names())
}

func TestBuildSkipsDisabledTaskButWalksItsDependencies(t *testing.T) {
	disabled := cmdTask("noop", "clean")
	disabled.Disabled = boolp(true)
	cfg := newConfig(map[string]*types.Task{
		"clean": cmdTask("rm"),
		"build": disabled,
	})

	plan, err := NewPlanner(cfg).Build("build", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"clean"}, plan.Names())
}

func TestBuildSkipTasksPatternSkipsEmissionAndDependencyWalk(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"clean":    cmdTask("rm"),
		"skip-me":  cmdTask("cargo", "clean"),
		"build":    cmdTask("cargo", "skip-me"),
	})

	plan, err := NewPlanner(cfg).Build("build", Options{SkipTasksPattern: "^skip-"})
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, plan.Names())
}

func TestDotRendersGraphvizOutput(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"clean": cmdTask("rm"),
		"build": cmdTask("cargo", "clean"),
	})

	plan, err := NewPlanner(cfg).Build("build", Options{})
	require.NoError(t, err)
	dot := string(plan.Dot())
	assert.Contains(t, dot, "digraph")
}
