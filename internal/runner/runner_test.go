package runner

import (
	"bytes"
	"testing"
	"time"

	"github.com/cargorun/cargorun/internal/core"
	"github.com/cargorun/cargorun/internal/runsummary"
	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{values: map[string]string{}} }

func (f *fakeStore) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeStore) Set(key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeStore) Unset(key string) error {
	delete(f.values, key)
	return nil
}

func newConfig(tasks map[string]*types.Task) *types.Config {
	ot := types.NewOrderedTasks()
	for _, name := range []string{"build", "fail", "ignore-fail", "on-error", "gated", "installable"} {
		if t, ok := tasks[name]; ok {
			ot.Set(name, t)
		}
	}
	return &types.Config{Tasks: ot, Env: types.NewOrderedEnv()}
}

func newRunner(cfg *types.Config, store *fakeStore, stdout, stderr *bytes.Buffer) *Runner {
	return New(Config{
		Cfg: cfg, Store: store, Stdout: stdout, Stderr: stderr,
		Root: "/tmp", TaskArgs: nil,
	})
}

func buildAndRun(t *testing.T, cfg *types.Config, root string, r *Runner) error {
	plan, err := core.NewPlanner(cfg).Build(root, core.Options{Root: "/tmp", DisableWorkspace: true})
	require.NoError(t, err)
	return r.RunPlan(plan)
}

func TestRunStepExecutesCommandAndStreamsOutput(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"build": {Command: strp("echo"), Args: []string{"hello"}},
	})
	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, newFakeStore(), &stdout, &stderr)

	err := buildAndRun(t, cfg, "build", r)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "hello")
}

func TestRunStepPropagatesNonZeroExitAsFlowError(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"fail": {Command: strp("sh"), Args: []string{"-c", "exit 3"}},
	})
	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, newFakeStore(), &stdout, &stderr)

	err := buildAndRun(t, cfg, "fail", r)
	require.Error(t, err)
	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, types.ErrStepExit, flowErr.Kind)
	assert.Equal(t, 3, flowErr.ExitCode)
}

func TestRunStepIgnoresErrorsWhenConfigured(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"ignore-fail": {Command: strp("sh"), Args: []string{"-c", "exit 1"}, IgnoreErrors: boolp(true)},
	})
	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, newFakeStore(), &stdout, &stderr)

	err := buildAndRun(t, cfg, "ignore-fail", r)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "ignored")
}

func TestRunStepInvokesOnErrorTaskBeforeFailing(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"fail":     {Command: strp("sh"), Args: []string{"-c", "exit 1"}},
		"on-error": {Command: strp("echo"), Args: []string{"cleanup-ran"}},
	})
	cfg.Config.OnErrorTask = strp("on-error")

	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, newFakeStore(), &stdout, &stderr)

	err := buildAndRun(t, cfg, "fail", r)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "cleanup-ran")
}

func TestRunStepSkipsActionWhenConditionFails(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"gated": {
			Command:   strp("echo"),
			Args:      []string{"should-not-run"},
			Condition: &types.Condition{Platforms: []string{"does-not-exist"}},
		},
	})
	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, newFakeStore(), &stdout, &stderr)

	err := buildAndRun(t, cfg, "gated", r)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
}

func TestRunStepSkipsInstallWhenBinaryAlreadyProbes(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"installable": {
			Command:      strp("echo"),
			Args:         []string{"ran"},
			InstallCrate: &types.InstallCrate{Kind: types.InstallCrateName, Name: "sh"},
		},
	})
	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, newFakeStore(), &stdout, &stderr)

	err := buildAndRun(t, cfg, "installable", r)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "ran")
}

func TestPublishAmbientEnvSetsFlowVariables(t *testing.T) {
	cfg := newConfig(nil)
	store := newFakeStore()
	r := New(Config{Cfg: cfg, Store: store, Profile: "ci", Root: "/work", TaskArgs: []string{"a", "b"}})

	r.PublishAmbientEnv("build")

	assert.Equal(t, "true", store.values["CARGO_MAKE"])
	assert.Equal(t, "build", store.values["CARGO_MAKE_TASK"])
	assert.Equal(t, "a;b", store.values["CARGO_MAKE_TASK_ARGS"])
	assert.Equal(t, "ci", store.values["CARGO_MAKE_PROFILE"])
	assert.Equal(t, "/work", store.values["CARGO_MAKE_WORKING_DIRECTORY"])
}

func TestRunStepSetsAndRestoresCurrentTaskNameMarker(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"build": {Command: strp("true")},
	})
	store := newFakeStore()
	store.values["CARGO_MAKE_CURRENT_TASK_NAME"] = "outer"
	var stdout, stderr bytes.Buffer
	r := newRunner(cfg, store, &stdout, &stderr)
	r.store = store

	err := buildAndRun(t, cfg, "build", r)
	require.NoError(t, err)
	assert.Equal(t, "outer", store.values["CARGO_MAKE_CURRENT_TASK_NAME"])
}

func TestApplyFlowEnvMaterializesConfigEnv(t *testing.T) {
	cfg := newConfig(nil)
	cfg.Env.Set("C", types.EnvValue{Kind: types.EnvValueLiteral, Literal: "3"})
	cfg.Env.Set("B", types.EnvValue{Kind: types.EnvValueLiteral, Literal: "${C}-2"})
	cfg.Env.Set("A", types.EnvValue{Kind: types.EnvValueLiteral, Literal: "${B}-1"})

	store := newFakeStore()
	r := New(Config{Cfg: cfg, Store: store, Root: "/tmp"})

	require.NoError(t, r.ApplyFlowEnv())
	assert.Equal(t, "3", store.values["C"])
	assert.Equal(t, "3-2", store.values["B"])
	assert.Equal(t, "3-2-1", store.values["A"])
}

func TestRunStepRecordsOutcomesInSummary(t *testing.T) {
	cfg := newConfig(map[string]*types.Task{
		"build": {Command: strp("true")},
		"gated": {Command: strp("true"), Condition: &types.Condition{Platforms: []string{"does-not-exist"}}},
	})
	summary := runsummary.NewRunState(time.Now(), "")
	var stdout, stderr bytes.Buffer
	r := New(Config{
		Cfg: cfg, Store: newFakeStore(), Stdout: &stdout, Stderr: &stderr,
		Root: "/tmp", Summary: summary,
	})

	require.NoError(t, buildAndRun(t, cfg, "build", r))
	require.NoError(t, buildAndRun(t, cfg, "gated", r))

	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failure)
}
