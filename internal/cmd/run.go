package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/cargorun/cargorun/internal/config"
	"github.com/cargorun/cargorun/internal/core"
	"github.com/cargorun/cargorun/internal/descriptor"
	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/outputcache"
	"github.com/cargorun/cargorun/internal/runner"
	"github.com/cargorun/cargorun/internal/runsummary"
	"github.com/cargorun/cargorun/internal/statefile"
	"github.com/cargorun/cargorun/internal/types"
	"github.com/cargorun/cargorun/internal/ui"
	"github.com/cargorun/cargorun/internal/workspace"
)

const (
	toolName       = "cargorun"
	defaultProfile = "development"
	defaultTask    = "default"

	updateCheckInterval = 24 * time.Hour
)

type runFlags struct {
	makefile         string
	task             string
	profile          string
	cwd              string
	noWorkspace      bool
	noOnError        bool
	allowPrivate     bool
	skipInitEndTasks bool
	skipTasks        string
	envFiles         []string
	envPairs         []string
	logLevel         string
	verbose          int
	noColor          bool
	printSteps       bool
	disableUpdates   bool
	experimental     bool
	outputFormat     string
	outputFile       string
	traceProfile     string
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&f.makefile, "makefile", "", "descriptor file to load (default "+workspace.DescriptorFileName+")")
	flags.StringVarP(&f.task, "task", "t", "", "task to run (overrides the positional TASK)")
	flags.StringVarP(&f.profile, "profile", "p", "", "profile name (default "+defaultProfile+")")
	flags.StringVar(&f.cwd, "cwd", "", "working directory for the flow")
	flags.BoolVar(&f.noWorkspace, "no-workspace", false, "disable workspace member fan-out")
	flags.BoolVar(&f.noOnError, "no-on-error", false, "disable the on_error task")
	flags.BoolVar(&f.allowPrivate, "allow-private", false, "allow invoking private tasks directly")
	flags.BoolVar(&f.skipInitEndTasks, "skip-init-end-tasks", false, "do not run the configured init and end tasks")
	flags.StringVar(&f.skipTasks, "skip-tasks", "", "skip tasks matching this regex")
	flags.StringArrayVar(&f.envFiles, "env-file", nil, "env file to load before the flow (repeatable)")
	flags.StringArrayVar(&f.envPairs, "env", nil, "KEY=VALUE to set before the flow (repeatable)")
	flags.StringVarP(&f.logLevel, "loglevel", "l", "", "log level: trace, debug, info, warn, error")
	flags.CountVarP(&f.verbose, "verbose", "v", "increase log verbosity")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&f.printSteps, "print-steps", false, "print the execution plan instead of running it")
	flags.BoolVar(&f.disableUpdates, "disable-check-for-updates", false, "skip the update-check handshake")
	flags.BoolVar(&f.experimental, "experimental", false, "enable experimental features")
	flags.StringVar(&f.outputFormat, "output-format", "", "summary output format")
	flags.StringVar(&f.outputFile, "output-file", "", "also write flow output to this file")
	flags.StringVar(&f.traceProfile, "trace-profile", "", "write a chrome trace of the flow to this file")
}

func executeFlow(version string, f *runFlags, args []string) error {
	start := time.Now()

	toolCfgPath, err := config.UserConfigPath(toolName)
	if err != nil {
		return err
	}
	toolCfg, err := config.ReadToolConfigFile(toolCfgPath)
	if err != nil {
		return err
	}

	uiOpts := ui.Options{
		Level:     firstNonEmpty(f.logLevel, toolCfg.LogLevel),
		Verbosity: f.verbose,
		NoColor:   f.noColor || toolCfg.NoColor,
	}
	logger := ui.NewLogger(toolName, uiOpts)
	terminal := ui.BuildColoredUi(uiOpts, os.Stdout, os.Stderr)

	if !f.disableUpdates && !toolCfg.DisableUpdateCheck {
		touchUpdateCheckState(logger)
	}

	root, err := resolveCwd(f.cwd)
	if err != nil {
		return err
	}

	for _, pair := range f.envPairs {
		k, v, ok := splitEnvPair(pair)
		if !ok {
			return fmt.Errorf("malformed --env value %q, expected KEY=VALUE", pair)
		}
		if err := os.Setenv(k, env.Expand(v, os.LookupEnv)); err != nil {
			return err
		}
	}
	for _, file := range f.envFiles {
		if err := applyEnvFile(file, root); err != nil {
			return err
		}
	}

	descriptorPath := f.makefile
	if descriptorPath == "" {
		descriptorPath = filepath.Join(root, workspace.DescriptorFileName)
	} else if expanded, err := homedir.Expand(descriptorPath); err == nil {
		descriptorPath = expanded
	}

	cfg, err := descriptor.Load(descriptorPath, nil, version, logger.Named("descriptor"))
	if err != nil {
		return err
	}

	taskName := f.task
	if taskName == "" && len(args) > 0 {
		taskName = args[0]
		args = args[1:]
	}
	if taskName == "" {
		taskName, err = pickTask(cfg, f.allowPrivate)
		if err != nil {
			return err
		}
	}

	profile := firstNonEmpty(f.profile, toolCfg.Profile, defaultProfile)

	planner := core.NewPlanner(cfg)
	plan, err := planner.Build(taskName, core.Options{
		Root:             root,
		DisableWorkspace: f.noWorkspace,
		AllowPrivate:     f.allowPrivate,
		SkipInitEndTasks: f.skipInitEndTasks,
		SkipTasksPattern: f.skipTasks,
	})
	if err != nil {
		return err
	}

	if f.printSteps {
		for _, step := range plan.Steps {
			terminal.Output(step.Name)
		}
		return nil
	}

	summary := runsummary.NewRunState(start, f.traceProfile)
	logger.Debug("starting flow", "flow_id", summary.FlowID, "task", taskName, "profile", profile)

	stdout, flush, err := buildFlowOutput(f, cfg, taskName, uiOpts)
	if err != nil {
		return err
	}

	cache, err := openOutputCache(toolCfg)
	if err != nil {
		logger.Warn("output cache unavailable", "error", err)
	}

	run := runner.New(runner.Config{
		Cfg:            cfg,
		Stdout:         stdout,
		Stderr:         os.Stderr,
		Profile:        profile,
		Root:           root,
		TaskArgs:       args,
		DisableOnError: f.noOnError,
		Summary:        summary,
		Cache:          cache,
	})
	run.PublishAmbientEnv(taskName)

	flowErr := run.ApplyFlowEnv()
	if flowErr == nil {
		flowErr = run.RunPlan(plan)
	}
	flush(flowErr)

	if printTimeSummary(f) {
		if err := summary.FormatAndPrintText(terminal); err != nil {
			logger.Warn("printing step summary failed", "error", err)
		}
		if err := summary.Close(terminal); err != nil {
			logger.Warn("closing run summary failed", "error", err)
		}
	} else if f.traceProfile != "" {
		if err := summary.Close(terminal); err != nil {
			logger.Warn("closing run summary failed", "error", err)
		}
	}

	return flowErr
}

// buildFlowOutput decides where step output streams: the terminal by
// default; a buffer (replayed only on failure, spinner shown meanwhile)
// when the descriptor asks for reduced output; plus a tee into
// --output-file when given. The returned flush must be called once with
// the flow's outcome.
func buildFlowOutput(f *runFlags, cfg *types.Config, taskName string, uiOpts ui.Options) (io.Writer, func(flowErr error), error) {
	writers := []io.Writer{}

	var buffered *bytes.Buffer
	reduce := cfg.Config.ReduceOutput != nil && *cfg.Config.ReduceOutput
	if reduce {
		buffered = &bytes.Buffer{}
		writers = append(writers, buffered)
	} else {
		writers = append(writers, os.Stdout)
	}

	var outFile *os.File
	if f.outputFile != "" {
		expanded, err := homedir.Expand(f.outputFile)
		if err != nil {
			expanded = f.outputFile
		}
		file, err := os.Create(expanded)
		if err != nil {
			return nil, nil, err
		}
		outFile = file
		writers = append(writers, file)
	}

	spinner := ui.NewSpinner(taskName, uiOpts)
	if reduce && spinner != nil {
		spinner.Start()
	}

	flush := func(flowErr error) {
		if spinner != nil {
			spinner.Stop()
		}
		if buffered != nil && flowErr != nil {
			// surface what the failed flow printed
			_, _ = io.Copy(os.Stdout, bytes.NewReader(buffered.Bytes()))
		}
		if outFile != nil {
			_ = outFile.Close()
		}
	}

	if len(writers) == 1 {
		return writers[0], flush, nil
	}
	return io.MultiWriter(writers...), flush, nil
}

// pickTask selects the task to run when none was named: the default task
// when one is defined, otherwise interactively when attached to a
// terminal; without a terminal it returns an error.
func pickTask(cfg *types.Config, allowPrivate bool) (string, error) {
	if _, ok := cfg.Tasks.Get(defaultTask); ok {
		return defaultTask, nil
	}
	if !ui.IsTTY(os.Stdin) || !ui.IsTTY(os.Stdout) {
		return "", fmt.Errorf("no task given and no %q task defined", defaultTask)
	}

	var options []string
	for _, name := range cfg.Tasks.Names() {
		task, _ := cfg.Tasks.Get(name)
		if task == nil {
			continue
		}
		if !allowPrivate && task.Private != nil && *task.Private {
			continue
		}
		options = append(options, name)
	}
	if len(options) == 0 {
		return "", fmt.Errorf("descriptor defines no invocable tasks")
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select a task to run:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

// touchUpdateCheckState stamps the update-check statefile when a check is
// due. The network check itself belongs to an external updater; this only
// maintains the handshake file it reads.
func touchUpdateCheckState(logger interface {
	Debug(string, ...interface{})
	Warn(string, ...interface{})
}) {
	path, err := statefile.Path(toolName)
	if err != nil {
		logger.Warn("resolving update-check state path failed", "error", err)
		return
	}
	due, err := statefile.ShouldCheck(path, time.Now(), updateCheckInterval)
	if err != nil || !due {
		return
	}
	if err := statefile.RecordCheck(path, time.Now()); err != nil {
		logger.Warn("recording update check failed", "error", err)
		return
	}
	logger.Debug("update check recorded", "path", path)
}

func openOutputCache(toolCfg *config.ToolConfig) (*outputcache.Cache, error) {
	dir := toolCfg.CacheDir
	if dir == "" {
		resolved, err := outputcache.DefaultDir(toolName)
		if err != nil {
			return nil, err
		}
		dir = resolved
	}
	return outputcache.Open(dir)
}

func resolveCwd(flag string) (string, error) {
	if flag == "" {
		return os.Getwd()
	}
	expanded, err := homedir.Expand(flag)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	if err := os.Chdir(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func applyEnvFile(path, root string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	table, err := env.LoadEnvFile(path)
	if err != nil {
		return err
	}
	for _, key := range table.Keys() {
		v, _ := table.Get(key)
		if err := os.Setenv(key, v.Literal); err != nil {
			return err
		}
	}
	return nil
}

func printTimeSummary(f *runFlags) bool {
	if f.outputFormat == "summary" {
		return true
	}
	return os.Getenv("CARGO_MAKE_PRINT_TIME_SUMMARY") == "TRUE"
}

func splitEnvPair(pair string) (key, value string, ok bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			return pair[:i], pair[i+1:], i > 0
		}
	}
	return "", "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
