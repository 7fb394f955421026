// Package cmd is the CLI boundary: it translates flags into planner and
// runner options and maps flow errors to process exit codes. No planning,
// condition, env, or dispatch logic lives here.
package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/cargorun/cargorun/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "cargorun [flags] [TASK [ARG...]]",
	Short: "cargorun is a declarative task runner",
	Long: `A cross-platform task runner that executes declarative build and
development flows defined in cargorun.toml descriptor files.`,
}

// Execute parses argv, runs the selected command, and returns the process
// exit code: 0 on success, 1 on any failure including task exit
// propagation.
func Execute(version string) int {
	err := runCmd(version)
	if err == nil {
		return 0
	}

	var flowErr *types.FlowError
	if errors.As(err, &flowErr) {
		// the single-line failure report; subprocess stderr has already
		// been streamed through unchanged
		ui.BuildColoredUi(ui.Options{}, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr()).Error(flowErr.Error())
		return 1
	}

	ui.BuildColoredUi(ui.Options{}, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr()).Error(err.Error())
	return 1
}

func runCmd(version string) error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	flags := &runFlags{}
	flags.register(rootCmd)
	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return executeFlow(version, flags, args)
	}

	// descriptor keys use snake_case; accept the same spelling on flags
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(graphCommand(version, flags))

	return rootCmd.Execute()
}
