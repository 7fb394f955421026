package cmd

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/cargorun/cargorun/internal/core"
	"github.com/cargorun/cargorun/internal/descriptor"
	"github.com/cargorun/cargorun/internal/ui"
	"github.com/cargorun/cargorun/internal/workspace"
)

// graphCommand renders the dependency graph of one task's execution plan
// in Graphviz dot format, a read-only view over an already-built plan.
func graphCommand(version string, f *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graph TASK",
		Short: "Print the execution plan's dependency graph in dot format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := ui.NewLogger(toolName, ui.Options{
				Level:     f.logLevel,
				Verbosity: f.verbose,
				NoColor:   f.noColor,
			})

			root, err := resolveCwd(f.cwd)
			if err != nil {
				return err
			}

			descriptorPath := f.makefile
			if descriptorPath == "" {
				descriptorPath = filepath.Join(root, workspace.DescriptorFileName)
			} else if expanded, expandErr := homedir.Expand(descriptorPath); expandErr == nil {
				descriptorPath = expanded
			}

			cfg, err := descriptor.Load(descriptorPath, nil, version, logger.Named("descriptor"))
			if err != nil {
				return err
			}

			plan, err := core.NewPlanner(cfg).Build(args[0], core.Options{
				Root:             root,
				DisableWorkspace: true,
				AllowPrivate:     true,
				SkipInitEndTasks: f.skipInitEndTasks,
				SkipTasksPattern: f.skipTasks,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.outputFile != "" {
				file, err := os.Create(f.outputFile)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			_, err = out.Write(plan.Dot())
			return err
		},
	}
}
