// Package cmd is the command line of the engine.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
)

type rootOptions struct {
	configPath string
	debug      bool
}

// Highlight applies the heading color to the given format and arguments.
func Highlight(format string, a ...any) string {
	return color.RGB(229, 140, 50).Sprintf(format, a...)
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "framegraph",
		Short:         "Compile and run render graphs",
		Long:          Highlight("Usage: framegraph [global options] <subcommand> [args]\n") + "\nframegraph compiles render graphs into barrier plans and replays them\non a headless or a Vulkan device.\n",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			core.SetLogOutput(cmd.ErrOrStderr())
			if opts.debug {
				core.SetLogLevel(core.LogLevelDebug)
			}
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Set log level to debug")

	cmd.AddCommand(
		newPlanCommand(opts),
		newRunCommand(opts),
	)
	setUsageTemplate(cmd)
	return cmd
}

func setUsageTemplate(root *cobra.Command) {
	cobra.AddTemplateFunc("StyleHeading", color.RGB(229, 140, 50).SprintFunc())
	usageTemplate := strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(root.UsageTemplate())
	root.SetUsageTemplate(usageTemplate)
}

// loadConfig reads the configuration file, or the defaults without one.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	c := config.Default()
	if o.configPath != "" {
		var err error
		if c, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if !o.debug {
		core.SetLogLevel(c.Log.Level)
	}
	return c, nil
}

func Execute() {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		color.NoColor = true
	}
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func printKV(w io.Writer, key string, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", Highlight("%-12s", key+":"), fmt.Sprintf(format, a...))
}
