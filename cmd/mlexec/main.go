package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createValidateCommand(globalFlags),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "mlexec",
		Short: "Run a command and ship its multi-line output as batched records",
		Long: `mlexec runs one external command, groups its stdout into multi-line
records ended by a terminator string and delivers them in batches to a sink.

Examples:
  mlexec run --config mlexec.toml
  mlexec run --command "tail -F server.log" --terminator "|#]" --sink sqlite:///var/lib/mlexec.db
  mlexec validate --config mlexec.toml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createRunCommand(globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the source until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runFlags.ConfigPath = globalFlags.ConfigPath
			runFlags.changed = cmd.Flags().Changed
			return runSource(cmd.Context(), *runFlags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&runFlags.Command, "command", "", "command to run")
	cmd.Flags().StringVar(&runFlags.Terminator, "terminator", "", "suffix marking the last line of a record")
	cmd.Flags().BoolVar(&runFlags.Restart, "restart", false, "relaunch the command after it exits")
	cmd.Flags().Int64Var(&runFlags.RestartThrottle, "restart-throttle", 0, "delay in ms before relaunching")
	cmd.Flags().IntVar(&runFlags.BatchSize, "batch-size", 0, "records per batch")
	cmd.Flags().BoolVar(&runFlags.LogStderr, "log-stderr", false, "log every stderr line of the command")
	cmd.Flags().StringVar(&runFlags.SinkDSN, "sink", "", "sink DSN (stdout, file://, sqlite://, postgres://, clickhouse://, opensearch://)")
	cmd.Flags().StringVar(&runFlags.HTTPListen, "http", "", "listen address for /status, /healthz and /metrics")
	return cmd
}

func createValidateCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(globalFlags.ConfigPath, cmd.OutOrStdout())
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "mlexec", version)
		},
	}
}
