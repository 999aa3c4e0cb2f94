// Command dnetui is the terminal console for a dnet inference cluster.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the command-line flags. Flags that were not given leave the
// loaded config untouched.
type options struct {
	configPath  string
	logFile     string
	logLevel    string
	tick        time.Duration
	strict      bool
	metricsAddr string
	traceFile   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "dnetui",
		Short: "Terminal console for a dnet cluster",
		Long: `dnetui shows the devices, topology and loaded model of a dnet cluster
and lets you load or unload models and edit the client settings.

Configuration is read from ~/.dria/dnet/dnetui.yaml, then ./dnetui.yaml,
then DNETUI_* environment variables. Flags win over all of them.

Examples:
  dnetui                                  # Connect to 127.0.0.1:8080
  dnetui --config ./cluster.yaml          # Use a specific config file
  dnetui --metrics-addr 127.0.0.1:9464    # Expose engine metrics`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: search ~/.dria/dnet then ./)")
	f.StringVar(&opts.logFile, "log-file", "", "Diagnostic log file (default ~/.dria/dnet/dnetui.log)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.DurationVar(&opts.tick, "tick", 0, "Tick interval, e.g. 100ms")
	f.BoolVar(&opts.strict, "strict", false, "End the run on a rejected view transition")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.traceFile, "trace-file", "", "Write OpenTelemetry spans as JSON to this file")
	return cmd
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	code := exitCodeForError(err)
	if err != nil && code != exitInterrupted {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}
