// gamecheck - compliance scanner and fixer for self-contained HTML games
//
// Commands:
//   report          Scan games, gate, and write the run record
//   fix             Apply fixes with backups, then re-verify
//   rollback        Restore an artifact from a backup
//   history         List recorded runs
//   watch           Re-run report whenever a game changes
//   doctor          Run readiness checks
//   parity          Compare a scan against recorded expectations
//   verify-cert     Verify a run certificate
//   support-bundle  Zip the latest evidence for troubleshooting
//   serve           Start the MCP server on stdio
//   version         Show version information

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

// exitError carries a non-zero exit code without an error message, used
// when a command completed but its verdict failed.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var globalFlags struct {
	configPath string
	workspace  string
	logLevel   string
	jsonLogs   bool
	noColor    bool
}

// logOutput receives structured logs; execute points it at its stderr.
var logOutput io.Writer = os.Stderr

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gamecheck",
		Short:         "Compliance scanner and fixer for HTML games",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&globalFlags.configPath, "config", "", "config file (default <workspace>/gamecheck.yml when present)")
	pf.StringVar(&globalFlags.workspace, "workspace", "", "workspace root")
	pf.StringVar(&globalFlags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&globalFlags.jsonLogs, "json-logs", false, "emit logs as JSON")
	pf.BoolVar(&globalFlags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newReportCmd(),
		newFixCmd(),
		newRollbackCmd(),
		newHistoryCmd(),
		newWatchCmd(),
		newDoctorCmd(),
		newParityCmd(),
		newVerifyCertCmd(),
		newSupportBundleCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gamecheck %s (built %s)\n", Version, BuildDate)
		},
	}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	logOutput = stderr
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "ERROR: %v\n", err)
	return 1
}
