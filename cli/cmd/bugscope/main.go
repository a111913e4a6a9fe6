package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"bugscope/cli/internal/version"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUnreachable = 2
	exitBug         = 3
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	return execute(args, os.Stdin, os.Stdout, os.Stderr)
}

// execute runs the command tree with explicit streams so tests can capture output.
func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(errOut, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(errOut, "Details: %v\n", u)
		}
		return exitError
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bugscope",
		Short: "Heuristic and model-based bug detection for Python, Java and C++ snippets",
		Long: `bugscope sniffs a snippet's language, runs the language's rule catalog and,
when classifier model files are configured, scores the snippet with a baseline
and an improved tier and reports their consensus.`,
		Version: version.String(),
	}
	addGlobalFlags(rootCmd)
	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newRulesCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd
}
