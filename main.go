package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ezpaarse-project/parser-contract-tests/framework"
	"github.com/ezpaarse-project/parser-contract-tests/platformtests"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const programName = "parser-contract-tests"

var errTestsFailed = errors.New("some platforms failed their tests")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var filters framework.RegexFilters
	cmd := &cobra.Command{
		Use:   programName,
		Short: "Check ezPAARSE platform parsers against their test fixtures",
		Long: `Runs the parser of every platform directory against the test cases in its
fixture files, and reports one verdict per platform.

Each parser is first started with no arguments and "[]" on its standard input, and
must exit successfully. It is then started with --json and sent one test case input
per line; every line it answers with must match the expected output of that test case.

Settings can also be given as EZPAARSE_<FLAG> environment variables or in a
.parser-tests.yaml file in the platforms directory.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(cmd.Flags(), filters)
			if err != nil {
				return err
			}
			return run(params, cmd.OutOrStdout())
		},
	}
	addFlags(cmd.Flags(), &filters)
	return cmd
}

func run(params commandParams, out io.Writer) error {
	if params.noColor {
		color.NoColor = true
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(out, "", log.LstdFlags)
	}
	if params.configFile != "" {
		mainDebugLogger.Printf("Using config file %s", params.configFile)
	}
	mainDebugLogger.Printf("Platforms directory: %s, timeout per platform: %s", params.platformsDir, params.timeout)

	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters)

	fmt.Fprintln(out, "Running platform tests")

	testLogger := &ConsoleTestLogger{
		Out:                  out,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	startedAt := time.Now()
	results, err := platformtests.RunTestSuite(params.suiteConfig(), params.filters.AsFilter, testLogger)
	if err != nil {
		return fmt.Errorf("cannot list platforms: %w", err)
	}

	fmt.Fprintln(out)
	framework.PrintResults(out, results)

	if params.reportPath != "" {
		if err := writeReport(params.reportPath, framework.NewReport(results, startedAt, time.Since(startedAt))); err != nil {
			return err
		}
		mainDebugLogger.Printf("Wrote report to %s", params.reportPath)
	}

	if !results.OK() {
		fmt.Fprintln(out, "\nTo test a failed platform again:")
		for _, f := range results.Failures {
			fmt.Fprintf(out, "  %s\n", params.rerunCommand(programName, f.TestID.String()))
		}
		return errTestsFailed
	}
	return nil
}

func writeReport(path string, report framework.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
