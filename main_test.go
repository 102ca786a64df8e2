package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ezpaarse-project/parser-contract-tests/framework"
	"github.com/ezpaarse-project/parser-contract-tests/platform"

	"github.com/fatih/color"
	helpers "github.com/launchdarkly/go-test-helpers/v3"
	"gopkg.in/yaml.v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportsEveryPlatform(t *testing.T) {
	helpers.WithTempDir(func(dir string) {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "noparser"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "noparser", "manifest.json"), []byte(`{"name":"noparser"}`), 0644))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "nomanifest"), 0755))
		reportPath := filepath.Join(dir, "out", "report.yaml")

		var out bytes.Buffer
		err := run(commandParams{
			platformsDir: dir,
			timeout:      time.Second * 5,
			layout:       platform.DefaultLayout(),
			reportPath:   reportPath,
			noColor:      true,
		}, &out)
		assert.Equal(t, errTestsFailed, err)

		text := out.String()
		assert.Contains(t, text, "[nomanifest]")
		assert.Contains(t, text, "FAILED: nomanifest")
		assert.Contains(t, text, "SKIPPED: noparser (no parser.js)")
		assert.Contains(t, text, "Ran 2 tests: 0 passed, 1 failed, 1 skipped")
		assert.Contains(t, text, "parser-contract-tests --dir "+dir+" --platform nomanifest --timeout 5s --debug")

		data, err := os.ReadFile(reportPath)
		require.NoError(t, err)
		var report framework.Report
		require.NoError(t, yaml.Unmarshal(data, &report))
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 1, report.Skipped)
		require.Len(t, report.Tests, 2)
		assert.Equal(t, "nomanifest", report.Tests[0].ID)
		assert.Equal(t, framework.StatusFailed, report.Tests[0].Status)
	})
}

func TestRunWithNoFailures(t *testing.T) {
	helpers.WithTempDir(func(dir string) {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "noparser"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "noparser", "manifest.json"), []byte(`{"name":"noparser"}`), 0644))

		var out bytes.Buffer
		err := run(commandParams{platformsDir: dir, timeout: time.Second, layout: platform.DefaultLayout(), noColor: true}, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "All tests passed")
	})
}

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestConsoleTestLogger(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	logger := &ConsoleTestLogger{Out: &out, DebugOutputOnFailure: true}
	id := framework.TestID{Path: []string{"realdeals"}}

	logger.TestStarted(id)
	logger.TestError(id, assert.AnError)
	logger.TestFinished(id, true, framework.CapturedOutput{{Message: "Sending: {}"}})
	logger.TestSkipped(framework.TestID{Path: []string{"wiley"}}, "")

	assert.Contains(t, out.String(), "[realdeals]\n")
	assert.Contains(t, out.String(), "  "+assert.AnError.Error()+"\n")
	assert.Contains(t, out.String(), "  FAILED: realdeals\n")
	assert.Contains(t, out.String(), "    DEBUG [")
	assert.Contains(t, out.String(), "] Sending: {}\n")
	assert.Contains(t, out.String(), "  SKIPPED: wiley\n")
}
