package parserproc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ezpaarse-project/parser-contract-tests/fixture"
	"github.com/ezpaarse-project/parser-contract-tests/framework"
	"github.com/ezpaarse-project/parser-contract-tests/internal/fakeparser"
	"github.com/ezpaarse-project/parser-contract-tests/match"

	helpers "github.com/launchdarkly/go-test-helpers/v3"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	fakeparser.RunIfRequested()
	os.Exit(m.Run())
}

type answeredCase struct {
	tc     fixture.TestCase
	actual ldvalue.Value
}

func fakeDriver(t *testing.T, mode string, extraEnv ...string) (*Driver, *framework.CapturingLogger) {
	if runtime.GOOS == "windows" {
		t.Skip("subprocess tests need a POSIX process model")
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	logger := &framework.CapturingLogger{}
	return &Driver{
		Path:   exe,
		Env:    append([]string{fakeparser.ModeVariable + "=" + mode}, extraEnv...),
		Logger: logger,
	}, logger
}

func makeCase(url string, line int, expected map[string]string) fixture.TestCase {
	out := ldvalue.ObjectBuild()
	for k, v := range expected {
		out.Set(k, ldvalue.String(v))
	}
	return fixture.TestCase{
		Input:    ldvalue.ObjectBuild().Set("url", ldvalue.String(url)).Build(),
		Expected: out.Build(),
		File:     "/platforms/realdeals/test/realdeals.2019-03-12.csv",
		Line:     line,
	}
}

func articleSuite() fixture.Suite {
	return fixture.Suite{
		makeCase("http://www.realdeals.eu.com/article/12345", 2,
			map[string]string{"rtype": "ARTICLE", "mime": "HTML", "title_id": "12345", "unitid": "article"}),
		makeCase("http://www.realdeals.eu.com/articles/category/deals", 3,
			map[string]string{"rtype": "TOC", "mime": "HTML", "title_id": "deals"}),
		makeCase("http://www.realdeals.eu.com/article/Some-Title-99", 4,
			map[string]string{"rtype": "ARTICLE", "title_id": "Some-Title-99"}),
	}
}

func runAndCollect(t *testing.T, d *Driver, suite fixture.Suite, timeout time.Duration) ([]answeredCase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var answers []answeredCase
	err := d.Run(ctx, suite, func(tc fixture.TestCase, actual ldvalue.Value) {
		answers = append(answers, answeredCase{tc, actual})
	})
	return answers, err
}

func readInvocations(t *testing.T, path string) string {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestRunFeedsEveryCaseInOrder(t *testing.T) {
	d, logger := fakeDriver(t, fakeparser.ModeArticle)
	suite := articleSuite()

	answers, err := runAndCollect(t, d, suite, time.Second*10)
	require.NoError(t, err)
	assert.Equal(t, StateDone, d.State())

	require.Len(t, answers, len(suite))
	for i, a := range answers {
		assert.Equal(t, suite[i].Line, a.tc.Line)
		assert.True(t, match.Satisfies(a.tc.Expected, a.actual), "case %d: %s", i, a.actual.JSONString())
	}

	var messages []string
	for _, m := range logger.Output() {
		messages = append(messages, m.Message)
	}
	assert.Contains(t, messages, "Sending: "+suite[0].Input.JSONString())
	assert.Contains(t, messages, "All 3 records answered, closing stdin")
}

func TestRunWithEmptySuiteMakesNoComparisons(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeArticle)

	answers, err := runAndCollect(t, d, nil, time.Second*10)
	require.NoError(t, err)
	assert.Len(t, answers, 0)
	assert.Equal(t, StateDone, d.State())
}

func TestLivenessProbeRunsBeforeMainRun(t *testing.T) {
	helpers.WithTempDir(func(dir string) {
		logPath := filepath.Join(dir, "invocations")
		d, _ := fakeDriver(t, fakeparser.ModeArticle, fakeparser.LogVariable+"="+logPath)

		_, err := runAndCollect(t, d, articleSuite(), time.Second*10)
		require.NoError(t, err)
		assert.Equal(t, "probe\nmain\n", readInvocations(t, logPath))
	})
}

func TestFailedProbePreventsMainRun(t *testing.T) {
	helpers.WithTempDir(func(dir string) {
		logPath := filepath.Join(dir, "invocations")
		d, _ := fakeDriver(t, fakeparser.ModeCrashProbe, fakeparser.LogVariable+"="+logPath)

		answers, err := runAndCollect(t, d, articleSuite(), time.Second*10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParserCrashed))
		assert.Contains(t, err.Error(), "exited with code 3")
		assert.Contains(t, err.Error(), "cannot find module")
		assert.Len(t, answers, 0)
		assert.Equal(t, StateFailed, d.State())
		assert.Equal(t, "probe\n", readInvocations(t, logPath))
	})
}

func TestProbeExitCode126MeansNotExecutable(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeNotExec)

	err := d.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParserNotExecutable))
}

func TestProbeOfFileWithoutExecutePermission(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes do not control execution on Windows")
	}
	helpers.WithTempDir(func(dir string) {
		path := filepath.Join(dir, "parser.js")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0644))
		d := &Driver{Path: path}

		answers, err := runAndCollect(t, d, articleSuite(), time.Second*10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParserNotExecutable), "got %s", err)
		assert.Len(t, answers, 0)
	})
}

func TestProbeOfMissingFile(t *testing.T) {
	helpers.WithTempDir(func(dir string) {
		d := &Driver{Path: filepath.Join(dir, "parser.js")}

		err := d.Probe(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParserCrashed))
		assert.Contains(t, err.Error(), "could not be started")
	})
}

func TestProbeTimeout(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeHangProbe)
	d.WaitDelay = time.Millisecond * 100

	started := time.Now()
	_, err := runAndCollect(t, d, articleSuite(), time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "liveness probe did not finish")
	assert.Less(t, time.Since(started), time.Second*5)
	assert.Equal(t, StateFailed, d.State())
}

func TestMainRunTimeout(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeHang)
	d.WaitDelay = time.Millisecond * 100

	started := time.Now()
	answers, err := runAndCollect(t, d, articleSuite(), time.Second*2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "main run did not finish")
	assert.Len(t, answers, 0)
	assert.Less(t, time.Since(started), time.Second*8)
	assert.Equal(t, StateFailed, d.State())
}

func TestPanicInHandlerLeavesDriverFailed(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeArticle)

	calls := 0
	assert.PanicsWithValue(t, "handler exploded", func() {
		_ = d.Run(context.Background(), articleSuite(), func(fixture.TestCase, ldvalue.Value) {
			calls++
			panic("handler exploded")
		})
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateFailed, d.State())
}

func TestCrashDuringMainRun(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeCrashRun)

	answers, err := runAndCollect(t, d, articleSuite(), time.Second*10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParserCrashed))
	assert.Contains(t, err.Error(), "main run exited with code 2")
	assert.Contains(t, err.Error(), "parser exploded")
	assert.Len(t, answers, 1)
	assert.Equal(t, StateFailed, d.State())
}

func TestParserThatStopsAnswering(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeSilent)

	answers, err := runAndCollect(t, d, articleSuite(), time.Second*10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParserCrashed))
	assert.Contains(t, err.Error(), "output ended after 0 of 3 records")
	assert.Len(t, answers, 0)
}

func TestExtraOutputIsProtocolViolation(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeExtraOutput)

	answers, err := runAndCollect(t, d, articleSuite()[:1], time.Second*10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.Len(t, answers, 1)
}

func TestMalformedOutputIsProtocolViolation(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeGarbage)

	answers, err := runAndCollect(t, d, articleSuite(), time.Second*10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.Contains(t, err.Error(), "realdeals.2019-03-12.csv:2")
	assert.Len(t, answers, 0)
}

func TestBlankOutputLinesAreIgnored(t *testing.T) {
	d, _ := fakeDriver(t, fakeparser.ModeBlankLines)

	answers, err := runAndCollect(t, d, articleSuite(), time.Second*10)
	require.NoError(t, err)
	assert.Len(t, answers, 3)
}

func TestMissingURLIsReportedBeforeSpawning(t *testing.T) {
	helpers.WithTempDir(func(dir string) {
		logPath := filepath.Join(dir, "invocations")
		d, _ := fakeDriver(t, fakeparser.ModeArticle, fakeparser.LogVariable+"="+logPath)
		suite := articleSuite()
		suite[1].Input = ldvalue.ObjectBuild().Set("domain", ldvalue.String("x")).Build()

		answers, err := runAndCollect(t, d, suite, time.Second*10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, fixture.ErrMissingURLField))
		assert.Contains(t, err.Error(), "realdeals.2019-03-12.csv:3")
		assert.Len(t, answers, 0)
		assert.Equal(t, "", readInvocations(t, logPath))
	})
}

func TestStderrIsForwardedToDebugLog(t *testing.T) {
	d, logger := fakeDriver(t, fakeparser.ModeArticle)

	_, err := runAndCollect(t, d, articleSuite()[:1], time.Second*10)
	require.NoError(t, err)

	var messages []string
	for _, m := range logger.Output() {
		messages = append(messages, m.Message)
	}
	assert.Contains(t, messages, "stderr: analysing http://www.realdeals.eu.com/article/12345")
}

func TestDescribeCommand(t *testing.T) {
	assert.Equal(t, "/platforms/real/parser.js --json", describeCommand([]string{"/platforms/real/parser.js", "--json"}))
	assert.Equal(t, "'/platforms/my deals/parser.js'", describeCommand([]string{"/platforms/my deals/parser.js"}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting liveness", StateAwaitingLiveness.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
