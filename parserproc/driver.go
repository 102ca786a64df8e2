// Package parserproc runs a platform parser as a subprocess and feeds it test cases.
//
// A run has two phases. The liveness probe starts the parser with no arguments, writes
// servicedef.LivenessPayload to its stdin and requires a zero exit status. The main run starts
// it again with servicedef.StructuredOutputFlag and exchanges one JSON line for one JSON line:
// the next input is never written before the answer to the previous one has been read.
package parserproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ezpaarse-project/parser-contract-tests/fixture"
	"github.com/ezpaarse-project/parser-contract-tests/framework"
	"github.com/ezpaarse-project/parser-contract-tests/servicedef"

	"github.com/alessio/shellescape"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const defaultWaitDelay = time.Second * 2

var (
	// ErrParserNotExecutable means the parser file could not be run as a program.
	ErrParserNotExecutable = errors.New("the parser is not executable")

	// ErrParserCrashed means the parser exited with a non-zero status, or stopped answering
	// before every test case was sent.
	ErrParserCrashed = errors.New("the parser crashed")

	// ErrProtocolViolation means the parser wrote something other than one JSON record per input.
	ErrProtocolViolation = errors.New("the parser broke the line protocol")
)

// State is the phase a Driver is in.
type State int

const (
	StateAwaitingLiveness State = iota
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingLiveness:
		return "awaiting liveness"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handler receives every test case together with the record the parser answered it with.
type Handler func(tc fixture.TestCase, actual ldvalue.Value)

// Driver runs one parser. A Driver is not safe for concurrent use.
type Driver struct {
	// Path is the parser entry point.
	Path string

	// Env is added to the harness's own environment.
	Env []string

	// Logger receives the command lines and every line exchanged with the parser.
	Logger framework.Logger

	// WaitDelay bounds how long to wait for the parser's pipes to close once it has been killed.
	WaitDelay time.Duration

	state State
}

// State returns the current phase of the driver.
func (d *Driver) State() State {
	return d.state
}

// Run runs the liveness probe and then the main run. The handler is called for every test case,
// in suite order, as soon as its answer has been read; it is never called concurrently.
//
// Cancelling ctx kills the parser. Whatever happens, the parser's stdin is closed and the
// process is reaped before Run returns.
func (d *Driver) Run(ctx context.Context, suite fixture.Suite, handler Handler) error {
	d.state = StateAwaitingLiveness
	if err := suite.Validate(); err != nil {
		d.state = StateFailed
		return err
	}
	if err := d.Probe(ctx); err != nil {
		d.state = StateFailed
		return err
	}

	d.state = StateRunning
	if err := d.runSuite(ctx, suite, handler); err != nil {
		d.state = StateFailed
		return err
	}
	d.state = StateDone
	return nil
}

// Probe runs the liveness probe.
func (d *Driver) Probe(ctx context.Context) error {
	cmd := d.command(ctx)
	stderr := newStderrCapture(d.logger())
	cmd.Stdin = strings.NewReader(servicedef.LivenessPayload)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	d.logger().Printf("Liveness probe: %s", describeCommand(cmd.Args))
	err := cmd.Run()
	if ctx.Err() != nil {
		return fmt.Errorf("liveness probe did not finish: %w", ctx.Err())
	}
	return exitError("liveness probe", err, stderr)
}

func (d *Driver) runSuite(ctx context.Context, suite fixture.Suite, handler Handler) error {
	cmd := d.command(ctx, servicedef.StructuredOutputFlag)
	stderr := newStderrCapture(d.logger())
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	d.logger().Printf("Main run: %s (%d records)", describeCommand(cmd.Args), len(suite))
	if err := cmd.Start(); err != nil {
		return exitError("main run", err, stderr)
	}

	finished := false
	defer func() {
		if !finished { // the handler panicked
			d.state = StateFailed
			_ = cmd.Process.Kill()
			_ = stdin.Close()
			_ = cmd.Wait()
		}
	}()

	// Reading stdout is the only thing that can block forever if the parser hangs, so the
	// deadline has to unblock it even if some child of the parser keeps the pipe open.
	stopWatching := context.AfterFunc(ctx, func() { _ = stdout.Close() })
	defer stopWatching()

	exchangeErr := exchange(stdin, stdout, suite, handler, d.logger())
	killed := false
	if errors.Is(exchangeErr, ErrProtocolViolation) {
		killed = cmd.Process.Kill() == nil
	}
	_ = stdin.Close()
	waitErr := cmd.Wait()
	finished = true

	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("main run did not finish: %w", ctx.Err())
	case waitErr != nil && !killed:
		return exitError("main run", waitErr, stderr)
	case exchangeErr != nil:
		return fmt.Errorf("%w%s", exchangeErr, stderr.suffix())
	}
	return nil
}

func (d *Driver) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, d.Path, args...)
	if len(d.Env) > 0 {
		cmd.Env = append(os.Environ(), d.Env...)
	}
	cmd.WaitDelay = d.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}
	return cmd
}

func (d *Driver) logger() framework.Logger {
	if d.Logger == nil {
		return framework.NullLogger()
	}
	return d.Logger
}

// exitError turns the result of starting or waiting for the parser into one of our errors.
func exitError(phase string, err error, stderr *stderrCapture) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		switch code {
		case servicedef.ExitCodeNotExecutable:
			return fmt.Errorf("%w (%s exited with code %d)%s", ErrParserNotExecutable, phase, code, stderr.suffix())
		case -1:
			return fmt.Errorf("%w: %s was terminated (%s)%s", ErrParserCrashed, phase, exitErr, stderr.suffix())
		default:
			return fmt.Errorf("%w: %s exited with code %d%s", ErrParserCrashed, phase, code, stderr.suffix())
		}
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.ENOEXEC) {
		return fmt.Errorf("%w: %s", ErrParserNotExecutable, err)
	}
	return fmt.Errorf("%w: %s could not be started: %s", ErrParserCrashed, phase, err)
}

func describeCommand(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}
