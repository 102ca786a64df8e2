package platformtests

import (
	"github.com/ezpaarse-project/parser-contract-tests/framework"
)

// T represents a test or subtest in the platform test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner, and with debug logging that is passed on to the TestLogger. To
// make test assertions, use the assert and require packages, passing the *T as if it were a
// *testing.T.
type T struct {
	context *framework.Context
	config  Config
}

func newTestScope(context *framework.Context, config Config) *T {
	return &T{context: context, config: config}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(newTestScope(c, t.config))
	})
}

// SkipWithReason stops the test and reports it as skipped. A skipped test counts as passed.
func (t *T) SkipWithReason(reason string) {
	t.context.SkipWithReason(reason)
}

// Failed returns true if any failure has been recorded for this test.
func (t *T) Failed() bool {
	return t.context.Failed()
}

// Defer schedules a function to be called when the test ends, however it ends.
func (t *T) Defer(fn func()) {
	t.context.Defer(fn)
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// DebugLogger returns a Logger that writes to the test's debug output.
func (t *T) DebugLogger() framework.Logger {
	return t.context.DebugLogger()
}
