// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of contract tests.
//
// The general model is:
//
// 1. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results. A Context implements require.TestingT, so assertions from the
// testify assert and require packages can be used directly.
//
// 2. Every test gets its own capturing debug logger. Its output is handed to the TestLogger
// when the test finishes, so that the console output can show it for failed tests only.
//
// 3. Results are accumulated in a Results value that can be printed as a summary or written
// out as a report.
//
// The domain-specific code that knows what is being tested is responsible for running the
// implementation under test and providing a domain-specific test API on top of the test context.
package framework
