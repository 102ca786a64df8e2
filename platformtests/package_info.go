// Package platformtests contains the per-platform contract test and the suite runner that
// evaluates every platform directory.
//
// Harness infrastructure that is not specific to platforms, such as the test context, filters
// and result reporting, is in the lower-level framework package. The individual steps of a
// platform test are in the platform, fixture, parserproc and match packages.
package platformtests
