// Package servicedef defines the wire contract between the test harness and a platform parser.
//
// A parser is an executable file. The harness runs it twice per test run: once with no arguments
// as a liveness probe, and once with StructuredOutputFlag to drive the test cases. In the second
// run every line written to the parser's stdin is one JSON object, and the parser must answer
// each one with exactly one JSON object on its stdout before reading the next.
package servicedef

// StructuredOutputFlag is the only argument passed to the parser for the main run.
const StructuredOutputFlag = "--json"

// LivenessPayload is written to the parser's stdin during the liveness probe.
const LivenessPayload = "[]"

// ExitCodeNotExecutable is the exit status a shell reports when a file cannot be executed.
const ExitCodeNotExecutable = 126

// URLField is the input field every request must carry.
const URLField = "url"

// GrantedField is the expected-output field decoded as a boolean.
const GrantedField = "_granted"
