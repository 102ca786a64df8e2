package parserproc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ezpaarse-project/parser-contract-tests/fixture"
	"github.com/ezpaarse-project/parser-contract-tests/framework"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const maxLineSize = 1024 * 1024

// exchange drives the line protocol over the parser's stdin and stdout. At most one test case is
// waiting for an answer at any time. Once every test case has been answered, stdin is closed and
// exchange reads until stdout ends, so that any output beyond the last answer is detected.
func exchange(stdin io.WriteCloser, stdout io.Reader, suite fixture.Suite, handler Handler, logger framework.Logger) error {
	defer stdin.Close()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	pending := 0
	sendPending := func() error {
		if pending >= len(suite) {
			logger.Printf("All %d records answered, closing stdin", len(suite))
			return stdin.Close()
		}
		tc := suite[pending]
		if tc.URL() == "" {
			return fmt.Errorf("%w (%s)", fixture.ErrMissingURLField, tc.Location())
		}
		line := tc.Input.JSONString()
		logger.Printf("Sending: %s", line)
		if _, err := io.WriteString(stdin, line+"\n"); err != nil {
			return fmt.Errorf("%w: could not send record %d of %d (%s): %s",
				ErrParserCrashed, pending+1, len(suite), tc.Location(), err)
		}
		return nil
	}

	if err := sendPending(); err != nil {
		return err
	}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		logger.Printf("Received: %s", line)
		if pending >= len(suite) {
			return fmt.Errorf("%w: unexpected output after the last record: %s", ErrProtocolViolation, line)
		}
		var actual ldvalue.Value
		if err := json.Unmarshal(line, &actual); err != nil {
			return fmt.Errorf("%w: malformed JSON in answer to record %d (%s): %s",
				ErrProtocolViolation, pending+1, suite[pending].Location(), line)
		}
		handler(suite[pending], actual)
		pending++
		if err := sendPending(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return fmt.Errorf("%w: output line longer than %d bytes", ErrProtocolViolation, maxLineSize)
		}
		return fmt.Errorf("%w: could not read output: %s", ErrParserCrashed, err)
	}
	if pending < len(suite) {
		return fmt.Errorf("%w: output ended after %d of %d records", ErrParserCrashed, pending, len(suite))
	}
	return nil
}
