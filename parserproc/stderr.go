package parserproc

import (
	"bytes"
	"strings"
	"sync"

	"github.com/ezpaarse-project/parser-contract-tests/framework"
)

const maxStderrTail = 2048

// stderrCapture forwards the parser's stderr to the debug log line by line, and keeps the end
// of it for error messages.
type stderrCapture struct {
	logger  framework.Logger
	partial []byte
	tail    []byte
	lock    sync.Mutex
}

func newStderrCapture(logger framework.Logger) *stderrCapture {
	return &stderrCapture{logger: framework.WithPrefix(logger, "stderr: ")}
}

func (s *stderrCapture) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.tail = append(s.tail, p...)
	if len(s.tail) > maxStderrTail {
		s.tail = s.tail[len(s.tail)-maxStderrTail:]
	}

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.logger.Printf("%s", strings.TrimRight(string(s.partial[:i]), "\r"))
		s.partial = s.partial[i+1:]
	}
	return len(p), nil
}

// suffix returns the captured stderr formatted to be appended to an error message.
func (s *stderrCapture) suffix() string {
	s.lock.Lock()
	defer s.lock.Unlock()

	text := strings.TrimSpace(string(s.tail))
	if text == "" {
		return ""
	}
	return "\nstderr:\n" + text
}
