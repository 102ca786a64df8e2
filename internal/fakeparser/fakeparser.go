// Package fakeparser is a platform parser used by the harness's own tests. A test binary calls
// RunIfRequested from TestMain, and then runs itself as a parser by setting ModeVariable.
//
// In "article" mode it implements the same recognition rules as a typical ezPAARSE platform:
// /article/<id> is an HTML ARTICLE and /articles/category/<id> is a TOC. The other modes
// misbehave in one specific way each.
package fakeparser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

const (
	// ModeVariable selects the behavior of the fake parser.
	ModeVariable = "PARSER_CONTRACT_FAKE_PARSER"

	// LogVariable, if set, names a file to which each invocation appends "probe" or "main".
	LogVariable = "PARSER_CONTRACT_FAKE_PARSER_LOG"
)

const (
	ModeArticle      = "article"      // correct parser
	ModeWrongMime    = "wrong-mime"   // answers every record, always with mime PDF
	ModeNotExec      = "not-exec"     // probe exits with 126
	ModeCrashProbe   = "crash-probe"  // probe exits with 3
	ModeHangProbe    = "hang-probe"   // probe never exits
	ModeCrashRun     = "crash-run"    // answers the first record, then exits with 2
	ModeExtraOutput  = "extra-output" // answers every record twice
	ModeGarbage      = "garbage"      // answers with something that is not JSON
	ModeHang         = "hang"         // reads records but never answers
	ModeSilent       = "silent"       // reads one record, exits 0 without answering
	ModeBlankLines   = "blank-lines"  // correct, but writes blank lines between answers
	structuredOption = "--json"
)

var (
	articlePattern  = regexp.MustCompile(`(?i)^/(article)/(.+)$`)
	categoryPattern = regexp.MustCompile(`(?i)^/articles/(category)/(\w+)$`)
)

// RunIfRequested runs the fake parser and exits, if ModeVariable is set.
func RunIfRequested() {
	mode := os.Getenv(ModeVariable)
	if mode == "" {
		return
	}
	os.Exit(Run(mode, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Run behaves as the fake parser would with the given arguments and returns its exit status.
func Run(mode string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	structured := len(args) > 0 && args[0] == structuredOption
	if structured {
		logInvocation("main")
		return runStructured(mode, stdin, stdout, stderr)
	}
	logInvocation("probe")
	switch mode {
	case ModeNotExec:
		return 126
	case ModeCrashProbe:
		fmt.Fprintln(stderr, "cannot find module '../.lib/parser.js'")
		return 3
	case ModeHangProbe:
		time.Sleep(time.Hour)
	}
	_, _ = io.Copy(io.Discard, stdin)
	return 0
}

func runStructured(mode string, stdin io.Reader, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(stdin)
	count := 0
	for scanner.Scan() {
		var input map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &input); err != nil {
			fmt.Fprintf(stderr, "bad input: %s\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "analysing %v\n", input["url"])
		count++

		result := Analyse(fmt.Sprint(input["url"]))
		switch mode {
		case ModeCrashRun:
			if count > 1 {
				fmt.Fprintln(stderr, "parser exploded")
				return 2
			}
		case ModeWrongMime:
			result["mime"] = "PDF"
		case ModeGarbage:
			fmt.Fprintln(stdout, "TypeError: undefined is not a function")
			continue
		case ModeHang:
			continue
		case ModeSilent:
			return 0
		case ModeBlankLines:
			fmt.Fprintln(stdout)
		}
		writeJSON(stdout, result)
		if mode == ModeExtraOutput {
			writeJSON(stdout, result)
		}
	}
	if mode == ModeHang {
		time.Sleep(time.Hour)
	}
	return 0
}

// Analyse recognizes an access URL.
func Analyse(rawURL string) map[string]string {
	result := map[string]string{}
	u, err := url.Parse(rawURL)
	if err != nil {
		return result
	}
	if m := articlePattern.FindStringSubmatch(u.Path); m != nil {
		result["rtype"] = "ARTICLE"
		result["mime"] = "HTML"
		result["title_id"] = m[2]
		result["unitid"] = strings.ToLower(m[1])
	} else if m := categoryPattern.FindStringSubmatch(u.Path); m != nil {
		result["rtype"] = "TOC"
		result["mime"] = "HTML"
		result["title_id"] = m[2]
		result["unitid"] = strings.ToLower(m[1])
	}
	return result
}

func writeJSON(w io.Writer, v interface{}) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "%s\n", data)
}

func logInvocation(phase string) {
	path := os.Getenv(LogVariable)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, phase)
}
