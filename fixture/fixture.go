// Package fixture loads the test cases of a platform from its fixture files.
//
// A fixture file is a ';'-delimited CSV file whose header names each column "in-<field>" or
// "out-<field>". Every row becomes one TestCase: the "in-" cells form the record sent to the
// parser and the "out-" cells form the record the parser is expected to answer with. Empty
// cells are absent from both records, and every value is a string except the expected
// "_granted" field, which is a boolean.
//
// An empty "out-_granted" cell follows the same rule as any other empty cell: the field is left
// out of the expected record, so whatever the parser answers for it is accepted. It is not
// turned into false, even though DecodeGranted("") is false. Cells are read leniently, so a bare
// quote inside an unquoted cell is kept as a literal character.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ezpaarse-project/parser-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Delimiter separates the cells of a fixture row.
const Delimiter = ';'

const (
	inputPrefix  = "in-"
	outputPrefix = "out-"
)

var (
	// ErrNoTestFolder means the platform's test directory is missing or is not a directory.
	ErrNoTestFolder = errors.New("no test folder")

	// ErrNoFixtureFiles means the test directory has no fixture file.
	ErrNoFixtureFiles = errors.New("no test file")

	// ErrMissingURLField means a test case has no input URL, so it cannot be sent to a parser.
	ErrMissingURLField = errors.New("some entries in the test file have no URL")
)

// TestCase is one input record and the record the parser is expected to produce for it.
type TestCase struct {
	Input    ldvalue.Value
	Expected ldvalue.Value

	// File and Line locate the row the test case was decoded from.
	File string
	Line int
}

// URL returns the input URL, or "" if there is none.
func (tc TestCase) URL() string {
	return tc.Input.GetByKey(servicedef.URLField).StringValue()
}

// Location describes where the test case comes from, for error messages.
func (tc TestCase) Location() string {
	if tc.File == "" {
		return "?"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(tc.File), tc.Line)
}

// Suite is every test case of one platform, in the order they must be sent to the parser.
type Suite []TestCase

// Validate checks that every test case can be sent to a parser.
func (s Suite) Validate() error {
	for _, tc := range s {
		if tc.URL() == "" {
			return fmt.Errorf("%w (%s)", ErrMissingURLField, tc.Location())
		}
	}
	return nil
}

// Load decodes every fixture file in testDir whose name ends with ext. The files are read in
// the order of the directory listing, and their test cases are concatenated in that order.
func Load(testDir, ext string) (Suite, error) {
	info, err := os.Stat(testDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoTestFolder, testDir)
	}

	files, err := FixtureFiles(testDir, ext)
	if err != nil {
		return nil, err
	}

	var suite Suite
	for _, file := range files {
		cases, err := decodeFile(file)
		if err != nil {
			return nil, err
		}
		suite = append(suite, cases...)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

// FixtureFiles returns the paths of the fixture files in testDir, sorted by name.
func FixtureFiles(testDir, ext string) ([]string, error) {
	entries, err := os.ReadDir(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", testDir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ext) {
			files = append(files, filepath.Join(testDir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFixtureFiles, testDir)
	}
	return files, nil
}

func decodeFile(path string) ([]TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer f.Close()
	return Decode(f, path)
}
