package fixture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ezpaarse-project/parser-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const byteOrderMark = "\ufeff"

type column struct {
	output bool
	field  string
}

// Decode reads the rows of one fixture file. The file name is only used to label the test cases.
func Decode(r io.Reader, file string) ([]TestCase, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("malformed fixture file %s: %w", file, err)
	}
	columns := parseHeader(header)

	var cases []TestCase
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed fixture file %s: %w", file, err)
		}
		line, _ := reader.FieldPos(0)
		tc := decodeRow(columns, row)
		tc.File = file
		tc.Line = line
		cases = append(cases, tc)
	}
	return cases, nil
}

func parseHeader(header []string) []*column {
	columns := make([]*column, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, byteOrderMark)
		}
		switch {
		case name == inputPrefix || name == outputPrefix:
		case strings.HasPrefix(name, inputPrefix):
			columns[i] = &column{field: strings.TrimPrefix(name, inputPrefix)}
		case strings.HasPrefix(name, outputPrefix):
			columns[i] = &column{output: true, field: strings.TrimPrefix(name, outputPrefix)}
		}
	}
	return columns
}

func decodeRow(columns []*column, row []string) TestCase {
	in := ldvalue.ObjectBuild()
	out := ldvalue.ObjectBuild()
	for i, cell := range row {
		if i >= len(columns) || columns[i] == nil || cell == "" {
			continue
		}
		col := columns[i]
		if !col.output {
			in.Set(col.field, ldvalue.String(cell))
			continue
		}
		if col.field == servicedef.GrantedField {
			out.Set(col.field, DecodeGranted(cell))
		} else {
			out.Set(col.field, ldvalue.String(cell))
		}
	}
	return TestCase{Input: in.Build(), Expected: out.Build()}
}

// DecodeGranted converts a "_granted" cell: only the literal "true" is true. Note that Decode
// never calls it for an empty cell, since empty cells are absent from the record.
func DecodeGranted(cell string) ldvalue.Value {
	return ldvalue.Bool(cell == "true")
}
