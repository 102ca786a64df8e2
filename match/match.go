// Package match compares the records produced by a parser with the records a fixture expects.
//
// The comparison is tolerant: the expected record is a pattern that the actual record must
// satisfy, not a value it must equal.
//
//   - Every field of an expected object must be present in the actual object and satisfy the
//     expected value. Fields that are only in the actual object are allowed.
//   - Arrays must have the same length, and each element must satisfy the expected element.
//   - Scalars match when their textual forms are equal. Fixture values are always strings, so
//     the expected "42" matches a parser's 42, and "true" matches true.
package match

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// ErrRecordMismatch is matched by every Diagnostic.
var ErrRecordMismatch = errors.New("result does not match")

// Result is the outcome of comparing one record.
type Result struct {
	Pass       bool
	Diagnostic *Diagnostic
}

// Diagnostic explains a mismatch. It implements error.
type Diagnostic struct {
	Input       ldvalue.Value
	Actual      ldvalue.Value
	Expected    ldvalue.Value
	Differences []string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(ErrRecordMismatch.Error())
	fmt.Fprintf(&b, "\ninput: %s", Indent(d.Input))
	fmt.Fprintf(&b, "\nresult: %s", Indent(d.Actual))
	fmt.Fprintf(&b, "\nexpected: %s", Indent(d.Expected))
	if len(d.Differences) > 0 {
		b.WriteString("\ndifferences:")
		for _, diff := range d.Differences {
			b.WriteString("\n  - ")
			b.WriteString(diff)
		}
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error {
	return ErrRecordMismatch
}

// Records checks the actual record a parser produced for input against the expected record.
func Records(input, expected, actual ldvalue.Value) Result {
	diffs := Differences(expected, actual)
	if len(diffs) == 0 {
		return Result{Pass: true}
	}
	return Result{Diagnostic: &Diagnostic{
		Input:       input,
		Actual:      actual,
		Expected:    expected,
		Differences: diffs,
	}}
}

// Satisfies reports whether actual satisfies the expected pattern.
func Satisfies(expected, actual ldvalue.Value) bool {
	return len(Differences(expected, actual)) == 0
}

// Differences describes every place where actual does not satisfy expected, in a stable order.
func Differences(expected, actual ldvalue.Value) []string {
	return differences("", expected, actual, nil)
}

func differences(path string, expected, actual ldvalue.Value, diffs []string) []string {
	switch expected.Type() {
	case ldvalue.ObjectType:
		if actual.Type() != ldvalue.ObjectType {
			return append(diffs, fmt.Sprintf("%s: expected an object, got %s", describePath(path), Compact(actual)))
		}
		present := make(map[string]bool)
		for _, k := range actual.Keys() {
			present[k] = true
		}
		keys := expected.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			subPath := joinPath(path, k)
			if !present[k] {
				diffs = append(diffs, fmt.Sprintf("%s: missing, expected %s", subPath, Compact(expected.GetByKey(k))))
				continue
			}
			diffs = differences(subPath, expected.GetByKey(k), actual.GetByKey(k), diffs)
		}
		return diffs

	case ldvalue.ArrayType:
		if actual.Type() != ldvalue.ArrayType || actual.Count() != expected.Count() {
			return append(diffs, fmt.Sprintf("%s: expected %s, got %s", describePath(path), Compact(expected), Compact(actual)))
		}
		for i := 0; i < expected.Count(); i++ {
			diffs = differences(path+"["+strconv.Itoa(i)+"]", expected.GetByIndex(i), actual.GetByIndex(i), diffs)
		}
		return diffs

	default:
		if actual.Type() == ldvalue.ObjectType || actual.Type() == ldvalue.ArrayType ||
			scalarText(expected) != scalarText(actual) {
			return append(diffs, fmt.Sprintf("%s: expected %s, got %s", describePath(path), Compact(expected), Compact(actual)))
		}
		return diffs
	}
}

func scalarText(v ldvalue.Value) string {
	if v.Type() == ldvalue.StringType {
		return v.StringValue()
	}
	return v.JSONString()
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func describePath(path string) string {
	if path == "" {
		return "record"
	}
	return path
}

// Compact renders a value as single-line JSON with sorted object keys.
func Compact(v ldvalue.Value) string {
	return render(v, "")
}

// Indent renders a value as indented JSON with sorted object keys.
func Indent(v ldvalue.Value) string {
	return render(v, "  ")
}

func render(v ldvalue.Value, indent string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v.AsArbitraryValue()); err != nil {
		return v.JSONString()
	}
	return strings.TrimSuffix(b.String(), "\n")
}
