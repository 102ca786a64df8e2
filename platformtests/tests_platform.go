package platformtests

import (
	"context"
	"strings"

	"github.com/ezpaarse-project/parser-contract-tests/fixture"
	"github.com/ezpaarse-project/parser-contract-tests/match"
	"github.com/ezpaarse-project/parser-contract-tests/parserproc"
	"github.com/ezpaarse-project/parser-contract-tests/platform"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/stretchr/testify/require"
)

// DoPlatformTest checks one platform directory: its manifest, its fixtures, and that its parser
// answers every test case with a record that satisfies the expected one.
func DoPlatformTest(t *T, dirName string) {
	desc, err := platform.Load(t.config.PlatformsDir, dirName, t.config.Layout)
	require.NoError(t, err)
	t.Debug("Platform %q: %s", desc.Name, describeManifest(desc.Manifest))

	if !desc.HasParser() {
		t.SkipWithReason("no " + t.config.Layout.ParserFile)
	}

	suite, err := fixture.Load(desc.TestDir, t.config.Layout.FixtureExtension)
	require.NoError(t, err)
	t.Debug("Loaded %d test cases from %s", len(suite), desc.TestDir)

	ctx, cancel := context.WithTimeout(context.Background(), t.config.Timeout)
	t.Defer(cancel)

	driver := &parserproc.Driver{
		Path:   desc.ParserPath,
		Env:    t.config.Env,
		Logger: t.DebugLogger(),
	}
	mismatches := 0
	err = driver.Run(ctx, suite, func(tc fixture.TestCase, actual ldvalue.Value) {
		result := match.Records(tc.Input, tc.Expected, actual)
		if !result.Pass {
			mismatches++
			t.Errorf("%s: %s", tc.Location(), result.Diagnostic)
		}
	})
	require.NoError(t, err, "parser %s stopped in state %q", desc.ParserPath, driver.State())
	if t.Failed() {
		t.Debug("%d of %d test cases did not match", mismatches, len(suite))
	} else {
		t.Debug("All %d test cases matched", len(suite))
	}
}

func describeManifest(m platform.Manifest) string {
	var parts []string
	if m.LongName != "" {
		parts = append(parts, m.LongName)
	}
	if m.Version != "" {
		parts = append(parts, "version "+m.Version)
	}
	if m.Status != "" {
		parts = append(parts, "status "+m.Status)
	}
	if len(m.Domains) > 0 {
		parts = append(parts, "domains "+strings.Join(m.Domains, ", "))
	}
	if len(parts) == 0 {
		return "no description"
	}
	return strings.Join(parts, "; ")
}
