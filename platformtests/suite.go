package platformtests

import (
	"time"

	"github.com/ezpaarse-project/parser-contract-tests/framework"
	"github.com/ezpaarse-project/parser-contract-tests/platform"
)

// DefaultTimeout is how long one platform may take, liveness probe included.
const DefaultTimeout = time.Second * 10

// Config is everything the suite needs to know about where platforms are and how to run them.
// It is resolved by the caller; nothing in this package reads the process environment.
type Config struct {
	// PlatformsDir is the directory that contains one subdirectory per platform.
	PlatformsDir string

	// Only, if set, is the one platform to test instead of every platform in PlatformsDir.
	Only string

	// Layout names the files inside a platform directory. The zero value means
	// platform.DefaultLayout().
	Layout platform.Layout

	// Timeout bounds the evaluation of one platform. Zero means DefaultTimeout.
	Timeout time.Duration

	// Env is added to the environment of every parser process.
	Env []string
}

func (c Config) withDefaults() Config {
	defaults := platform.DefaultLayout()
	if c.Layout.ManifestFile == "" {
		c.Layout.ManifestFile = defaults.ManifestFile
	}
	if c.Layout.ParserFile == "" {
		c.Layout.ParserFile = defaults.ParserFile
	}
	if c.Layout.TestDir == "" {
		c.Layout.TestDir = defaults.TestDir
	}
	if c.Layout.FixtureExtension == "" {
		c.Layout.FixtureExtension = defaults.FixtureExtension
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// RunTestSuite evaluates every platform, one at a time, and reports one verdict per platform to
// testLogger. The test ID of a platform is the name of its directory.
//
// An error is returned only if the platforms directory itself cannot be listed. Anything that
// goes wrong with one platform is that platform's failure and does not affect the others.
func RunTestSuite(
	config Config,
	filter framework.Filter,
	testLogger framework.TestLogger,
) (framework.Results, error) {
	config = config.withDefaults()
	names, err := platform.Discover(config.PlatformsDir, platform.DiscoverOptions{Only: config.Only})
	if err != nil {
		return framework.Results{}, err
	}

	results := framework.Run(filter, testLogger, func(c *framework.Context) {
		t := newTestScope(c, config)
		for _, name := range names {
			name := name
			t.Run(name, func(t *T) { DoPlatformTest(t, name) })
		}
	})
	return results, nil
}
