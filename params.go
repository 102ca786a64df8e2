package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ezpaarse-project/parser-contract-tests/framework"
	"github.com/ezpaarse-project/parser-contract-tests/platform"
	"github.com/ezpaarse-project/parser-contract-tests/platformtests"

	"github.com/alessio/shellescape"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix           = "EZPAARSE"
	platformEnvVariable = "EZPAARSE_PLATFORM_TO_TEST"
	configFileName      = ".parser-tests"
)

const (
	keyDir          = "dir"
	keyPlatform     = "platform"
	keyTimeout      = "timeout"
	keyRun          = "run"
	keySkip         = "skip"
	keyDebug        = "debug"
	keyDebugAll     = "debug-all"
	keyReport       = "report"
	keyNoColor      = "no-color"
	keyParserFile   = "parser-file"
	keyManifestFile = "manifest-file"
	keyTestDir      = "test-dir"
	keyFixtureExt   = "fixture-ext"
)

// Flags whose value can also come from the environment or the config file.
var configurableKeys = []string{
	keyDir, keyPlatform, keyTimeout, keyDebug, keyDebugAll, keyReport, keyNoColor,
	keyParserFile, keyManifestFile, keyTestDir, keyFixtureExt,
}

type commandParams struct {
	platformsDir string
	platform     string
	timeout      time.Duration
	filters      framework.RegexFilters
	debug        bool
	debugAll     bool
	reportPath   string
	noColor      bool
	layout       platform.Layout
	configFile   string
}

func addFlags(fs *pflag.FlagSet, filters *framework.RegexFilters) {
	layout := platform.DefaultLayout()
	fs.String(keyDir, ".", "directory that contains the platforms")
	fs.String(keyPlatform, "", "test only this platform (also "+platformEnvVariable+")")
	fs.Duration(keyTimeout, platformtests.DefaultTimeout, "time allowed for each platform")
	fs.Var(&filters.MustMatch, keyRun, "regex pattern(s) to select platforms to test")
	fs.Var(&filters.MustNotMatch, keySkip, "regex pattern(s) to select platforms not to test")
	fs.Bool(keyDebug, false, "show debug output for failed platforms")
	fs.Bool(keyDebugAll, false, "show debug output for all platforms")
	fs.String(keyReport, "", "write a YAML report of the results to this file")
	fs.Bool(keyNoColor, false, "disable colored output")
	fs.String(keyParserFile, layout.ParserFile, "name of the parser entry point in a platform directory")
	fs.String(keyManifestFile, layout.ManifestFile, "name of the manifest in a platform directory")
	fs.String(keyTestDir, layout.TestDir, "name of the fixture directory in a platform directory")
	fs.String(keyFixtureExt, layout.FixtureExtension, "extension of fixture files")
}

// readParams resolves the parameters from, in order of precedence, the command line, the
// environment, a config file in the platforms directory, and the flag defaults.
func readParams(fs *pflag.FlagSet, filters framework.RegexFilters) (commandParams, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(keyPlatform, platformEnvVariable, envPrefix+"_PLATFORM"); err != nil {
		return commandParams{}, err
	}
	for _, key := range configurableKeys {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return commandParams{}, err
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(v.GetString(keyDir))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return commandParams{}, fmt.Errorf("reading config: %w", err)
		}
	}

	// --run and --skip replace the patterns of the config file instead of adding to them.
	if !filters.MustMatch.IsDefined() {
		if err := addPatterns(&filters.MustMatch, v.GetStringSlice(keyRun)); err != nil {
			return commandParams{}, err
		}
	}
	if !filters.MustNotMatch.IsDefined() {
		if err := addPatterns(&filters.MustNotMatch, v.GetStringSlice(keySkip)); err != nil {
			return commandParams{}, err
		}
	}

	p := commandParams{
		platformsDir: v.GetString(keyDir),
		platform:     v.GetString(keyPlatform),
		timeout:      v.GetDuration(keyTimeout),
		filters:      filters,
		debug:        v.GetBool(keyDebug),
		debugAll:     v.GetBool(keyDebugAll),
		reportPath:   v.GetString(keyReport),
		noColor:      v.GetBool(keyNoColor),
		layout: platform.Layout{
			ManifestFile:     v.GetString(keyManifestFile),
			ParserFile:       v.GetString(keyParserFile),
			TestDir:          v.GetString(keyTestDir),
			FixtureExtension: v.GetString(keyFixtureExt),
		},
		configFile: v.ConfigFileUsed(),
	}
	if p.timeout <= 0 {
		return commandParams{}, fmt.Errorf("--%s must be positive, got %s", keyTimeout, p.timeout)
	}
	return p, nil
}

func addPatterns(list *framework.RegexList, patterns []string) error {
	for _, p := range patterns {
		if err := list.Set(p); err != nil {
			return fmt.Errorf("%q: %w", p, err)
		}
	}
	return nil
}

func (c commandParams) suiteConfig() platformtests.Config {
	return platformtests.Config{
		PlatformsDir: c.platformsDir,
		Only:         c.platform,
		Layout:       c.layout,
		Timeout:      c.timeout,
	}
}

// rerunCommand is the command line that tests one platform again with the same settings.
func (c commandParams) rerunCommand(program, platformName string) string {
	var b commandBuilder
	b.add(program, "--"+keyDir, c.platformsDir, "--"+keyPlatform, platformName)
	if c.timeout != platformtests.DefaultTimeout {
		b.add("--"+keyTimeout, c.timeout.String())
	}
	defaults := platform.DefaultLayout()
	for _, f := range []struct{ key, value, defaultValue string }{
		{keyManifestFile, c.layout.ManifestFile, defaults.ManifestFile},
		{keyParserFile, c.layout.ParserFile, defaults.ParserFile},
		{keyTestDir, c.layout.TestDir, defaults.TestDir},
		{keyFixtureExt, c.layout.FixtureExtension, defaults.FixtureExtension},
	} {
		if f.value != f.defaultValue {
			b.add("--"+f.key, f.value)
		}
	}
	b.add("--" + keyDebug)
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
