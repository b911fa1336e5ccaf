package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTestConfig(t *testing.T, text string) *Config {
	t.Helper()
	cfg, err := ParseConfig(strings.NewReader(text), NewConfigEnv(t.TempDir()))
	require.NoError(t, err)
	return cfg
}

func TestParseConfigBasic(t *testing.T) {
	crtoml := `
[package]
name = "viewer"
description = "image viewer"

[target]
sources = ["src/*.cpp"]
headers = ["src/*.h"]
links = ["z"]

[dependencies]
mathlib = "gh:someone/mathlib"
`
	cfg := parseTestConfig(t, crtoml)

	assert.Equal(t, "viewer", cfg.Package.Name)
	assert.Equal(t, []string{"src/*.cpp"}, cfg.Target.Sources)
	assert.Equal(t, []string{"z"}, cfg.Target.Links)
	assert.Equal(t, map[string]string{"mathlib": "gh:someone/mathlib"}, cfg.Dependencies)

	// built-in profiles are always available
	assert.Contains(t, cfg.Profile, "debug")
	assert.Contains(t, cfg.Profile, "release")
	release := cfg.Profile["release"]
	assert.Equal(t, "3", release.OptLevel.String())
}

func TestParseConfigQtSections(t *testing.T) {
	crtoml := `
[target]
sources = ["main.cpp"]

[target.qt]
automoc = true
autouic = true
moc-options = ["-DQT_NO_KEYWORDS"]
moc-macro-names = ["MY_OBJECT"]
uic-options = ["--no-protection"]
uic-search-paths = ["forms"]
extra-depends = ["version.h"]
version-major = "5"
generated-file-policy = "process"

[[target.source]]
file = "gen/ui_extra.h"
generated = true
skip-moc = true

[qt.tools]
"Qt5::moc" = "/opt/qt5/bin/moc"
"Qt5::uic" = "/opt/qt5/bin/uic"
`
	cfg := parseTestConfig(t, crtoml)

	qt := cfg.Target.Qt
	assert.True(t, qt.Automoc)
	assert.True(t, qt.Autouic)
	assert.False(t, qt.Autorcc)
	assert.Equal(t, []string{"-DQT_NO_KEYWORDS"}, qt.MocOptions)
	assert.Equal(t, []string{"MY_OBJECT"}, qt.MocMacroNames)
	assert.Equal(t, []string{"--no-protection"}, qt.UicTargetOptions)
	assert.Equal(t, []string{"forms"}, qt.UicSearchPaths)
	assert.Equal(t, []string{"version.h"}, qt.ExtraDepends)
	assert.Equal(t, "5", qt.VersionMajor)
	assert.Equal(t, "process", qt.GeneratedFilePolicy)

	require.Len(t, cfg.Target.Source, 1)
	assert.Equal(t, "gen/ui_extra.h", cfg.Target.Source[0].File)
	assert.True(t, cfg.Target.Source[0].Generated)
	assert.True(t, cfg.Target.Source[0].SkipMoc)

	assert.Equal(t, "/opt/qt5/bin/moc", cfg.Qt.Tools["Qt5::moc"])
	assert.Equal(t, "/opt/qt5/bin/uic", cfg.Qt.Tools["Qt5::uic"])
}

func TestParseConfigConditionalTarget(t *testing.T) {
	crtoml := `
[target]
sources = ["main.cpp"]
links = ["z"]

[target.'target_os == "never-an-os"']
links = ["ws2_32"]

[target.'target_os != "never-an-os"']
links = ["pthread"]
defines = { EXTRA = "1" }
`
	cfg := parseTestConfig(t, crtoml)

	// slices merge by appending, maps by key
	assert.Equal(t, []string{"z", "pthread"}, cfg.Target.Links)
	assert.Equal(t, "1", cfg.Target.Defines["EXTRA"])
}

// The "qt" and "source" sub-tables of [target] must never be treated as
// condition expressions.
func TestParseConfigSubTablesNotConditions(t *testing.T) {
	crtoml := `
[target]
sources = ["main.cpp"]

[target.qt]
automoc = true

[[target.source]]
file = "main.cpp"
skip-autogen = true
`
	cfg := parseTestConfig(t, crtoml)
	assert.True(t, cfg.Target.Qt.Automoc)
	require.Len(t, cfg.Target.Source, 1)
	assert.True(t, cfg.Target.Source[0].SkipAutogen)
}

func TestParseConfigProfileOverride(t *testing.T) {
	crtoml := `
[profile.release]
defines = { RELEASE_BUILD = "" }

[profile.sanitize]
opt-level = "fast"
uic-options = ["--generator", "python"]
`
	cfg := parseTestConfig(t, crtoml)

	// user additions merge into the built-in release profile
	rel := cfg.Profile["release"]
	assert.Contains(t, rel.Defines, "NDEBUG")
	assert.Contains(t, rel.Defines, "RELEASE_BUILD")

	san := cfg.Profile["sanitize"]
	assert.Equal(t, "fast", san.OptLevel.String())
	assert.Equal(t, []string{"--generator", "python"}, san.UicOptions)

	assert.Equal(t, []string{"debug", "release", "sanitize"}, cfg.Profiles())
}

func TestParseConfigExpressions(t *testing.T) {
	crtoml := `
[package]
name = "tool-{{ target_os }}"
`
	cfg := parseTestConfig(t, crtoml)
	assert.True(t, strings.HasPrefix(cfg.Package.Name, "tool-"))
	assert.NotContains(t, cfg.Package.Name, "{{")
}

func TestParseConfigBadToml(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("[package\nname="), NewConfigEnv(t.TempDir()))
	assert.Error(t, err)
}

func TestLooksConditional(t *testing.T) {
	assert.True(t, looksConditional(`target_os == "windows"`))
	assert.True(t, looksConditional("environ.CI != ''"))
	assert.False(t, looksConditional("qt"))
	assert.False(t, looksConditional("source"))
}

func TestIntOrString(t *testing.T) {
	var o intOrString
	require.NoError(t, o.UnmarshalTOML(int64(2)))
	assert.Equal(t, "2", o.String())
	require.NoError(t, o.UnmarshalTOML("s"))
	assert.Equal(t, "s", o.String())
	assert.Error(t, o.UnmarshalTOML(1.5))

	var empty *intOrString
	assert.Equal(t, "", empty.String())
}
