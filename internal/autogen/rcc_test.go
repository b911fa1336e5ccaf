package autogen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRccOptionsDisjoint(t *testing.T) {
	merged := mergeRccOptions(
		[]string{"--compress", "9"},
		[]string{"--no-compress"},
		true,
	)
	assert.Equal(t, []string{"--compress", "9", "--no-compress"}, merged)

	// target options alone survive untouched
	merged = mergeRccOptions([]string{"--root", "/res"}, nil, true)
	assert.Equal(t, []string{"--root", "/res"}, merged)

	// file options alone are adopted wholesale
	merged = mergeRccOptions(nil, []string{"--name", "app"}, true)
	assert.Equal(t, []string{"--name", "app"}, merged)
}

func TestMergeRccOptionsValueReplacement(t *testing.T) {
	merged := mergeRccOptions(
		[]string{"--name", "base", "--threshold", "50"},
		[]string{"--name", "override"},
		true,
	)
	assert.Equal(t, []string{"--name", "override", "--threshold", "50"}, merged)
}

func TestMergeRccOptionsQt4SingleDash(t *testing.T) {
	merged := mergeRccOptions(
		[]string{"-name", "base"},
		[]string{"-name", "override"},
		false,
	)
	assert.Equal(t, []string{"-name", "override"}, merged)
}

func TestMergeRccOptionsPlainFlagDeduplicated(t *testing.T) {
	merged := mergeRccOptions(
		[]string{"--verbose"},
		[]string{"--verbose"},
		true,
	)
	assert.Equal(t, []string{"--verbose"}, merged)
}

func TestMergeRccOptionsTrailingValueOption(t *testing.T) {
	// a value option with no following value is treated as a plain flag
	merged := mergeRccOptions(
		[]string{"--name", "base"},
		[]string{"--name"},
		true,
	)
	assert.Equal(t, []string{"--name", "base"}, merged)
}

func TestParseQrcManifest(t *testing.T) {
	dir := t.TempDir()
	qrc := writeQrc(t, dir, "app.qrc", `<RCC>
<qresource prefix="/">
  <file>icon.png</file>
  <file alias="s">sub/style.qss</file>
</qresource>
<qresource prefix="/i18n">
  <file>de.qm</file>
</qresource>
</RCC>`)

	files, err := parseQrcManifest(qrc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "icon.png"),
		filepath.Join(dir, "sub", "style.qss"),
		filepath.Join(dir, "de.qm"),
	}, files)
}

func TestParseQrcManifestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := parseQrcManifest(filepath.Join(dir, "missing.qrc"))
	require.Error(t, err)
	var listErr *ListError
	require.ErrorAs(t, err, &listErr)
	assert.Contains(t, listErr.Error(), "missing.qrc")

	bad := writeQrc(t, dir, "bad.qrc", "<RCC><qresource>")
	_, err = parseQrcManifest(bad)
	require.Error(t, err)
}

func TestListResourceInputsCaches(t *testing.T) {
	store := newTestStore()
	env := newTestEnv(t, store, &fakeGraph{})

	qrc := writeQrc(t, env.SourceDir, "app.qrc", `<RCC><qresource><file>a.png</file></qresource></RCC>`)

	files, err := env.ListResourceInputs("4", "", qrc)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// a second listing is served from the cache even if the file changed
	require.NoError(t, os.WriteFile(qrc, []byte(`<RCC><qresource><file>b.png</file></qresource></RCC>`), 0o644))
	again, err := env.ListResourceInputs("4", "", qrc)
	require.NoError(t, err)
	assert.Equal(t, files, again)
}

func TestSetupRcc(t *testing.T) {
	store := newTestStore()
	store.defs["QT_VERSION_MAJOR"] = "4"
	store.targets["Qt4::rcc"] = &fakeTarget{name: "Qt4::rcc", location: "/opt/qt4/bin/rcc"}
	env := newTestEnv(t, store, &fakeGraph{})

	qrc := writeQrc(t, env.SourceDir, "app.qrc", qrcBody)

	tgt := &fakeTarget{
		name: "app",
		qt:   QtSettings{Rcc: true, RccOptions: []string{"-name", "app"}},
	}
	tgt.AddSource(qrc)
	withOpts := tgt.AddSource(filepath.Join(env.SourceDir, "extra.qrc"))
	withOpts.Generated = true // generated: no input listing
	withOpts.RccOptions = "-name;extra"
	skipped := tgt.AddSource(filepath.Join(env.SourceDir, "skip.qrc"))
	skipped.SkipRcc = true

	info := &Info{}
	require.NoError(t, setupRcc(env, tgt, ResolveVersion(store, tgt), info))

	assert.Equal(t, "/opt/qt4/bin/rcc", info.RccExecutable)
	assert.Equal(t, []string{qrc, filepath.Join(env.SourceDir, "extra.qrc")}, info.RccFiles)

	// input lists stay aligned with the file list; the generated entry is
	// empty because its inputs are unknowable at configure time
	require.Len(t, info.RccInputs, 2)
	assert.Contains(t, info.RccInputs[0], "icon.png")
	assert.Equal(t, "", info.RccInputs[1])

	// per-file options replace the target level value positionally
	require.Equal(t, []string{qrc, filepath.Join(env.SourceDir, "extra.qrc")}, info.RccOptionsFiles)
	assert.Equal(t, "-name;app", info.RccOptionsOptions[0])
	assert.Equal(t, "-name;extra", info.RccOptionsOptions[1])
}
