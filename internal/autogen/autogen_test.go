package autogen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTarget implements Target with canned per-configuration answers.
type fakeTarget struct {
	name      string
	sources   []*SourceFile
	qt        QtSettings
	folder    string
	location  string
	utilities []string
	links     []string

	includes map[string][]string
	defines  map[string][]string
	uicOpts  map[string][]string

	addedIncludeDirs []string
	addedUtilityDeps []string
}

func (t *fakeTarget) Name() string            { return t.name }
func (t *fakeTarget) Sources() []*SourceFile  { return t.sources }
func (t *fakeTarget) Utilities() []string     { return t.utilities }
func (t *fakeTarget) LinkLibraries() []string { return t.links }
func (t *fakeTarget) Qt() QtSettings          { return t.qt }
func (t *fakeTarget) Folder() string          { return t.folder }
func (t *fakeTarget) ImportedLocation() string {
	return t.location
}

func (t *fakeTarget) AddSource(path string) *SourceFile {
	sf := &SourceFile{Path: path}
	t.sources = append(t.sources, sf)
	return sf
}

func (t *fakeTarget) AddIncludeDirectory(dir string, system bool) {
	t.addedIncludeDirs = append(t.addedIncludeDirs, dir)
}

func (t *fakeTarget) AddUtilityDependency(name string) {
	t.addedUtilityDeps = append(t.addedUtilityDeps, name)
}

func (t *fakeTarget) IncludeDirectories(config string) []string { return t.includes[config] }
func (t *fakeTarget) CompileDefinitions(config string) []string { return t.defines[config] }
func (t *fakeTarget) AutoUicOptions(config string) []string     { return t.uicOpts[config] }

type fakeStore struct {
	defs    map[string]string
	props   map[string]string
	targets map[string]Target
}

func (s *fakeStore) Definition(name string) string     { return s.defs[name] }
func (s *fakeStore) GlobalProperty(name string) string { return s.props[name] }
func (s *fakeStore) FindTarget(name string) (Target, bool) {
	t, ok := s.targets[name]
	return t, ok
}

type fakeGraph struct {
	multi    bool
	preBuild bool

	utilities []UtilityTarget
	preSteps  map[string][]BuildStep
}

func (g *fakeGraph) MultiConfig() bool      { return g.multi }
func (g *fakeGraph) SupportsPreBuild() bool { return g.preBuild }

func (g *fakeGraph) AddUtilityTarget(u UtilityTarget) {
	g.utilities = append(g.utilities, u)
}

func (g *fakeGraph) AttachPreBuildStep(target string, step BuildStep) error {
	if g.preSteps == nil {
		g.preSteps = make(map[string][]BuildStep)
	}
	g.preSteps[target] = append(g.preSteps[target], step)
	return nil
}

func newTestStore() *fakeStore {
	return &fakeStore{
		defs:  map[string]string{"QT_VERSION_MAJOR": "5", "QT_VERSION_MINOR": "9"},
		props: map[string]string{},
		targets: map[string]Target{
			"Qt5::moc": &fakeTarget{name: "Qt5::moc", location: "/opt/qt5/bin/moc"},
			"Qt5::uic": &fakeTarget{name: "Qt5::uic", location: "/opt/qt5/bin/uic"},
			"Qt5::rcc": &fakeTarget{name: "Qt5::rcc", location: "/opt/qt5/bin/rcc"},
		},
	}
}

func newTestEnv(t *testing.T, store *fakeStore, graph *fakeGraph) *Env {
	t.Helper()
	srcDir := t.TempDir()
	env := NewEnv(store, graph, srcDir, filepath.Join(srcDir, "build"), "/usr/local/bin/quartz")
	env.SetConfigurations("debug", []string{"debug"})
	return env
}

func mapsOf(items []string) map[string][]string {
	return map[string][]string{"debug": items, "": items}
}

func TestInitializeTargetUtilityNode(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{
		name:     "viewer",
		qt:       QtSettings{Moc: true},
		includes: mapsOf(nil),
		defines:  mapsOf(nil),
	}
	tgt.AddSource("/src/viewer/main.cpp")

	require.NoError(t, InitializeTarget(env, tgt))

	require.Len(t, graph.utilities, 1)
	u := graph.utilities[0]
	assert.Equal(t, "viewer_autogen", u.Name)
	assert.Equal(t, env.BinaryDir, u.WorkingDir)
	assert.Equal(t, "Automatic MOC for target viewer", u.Step.Comment)
	assert.Equal(t, []string{"viewer_autogen"}, tgt.addedUtilityDeps)

	mocsComp := filepath.Join(env.AutogenBuildDir(tgt), "mocs_compilation.cpp")
	assert.Equal(t, []string{mocsComp}, u.Step.Byproducts)

	// the combined compilation unit is registered as a generated source,
	// excluded from scanning
	var found *SourceFile
	for _, sf := range tgt.Sources() {
		if sf.Path == mocsComp {
			found = sf
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.Generated)
	assert.True(t, found.SkipAutogen)

	// generated headers are reachable through the autogen include dir
	require.Len(t, tgt.addedIncludeDirs, 1)
	assert.Equal(t, filepath.Join(env.AutogenBuildDir(tgt), "include"), tgt.addedIncludeDirs[0])

	require.Len(t, u.Step.CommandLines, 1)
	assert.Equal(t, []string{env.SelfExe, "autogen", env.AutogenFilesDir(tgt), ConfigPlaceholder}, u.Step.CommandLines[0])
}

func TestInitializeTargetComment(t *testing.T) {
	for _, tc := range []struct {
		qt   QtSettings
		want string
	}{
		{QtSettings{Moc: true}, "Automatic MOC for target app"},
		{QtSettings{Moc: true, Uic: true}, "Automatic MOC and UIC for target app"},
		{QtSettings{Moc: true, Uic: true, Rcc: true}, "Automatic MOC, UIC and RCC for target app"},
		{QtSettings{Rcc: true}, "Automatic RCC for target app"},
	} {
		tgt := &fakeTarget{name: "app", qt: tc.qt}
		assert.Equal(t, tc.want, toolComment(tgt))
	}
}

func TestInitializeTargetPreBuild(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{multi: true, preBuild: true}
	env := newTestEnv(t, store, graph)
	env.SetConfigurations("", []string{"Debug", "Release"})

	tgt := &fakeTarget{
		name:     "widget",
		qt:       QtSettings{Moc: true},
		includes: mapsOf(nil),
		defines:  mapsOf(nil),
	}
	tgt.AddSource("/src/widget/widget.cpp")

	require.NoError(t, InitializeTarget(env, tgt))

	// no separate node; the step rides on the origin target
	assert.Empty(t, graph.utilities)
	require.Len(t, graph.preSteps["widget"], 1)
	assert.Empty(t, tgt.addedUtilityDeps)

	// multi-config include dir carries the configuration placeholder
	require.Len(t, tgt.addedIncludeDirs, 1)
	assert.Equal(t, filepath.Join(env.AutogenBuildDir(tgt), "include_"+ConfigPlaceholder), tgt.addedIncludeDirs[0])
}

func TestInitializeTargetPreBuildRejectsGeneratedSources(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{multi: true, preBuild: true}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{
		name:     "widget",
		qt:       QtSettings{Moc: true},
		includes: mapsOf(nil),
		defines:  mapsOf(nil),
	}
	gen := tgt.AddSource("/src/widget/ui_generated.h")
	gen.Generated = true
	env.Policy = PolicyProcess

	require.NoError(t, InitializeTarget(env, tgt))

	// a generated moc input forces the dedicated node even on graphs that
	// could attach pre-build steps
	assert.Empty(t, graph.preSteps)
	require.Len(t, graph.utilities, 1)
	assert.Contains(t, graph.utilities[0].Step.Depends, "/src/widget/ui_generated.h")
}

func TestInitializeTargetPreBuildRejectsTargetDependencies(t *testing.T) {
	store := newTestStore()
	store.targets["corelib"] = &fakeTarget{name: "corelib"}
	graph := &fakeGraph{multi: true, preBuild: true}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{
		name:     "widget",
		qt:       QtSettings{Moc: true},
		links:    []string{"corelib", "pthread"},
		includes: mapsOf(nil),
		defines:  mapsOf(nil),
	}
	tgt.AddSource("/src/widget/widget.cpp")

	require.NoError(t, InitializeTarget(env, tgt))

	// "corelib" resolves to a target, "pthread" does not
	assert.Empty(t, graph.preSteps)
	require.Len(t, graph.utilities, 1)
	assert.Equal(t, []string{"corelib"}, graph.utilities[0].Step.Depends)
}

func TestInitializeTargetFolder(t *testing.T) {
	store := newTestStore()
	store.props["AUTOGEN_TARGETS_FOLDER"] = "Generated"
	graph := &fakeGraph{}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{
		name:     "viewer",
		qt:       QtSettings{Moc: true},
		folder:   "Apps",
		includes: mapsOf(nil),
		defines:  mapsOf(nil),
	}
	require.NoError(t, InitializeTarget(env, tgt))
	require.Len(t, graph.utilities, 1)
	assert.Equal(t, "Generated", graph.utilities[0].Folder)

	// without the global properties the origin target's folder is used
	store.props = map[string]string{}
	graph.utilities = nil
	require.NoError(t, InitializeTarget(env, tgt))
	require.Len(t, graph.utilities, 1)
	assert.Equal(t, "Apps", graph.utilities[0].Folder)
}

func writeQrc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const qrcBody = `<!DOCTYPE RCC><RCC version="1.0">
<qresource>
  <file>images/icon.png</file>
  <file>style.qss</file>
</qresource>
</RCC>
`

func TestInitializeTargetResources(t *testing.T) {
	store := newTestStore()
	store.defs["QT_VERSION_MAJOR"] = "4"
	store.targets["Qt4::rcc"] = &fakeTarget{name: "Qt4::rcc", location: "/opt/qt4/bin/rcc"}
	graph := &fakeGraph{}
	env := newTestEnv(t, store, graph)

	qrc := writeQrc(t, env.SourceDir, "res/app.qrc", qrcBody)

	tgt := &fakeTarget{name: "app", qt: QtSettings{Rcc: true}}
	tgt.AddSource(qrc)

	require.NoError(t, InitializeTarget(env, tgt))

	require.Len(t, graph.utilities, 1)
	step := graph.utilities[0].Step

	// the wrapper lands under a checksum directory named after the manifest
	require.Len(t, step.Byproducts, 1)
	out := step.Byproducts[0]
	assert.Equal(t, "qrc_app.cpp", filepath.Base(out))
	assert.Equal(t, env.AutogenBuildDir(tgt), filepath.Dir(filepath.Dir(out)))

	// the manifest's declared files become dependencies of the step
	assert.Contains(t, step.Depends, filepath.Join(env.SourceDir, "res", "images", "icon.png"))
	assert.Contains(t, step.Depends, filepath.Join(env.SourceDir, "res", "style.qss"))

	// the manifest itself is watched for reconfiguration
	assert.Contains(t, env.DependFiles, qrc)
}

func TestInitializeTargetGeneratedResource(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{name: "app", qt: QtSettings{Rcc: true}}
	gen := tgt.AddSource("/out/generated.qrc")
	gen.Generated = true

	require.NoError(t, InitializeTarget(env, tgt))

	require.Len(t, graph.utilities, 1)
	step := graph.utilities[0].Step

	// for a generated manifest the file itself is the dependency; its
	// declared inputs are unknowable at configure time
	assert.Equal(t, []string{"/out/generated.qrc"}, step.Depends)
	assert.Empty(t, env.DependFiles)
}

func TestPathChecksumDistinguishesSameBaseName(t *testing.T) {
	store := newTestStore()
	env := newTestEnv(t, store, &fakeGraph{})

	a := env.pathChecksum(filepath.Join(env.SourceDir, "a", "res.qrc"))
	b := env.pathChecksum(filepath.Join(env.SourceDir, "b", "res.qrc"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, checksumLength)

	// stable across calls
	assert.Equal(t, a, env.pathChecksum(filepath.Join(env.SourceDir, "a", "res.qrc")))
}

func TestSetupTargetWritesInfo(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{
		name: "viewer",
		qt: QtSettings{
			Moc:           true,
			Uic:           true,
			MocOptions:    []string{"-DTRACE"},
			MocMacroNames: []string{"MY_OBJECT"},
		},
		includes: mapsOf([]string{"/src/include"}),
		defines:  mapsOf([]string{"QT_CORE_LIB"}),
		uicOpts:  mapsOf([]string{"--no-protection"}),
	}
	tgt.AddSource("/src/viewer/main.cpp")
	tgt.AddSource("/src/viewer/viewer.h")
	skipped := tgt.AddSource("/src/viewer/legacy.h")
	skipped.SkipMoc = true

	require.NoError(t, SetupTarget(env, tgt))

	info, err := LoadInfo(filepath.Join(env.AutogenFilesDir(tgt), InfoFileName))
	require.NoError(t, err)

	assert.Equal(t, env.AutogenBuildDir(tgt), info.String("AM_BUILD_DIR"))
	assert.Equal(t, "5", info.String("AM_QT_VERSION_MAJOR"))
	assert.Equal(t, []string{"/src/viewer/main.cpp"}, info.StringList("AM_SOURCES"))
	// headers are scanned too, including the moc-skipped one (it remains
	// a uic candidate)
	assert.ElementsMatch(t, []string{"/src/viewer/viewer.h", "/src/viewer/legacy.h"}, info.StringList("AM_HEADERS"))
	assert.Equal(t, []string{"/src/viewer/legacy.h"}, info.StringList("AM_MOC_SKIP"))

	assert.Equal(t, "-DTRACE", info.String("AM_MOC_OPTIONS"))
	assert.Equal(t, "MY_OBJECT", info.String("AM_MOC_MACRO_NAMES"))
	assert.Equal(t, "/src/include", info.String("AM_MOC_INCLUDES"))
	assert.Equal(t, "QT_CORE_LIB", info.String("AM_MOC_DEFINITIONS"))
	assert.Equal(t, "/opt/qt5/bin/moc", info.String("AM_QT_MOC_EXECUTABLE"))
	assert.Equal(t, "--no-protection", info.String("AM_UIC_TARGET_OPTIONS"))
	assert.Equal(t, "/opt/qt5/bin/uic", info.String("AM_QT_UIC_EXECUTABLE"))
}

func TestSetupTargetConfigOverrides(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{multi: true}
	env := newTestEnv(t, store, graph)
	env.SetConfigurations("", []string{"Debug", "Release"})

	tgt := &fakeTarget{
		name: "viewer",
		qt:   QtSettings{Moc: true},
		includes: map[string][]string{
			"":        {"/src/include"},
			"Debug":   {"/src/include"},
			"Release": {"/src/include"},
		},
		defines: map[string][]string{
			"":        {"QT_CORE_LIB"},
			"Debug":   {"QT_CORE_LIB", "DEBUG_HOOKS"},
			"Release": {"QT_CORE_LIB"},
		},
	}
	tgt.AddSource("/src/viewer/viewer.h")

	require.NoError(t, SetupTarget(env, tgt))

	info, err := LoadInfo(filepath.Join(env.AutogenFilesDir(tgt), InfoFileName))
	require.NoError(t, err)

	// only the differing configuration gets an override entry; lookups for
	// the others fall back to the default
	assert.Equal(t, "QT_CORE_LIB", info.String("AM_MOC_DEFINITIONS"))
	assert.Equal(t, "QT_CORE_LIB;DEBUG_HOOKS", info.ConfigString("AM_MOC_DEFINITIONS", "Debug"))
	assert.Equal(t, "QT_CORE_LIB", info.ConfigString("AM_MOC_DEFINITIONS", "Release"))
	assert.Equal(t, "_Debug", info.String("AM_CONFIG_SUFFIX_Debug"))
	assert.Equal(t, "_Release", info.String("AM_CONFIG_SUFFIX_Release"))
	// includes never differed, so no suffixed entry exists
	assert.Equal(t, "/src/include", info.ConfigString("AM_MOC_INCLUDES", "Debug"))
}

func TestSetupTargetReadOnlyInfoFile(t *testing.T) {
	store := newTestStore()
	graph := &fakeGraph{multi: true}
	env := newTestEnv(t, store, graph)
	env.SetConfigurations("", []string{"Debug"})

	tgt := &fakeTarget{
		name: "viewer",
		qt:   QtSettings{Moc: true},
		includes: map[string][]string{
			"":      nil,
			"Debug": {"/dbg/include"},
		},
		defines: map[string][]string{},
	}
	tgt.AddSource("/src/viewer/viewer.h")

	// simulate a leftover read-only settings file from a previous run
	infoFile := filepath.Join(env.AutogenFilesDir(tgt), InfoFileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(infoFile), 0o755))
	require.NoError(t, os.WriteFile(infoFile, []byte("AM_BUILD_DIR = \"stale\"\n"), 0o444))

	require.NoError(t, SetupTarget(env, tgt))

	info, err := LoadInfo(infoFile)
	require.NoError(t, err)
	assert.Equal(t, "/dbg/include", info.ConfigString("AM_MOC_INCLUDES", "Debug"))
}

func TestSetupTargetUicMissingQt5Tolerated(t *testing.T) {
	store := newTestStore()
	delete(store.targets, "Qt5::uic")
	graph := &fakeGraph{}
	env := newTestEnv(t, store, graph)

	tgt := &fakeTarget{
		name:     "viewer",
		qt:       QtSettings{Uic: true},
		includes: mapsOf(nil),
		defines:  mapsOf(nil),
		uicOpts:  mapsOf(nil),
	}
	tgt.AddSource("/src/viewer/viewer.h")

	require.NoError(t, SetupTarget(env, tgt))

	info, err := LoadInfo(filepath.Join(env.AutogenFilesDir(tgt), InfoFileName))
	require.NoError(t, err)
	assert.Equal(t, "", info.String("AM_QT_UIC_EXECUTABLE"))
}

func TestResolveToolExecutableErrors(t *testing.T) {
	store := newTestStore()
	env := newTestEnv(t, store, &fakeGraph{})
	tgt := &fakeTarget{name: "viewer"}

	_, err := resolveToolExecutable(env, tgt, "6", "moc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the AUTOMOC feature supports only Qt 4 and Qt 5 (viewer)")

	delete(store.targets, "Qt5::moc")
	_, err = resolveToolExecutable(env, tgt, "5", "moc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOMOC: Qt5::moc target not found (viewer)")
}
