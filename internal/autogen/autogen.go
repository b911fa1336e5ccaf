package autogen

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/quartz-build/quartz/internal/msg"
)

// InfoFileName is the per-target settings file consumed by the driver.
const InfoFileName = "AutogenInfo.toml"

// rccSource ties a resource file path to its generated flag; for generated
// files the producer, not the contents, is the dependency.
type rccSource struct {
	path      string
	generated bool
}

// toolComment summarizes the active tools in natural language, e.g.
// "Automatic MOC, UIC and RCC for target foo".
func toolComment(t Target) string {
	qt := t.Qt()
	var tools []string
	if qt.Moc {
		tools = append(tools, "MOC")
	}
	if qt.Uic {
		tools = append(tools, "UIC")
	}
	if qt.Rcc {
		tools = append(tools, "RCC")
	}
	joined := tools[0]
	if len(tools) > 1 {
		joined = strings.Join(tools[:len(tools)-1], ", ") + " and " + tools[len(tools)-1]
	}
	return "Automatic " + joined + " for target " + t.Name()
}

// sourceGroupFor picks the IDE group generated files are presented under:
// the tool specific global property first, then the generic one.
func sourceGroupFor(store Store, tool string) string {
	var group string
	switch tool {
	case "moc":
		group = store.GlobalProperty("AUTOMOC_SOURCE_GROUP")
	case "rcc":
		group = store.GlobalProperty("AUTORCC_SOURCE_GROUP")
	}
	if group == "" {
		group = store.GlobalProperty("AUTOGEN_SOURCE_GROUP")
	}
	return group
}

// addGeneratedSource registers a generated output as a new source of the
// owning target. The record is excluded from autogen scanning so the step
// never processes its own outputs.
func addGeneratedSource(env *Env, t Target, path, tool string) {
	sf := t.AddSource(path)
	sf.Generated = true
	sf.SkipAutogen = true
	sf.Group = sourceGroupFor(env.Store, tool)
}

// InitializeTarget performs the graph construction phase for one target:
// it collects the dependencies and byproducts of the generation step and
// wires the step into the build graph, either as a dedicated utility node
// or as a pre-build step on the origin target.
func InitializeTarget(env *Env, t Target) error {
	qt := t.Qt()
	if !qt.Moc && !qt.Uic && !qt.Rcc {
		return nil
	}

	autogenName := AutogenTargetName(t)
	buildDir := env.AutogenBuildDir(t)
	filesDir := env.AutogenFilesDir(t)
	dependsSet := make(map[string]bool)
	var provides []string

	// The generated tree is removed on clean, along with stale driver
	// settings from earlier configurations.
	env.addCleanFile(buildDir)
	for _, suffix := range env.configSuffixes() {
		env.addCleanFile(filepath.Join(filesDir, "AutogenOldSettings"+suffix+".toml"))
	}

	commandLines := [][]string{
		{env.SelfExe, "autogen", filesDir, ConfigPlaceholder},
	}
	comment := toolComment(t)

	// The combined moc compilation unit is always produced when moc runs.
	if qt.Moc {
		mocsComp := filepath.Join(buildDir, "mocs_compilation.cpp")
		addGeneratedSource(env, t, mocsComp, "moc")
		provides = append(provides, mocsComp)
	}

	// Generated headers are found through the autogen include directory.
	if qt.Moc || qt.Uic {
		includeDir := filepath.Join(buildDir, "include")
		if env.Graph.MultiConfig() {
			includeDir += "_" + ConfigPlaceholder
		}
		t.AddIncludeDirectory(includeDir, true)
	}

	// On the Visual Studio family a pre-build step avoids loading an extra
	// node into the IDE, when the structural constraints below permit it.
	usePreBuild := env.Graph.SupportsPreBuild()

	// User declared extra dependencies.
	for _, dep := range qt.ExtraDependencies {
		if dep != "" {
			dependsSet[dep] = true
		}
	}
	// Utility and link dependencies that resolve to known targets.
	for _, name := range t.Utilities() {
		if _, ok := env.Store.FindTarget(name); ok {
			dependsSet[name] = true
		}
	}
	for _, name := range t.LinkLibraries() {
		if _, ok := env.Store.FindTarget(name); ok {
			dependsSet[name] = true
		}
	}

	// Single pass over the full source set: collect generated moc/uic
	// inputs and eligible resource files.
	var generatedSources []string
	var rccSources []rccSource
	for _, sf := range t.Sources() {
		if sf.SkipAutogen {
			continue
		}
		if (qt.Moc || qt.Uic) && env.Policy == PolicyProcess {
			if format := sf.Format(); format == FormatCode || format == FormatHeader {
				if sf.Generated && ((qt.Moc && !sf.SkipMoc) || (qt.Uic && !sf.SkipUic)) {
					generatedSources = append(generatedSources, sf.Path)
				}
			}
		}
		if qt.Rcc && sf.Ext() == ResourceExt && !sf.SkipRcc {
			rccSources = append(rccSources, rccSource{path: sf.Path, generated: sf.Generated})
		}
	}

	// Generated inputs must be fresh before the generation step runs.
	for _, path := range generatedSources {
		dependsSet[path] = true
	}

	if len(rccSources) > 0 {
		ver := ResolveVersion(env.Store, t)
		rccExec, err := resolveToolExecutable(env, t, ver.Major, "rcc")
		if err != nil {
			return err
		}
		for _, qrc := range rccSources {
			// The output lands in a checksum subdirectory so resource
			// files with the same base name cannot collide.
			base := strings.TrimSuffix(filepath.Base(qrc.path), filepath.Ext(qrc.path))
			rccBuildFile := filepath.Join(buildDir, env.pathChecksum(qrc.path), "qrc_"+base+".cpp")
			addGeneratedSource(env, t, rccBuildFile, "rcc")
			provides = append(provides, rccBuildFile)

			if qrc.generated {
				dependsSet[qrc.path] = true
				continue
			}
			// Reconfigure when the manifest changes, and depend on the
			// files it declares.
			env.addDependFile(qrc.path)
			files, err := env.ListResourceInputs(ver.Major, rccExec, qrc.path)
			if err != nil {
				msg.Error("%v", err)
				continue
			}
			for _, f := range files {
				dependsSet[f] = true
			}
		}
	}

	depends := make([]string, 0, len(dependsSet))
	for dep := range dependsSet {
		depends = append(depends, dep)
	}
	slices.Sort(depends)

	if usePreBuild {
		// Generated sources and resource files may be invisible to the
		// IDE's own dependency tracking, and a pre-build step cannot wait
		// on another target.
		if len(generatedSources) > 0 || len(rccSources) > 0 {
			usePreBuild = false
		}
	}
	if usePreBuild {
		for _, dep := range depends {
			if _, ok := env.Store.FindTarget(dep); ok {
				usePreBuild = false
				break
			}
		}
	}

	step := BuildStep{
		Byproducts:   provides,
		Depends:      depends,
		CommandLines: commandLines,
		Comment:      comment,
	}
	if usePreBuild {
		if err := env.Graph.AttachPreBuildStep(t.Name(), step); err != nil {
			return fmt.Errorf("autogen: attaching pre-build step to %q: %w", t.Name(), err)
		}
		return nil
	}

	env.Graph.AddUtilityTarget(UtilityTarget{
		Name:       autogenName,
		WorkingDir: env.BinaryDir,
		Folder:     autogenFolder(env.Store, t),
		Step:       step,
	})
	t.AddUtilityDependency(autogenName)
	return nil
}

// autogenFolder picks the IDE folder of the utility node: the tool specific
// global property, then the generic one, then the origin target's folder.
func autogenFolder(store Store, t Target) string {
	folder := store.GlobalProperty("AUTOMOC_TARGETS_FOLDER")
	if folder == "" {
		folder = store.GlobalProperty("AUTOGEN_TARGETS_FOLDER")
	}
	if folder == "" {
		folder = t.Folder()
	}
	return folder
}

// SetupTarget performs the settings phase for one target: it scans the
// sources, computes the per-tool settings and persists them for the driver.
// Source list mutations from InitializeTarget must already have happened.
func SetupTarget(env *Env, t Target) error {
	qt := t.Qt()
	if !qt.Moc && !qt.Uic && !qt.Rcc {
		return nil
	}

	ver := ResolveVersion(env.Store, t)
	st := newSetupState()

	info := &Info{
		BuildDir:       env.AutogenBuildDir(t),
		SourceDir:      env.SourceDir,
		BinaryDir:      env.BinaryDir,
		QtVersionMajor: ver.Major,
	}

	if qt.Moc || qt.Uic {
		acquireScanFiles(t, env.Policy, st)
		if qt.Moc {
			if err := setupMoc(env, t, ver, st, info); err != nil {
				return err
			}
		}
		if qt.Uic {
			if err := setupUic(env, t, ver, st, info); err != nil {
				return err
			}
		}
	}
	if qt.Rcc {
		if err := setupRcc(env, t, ver, info); err != nil {
			return err
		}
	}

	info.Sources = st.sources
	info.Headers = st.headers

	infoFile := filepath.Join(env.AutogenFilesDir(t), InfoFileName)
	if err := writeInfo(infoFile, info); err != nil {
		return fmt.Errorf("autogen: writing settings for %q: %w", t.Name(), err)
	}

	// Per-configuration overrides are appended only when present; the
	// driver falls back to the unsuffixed value otherwise.
	extra := configOverrides(env, st)
	if len(extra) > 0 {
		if err := appendInfoSettings(infoFile, extra); err != nil {
			return fmt.Errorf("autogen: writing settings for %q: %w", t.Name(), err)
		}
	}
	return nil
}

// configOverrides flattens the per-configuration override maps into
// suffix-qualified settings keys.
func configOverrides(env *Env, st *setupState) map[string]string {
	extra := make(map[string]string)
	if env.Graph != nil && env.Graph.MultiConfig() {
		for _, config := range env.Configs {
			if config != "" {
				extra["AM_CONFIG_SUFFIX_"+config] = "_" + config
			}
		}
	}
	for config, value := range st.configMocDefines {
		extra["AM_MOC_DEFINITIONS_"+config] = value
	}
	for config, value := range st.configMocIncludes {
		extra["AM_MOC_INCLUDES_"+config] = value
	}
	for config, value := range st.configUicOptions {
		extra["AM_UIC_TARGET_OPTIONS_"+config] = value
	}
	return extra
}
