package autogen

import (
	"fmt"
	"strings"
)

// listSep joins logical string lists at the serialization boundary; the
// persisted settings carry one string per list.
const listSep = ";"

func joinList(items []string) string {
	return strings.Join(items, listSep)
}

// splitList expands a semicolon-separated property into its elements.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

// compileDefinitionsAndIncludes computes the semicolon-joined include
// directory and compile definition strings of a target for one
// configuration.
func compileDefinitionsAndIncludes(t Target, config string) (incs, defs string) {
	return joinList(t.IncludeDirectories(config)), joinList(t.CompileDefinitions(config))
}

// toolTargetName composes the imported tool target name, e.g. "Qt5::moc".
func toolTargetName(versionMajor, tool string) string {
	return "Qt" + versionMajor + "::" + tool
}

// resolveToolExecutable locates the external tool executable by looking up
// the imported tool target for the resolved major version. Only versions 4
// and 5 are supported; anything else is a hard setup error reported against
// the owning target.
func resolveToolExecutable(env *Env, t Target, versionMajor, tool string) (string, error) {
	feature := "AUTO" + strings.ToUpper(tool)
	if versionMajor != "4" && versionMajor != "5" {
		return "", fmt.Errorf("the %s feature supports only Qt 4 and Qt 5 (%s)", feature, t.Name())
	}
	toolTarget := toolTargetName(versionMajor, tool)
	tgt, ok := env.Store.FindTarget(toolTarget)
	if !ok {
		return "", fmt.Errorf("%s: %s target not found (%s)", feature, toolTarget, t.Name())
	}
	exec := tgt.ImportedLocation()
	if exec == "" {
		return "", fmt.Errorf("%s: %s target has no executable location (%s)", feature, toolTarget, t.Name())
	}
	return exec, nil
}

// setupMoc computes the moc related settings: skip list, target options,
// default and per-configuration include/define strings and the moc
// executable location.
func setupMoc(env *Env, t Target, ver Version, st *setupState, info *Info) error {
	qt := t.Qt()

	info.MocSkip = st.mocSkip
	info.MocOptions = joinList(qt.MocOptions)
	info.MocRelaxedMode = isOn(env.Store.Definition("QUARTZ_AUTOMOC_RELAXED_MODE"))
	info.MocMacroNames = joinList(qt.MocMacroNames)
	info.MocDependFilters = joinList(qt.MocDependFilters)

	if ver.AtLeast(5, 8) {
		info.MocPredefsCmd = env.Store.Definition("QUARTZ_CXX_COMPILER_PREDEFINES_COMMAND")
	}

	// Default (unsuffixed) settings, then one recomputation per
	// configuration, stored only when it differs from the default.
	incs, defs := compileDefinitionsAndIncludes(t, env.DefaultConfig)
	info.MocIncludes = incs
	info.MocDefinitions = defs
	for _, config := range env.Configs {
		configIncs, configDefs := compileDefinitionsAndIncludes(t, config)
		if configIncs != incs {
			st.configMocIncludes[config] = configIncs
		}
		if configDefs != defs {
			st.configMocDefines[config] = configDefs
		}
	}

	mocExec, err := resolveToolExecutable(env, t, ver.Major, "moc")
	if err != nil {
		return err
	}
	info.MocExecutable = mocExec
	return nil
}

func isOn(value string) bool {
	switch strings.ToLower(value) {
	case "1", "on", "yes", "true", "y":
		return true
	}
	return false
}
