package autogen

import (
	"path/filepath"
)

// setupUic computes the uic related settings: skip list, search paths,
// default and per-configuration target options, per-file option overrides
// and the uic executable location.
func setupUic(env *Env, t Target, ver Version, st *setupState, info *Info) error {
	qt := t.Qt()

	info.UicSkip = st.uicSkip

	// Search paths are resolved relative to the source directory.
	searchPaths := make([]string, 0, len(qt.UicSearchPaths))
	for _, p := range qt.UicSearchPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(env.SourceDir, p)
		}
		searchPaths = append(searchPaths, filepath.Clean(p))
	}
	info.UicSearchPaths = searchPaths

	// Default target options, then per-configuration variants stored only
	// when they differ.
	uicOpts := joinList(t.AutoUicOptions(env.DefaultConfig))
	info.UicTargetOptions = uicOpts
	for _, config := range env.Configs {
		configOpts := joinList(t.AutoUicOptions(config))
		if configOpts != uicOpts {
			st.configUicOptions[config] = configOpts
		}
	}

	// Per-file option overrides for files that were not skipped.
	{
		skipped := make(map[string]bool, len(st.uicSkip))
		for _, p := range st.uicSkip {
			skipped[p] = true
		}
		for _, sf := range t.Sources() {
			if sf.UicOptions == "" || skipped[sf.Path] {
				continue
			}
			info.UicOptionsFiles = append(info.UicOptionsFiles, sf.Path)
			info.UicOptionsOptions = append(info.UicOptionsOptions, sf.UicOptions)
		}
	}

	uicExec, err := resolveToolExecutable(env, t, ver.Major, "uic")
	if err != nil {
		// A Qt 5 project may enable autouic without linking the widgets
		// module; the missing tool target is tolerated in that case.
		if ver.Major == "5" {
			if _, ok := env.Store.FindTarget(toolTargetName("5", "uic")); !ok {
				return nil
			}
		}
		return err
	}
	info.UicExecutable = uicExec
	return nil
}
