package autogen

import (
	"slices"
	"strings"

	"github.com/quartz-build/quartz/internal/msg"
)

// rccValueOptions are the option keys that carry a value in the following
// list element.
var rccValueOptions = []string{"name", "root", "compress", "threshold"}

// mergeRccOptions merges per-file options into a copy of the target level
// options. The lists are positional because the external tool's option list
// is positional: when a value-bearing option key appears in both lists the
// file level value replaces the target level value in place, and
// non-overlapping file options are appended. A value option appearing as the
// last element with no following value is treated as a plain flag.
func mergeRccOptions(opts, fileOpts []string, isQt5 bool) []string {
	merged := slices.Clone(opts)
	var extra []string
	for i := 0; i < len(fileOpts); i++ {
		opt := fileOpts[i]
		existing := slices.Index(merged, opt)
		if existing < 0 {
			extra = append(extra, opt)
			continue
		}
		name := strings.TrimPrefix(opt, "-")
		if isQt5 {
			name = strings.TrimPrefix(name, "-")
		}
		if name == opt || !slices.Contains(rccValueOptions, name) {
			continue
		}
		// Replace the existing value with the file level one, when both
		// lists actually carry a trailing value.
		if existing+1 < len(merged) && i+1 < len(fileOpts) {
			merged[existing+1] = fileOpts[i+1]
			i++
		}
	}
	return append(merged, extra...)
}

// setupRcc computes the rcc related settings: the eligible resource file
// list, the recursively discovered inputs of every non-generated resource
// file and the merged per-file option lists.
func setupRcc(env *Env, t Target, ver Version, info *Info) error {
	qt := t.Qt()
	isQt5 := ver.Major == "5"

	rccExec, err := resolveToolExecutable(env, t, ver.Major, "rcc")
	if err != nil {
		return err
	}
	info.RccExecutable = rccExec

	for _, sf := range t.Sources() {
		c := Classify(sf, qt, env.Policy)
		if !c.Rcc {
			continue
		}
		info.RccFiles = append(info.RccFiles, sf.Path)

		// Input lists are read only for non-generated resource files; a
		// listing failure is reported but does not abort initialization.
		var inputs []string
		if !sf.Generated {
			files, err := env.ListResourceInputs(ver.Major, rccExec, sf.Path)
			if err != nil {
				msg.Error("%v", err)
			} else {
				inputs = files
			}
		}
		info.RccInputs = append(info.RccInputs, joinList(inputs))

		rccOptions := mergeRccOptions(qt.RccOptions, splitList(sf.RccOptions), isQt5)
		if len(rccOptions) > 0 {
			info.RccOptionsFiles = append(info.RccOptionsFiles, sf.Path)
			info.RccOptionsOptions = append(info.RccOptionsOptions, joinList(rccOptions))
		}
	}
	return nil
}
