package autogen

import (
	"github.com/quartz-build/quartz/internal/msg"
)

// Classification is the per-tool eligibility of a single source file.
type Classification struct {
	Format FileFormat
	Moc    bool
	Uic    bool
	Rcc    bool
}

// Classify decides which generation tools apply to sf under the target's
// tool switches and the generated-file policy. Only code and header files
// are considered for moc/uic; only the fixed resource extension for rcc.
func Classify(sf *SourceFile, qt QtSettings, policy GeneratedFilePolicy) Classification {
	c := Classification{Format: sf.Format()}

	switch c.Format {
	case FormatCode, FormatHeader:
		mocSkip := sf.SkipAutogen || sf.SkipMoc
		uicSkip := sf.SkipAutogen || sf.SkipUic
		c.Moc = qt.Moc && !mocSkip
		c.Uic = qt.Uic && !uicSkip
		if (c.Moc || c.Uic) && sf.Generated && policy != PolicyProcess {
			c.Moc = false
			c.Uic = false
		}
	case FormatResource:
		c.Rcc = qt.Rcc && !sf.SkipAutogen && !sf.SkipRcc
	}
	return c
}

// setupState accumulates the per-invocation scan results: eligible source
// and header lists, per-tool skip lists and the per-configuration override
// maps. It never escapes the invocation that created it.
type setupState struct {
	sources []string
	headers []string

	mocSkip []string
	uicSkip []string

	configMocIncludes map[string]string
	configMocDefines  map[string]string
	configUicOptions  map[string]string
}

func newSetupState() *setupState {
	return &setupState{
		configMocIncludes: make(map[string]string),
		configMocDefines:  make(map[string]string),
		configUicOptions:  make(map[string]string),
	}
}

// acquireScanFiles classifies every source of the target and fills the
// eligible and skip lists. Skipped files are recorded even when they are not
// eligible at all, because the driver needs to distinguish "not applicable"
// from "explicitly skipped" during its own scan.
func acquireScanFiles(t Target, policy GeneratedFilePolicy, st *setupState) {
	qt := t.Qt()
	for _, sf := range t.Sources() {
		format := sf.Format()
		if format != FormatCode && format != FormatHeader {
			continue
		}
		mocSkip := sf.SkipAutogen || sf.SkipMoc
		uicSkip := sf.SkipAutogen || sf.SkipUic
		accept := (qt.Moc && !mocSkip) || (qt.Uic && !uicSkip)

		// Generated files are dropped entirely unless the policy opts in.
		if accept && sf.Generated && policy != PolicyProcess {
			if policy == PolicyWarn {
				msg.Warn("automoc/autouic: ignoring generated source file %q "+
					"(set generated-file-policy to \"process\" to scan it)", sf.Path)
			}
			continue
		}

		if mocSkip {
			st.mocSkip = append(st.mocSkip, sf.Path)
		}
		if uicSkip {
			st.uicSkip = append(st.uicSkip, sf.Path)
		}

		if accept {
			switch format {
			case FormatCode:
				st.sources = append(st.sources, sf.Path)
			case FormatHeader:
				st.headers = append(st.headers, sf.Path)
			}
		}
	}
}
