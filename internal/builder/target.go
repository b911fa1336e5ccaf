package builder

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/quartz-build/quartz/internal/autogen"
)

// Target is the concrete build target registered with the project store.
// It implements autogen.Target: the typed property set comes straight from
// the parsed [target] section.
type Target struct {
	name    string
	basedir string
	cfg     *Config

	sources     []*autogen.SourceFile
	sourceIndex map[string]*autogen.SourceFile

	includeDirs []string
	utilities   []string

	// Location of the executable for imported tool targets.
	location string
}

func newTarget(name, basedir string, cfg *Config) *Target {
	return &Target{
		name:        name,
		basedir:     basedir,
		cfg:         cfg,
		sourceIndex: make(map[string]*autogen.SourceFile),
		utilities:   slices.Clone(cfg.Target.Utilities),
	}
}

// newImportedTarget registers an externally provided tool (e.g. "Qt5::moc")
// whose only attribute is its executable location.
func newImportedTarget(name, location string) *Target {
	return &Target{
		name:        name,
		cfg:         new(Config),
		sourceIndex: make(map[string]*autogen.SourceFile),
		location:    location,
	}
}

func (t *Target) Name() string { return t.name }

func (t *Target) Sources() []*autogen.SourceFile { return t.sources }

// AddSource registers a file with the target's source registry, applying
// any [[target.source]] per-file overrides, and returns the record.
func (t *Target) AddSource(path string) *autogen.SourceFile {
	path = filepath.Clean(path)
	if sf, ok := t.sourceIndex[path]; ok {
		return sf
	}
	sf := &autogen.SourceFile{Path: path}
	for _, props := range t.cfg.Target.Source {
		override := props.File
		if !filepath.IsAbs(override) {
			override = filepath.Join(t.basedir, override)
		}
		if filepath.Clean(override) != path {
			continue
		}
		sf.Generated = props.Generated
		sf.SkipAutogen = props.SkipAutogen
		sf.SkipMoc = props.SkipMoc
		sf.SkipUic = props.SkipUic
		sf.SkipRcc = props.SkipRcc
		sf.UicOptions = strings.Join(props.UicOptions, ";")
		sf.RccOptions = strings.Join(props.RccOptions, ";")
	}
	t.sources = append(t.sources, sf)
	t.sourceIndex[path] = sf
	return sf
}

func (t *Target) AddIncludeDirectory(dir string, system bool) {
	if !slices.Contains(t.includeDirs, dir) {
		t.includeDirs = append(t.includeDirs, dir)
	}
}

func (t *Target) AddUtilityDependency(name string) {
	if !slices.Contains(t.utilities, name) {
		t.utilities = append(t.utilities, name)
	}
}

func (t *Target) Utilities() []string { return t.utilities }

func (t *Target) LinkLibraries() []string { return t.cfg.Target.Links }

// IncludeDirectories returns the target's include directories for one
// configuration: the [target] list, the matching profile's additions and
// directories added during initialization.
func (t *Target) IncludeDirectories(config string) []string {
	var dirs []string
	for _, dir := range t.cfg.Target.Includes {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(t.basedir, dir)
		}
		dirs = append(dirs, filepath.Clean(dir))
	}
	if prof, ok := t.cfg.Profile[config]; ok {
		for _, dir := range prof.Includes {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(t.basedir, dir)
			}
			dirs = append(dirs, filepath.Clean(dir))
		}
	}
	return append(dirs, t.includeDirs...)
}

// CompileDefinitions returns the preprocessor definitions for one
// configuration in deterministic order.
func (t *Target) CompileDefinitions(config string) []string {
	merged := make(map[string]string, len(t.cfg.Target.Defines))
	for k, v := range t.cfg.Target.Defines {
		merged[k] = v
	}
	if prof, ok := t.cfg.Profile[config]; ok {
		for k, v := range prof.Defines {
			merged[k] = v
		}
	}

	defs := make([]string, 0, len(merged))
	for k, v := range merged {
		if v != "" {
			defs = append(defs, k+"="+v)
		} else {
			defs = append(defs, k)
		}
	}
	slices.Sort(defs)
	return defs
}

// AutoUicOptions returns the uic options for one configuration: the
// [target.qt] list plus the matching profile's additions.
func (t *Target) AutoUicOptions(config string) []string {
	opts := slices.Clone(t.cfg.Target.Qt.UicTargetOptions)
	if prof, ok := t.cfg.Profile[config]; ok {
		opts = append(opts, prof.UicOptions...)
	}
	return opts
}

func (t *Target) Qt() autogen.QtSettings {
	qt := t.cfg.Target.Qt
	return autogen.QtSettings{
		Moc:               qt.Automoc,
		Uic:               qt.Autouic,
		Rcc:               qt.Autorcc,
		MocOptions:        qt.MocOptions,
		MocMacroNames:     qt.MocMacroNames,
		MocDependFilters:  qt.MocDependFilters,
		RccOptions:        qt.RccOptions,
		UicSearchPaths:    qt.UicSearchPaths,
		ExtraDependencies: qt.ExtraDepends,
		BuildDir:          qt.BuildDir,
		VersionMajor:      qt.VersionMajor,
		VersionMinor:      qt.VersionMinor,
	}
}

func (t *Target) Folder() string { return t.cfg.Target.Folder }

func (t *Target) ImportedLocation() string { return t.location }

// GeneratedFilePolicy maps the configured policy string to its enum value;
// unknown values fall back to the conservative default.
func (t *Target) GeneratedFilePolicy() autogen.GeneratedFilePolicy {
	switch t.cfg.Target.Qt.GeneratedFilePolicy {
	case "process":
		return autogen.PolicyProcess
	case "warn":
		return autogen.PolicyWarn
	}
	return autogen.PolicyIgnore
}

// Project is the target registry and ambient definition store shared by
// every initializer invocation of one configure run.
type Project struct {
	targets     map[string]*Target
	definitions map[string]string
	properties  map[string]string
}

func NewProject(definitions, properties map[string]string) *Project {
	return &Project{
		targets:     make(map[string]*Target),
		definitions: definitions,
		properties:  properties,
	}
}

func (p *Project) AddTarget(t *Target) { p.targets[t.name] = t }

func (p *Project) Definition(name string) string { return p.definitions[name] }

func (p *Project) GlobalProperty(name string) string { return p.properties[name] }

func (p *Project) FindTarget(name string) (autogen.Target, bool) {
	t, ok := p.targets[name]
	if !ok {
		return nil, false
	}
	return t, true
}
