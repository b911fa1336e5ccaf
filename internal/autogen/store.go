// Package autogen implements the configure-time initializer for the Qt code
// generation tools (moc, uic, rcc). For every target that enables one of the
// tools it scans the target's sources, computes the generated outputs and the
// dependencies of the generation step, wires a node into the build graph and
// persists the settings the build-time driver needs.
package autogen

import (
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FileFormat is the coarse classification of a source file by extension.
type FileFormat int

const (
	FormatOther FileFormat = iota
	FormatCode
	FormatHeader
	FormatResource
)

// ResourceExt is the only extension recognized as a resource manifest.
const ResourceExt = "qrc"

var codeExts = map[string]bool{
	"c": true, "cc": true, "cpp": true, "cxx": true, "c++": true,
	"m": true, "mm": true,
}

var headerExts = map[string]bool{
	"h": true, "hh": true, "hpp": true, "hxx": true, "h++": true,
	"inl": true, "txx": true,
}

// FormatOf maps a lowercase extension (without dot) to its FileFormat.
func FormatOf(ext string) FileFormat {
	switch {
	case codeExts[ext]:
		return FormatCode
	case headerExts[ext]:
		return FormatHeader
	case ext == ResourceExt:
		return FormatResource
	}
	return FormatOther
}

// SourceFile is one file record owned by a target's source registry. The
// recognized per-file properties are a closed set; arbitrary string keyed
// property bags are deliberately not supported.
type SourceFile struct {
	Path      string
	Generated bool

	SkipAutogen bool
	SkipMoc     bool
	SkipUic     bool
	SkipRcc     bool

	// Per-file tool option overrides, semicolon-separated.
	UicOptions string
	RccOptions string

	// Group is the IDE source group the file is presented under.
	Group string
}

// Ext returns the lowercased extension of the file without the dot.
func (sf *SourceFile) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(sf.Path), "."))
}

// Format classifies the file by its extension.
func (sf *SourceFile) Format() FileFormat {
	return FormatOf(sf.Ext())
}

// QtSettings is the closed set of autogen related target properties.
type QtSettings struct {
	Moc bool
	Uic bool
	Rcc bool

	MocOptions       []string
	MocMacroNames    []string
	MocDependFilters []string
	RccOptions       []string
	UicSearchPaths   []string

	// ExtraDependencies lists user declared dependencies of the generation
	// step (target names or file paths).
	ExtraDependencies []string

	// BuildDir overrides the default <binaryDir>/<target>_autogen directory.
	BuildDir string

	// VersionMajor/VersionMinor pin the tool version for this target and
	// take precedence over project wide definitions.
	VersionMajor string
	VersionMinor string
}

// Target is the initializer's view of a buildable unit. Implementations own
// the source registry; AddSource creates and returns a new record so the
// initializer can mark generated outputs.
type Target interface {
	Name() string

	Sources() []*SourceFile
	AddSource(path string) *SourceFile
	AddIncludeDirectory(dir string, system bool)
	AddUtilityDependency(name string)

	Utilities() []string
	LinkLibraries() []string

	IncludeDirectories(config string) []string
	CompileDefinitions(config string) []string
	AutoUicOptions(config string) []string

	Qt() QtSettings
	Folder() string

	// ImportedLocation returns the on-disk executable location for imported
	// tool targets and "" for regular targets.
	ImportedLocation() string
}

// Store is the ambient project state the initializer reads: project wide
// definitions, global properties and the target registry.
type Store interface {
	Definition(name string) string
	GlobalProperty(name string) string
	FindTarget(name string) (Target, bool)
}

// BuildStep describes one generation step to be scheduled by the graph.
type BuildStep struct {
	Byproducts   []string
	Depends      []string
	CommandLines [][]string
	Comment      string
}

// UtilityTarget is a dedicated build-graph node running a BuildStep.
type UtilityTarget struct {
	Name       string
	WorkingDir string
	Folder     string
	Step       BuildStep
}

// Graph is the build-graph writer the initializer augments.
type Graph interface {
	MultiConfig() bool

	// SupportsPreBuild reports whether the generator family can attach a
	// step directly to a target instead of creating a separate node.
	SupportsPreBuild() bool

	AddUtilityTarget(u UtilityTarget)
	AttachPreBuildStep(target string, step BuildStep) error
}

// GeneratedFilePolicy controls whether sources marked as generated are
// scanned by moc/uic. The conservative default ignores them because their
// dependency chains are often inferred incorrectly.
type GeneratedFilePolicy int

const (
	PolicyIgnore GeneratedFilePolicy = iota
	PolicyWarn
	PolicyProcess
)

// ConfigPlaceholder is substituted with the active configuration name by the
// generator backend when it emits command lines.
const ConfigPlaceholder = "$<CONFIG>"

// Env carries the ambient state for one initializer invocation. It is
// created per project, passed explicitly and never stored globally.
type Env struct {
	Store Store
	Graph Graph

	// SourceDir and BinaryDir are the project's source and build trees.
	SourceDir string
	BinaryDir string

	// SelfExe is the build tool executable used in generated command lines.
	SelfExe string

	// DefaultConfig is the configuration the unsuffixed settings are
	// computed for; Configs is the full ordered configuration sequence.
	// An empty Configs is normalized to a single anonymous configuration.
	DefaultConfig string
	Configs       []string

	Policy GeneratedFilePolicy

	// CleanFiles and DependFiles accumulate paths the surrounding build
	// system removes on clean or watches for reconfiguration.
	CleanFiles  []string
	DependFiles []string

	listCache *lru.Cache[string, []string]
}

// NewEnv returns an Env with normalized configurations and a warm cache for
// resource input listings.
func NewEnv(store Store, graph Graph, sourceDir, binaryDir, selfExe string) *Env {
	cache, _ := lru.New[string, []string](256)
	return &Env{
		Store:     store,
		Graph:     graph,
		SourceDir: sourceDir,
		BinaryDir: binaryDir,
		SelfExe:   selfExe,
		Configs:   []string{""},
		listCache: cache,
	}
}

// SetConfigurations installs the default configuration and the full
// configuration sequence, normalizing an empty sequence to one anonymous
// configuration.
func (e *Env) SetConfigurations(defaultConfig string, configs []string) {
	e.DefaultConfig = defaultConfig
	if len(configs) == 0 {
		configs = []string{""}
	}
	e.Configs = configs
}

func (e *Env) addCleanFile(path string) {
	e.CleanFiles = append(e.CleanFiles, path)
}

func (e *Env) addDependFile(path string) {
	e.DependFiles = append(e.DependFiles, path)
}

// configSuffixes returns the per-configuration file suffixes: "_<config>"
// for each configuration on multi-config graphs, a single empty suffix
// otherwise.
func (e *Env) configSuffixes() []string {
	if e.Graph != nil && e.Graph.MultiConfig() {
		suffixes := make([]string, 0, len(e.Configs))
		for _, cfg := range e.Configs {
			if cfg != "" {
				suffixes = append(suffixes, "_"+cfg)
			}
		}
		if len(suffixes) > 0 {
			return suffixes
		}
	}
	return []string{""}
}

// AutogenTargetName returns the name of the generation-step node for t.
func AutogenTargetName(t Target) string {
	return t.Name() + "_autogen"
}

// AutogenFilesDir returns the per-target metadata directory holding the
// persisted settings consumed by the driver.
func (e *Env) AutogenFilesDir(t Target) string {
	return filepath.Join(e.BinaryDir, "QuartzFiles", AutogenTargetName(t)+".dir")
}

// AutogenBuildDir returns the directory generated files are written to.
func (e *Env) AutogenBuildDir(t Target) string {
	if dir := t.Qt().BuildDir; dir != "" {
		return dir
	}
	return filepath.Join(e.BinaryDir, AutogenTargetName(t))
}
