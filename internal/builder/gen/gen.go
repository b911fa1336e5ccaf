package gen

import (
	"path/filepath"
	"strings"
)

// ConfigPlaceholder marks a spot in a path or command argument that is
// replaced with the active configuration name at generation time.
const ConfigPlaceholder = "$<CONFIG>"

// BuildStep is a command sequence attached to the build graph, either as
// the body of a utility target or as a pre-build step of an existing one.
type BuildStep struct {
	// Byproducts are files the commands produce.
	Byproducts []string
	// Depends are files or target names the step must run after.
	Depends []string
	// CommandLines are executed in order, each one argv-style.
	CommandLines [][]string
	// Comment is shown while the step runs.
	Comment string
}

// UtilityTarget is a target with no compile output, only a BuildStep.
type UtilityTarget struct {
	Name       string
	WorkingDir string
	Folder     string
	Step       BuildStep
}

type Generator interface {
	SetCompiler(cc, cxx string)
	// AddTarget adds a compiled package (library or executable) to the
	// build graph. utilities names utility targets that must run first.
	AddTarget(name, basedir string, sources, dependencies, utilities []string, isLib bool, cflags, ldflags []string)
	AddUtilityTarget(u UtilityTarget)
	// AttachPreBuildStep attaches a step to an already added target so
	// it runs before the target's own compilation. Only some backends
	// support this; SupportsPreBuild reports whether this one does.
	AttachPreBuildStep(target string, step BuildStep) error
	// MultiConfig reports whether the backend encodes all configurations
	// in one build file (the configuration is chosen at build time).
	MultiConfig() bool
	SupportsPreBuild() bool
	// Configurations returns the configuration names of a multi-config
	// backend, nil otherwise.
	Configurations() []string
	Generate() string
	BuildFile() string
	Invoke(buildDir string) error
}

// sourceFile represents a single source file and its corresponding object file path
type sourceFile struct {
	src   string
	obj   string
	isCxx bool
}

// buildUnit represents a single unit to be built (a library or an executable)
type buildUnit struct {
	name         string
	isLib        bool
	sources      []sourceFile
	dependencies []string
	utilities    []string
	cflags       []string
	ldflags      []string
	basedir      string
}

var cxxExts = map[string]bool{
	".cpp": true, ".cc": true, ".cxx": true, ".c++": true,
	".cppm": true, ".ixx": true, ".mm": true,
}

func isCxx(path string) bool {
	return cxxExts[strings.ToLower(filepath.Ext(path))]
}

// SubstituteConfig replaces every ConfigPlaceholder in s with config.
func SubstituteConfig(s, config string) string {
	return strings.ReplaceAll(s, ConfigPlaceholder, config)
}

func substituteArgs(args []string, config string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = SubstituteConfig(arg, config)
	}
	return out
}
