package builder

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quartz-build/quartz/internal/autogen"
	"github.com/quartz-build/quartz/internal/builder/gen"
	"github.com/quartz-build/quartz/internal/msg"
)

var (
	errCantRunLib = errors.New("can't run a library target (target.lib is true)")
)

const (
	GeneratorNinja  = "ninja"
	GeneratorNative = "native"
	GeneratorVS2022 = "vs2022"
)

// Package represents a single component (root package or dependency) in the build graph
type Package struct {
	Name   string
	Path   string
	Config *Config
	IsRoot bool
}

// outputName returns the desired artifact name for this package (e.g., `my_app.exe` or `libmy_lib.a`)
func (p *Package) outputName() string {
	pkgName := p.Config.Package.Name
	if p.Config.Target.Lib {
		if runtime.GOOS == "windows" {
			return pkgName + ".lib"
		}
		return "lib" + pkgName + ".a"
	}
	if runtime.GOOS == "windows" {
		return pkgName + ".exe"
	}
	return pkgName
}

type Builder struct {
	cfg     *Config
	basedir string
	env     ConfigEnv
}

func NewBuilderInDirectory(path string) (*Builder, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	env := NewConfigEnv(path)
	cfg, err := ParseConfigFromFile(filepath.Join(path, "Quartz.toml"), env)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, basedir: path, env: env}, nil
}

func (b *Builder) resolveBuildGraph(rootPath string, depsDir string) (map[string]*Package, error) {
	packages := make(map[string]*Package)
	depSpecs := make(map[string]string)

	rootPackage := &Package{
		Name:   b.cfg.Package.Name,
		Path:   rootPath,
		Config: b.cfg,
		IsRoot: true,
	}
	packages[rootPackage.Name] = rootPackage

	queue := make([]string, 0)
	for name, source := range b.cfg.Dependencies {
		depSpecs[name] = source
		queue = append(queue, name)
	}

	for i := 0; i < len(queue); i++ {
		depName := queue[i]
		if _, exists := packages[depName]; exists {
			continue
		}

		depSource, ok := depSpecs[depName]
		if !ok {
			return nil, fmt.Errorf("internal error: dependency %q has no section", depName)
		}

		depPath := filepath.Join(depsDir, depName)

		// fetch dependency if it doesn't exist
		stat, err := os.Stat(depPath)
		if os.IsNotExist(err) || !stat.IsDir() {
			if err := os.MkdirAll(depPath, 0755); err != nil && !os.IsExist(err) {
				return nil, err
			}
			if _, err := fetchDependency(depSource, depPath); err != nil {
				return nil, fmt.Errorf("failed to fetch dependency %q: %w", depName, err)
			}
		}

		env := NewConfigEnv(depPath)
		depConfig, err := ParseConfigFromFile(filepath.Join(depPath, "Quartz.toml"), env)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config for dependency %q: %w", depName, err)
		}

		if depConfig.Package.Name != depName {
			msg.Warn("dependency %q has a mismatched package name: %q", depName, depConfig.Package.Name)
		}

		packages[depName] = &Package{
			Name:   depConfig.Package.Name,
			Path:   depPath,
			Config: depConfig,
		}

		for name, source := range depConfig.Dependencies {
			if _, ok := depSpecs[name]; !ok {
				depSpecs[name] = source
			}
			queue = append(queue, name)
		}
	}

	return packages, nil
}

func (b *Builder) collectFiles(pkg *Package, patterns []string, stripFilename bool) ([]string, error) {
	var files []string
	var stripmap map[string]struct{}
	if stripFilename {
		stripmap = map[string]struct{}{}
	}
	fsys := os.DirFS(pkg.Path)

	var globparams []doublestar.GlobOption
	if !stripFilename {
		globparams = append(globparams, doublestar.WithFilesOnly())
	}

	for _, pat := range patterns {
		if filepath.IsAbs(pat) {
			files = append(files, filepath.Clean(pat))
			continue
		}
		matches, err := doublestar.Glob(fsys, pat, globparams...)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			absPath, err := filepath.Abs(filepath.Join(pkg.Path, match))
			if err != nil {
				return nil, fmt.Errorf("while globbing directory %s: %w", match, err)
			}
			if stripFilename {
				if stat, err := os.Stat(absPath); err == nil && !stat.IsDir() {
					stripmap[filepath.Dir(filepath.Clean(absPath))] = struct{}{} // this is a file, we need directories
				} else {
					stripmap[absPath] = struct{}{}
				}
			} else {
				files = append(files, filepath.Clean(absPath))
			}
		}
	}

	if stripFilename {
		for dir := range stripmap {
			files = append(files, dir)
		}
	}

	return files, nil
}

func createGenerator(generator, profile string) gen.Generator {
	switch generator {
	case GeneratorNinja:
		return gen.NewNinjaGen(profile)
	case GeneratorNative:
		return gen.NewNativeBuilder(profile)
	case GeneratorVS2022:
		return gen.NewVS2022Gen()
	default:
		panic("createGenerator: unreachable")
	}
}

func (b *Builder) makeCflags(profile string) ([]string, error) {
	if prof, ok := b.cfg.Profile[profile]; ok {
		var cflags []string
		optLevel := prof.OptLevel.String()
		if optLevel != "" {
			cflags = append(cflags, "-O"+optLevel)
		}
		return cflags, nil
	}
	return nil, fmt.Errorf("unknown profile %q, known profiles: %s", profile, strings.Join(b.cfg.Profiles(), ", "))
}

// graphAdapter exposes a generator backend as the build-graph writer the
// autogen initializer augments. Dependency lists coming out of the
// initializer name project targets, while the backend registers its build
// nodes under artifact names, so the adapter rewrites those entries on the
// way through.
type graphAdapter struct {
	g     gen.Generator
	nodes map[string]string // target name -> backend build node
	known map[string]bool   // every resolvable target name
}

func newGraphAdapter(g gen.Generator, packages map[string]*Package, tools map[string]string) graphAdapter {
	a := graphAdapter{
		g:     g,
		nodes: make(map[string]string, len(packages)),
		known: make(map[string]bool, len(packages)+len(tools)),
	}
	for _, pkg := range packages {
		a.known[pkg.Name] = true
		if !pkg.Config.Target.HeaderOnly {
			a.nodes[pkg.Name] = pkg.outputName()
		}
	}
	for name := range tools {
		a.known[name] = true
	}
	return a
}

func (a graphAdapter) MultiConfig() bool      { return a.g.MultiConfig() }
func (a graphAdapter) SupportsPreBuild() bool { return a.g.SupportsPreBuild() }

func (a graphAdapter) AddUtilityTarget(u autogen.UtilityTarget) {
	a.g.AddUtilityTarget(gen.UtilityTarget{
		Name:       u.Name,
		WorkingDir: u.WorkingDir,
		Folder:     u.Folder,
		Step:       a.genStep(u.Step),
	})
}

func (a graphAdapter) AttachPreBuildStep(target string, step autogen.BuildStep) error {
	return a.g.AttachPreBuildStep(target, a.genStep(step))
}

func (a graphAdapter) genStep(step autogen.BuildStep) gen.BuildStep {
	return gen.BuildStep{
		Byproducts:   step.Byproducts,
		Depends:      a.resolveDepends(step.Depends),
		CommandLines: step.CommandLines,
		Comment:      step.Comment,
	}
}

// resolveDepends maps target names to the node the backend builds for
// them. Targets without an artifact (header-only packages, imported
// tools) are dropped; file paths pass through untouched.
func (a graphAdapter) resolveDepends(depends []string) []string {
	resolved := make([]string, 0, len(depends))
	for _, dep := range depends {
		if node, ok := a.nodes[dep]; ok {
			resolved = append(resolved, node)
			continue
		}
		if a.known[dep] {
			continue
		}
		resolved = append(resolved, dep)
	}
	return resolved
}

// Build resolves the dependency graph, runs the autogen initializer for
// every target that enables a generation tool and then invokes the
// generator (or builder). With configureOnly the build graph is generated
// but not built.
func (b *Builder) Build(profile, generator string, configureOnly bool) error {
	buildDir := filepath.Join(b.basedir, "build")
	depsDir := filepath.Join(buildDir, "_deps")
	if err := os.MkdirAll(depsDir, 0755); err != nil {
		return err
	}

	globalCflags, err := b.makeCflags(profile)
	if err != nil {
		return err
	}

	// resolve buildgraph
	packages, err := b.resolveBuildGraph(b.basedir, depsDir)
	if err != nil {
		return fmt.Errorf("failed to resolve dependency graph: %w", err)
	}

	g := createGenerator(generator, profile)

	// The project store carries the root package's definitions, global
	// properties and imported tool registry.
	project := NewProject(b.cfg.Definitions, b.cfg.Properties)
	for name, location := range b.cfg.Qt.Tools {
		project.AddTarget(newImportedTarget(name, location))
	}

	// pass 1: register targets and their sources
	targets := make(map[string]*Target)
	for _, pkg := range packages {
		t := newTarget(pkg.Name, pkg.Path, pkg.Config)

		sources, err := b.collectFiles(pkg, pkg.Config.Target.Sources, false)
		if err != nil {
			return fmt.Errorf("failed to collect sources for %s: %w", pkg.Name, err)
		}
		for _, src := range sources {
			t.AddSource(src)
		}

		targets[pkg.Name] = t
		project.AddTarget(t)
	}

	// pass 2: autogen initialization. Source registrations must complete
	// before the generation step's byproduct and dependency lists are
	// finalized, so both phases run per target before the next one.
	selfExe, err := os.Executable()
	if err != nil {
		selfExe = "quartz"
	}
	adapter := newGraphAdapter(g, packages, b.cfg.Qt.Tools)
	for _, pkg := range packages {
		t := targets[pkg.Name]
		qt := t.Qt()
		if !qt.Moc && !qt.Uic && !qt.Rcc {
			continue
		}

		env := autogen.NewEnv(project, adapter, pkg.Path, buildDir, selfExe)
		env.Policy = t.GeneratedFilePolicy()
		if g.MultiConfig() {
			env.SetConfigurations("", g.Configurations())
		} else {
			env.SetConfigurations(profile, []string{profile})
		}

		if err := autogen.InitializeTarget(env, t); err != nil {
			return err
		}
		if err := autogen.SetupTarget(env, t); err != nil {
			return err
		}

		if err := writeFileList(buildDir, pkg.Name+".clean.txt", env.CleanFiles); err != nil {
			msg.Warn("failed to record clean files for %s: %v", pkg.Name, err)
		}
		// Manifests whose contents feed the dependency lists; editing one
		// requires a reconfigure, so the list is kept for `quartz build`
		// wrappers and future watch tooling.
		if err := writeFileList(buildDir, pkg.Name+".depend.txt", env.DependFiles); err != nil {
			msg.Warn("failed to record depend files for %s: %v", pkg.Name, err)
		}
	}

	var rootPkg *Package

	// pass 3: add compile targets
	for _, pkg := range packages {
		if pkg.IsRoot {
			rootPkg = pkg
		}
		t := targets[pkg.Name]

		// collect own headers
		ownHeaders, err := b.collectFiles(pkg, pkg.Config.Target.Headers, true)
		if err != nil {
			return fmt.Errorf("failed to collect headers for %s: %w", pkg.Name, err)
		}

		var depOutputs []string
		cflags := slices.Clone(globalCflags)
		cflags = append(cflags, pkg.Config.Target.Cflags...)

		for _, includePath := range ownHeaders {
			cflags = append(cflags, "-I"+includePath)
		}
		for _, includePath := range t.IncludeDirectories(profile) {
			cflags = append(cflags, "-I"+gen.SubstituteConfig(includePath, profile))
		}

		for depName := range pkg.Config.Dependencies {
			dep, ok := packages[depName]
			if !ok {
				return fmt.Errorf("internal error: resolved dependency %q not found in package map", depName)
			}

			depHeaders, err := b.collectFiles(dep, dep.Config.Target.Headers, true)
			if err != nil {
				return fmt.Errorf("failed to collect headers for dependency %q: %w", dep.Name, err)
			}
			for _, includePath := range depHeaders {
				cflags = append(cflags, "-I"+includePath)
			}

			// don't produce link artifacts for header-only deps
			if dep.Config.Target.HeaderOnly {
				continue
			}

			if !dep.Config.Target.Lib {
				return fmt.Errorf("package %q depends on %q, which is not a library (target.lib = false)", pkg.Name, dep.Name)
			}

			depOutputs = append(depOutputs, dep.outputName())
		}

		// build ldflags
		var ldflags []string

		seen := make(map[string]bool)
		var collectLinks func(string)
		collectLinks = func(name string) {
			if seen[name] {
				return
			}
			seen[name] = true
			dep, ok := packages[name]
			if !ok {
				return
			}
			for _, lib := range dep.Config.Target.Links {
				ldflags = append(ldflags, "-l"+lib)
			}
			for child := range dep.Config.Dependencies {
				collectLinks(child)
			}
		}

		for depName := range pkg.Config.Dependencies {
			collectLinks(depName)
		}

		for _, define := range t.CompileDefinitions(profile) {
			cflags = append(cflags, "-D"+define)
		}

		for _, lib := range pkg.Config.Target.Links {
			if _, isTarget := targets[lib]; !isTarget {
				ldflags = append(ldflags, "-l"+lib)
			}
		}

		if err := pkg.Config.RunBuildScript(b.env); err != nil {
			return err
		}

		if !pkg.Config.Target.HeaderOnly {
			g.AddTarget(
				pkg.outputName(),
				pkg.Path,
				compileSources(t),
				depOutputs,
				t.Utilities(),
				pkg.Config.Target.Lib,
				cflags,
				ldflags,
			)
		}
	}

	if rootPkg == nil {
		return errors.New("internal error: root package not found after graph resolution")
	}

	// generate the buildfile
	g.SetCompiler(findCompiler(false), findCompiler(true))

	out := g.Generate()
	if out != "" {
		buildFile := filepath.Join(buildDir, g.BuildFile())
		if err = os.WriteFile(buildFile, []byte(out), 0644); err != nil {
			return err
		}
	}

	if configureOnly {
		return nil
	}
	return g.Invoke(buildDir)
}

// compileSources returns the paths of the target's compilable sources,
// including generated outputs registered during initialization.
func compileSources(t *Target) []string {
	var srcs []string
	for _, sf := range t.Sources() {
		if sf.Format() == autogen.FormatCode {
			srcs = append(srcs, sf.Path)
		}
	}
	return srcs
}

// writeFileList records a newline separated path list (clean targets,
// reconfigure inputs) beside the generated build files.
func writeFileList(buildDir, name string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	dir := filepath.Join(buildDir, "QuartzFiles")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name),
		[]byte(strings.Join(files, "\n")+"\n"), 0o644)
}

func (b *Builder) BuildAndRun(args []string, profile, generator string) error {
	if b.cfg.Target.Lib {
		return errCantRunLib
	}

	if err := b.Build(profile, generator, false); err != nil {
		return err
	}

	outputName := b.cfg.Package.Name
	if runtime.GOOS == "windows" {
		outputName += ".exe"
	}

	cmd := exec.Command(filepath.Join(b.basedir, "build", outputName), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
