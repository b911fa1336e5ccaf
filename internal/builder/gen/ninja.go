package gen

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quartz-build/quartz/internal/msg"
)

type NinjaGen struct {
	cc, cxx   string
	config    string
	targets   map[string]buildUnit
	utilities []UtilityTarget
}

// NewNinjaGen creates a single-configuration ninja generator. Every
// ConfigPlaceholder is resolved to config at generation time.
func NewNinjaGen(config string) *NinjaGen {
	return &NinjaGen{
		config:  config,
		targets: make(map[string]buildUnit),
	}
}

func (g *NinjaGen) SetCompiler(cc, cxx string) {
	g.cc, g.cxx = cc, cxx
}

func (g *NinjaGen) BuildFile() string { return "build.ninja" }

func (g *NinjaGen) MultiConfig() bool        { return false }
func (g *NinjaGen) SupportsPreBuild() bool   { return false }
func (g *NinjaGen) Configurations() []string { return nil }

func (g *NinjaGen) AttachPreBuildStep(target string, step BuildStep) error {
	return errors.New("the ninja generator cannot attach pre-build steps")
}

var ninjaPathEscaper = strings.NewReplacer(":", "$:", " ", "$ ")

func quote(s string) string { return ninjaPathEscaper.Replace(s) }

// AddTarget adds a package (library or executable) to the build graph
func (g *NinjaGen) AddTarget(name, basedir string, sources, dependencies, utilities []string, isLib bool, cflags, ldflags []string) {
	targetSources := make([]sourceFile, 0, len(sources))
	for _, srcPath := range sources {
		srcPath = SubstituteConfig(srcPath, g.config)
		rel, err := filepath.Rel(basedir, srcPath)
		if err != nil {
			rel = filepath.Base(srcPath)
			msg.Warn("source file %s is outside of base directory %s", srcPath, basedir)
		}

		objPath := quote(filepath.ToSlash(filepath.Join("QuartzFiles", name+".dir", rel))) + ".obj"
		targetSources = append(targetSources, sourceFile{src: srcPath, obj: objPath, isCxx: isCxx(srcPath)})
	}

	g.targets[name] = buildUnit{
		name:         name,
		isLib:        isLib,
		sources:      targetSources,
		dependencies: dependencies,
		utilities:    utilities,
		cflags:       substituteArgs(cflags, g.config),
		ldflags:      substituteArgs(ldflags, g.config),
		basedir:      basedir,
	}
}

func (g *NinjaGen) AddUtilityTarget(u UtilityTarget) {
	g.utilities = append(g.utilities, u)
}

// utilityCommand renders a BuildStep's command lines as one shell command
func utilityCommand(workDir string, step BuildStep, config string) string {
	var cmds []string
	if workDir != "" {
		cmds = append(cmds, "cd "+workDir)
	}
	for _, line := range step.CommandLines {
		cmds = append(cmds, strings.Join(substituteArgs(line, config), " "))
	}
	return strings.Join(cmds, " && ")
}

func (g *NinjaGen) Generate() string {
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.1")
	writeln(&sb, "cc = ", g.cc)
	writeln(&sb, "cxx = ", g.cxx)
	writeln(&sb)

	// gen rules
	write(&sb,
		`rule cc
  command = $cc $cflags -c $in -o $out
  description = CC $out
`)
	write(&sb,
		`rule cxx
  command = $cxx $cflags -c $in -o $out
  description = CXX $out
`)
	write(&sb,
		`rule link
  command = $cxx $ldflags -o $out $in
  description = LINK $out
`)
	write(&sb,
		`rule ar
  command = ar rcs $out $in
  description = AR $out
`)
	writeln(&sb)

	// utility targets: one rule each, re-run on every build
	for _, u := range g.utilities {
		writeln(&sb, "rule ", u.Name, "_cmd")
		writeln(&sb, "  command = ", utilityCommand(u.WorkingDir, u.Step, g.config))
		if u.Step.Comment != "" {
			writeln(&sb, "  description = ", u.Step.Comment)
		}

		write(&sb, "build")
		if len(u.Step.Byproducts) == 0 {
			write(&sb, " ", quote(u.Name+".stamp"))
		}
		for _, out := range u.Step.Byproducts {
			write(&sb, " ", quote(filepath.ToSlash(SubstituteConfig(out, g.config))))
		}
		write(&sb, ": ", u.Name, "_cmd")
		if len(u.Step.Depends) > 0 {
			write(&sb, " |")
			for _, dep := range u.Step.Depends {
				write(&sb, " ", quote(filepath.ToSlash(SubstituteConfig(dep, g.config))))
			}
		}
		writeln(&sb)

		write(&sb, "build ", u.Name, ": phony")
		if len(u.Step.Byproducts) == 0 {
			write(&sb, " ", quote(u.Name+".stamp"))
		}
		for _, out := range u.Step.Byproducts {
			write(&sb, " ", quote(filepath.ToSlash(SubstituteConfig(out, g.config))))
		}
		writeln(&sb)
	}
	writeln(&sb)

	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	// build object files
	for _, name := range names {
		target := g.targets[name]
		writeln(&sb, "cflags_", sanitize(name), " = ", strings.Join(target.cflags, " "))
		for _, source := range target.sources {
			rule := "cc"
			if source.isCxx {
				rule = "cxx"
			}
			write(&sb, "build ", source.obj, ": ", rule, " ", quote(source.src))
			// object files of a target wait for its utility targets
			if len(target.utilities) > 0 {
				write(&sb, " || ")
				write(&sb, strings.Join(target.utilities, " "))
			}
			writeln(&sb)
			writeln(&sb, "  cflags = $cflags_", sanitize(name))
		}
	}
	writeln(&sb)

	// ar/link
	for _, name := range names {
		target := g.targets[name]
		write(&sb, "build ", target.name, ": ")
		if target.isLib {
			write(&sb, "ar")
		} else {
			write(&sb, "link")
		}

		// add the object files and dependencies of this project
		for _, source := range target.sources {
			write(&sb, " ", source.obj)
		}
		for _, dep := range target.dependencies {
			write(&sb, " ", dep)
		}
		if len(target.utilities) > 0 {
			write(&sb, " || ", strings.Join(target.utilities, " "))
		}
		writeln(&sb)
		if !target.isLib && len(target.ldflags) > 0 {
			writeln(&sb, "  ldflags = ", strings.Join(target.ldflags, " "))
		}
	}

	return sb.String()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

func (g *NinjaGen) Invoke(buildDir string) error {
	cmd := exec.Command("ninja", "-C", buildDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ninja failed: %w", err)
	}
	return nil
}
