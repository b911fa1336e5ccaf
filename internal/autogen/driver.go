package autogen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quartz-build/quartz/internal/msg"
)

// RunAutogen is the build-time entry point invoked by the generation step's
// command line. It loads the settings persisted by SetupTarget for the
// given configuration and regenerates the promised byproducts. Full source
// parsing for moc and uic is performed by the external tools themselves.
func RunAutogen(infoDir, config string) error {
	infoFile := filepath.Join(infoDir, InfoFileName)
	info, err := LoadInfo(infoFile)
	if err != nil {
		return fmt.Errorf("autogen: %w", err)
	}

	buildDir := info.String("AM_BUILD_DIR")
	if buildDir == "" {
		return fmt.Errorf("autogen: %q carries no build directory", infoFile)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}

	if info.String("AM_QT_MOC_EXECUTABLE") != "" {
		if err := writeMocsCompilation(buildDir); err != nil {
			return err
		}
	}

	// The configuration selects suffixed settings, none of which affect
	// resource generation; moc and uic parse their inputs themselves.
	return regenerateResources(info, buildDir)
}

// writeMocsCompilation materializes the combined moc compilation unit. The
// file is rewritten only when its content changed so untouched timestamps
// do not trigger rebuilds.
func writeMocsCompilation(buildDir string) error {
	content := []byte("// This file is autogenerated. Changes will be overwritten.\n" +
		"enum some_compilers { need_more_than_nothing };\n")
	path := filepath.Join(buildDir, "mocs_compilation.cpp")
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, content) {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}

// regenerateResources re-runs rcc for every out-of-date resource manifest,
// in parallel.
func regenerateResources(info *LoadedInfo, buildDir string) error {
	rccFiles := info.StringList("AM_RCC_FILES")
	if len(rccFiles) == 0 {
		return nil
	}
	rccExec := info.String("AM_QT_RCC_EXECUTABLE")
	if rccExec == "" {
		return fmt.Errorf("autogen: resource files present but no rcc executable recorded")
	}

	// Per-file merged option lists, parallel to the options file list.
	optionsFor := make(map[string]string)
	optFiles := info.StringList("AM_RCC_OPTIONS_FILES")
	optOptions := info.StringList("AM_RCC_OPTIONS_OPTIONS")
	for i, f := range optFiles {
		if i < len(optOptions) {
			optionsFor[f] = optOptions[i]
		}
	}

	// The checksum must relative-ize exactly like the initializer did.
	pathEnv := &Env{
		SourceDir: info.String("AM_SOURCE_DIR"),
		BinaryDir: info.String("AM_BINARY_DIR"),
	}

	eg := new(errgroup.Group)
	eg.SetLimit(runtime.NumCPU())
	for _, qrc := range rccFiles {
		base := strings.TrimSuffix(filepath.Base(qrc), filepath.Ext(qrc))
		out := filepath.Join(buildDir, pathEnv.pathChecksum(qrc), "qrc_"+base+".cpp")
		args := splitList(optionsFor[qrc])
		eg.Go(func() error {
			return runRcc(rccExec, qrc, out, args)
		})
	}
	return eg.Wait()
}

func runRcc(rccExec, qrcFile, outFile string, options []string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return err
	}

	args := append(options, "-o", outFile, qrcFile)
	var stderr bytes.Buffer
	cmd := exec.Command(rccExec, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg.Error("rcc failed for %q:\n%s", qrcFile, strings.TrimSpace(stderr.String()))
		return fmt.Errorf("rcc: generating %q: %w", outFile, err)
	}
	return nil
}
