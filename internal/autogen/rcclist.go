package autogen

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ListError is the structured failure of a resource input listing. Callers
// treat it as best-effort: the error is reported and the dependency list
// proceeds without the missing entries.
type ListError struct {
	File   string
	Output string
	Err    error
}

func (e *ListError) Error() string {
	s := fmt.Sprintf("autorcc: listing inputs of %q failed", e.File)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Output != "" {
		s += "\n" + strings.TrimSpace(e.Output)
	}
	return s
}

func (e *ListError) Unwrap() error { return e.Err }

// ListResourceInputs returns the input files a resource manifest declares.
// Qt 4 manifests are parsed directly; Qt 5 delegates to the tool's --list
// mode, which also resolves compressed and aliased entries. Results are
// cached because the initializer lists the same file in both phases.
func (e *Env) ListResourceInputs(versionMajor, rccExec, qrcPath string) ([]string, error) {
	cacheKey := versionMajor + "|" + rccExec + "|" + qrcPath
	if e.listCache != nil {
		if files, ok := e.listCache.Get(cacheKey); ok {
			return files, nil
		}
	}

	var files []string
	var err error
	if versionMajor == "5" {
		files, err = rccListInputs(rccExec, qrcPath)
	} else {
		files, err = parseQrcManifest(qrcPath)
	}
	if err != nil {
		return nil, err
	}
	if e.listCache != nil {
		e.listCache.Add(cacheKey, files)
	}
	return files, nil
}

// qrcManifest mirrors the resource manifest XML structure.
type qrcManifest struct {
	XMLName   xml.Name `xml:"RCC"`
	Resources []struct {
		Files []string `xml:"file"`
	} `xml:"qresource"`
}

func parseQrcManifest(qrcPath string) ([]string, error) {
	data, err := os.ReadFile(qrcPath)
	if err != nil {
		return nil, &ListError{File: qrcPath, Err: err}
	}
	var manifest qrcManifest
	if err := xml.Unmarshal(data, &manifest); err != nil {
		return nil, &ListError{File: qrcPath, Err: err}
	}

	baseDir := filepath.Dir(qrcPath)
	var files []string
	for _, res := range manifest.Resources {
		for _, f := range res.Files {
			if !filepath.IsAbs(f) {
				f = filepath.Join(baseDir, f)
			}
			files = append(files, filepath.Clean(f))
		}
	}
	return files, nil
}

func rccListInputs(rccExec, qrcPath string) ([]string, error) {
	if rccExec == "" {
		return nil, &ListError{File: qrcPath, Err: fmt.Errorf("rcc executable not available")}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(rccExec, "--list", qrcPath)
	cmd.Dir = filepath.Dir(qrcPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ListError{File: qrcPath, Output: stderr.String(), Err: err}
	}

	var files []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(filepath.Dir(qrcPath), line)
		}
		files = append(files, filepath.Clean(line))
	}
	return files, nil
}
