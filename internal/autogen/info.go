package autogen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Info is the settings file written for the build-time driver. The struct
// is deliberately flat (scalars and string arrays only) so that the
// per-configuration overrides can be appended as top level keys afterwards.
type Info struct {
	BuildDir       string `toml:"AM_BUILD_DIR"`
	SourceDir      string `toml:"AM_SOURCE_DIR"`
	BinaryDir      string `toml:"AM_BINARY_DIR"`
	QtVersionMajor string `toml:"AM_QT_VERSION_MAJOR"`

	Sources []string `toml:"AM_SOURCES"`
	Headers []string `toml:"AM_HEADERS"`

	MocSkip          []string `toml:"AM_MOC_SKIP"`
	MocOptions       string   `toml:"AM_MOC_OPTIONS"`
	MocRelaxedMode   bool     `toml:"AM_MOC_RELAXED_MODE"`
	MocMacroNames    string   `toml:"AM_MOC_MACRO_NAMES"`
	MocDependFilters string   `toml:"AM_MOC_DEPEND_FILTERS"`
	MocPredefsCmd    string   `toml:"AM_MOC_PREDEFS_CMD"`
	MocIncludes      string   `toml:"AM_MOC_INCLUDES"`
	MocDefinitions   string   `toml:"AM_MOC_DEFINITIONS"`
	MocExecutable    string   `toml:"AM_QT_MOC_EXECUTABLE"`

	UicSkip           []string `toml:"AM_UIC_SKIP"`
	UicSearchPaths    []string `toml:"AM_UIC_SEARCH_PATHS"`
	UicTargetOptions  string   `toml:"AM_UIC_TARGET_OPTIONS"`
	UicOptionsFiles   []string `toml:"AM_UIC_OPTIONS_FILES"`
	UicOptionsOptions []string `toml:"AM_UIC_OPTIONS_OPTIONS"`
	UicExecutable     string   `toml:"AM_QT_UIC_EXECUTABLE"`

	RccExecutable     string   `toml:"AM_QT_RCC_EXECUTABLE"`
	RccFiles          []string `toml:"AM_RCC_FILES"`
	RccInputs         []string `toml:"AM_RCC_INPUTS"`
	RccOptionsFiles   []string `toml:"AM_RCC_OPTIONS_FILES"`
	RccOptionsOptions []string `toml:"AM_RCC_OPTIONS_OPTIONS"`
}

// writeInfo serializes the default-configuration settings to path. The file
// is written through a temporary and renamed into place, so a read-only
// leftover from an earlier run is replaced instead of failing the write.
func writeInfo(path string, info *Info) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(info)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// appendInfoSettings re-opens the settings file and appends one entry per
// configuration-suffix-qualified override. The file may have been produced
// read-only, so owner write permission is granted first when absent.
func appendInfoSettings(path string, extra map[string]string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.Mode().Perm()&0o200 == 0 {
		if err := os.Chmod(path, st.Mode().Perm()|0o200); err != nil {
			return err
		}
	}

	data, err := toml.Marshal(extra)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %q for appending: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString("\n# Configuration specific options\n"); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return nil
}

// LoadedInfo is the driver-side view of a settings file. It keeps the raw
// key space so suffix-qualified settings can be looked up with fallback to
// the unsuffixed default.
type LoadedInfo struct {
	raw map[string]any
}

// LoadInfo reads a settings file written by SetupTarget.
func LoadInfo(path string) (*LoadedInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]any)
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return &LoadedInfo{raw: raw}, nil
}

// String returns the setting under key, or "".
func (li *LoadedInfo) String(key string) string {
	s, _ := li.raw[key].(string)
	return s
}

// Bool returns the setting under key, or false.
func (li *LoadedInfo) Bool(key string) bool {
	b, _ := li.raw[key].(bool)
	return b
}

// StringList returns the list setting under key.
func (li *LoadedInfo) StringList(key string) []string {
	items, _ := li.raw[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ConfigString returns the configuration specific value of a setting when
// one was persisted and the unsuffixed default otherwise.
func (li *LoadedInfo) ConfigString(key, config string) string {
	if config != "" {
		if v, ok := li.raw[key+"_"+config].(string); ok {
			return v
		}
	}
	return li.String(key)
}
