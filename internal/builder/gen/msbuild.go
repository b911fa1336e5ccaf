package gen

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/heaths/go-vssetup"
)

// FindMsbuild locates MSBuild.exe through the Visual Studio setup
// configuration API, falling back to PATH lookup.
func FindMsbuild() (string, error) {
	instances, err := vssetup.Instances(false)
	if err == nil {
		for _, instance := range instances {
			installPath, err := instance.InstallationPath()
			if err != nil {
				continue
			}
			msbuild := filepath.Join(installPath, "MSBuild", "Current", "Bin", "MSBuild.exe")
			if _, err := os.Stat(msbuild); err == nil {
				return msbuild, nil
			}
		}
	}

	if path, err := exec.LookPath("msbuild"); err == nil {
		return path, nil
	}
	return "", errors.New("could not find MSBuild; install Visual Studio 2022 or add msbuild to PATH")
}
