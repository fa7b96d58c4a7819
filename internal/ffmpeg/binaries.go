package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// findBinary locates an executable. It checks for a bundled copy in bin/
// next to the running executable, then bin/ under the working directory,
// then the system PATH.
func findBinary(name string) (string, bool) {
	if runtime.GOOS == "windows" && filepath.Ext(name) != ".exe" {
		name = name + ".exe"
	}

	if execPath, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(execPath), "bin", name)
		if _, err := os.Stat(bundled); err == nil {
			return bundled, true
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, "bin", name)
		if _, err := os.Stat(local); err == nil {
			return local, true
		}
	}

	if systemPath, err := exec.LookPath(name); err == nil {
		return systemPath, true
	}
	return "", false
}
