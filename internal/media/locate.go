package media

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Install locations checked when the binary is not on PATH.
var commonBinDirs = []string{
	"/usr/bin",
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/snap/bin",
}

// LocateFFmpeg resolves the ffmpeg binary. The FFMPEG environment
// variable wins, then PATH, then common install locations. The bare
// name is returned as a last resort so failures surface at execution.
func LocateFFmpeg() string {
	return locateBinary("ffmpeg", os.Getenv("FFMPEG"))
}

// LocateFFprobe resolves the ffprobe binary, honoring FFPROBE.
func LocateFFprobe() string {
	return locateBinary("ffprobe", os.Getenv("FFPROBE"))
}

func locateBinary(name, override string) string {
	if override != "" {
		return override
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	for _, dir := range commonBinDirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return name
}
