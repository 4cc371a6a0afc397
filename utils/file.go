package utils

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Helper to remove invalid filename characters
func SanitizeFilename(name string) string {
	// Replace invalid characters with underscore
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// GetPathFormat returns the extension of path without the leading dot,
// or an empty string when there is none.
func GetPathFormat(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

func IsFileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

func FFmpegAvailable() bool {
	return BinaryAvailable("ffmpeg")
}

// BinaryAvailable reports whether bin can be started with -version.
func BinaryAvailable(bin string) bool {
	if err := exec.Command(bin, "-version").Run(); err != nil {
		return false
	}
	return true
}
