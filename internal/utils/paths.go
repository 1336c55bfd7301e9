package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDirectory creates dir and any missing parents. Calling it again for
// an existing directory is a no-op.
func EnsureDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", dir, err)
	}
	return nil
}

// CheckFilePath returns an error when path does not exist or is a directory.
func CheckFilePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s not found", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file", path)
	}
	return nil
}

// CheckDirectory returns an error when path does not exist or is not a
// directory.
func CheckDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s not found", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// CheckWriteDir creates dst when missing and verifies it is writable.
// An empty dst means the current directory.
func CheckWriteDir(dst string) error {
	if dst == "" {
		dst = "."
	}
	if err := EnsureDirectory(dst); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dst, ".write-check-*")
	if err != nil {
		return fmt.Errorf("%s lacks write permission", dst)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// PolarizationModeFromSafeName extracts the two-letter polarization mode
// (e.g. DV, SH) from a Sentinel-1 SAFE file name:
// MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_..._CCCC.SAFE
// Tokens are indexed from the rear because R in TTTR may be replaced by '_'.
func PolarizationModeFromSafeName(path string) (string, error) {
	tokens := strings.Split(filepath.Base(path), "_")
	if len(tokens) < 6 {
		return "", fmt.Errorf("%s does not look like a SAFE file name", path)
	}
	token := tokens[len(tokens)-6]
	if len(token) < 4 {
		return "", fmt.Errorf("%s does not look like a SAFE file name", path)
	}
	return token[2:4], nil
}
