//go:build aasist

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ortLookup locates the ONNX Runtime shared library. Its hooks default to the
// os package and are replaced in tests.
type ortLookup struct {
	getenv     func(string) string
	executable func() (string, error)
	getwd      func() (string, error)
	goos       string
	goarch     string
}

func defaultORTLookup() ortLookup {
	return ortLookup{
		getenv:     os.Getenv,
		executable: os.Executable,
		getwd:      os.Getwd,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

// resolveORTLibPath returns the ONNX Runtime library for this process.
func resolveORTLibPath() (string, error) {
	return defaultORTLookup().resolve()
}

// resolve checks, in order: NUPI_ORT_LIB_PATH; lib/<os>-<arch>/ and
// ../lib/<os>-<arch>/ next to the executable; the same two directories under
// the working directory, but only with NUPI_DEV_MODE=1 so a writable CWD
// cannot inject a library in production.
func (l ortLookup) resolve() (string, error) {
	if override := l.getenv("NUPI_ORT_LIB_PATH"); override != "" {
		info, err := os.Stat(override)
		if err != nil {
			return "", fmt.Errorf("ort: NUPI_ORT_LIB_PATH=%q does not exist", override)
		}
		if info.IsDir() {
			return "", fmt.Errorf("ort: NUPI_ORT_LIB_PATH=%q is a directory, expected a file", override)
		}
		return override, nil
	}

	filename := l.filename()
	for _, base := range l.searchRoots() {
		for _, rel := range l.relativeCandidates(filename) {
			path := filepath.Join(base, rel)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("ort: shared library not found; searched lib/%s-%s/%s relative to executable (set NUPI_ORT_LIB_PATH to override, or NUPI_DEV_MODE=1 to enable CWD lookup)", l.goos, l.goarch, filename)
}

func (l ortLookup) searchRoots() []string {
	var roots []string
	if exe, err := l.executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	if l.getenv("NUPI_DEV_MODE") == "1" {
		if dir, err := l.getwd(); err == nil {
			roots = append(roots, dir)
		}
	}
	return roots
}

func (l ortLookup) relativeCandidates(filename string) []string {
	platform := l.goos + "-" + l.goarch
	return []string{
		filepath.Join("lib", platform, filename),
		filepath.Join("..", "lib", platform, filename),
	}
}

func (l ortLookup) filename() string {
	return ortLibFilename(l.goos)
}

// ortLibFilename returns the ONNX Runtime library filename for goos.
func ortLibFilename(goos string) string {
	switch goos {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
