// Package tempfile provides request-scoped temporary files. A Scope owns every
// file it creates; Cleanup removes all of them and is meant to be deferred
// right after the scope is opened.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CleanupError reports temp files that could not be removed. It is logged by
// callers and never returned to clients.
type CleanupError struct {
	Paths []string
	Err   error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("tempfile: failed to remove %d file(s) [%s]: %v", len(e.Paths), strings.Join(e.Paths, ", "), e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// Scope tracks the temp files created for one upload.
type Scope struct {
	dir    string
	prefix string

	mu     sync.Mutex
	paths  []string
	closed bool
}

// ErrScopeClosed is returned when creating a file after Cleanup.
var ErrScopeClosed = errors.New("tempfile: scope already cleaned up")

// NewScope returns a scope creating files in dir (os.TempDir when empty).
// Every file name starts with prefix followed by a random UUID, so concurrent
// scopes never collide.
func NewScope(dir, prefix string) *Scope {
	if dir == "" {
		dir = os.TempDir()
	}
	if prefix == "" {
		prefix = "upload"
	}
	return &Scope{dir: dir, prefix: prefix}
}

// Create creates a new empty file with the given extension (".wav", ...) and
// registers it for cleanup. The caller closes the file; the scope removes it.
func (s *Scope) Create(ext string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrScopeClosed
	}

	name := filepath.Join(s.dir, s.prefix+"-"+uuid.NewString()+sanitizeExt(ext))
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("tempfile: create: %w", err)
	}
	s.paths = append(s.paths, name)
	return f, nil
}

// Path reserves a unique path without creating the file, for tools that
// insist on creating their own output. The path is still removed on Cleanup.
func (s *Scope) Path(ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrScopeClosed
	}
	name := filepath.Join(s.dir, s.prefix+"-"+uuid.NewString()+sanitizeExt(ext))
	s.paths = append(s.paths, name)
	return name, nil
}

// WriteFrom copies r into a new scoped file and returns its path.
func (s *Scope) WriteFrom(r io.Reader, ext string) (string, error) {
	f, err := s.Create(ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("tempfile: write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("tempfile: close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// Paths returns a snapshot of the files owned by the scope.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup removes every file of the scope. Files that never materialized are
// ignored. Calling Cleanup more than once is safe.
func (s *Scope) Cleanup() error {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.closed = true
	s.mu.Unlock()

	var (
		failed []string
		errs   []error
	)
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			failed = append(failed, p)
			errs = append(errs, err)
		}
	}
	if len(failed) > 0 {
		return &CleanupError{Paths: failed, Err: errors.Join(errs...)}
	}
	return nil
}

// sanitizeExt keeps a short, safe extension derived from a client filename.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
