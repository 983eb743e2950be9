// Package filestore keeps uploaded dataset files on an afero filesystem.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotExist is returned when a stored file is missing.
var ErrNotExist = errors.New("stored file does not exist")

const datasetDir = "datasets"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store saves files under a root directory. Stored names are relative to
// the root and use forward slashes.
type Store struct {
	fs afero.Fs
}

// New roots a store at dir on the OS filesystem.
func New(dir string) *Store {
	return NewWithFs(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewMemory returns a store backed by an in-memory filesystem.
func NewMemory() *Store {
	return NewWithFs(afero.NewMemMapFs())
}

func NewWithFs(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Save copies r into a new file for the dataset and returns its stored name.
func (s *Store) Save(id uuid.UUID, filename string, r io.Reader) (string, error) {
	if err := s.fs.MkdirAll(datasetDir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	name := path.Join(datasetDir, id.String()+"_"+Sanitize(filename))
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

// Open opens a stored file for reading.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(name string) error {
	err := s.fs.Remove(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) Exists(name string) (bool, error) {
	return afero.Exists(s.fs, name)
}

// Sanitize reduces an uploaded filename to a safe base name.
func Sanitize(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" {
		return "upload.csv"
	}
	return base
}
