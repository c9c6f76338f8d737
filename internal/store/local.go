// Package store keeps generated reports on local disk until they are
// downloaded or expire.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidName is returned for stored names that would escape the output directory.
var ErrInvalidName = errors.New("invalid stored file name")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileInfo describes a stored output.
type FileInfo struct {
	Name         string
	DownloadName string
	ContentType  string
	Path         string
	Size         int64
	CreatedAt    time.Time
}

// Local stores outputs in a single directory.
type Local struct {
	dir string
	log zerolog.Logger
	now func() time.Time
}

// NewLocal creates dir if needed.
func NewLocal(dir string, log zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Local{dir: dir, log: log.With().Str("component", "store").Logger(), now: time.Now}, nil
}

// Dir returns the output directory.
func (s *Local) Dir() string { return s.dir }

// Save writes a new output through write. The stored name gets a uuid prefix
// so concurrent exports of the same statement never collide.
func (s *Local) Save(name, contentType string, write func(io.Writer) error) (*FileInfo, error) {
	safe := sanitizeFilename(name)
	stored := fmt.Sprintf("%s_%s", uuid.NewString()[:8], safe)
	path := filepath.Join(s.dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("file", stored).Int64("size", st.Size()).Msg("output saved")
	return &FileInfo{
		Name:         stored,
		DownloadName: safe,
		ContentType:  contentType,
		Path:         path,
		Size:         st.Size(),
		CreatedAt:    s.now(),
	}, nil
}

// Open returns a stored output for reading.
func (s *Local) Open(name string) (*os.File, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored output. Missing files are not an error.
func (s *Local) Remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Sweep deletes outputs last modified more than olderThan ago and returns how
// many were removed.
func (s *Local) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("file", e.Name()).Msg("failed to remove expired output")
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Local) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "output"
	}
	return name
}
