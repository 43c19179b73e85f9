// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blob stores shared file content in a directory both front ends
// can reach. Files are always addressed by a path relative to that
// directory, since its absolute location differs between processes.
package blob

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for relative paths that would leave the blob directory.
var ErrInvalidPath = errors.New("blob: invalid relative path")

// Store manages the blob directory.
type Store struct {
	dir string
}

// New creates a blob store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the blob directory.
func (s *Store) Dir() string {
	return s.dir
}

// GenerateName returns a fresh "<uuid>.<ext>" filename. An empty extension
// yields a bare uuid.
func GenerateName(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return uuid.New().String()
	}
	return uuid.New().String() + "." + ext
}

// Save writes data under filename and returns the relative path to store
// in records. The directory is recreated if it was removed.
//
// Pattern: temp file → write → fsync → atomic rename. On error the temp
// file is removed and no path is returned.
func (s *Store) Save(data []byte, filename string) (string, error) {
	rel, err := clean(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create blob directory %s: %w", s.dir, err)
	}

	fullPath := filepath.Join(s.dir, rel)
	tmp, err := os.CreateTemp(s.dir, rel+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("fsync %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s: %w", rel, err)
	}
	return rel, nil
}

// Path resolves a relative path to an absolute one inside the directory.
func (s *Store) Path(rel string) (string, error) {
	rel, err := clean(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, rel), nil
}

// Open opens a blob for reading. The caller closes the file.
func (s *Store) Open(rel string) (*os.File, error) {
	p, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", rel, err)
	}
	return f, nil
}

// Exists reports whether a blob is present.
func (s *Store) Exists(rel string) bool {
	p, err := s.Path(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Store) Delete(rel string) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", rel, err)
	}
	return nil
}

// Clear removes the directory and every blob in it. Save recreates it.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clear blob directory %s: %w", s.dir, err)
	}
	return nil
}

// clean accepts a single path element only.
func clean(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || rel == "." || rel == ".." || strings.ContainsAny(rel, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return rel, nil
}
