// Package store is the artifact store: input reference audio written by the
// gateway and output audio written by workers, both addressed by job id.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// EnsureDirs creates the in/ and out/ directories under the data root.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.inDir(), s.outDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create artifact dir %s: %w", dir, err)
		}
	}
	return nil
}

// InputPath is where the reference audio for a job lives. The path is
// embedded in the job descriptor so the worker can find it.
func (s *Store) InputPath(id string) string {
	return filepath.Join(s.inDir(), id+".wav")
}

// OutputPath is where the worker places the synthesized audio.
func (s *Store) OutputPath(id string) string {
	return filepath.Join(s.outDir(), id+".wav")
}

// SaveInput persists uploaded reference audio under the job id and returns
// the path the descriptor should carry.
func (s *Store) SaveInput(id string, data []byte) (string, error) {
	path := s.InputPath(id)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save reference audio for %s: %w", id, err)
	}
	return path, nil
}

// WriteOutput writes the synthesized audio under a temporary name and
// renames it into place, so a gateway observing the success marker can never
// read a partial artifact.
func (s *Store) WriteOutput(id string, data []byte) error {
	path := s.OutputPath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write output for %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish output for %s: %w", id, err)
	}
	return nil
}

// ReadOutput returns the synthesized audio for a job.
func (s *Store) ReadOutput(id string) ([]byte, error) {
	data, err := os.ReadFile(s.OutputPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read output for %s: %w", id, err)
	}
	return data, nil
}

// HasOutput reports whether the output artifact exists.
func (s *Store) HasOutput(id string) bool {
	_, err := os.Stat(s.OutputPath(id))
	return err == nil
}

// RemoveInput deletes the reference audio. Missing files are fine — the
// worker may already have deleted its copy after synthesis.
func (s *Store) RemoveInput(id string) error {
	if err := os.Remove(s.InputPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove input for %s: %w", id, err)
	}
	return nil
}

// RemoveOutput deletes the output artifact.
func (s *Store) RemoveOutput(id string) error {
	if err := os.Remove(s.OutputPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove output for %s: %w", id, err)
	}
	return nil
}

func (s *Store) inDir() string {
	return filepath.Join(s.root, "in")
}

func (s *Store) outDir() string {
	return filepath.Join(s.root, "out")
}
