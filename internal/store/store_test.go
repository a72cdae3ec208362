package store

import (
	"os"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("failed to prepare store: %v", err)
	}
	return s
}

func TestSaveInput(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveInput("j1", []byte("ref audio"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if path != s.InputPath("j1") {
		t.Errorf("returned path %s does not match InputPath %s", path, s.InputPath("j1"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "ref audio" {
		t.Errorf("unexpected input contents: %q", data)
	}
}

func TestWriteAndReadOutput(t *testing.T) {
	s := newTestStore(t)

	if s.HasOutput("j1") {
		t.Fatal("output should not exist before write")
	}

	if err := s.WriteOutput("j1", []byte("wav bytes")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !s.HasOutput("j1") {
		t.Fatal("output should exist after write")
	}

	data, err := s.ReadOutput("j1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "wav bytes" {
		t.Errorf("unexpected output contents: %q", data)
	}

	// No temp file should survive the rename.
	entries, _ := os.ReadDir(s.outDir())
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.RemoveInput("missing"); err != nil {
		t.Errorf("removing a missing input should not fail: %v", err)
	}
	if err := s.RemoveOutput("missing"); err != nil {
		t.Errorf("removing a missing output should not fail: %v", err)
	}

	if err := s.WriteOutput("j1", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.RemoveOutput("j1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if s.HasOutput("j1") {
		t.Error("output still present after remove")
	}
}
