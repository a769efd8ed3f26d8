package kvstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var out string
	if s.Get("anything", &out) {
		t.Error("Get on empty store reported a value")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	in := record{Name: "alpha", Count: 3}
	if err := s.Set("rec", in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var out record
	if !s.Get("rec", &out) {
		t.Fatal("Get did not find stored key")
	}
	if out != in {
		t.Errorf("Get = %+v, want %+v", out, in)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("cursor", 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	var cursor int
	if !reopened.Get("cursor", &cursor) || cursor != 7 {
		t.Errorf("reopened cursor = %d, want 7", cursor)
	}
}

func TestDelete(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Delete("absent"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}

	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	var out string
	if s.Get("k", &out) {
		t.Error("key still present after Delete")
	}
}

func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("k", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "store.json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind after flush")
	}
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("k", "old"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"k": "new"}`), 0600); err != nil {
		t.Fatalf("external write failed: %v", err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	var out string
	if !s.Get("k", &out) || out != "new" {
		t.Errorf("value after Reload = %q, want %q", out, "new")
	}
}
