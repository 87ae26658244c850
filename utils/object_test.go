package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NahomAnteneh/vec/internal/packfile"
)

func TestFindObjectByPartialHashLoose(t *testing.T) {
	repoRoot := t.TempDir()
	objDir := filepath.Join(repoRoot, ".vec", "objects", "ab")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		t.Fatal(err)
	}
	suffix := "cdef00000000000000000000000000000000000000000000000000000000"
	if err := os.WriteFile(filepath.Join(objDir, suffix), []byte("blob 0\x00"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FindObjectByPartialHash(repoRoot, "abcdef")
	if err != nil {
		t.Fatalf("FindObjectByPartialHash() failed: %v", err)
	}
	want := "ab" + suffix
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFindObjectByPartialHashPacked(t *testing.T) {
	repoRoot := t.TempDir()
	packDir := filepath.Join(repoRoot, ".vec", "objects", "pack")
	if err := os.MkdirAll(packDir, 0755); err != nil {
		t.Fatal(err)
	}

	id := make([]byte, packfile.SHA256.Size())
	id[0], id[1] = 0xab, 0xcd
	entries := []packfile.IndexEntry{{ID: id, CRC32: 1, Position: 12}}
	trailer := make([]byte, packfile.SHA256.Size())

	f, err := os.Create(filepath.Join(packDir, "pack-test.idx"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := packfile.WriteIndex(f, packfile.SHA256, trailer, entries); err != nil {
		f.Close()
		t.Fatalf("WriteIndex() failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := FindObjectByPartialHash(repoRoot, "abcd")
	if err != nil {
		t.Fatalf("FindObjectByPartialHash() failed: %v", err)
	}
	if len(got) != len(id)*2 {
		t.Fatalf("expected a full hex identity, got %q", got)
	}
}

func TestFindObjectByPartialHashNotFound(t *testing.T) {
	repoRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repoRoot, ".vec", "objects"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := FindObjectByPartialHash(repoRoot, "deadbeef"); err == nil {
		t.Fatal("expected an error for a hash prefix that matches nothing")
	}
}
