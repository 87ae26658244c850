package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/NahomAnteneh/vec/core"
	"github.com/NahomAnteneh/vec/internal/packfile"
)

// buildPack assembles a minimal valid SHA-256 pack stream containing a
// single blob, mirroring internal/packfile's own test scaffolding.
func buildPack(t *testing.T, content []byte) []byte {
	t.Helper()

	var body bytes.Buffer
	body.Write(packfile.EncodeObjectHeader(packfile.TypeBlob, uint64(len(content))))
	zw := zlib.NewWriter(&body)
	if _, err := zw.Write(content); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	var out bytes.Buffer
	out.WriteString("PACK")
	out.Write([]byte{0, 0, 0, 2})
	out.Write([]byte{0, 0, 0, 1})
	out.Write(body.Bytes())

	h := sha256.New()
	h.Write(out.Bytes())
	out.Write(h.Sum(nil))
	return out.Bytes()
}

func newTestRepo(t *testing.T) *core.Repository {
	t.Helper()
	dir := t.TempDir()
	repo := core.NewRepository(dir)
	if err := os.MkdirAll(filepath.Join(repo.VecDir(), "objects", "pack"), 0o755); err != nil {
		t.Fatalf("mkdir pack dir: %v", err)
	}
	return repo
}

func TestUnpackPackfileBytesWritesPackAndIndex(t *testing.T) {
	repo := newTestRepo(t)
	pack := buildPack(t, []byte("hello packfile"))

	hexID, err := UnpackPackfileBytes(context.Background(), repo, pack, UnpackOptions{Hash: packfile.SHA256})
	if err != nil {
		t.Fatalf("UnpackPackfileBytes: %v", err)
	}
	if hexID == "" {
		t.Fatal("expected a non-empty pack ID")
	}

	packPath := filepath.Join(repo.VecDir(), "objects", "pack", "pack-"+hexID+".pack")
	idxPath := filepath.Join(repo.VecDir(), "objects", "pack", "pack-"+hexID+".idx")
	if _, err := os.Stat(packPath); err != nil {
		t.Errorf("expected pack file at %s: %v", packPath, err)
	}
	if _, err := os.Stat(idxPath); err != nil {
		t.Errorf("expected index file at %s: %v", idxPath, err)
	}
}

func TestUnpackPackfileRejectsGarbage(t *testing.T) {
	repo := newTestRepo(t)
	_, err := UnpackPackfileBytes(context.Background(), repo, []byte("not a pack"), UnpackOptions{})
	if err == nil {
		t.Fatal("expected an error for a non-pack stream")
	}
}
