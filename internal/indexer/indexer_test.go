package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/NahomAnteneh/vec/internal/packfile"
)

// rawObject is one entry in a hand-assembled test pack stream.
type rawObject struct {
	typ     packfile.ObjectType
	content []byte // for non-delta entries, the literal object content
	delta   []byte // for OFS_DELTA entries, the raw delta instruction stream
	ofsBase int     // index into the preceding entries this delta is based on (OFS_DELTA only)
}

// buildPack assembles a minimal, valid SHA-256 pack stream out of objs,
// encoding OFS_DELTA offsets relative to each entry's own start position, the
// same layout internal/packfile.Parser expects.
func buildPack(t *testing.T, objs []rawObject) []byte {
	t.Helper()

	var body bytes.Buffer
	positions := make([]int, len(objs))

	for i, o := range objs {
		positions[i] = packfile.HeaderSize + body.Len()

		if o.typ == packfile.TypeOfsDelta {
			basePos := positions[o.ofsBase]
			offset := uint64(positions[i] - basePos)
			header := packfile.EncodeObjectHeader(packfile.TypeOfsDelta, uint64(len(o.delta)))
			body.Write(header)
			body.Write(encodeOfsOffsetForTest(offset))
			writeDeflated(t, &body, o.delta)
			continue
		}

		header := packfile.EncodeObjectHeader(o.typ, uint64(len(o.content)))
		body.Write(header)
		writeDeflated(t, &body, o.content)
	}

	var out bytes.Buffer
	out.WriteString("PACK")
	out.Write([]byte{0, 0, 0, 2})
	n := len(objs)
	out.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	out.Write(body.Bytes())

	h := sha256.New()
	h.Write(out.Bytes())
	out.Write(h.Sum(nil))
	return out.Bytes()
}

func writeDeflated(t *testing.T, buf *bytes.Buffer, content []byte) {
	t.Helper()
	zw := zlib.NewWriter(buf)
	if _, err := zw.Write(content); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
}

// encodeOfsOffsetForTest mirrors internal/packfile's unexported
// encodeOfsDeltaOffset: an MSB-continuation varint where each continuation
// byte's contribution is biased by +1 after the shift.
func encodeOfsOffsetForTest(offset uint64) []byte {
	var stack []byte
	stack = append(stack, byte(offset&0x7F))
	offset >>= 7
	for offset > 0 {
		offset--
		stack = append(stack, byte(offset&0x7F)|0x80)
		offset >>= 7
	}
	out := make([]byte, len(stack))
	for i, b := range stack {
		out[len(stack)-1-i] = b
	}
	return out
}

// insertOnlyDelta builds a delta instruction stream that ignores the base's
// content entirely and inserts result verbatim; baseSize still must match
// the real base object's length for ApplyDelta's sanity check to pass.
func insertOnlyDelta(baseSize int, result []byte) []byte {
	var buf bytes.Buffer
	buf.Write(deltaSizeVarint(uint64(baseSize)))
	buf.Write(deltaSizeVarint(uint64(len(result))))
	for off := 0; off < len(result); {
		chunk := len(result) - off
		if chunk > 127 {
			chunk = 127
		}
		buf.WriteByte(byte(chunk))
		buf.Write(result[off : off+chunk])
		off += chunk
	}
	return buf.Bytes()
}

func deltaSizeVarint(size uint64) []byte {
	var out []byte
	for {
		b := byte(size & 0x7F)
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		out = append(out, b)
		if size == 0 {
			break
		}
	}
	return out
}

func newTestIndexer(t *testing.T, opts Options) *Indexer {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	ix, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ix.Free() })
	return ix
}

func TestAppendCommitSingleBlob(t *testing.T) {
	content := []byte("hello, packfile")
	pack := buildPack(t, []rawObject{{typ: packfile.TypeBlob, content: content}})

	ix := newTestIndexer(t, Options{Hash: packfile.SHA256})
	if err := ix.Append(pack); err != nil {
		t.Fatalf("Append: %v", err)
	}
	hexID, err := ix.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if hexID == "" {
		t.Fatal("expected a non-empty pack id")
	}

	packPath := filepath.Join(ix.opts.Dir, "pack-"+hexID+".pack")
	idxPath := filepath.Join(ix.opts.Dir, "pack-"+hexID+".idx")
	if _, err := os.Stat(packPath); err != nil {
		t.Errorf("pack file missing: %v", err)
	}
	if _, err := os.Stat(idxPath); err != nil {
		t.Errorf("index file missing: %v", err)
	}
}

func TestAppendEmptyChunkIsNoOp(t *testing.T) {
	ix := newTestIndexer(t, Options{Hash: packfile.SHA256})
	if err := ix.Append(nil); err != nil {
		t.Fatalf("Append(nil): %v", err)
	}
	if ix.state != stateFresh {
		t.Fatalf("expected state to remain fresh after an empty Append, got %s", ix.state)
	}
}

func TestOFSDeltaResolutionEndToEnd(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")
	target := []byte("the quick brown fox jumps over the lazy cat")

	pack := buildPack(t, []rawObject{
		{typ: packfile.TypeBlob, content: base},
		{typ: packfile.TypeOfsDelta, delta: insertOnlyDelta(len(base), target), ofsBase: 0},
	})

	var store fakeStore
	ix := newTestIndexer(t, Options{Hash: packfile.SHA256, Store: &store})
	if err := ix.Append(pack); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ix.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wantID := packfile.HashObject(packfile.SHA256, packfile.TypeBlob, target)
	content, typ, found, err := store.Lookup(wantID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatalf("resolved delta content was not inserted into the object store")
	}
	if typ != packfile.TypeBlob {
		t.Errorf("expected resolved type blob, got %s", typ)
	}
	if !bytes.Equal(content, target) {
		t.Errorf("resolved content = %q, want %q", content, target)
	}
}

func TestOFSDeltaResolutionParallel(t *testing.T) {
	base1 := []byte("alpha object content, long enough to matter")
	base2 := []byte("beta object content, also long enough")
	target1 := []byte("alpha object content, long enough to differ")
	target2 := []byte("beta object content, changed at the tail!!!!")

	pack := buildPack(t, []rawObject{
		{typ: packfile.TypeBlob, content: base1},
		{typ: packfile.TypeBlob, content: base2},
		{typ: packfile.TypeOfsDelta, delta: insertOnlyDelta(len(base1), target1), ofsBase: 0},
		{typ: packfile.TypeOfsDelta, delta: insertOnlyDelta(len(base2), target2), ofsBase: 1},
	})

	ix := newTestIndexer(t, Options{Hash: packfile.SHA256, ParallelResolve: true})
	if err := ix.Append(pack); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ix.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestAppendRejectedAfterCancellation(t *testing.T) {
	calls := 0
	ix := newTestIndexer(t, Options{
		Hash: packfile.SHA256,
		Progress: func(Progress) int {
			calls++
			return 1
		},
	})

	content := []byte("cancel me")
	pack := buildPack(t, []rawObject{{typ: packfile.TypeBlob, content: content}})

	err := ix.Append(pack)
	if err == nil {
		t.Fatal("expected Append to report cancellation")
	}
	indexerErr, ok := err.(*Error)
	if !ok || indexerErr.Kind != KindCancelled {
		t.Fatalf("expected a KindCancelled *Error, got %#v", err)
	}
	if calls == 0 {
		t.Fatal("expected the progress observer to be invoked at least once")
	}

	if err := ix.Append([]byte("more")); err == nil {
		t.Fatal("expected Append to keep failing once the indexer has entered the failed state")
	}
	if _, err := ix.Commit(context.Background()); err == nil {
		t.Fatal("expected Commit to fail once the indexer has entered the failed state")
	}
}

func TestCommitInvalidBeforeComplete(t *testing.T) {
	ix := newTestIndexer(t, Options{Hash: packfile.SHA256})
	if _, err := ix.Commit(context.Background()); err == nil {
		t.Fatal("expected Commit to fail before any bytes were appended")
	}
}

func TestAppendInvalidAfterCommit(t *testing.T) {
	content := []byte("already committed")
	pack := buildPack(t, []rawObject{{typ: packfile.TypeBlob, content: content}})

	ix := newTestIndexer(t, Options{Hash: packfile.SHA256})
	if err := ix.Append(pack); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ix.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := ix.Append([]byte("x")); err == nil {
		t.Fatal("expected Append after Commit to be rejected")
	}
}

// fakeStore is a minimal in-memory ObjectStore for tests that don't need
// the real loose-object layer.
type fakeStore struct {
	objects map[string]fakeObject
}

type fakeObject struct {
	typ     packfile.ObjectType
	content []byte
}

func (s *fakeStore) Lookup(id []byte) ([]byte, packfile.ObjectType, bool, error) {
	if s.objects == nil {
		return nil, packfile.TypeInvalid, false, nil
	}
	o, ok := s.objects[string(id)]
	if !ok {
		return nil, packfile.TypeInvalid, false, nil
	}
	return o.content, o.typ, true, nil
}

func (s *fakeStore) Insert(id []byte, typ packfile.ObjectType, content []byte) error {
	if s.objects == nil {
		s.objects = make(map[string]fakeObject)
	}
	s.objects[string(id)] = fakeObject{typ: typ, content: append([]byte(nil), content...)}
	return nil
}
