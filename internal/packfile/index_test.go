package packfile

import (
	"bytes"
	"testing"
)

func TestWriteReadIndexRoundTrip(t *testing.T) {
	entries := []IndexEntry{
		{ID: bytes.Repeat([]byte{0x01}, 20), CRC32: 111, Position: 12},
		{ID: bytes.Repeat([]byte{0x00}, 20), CRC32: 222, Position: 500},
		{ID: bytes.Repeat([]byte{0x02}, 20), CRC32: 333, Position: 9000},
	}
	packTrailer := bytes.Repeat([]byte{0xAB}, 20)

	var buf bytes.Buffer
	if _, err := WriteIndex(&buf, SHA1, packTrailer, entries); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	idx, err := ReadIndex(bytes.NewReader(buf.Bytes()), SHA1)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(idx.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(idx.Entries))
	}
	if idx.Fanout[255] != 3 {
		t.Fatalf("expected fanout[255]=3, got %d", idx.Fanout[255])
	}
	// Entries must come out sorted ascending by identity.
	for i := 1; i < len(idx.Entries); i++ {
		if compareIDs(idx.Entries[i-1].ID, idx.Entries[i].ID) >= 0 {
			t.Fatalf("entries not sorted ascending at %d", i)
		}
	}

	e, ok := idx.Find(bytes.Repeat([]byte{0x02}, 20))
	if !ok || e.Position != 9000 {
		t.Fatalf("Find failed: ok=%v entry=%+v", ok, e)
	}
}

func TestWriteIndexLongOffset(t *testing.T) {
	entries := []IndexEntry{
		{ID: bytes.Repeat([]byte{0x05}, 20), CRC32: 1, Position: 100},
		{ID: bytes.Repeat([]byte{0x09}, 20), CRC32: 2, Position: LongOffsetThreshold + 100},
	}
	var buf bytes.Buffer
	if _, err := WriteIndex(&buf, SHA1, bytes.Repeat([]byte{0xCD}, 20), entries); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	idx, err := ReadIndex(bytes.NewReader(buf.Bytes()), SHA1)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}

	e, ok := idx.Find(bytes.Repeat([]byte{0x09}, 20))
	if !ok {
		t.Fatalf("expected to find long-offset entry")
	}
	if e.Position != LongOffsetThreshold+100 {
		t.Fatalf("expected recovered position %d, got %d", LongOffsetThreshold+100, e.Position)
	}
}

func TestWriteIndexEmpty(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteIndex(&buf, SHA1, bytes.Repeat([]byte{0}, 20), nil); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	idx, err := ReadIndex(bytes.NewReader(buf.Bytes()), SHA1)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if idx.Fanout[255] != 0 {
		t.Fatalf("expected fanout[255]=0 for empty pack, got %d", idx.Fanout[255])
	}
	if len(idx.Entries) != 0 {
		t.Fatalf("expected no entries")
	}
}
