package packfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
)

// IndexEntry is one record of a parsed .idx file: an object identity paired
// with its CRC32 and byte position inside the companion pack.
type IndexEntry struct {
	ID       []byte
	CRC32    uint32
	Position uint64
}

// Index is an in-memory, fully-loaded view of a pack's v2 index file. It
// supports exact lookup by fanout plus binary search over the sorted
// identity section (the same layout §4.5 requires WriteIndex to produce),
// and partial-hash lookup by a linear scan of that section.
type Index struct {
	Hash    HashKind
	Entries []IndexEntry // sorted by ID, ascending memcmp order
	Fanout  [256]uint32
}

// WriteIndex serialises entries (which need not be pre-sorted) to w in the
// canonical v2 index layout described by §4.5: magic+version, 256-word
// fanout, concatenated identities, CRC32 array, 31-bit/long offset arrays,
// pack trailer, index trailer. It returns the running hash written as the
// index trailer.
func WriteIndex(w io.Writer, kind HashKind, packTrailer []byte, entries []IndexEntry) ([]byte, error) {
	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return compareIDs(sorted[i].ID, sorted[j].ID) < 0
	})

	idSize := kind.Size()
	for _, e := range sorted {
		if len(e.ID) != idSize {
			return nil, fmt.Errorf("packfile: WriteIndex: identity length %d does not match hash kind (want %d)", len(e.ID), idSize)
		}
	}

	h := newContentHash(kind)
	cw := &countingHashWriter{w: w, h: h}

	if _, err := cw.Write([]byte{idxMagicByte0, idxMagicByte1, idxMagicByte2, idxMagicByte3}); err != nil {
		return nil, err
	}
	if err := writeUint32(cw, idxVersion); err != nil {
		return nil, err
	}

	var fanout [256]uint32
	for _, e := range sorted {
		fanout[e.ID[0]]++
	}
	var running uint32
	for b := 0; b < 256; b++ {
		running += fanout[b]
		fanout[b] = running
	}
	for b := 0; b < 256; b++ {
		if err := writeUint32(cw, fanout[b]); err != nil {
			return nil, err
		}
	}

	for _, e := range sorted {
		if _, err := cw.Write(e.ID); err != nil {
			return nil, err
		}
	}

	for _, e := range sorted {
		if err := writeUint32(cw, e.CRC32); err != nil {
			return nil, err
		}
	}

	var longOffsets []uint64
	for _, e := range sorted {
		if e.Position >= LongOffsetThreshold {
			idx := uint32(len(longOffsets))
			longOffsets = append(longOffsets, e.Position)
			if err := writeUint32(cw, longOffsetFlag|idx); err != nil {
				return nil, err
			}
		} else {
			if err := writeUint32(cw, uint32(e.Position)); err != nil {
				return nil, err
			}
		}
	}

	for _, off := range longOffsets {
		if err := writeUint64(cw, off); err != nil {
			return nil, err
		}
	}

	if len(packTrailer) != idSize {
		return nil, fmt.Errorf("packfile: WriteIndex: pack trailer length %d does not match hash kind", len(packTrailer))
	}
	if _, err := cw.Write(packTrailer); err != nil {
		return nil, err
	}

	trailer := h.Sum(nil)
	if _, err := w.Write(trailer); err != nil {
		return nil, err
	}
	return trailer, nil
}

// ReadIndex parses a canonical v2 .idx file from r in its entirety.
// Grounded on ahrav-go-gitpack's parseIdx: validates the magic, version,
// strictly non-decreasing fanout, and the index trailer hash over every
// preceding byte.
func ReadIndex(r io.Reader, kind HashKind) (*Index, error) {
	br := bufio.NewReader(r)
	h := newContentHash(kind)
	tr := io.TeeReader(br, h)

	var magic [4]byte
	if _, err := io.ReadFull(tr, magic[:]); err != nil {
		return nil, fmt.Errorf("packfile: ReadIndex: %w", err)
	}
	if magic != [4]byte{idxMagicByte0, idxMagicByte1, idxMagicByte2, idxMagicByte3} {
		return nil, fmt.Errorf("packfile: ReadIndex: bad magic %x", magic)
	}
	version, err := readUint32(tr)
	if err != nil {
		return nil, err
	}
	if version != idxVersion {
		return nil, fmt.Errorf("packfile: ReadIndex: unsupported version %d", version)
	}

	var fanout [256]uint32
	for b := 0; b < 256; b++ {
		v, err := readUint32(tr)
		if err != nil {
			return nil, err
		}
		if b > 0 && v < fanout[b-1] {
			return nil, fmt.Errorf("packfile: ReadIndex: non-monotonic fanout at byte %d", b)
		}
		fanout[b] = v
	}
	count := int(fanout[255])

	idSize := kind.Size()
	ids := make([][]byte, count)
	for i := range ids {
		id := make([]byte, idSize)
		if _, err := io.ReadFull(tr, id); err != nil {
			return nil, fmt.Errorf("packfile: ReadIndex: identity %d: %w", i, err)
		}
		ids[i] = id
	}

	crcs := make([]uint32, count)
	for i := range crcs {
		v, err := readUint32(tr)
		if err != nil {
			return nil, err
		}
		crcs[i] = v
	}

	rawOffsets := make([]uint32, count)
	var longCount int
	for i := range rawOffsets {
		v, err := readUint32(tr)
		if err != nil {
			return nil, err
		}
		rawOffsets[i] = v
		if v&longOffsetFlag != 0 {
			longCount++
		}
	}

	longOffsets := make([]uint64, longCount)
	for i := range longOffsets {
		v, err := readUint64(tr)
		if err != nil {
			return nil, err
		}
		longOffsets[i] = v
	}

	packTrailer := make([]byte, idSize)
	if _, err := io.ReadFull(tr, packTrailer); err != nil {
		return nil, fmt.Errorf("packfile: ReadIndex: pack trailer: %w", err)
	}

	computed := h.Sum(nil)
	gotTrailer := make([]byte, idSize)
	if _, err := io.ReadFull(br, gotTrailer); err != nil {
		return nil, fmt.Errorf("packfile: ReadIndex: index trailer: %w", err)
	}
	if !bytesEqual(computed, gotTrailer) {
		return nil, fmt.Errorf("packfile: ReadIndex: index trailer hash mismatch")
	}

	entries := make([]IndexEntry, count)
	for i := 0; i < count; i++ {
		pos := uint64(rawOffsets[i])
		if rawOffsets[i]&longOffsetFlag != 0 {
			li := rawOffsets[i] &^ longOffsetFlag
			if int(li) >= len(longOffsets) {
				return nil, fmt.Errorf("packfile: ReadIndex: long offset index %d out of range", li)
			}
			pos = longOffsets[li]
		}
		entries[i] = IndexEntry{ID: ids[i], CRC32: crcs[i], Position: pos}
	}

	return &Index{Hash: kind, Entries: entries, Fanout: fanout}, nil
}

// ReadIndexFile is a convenience wrapper opening path and delegating to
// ReadIndex.
func ReadIndexFile(path string, kind HashKind) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("packfile: ReadIndexFile: %w", err)
	}
	defer f.Close()
	return ReadIndex(f, kind)
}

// Find looks up id (exact length) using the fanout table plus binary
// search, returning ok=false if absent.
func (idx *Index) Find(id []byte) (IndexEntry, bool) {
	if len(id) == 0 {
		return IndexEntry{}, false
	}
	lo := 0
	if id[0] > 0 {
		lo = int(idx.Fanout[id[0]-1])
	}
	hi := int(idx.Fanout[id[0]])
	for lo < hi {
		mid := (lo + hi) / 2
		switch compareIDs(idx.Entries[mid].ID, id) {
		case 0:
			return idx.Entries[mid], true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return IndexEntry{}, false
}

// FindPrefix returns every entry whose raw identity starts with prefix, a
// hex prefix already decoded to bytes. When oddNibble is set, the last byte
// of prefix carries only one hex digit and just its high nibble is
// compared. It powers utils.FindObjectByPartialHash's packfile-backed lookup.
func (idx *Index) FindPrefix(prefix []byte, oddNibble bool) []IndexEntry {
	var out []IndexEntry
	for _, e := range idx.Entries {
		if hasPrefix(e.ID, prefix, oddNibble) {
			out = append(out, e)
		}
	}
	return out
}

func hasPrefix(id, prefix []byte, oddNibble bool) bool {
	full := len(prefix)
	if oddNibble {
		full--
	}
	if full > len(id) {
		return false
	}
	for i := 0; i < full; i++ {
		if id[i] != prefix[i] {
			return false
		}
	}
	if oddNibble {
		if full >= len(id) {
			return false
		}
		return id[full]&0xF0 == prefix[full]&0xF0
	}
	return true
}

func compareIDs(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type countingHashWriter struct {
	w io.Writer
	h hash.Hash
}

func (c *countingHashWriter) Write(p []byte) (int, error) {
	c.h.Write(p)
	return c.w.Write(p)
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
