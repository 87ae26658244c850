package packfile

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
	sha256simd "github.com/minio/sha256-simd"
)

// ErrEntryCountExceedsLimit is returned (wrapped) by Feed when the pack
// header declares more entries than the parser's configured maximum.
var ErrEntryCountExceedsLimit = errors.New("packfile: entry count exceeds limit")

// ObjectStartEvent is delivered once an object's header has been fully
// decoded, before its compressed payload has been read.
type ObjectStartEvent struct {
	Position   uint64
	HeaderSize int
	Type       ObjectType
	Size       uint64
}

// ObjectCompleteEvent is delivered once a non-delta object's payload has
// been fully inflated and hashed.
type ObjectCompleteEvent struct {
	Position       uint64
	CompressedSize uint64
	CRC32          uint32
	ID             []byte
	Content        []byte
}

// DeltaStartEvent is the delta-entry counterpart of ObjectStartEvent. Exactly
// one of RefID / OfsBasePosition is populated, selected by Type.
type DeltaStartEvent struct {
	Position        uint64
	HeaderSize      int
	Type            ObjectType // TypeOfsDelta or TypeRefDelta
	Size            uint64
	RefID           []byte // REF_DELTA: 20/32-byte base identity
	OfsBasePosition uint64 // OFS_DELTA: absolute position of the base entry
}

// DeltaCompleteEvent carries no identity: resolution happens after the
// stream closes.
type DeltaCompleteEvent struct {
	Position       uint64
	CompressedSize uint64
	CRC32          uint32
	Content        []byte // raw delta instruction stream, inflated
}

// Handler receives the structural events of §4.1 in stream order.
type Handler interface {
	OnHeader(version, entryCount uint32) error
	OnObjectStart(ObjectStartEvent) error
	OnObjectComplete(ObjectCompleteEvent) error
	OnDeltaStart(DeltaStartEvent) error
	OnDeltaComplete(DeltaCompleteEvent) error
	OnPackfileComplete(trailer []byte) error
}

type parserPhase int

const (
	phaseHeader parserPhase = iota
	phaseEntries
	phaseDone
)

// Parser is a resumable streaming decoder of the pack wire format. Any
// chunk boundary may fall inside any field; Feed buffers the unconsumed
// fragment and picks up where it left off on the next call. It does not
// persist inflate state across Feed calls — each call re-attempts the
// current entry's full compressed span from the buffered bytes, so an
// entry's payload must fully arrive before its completion event fires, but
// the entry boundary itself may be split arbitrarily across any number of
// Feed calls.
type Parser struct {
	handler Handler
	kind    HashKind

	phase  parserPhase
	buf    bytes.Buffer
	pos    uint64 // absolute position of the first unconsumed byte in buf
	hasher hash.Hash

	entryCount     uint32
	entriesDone    uint32
	maxEntries     uint64
	failed         bool
}

// NewParser constructs a parser that will deliver structural events to h
// and verify the trailer using the given hash kind. maxEntries bounds the
// header's announced entry_count (§7 limit error kind); pass 0 to use the
// spec's default of 2^32-1.
func NewParser(h Handler, kind HashKind, maxEntries uint64) *Parser {
	if maxEntries == 0 {
		maxEntries = 1<<32 - 1
	}
	return &Parser{handler: h, kind: kind, hasher: newContentHash(kind), maxEntries: maxEntries}
}

// Feed consumes chunk, advancing the parse as far as the buffered bytes
// allow, and returns any terminal parse error. After an error the parser
// is permanently failed and rejects further Feed calls.
func (p *Parser) Feed(chunk []byte) error {
	if p.failed {
		return fmt.Errorf("packfile: parser: Feed called after failure")
	}
	if len(chunk) == 0 {
		return nil
	}
	p.buf.Write(chunk)

	for {
		progressed, err := p.step()
		if err != nil {
			p.failed = true
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// step attempts one unit of forward progress: decoding the header, one
// entry, or the trailer. It returns progressed=false when the buffer does
// not yet hold enough bytes, which is not an error.
func (p *Parser) step() (bool, error) {
	switch p.phase {
	case phaseHeader:
		return p.stepHeader()
	case phaseEntries:
		if p.entriesDone >= p.entryCount {
			return p.stepTrailer()
		}
		return p.stepEntry()
	default:
		return false, nil
	}
}

func (p *Parser) stepHeader() (bool, error) {
	avail := p.buf.Bytes()
	if len(avail) < HeaderSize {
		return false, nil
	}
	if string(avail[0:4]) != packMagic {
		return false, fmt.Errorf("packfile: parser: bad magic %q", avail[0:4])
	}
	version := be32(avail[4:8])
	count := be32(avail[8:12])
	if uint64(count) > p.maxEntries {
		return false, fmt.Errorf("%w: %d > %d", ErrEntryCountExceedsLimit, count, p.maxEntries)
	}
	p.hasher.Write(avail[:HeaderSize])
	p.discard(HeaderSize)
	p.entryCount = count
	p.phase = phaseEntries
	if err := p.handler.OnHeader(version, count); err != nil {
		return false, fmt.Errorf("packfile: parser: OnHeader: %w", err)
	}
	return true, nil
}

func (p *Parser) stepEntry() (bool, error) {
	avail := p.buf.Bytes()

	typ, size, n, ok, overlong := decodeTypeAndSize(avail)
	if overlong {
		return false, fmt.Errorf("packfile: parser: object header varint too long at position %d", p.pos)
	}
	if !ok {
		return false, nil
	}
	if !typ.Valid() {
		return false, fmt.Errorf("packfile: parser: unknown object type %d at position %d", typ, p.pos)
	}

	headerSize := n
	var refID []byte
	var ofsBase uint64
	if typ == TypeRefDelta {
		idSize := p.kind.Size()
		if len(avail) < n+idSize {
			return false, nil
		}
		refID = append([]byte(nil), avail[n:n+idSize]...)
		headerSize += idSize
	} else if typ == TypeOfsDelta {
		off, on, ok := decodeOfsDeltaOffset(avail[n:])
		if !ok {
			return false, nil
		}
		if off+1 > p.pos {
			return false, fmt.Errorf("packfile: parser: OFS_DELTA base offset underflows pack start at position %d", p.pos)
		}
		ofsBase = p.pos - off
		headerSize += on
	}

	compressed, consumed, content, err := tryInflate(avail[headerSize:])
	if err != nil {
		return false, fmt.Errorf("packfile: parser: inflate failed at position %d: %w", p.pos, err)
	}
	if !compressed {
		return false, nil // not enough buffered bytes yet
	}

	totalSpan := headerSize + consumed
	crc := crc32.ChecksumIEEE(avail[:totalSpan])
	p.hasher.Write(avail[:totalSpan])

	position := p.pos
	p.discard(totalSpan)
	p.entriesDone++

	if typ.IsDelta() {
		if err := p.handler.OnDeltaStart(DeltaStartEvent{
			Position: position, HeaderSize: headerSize, Type: typ, Size: size,
			RefID: refID, OfsBasePosition: ofsBase,
		}); err != nil {
			return false, fmt.Errorf("packfile: parser: OnDeltaStart: %w", err)
		}
		if err := p.handler.OnDeltaComplete(DeltaCompleteEvent{
			Position: position, CompressedSize: uint64(consumed), CRC32: crc, Content: content,
		}); err != nil {
			return false, fmt.Errorf("packfile: parser: OnDeltaComplete: %w", err)
		}
		return true, nil
	}

	if uint64(len(content)) != size {
		return false, fmt.Errorf("packfile: parser: declared size %d does not match inflated size %d at position %d", size, len(content), position)
	}
	id := HashObject(p.kind, typ, content)

	if err := p.handler.OnObjectStart(ObjectStartEvent{
		Position: position, HeaderSize: headerSize, Type: typ, Size: size,
	}); err != nil {
		return false, fmt.Errorf("packfile: parser: OnObjectStart: %w", err)
	}
	if err := p.handler.OnObjectComplete(ObjectCompleteEvent{
		Position: position, CompressedSize: uint64(consumed), CRC32: crc, ID: id, Content: content,
	}); err != nil {
		return false, fmt.Errorf("packfile: parser: OnObjectComplete: %w", err)
	}
	return true, nil
}

func (p *Parser) stepTrailer() (bool, error) {
	trailerSize := p.kind.Size()
	avail := p.buf.Bytes()
	if len(avail) < trailerSize {
		return false, nil
	}
	if len(avail) > trailerSize {
		return false, fmt.Errorf("packfile: parser: %d trailing bytes after the pack trailer", len(avail)-trailerSize)
	}
	want := append([]byte(nil), avail[:trailerSize]...)
	got := p.hasher.Sum(nil)
	if !bytesEqual(want, got) {
		return false, fmt.Errorf("packfile: parser: trailer hash mismatch: pack claims %x, computed %x", want, got)
	}
	p.discard(trailerSize)
	p.phase = phaseDone
	if err := p.handler.OnPackfileComplete(want); err != nil {
		return false, fmt.Errorf("packfile: parser: OnPackfileComplete: %w", err)
	}
	return true, nil
}

// Finish must be called once the caller has no more bytes to feed. It
// reports an error if the stream ended mid-entry or before the announced
// entry count was reached.
func (p *Parser) Finish() error {
	if p.failed {
		return fmt.Errorf("packfile: parser: Finish called after failure")
	}
	if p.phase != phaseDone {
		return fmt.Errorf("packfile: parser: stream ended before completion (phase=%d, %d/%d entries, %d bytes buffered)",
			p.phase, p.entriesDone, p.entryCount, p.buf.Len())
	}
	return nil
}

func (p *Parser) discard(n int) {
	p.buf.Next(n)
	p.pos += uint64(n)
}

// tryInflate attempts to decompress a complete zlib stream from the front
// of buf without assuming anything about its eventual length. ok=false
// means buf does not yet contain a full stream; the caller should wait for
// more bytes and retry from scratch (the attempt is read-only: no error
// case mutates buf).
//
// br is handed to zlib directly rather than through a counting wrapper:
// bytes.Reader already satisfies flate.Reader (it has ReadByte), so zlib
// reads it one byte at a time with no look-ahead buffering, and
// len(buf)-br.Len() afterward is exactly the number of compressed bytes
// consumed. A wrapper exposing only Read would get promoted to a buffered
// reader internally, which pulls ahead into whatever trails the stream in
// buf and over-reports consumed.
func tryInflate(buf []byte) (ok bool, consumed int, content []byte, err error) {
	br := bytes.NewReader(buf)
	zr, zerr := zlib.NewReader(br)
	if zerr != nil {
		if zerr == io.EOF || zerr == io.ErrUnexpectedEOF {
			return false, 0, nil, nil
		}
		return false, 0, nil, zerr
	}
	var out bytes.Buffer
	_, copyErr := io.Copy(&out, zr)
	if copyErr != nil {
		if copyErr == io.EOF || copyErr == io.ErrUnexpectedEOF {
			return false, 0, nil, nil
		}
		return false, 0, nil, copyErr
	}
	if cerr := zr.Close(); cerr != nil {
		return false, 0, nil, cerr
	}
	return true, len(buf) - br.Len(), out.Bytes(), nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func newContentHash(kind HashKind) hash.Hash {
	if kind == SHA256 {
		return sha256simd.New()
	}
	return sha1.New()
}

// HashObject computes the content identity "<type> <size>\0" || content,
// per §4.4.3.d. Exported for reuse by the delta resolver once a delta
// chain's final content and inherited type are known.
func HashObject(kind HashKind, typ ObjectType, content []byte) []byte {
	h := newContentHash(kind)
	fmt.Fprintf(h, "%s %d\x00", typ, len(content))
	h.Write(content)
	return h.Sum(nil)
}
