// Package packfile implements the wire-level primitives of the Git pack
// format: the per-object variable-length header, the resumable stream
// Parser, the copy/insert delta instruction stream, and the canonical v2
// pack index binary layout.
//
// The indexer lifecycle around these (the temporary pack file, delta
// resolution, commit) lives in internal/indexer, which feeds the Parser
// and builds on the primitives here.
package packfile

import "fmt"

// ObjectType identifies the kind of a pack entry. Values match the packed
// type field of a pack object header; they are not related to any loose
// object type byte used elsewhere in this repository.
type ObjectType uint8

const (
	TypeInvalid  ObjectType = 0
	TypeCommit   ObjectType = 1
	TypeTree     ObjectType = 2
	TypeBlob     ObjectType = 3
	TypeTag      ObjectType = 4
	_reserved5   ObjectType = 5
	TypeOfsDelta ObjectType = 6
	TypeRefDelta ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	case TypeOfsDelta:
		return "ofs-delta"
	case TypeRefDelta:
		return "ref-delta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsDelta reports whether t is one of the two delta variants.
func (t ObjectType) IsDelta() bool {
	return t == TypeOfsDelta || t == TypeRefDelta
}

// Valid reports whether t is one of the types a pack stream may legally
// carry. Any other value is a parse error.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag, TypeOfsDelta, TypeRefDelta:
		return true
	default:
		return false
	}
}

// HashKind selects the identity hash used throughout a pack and its index.
type HashKind int

const (
	SHA1 HashKind = iota
	SHA256
)

// Size returns the raw byte length of an identity under this hash kind.
func (k HashKind) Size() int {
	if k == SHA256 {
		return 32
	}
	return 20
}

const (
	// HeaderSize is the length in bytes of the fixed pack stream header
	// ("PACK" magic, 4-byte version, 4-byte entry count).
	HeaderSize = 12

	packMagic = "PACK"
	packVersion = 2

	idxMagicByte0 = 0xFF
	idxMagicByte1 = 't'
	idxMagicByte2 = 'O'
	idxMagicByte3 = 'c'
	idxVersion    = 2

	// LongOffsetThreshold is the exact boundary named by the canonical v2
	// index format: positions at or above this value cannot be encoded in
	// the 31 usable bits of the offset table and must be redirected through
	// the long-offsets section. This is deliberately 1<<31, not any larger
	// constant.
	LongOffsetThreshold = uint64(1) << 31

	// longOffsetFlag is OR'd into a 31-bit offset slot to mark it as an
	// index into the long-offsets table rather than a direct position.
	longOffsetFlag = uint32(0x80000000)
)
