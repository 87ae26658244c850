package indexer

import "github.com/NahomAnteneh/vec/internal/packfile"

// entryHandle is a stable reference into entryTable.all, used by the
// position index and the delta table instead of a pointer or a copy — the
// "lightweight handle (index into the variant vector)" redesign called for
// to replace the original's type-punned, doubly-inserted single vector.
type entryHandle int

// entry is the tagged-variant realization of spec.md's object entry /
// delta entry distinction: one struct, carrying delta-only fields that stay
// zero for non-delta entries, rather than two structs related by a common
// leading layout.
type entry struct {
	IsDelta    bool
	Position   uint64
	HeaderSize int
	Type       packfile.ObjectType // for deltas, this is TypeOfsDelta/TypeRefDelta until resolved
	FinalType  packfile.ObjectType // populated after resolution for deltas; equal to Type for plain objects
	Size       uint64              // declared payload size (pre-resolution for deltas)
	CompressedSize uint64
	CRC32      uint32
	ID         []byte // empty until resolved (deltas) / always set (objects)

	// Delta-only fields.
	RefID           []byte
	OfsBasePosition uint64
	Resolved        bool
}

// entryTable is the component-C store: the object table (all entries, by
// handle), the position index (position -> handle), and the delta table
// (handles of delta entries only). Spec.md §9 calls for these as two
// independent collections over a shared, handle-addressed vector; that is
// exactly this struct's shape.
type entryTable struct {
	all    []entry
	byPos  map[uint64]entryHandle
	byHash map[string]entryHandle
	deltas []entryHandle
}

func newEntryTable(capacityHint uint64) *entryTable {
	cap := int(capacityHint)
	if cap < 0 || cap > 1<<20 {
		cap = 0
	}
	return &entryTable{
		all:    make([]entry, 0, cap),
		byPos:  make(map[uint64]entryHandle, cap),
		byHash: make(map[string]entryHandle, cap),
	}
}

func (t *entryTable) insert(e entry) entryHandle {
	h := entryHandle(len(t.all))
	t.all = append(t.all, e)
	t.byPos[e.Position] = h
	if len(e.ID) > 0 {
		t.byHash[string(e.ID)] = h
	}
	if e.IsDelta {
		t.deltas = append(t.deltas, h)
	}
	return h
}

func (t *entryTable) get(h entryHandle) *entry { return &t.all[h] }

func (t *entryTable) byPosition(pos uint64) (entryHandle, bool) {
	h, ok := t.byPos[pos]
	return h, ok
}

// noteResolved registers e's freshly-computed identity so future REF_DELTA
// lookups by id can find it without a linear scan.
func (t *entryTable) noteResolved(h entryHandle) {
	t.byHash[string(t.all[h].ID)] = h
}

func (t *entryTable) byID(id []byte) (entryHandle, bool) {
	h, ok := t.byHash[string(id)]
	return h, ok
}
