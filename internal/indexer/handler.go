package indexer

import (
	"github.com/NahomAnteneh/vec/internal/packfile"
)

// The methods below satisfy packfile.Handler, translating the parser's
// structural events into entryTable insertions and progress updates. Start
// events only stash the event; the matching Complete event carries the
// fields (CRC32, compressed size) needed to finish the entry and is where
// insertion actually happens.

func (ix *Indexer) OnHeader(version, entryCount uint32) error {
	if version != packVersion() {
		// Non-fatal by itself: §4.1 only requires version to be recorded, not
		// rejected, since the wire format has not changed across v2 history.
	}
	ix.entryCount = entryCount
	ix.table = newEntryTable(uint64(entryCount))
	ix.prog.setTotals(uint64(entryCount), 0)
	return nil
}

func (ix *Indexer) OnObjectStart(ev packfile.ObjectStartEvent) error {
	ix.pendingObjStart = &ev
	return nil
}

func (ix *Indexer) OnObjectComplete(ev packfile.ObjectCompleteEvent) error {
	start := ix.pendingObjStart
	ix.pendingObjStart = nil
	if start == nil {
		return errParse("OnObjectComplete delivered without a matching OnObjectStart", nil)
	}
	ix.table.insert(entry{
		IsDelta:        false,
		Position:       ev.Position,
		HeaderSize:     start.HeaderSize,
		Type:           start.Type,
		FinalType:      start.Type,
		Size:           start.Size,
		CompressedSize: ev.CompressedSize,
		CRC32:          ev.CRC32,
		ID:             ev.ID,
		Resolved:       true,
	})
	ix.prog.addReceived(0, 1)
	ix.prog.addIndexed(1, 0)
	return nil
}

func (ix *Indexer) OnDeltaStart(ev packfile.DeltaStartEvent) error {
	ix.pendingDeltaStart = &ev
	return nil
}

func (ix *Indexer) OnDeltaComplete(ev packfile.DeltaCompleteEvent) error {
	start := ix.pendingDeltaStart
	ix.pendingDeltaStart = nil
	if start == nil {
		return errParse("OnDeltaComplete delivered without a matching OnDeltaStart", nil)
	}
	ix.table.insert(entry{
		IsDelta:         true,
		Position:        ev.Position,
		HeaderSize:      start.HeaderSize,
		Type:            start.Type,
		Size:            start.Size,
		CompressedSize:  ev.CompressedSize,
		CRC32:           ev.CRC32,
		RefID:           start.RefID,
		OfsBasePosition: start.OfsBasePosition,
	})
	ix.prog.addReceived(0, 1)
	return nil
}

func (ix *Indexer) OnPackfileComplete(trailer []byte) error {
	ix.packTrailer = append([]byte(nil), trailer...)
	ix.packComplete = true
	return nil
}

func packVersion() uint32 { return 2 }
