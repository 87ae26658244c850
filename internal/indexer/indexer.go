// Package indexer implements the public façade over internal/packfile: a
// streaming packfile indexer that consumes an unbounded byte sequence,
// writes a verified copy of the pack to disk, resolves every delta it
// contains, and emits the companion v2 index file.
package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NahomAnteneh/vec/internal/packfile"
)

// Re-exported so callers need not import internal/packfile directly for
// the handful of types that appear in this package's public surface.
type HashKind = packfile.HashKind
type ObjectType = packfile.ObjectType

const (
	SHA1   = packfile.SHA1
	SHA256 = packfile.SHA256
)

// ObjectStore is the optional external collaborator named by §6: it backs
// REF_DELTA base lookup when a base is not found among the entries already
// discovered in this pack, and receives every resolved object after a
// successful commit when Store is non-nil (the do_verify-gated insertion
// path, see SPEC_FULL.md §9).
type ObjectStore interface {
	Lookup(id []byte) (content []byte, typ ObjectType, found bool, err error)
	Insert(id []byte, typ ObjectType, content []byte) error
}

// Options configures a new Indexer. Dir is the only required field.
type Options struct {
	Dir             string
	Hash            HashKind
	FileMode        os.FileMode
	Store           ObjectStore
	Progress        ProgressFunc
	ParallelResolve bool
	MaxEntries      uint64
}

type lifecycleState int

const (
	stateFresh lifecycleState = iota
	stateStarted
	stateReceiving
	stateComplete
	stateCommitted
	stateFailed
)

func (s lifecycleState) String() string {
	switch s {
	case stateFresh:
		return "fresh"
	case stateStarted:
		return "started"
	case stateReceiving:
		return "receiving"
	case stateComplete:
		return "complete"
	case stateCommitted:
		return "committed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Indexer is the stateful object described by §3/§6. It owns the temporary
// pack file, the entry tables, and (after Commit) the memory-mapped pack
// view; none of these are safe to share across Indexer instances.
type Indexer struct {
	opts  Options
	state lifecycleState

	writer *packWriter
	parser *packfile.Parser
	table  *entryTable
	prog   *progressReporter

	pendingObjStart   *packfile.ObjectStartEvent
	pendingDeltaStart *packfile.DeltaStartEvent

	entryCount   uint32
	packTrailer  []byte
	packComplete bool

	hexID string
	pack  *mappedPack
}

// New constructs an Indexer against opts. No filesystem activity happens
// here beyond validating Dir; the temporary pack file is created on the
// first Append.
func New(opts Options) (*Indexer, error) {
	if opts.Dir == "" {
		return nil, errState("Options.Dir is required", nil)
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	return &Indexer{opts: opts, state: stateFresh, prog: newProgressReporter(opts.Progress)}, nil
}

// Append consumes chunk, per §6: any length including zero, zero-length
// calls are idempotent no-ops.
func (ix *Indexer) Append(chunk []byte) error {
	switch ix.state {
	case stateFailed, stateCommitted, stateComplete:
		return errState(fmt.Sprintf("append is not valid in state %s", ix.state), nil)
	}
	if len(chunk) == 0 {
		return nil
	}

	if ix.state == stateFresh {
		w, err := newPackWriter(ix.opts.Dir, ix.opts.FileMode)
		if err != nil {
			ix.fail()
			return err
		}
		ix.writer = w
		ix.parser = packfile.NewParser(ix, ix.opts.Hash, ix.opts.MaxEntries)
		ix.state = stateStarted
	}

	if err := ix.writer.write(chunk); err != nil {
		ix.fail()
		return err
	}
	ix.prog.addReceived(uint64(len(chunk)), 0)

	if err := ix.parser.Feed(chunk); err != nil {
		ix.fail()
		if errors.Is(err, packfile.ErrEntryCountExceedsLimit) {
			return errLimit("pack header entry count", err)
		}
		return errParse("parsing pack stream", err)
	}

	if ix.state == stateStarted {
		ix.state = stateReceiving
	}

	if ix.prog.report() {
		ix.fail()
		return errCancelled("progress observer requested abort during append")
	}

	if ix.packComplete {
		ix.state = stateComplete
	}
	return nil
}

// Commit blocks until delta resolution and index emission finish. It
// returns the hex identity of the pack, shared by pack-<hex>.pack and
// pack-<hex>.idx.
func (ix *Indexer) Commit(ctx context.Context) (string, error) {
	if ix.state != stateComplete {
		return "", errState(fmt.Sprintf("commit is not valid in state %s", ix.state), nil)
	}

	hexID := hex.EncodeToString(ix.packTrailer)

	finalPath, err := ix.writer.finalize(ix.opts.Dir, hexID)
	if err != nil {
		ix.fail()
		return "", err
	}

	pack, err := openMappedPack(finalPath)
	if err != nil {
		ix.fail()
		return "", err
	}
	ix.pack = pack

	res := newResolver(ix.table, pack, ix.opts.Hash, ix.opts.Store)
	resolved, err := res.resolveAll(ix.opts.ParallelResolve)
	if err != nil {
		ix.fail()
		return "", err
	}
	ix.prog.addIndexed(0, uint64(resolved))

	if ctx != nil {
		select {
		case <-ctx.Done():
			ix.fail()
			return "", errCancelled("context cancelled before index emission")
		default:
		}
	}
	if ix.prog.report() {
		ix.fail()
		return "", errCancelled("progress observer requested abort before index emission")
	}

	entries := make([]packfile.IndexEntry, len(ix.table.all))
	for i, e := range ix.table.all {
		if len(e.ID) == 0 {
			ix.fail()
			return "", errDelta(fmt.Sprintf("entry at position %d has no identity after resolution", e.Position), nil)
		}
		entries[i] = packfile.IndexEntry{ID: e.ID, CRC32: e.CRC32, Position: e.Position}
	}

	idxPath := packIndexPath(ix.opts.Dir, hexID)
	idxFile, err := os.OpenFile(idxPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, ix.opts.FileMode)
	if err != nil {
		ix.fail()
		return "", errIO("creating index file", err)
	}
	if _, err := packfile.WriteIndex(idxFile, ix.opts.Hash, ix.packTrailer, entries); err != nil {
		idxFile.Close()
		ix.fail()
		return "", err
	}
	if err := idxFile.Close(); err != nil {
		ix.fail()
		return "", errIO("closing index file", err)
	}

	if ix.opts.Store != nil {
		for _, e := range ix.table.all {
			content, typ, err := res.materialize(mustHandle(ix.table, e.Position))
			if err != nil {
				continue
			}
			_ = ix.opts.Store.Insert(e.ID, typ, content)
		}
	}

	ix.hexID = hexID
	ix.state = stateCommitted
	return hexID, nil
}

// Free releases every resource owned by the Indexer. If commit has not
// succeeded, the temporary pack file is removed, per §7.
func (ix *Indexer) Free() error {
	if ix.pack != nil {
		_ = ix.pack.close()
		ix.pack = nil
	}
	if ix.writer != nil && ix.state != stateCommitted {
		ix.writer.removeTemp()
	}
	ix.writer = nil
	return nil
}

func (ix *Indexer) fail() {
	ix.state = stateFailed
}

func mustHandle(t *entryTable, pos uint64) entryHandle {
	h, _ := t.byPosition(pos)
	return h
}

func packPath(dir, hexID string) string {
	return filepath.Join(dir, "pack-"+hexID+".pack")
}

func packIndexPath(dir, hexID string) string {
	return filepath.Join(dir, "pack-"+hexID+".idx")
}
