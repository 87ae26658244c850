package indexer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxSingleWrite bounds a single os.File.Write call, per §4.2's "large
// chunks are split to respect platform write-size limits."
const maxSingleWrite = 1 << 20

// packWriter is the component-B append writer: every byte handed to
// Append is written verbatim, in order, to a temporary pack file, tracked
// independently of whatever the parser manages to decode from the same
// bytes (§4.2: "a separate pass over the chunk from the parser").
type packWriter struct {
	f        *os.File
	tempPath string
	size     uint64
}

func newPackWriter(dir string, mode os.FileMode) (*packWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errIO("creating destination directory", err)
	}
	name := fmt.Sprintf(".indexer-%s.pack.tmp", uuid.NewString())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return nil, errIO("creating temporary pack file", err)
	}
	return &packWriter{f: f, tempPath: path}, nil
}

func (w *packWriter) write(chunk []byte) error {
	for len(chunk) > 0 {
		n := len(chunk)
		if n > maxSingleWrite {
			n = maxSingleWrite
		}
		written, err := w.f.Write(chunk[:n])
		if err != nil {
			return errIO("writing to temporary pack file", err)
		}
		w.size += uint64(written)
		chunk = chunk[written:]
	}
	return nil
}

func (w *packWriter) close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return errIO("closing temporary pack file", err)
	}
	return nil
}

// removeTemp deletes the temporary pack, used on Free before a successful
// commit per §7's policy.
func (w *packWriter) removeTemp() {
	_ = w.close()
	if w.tempPath != "" {
		_ = os.Remove(w.tempPath)
	}
}

// finalize closes the temp file and renames it directly to pack-<hex>.pack
// inside dir, returning the final path. hexID must already be the pack's
// content-hash identity (derived from the trailer the parser verified) so
// the rename target is unique per pack content rather than a name two
// indexers committing into the same dir could collide on.
func (w *packWriter) finalize(dir, hexID string) (string, error) {
	if err := w.close(); err != nil {
		return "", err
	}
	finalPath := packPath(dir, hexID)
	if err := os.Rename(w.tempPath, finalPath); err != nil {
		return "", errIO("renaming pack file to final name", err)
	}
	w.tempPath = ""
	return finalPath, nil
}
