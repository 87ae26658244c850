package indexer

import (
	"io"

	"golang.org/x/exp/mmap"

	"github.com/klauspost/compress/zlib"
)

// mappedPack is the read-only, memory-mapped view of the temporary pack
// file created once at commit time, per §5: "The memory-mapped read-only
// view of the pack is created once at commit time and released on free."
// The resolver reads every base and delta payload through it rather than
// keeping decoded object content buffered from the streaming phase.
type mappedPack struct {
	ra *mmap.ReaderAt
}

func openMappedPack(path string) (*mappedPack, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, errIO("memory-mapping pack file", err)
	}
	return &mappedPack{ra: ra}, nil
}

func (m *mappedPack) close() error {
	if m.ra == nil {
		return nil
	}
	err := m.ra.Close()
	m.ra = nil
	return err
}

// readInflated inflates the compressedSize bytes of deflate stream
// starting headerSize bytes after position, returning the decompressed
// payload (an object's final content, or a delta's instruction stream).
func (m *mappedPack) readInflated(position uint64, headerSize int, compressedSize uint64) ([]byte, error) {
	off := int64(position) + int64(headerSize)
	sr := io.NewSectionReader(m.ra, off, int64(compressedSize))
	zr, err := zlib.NewReader(sr)
	if err != nil {
		return nil, errIO("opening compressed object stream", err)
	}
	defer zr.Close()
	content, err := io.ReadAll(zr)
	if err != nil {
		return nil, errIO("inflating compressed object stream", err)
	}
	return content, nil
}
