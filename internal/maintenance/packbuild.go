package maintenance

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/klauspost/compress/zlib"

	"github.com/NahomAnteneh/vec/core"
	"github.com/NahomAnteneh/vec/internal/indexer"
	"github.com/NahomAnteneh/vec/internal/objects"
	"github.com/NahomAnteneh/vec/internal/packfile"
)

// buildRawPack assembles a valid, uncompressed-delta pack stream from a set
// of loose objects: every entry is written as a full object (never
// OFS_DELTA/REF_DELTA), since these objects have no existing base chain to
// reuse. The stream still needs a trip through internal/indexer before it
// is a real pack: that step computes and appends the correct trailer hash
// and produces the companion .idx, reusing the exact same verification
// path an incoming network pack goes through.
func buildRawPack(repoRoot string, hashes []string, kind packfile.HashKind) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("PACK")
	writeBE32(&buf, 2)
	writeBE32(&buf, uint32(len(hashes)))

	for _, hash := range hashes {
		typ, content, err := objects.ReadLoose(repoRoot, hash)
		if err != nil {
			return nil, fmt.Errorf("maintenance: packing %s: %w", hash, err)
		}
		buf.Write(packfile.EncodeObjectHeader(typ, uint64(len(content))))
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("maintenance: compressing %s: %w", hash, err)
		}
		if _, err := zw.Write(content); err != nil {
			zw.Close()
			return nil, fmt.Errorf("maintenance: compressing %s: %w", hash, err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("maintenance: compressing %s: %w", hash, err)
		}
	}

	return buf.Bytes(), nil
}

func writeBE32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

// CreatePackfile packs the loose objects named by hashes into a new
// pack-<hash>.pack/.idx pair inside repo's objects/pack directory, using
// internal/indexer end to end so the result is byte-identical to what
// streaming that same content in over the network would have produced.
// It returns the path of the written pack file.
func CreatePackfile(repo *core.Repository, hashes []string, kind packfile.HashKind) (string, error) {
	if len(hashes) == 0 {
		return "", fmt.Errorf("maintenance: CreatePackfile: no objects given")
	}
	raw, err := buildRawPack(repo.Root, hashes, kind)
	if err != nil {
		return "", err
	}

	packDir := filepath.Join(repo.VecDir(), "objects", "pack")
	ix, err := indexer.New(indexer.Options{
		Dir:   packDir,
		Hash:  kind,
		Store: objects.NewStore(repo),
	})
	if err != nil {
		return "", fmt.Errorf("maintenance: CreatePackfile: %w", err)
	}
	defer ix.Free()

	if err := ix.Append(raw); err != nil {
		return "", fmt.Errorf("maintenance: CreatePackfile: %w", err)
	}
	hexID, err := ix.Commit(context.Background())
	if err != nil {
		return "", fmt.Errorf("maintenance: CreatePackfile: %w", err)
	}

	return filepath.Join(packDir, "pack-"+hexID+".pack"), nil
}
