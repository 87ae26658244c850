// Package remote holds the receiving side of a pack transfer: turning the
// byte stream a remote hands back for a fetch into committed pack and
// object-store state. Negotiating which objects are missing and moving the
// bytes across the wire is somebody else's job (an HTTP/SSH client); this
// package only has to make sense of what comes back.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/NahomAnteneh/vec/core"
	"github.com/NahomAnteneh/vec/internal/indexer"
	"github.com/NahomAnteneh/vec/internal/objects"
	"github.com/NahomAnteneh/vec/internal/packfile"
)

// UnpackOptions controls how an incoming packfile stream is indexed.
type UnpackOptions struct {
	Hash            packfile.HashKind
	Progress        indexer.ProgressFunc
	ParallelResolve bool
}

// UnpackPackfile streams data into repo's pack directory through
// internal/indexer, the same path a local index-pack run takes, and
// commits the result. It returns the hex pack ID on
// success.
func UnpackPackfile(ctx context.Context, repo *core.Repository, data io.Reader, opts UnpackOptions) (string, error) {
	hash := opts.Hash
	if hash == 0 {
		hash = packfile.SHA256
	}

	ix, err := indexer.New(indexer.Options{
		Dir:             packDir(repo),
		Hash:            hash,
		Store:           objects.NewStore(repo),
		Progress:        opts.Progress,
		ParallelResolve: opts.ParallelResolve,
	})
	if err != nil {
		return "", fmt.Errorf("remote: unpack: %w", err)
	}
	defer ix.Free()

	buf := make([]byte, 64*1024)
	for {
		n, rerr := data.Read(buf)
		if n > 0 {
			if err := ix.Append(buf[:n]); err != nil {
				return "", fmt.Errorf("remote: unpack: %w", err)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("remote: unpack: reading stream: %w", rerr)
		}
	}

	hexID, err := ix.Commit(ctx)
	if err != nil {
		return "", fmt.Errorf("remote: unpack: %w", err)
	}
	return hexID, nil
}

// UnpackPackfileBytes is a convenience wrapper around UnpackPackfile for
// callers that already have the whole pack in memory, such as a fetch
// client that buffered the HTTP response body before handing it off.
func UnpackPackfileBytes(ctx context.Context, repo *core.Repository, data []byte, opts UnpackOptions) (string, error) {
	return UnpackPackfile(ctx, repo, bytes.NewReader(data), opts)
}

func packDir(repo *core.Repository) string {
	return filepath.Join(repo.VecDir(), "objects", "pack")
}
