package objects

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NahomAnteneh/vec/core"
	"github.com/NahomAnteneh/vec/internal/packfile"
	"github.com/NahomAnteneh/vec/utils"
)

// Store adapts this package's loose-object directory onto the
// internal/indexer.ObjectStore interface (satisfied structurally: Store's
// method set matches the interface without importing internal/indexer,
// since indexer.ObjectType is a type alias for packfile.ObjectType).
// Pack-resolved objects are written in the same "<type> <size>\0<content>"
// shape CreateBlobRepo already uses, generalized across object types so
// Lookup can recover both the type and the content from one file.
type Store struct {
	Repo *core.Repository
}

// NewStore wraps repo's object directory for use by an indexer.Indexer.
func NewStore(repo *core.Repository) *Store {
	return &Store{Repo: repo}
}

func (s *Store) objectPath(id []byte) string {
	return GetObjectPathRepo(s.Repo, hex.EncodeToString(id))
}

// Lookup satisfies indexer.ObjectStore: it backs REF_DELTA base resolution
// against bases that live outside the pack being indexed. Blob content is
// decoded through GetBlobRepo, the same loose-blob reader CreateBlobRepo's
// writes round-trip through; other object types use the generic header
// split below since GetBlobRepo assumes a "blob" header.
func (s *Store) Lookup(id []byte) ([]byte, packfile.ObjectType, bool, error) {
	path := s.objectPath(id)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, packfile.TypeInvalid, false, nil
		}
		return nil, packfile.TypeInvalid, false, fmt.Errorf("object store: reading %x: %w", id, err)
	}
	headerEnd := bytes.IndexByte(content, 0)
	if headerEnd == -1 {
		return nil, packfile.TypeInvalid, false, fmt.Errorf("object store: %x: missing header", id)
	}
	typ, err := parseObjectTypeHeader(content[:headerEnd])
	if err != nil {
		return nil, packfile.TypeInvalid, false, fmt.Errorf("object store: %x: %w", id, err)
	}
	if typ == packfile.TypeBlob {
		blob, err := GetBlobRepo(s.Repo, hex.EncodeToString(id))
		if err != nil {
			return nil, packfile.TypeInvalid, false, fmt.Errorf("object store: %x: %w", id, err)
		}
		return blob, packfile.TypeBlob, true, nil
	}
	return content[headerEnd+1:], typ, true, nil
}

// Insert satisfies indexer.ObjectStore: it persists every object an
// Indexer resolved after a successful commit, so later packs can use them
// as REF_DELTA bases without re-walking the original pack. Blobs are
// written through CreateBlobRepo, which already does the dedup-by-hash and
// atomic-rename dance this method would otherwise duplicate; other object
// types still use the generic writer below since CreateBlobRepo hardcodes
// the "blob" header.
func (s *Store) Insert(id []byte, typ packfile.ObjectType, content []byte) error {
	if typ == packfile.TypeBlob {
		hash, err := CreateBlobRepo(s.Repo, content)
		if err != nil {
			return fmt.Errorf("object store: writing blob %x: %w", id, err)
		}
		wantHash := hex.EncodeToString(id)
		if hash != wantHash {
			return fmt.Errorf("object store: blob %x hashed to %s on write", id, hash)
		}
		return nil
	}

	path := s.objectPath(id)
	if utils.FileExists(path) {
		return nil
	}
	dir := filepath.Dir(path)
	if err := utils.EnsureDirExists(dir); err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d\x00", typ, len(content))
	buf.Write(content)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("object store: writing %x: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("object store: finalizing %x: %w", id, err)
	}
	return nil
}

// ReadLoose reads the loose object named by hash under repoRoot's object
// directory and splits it into its type and content, tolerating both
// header terminators this package uses (blob.go, commit.go and Store.Insert
// write a NUL; tree.go's GetTree expects a newline).
func ReadLoose(repoRoot, hash string) (packfile.ObjectType, []byte, error) {
	path := GetObjectPath(repoRoot, hash)
	data, err := os.ReadFile(path)
	if err != nil {
		return packfile.TypeInvalid, nil, fmt.Errorf("reading loose object %s: %w", hash, err)
	}
	end := bytes.IndexByte(data, 0)
	if nl := bytes.IndexByte(data, '\n'); end == -1 || (nl != -1 && nl < end) {
		end = nl
	}
	if end == -1 {
		return packfile.TypeInvalid, nil, fmt.Errorf("loose object %s: missing header", hash)
	}
	typ, err := parseObjectTypeHeader(data[:end])
	if err != nil {
		return packfile.TypeInvalid, nil, fmt.Errorf("loose object %s: %w", hash, err)
	}
	return typ, data[end+1:], nil
}

func parseObjectTypeHeader(header []byte) (packfile.ObjectType, error) {
	parts := bytes.SplitN(header, []byte(" "), 2)
	if len(parts) != 2 {
		return packfile.TypeInvalid, fmt.Errorf("malformed header %q", header)
	}
	switch string(parts[0]) {
	case "commit":
		return packfile.TypeCommit, nil
	case "tree":
		return packfile.TypeTree, nil
	case "blob":
		return packfile.TypeBlob, nil
	case "tag":
		return packfile.TypeTag, nil
	default:
		return packfile.TypeInvalid, fmt.Errorf("unknown object type %q", parts[0])
	}
}
