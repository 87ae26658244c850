// internal/objects/tree.go
package objects

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// TreeEntry is one row of a tree object: a name plus the identity and kind
// of the blob or subtree it names.
type TreeEntry struct {
	Mode int32
	Name string
	Hash string // SHA-256 hash of the blob or tree
	Type string // "blob" or "tree"
}

// TreeObject is a decoded tree, as read back off disk for the reachability
// walk in internal/maintenance/gc.go: it never originates inside this
// repository, only pack objects and the commits/trees resolved out of them
// do, so this package only needs to read trees, not build them.
type TreeObject struct {
	TreeID  string // SHA-256 hash of the *serialized* tree data. Calculated, not stored.
	Entries []TreeEntry
}

// NewTreeObject creates a new, empty TreeObject.
func NewTreeObject() *TreeObject {
	return &TreeObject{
		Entries: []TreeEntry{},
	}
}

// DeserializeTreeObject deserializes a byte slice into a TreeObject.
func DeserializeTreeObject(data []byte) (*TreeObject, error) {
	buf := bytes.NewReader(data)
	tree := NewTreeObject()

	var entriesCount uint32
	if err := binary.Read(buf, binary.LittleEndian, &entriesCount); err != nil {
		return nil, fmt.Errorf("failed to read entries count: %w", err)
	}

	for i := uint32(0); i < entriesCount; i++ {
		var entry TreeEntry

		var nameLength uint32
		if err := binary.Read(buf, binary.LittleEndian, &nameLength); err != nil {
			return nil, fmt.Errorf("failed to read name length: %w", err)
		}
		nameBytes := make([]byte, nameLength)
		if _, err := buf.Read(nameBytes); err != nil {
			return nil, fmt.Errorf("failed to read name: %w", err)
		}
		entry.Name = string(nameBytes)

		var typeLength uint32
		if err := binary.Read(buf, binary.LittleEndian, &typeLength); err != nil {
			return nil, fmt.Errorf("failed to read type length: %w", err)
		}
		typeBytes := make([]byte, typeLength)
		if _, err := buf.Read(typeBytes); err != nil {
			return nil, fmt.Errorf("failed to read type: %w", err)
		}
		entry.Type = string(typeBytes)

		var hashLength uint32
		if err := binary.Read(buf, binary.LittleEndian, &hashLength); err != nil {
			return nil, fmt.Errorf("failed to read hash length: %w", err)
		}
		hashBytes := make([]byte, hashLength)
		if _, err := buf.Read(hashBytes); err != nil {
			return nil, fmt.Errorf("failed to read hash: %w", err)
		}
		entry.Hash = string(hashBytes)

		if err := binary.Read(buf, binary.LittleEndian, &entry.Mode); err != nil {
			return nil, fmt.Errorf("failed to read mode: %w", err)
		}
		tree.Entries = append(tree.Entries, entry)
	}

	return tree, nil
}

// GetTree reads a tree object from disk. It is gc.go's only entry point
// into this file: markReachableFromTree calls it while walking a commit's
// tree to mark every blob and subtree it contains as still live.
func GetTree(repoRoot string, hash string) (*TreeObject, error) {
	objectPath := GetObjectPath(repoRoot, hash)
	content, err := os.ReadFile(objectPath)
	if err != nil {
		return nil, err
	}
	headerEnd := bytes.IndexByte(content, '\n')
	if headerEnd == -1 {
		return nil, fmt.Errorf("invalid tree format: missing header")
	}
	treeContent := content[headerEnd+1:]
	tree, err := DeserializeTreeObject(treeContent)
	if err != nil {
		return nil, err
	}
	tree.TreeID = hash
	return tree, nil
}
