package utils

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NahomAnteneh/vec/internal/packfile"
)

// FindObjectByPartialHash looks up a full hash by a partial hash prefix
// by searching the loose objects and, only when none match, every pack
// index under objects/pack. Returns the full hash if found,
// or an error if no match or multiple matches are found.
func FindObjectByPartialHash(repoRoot, partialHash string) (string, error) {
	if len(partialHash) < 4 {
		return "", fmt.Errorf("hash prefix too short (minimum 4 characters)")
	}

	// Ensure the hash is lowercase
	partialHash = strings.ToLower(partialHash)

	// Normalize the hash format
	partialHash = strings.TrimSpace(partialHash)

	// Objects directory path
	objectsDir := filepath.Join(repoRoot, ".vec", "objects")

	// Search loose objects first
	matchingObjects := []string{}

	// Check if the first two characters of the partial hash exist as a directory
	if len(partialHash) >= 2 {
		prefix := partialHash[:2]
		suffix := partialHash[2:]
		prefixDir := filepath.Join(objectsDir, prefix)

		if _, err := os.Stat(prefixDir); err == nil {
			// Read the directory
			entries, err := os.ReadDir(prefixDir)
			if err != nil {
				return "", fmt.Errorf("failed to read objects directory: %w", err)
			}

			// Look for files starting with the suffix
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasPrefix(entry.Name(), suffix) {
					fullHash := prefix + entry.Name()
					matchingObjects = append(matchingObjects, fullHash)
				}
			}
		}
	}

	// Also search packfiles if no loose match was found.
	if len(matchingObjects) == 0 {
		packMatches, err := findPartialHashInPacks(objectsDir, partialHash)
		if err != nil {
			return "", err
		}
		matchingObjects = append(matchingObjects, packMatches...)
	}

	// Check results
	switch len(matchingObjects) {
	case 0:
		return "", fmt.Errorf("no object found with hash prefix '%s'", partialHash)
	case 1:
		return matchingObjects[0], nil
	default:
		// Multiple matches found, provide details in the error
		matches := strings.Join(matchingObjects, ", ")
		return "", fmt.Errorf("multiple objects found with prefix '%s': %s", partialHash, matches)
	}
}

// findPartialHashInPacks checks every pack index under objectsDir/pack for
// an entry whose identity starts with partialHash, via Index.FindPrefix.
func findPartialHashInPacks(objectsDir, partialHash string) ([]string, error) {
	packDir := filepath.Join(objectsDir, "pack")
	entries, err := os.ReadDir(packDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pack directory: %w", err)
	}

	prefixBytes, oddNibble, err := decodeHexPrefix(partialHash)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idx, err := packfile.ReadIndexFile(filepath.Join(packDir, entry.Name()), packfile.SHA256)
		if err != nil {
			return nil, fmt.Errorf("failed to read pack index %s: %w", entry.Name(), err)
		}
		for _, found := range idx.FindPrefix(prefixBytes, oddNibble) {
			matches = append(matches, hex.EncodeToString(found.ID))
		}
	}
	return matches, nil
}

// decodeHexPrefix decodes a (possibly odd-length) hex prefix into raw
// bytes, padding a trailing nibble with a zero so it can still be decoded.
func decodeHexPrefix(partialHash string) ([]byte, bool, error) {
	oddNibble := len(partialHash)%2 != 0
	padded := partialHash
	if oddNibble {
		padded += "0"
	}
	raw, err := hex.DecodeString(padded)
	if err != nil {
		return nil, false, fmt.Errorf("invalid hash prefix %q: %w", partialHash, err)
	}
	return raw, oddNibble, nil
}
