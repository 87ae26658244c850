package objects

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCreateGetCommit(t *testing.T) {
	testDir, err := os.MkdirTemp("", "vec-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(testDir)

	if err := os.MkdirAll(filepath.Join(testDir, ".vec"), 0755); err != nil {
		t.Fatal(err)
	}

	treeHash := "c0ffee00000000000000000000000000000000000000000000000000000000"
	parentHashes := []string{"deadbeef0000000000000000000000000000000000000000000000000000"}
	author := "Test Author <test@example.com>"
	committer := "Test Committer <committer@example.com>"
	message := "Test commit message\n\nWith multiple lines."
	timestamp := time.Now().Unix()

	commitHash, err := CreateCommit(testDir, treeHash, parentHashes, author, committer, message, timestamp)
	if err != nil {
		t.Fatalf("CreateCommit() failed: %v", err)
	}
	if commitHash == "" {
		t.Fatal("CreateCommit() returned an empty hash")
	}

	// markReachableFromObject in internal/maintenance/gc.go reaches a
	// commit this way, then reads exactly these two fields to keep
	// walking: the tree and the parent list.
	commit, err := GetCommit(testDir, commitHash)
	if err != nil {
		t.Fatalf("GetCommit() failed: %v", err)
	}
	if commit.CommitID != commitHash {
		t.Errorf("Expected CommitID '%s', got '%s'", commitHash, commit.CommitID)
	}
	if commit.Tree != treeHash {
		t.Errorf("Expected tree hash '%s', got '%s'", treeHash, commit.Tree)
	}
	if !reflect.DeepEqual(commit.Parents, parentHashes) {
		t.Errorf("Expected parents '%v', got '%v'", parentHashes, commit.Parents)
	}
	if commit.Author != author {
		t.Errorf("Expected author '%s', got '%s'", author, commit.Author)
	}
	if commit.Committer != committer {
		t.Errorf("Expected committer '%s', got '%s'", committer, commit.Committer)
	}
	if commit.Message != message {
		t.Errorf("Expected message '%s', got '%s'", message, commit.Message)
	}
	if commit.GetCommitTime().Unix() != timestamp {
		t.Errorf("Expected time '%s', got '%s'", time.Unix(timestamp, 0), commit.GetCommitTime())
	}

	if _, err := GetCommit(testDir, "invalid-hash"); err == nil {
		t.Fatal("expected error reading a commit that was never written")
	}
}

func TestCreateCommitEmptyMessage(t *testing.T) {
	testDir, err := os.MkdirTemp("", "vec-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(testDir)

	if err := os.MkdirAll(filepath.Join(testDir, ".vec"), 0755); err != nil {
		t.Fatal(err)
	}

	hash, err := CreateCommit(testDir, "treehash", nil, "a <a@x>", "a <a@x>", "", time.Now().Unix())
	if err != nil {
		t.Fatalf("CreateCommit() with empty message failed: %v", err)
	}
	commit, err := GetCommit(testDir, hash)
	if err != nil {
		t.Fatalf("GetCommit() failed: %v", err)
	}
	if commit.Message != "" {
		t.Fatalf("expected empty message, got %q", commit.Message)
	}
	if len(commit.Parents) != 0 {
		t.Fatalf("expected no parents, got %v", commit.Parents)
	}
}

func TestGetObjectPath(t *testing.T) {
	hash := "ab" + "cdef1234567890"
	expectedPath := filepath.Join("root", ".vec", "objects", "ab", "cdef1234567890")
	if got := GetObjectPath("root", hash); got != expectedPath {
		t.Errorf("Expected path '%s', got '%s'", expectedPath, got)
	}

	expectedEmptyRepoRootPath := filepath.Join(".vec", "objects", "ab", "cdef1234567890")
	if got := GetObjectPath("", hash); got != expectedEmptyRepoRootPath {
		t.Errorf("Expected path '%s', got '%s'", expectedEmptyRepoRootPath, got)
	}
}
