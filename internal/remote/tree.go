package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lfu-go/internal/fs"
	"lfu-go/internal/model"
)

const (
	treeKey       = "tree.json"
	objectsPrefix = "objects/"
	commitsPrefix = "commits/"

	// GitignorePath is the committed file whose patterns mark paths the
	// remote reports as ignored.
	GitignorePath = ".gitignore"
)

// TreeEntry is one committed file.
type TreeEntry struct {
	OID       string           `json:"oid"`
	Size      int64            `json:"size"`
	Mode      model.UploadMode `json:"mode"`
	Encrypted bool             `json:"encrypted,omitempty"`
}

// Tree is the current committed state of the repository.
type Tree struct {
	Head   string               `json:"head,omitempty"`
	Files  map[string]TreeEntry `json:"files"`
	Ignore []string             `json:"ignore,omitempty"` // patterns from the committed .gitignore
}

// CommitFile is one operation of a recorded commit.
type CommitFile struct {
	Path string `json:"path"`
	TreeEntry
}

// CommitRecord is the stored history entry of one commit.
type CommitRecord struct {
	ID      string       `json:"id"`
	Parent  string       `json:"parent,omitempty"`
	Message string       `json:"message"`
	Time    time.Time    `json:"time"`
	Files   []CommitFile `json:"files"`
}

func newTree() *Tree {
	return &Tree{Files: make(map[string]TreeEntry)}
}

// matcher returns the ignore matcher for the committed .gitignore.
func (t *Tree) matcher() *fs.IgnoreMatcher {
	return fs.NewIgnoreMatcher(t.Ignore)
}

func objectKey(sha string, encrypted bool) string {
	if encrypted {
		return objectsPrefix + sha + ".enc"
	}
	return objectsPrefix + sha
}

func commitKey(id string) string {
	return commitsPrefix + id + ".json"
}

// loadTree reads the current tree. A repository with no commits has an
// empty tree.
func loadTree(ctx context.Context, store ObjectStore) (*Tree, error) {
	var buf bytes.Buffer
	if err := store.Get(ctx, treeKey, &buf); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newTree(), nil
		}
		return nil, fmt.Errorf("reading tree: %w", err)
	}

	t := newTree()
	if err := json.Unmarshal(buf.Bytes(), t); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	if t.Files == nil {
		t.Files = make(map[string]TreeEntry)
	}
	return t, nil
}

func putJSON(ctx context.Context, store ObjectStore, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
