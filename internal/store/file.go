package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps each document in its own JSON file under a data
// directory, named <kind>_<id>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(kind, id string) string {
	return filepath.Join(s.dir, kind+"_"+id+".json")
}

// Load reads the document file. Returns ErrNotFound if it does not exist.
func (s *FileStore) Load(_ context.Context, kind, id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(kind, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s %s: %w", kind, id, err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory, fsyncs it, and renames
// it over the target so the replace is atomic.
func (s *FileStore) Save(_ context.Context, kind, id string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, kind+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	if err = os.Rename(tmpName, s.path(kind, id)); err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	return nil
}

// List scans the data directory for documents of a kind.
func (s *FileStore) List(_ context.Context, kind string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, kind+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s documents: %w", kind, err)
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		id := strings.TrimSuffix(strings.TrimPrefix(name, kind+"_"), ".json")
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
