package dedupe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bakkerme/digestbot/internal/core"
)

type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cache file path is required")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load never fails hard: a missing or corrupt file yields an empty set and a
// *core.StoreLoadError describing why.
func (s *FileStore) Load(ctx context.Context) (core.SeenSet, error) {
	_ = ctx
	data, err := os.ReadFile(s.path)
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return core.NewSeenSet(), nil
	}
	seen, err := decodeLinks(data)
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: fmt.Errorf("%s: %w", s.path, err)}
	}
	return seen, nil
}

// Save writes to a temp file in the same directory and renames it into place,
// so a crash mid-write leaves the previous cache intact.
func (s *FileStore) Save(ctx context.Context, seen core.SeenSet) error {
	_ = ctx
	data, err := encodeLinks(seen)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
