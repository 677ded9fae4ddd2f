// Package payload stores level geometry payloads as flat files keyed by
// level identifier. Payloads are too large and too write-heavy for a
// relational column; their lifecycle is independent from level metadata,
// so a missing file is not an error at this layer.
package payload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store reads and writes per-level payload files under a base directory.
type Store struct {
	dir string
}

// Open prepares a payload store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("payload directory is required")
	}
	cleanDir := filepath.Clean(dir)
	if err := os.MkdirAll(cleanDir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload directory: %w", err)
	}
	return &Store{dir: cleanDir}, nil
}

func (s *Store) path(levelID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(levelID, 10))
}

// Exists reports whether a payload is stored for levelID.
func (s *Store) Exists(ctx context.Context, levelID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(levelID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat payload %d: %w", levelID, err)
	}
	return true, nil
}

// Read returns the full payload for levelID.
func (s *Store) Read(ctx context.Context, levelID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contents, err := os.ReadFile(s.path(levelID))
	if err != nil {
		return "", fmt.Errorf("read payload %d: %w", levelID, err)
	}
	return string(contents), nil
}

// Write overwrites the payload for levelID, truncating any previous one.
func (s *Store) Write(ctx context.Context, levelID int64, contents string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(levelID), []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write payload %d: %w", levelID, err)
	}
	return nil
}
