// Package storage keeps uploaded binary replays on the local filesystem,
// sharded into 256 directories by score id so no single directory grows
// unbounded.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/osudroid-server/internal/domain"
)

const shardCount = 256

// ReplayStore stores replay files keyed by score id
type ReplayStore struct {
	dir string
}

// NewReplayStore creates the store root if needed
func NewReplayStore(dir string) (*ReplayStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating replay directory: %w", err)
	}
	return &ReplayStore{dir: dir}, nil
}

func (s *ReplayStore) path(scoreID int64) string {
	shard := fmt.Sprintf("%d", scoreID%shardCount)
	return filepath.Join(s.dir, shard, fmt.Sprintf("%d.odr", scoreID))
}

// Put writes a replay, replacing any previous file for the score
func (s *ReplayStore) Put(scoreID int64, data []byte) error {
	path := s.path(scoreID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating replay shard: %w", err)
	}

	// Write-then-rename so a crashed upload never leaves a torn file
	// behind for the download endpoint.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing replay: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing replay: %w", err)
	}
	return nil
}

// Get reads a stored replay
func (s *ReplayStore) Get(scoreID int64) ([]byte, error) {
	data, err := os.ReadFile(s.path(scoreID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("reading replay: %w", err)
	}
	return data, nil
}

// Exists reports whether a replay is stored for the score
func (s *ReplayStore) Exists(scoreID int64) (bool, error) {
	_, err := os.Stat(s.path(scoreID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking replay: %w", err)
	}
	return true, nil
}

// Remove deletes a stored replay. Removing a replay that was never stored
// is not an error.
func (s *ReplayStore) Remove(scoreID int64) error {
	err := os.Remove(s.path(scoreID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing replay: %w", err)
	}
	return nil
}
