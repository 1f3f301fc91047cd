// Package store persists board artifacts: one YAML file per board in a
// shared directory. Every mutation runs inside the board's lock sentinel
// critical section and lands on disk through a same-directory temp file
// followed by an atomic rename, so readers only ever observe a fully old
// or fully new artifact. There is no caching: each critical section
// round-trips through storage, trading speed for correctness in a
// crash-heavy environment.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/agentboard/internal/lock"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

// ErrCorruption is returned when a board artifact exists but cannot be
// parsed. A corrupt board is never silently replaced by an empty one.
var ErrCorruption = errors.New("board artifact corrupted")

// DefaultLockTimeout bounds how long a critical section waits for a
// board lock before surfacing lock.ErrLockTimeout.
const DefaultLockTimeout = 10 * time.Second

// Canonical board names. Lock acquisition across boards always follows
// this order so relocations can never deadlock against each other.
const (
	BoardBacklog = "backlog"
	BoardWorking = "working"
	BoardArchive = "archive"
)

var boardRank = map[string]int{
	BoardBacklog: 0,
	BoardWorking: 1,
	BoardArchive: 2,
}

// Store loads and saves board artifacts under a single directory.
type Store struct {
	dir         string
	locks       *lock.Manager
	lockTimeout time.Duration
}

// New creates a Store over dir, using locks for mutual exclusion.
func New(dir string, locks *lock.Manager, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{dir: dir, locks: locks, lockTimeout: lockTimeout}
}

// Dir returns the directory holding the board artifacts.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(board string) string {
	return filepath.Join(s.dir, board+".yaml")
}

// Load reads a board artifact without taking its lock. A missing file
// yields an empty board; an unparseable file yields ErrCorruption.
// Lock-free loads are advisory snapshots only — mutations must go
// through Update.
func (s *Store) Load(board string) (*models.Board, error) {
	data, err := os.ReadFile(s.path(board))
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewBoard(board), nil
		}
		return nil, fmt.Errorf("loading board %s: %w", board, err)
	}

	var b models.Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("loading board %s: %w: %v", board, ErrCorruption, err)
	}
	if b.Name == "" {
		b.Name = board
	}
	if b.Version == "" {
		return nil, fmt.Errorf("loading board %s: %w: missing version header", board, ErrCorruption)
	}
	if b.Tasks == nil {
		b.Tasks = []models.Task{}
	}
	return &b, nil
}

// save writes the board atomically: marshal, write a temp file in the
// same directory, then rename over the live artifact. A process killed
// mid-save leaves the previous version intact.
func (s *Store) save(board string, b *models.Board) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("saving board %s: creating directory: %w", board, err)
	}
	if b.Version == "" {
		b.Version = models.BoardVersion
	}
	if b.Name == "" {
		b.Name = board
	}

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("saving board %s: marshaling: %w", board, err)
	}

	target := s.path(board)
	tmp, err := os.CreateTemp(s.dir, board+"-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("saving board %s: creating temp file: %w", board, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving board %s: writing temp file: %w", board, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving board %s: syncing temp file: %w", board, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving board %s: closing temp file: %w", board, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving board %s: replacing artifact: %w", board, err)
	}
	return nil
}

// Save persists one board inside its lock critical section.
func (s *Store) Save(board string, b *models.Board) error {
	return s.Update([]string{board}, func(snaps map[string]*models.Board) ([]string, error) {
		*snaps[board] = *b
		return []string{board}, nil
	})
}

// Update runs fn exactly once with exclusive access to the named boards.
// Locks are taken in canonical order, snapshots are loaded fresh from
// disk, and the boards fn reports dirty are persisted atomically in the
// order fn returns them. For relocations the destination board must come
// first, so a crash between writes duplicates a task across two boards
// (reconcilable) rather than losing it.
func (s *Store) Update(boards []string, fn func(snaps map[string]*models.Board) ([]string, error)) error {
	ordered := append([]string(nil), boards...)
	sort.Slice(ordered, func(i, j int) bool {
		ri, rj := rankOf(ordered[i]), rankOf(ordered[j])
		if ri != rj {
			return ri < rj
		}
		return ordered[i] < ordered[j]
	})

	var tokens []*lock.Token
	defer func() {
		for i := len(tokens) - 1; i >= 0; i-- {
			_ = s.locks.Release(tokens[i])
		}
	}()

	for _, board := range ordered {
		tok, err := s.locks.Acquire(board, s.lockTimeout)
		if err != nil {
			return err
		}
		tokens = append(tokens, tok)
	}

	snaps := make(map[string]*models.Board, len(ordered))
	for _, board := range ordered {
		b, err := s.Load(board)
		if err != nil {
			return err
		}
		snaps[board] = b
	}

	dirty, err := fn(snaps)
	if err != nil {
		return err
	}

	for _, board := range dirty {
		b, ok := snaps[board]
		if !ok {
			return fmt.Errorf("saving board %s: board was not part of this critical section", board)
		}
		if err := s.save(board, b); err != nil {
			return err
		}
	}
	return nil
}

func rankOf(board string) int {
	if r, ok := boardRank[board]; ok {
		return r
	}
	return len(boardRank)
}
