// Package keyring holds the ordered set of service credentials and hands
// them out round-robin so usage spreads across accounts.
package keyring

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bosley/dictate/kvstore"
)

const (
	keysKey   = "keyring.keys"
	cursorKey = "keyring.cursor"
)

type Store struct {
	mu     sync.Mutex
	kv     *kvstore.Store
	keys   []string
	cursor int
}

// Open loads the keyring from the backing store. An empty keyring is seeded
// with the configured defaults and persisted.
func Open(kv *kvstore.Store, seeds []string) (*Store, error) {
	s := &Store{kv: kv}
	s.load()

	if len(s.keys) == 0 && len(seeds) > 0 {
		for _, seed := range seeds {
			seed = strings.TrimSpace(seed)
			if seed != "" && !s.contains(seed) {
				s.keys = append(s.keys, seed)
			}
		}
		if err := s.persist(); err != nil {
			return nil, err
		}
		slog.Debug("Seeded keyring with default credentials", "count", len(s.keys))
	}

	return s, nil
}

// Next returns the credential at the cursor and advances it, wrapping at the
// end of the set. It reports false when the keyring is empty.
func (s *Store) Next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.keys) == 0 {
		return "", false
	}

	key := s.keys[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.keys)
	if err := s.persist(); err != nil {
		slog.Error("Failed to persist keyring cursor", "error", err)
	}
	return key, true
}

// Add appends a credential. Blank input (after trimming) and duplicates are
// ignored.
func (s *Store) Add(secret string) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contains(secret) {
		return
	}

	s.keys = append(s.keys, secret)
	if err := s.persist(); err != nil {
		slog.Error("Failed to persist keyring", "error", err)
	}
}

// Remove deletes the credential at index. Out-of-bounds indices are a no-op.
// The cursor is clamped back into range afterwards.
func (s *Store) Remove(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.keys) {
		return
	}

	s.keys = append(s.keys[:index], s.keys[index+1:]...)
	if s.cursor >= len(s.keys) {
		s.cursor = 0
	}
	if err := s.persist(); err != nil {
		slog.Error("Failed to persist keyring", "error", err)
	}
}

// Keys returns a copy of the credential list in rotation order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Watch reloads the keyring when the backing store file is rewritten by an
// external process. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: the store replaces its file via rename, which
	// drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(s.kv.Path())); err != nil {
		return err
	}

	slog.Debug("Watching keyring store", "path", s.kv.Path())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.kv.Path() {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(); err != nil {
				slog.Error("Failed to reload keyring", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Keyring watcher error", "error", err)
		}
	}
}

func (s *Store) reload() error {
	if err := s.kv.Reload(); err != nil {
		return err
	}
	s.mu.Lock()
	s.load()
	s.mu.Unlock()
	slog.Debug("Keyring reloaded from store")
	return nil
}

// load reads keys and cursor from the backing store and restores the cursor
// invariant. Callers must hold s.mu except during construction.
func (s *Store) load() {
	s.keys = nil
	s.cursor = 0
	s.kv.Get(keysKey, &s.keys)
	s.kv.Get(cursorKey, &s.cursor)
	if s.cursor < 0 || s.cursor >= len(s.keys) {
		s.cursor = 0
	}
}

func (s *Store) persist() error {
	if err := s.kv.Set(keysKey, s.keys); err != nil {
		return err
	}
	return s.kv.Set(cursorKey, s.cursor)
}

func (s *Store) contains(secret string) bool {
	for _, k := range s.keys {
		if k == secret {
			return true
		}
	}
	return false
}
