// Package history persists completed recording sessions.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/bosley/dictate/kvstore"
)

const storageKey = "recordings"

// Record is one completed recording session. Records are immutable once
// created.
type Record struct {
	ID         string  `json:"id"`
	DateTime   string  `json:"dateTime"` // ISO-8601
	DurationMs int64   `json:"durationMs"`
	Transcript string  `json:"transcript"`
	AudioPath  *string `json:"audioPath"`
}

// NewID derives a unique record id from the session start time.
func NewID(t time.Time) string {
	return fmt.Sprintf("rec-%d", t.UnixMilli())
}

type Store struct {
	mu sync.Mutex
	kv *kvstore.Store
}

func NewStore(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Add prepends a record so the list stays most-recent-first.
func (s *Store) Add(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.list()
	records = append([]Record{rec}, records...)
	return s.kv.Set(storageKey, records)
}

// List returns all records, most recent first.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

// Delete removes the record with the given id. Unknown ids are a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.list()
	for i, rec := range records {
		if rec.ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.kv.Set(storageKey, records)
		}
	}
	return nil
}

// list reads the stored records. Callers must hold s.mu.
func (s *Store) list() []Record {
	var records []Record
	s.kv.Get(storageKey, &records)
	return records
}
