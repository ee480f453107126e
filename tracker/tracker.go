// Package tracker maintains the persistent record of articles that have
// already been forwarded, so repeat runs can suppress duplicates by URL or
// by content fingerprint.
package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

// ExcerptPrefixRunes is how much of the excerpt participates in the content
// fingerprint. It must stay constant across runs or fingerprints of
// previously sent articles stop matching.
const ExcerptPrefixRunes = 500

// Entry records one confirmed-sent article.
type Entry struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Fingerprint string    `json:"fingerprint"`
	SentAt      time.Time `json:"sent_at"`
}

// Fingerprint computes the content identity of an article: a hex SHA-256
// digest over the title and a bounded prefix of the excerpt. Two articles
// published under different URLs but with the same title and opening text
// collapse to the same fingerprint.
func Fingerprint(title, excerpt string) string {
	prefix := []rune(strings.TrimSpace(excerpt))
	if len(prefix) > ExcerptPrefixRunes {
		prefix = prefix[:ExcerptPrefixRunes]
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(title) + "\n\n" + string(prefix)))
	return hex.EncodeToString(sum[:])
}

// Backend is the durable storage seam: a full-collection read and an atomic
// full-collection write. The store assumes nothing else about it.
type Backend interface {
	Load() ([]Entry, error)
	Save([]Entry) error
}

// Store is the in-memory working copy of the tracked entries. It is loaded
// once at run start, mutated by pruning and appends, and saved once at run
// end.
type Store struct {
	backend Backend
	entries []Entry
}

// NewStore creates an empty store bound to a backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load replaces the in-memory entries with the persisted state. Absent or
// unreadable state is never an error: the store falls back to empty, which
// at worst re-sends a handful of recent articles once.
func (s *Store) Load() {
	entries, err := s.backend.Load()
	if err != nil {
		slog.Warn("failed to load tracking store, starting empty", "error", err)
		s.entries = nil
		return
	}
	s.entries = entries
}

// Prune removes entries whose sent_at falls outside the retention window and
// returns how many were dropped. It must run before any lookup in a run so
// expired entries cannot suppress a legitimately new article.
func (s *Store) Prune(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.SentAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	pruned := len(s.entries) - len(kept)
	s.entries = kept
	return pruned
}

// LookupURL returns the entry with an exactly matching URL, if any.
func (s *Store) LookupURL(url string) (Entry, bool) {
	for _, e := range s.entries {
		if e.URL == url {
			return e, true
		}
	}
	return Entry{}, false
}

// LookupFingerprint returns the entry with an exactly matching content
// fingerprint, if any.
func (s *Store) LookupFingerprint(fp string) (Entry, bool) {
	for _, e := range s.entries {
		if e.Fingerprint == fp {
			return e, true
		}
	}
	return Entry{}, false
}

// Record appends an entry in memory only. The timestamp is normalized to
// whole-second UTC so the persisted form stays stable and diff-friendly.
// Entries recorded mid-run are visible to subsequent lookups in the same run.
func (s *Store) Record(e Entry) {
	e.SentAt = e.SentAt.UTC().Truncate(time.Second)
	s.entries = append(s.entries, e)
}

// Save persists the full current entry set through the backend.
func (s *Store) Save() error {
	return s.backend.Save(s.entries)
}

// Len reports the number of entries currently tracked.
func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the tracked entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
