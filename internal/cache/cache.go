// file: internal/cache/cache.go
// version: 2.1.0
// guid: a7b8c9d0-e1f2-3a4b-5c6d-7e8f9a0b1c2d

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// DefaultFlushDelay is the quiescence window for coalescing disk writes.
const DefaultFlushDelay = 300 * time.Millisecond

// pathKeyPrefix disambiguates the path key space from the query key space.
const pathKeyPrefix = "path:"

// Store is a persistent metadata cache. The in-memory map is the source of
// truth between flushes; the whole map is serialized to a single JSON
// document on disk. Writes are debounced: repeated saves within the flush
// delay coalesce into one full-document replace.
type Store struct {
	path       string
	flushDelay time.Duration

	mu      sync.Mutex
	entries map[string]*models.Metadata
	dirty   bool
	timer   *time.Timer
}

// stripMarks removes combining marks so that accented and unaccented
// spellings of the same query normalize to the same key.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// New creates a Store backed by the given file. A missing file is an empty
// cache; malformed entries are skipped individually on load, and a file
// that is not valid JSON at all resets the cache rather than failing.
func New(path string, flushDelay time.Duration) *Store {
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	s := &Store{
		path:       path,
		flushDelay: flushDelay,
		entries:    make(map[string]*models.Metadata),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[WARN] cache: cannot read %s, starting empty: %v", s.path, err)
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[WARN] cache: %s is corrupted, starting empty: %v", s.path, err)
		return
	}

	skipped := 0
	for key, blob := range raw {
		var meta models.Metadata
		if err := json.Unmarshal(blob, &meta); err != nil {
			log.Printf("[WARN] cache: skipping malformed entry %s: %v", key, err)
			skipped++
			continue
		}
		s.entries[key] = &meta
	}
	if skipped > 0 {
		log.Printf("[INFO] cache: loaded %d entries, skipped %d malformed", len(s.entries), skipped)
	}
}

// Normalize lower-cases and trims a query or path and folds diacritics, so
// that cosmetic variations of the same string produce the same key.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		return folded
	}
	return s
}

// QueryKey derives the cache key for a search query.
func QueryKey(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}

// PathKey derives the cache key for a file path.
func PathKey(path string) string {
	sum := sha256.Sum256([]byte(pathKeyPrefix + Normalize(path)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached metadata for key, or nil when absent. The caller
// receives a copy and may mutate it freely.
func (s *Store) Get(key string) *models.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key].Clone()
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Save stores metadata under key and schedules a debounced flush. When an
// existing entry carries a thumbnail and the new value does not, the old
// thumbnail is preserved rather than silently dropped.
func (s *Store) Save(key string, meta *models.Metadata) {
	if meta == nil {
		return
	}
	stored := meta.Clone()

	s.mu.Lock()
	if prev, ok := s.entries[key]; ok && stored.Thumbnail == "" && prev.Thumbnail != "" {
		stored.Thumbnail = prev.Thumbnail
	}
	s.entries[key] = stored
	s.dirty = true
	s.scheduleFlushLocked()
	s.mu.Unlock()
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes all entries and deletes the backing file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = make(map[string]*models.Metadata)
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// Flush forces any pending write to disk immediately.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	s.dirty = false
	s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		// The batch is still pending; a later Flush must retry it.
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close flushes pending writes. Call at shutdown.
func (s *Store) Close() error {
	return s.Flush()
}

// scheduleFlushLocked arms the single pending flush timer, or pushes it out
// when one is already armed. Caller holds s.mu.
func (s *Store) scheduleFlushLocked() {
	if s.timer != nil {
		s.timer.Reset(s.flushDelay)
		return
	}
	s.timer = time.AfterFunc(s.flushDelay, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		if err := s.Flush(); err != nil {
			log.Printf("[ERROR] cache: flush failed: %v", err)
		}
	})
}

// writeFileAtomic replaces path with data via a temp file and rename, so a
// crash mid-write never corrupts already-flushed entries.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
