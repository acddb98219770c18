// file: internal/library/library.go
// version: 1.0.0
// guid: 6e7f8a9b-0c1d-2e3f-4a5b-6c7d8e9f0a1b

package library

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/audiobook-curator/audiobook-curator/internal/events"
	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// Library is the persistent model of the audiobook collection. Every
// mutation persists the full state to disk before publishing a change
// event, so subscribers always observe durable state.
type Library struct {
	path string
	hub  *events.Hub

	mu          sync.RWMutex
	files       map[string]*models.AudiobookFile       // keyed by path
	collections map[string]*models.AudiobookCollection // keyed by ID
}

// document is the on-disk shape of the library.
type document struct {
	Files       []json.RawMessage `json:"files"`
	Collections []json.RawMessage `json:"collections"`
}

// New creates a Library persisted at path. hub may be nil when change
// notifications are not needed.
func New(path string, hub *events.Hub) *Library {
	return &Library{
		path:        path,
		hub:         hub,
		files:       make(map[string]*models.AudiobookFile),
		collections: make(map[string]*models.AudiobookCollection),
	}
}

// Load reads the persisted library. A missing file is an empty library,
// and so is a file that is not valid JSON: corruption is logged and the
// library rebuilt going forward, never a fatal startup error. Entries that
// fail to decode are skipped individually.
func (l *Library) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read library: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[WARN] library: %s is corrupted, starting empty: %v", l.path, err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	skipped := 0
	for _, blob := range doc.Files {
		var f models.AudiobookFile
		if err := json.Unmarshal(blob, &f); err != nil || f.Path == "" {
			skipped++
			continue
		}
		l.files[f.Path] = &f
	}
	for _, blob := range doc.Collections {
		var c models.AudiobookCollection
		if err := json.Unmarshal(blob, &c); err != nil || c.ID == "" {
			skipped++
			continue
		}
		l.collections[c.ID] = &c
	}
	if skipped > 0 {
		log.Printf("[WARN] library: skipped %d malformed entries while loading %s", skipped, l.path)
	}
	log.Printf("[INFO] library: loaded %d files, %d collections", len(l.files), len(l.collections))
	return nil
}

// persistLocked writes the full library state to disk. Caller holds l.mu.
func (l *Library) persistLocked() error {
	doc := struct {
		Files       []*models.AudiobookFile       `json:"files"`
		Collections []*models.AudiobookCollection `json:"collections"`
	}{}
	for _, f := range l.files {
		doc.Files = append(doc.Files, f)
	}
	for _, c := range l.collections {
		doc.Collections = append(doc.Collections, c)
	}
	sort.Slice(doc.Files, func(i, j int) bool { return doc.Files[i].Path < doc.Files[j].Path })
	sort.Slice(doc.Collections, func(i, j int) bool { return doc.Collections[i].ID < doc.Collections[j].ID })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal library: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create library dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace library file: %w", err)
	}
	return nil
}

func (l *Library) publish(t events.Type, data map[string]interface{}) {
	if l.hub != nil {
		l.hub.Publish(t, data)
	}
}

// ApplyScan replaces everything previously known under root with the given
// scan output, then persists and notifies.
func (l *Library) ApplyScan(root string, files []*models.AudiobookFile, collections []*models.AudiobookCollection) error {
	l.mu.Lock()
	l.removeUnderLocked(root)
	for _, f := range files {
		l.files[f.Path] = f
	}
	for _, c := range collections {
		l.collections[c.ID] = c
	}
	err := l.persistLocked()
	nFiles, nColls := len(l.files), len(l.collections)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.publish(events.TypeLibraryUpdated, map[string]interface{}{
		"root":        root,
		"files":       nFiles,
		"collections": nColls,
	})
	return nil
}

// removeUnderLocked drops files and collections rooted under dir.
func (l *Library) removeUnderLocked(dir string) {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	for path := range l.files {
		if path == dir || strings.HasPrefix(path, prefix) {
			delete(l.files, path)
		}
	}
	for id, c := range l.collections {
		if c.SourceDir == dir || strings.HasPrefix(c.SourceDir+string(filepath.Separator), prefix) {
			delete(l.collections, id)
		}
	}
}

// Files returns all standalone files sorted by path.
func (l *Library) Files() []*models.AudiobookFile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.AudiobookFile, 0, len(l.files))
	for _, f := range l.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Collections returns all multi-file works sorted by title.
func (l *Library) Collections() []*models.AudiobookCollection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.AudiobookCollection, 0, len(l.collections))
	for _, c := range l.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// GetFile returns the file at path, or nil.
func (l *Library) GetFile(path string) *models.AudiobookFile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.files[path]
}

// GetCollection returns the collection with the given ID, or nil.
func (l *Library) GetCollection(id string) *models.AudiobookCollection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collections[id]
}

// RemoveFile drops one file from the library, then persists and notifies.
// Removing an unknown path is a no-op.
func (l *Library) RemoveFile(path string) error {
	l.mu.Lock()
	if _, ok := l.files[path]; !ok {
		l.mu.Unlock()
		return nil
	}
	delete(l.files, path)
	err := l.persistLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.publish(events.TypeFileRemoved, map[string]interface{}{"path": path})
	return nil
}

// ApplyFileMetadata merges a provider record into the file at path.
// Provider-owned fields are replaced wholesale; user-owned fields survive.
func (l *Library) ApplyFileMetadata(path string, meta *models.Metadata) error {
	if meta == nil {
		return fmt.Errorf("nil metadata for %s", path)
	}
	l.mu.Lock()
	f, ok := l.files[path]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("unknown file: %s", path)
	}
	if f.Metadata == nil {
		f.Metadata = meta.Clone()
	} else {
		f.Metadata.ApplyProvider(meta)
	}
	err := l.persistLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.publish(events.TypeMetadataUpdated, map[string]interface{}{"path": path, "provider": meta.Provider})
	return nil
}

// ApplyCollectionMetadata merges a provider record into a collection.
func (l *Library) ApplyCollectionMetadata(id string, meta *models.Metadata) error {
	if meta == nil {
		return fmt.Errorf("nil metadata for collection %s", id)
	}
	l.mu.Lock()
	c, ok := l.collections[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("unknown collection: %s", id)
	}
	if c.Metadata == nil {
		c.Metadata = meta.Clone()
	} else {
		c.Metadata.ApplyProvider(meta)
	}
	err := l.persistLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.publish(events.TypeMetadataUpdated, map[string]interface{}{"collection": id, "provider": meta.Provider})
	return nil
}

// UpdateUserFields mutates the user-owned metadata of the file at path. A
// file never matched online still accepts user fields: an empty provider
// record is created to hold them.
func (l *Library) UpdateUserFields(path string, mutate func(*models.UserFields)) error {
	l.mu.Lock()
	f, ok := l.files[path]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("unknown file: %s", path)
	}
	if f.Metadata == nil {
		f.Metadata = &models.Metadata{}
	}
	mutate(&f.Metadata.User)
	err := l.persistLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.publish(events.TypeMetadataUpdated, map[string]interface{}{"path": path, "user": true})
	return nil
}

// NeedsMetadata returns files whose metadata is absent or incomplete.
func (l *Library) NeedsMetadata() []*models.AudiobookFile {
	var out []*models.AudiobookFile
	for _, f := range l.Files() {
		if !f.Metadata.Complete() {
			out = append(out, f)
		}
	}
	return out
}

// CollectionsNeedingMetadata returns collections whose metadata is absent
// or incomplete.
func (l *Library) CollectionsNeedingMetadata() []*models.AudiobookCollection {
	var out []*models.AudiobookCollection
	for _, c := range l.Collections() {
		if !c.Metadata.Complete() {
			out = append(out, c)
		}
	}
	return out
}

// Search fuzzy-matches query against titles, authors and filenames.
func (l *Library) Search(query string) []*models.AudiobookFile {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	var out []*models.AudiobookFile
	for _, f := range l.Files() {
		if matchesQuery(query, f) {
			out = append(out, f)
		}
	}
	return out
}

func matchesQuery(query string, f *models.AudiobookFile) bool {
	if fuzzy.MatchNormalizedFold(query, f.Name) {
		return true
	}
	if f.Metadata != nil {
		if fuzzy.MatchNormalizedFold(query, f.Metadata.Title) {
			return true
		}
		for _, a := range f.Metadata.Authors {
			if fuzzy.MatchNormalizedFold(query, a) {
				return true
			}
		}
	}
	if f.FileTags != nil {
		if fuzzy.MatchNormalizedFold(query, f.FileTags.Title) ||
			fuzzy.MatchNormalizedFold(query, f.FileTags.Author) {
			return true
		}
	}
	return false
}

// Stats summarizes the library.
type Stats struct {
	Files       int `json:"files"`
	Collections int `json:"collections"`
	Matched     int `json:"matched"`
	Complete    int `json:"complete"`
}

// Stats returns counts over the current library state.
func (l *Library) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Stats{Files: len(l.files), Collections: len(l.collections)}
	for _, f := range l.files {
		if f.Metadata != nil {
			s.Matched++
		}
		if f.Metadata.Complete() {
			s.Complete++
		}
	}
	return s
}
