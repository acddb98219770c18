// file: internal/matcher/matcher.go
// version: 2.0.0
// guid: 1f2a3b4c-5d6e-7f8a-9b0c-1d2e3f4a5b6c

package matcher

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/audiobook-curator/audiobook-curator/internal/ai"
	"github.com/audiobook-curator/audiobook-curator/internal/cache"
	"github.com/audiobook-curator/audiobook-curator/internal/metadata"
	"github.com/audiobook-curator/audiobook-curator/internal/metrics"
	"github.com/audiobook-curator/audiobook-curator/internal/models"
	"github.com/audiobook-curator/audiobook-curator/internal/parser"
)

// Matcher resolves audiobook files to online metadata records. Lookups go
// cache-first (path key, then query key), then walk the provider chain in
// priority order. A file no provider can identify is not an error: Match
// returns (nil, nil) and the file stays unmatched.
type Matcher struct {
	cache     *cache.Store
	providers []metadata.Provider
	aiParser  *ai.Parser

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// New creates a Matcher. Providers are consulted in slice order; aiParser
// may be nil or disabled.
func New(store *cache.Store, providers []metadata.Provider, aiParser *ai.Parser) *Matcher {
	return &Matcher{
		cache:     store,
		providers: providers,
		aiParser:  aiParser,
		inflight:  make(map[string]*sync.Mutex),
	}
}

// BuildQuery derives the search query for a file. Embedded tags win when
// they carry both title and author; otherwise filename heuristics, then the
// raw cleaned filename.
func (m *Matcher) BuildQuery(file *models.AudiobookFile) string {
	if file.FileTags.Complete() {
		return strings.TrimSpace(file.FileTags.Title + " " + file.FileTags.Author)
	}

	res := parser.Parse(file.Name+file.Extension, file.Path)
	if res.Title != "" && res.Author != "" {
		return strings.TrimSpace(res.Title + " " + res.Author)
	}
	if res.Title != "" {
		return res.Title
	}
	return parser.CleanDisplayTitle(file.Name)
}

// Match resolves one file. The result is written to the cache under both
// the query key and the file's path key, so later runs skip the network
// even when the query heuristics change.
func (m *Matcher) Match(ctx context.Context, file *models.AudiobookFile) (*models.Metadata, error) {
	pathKey := cache.PathKey(file.Path)
	if meta := m.cache.Get(pathKey); meta != nil {
		metrics.IncMatchLookup("hit")
		return meta, nil
	}

	query := m.BuildQuery(file)
	if query == "" {
		return nil, nil
	}
	meta, err := m.resolve(ctx, query)
	if err != nil || meta == nil {
		return meta, err
	}
	m.cache.Save(pathKey, meta)
	return meta, nil
}

// MatchCollection resolves a multi-file work using its grouped title and,
// when present, the author of its first file's tags.
func (m *Matcher) MatchCollection(ctx context.Context, coll *models.AudiobookCollection) (*models.Metadata, error) {
	query := coll.Title
	for _, f := range coll.Files {
		if f.FileTags != nil && f.FileTags.Author != "" {
			query = strings.TrimSpace(query + " " + f.FileTags.Author)
			break
		}
	}
	if query == "" {
		return nil, nil
	}
	return m.resolve(ctx, query)
}

// resolve looks up a query in the cache, then asks providers in order. Only
// one resolve per query key runs at a time; concurrent callers for the same
// query wait and then hit the cache.
func (m *Matcher) resolve(ctx context.Context, query string) (*models.Metadata, error) {
	queryKey := cache.QueryKey(query)

	lock := m.keyLock(queryKey)
	lock.Lock()
	defer lock.Unlock()

	if m.cache.Has(queryKey) {
		metrics.IncMatchLookup("hit")
		return m.cache.Get(queryKey), nil
	}

	query = m.refineQuery(ctx, query)

	var lastErr error
	for _, p := range m.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates, err := p.Search(ctx, query)
		if err != nil {
			log.Printf("[WARN] matcher: %s search failed for %q: %v", p.Name(), query, err)
			metrics.IncProviderRequest(p.Name(), "error")
			lastErr = err
			continue
		}
		metrics.IncProviderRequest(p.Name(), "ok")
		if len(candidates) == 0 {
			log.Printf("[DEBUG] matcher: %s returned no candidates for %q", p.Name(), query)
			continue
		}
		top := candidates[0].Clone()
		m.cache.Save(queryKey, top)
		metrics.IncMatchLookup("miss")
		return top, nil
	}

	if lastErr != nil {
		log.Printf("[WARN] matcher: all providers failed for %q: %v", query, lastErr)
		metrics.IncMatchLookup("error")
	} else {
		metrics.IncMatchLookup("none")
	}
	// Provider exhaustion, whether by error or by empty answers, is a
	// normal no-match outcome, not an error.
	return nil, nil
}

// refineQuery asks the AI parser for an author when the query looks
// title-only. Failures are logged and the original query kept.
func (m *Matcher) refineQuery(ctx context.Context, query string) string {
	if m.aiParser == nil || !m.aiParser.IsEnabled() {
		return query
	}
	parsed, err := m.aiParser.Parse(ctx, query)
	if err != nil {
		log.Printf("[DEBUG] matcher: AI parse failed for %q: %v", query, err)
		return query
	}
	if parsed.Title == "" || parsed.Author == "" {
		return query
	}
	refined := strings.TrimSpace(parsed.Title + " " + parsed.Author)
	log.Printf("[DEBUG] matcher: AI refined %q to %q", query, refined)
	return refined
}

func (m *Matcher) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.inflight[key]
	if !ok {
		lock = &sync.Mutex{}
		m.inflight[key] = lock
	}
	return lock
}

// Progress reports completion of a batch match.
type Progress func(done, total int)

// MatchAll resolves a batch of files with bounded concurrency. Files with
// no match are left untouched; matched files get their provider fields
// updated in place, preserving any user-owned fields already present.
func (m *Matcher) MatchAll(ctx context.Context, files []*models.AudiobookFile, concurrency int, progress Progress) {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var doneMu sync.Mutex
	done := 0

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f *models.AudiobookFile) {
			defer wg.Done()
			defer func() { <-sem }()

			meta, err := m.Match(ctx, f)
			switch {
			case err != nil:
				log.Printf("[WARN] matcher: match failed for %s: %v", f.Path, err)
			case meta == nil:
			case f.Metadata != nil:
				f.Metadata.ApplyProvider(meta)
			default:
				f.Metadata = meta
			}

			doneMu.Lock()
			done++
			d := done
			doneMu.Unlock()
			if progress != nil {
				progress(d, len(files))
			}
		}(file)
	}
	wg.Wait()
}
