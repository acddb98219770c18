// file: internal/matcher/matcher_test.go
// version: 2.0.0
// guid: 2a3b4c5d-6e7f-8a9b-0c1d-2e3f4a5b6c7d

package matcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobook-curator/audiobook-curator/internal/cache"
	"github.com/audiobook-curator/audiobook-curator/internal/metadata"
	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// fakeProvider is a scripted metadata.Provider for tests.
type fakeProvider struct {
	name    string
	results []models.Metadata
	err     error

	mu      sync.Mutex
	queries []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(ctx context.Context, query string) ([]models.Metadata, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.results, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()
	s := cache.New(filepath.Join(t.TempDir(), "cache.json"), time.Hour)
	t.Cleanup(func() { s.Close() })
	return s
}

func testFile(name, path string) *models.AudiobookFile {
	return &models.AudiobookFile{
		Path:      path,
		Name:      name,
		Extension: ".mp3",
	}
}

func hobbitRecord() models.Metadata {
	return models.Metadata{
		Title:         "The Hobbit",
		Authors:       []string{"J.R.R. Tolkien"},
		Description:   "An adventure.",
		PublishedDate: "1937",
		Provider:      "fake",
	}
}

func TestBuildQueryPrefersCompleteTags(t *testing.T) {
	m := New(newTestCache(t), nil, nil)

	file := testFile("01 Track", "/lib/01 Track.mp3")
	file.FileTags = &models.FileTags{Title: "The Hobbit", Author: "J.R.R. Tolkien"}
	assert.Equal(t, "The Hobbit J.R.R. Tolkien", m.BuildQuery(file))
}

func TestBuildQueryFallsBackToFilename(t *testing.T) {
	m := New(newTestCache(t), nil, nil)

	file := testFile("Tolkien - The Hobbit", "/lib/Tolkien - The Hobbit.mp3")
	assert.Equal(t, "The Hobbit Tolkien", m.BuildQuery(file))

	// Incomplete tags are ignored.
	file.FileTags = &models.FileTags{Title: "The Hobbit"}
	assert.Equal(t, "The Hobbit Tolkien", m.BuildQuery(file))

	plain := testFile("Dune", "/lib/Dune.mp3")
	assert.Equal(t, "Dune", m.BuildQuery(plain))
}

func TestMatchProviderPriority(t *testing.T) {
	first := &fakeProvider{name: "first", results: []models.Metadata{hobbitRecord()}}
	second := &fakeProvider{name: "second", results: []models.Metadata{{Title: "Wrong Book"}}}
	m := New(newTestCache(t), []metadata.Provider{first, second}, nil)

	got, err := m.Match(context.Background(), testFile("The Hobbit", "/lib/The Hobbit.mp3"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "The Hobbit", got.Title)
	assert.Zero(t, second.calls(), "second provider should not be consulted")
}

func TestMatchFallsThroughEmptyAndFailedProviders(t *testing.T) {
	failing := &fakeProvider{name: "failing", err: errors.New("rate limited")}
	empty := &fakeProvider{name: "empty"}
	good := &fakeProvider{name: "good", results: []models.Metadata{hobbitRecord()}}
	m := New(newTestCache(t), []metadata.Provider{failing, empty, good}, nil)

	got, err := m.Match(context.Background(), testFile("The Hobbit", "/lib/The Hobbit.mp3"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, good.calls())
}

func TestMatchNoCandidatesIsNotAnError(t *testing.T) {
	empty := &fakeProvider{name: "empty"}
	m := New(newTestCache(t), []metadata.Provider{empty}, nil)

	got, err := m.Match(context.Background(), testFile("Unknown", "/lib/Unknown.mp3"))
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchProviderErrorsAreNoMatch(t *testing.T) {
	failing := &fakeProvider{name: "failing", err: errors.New("unreachable")}
	m := New(newTestCache(t), []metadata.Provider{failing}, nil)

	// A provider timeout or failure counts as zero candidates from that
	// provider; exhausting the chain is a plain no-match.
	got, err := m.Match(context.Background(), testFile("Unknown", "/lib/Unknown.mp3"))
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchCachesByPathAndQuery(t *testing.T) {
	provider := &fakeProvider{name: "fake", results: []models.Metadata{hobbitRecord()}}
	store := newTestCache(t)
	m := New(store, []metadata.Provider{provider}, nil)

	file := testFile("The Hobbit", "/lib/The Hobbit.mp3")
	_, err := m.Match(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls())

	// Same file again: served from the path key.
	_, err = m.Match(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls())

	// Different path, same derived query: served from the query key.
	other := testFile("The Hobbit", "/other/The Hobbit.mp3")
	_, err = m.Match(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls())

	assert.True(t, store.Has(cache.PathKey("/lib/The Hobbit.mp3")))
	assert.True(t, store.Has(cache.QueryKey(m.BuildQuery(file))))
}

func TestMatchCollection(t *testing.T) {
	provider := &fakeProvider{name: "fake", results: []models.Metadata{hobbitRecord()}}
	m := New(newTestCache(t), []metadata.Provider{provider}, nil)

	coll := &models.AudiobookCollection{
		Title: "The Hobbit",
		Files: []*models.AudiobookFile{
			testFile("The Hobbit - Part 1", "/lib/The Hobbit - Part 1.mp3"),
			{
				Path: "/lib/The Hobbit - Part 2.mp3", Name: "The Hobbit - Part 2", Extension: ".mp3",
				FileTags: &models.FileTags{Author: "J.R.R. Tolkien"},
			},
		},
	}

	got, err := m.MatchCollection(context.Background(), coll)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 1, provider.calls())
	provider.mu.Lock()
	assert.Equal(t, "The Hobbit J.R.R. Tolkien", provider.queries[0])
	provider.mu.Unlock()
}

func TestMatchAll(t *testing.T) {
	provider := &fakeProvider{name: "fake", results: []models.Metadata{hobbitRecord()}}
	m := New(newTestCache(t), []metadata.Provider{provider}, nil)

	files := []*models.AudiobookFile{
		testFile("Book A", "/lib/Book A.mp3"),
		testFile("Book B", "/lib/Book B.mp3"),
		testFile("Book C", "/lib/Book C.mp3"),
	}

	var progressCalls atomic.Int32
	m.MatchAll(context.Background(), files, 2, func(done, total int) {
		progressCalls.Add(1)
		assert.Equal(t, 3, total)
	})

	assert.Equal(t, int32(3), progressCalls.Load())
	for _, f := range files {
		require.NotNil(t, f.Metadata, f.Path)
		assert.Equal(t, "The Hobbit", f.Metadata.Title)
	}
}

func TestMatchAllPreservesUserFields(t *testing.T) {
	provider := &fakeProvider{name: "fake", results: []models.Metadata{hobbitRecord()}}
	m := New(newTestCache(t), []metadata.Provider{provider}, nil)

	// Favorited and annotated before any provider match; its provider
	// fields are incomplete so a batch match will still pick it up.
	file := testFile("The Hobbit", "/lib/The Hobbit.mp3")
	file.Metadata = &models.Metadata{
		Title: "The Hobbit",
		User: models.UserFields{
			Favorite: true,
			Rating:   5,
			Notes:    "loved it",
			Tags:     []string{"fantasy"},
		},
	}

	m.MatchAll(context.Background(), []*models.AudiobookFile{file}, 1, nil)

	require.NotNil(t, file.Metadata)
	assert.Equal(t, []string{"J.R.R. Tolkien"}, file.Metadata.Authors)
	assert.Equal(t, "1937", file.Metadata.PublishedDate)
	assert.True(t, file.Metadata.User.Favorite)
	assert.Equal(t, 5.0, file.Metadata.User.Rating)
	assert.Equal(t, "loved it", file.Metadata.User.Notes)
	assert.Equal(t, []string{"fantasy"}, file.Metadata.User.Tags)
}
