// file: internal/playlist/playlist_test.go
// version: 2.0.0
// guid: 3b4c5d6e-7f8a-9b0c-1d2e-3f4a5b6c7d8e

package playlist

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

func sampleItems() []Item {
	return []Item{
		{Title: "The Hobbit - Part 1", Author: "J.R.R. Tolkien", FilePath: "/books/The Hobbit - Part 1.mp3"},
		{Title: "The Hobbit - Part 2", Author: "J.R.R. Tolkien", FilePath: "/books/The Hobbit - Part 2.mp3"},
	}
}

func TestWriteM3U(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteM3U(dir, "The Hobbit", sampleItems())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "The Hobbit.m3u"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, "#EXTINF:-1,J.R.R. Tolkien - The Hobbit - Part 1", lines[1])
	assert.Equal(t, "/books/The Hobbit - Part 1.mp3", lines[2])
	assert.Equal(t, "/books/The Hobbit - Part 2.mp3", lines[4])
}

func TestWriteITunesXMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteITunesXML(dir, "The Hobbit", sampleItems())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc itunesDocument
	_, err = plist.Unmarshal(data, &doc)
	require.NoError(t, err)

	require.Len(t, doc.Tracks, 2)
	require.Len(t, doc.Playlists, 1)
	assert.Equal(t, "The Hobbit", doc.Playlists[0].Name)
	require.Len(t, doc.Playlists[0].Items, 2)

	first := doc.Tracks["1"]
	assert.Equal(t, "The Hobbit - Part 1", first.Name)
	assert.Equal(t, "J.R.R. Tolkien", first.Artist)
	assert.Equal(t, "Audiobook", first.Kind)
	assert.Equal(t, "file:///books/The%20Hobbit%20-%20Part%201.mp3", first.Location)
}

func TestItemsFromCollection(t *testing.T) {
	coll := &models.AudiobookCollection{
		Title: "The Hobbit",
		Files: []*models.AudiobookFile{
			{Path: "/b/p1.mp3", Name: "p1"},
			{Path: "/b/p2.mp3", Name: "p2"},
		},
		Metadata: &models.Metadata{Authors: []string{"J.R.R. Tolkien"}},
	}

	items := ItemsFromCollection(coll)
	require.Len(t, items, 2)
	assert.Equal(t, "J.R.R. Tolkien", items[0].Author)
	assert.Equal(t, "/b/p1.mp3", items[0].FilePath)

	// No metadata: entries still come out, authorless.
	coll.Metadata = nil
	items = ItemsFromCollection(coll)
	assert.Empty(t, items[0].Author)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a-b-c-d", SanitizeName("a/b\\c:d"))
	assert.Equal(t, "plain", SanitizeName(" plain "))
}
