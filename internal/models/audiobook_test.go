// file: internal/models/audiobook_test.go
// version: 2.0.0
// guid: e5f6a7b8-9c0d-1e2f-3a4b-5c6d7e8f9a0b

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyProviderPreservesUserFields(t *testing.T) {
	m := &Metadata{
		Title:   "Old Title",
		Authors: []string{"Old Author"},
		User: UserFields{
			Rating:   4.5,
			Tags:     []string{"favorite-series"},
			Favorite: true,
			Notes:    "re-listen in winter",
		},
	}

	m.ApplyProvider(&Metadata{
		Title:         "The Hobbit",
		Authors:       []string{"J.R.R. Tolkien"},
		Description:   "There and back again.",
		PublishedDate: "1937",
		Provider:      "googlebooks",
	})

	assert.Equal(t, "The Hobbit", m.Title)
	assert.Equal(t, []string{"J.R.R. Tolkien"}, m.Authors)
	assert.Equal(t, "googlebooks", m.Provider)

	assert.Equal(t, 4.5, m.User.Rating)
	assert.Equal(t, []string{"favorite-series"}, m.User.Tags)
	assert.True(t, m.User.Favorite)
	assert.Equal(t, "re-listen in winter", m.User.Notes)
}

func TestMetadataComplete(t *testing.T) {
	tests := []struct {
		name string
		meta *Metadata
		want bool
	}{
		{"nil", nil, false},
		{"empty", &Metadata{}, false},
		{"title only", &Metadata{Title: "Dune"}, false},
		{"title and author only", &Metadata{Title: "Dune", Authors: []string{"Frank Herbert"}}, false},
		{"with description", &Metadata{Title: "Dune", Authors: []string{"Frank Herbert"}, Description: "Spice."}, true},
		{"with series", &Metadata{Title: "Dune", Authors: []string{"Frank Herbert"}, Series: "Dune Chronicles"}, true},
		{"with published date", &Metadata{Title: "Dune", Authors: []string{"Frank Herbert"}, PublishedDate: "1965"}, true},
		{"no authors", &Metadata{Title: "Dune", Description: "Spice."}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meta.Complete())
		})
	}
}

func TestMetadataClone(t *testing.T) {
	assert.Nil(t, (*Metadata)(nil).Clone())

	orig := &Metadata{
		Title:      "Dune",
		Authors:    []string{"Frank Herbert"},
		Categories: []string{"Fiction"},
		User: UserFields{
			Tags:      []string{"sci-fi"},
			Bookmarks: []Bookmark{{Position: 120.5, Title: "ch 2"}},
		},
	}
	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Authors[0] = "changed"
	clone.Categories[0] = "changed"
	clone.User.Tags[0] = "changed"
	clone.User.Bookmarks[0].Position = 0

	assert.Equal(t, "Frank Herbert", orig.Authors[0])
	assert.Equal(t, "Fiction", orig.Categories[0])
	assert.Equal(t, "sci-fi", orig.User.Tags[0])
	assert.Equal(t, 120.5, orig.User.Bookmarks[0].Position)
}

func TestFileTagsComplete(t *testing.T) {
	assert.False(t, (*FileTags)(nil).Complete())
	assert.False(t, (&FileTags{Title: "Dune"}).Complete())
	assert.False(t, (&FileTags{Author: "Frank Herbert"}).Complete())
	assert.True(t, (&FileTags{Title: "Dune", Author: "Frank Herbert"}).Complete())
}

func TestMetadataIgnoresUnknownJSONFields(t *testing.T) {
	blob := []byte(`{"title":"Dune","authors":["Frank Herbert"],"isbn":"0441013597","extra":{"a":1}}`)

	var m Metadata
	require.NoError(t, json.Unmarshal(blob, &m))
	assert.Equal(t, "Dune", m.Title)
	assert.Equal(t, []string{"Frank Herbert"}, m.Authors)
}
