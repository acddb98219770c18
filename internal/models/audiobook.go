// file: internal/models/audiobook.go
// version: 1.0.0
// guid: 4f2a8c1d-9b3e-4a7f-8c2d-5e6f7a8b9c0d

package models

import "time"

// AudiobookFile is a single physical audio file in the library.
// Path is unique within a library snapshot.
type AudiobookFile struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"` // filename without extension
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`

	// Metadata resolved from an online provider, nil until matched.
	Metadata *Metadata `json:"metadata,omitempty"`
	// FileTags holds metadata read from the file's embedded tags, nil when
	// the file carries no readable tags.
	FileTags *FileTags `json:"file_tags,omitempty"`
}

// AudiobookCollection is a logical work composed of two or more files
// believed to be parts of the same book. Member files are kept sorted by
// detected ordinal, falling back to filename order.
type AudiobookCollection struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	SourceDir string           `json:"source_dir"`
	Files     []*AudiobookFile `json:"files"`
	Metadata  *Metadata        `json:"metadata,omitempty"`
}

// FileTags is metadata extracted from a file's embedded tags (ID3, MP4
// atoms, Vorbis comments). Best-effort; any field may be empty.
type FileTags struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Album     string `json:"album,omitempty"`
	Narrator  string `json:"narrator,omitempty"`
	Series    string `json:"series,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Year      int    `json:"year,omitempty"`
	Language  string `json:"language,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// Complete reports whether the embedded tags are good enough to build a
// search query from without falling back to filename heuristics.
func (t *FileTags) Complete() bool {
	return t != nil && t.Title != "" && t.Author != ""
}

// Bookmark is a user-created position marker within an audiobook.
type Bookmark struct {
	Position  float64   `json:"position"` // seconds from start
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFields are metadata attributes owned by the user. They survive any
// provider refresh: ApplyProvider never touches them.
type UserFields struct {
	Rating           float64    `json:"rating,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Favorite         bool       `json:"favorite,omitempty"`
	Bookmarks        []Bookmark `json:"bookmarks,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	PlaybackPosition float64    `json:"playback_position,omitempty"`
}

// Metadata is a bibliographic record for a work. Provider-owned fields are
// replaced wholesale on a successful match; User is carried over untouched.
type Metadata struct {
	ID             string   `json:"id,omitempty"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Description    string   `json:"description,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	PublishedDate  string   `json:"published_date,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	AverageRating  float64  `json:"average_rating,omitempty"`
	RatingsCount   int      `json:"ratings_count,omitempty"`
	Thumbnail      string   `json:"thumbnail,omitempty"`
	Language       string   `json:"language,omitempty"`
	Series         string   `json:"series,omitempty"`
	SeriesPosition float64  `json:"series_position,omitempty"`
	Provider       string   `json:"provider,omitempty"`

	User UserFields `json:"user"`
}

// ApplyProvider replaces all provider-owned fields of m with those from src
// while preserving m's user-owned fields.
func (m *Metadata) ApplyProvider(src *Metadata) {
	user := m.User
	*m = *src
	m.User = user
}

// Complete reports whether the record satisfies the required-field
// completeness predicate: non-empty title, at least one author, and at
// least one of description, series, or published date.
func (m *Metadata) Complete() bool {
	if m == nil || m.Title == "" || len(m.Authors) == 0 {
		return false
	}
	return m.Description != "" || m.Series != "" || m.PublishedDate != ""
}

// Clone returns a deep copy of the metadata record.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	out.Authors = append([]string(nil), m.Authors...)
	out.Categories = append([]string(nil), m.Categories...)
	out.User.Tags = append([]string(nil), m.User.Tags...)
	out.User.Bookmarks = append([]Bookmark(nil), m.User.Bookmarks...)
	return &out
}
