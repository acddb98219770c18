// file: internal/playlist/playlist.go
// version: 2.0.0
// guid: 2a3b4c5d-6e7f-8a9b-0c1d-2e3f4a5b6c7d

package playlist

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// Item is one playlist entry.
type Item struct {
	Title    string
	Author   string
	FilePath string
}

// ItemsFromCollection flattens a multi-file work into playlist entries in
// listening order.
func ItemsFromCollection(coll *models.AudiobookCollection) []Item {
	author := ""
	if coll.Metadata != nil && len(coll.Metadata.Authors) > 0 {
		author = strings.Join(coll.Metadata.Authors, ", ")
	}
	items := make([]Item, 0, len(coll.Files))
	for _, f := range coll.Files {
		items = append(items, Item{
			Title:    f.Name,
			Author:   author,
			FilePath: f.Path,
		})
	}
	return items
}

// WriteM3U writes an extended M3U playlist to dir and returns its path.
func WriteM3U(dir, name string, items []Item) (string, error) {
	path := filepath.Join(dir, SanitizeName(name)+".m3u")

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, item := range items {
		label := item.Title
		if item.Author != "" {
			label = item.Author + " - " + item.Title
		}
		fmt.Fprintf(&b, "#EXTINF:-1,%s\n%s\n", label, item.FilePath)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write playlist: %w", err)
	}
	return path, nil
}

// iTunes library XML shapes.
type itunesTrack struct {
	TrackID  int    `plist:"Track ID"`
	Name     string `plist:"Name"`
	Artist   string `plist:"Artist,omitempty"`
	Kind     string `plist:"Kind"`
	Location string `plist:"Location"`
}

type itunesPlaylistItem struct {
	TrackID int `plist:"Track ID"`
}

type itunesPlaylist struct {
	Name       string               `plist:"Name"`
	PlaylistID int                  `plist:"Playlist ID"`
	Items      []itunesPlaylistItem `plist:"Playlist Items"`
}

type itunesDocument struct {
	MajorVersion int                    `plist:"Major Version"`
	MinorVersion int                    `plist:"Minor Version"`
	Tracks       map[string]itunesTrack `plist:"Tracks"`
	Playlists    []itunesPlaylist       `plist:"Playlists"`
}

// WriteITunesXML writes an iTunes-importable XML playlist to dir and
// returns its path.
func WriteITunesXML(dir, name string, items []Item) (string, error) {
	path := filepath.Join(dir, SanitizeName(name)+".xml")

	doc := itunesDocument{
		MajorVersion: 1,
		MinorVersion: 1,
		Tracks:       make(map[string]itunesTrack, len(items)),
	}
	pl := itunesPlaylist{Name: name, PlaylistID: 1}
	for i, item := range items {
		id := i + 1
		doc.Tracks[fmt.Sprintf("%d", id)] = itunesTrack{
			TrackID:  id,
			Name:     item.Title,
			Artist:   item.Author,
			Kind:     "Audiobook",
			Location: fileURL(item.FilePath),
		}
		pl.Items = append(pl.Items, itunesPlaylistItem{TrackID: id})
	}
	doc.Playlists = []itunesPlaylist{pl}

	data, err := plist.MarshalIndent(doc, plist.XMLFormat, "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal playlist: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write playlist: %w", err)
	}
	return path, nil
}

// SanitizeName makes a playlist name safe to use as a filename.
func SanitizeName(name string) string {
	for _, bad := range []string{"/", "\\", ":"} {
		name = strings.ReplaceAll(name, bad, "-")
	}
	return strings.TrimSpace(name)
}

// fileURL renders a local path as the file:// URL iTunes expects.
func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
