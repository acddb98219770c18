// file: internal/metadata/extract.go
// version: 2.0.0
// guid: 9d0e1f2a-3b4c-5d6e-7f8a-9b0c1d2e3f4a

package metadata

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// ExtractFileTags reads the embedded tags of an audio file (ID3, MP4 atoms,
// Vorbis comments). A file without readable tags is not an error: the
// result is (nil, nil) and the caller falls back to filename heuristics.
func ExtractFileTags(path string) (*models.FileTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, nil
	}

	tags := &models.FileTags{
		Title:  strings.TrimSpace(m.Title()),
		Author: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
		Year:   m.Year(),
	}

	// Extended fields live in format-specific raw frames. Availability
	// varies by tagging tool; this is best-effort.
	raw := m.Raw()
	tags.Language = rawString(raw, "TLAN", "©lng")
	tags.Publisher = rawString(raw, "TPUB", "©pub")
	tags.Narrator = rawString(raw, "TXXX:NARRATOR", "TXXX:Narrator", "NARRATOR", "Narrator", "©nrt")
	tags.Series = rawString(raw, "TGID", "GRP1", "MVNM")

	// Some rippers put "Series - Title" in the album field.
	if tags.Series == "" && strings.Contains(tags.Album, " - ") {
		tags.Series = strings.TrimSpace(strings.SplitN(tags.Album, " - ", 2)[0])
	}

	if *tags == (models.FileTags{}) {
		return nil, nil
	}
	return tags, nil
}

// rawString returns the first non-empty string value among the given raw
// tag keys.
func rawString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s, sok := v.(string); sok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
