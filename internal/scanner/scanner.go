// file: internal/scanner/scanner.go
// version: 2.0.0
// guid: 3b4c5d6e-7f8a-9b0c-1d2e-3f4a5b6c7d8e

package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/audiobook-curator/audiobook-curator/internal/metadata"
	"github.com/audiobook-curator/audiobook-curator/internal/models"
	"github.com/audiobook-curator/audiobook-curator/internal/parser"
)

// DefaultExtensions are the audio formats recognized by the scanner.
var DefaultExtensions = []string{".mp3", ".m4a", ".m4b", ".aac", ".ogg", ".opus", ".flac", ".wma"}

// Result is the outcome of a directory scan: standalone single-file works
// plus multi-file works grouped into collections.
type Result struct {
	Files       []*models.AudiobookFile
	Collections []*models.AudiobookCollection
}

// Scanner discovers audiobook files under a directory tree and groups files
// that appear to be parts of the same work.
type Scanner struct {
	extensions map[string]bool

	// extractTags is swappable for tests; defaults to reading embedded tags.
	extractTags func(path string) (*models.FileTags, error)
	entropy     *ulid.MonotonicEntropy
}

// New creates a Scanner recognizing the given extensions, or
// DefaultExtensions when none are given.
func New(extensions ...string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	extMap := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}
	return &Scanner{
		extensions:  extMap,
		extractTags: metadata.ExtractFileTags,
		entropy:     ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// IsAudioFile reports whether path has a recognized audio extension.
func (s *Scanner) IsAudioFile(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// Scan walks root and returns the discovered works. Unreadable
// subdirectories and files are logged and skipped; only a root that cannot
// be read at all is an error. Grouping is per-directory: files in different
// directories never join the same collection.
func (s *Scanner) Scan(ctx context.Context, root string, recursive bool) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot scan %s: not a directory", root)
	}

	byDir := make(map[string][]*models.AudiobookFile)
	var dirOrder []string

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if path == root {
				return err
			}
			log.Printf("[WARN] scanner: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.IsAudioFile(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			log.Printf("[WARN] scanner: cannot stat %s: %v", path, err)
			return nil
		}

		file := &models.AudiobookFile{
			Path:      path,
			Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Extension: strings.ToLower(filepath.Ext(path)),
			Size:      fi.Size(),
			ModTime:   fi.ModTime(),
		}
		if tags, err := s.extractTags(path); err != nil {
			log.Printf("[DEBUG] scanner: cannot read tags from %s: %v", path, err)
		} else {
			file.FileTags = tags
		}

		dir := filepath.Dir(path)
		if _, seen := byDir[dir]; !seen {
			dirOrder = append(dirOrder, dir)
		}
		byDir[dir] = append(byDir[dir], file)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	result := &Result{}
	for _, dir := range dirOrder {
		s.groupDirectory(dir, byDir[dir], result)
	}
	log.Printf("[INFO] scanner: %s yielded %d standalone files, %d collections",
		root, len(result.Files), len(result.Collections))
	return result, nil
}

// groupDirectory partitions one directory's files into works. Files whose
// titles reduce to the same string after stripping ordinal tokens are parts
// of one work.
func (s *Scanner) groupDirectory(dir string, files []*models.AudiobookFile, result *Result) {
	groups := make(map[string][]*models.AudiobookFile)
	titles := make(map[string]string)
	var order []string

	for _, file := range files {
		res := parser.Parse(file.Name+file.Extension, file.Path)
		work := parser.StripOrdinalTokens(res.Title)
		if work == "" {
			work = res.Title
		}
		key := strings.ToLower(work)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			titles[key] = work
		}
		groups[key] = append(groups[key], file)
	}

	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			result.Files = append(result.Files, members[0])
			continue
		}
		sortByOrdinal(members)
		result.Collections = append(result.Collections, &models.AudiobookCollection{
			ID:        ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String(),
			Title:     titles[key],
			SourceDir: dir,
			Files:     members,
		})
	}
}

// sortByOrdinal orders collection members by detected ordinal so that part
// 10 sorts after part 2. Files without an ordinal sort after numbered ones;
// filename order breaks ties.
func sortByOrdinal(files []*models.AudiobookFile) {
	sort.SliceStable(files, func(i, j int) bool {
		oi, iok := parser.DetectOrdinal(files[i].Name + files[i].Extension)
		oj, jok := parser.DetectOrdinal(files[j].Name + files[j].Extension)
		switch {
		case iok && jok && oi != oj:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return files[i].Name < files[j].Name
		}
	})
}
