// file: internal/metadata/googlebooks.go
// version: 2.0.0
// guid: b2c3d4e5-f6a7-8b9c-0d1e-f2a3b4c5d6e7

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// GoogleBooksClient fetches metadata from the Google Books Volume API.
// Basic searches work without an API key (free tier, ~1000 req/day); an API
// key raises the quota and is appended when present.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter

	mu     sync.RWMutex
	apiKey string
}

// NewGoogleBooksClient creates a new Google Books API client.
func NewGoogleBooksClient(apiKey string) *GoogleBooksClient {
	baseURL := os.Getenv("GOOGLE_BOOKS_BASE_URL")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/books/v1"
	}
	c := NewGoogleBooksClientWithBaseURL(baseURL)
	c.apiKey = apiKey
	return c
}

// NewGoogleBooksClientWithBaseURL creates a client with a custom base URL (for testing).
func NewGoogleBooksClientWithBaseURL(baseURL string) *GoogleBooksClient {
	return &GoogleBooksClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		// Stay well under the anonymous-tier quota.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Name returns the display name for this metadata source.
func (c *GoogleBooksClient) Name() string {
	return "Google Books"
}

// UpdateAPIKey swaps the API key used for subsequent requests.
func (c *GoogleBooksClient) UpdateAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

type googleBooksResponse struct {
	TotalItems int              `json:"totalItems"`
	Items      []googleBooksVol `json:"items"`
}

type googleBooksVol struct {
	ID         string                `json:"id"`
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksVolumeInfo struct {
	Title         string                 `json:"title"`
	Authors       []string               `json:"authors"`
	Publisher     string                 `json:"publisher"`
	PublishedDate string                 `json:"publishedDate"`
	Description   string                 `json:"description"`
	Categories    []string               `json:"categories"`
	AverageRating float64                `json:"averageRating"`
	RatingsCount  int                    `json:"ratingsCount"`
	ImageLinks    *googleBooksImageLinks `json:"imageLinks"`
	Language      string                 `json:"language"`
}

type googleBooksImageLinks struct {
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

// Search queries the volumes endpoint with a free-text query and maps the
// top results to metadata records.
func (c *GoogleBooksClient) Search(ctx context.Context, query string) ([]models.Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", "5")
	c.mu.RLock()
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	c.mu.RUnlock()

	searchURL := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Google Books request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search Google Books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google Books API returned status %d", resp.StatusCode)
	}

	var gbResp googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&gbResp); err != nil {
		return nil, fmt.Errorf("failed to decode Google Books response: %w", err)
	}

	results := make([]models.Metadata, 0, len(gbResp.Items))
	for _, item := range gbResp.Items {
		vi := item.VolumeInfo
		if vi.Title == "" {
			continue
		}
		meta := models.Metadata{
			ID:            item.ID,
			Title:         vi.Title,
			Authors:       vi.Authors,
			Description:   vi.Description,
			Publisher:     vi.Publisher,
			PublishedDate: vi.PublishedDate,
			Categories:    vi.Categories,
			AverageRating: vi.AverageRating,
			RatingsCount:  vi.RatingsCount,
			Language:      vi.Language,
			Provider:      c.Name(),
		}
		if vi.ImageLinks != nil {
			if vi.ImageLinks.Thumbnail != "" {
				meta.Thumbnail = vi.ImageLinks.Thumbnail
			} else {
				meta.Thumbnail = vi.ImageLinks.SmallThumbnail
			}
		}
		results = append(results, meta)
	}
	return results, nil
}
