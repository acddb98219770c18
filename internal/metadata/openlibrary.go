// file: internal/metadata/openlibrary.go
// version: 2.0.0
// guid: 1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// OpenLibraryClient fetches metadata from the Open Library search API.
// No credentials are required.
type OpenLibraryClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewOpenLibraryClient creates a new Open Library API client.
func NewOpenLibraryClient() *OpenLibraryClient {
	baseURL := os.Getenv("OPENLIBRARY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return NewOpenLibraryClientWithBaseURL(baseURL)
}

// NewOpenLibraryClientWithBaseURL creates a client with a custom base URL.
func NewOpenLibraryClientWithBaseURL(baseURL string) *OpenLibraryClient {
	return &OpenLibraryClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		// Open Library asks clients to keep it to ~1 req/s.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name returns the display name for this metadata source.
func (c *OpenLibraryClient) Name() string {
	return "Open Library"
}

type openLibrarySearchResponse struct {
	NumFound int                 `json:"numFound"`
	Docs     []openLibrarySearch `json:"docs"`
}

type openLibrarySearch struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Publisher        []string `json:"publisher"`
	Subject          []string `json:"subject"`
	Language         []string `json:"language"`
	CoverI           int      `json:"cover_i"`
	RatingsAverage   float64  `json:"ratings_average"`
	RatingsCount     int      `json:"ratings_count"`
}

// Search queries the search endpoint with a free-text query and maps the
// top results to metadata records.
func (c *OpenLibraryClient) Search(ctx context.Context, query string) ([]models.Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "5")
	searchURL := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Open Library request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search Open Library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Open Library API returned status %d", resp.StatusCode)
	}

	var olResp openLibrarySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&olResp); err != nil {
		return nil, fmt.Errorf("failed to decode Open Library response: %w", err)
	}

	results := make([]models.Metadata, 0, len(olResp.Docs))
	for _, doc := range olResp.Docs {
		if doc.Title == "" {
			continue
		}
		meta := models.Metadata{
			ID:            doc.Key,
			Title:         doc.Title,
			Authors:       doc.AuthorName,
			AverageRating: doc.RatingsAverage,
			RatingsCount:  doc.RatingsCount,
			Provider:      c.Name(),
		}
		if doc.FirstPublishYear > 0 {
			meta.PublishedDate = fmt.Sprintf("%d", doc.FirstPublishYear)
		}
		if len(doc.Publisher) > 0 {
			meta.Publisher = doc.Publisher[0]
		}
		if len(doc.Subject) > 0 {
			n := len(doc.Subject)
			if n > 5 {
				n = 5
			}
			meta.Categories = doc.Subject[:n]
		}
		if len(doc.Language) > 0 {
			meta.Language = doc.Language[0]
		}
		if doc.CoverI > 0 {
			meta.Thumbnail = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
		}
		results = append(results, meta)
	}
	return results, nil
}
