// file: internal/metadata/source.go
// version: 2.0.0
// guid: a1b2c3d4-e5f6-7a8b-9c0d-e1f2a3b4c5d6

package metadata

import (
	"context"

	"github.com/audiobook-curator/audiobook-curator/internal/models"
)

// Provider is a pluggable online metadata source. Search returns candidate
// records ordered by the provider's own relevance; an empty slice with a nil
// error means the provider answered but found nothing.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.Metadata, error)
}

// KeyedProvider is implemented by providers whose credentials can be rotated
// at runtime without rebuilding the provider chain.
type KeyedProvider interface {
	Provider
	UpdateAPIKey(key string)
}
