package embed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/turbopuffer/turbogrep/internal/turboerr"
)

// Provider identifies which embedding backend to construct.
type Provider string

const (
	ProviderVoyage Provider = "voyage"
	ProviderLocal  Provider = "local"
)

// New constructs the embedder for provider, wrapped in a cache per
// TG_EMBED_CACHE_BACKEND (lru default, redis, or off).
func New(ctx context.Context, provider Provider, modelDir string) (Embedder, error) {
	var inner Embedder
	var err error

	switch provider {
	case ProviderLocal:
		dir := modelDir
		if dir == "" {
			dir = defaultLocalModelDir()
		}
		inner, err = NewLocalEmbedder(dir)
	case ProviderVoyage, "":
		apiKey := os.Getenv("VOYAGE_API_KEY")
		if apiKey == "" {
			return nil, turboerr.MissingAPIKey("VOYAGE_API_KEY")
		}
		inner, err = NewVoyageEmbedder(apiKey)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(os.Getenv("TG_EMBED_CACHE_BACKEND")) {
	case "off":
		return inner, nil
	case "redis":
		addr := os.Getenv("TG_REDIS_ADDR")
		if addr == "" {
			return nil, fmt.Errorf("TG_EMBED_CACHE_BACKEND=redis requires TG_REDIS_ADDR")
		}
		return NewRedisEmbedder(inner, addr, ""), nil
	default:
		return NewCachedEmbedder(inner, 0), nil
	}
}

func defaultLocalModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".turbogrep", "models")
	}
	return filepath.Join(home, ".turbogrep", "models")
}
