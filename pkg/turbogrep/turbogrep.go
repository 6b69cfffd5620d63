package turbogrep

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/turbopuffer/turbogrep/internal/chunk"
	"github.com/turbopuffer/turbogrep/internal/embed"
	"github.com/turbopuffer/turbogrep/internal/metrics"
	"github.com/turbopuffer/turbogrep/internal/project"
	"github.com/turbopuffer/turbogrep/internal/remoteindex"
	"github.com/turbopuffer/turbogrep/internal/search"
	tgsync "github.com/turbopuffer/turbogrep/internal/sync"
	"github.com/turbopuffer/turbogrep/internal/walker"
)

// Chunk is the unit turbogrep indexes and returns from search: a
// contiguous, syntactically-complete span of a source file.
type Chunk = chunk.Chunk

// Options configures a single Search or Speculate call.
type Options = search.Options

// Config configures a new Client.
type Config struct {
	APIKey               string // turbopuffer API key; required
	Region               string // turbopuffer region, e.g. "aws-us-west-2"
	Provider             string // "voyage" (default) or "local"
	ModelDir             string // local ONNX model directory, only used when Provider is "local"
	EmbeddingConcurrency int    // overrides the embedder's default concurrency during Sync; 0 keeps the default
}

// Client is turbogrep's embeddable entry point: one Client per codebase
// being indexed and searched.
type Client struct {
	orchestrator         *search.Orchestrator
	embeddingConcurrency int
}

// NewClient wires an embedder, remote index client, directory walker and
// synchronizer into a ready-to-use Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = string(embed.ProviderVoyage)
	}

	embedder, err := embed.New(ctx, embed.Provider(provider), cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("constructing embedder: %w", err)
	}

	// Each Client gets its own registry: embedding this package in a
	// host process must not collide with that process's own metrics or
	// with another Client's.
	m := metrics.NewWithRegistry("turbogrep", prometheus.NewRegistry())
	client := remoteindex.New(cfg.APIKey, cfg.Region, m)

	w, err := walker.New()
	if err != nil {
		return nil, fmt.Errorf("constructing walker: %w", err)
	}

	synchronizer := tgsync.New(w, embedder, client, m)

	return &Client{
		orchestrator: &search.Orchestrator{
			Embedder:      embedder,
			Client:        client,
			Synchronizer:  synchronizer,
			Metrics:       m,
			EmbedProvider: provider,
		},
		embeddingConcurrency: cfg.EmbeddingConcurrency,
	}, nil
}

// Sync builds or refreshes the remote index for directory: it walks and
// chunks the codebase, diffs against the remote namespace, embeds and
// uploads what changed, and deletes what was removed.
func (c *Client) Sync(ctx context.Context, directory string) error {
	namespace, root, err := project.NamespaceAndDir(directory, c.orchestrator.EmbedProvider)
	if err != nil {
		return fmt.Errorf("resolving namespace: %w", err)
	}
	diff, err := c.orchestrator.Synchronizer.Sync(ctx, root, namespace)
	if err != nil {
		return fmt.Errorf("diffing: %w", err)
	}
	_, err = c.orchestrator.Synchronizer.ApplyDiff(ctx, namespace, diff, c.embeddingConcurrency)
	return err
}

// Search runs one semantic or regex query against the already-synced
// index and returns ripgrep-compatible formatted output.
func (c *Client) Search(ctx context.Context, opts Options) (string, error) {
	return c.orchestrator.Search(ctx, opts)
}

// Speculate runs Search concurrently with a resync of directory and
// returns the search results. When the resync changes the index before
// the search finishes, or the namespace does not exist yet, the search
// is run again against the updated index.
func (c *Client) Speculate(ctx context.Context, opts Options, directory string) (string, error) {
	namespace, root, err := project.NamespaceAndDir(directory, c.orchestrator.EmbedProvider)
	if err != nil {
		return "", fmt.Errorf("resolving namespace: %w", err)
	}
	return c.orchestrator.Speculate(ctx, opts, root, namespace)
}
