// Package embed defines turbogrep's embedding contract and its
// implementations: a Voyage AI HTTP embedder, a local ONNX embedder, and
// an LRU caching decorator.
package embed

import (
	"context"

	"github.com/turbopuffer/turbogrep/internal/chunk"
)

// Kind distinguishes query embeddings (short, latency-sensitive) from
// document embeddings (bulk, throughput-sensitive) — the reference
// EmbeddingType distinction some providers price and batch differently.
type Kind string

const (
	KindQuery    Kind = "query"
	KindDocument Kind = "document"
)

// Result is the outcome of embedding a batch of chunks: the chunks with
// Vector populated, plus the provider's reported token usage.
type Result struct {
	Chunks      []chunk.Chunk
	TotalTokens int
}

// Embedder is the capability contract every embedding backend
// implements: batch embed,
// concurrency/batch-size limits the caller must respect, and a cheap
// readiness probe.
type Embedder interface {
	Embed(ctx context.Context, chunks []chunk.Chunk, kind Kind) (Result, error)
	Concurrency() int
	MaxBatchSize() int
	Ping(ctx context.Context) error
}

// concurrencyOverride wraps an Embedder so Concurrency() reports n
// instead of the wrapped embedder's own default — the knob the CLI's
// --embedding-concurrency flag exposes, letting a caller trade API load
// for throughput per invocation rather than globally at construction.
type concurrencyOverride struct {
	Embedder
	n int
}

func (c concurrencyOverride) Concurrency() int { return c.n }

// WithConcurrency returns e unchanged when n <= 0, otherwise an Embedder
// whose Concurrency() reports n.
func WithConcurrency(e Embedder, n int) Embedder {
	if n <= 0 {
		return e
	}
	return concurrencyOverride{Embedder: e, n: n}
}

// textFor returns the text an embedder should send for c: its content
// if present, else its path (mirrors the reference's fallback when a
// chunk carries no body, e.g. a hash-only metadata chunk should never
// reach an embedder, but defensive callers may still pass one through).
func textFor(c chunk.Chunk) string {
	if c.Content != nil {
		return *c.Content
	}
	return c.Path
}
