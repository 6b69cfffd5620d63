package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/turbopuffer/turbogrep/internal/chunk"
)

const defaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache keyed by
// path + chunk hash + kind, so re-syncing a project whose chunks haven't
// changed never re-embeds them.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(ch chunk.Chunk, kind Kind) string {
	h := sha256.New()
	_, _ = h.Write([]byte(ch.Path))
	_, _ = h.Write([]byte{0})
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(ch.ChunkHash >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind Kind) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, nil
	}

	out := make([]chunk.Chunk, len(chunks))
	var missIdx []int
	var missChunks []chunk.Chunk

	for i, ch := range chunks {
		key := c.cacheKey(ch, kind)
		if vec, ok := c.cache.Get(key); ok {
			ch.Vector = vec
			out[i] = ch
			continue
		}
		missIdx = append(missIdx, i)
		missChunks = append(missChunks, ch)
	}

	if len(missChunks) == 0 {
		return Result{Chunks: out}, nil
	}

	result, err := c.inner.Embed(ctx, missChunks, kind)
	if err != nil {
		return Result{}, err
	}
	if len(result.Chunks) != len(missChunks) {
		return Result{}, err
	}

	for j, idx := range missIdx {
		embedded := result.Chunks[j]
		c.cache.Add(c.cacheKey(missChunks[j], kind), embedded.Vector)
		out[idx] = embedded
	}

	return Result{Chunks: out, TotalTokens: result.TotalTokens}, nil
}

func (c *CachedEmbedder) Concurrency() int  { return c.inner.Concurrency() }
func (c *CachedEmbedder) MaxBatchSize() int { return c.inner.MaxBatchSize() }
func (c *CachedEmbedder) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }
