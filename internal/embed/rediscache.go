package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turbopuffer/turbogrep/internal/chunk"
)

const redisCacheTTL = 30 * 24 * time.Hour

// RedisEmbedder is the distributed counterpart to CachedEmbedder: it
// shares one embedding cache across every turbogrep process indexing
// the same project, keyed the same way (path + chunk hash + kind).
type RedisEmbedder struct {
	inner     Embedder
	client    *redis.Client
	keyPrefix string
}

var _ Embedder = (*RedisEmbedder)(nil)

func NewRedisEmbedder(inner Embedder, addr, keyPrefix string) *RedisEmbedder {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if keyPrefix == "" {
		keyPrefix = "turbogrep:embed:"
	}
	return &RedisEmbedder{inner: inner, client: client, keyPrefix: keyPrefix}
}

func (r *RedisEmbedder) cacheKey(ch chunk.Chunk, kind Kind) string {
	h := sha256.New()
	_, _ = h.Write([]byte(ch.Path))
	_, _ = h.Write([]byte{0})
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], ch.ChunkHash)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	return r.keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (r *RedisEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind Kind) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, nil
	}

	out := make([]chunk.Chunk, len(chunks))
	var missIdx []int
	var missChunks []chunk.Chunk

	for i, ch := range chunks {
		vec, err := r.get(ctx, r.cacheKey(ch, kind))
		if err == nil {
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

	result, err := r.inner.Embed(ctx, missChunks, kind)
	if err != nil {
		return Result{}, err
	}

	for j, idx := range missIdx {
		embedded := result.Chunks[j]
		_ = r.set(ctx, r.cacheKey(missChunks[j], kind), embedded.Vector)
		out[idx] = embedded
	}

	return Result{Chunks: out, TotalTokens: result.TotalTokens}, nil
}

func (r *RedisEmbedder) get(ctx context.Context, key string) ([]float32, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt cache entry for %s", key)
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return vec, nil
}

func (r *RedisEmbedder) set(ctx context.Context, key string, vec []float32) error {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return r.client.Set(ctx, key, buf, redisCacheTTL).Err()
}

func (r *RedisEmbedder) Concurrency() int  { return r.inner.Concurrency() }
func (r *RedisEmbedder) MaxBatchSize() int { return r.inner.MaxBatchSize() }

func (r *RedisEmbedder) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return r.inner.Ping(ctx)
}

func (r *RedisEmbedder) Close() error {
	return r.client.Close()
}
