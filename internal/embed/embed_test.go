package embed

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbopuffer/turbogrep/internal/chunk"
)

func encodeFloat32Base64(vec []float32) string {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func textChunk(content string) chunk.Chunk {
	return chunk.Chunk{Path: "a.go", ChunkHash: 1, Content: &content}
}

func TestVoyageEmbedder_EmbedDecodesBase64Vectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "document", req.InputType)

		resp := voyageResponse{}
		resp.Data = make([]struct {
			Embedding string `json:"embedding"`
		}, len(req.Input))
		for i := range req.Input {
			resp.Data[i].Embedding = encodeFloat32Base64([]float32{0.1, 0.2, 0.3})
		}
		resp.Usage.TotalTokens = 42
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	v := &VoyageEmbedder{apiKey: "test"}
	v.client = server.Client()

	prev := voyageEndpoint
	voyageEndpoint = server.URL
	defer func() { voyageEndpoint = prev }()

	result, err := v.Embed(context.Background(), []chunk.Chunk{textChunk("hello")}, KindDocument)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.InDelta(t, 0.1, result.Chunks[0].Vector[0], 1e-6)
	assert.Equal(t, 42, result.TotalTokens)
}

func TestVoyageEmbedder_RetriesOnTokenLimitBySplittingBatch(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if n == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Max allowed tokens per submitted batch exceeded"}`))
			return
		}

		resp := voyageResponse{}
		resp.Data = make([]struct {
			Embedding string `json:"embedding"`
		}, len(req.Input))
		for i := range req.Input {
			resp.Data[i].Embedding = encodeFloat32Base64([]float32{1, 2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	v := &VoyageEmbedder{apiKey: "test"}
	v.client = server.Client()
	prev := voyageEndpoint
	voyageEndpoint = server.URL
	defer func() { voyageEndpoint = prev }()

	chunks := []chunk.Chunk{textChunk("a"), textChunk("b")}
	result, err := v.Embed(context.Background(), chunks, KindDocument)
	require.NoError(t, err)
	assert.Len(t, result.Chunks, 2)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestVoyageEmbedder_SingleChunkBatchCannotSplitFurther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"max allowed tokens per submitted batch"}`))
	}))
	defer server.Close()

	v := &VoyageEmbedder{apiKey: "test"}
	v.client = server.Client()
	prev := voyageEndpoint
	voyageEndpoint = server.URL
	defer func() { voyageEndpoint = prev }()

	_, err := v.Embed(context.Background(), []chunk.Chunk{textChunk("solo")}, KindDocument)
	require.Error(t, err)
}

func TestNewVoyageEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewVoyageEmbedder("")
	require.Error(t, err)
}

// fakeEmbedder is a minimal in-memory Embedder for stream/cache tests.
type fakeEmbedder struct {
	calls       int32
	concurrency int
	maxBatch    int
	failOnce    bool
}

func (f *fakeEmbedder) Concurrency() int  { return f.concurrency }
func (f *fakeEmbedder) MaxBatchSize() int { return f.maxBatch }
func (f *fakeEmbedder) Ping(ctx context.Context) error { return nil }

func (f *fakeEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind Kind) (Result, error) {
	atomic.AddInt32(&f.calls, 1)
	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		c.Vector = []float32{float32(c.ChunkHash)}
		out[i] = c
	}
	return Result{Chunks: out}, nil
}

func TestEmbedStream_CoversAllChunks(t *testing.T) {
	f := &fakeEmbedder{concurrency: 2, maxBatch: 3}
	var chunks []chunk.Chunk
	for i := 0; i < 10; i++ {
		content := fmt.Sprintf("chunk %d", i)
		chunks = append(chunks, chunk.Chunk{Path: "f.go", ChunkHash: uint64(i), Content: &content})
	}

	out := EmbedStream(context.Background(), f, chunks, KindDocument)

	seen := map[uint64]bool{}
	for item := range out {
		require.NoError(t, item.Err)
		seen[item.Chunk.ChunkHash] = true
	}
	assert.Len(t, seen, 10)
}

func TestCachedEmbedder_CachesByChunkHashAndKind(t *testing.T) {
	f := &fakeEmbedder{concurrency: 1, maxBatch: 10}
	c := NewCachedEmbedder(f, 0)

	ch := textChunk("same content")
	ch.ChunkHash = 99

	_, err := c.Embed(context.Background(), []chunk.Chunk{ch}, KindDocument)
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []chunk.Chunk{ch}, KindDocument)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestNewLocalEmbedder_MissingModelFileErrors(t *testing.T) {
	_, err := NewLocalEmbedder(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.onnx")
}

func TestNewLocalEmbedder_MissingTokenizerErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("not a real model"), 0o644))

	_, err := NewLocalEmbedder(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokenizer.json")
}

func TestRedisEmbedder_CacheKeyIsDeterministicPerPathHashAndKind(t *testing.T) {
	r := NewRedisEmbedder(nil, "localhost:0", "")

	a := r.cacheKey(chunk.Chunk{Path: "a.go", ChunkHash: 1}, KindDocument)
	b := r.cacheKey(chunk.Chunk{Path: "a.go", ChunkHash: 1}, KindDocument)
	assert.Equal(t, a, b)
}

func TestRedisEmbedder_CacheKeyDiffersByKind(t *testing.T) {
	r := NewRedisEmbedder(nil, "localhost:0", "")

	doc := r.cacheKey(chunk.Chunk{Path: "a.go", ChunkHash: 1}, KindDocument)
	query := r.cacheKey(chunk.Chunk{Path: "a.go", ChunkHash: 1}, KindQuery)
	assert.NotEqual(t, doc, query)
}

func TestRedisEmbedder_CacheKeyDiffersByPathOrHash(t *testing.T) {
	r := NewRedisEmbedder(nil, "localhost:0", "")

	base := r.cacheKey(chunk.Chunk{Path: "a.go", ChunkHash: 1}, KindDocument)
	diffPath := r.cacheKey(chunk.Chunk{Path: "b.go", ChunkHash: 1}, KindDocument)
	diffHash := r.cacheKey(chunk.Chunk{Path: "a.go", ChunkHash: 2}, KindDocument)
	assert.NotEqual(t, base, diffPath)
	assert.NotEqual(t, base, diffHash)
}

func TestRedisEmbedder_DefaultKeyPrefix(t *testing.T) {
	r := NewRedisEmbedder(nil, "localhost:0", "")
	assert.Contains(t, r.cacheKey(chunk.Chunk{Path: "a.go"}, KindDocument), "turbogrep:embed:")
}

func TestCachedEmbedder_DifferentKindIsDifferentCacheEntry(t *testing.T) {
	f := &fakeEmbedder{concurrency: 1, maxBatch: 10}
	c := NewCachedEmbedder(f, 0)

	ch := textChunk("q")
	ch.ChunkHash = 7

	_, err := c.Embed(context.Background(), []chunk.Chunk{ch}, KindQuery)
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []chunk.Chunk{ch}, KindDocument)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
}
