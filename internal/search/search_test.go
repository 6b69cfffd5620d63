package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbopuffer/turbogrep/internal/chunk"
	"github.com/turbopuffer/turbogrep/internal/embed"
	"github.com/turbopuffer/turbogrep/internal/remoteindex"
)

func TestChunksToRipgrepFormat_PlainMode(t *testing.T) {
	content := "fn main() {\n    println!(\"Hello!\");\n}"
	chunks := []chunk.Chunk{{
		ID: 1, Path: "/project/src/main.rs", StartLine: 10, EndLine: 15, Content: &content,
	}}

	got := chunksToRipgrepFormat(chunks, "/project", false)
	assert.Equal(t, "src/main.rs:10:fn main() {", got)
}

func TestChunksToRipgrepFormat_ScoresMode(t *testing.T) {
	content := "x"
	dist := 0.1234567
	chunks := []chunk.Chunk{{Path: "/p/a.go", StartLine: 3, Content: &content, Distance: &dist}}

	got := chunksToRipgrepFormat(chunks, "/p", true)
	assert.Equal(t, "a.go:3:0.1235:x", got)
}

func TestChunksToRipgrepFormat_ScoresModeNoDistance(t *testing.T) {
	content := "x"
	chunks := []chunk.Chunk{{Path: "/p/a.go", StartLine: 3, Content: &content}}

	got := chunksToRipgrepFormat(chunks, "/p", true)
	assert.Equal(t, "a.go:3:n/a:x", got)
}

func TestChunksToRipgrepFormat_NoContent(t *testing.T) {
	chunks := []chunk.Chunk{{Path: "/p/a.go", StartLine: 3}}
	got := chunksToRipgrepFormat(chunks, "/p", false)
	assert.Equal(t, "a.go:3:[no content]", got)
}

func TestLoadChunkContent_MissingFileLeavesContentNil(t *testing.T) {
	c := chunk.Chunk{Path: "/nonexistent/path/x.go", StartLine: 1, EndLine: 1}
	loadChunkContent(&c)
	assert.Nil(t, c.Content)
}

func TestLoadChunkContent_ReadsRequestedLines(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	c := chunk.Chunk{Path: file, StartLine: 2, EndLine: 3}
	loadChunkContent(&c)
	require.NotNil(t, c.Content)
	assert.Equal(t, "two\nthree", *c.Content)
}

type fakeEmbedder struct {
	vector []float32
}

func (f *fakeEmbedder) Concurrency() int                      { return 1 }
func (f *fakeEmbedder) MaxBatchSize() int                     { return 10 }
func (f *fakeEmbedder) Ping(ctx context.Context) error        { return nil }
func (f *fakeEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind embed.Kind) (embed.Result, error) {
	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		c.Vector = f.vector
		out[i] = c
	}
	return embed.Result{Chunks: out}, nil
}

func TestSearch_EmptyQueryReturnsTypedError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	o := &Orchestrator{Embedder: &fakeEmbedder{}}
	_, err := o.Search(context.Background(), Options{Query: "   ", Directory: dir})
	require.Error(t, err)
}

func TestSearch_SemanticQueryHydratesAndFormats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a\n\nfunc A() {}\n"), 0o644))

	type row struct {
		ID        uint64  `json:"id"`
		Path      string  `json:"path"`
		StartLine uint32  `json:"start_line"`
		EndLine   uint32  `json:"end_line"`
		Dist      float64 `json:"$dist"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			Rows []row `json:"rows"`
		}{Rows: []row{{ID: 1, Path: file, StartLine: 3, EndLine: 3, Dist: 0.5}}})
	}))
	defer server.Close()

	client := remoteindex.NewWithBaseURL("test", server.URL, nil)
	o := &Orchestrator{Embedder: &fakeEmbedder{vector: []float32{0.1, 0.2}}, Client: client}

	out, err := o.Search(context.Background(), Options{Query: "find A", Directory: dir, MaxCount: 5})
	require.NoError(t, err)
	assert.Contains(t, out, "a.go:3:func A() {}")
}

func TestSearch_NoEmbeddingReturnsTypedError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	o := &Orchestrator{Embedder: &fakeEmbedder{vector: nil}}
	_, err := o.Search(context.Background(), Options{Query: "q", Directory: dir})
	require.Error(t, err)
}
