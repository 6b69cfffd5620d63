package sync

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
	"github.com/turbopuffer/turbogrep/internal/walker"
)

func TestChunkDiff_UploadsLocalOnlyDeletesRemoteOnly(t *testing.T) {
	local := []chunk.Chunk{{ID: 1, Path: "a.go"}, {ID: 2, Path: "b.go"}}
	remote := []chunk.Chunk{{ID: 2, Path: "b.go"}, {ID: 3, Path: "c.go"}}

	diff := ChunkDiff(local, remote)

	require.Len(t, diff.Upload, 1)
	assert.Equal(t, uint64(1), diff.Upload[0].ID)
	require.Len(t, diff.Delete, 1)
	assert.Equal(t, uint64(3), diff.Delete[0].ID)
}

func TestChunkDiff_IdenticalSetsProduceEmptyDiff(t *testing.T) {
	set := []chunk.Chunk{{ID: 1}, {ID: 2}}
	diff := ChunkDiff(set, set)
	assert.Empty(t, diff.Upload)
	assert.Empty(t, diff.Delete)
}

// fakeEmbedder embeds every chunk with a trivial vector derived from its
// chunk hash, used to exercise ApplyDiff without a real provider.
type fakeEmbedder struct {
	failPaths map[string]bool
}

func (f *fakeEmbedder) Concurrency() int  { return 2 }
func (f *fakeEmbedder) MaxBatchSize() int { return 10 }
func (f *fakeEmbedder) Ping(ctx context.Context) error { return nil }
func (f *fakeEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind embed.Kind) (embed.Result, error) {
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if f.failPaths[c.Path] {
			continue
		}
		c.Vector = []float32{float32(c.ChunkHash)}
		out = append(out, c)
	}
	return embed.Result{Chunks: out}, nil
}

func TestApplyDiff_ShortCircuitsWhenDiffIsEmpty(t *testing.T) {
	s := &Synchronizer{embedder: &fakeEmbedder{}, client: remoteindex.NewWithBaseURL("k", "http://unused.invalid", nil)}
	applied, err := s.ApplyDiff(context.Background(), "ns", Diff{}, 0)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyDiff_WritesUploadsAndDeletes(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := remoteindex.NewWithBaseURL("test", server.URL, nil)
	s := &Synchronizer{embedder: &fakeEmbedder{}, client: client}

	content := "func a() {}"
	full := []chunk.Chunk{{ID: 1, Path: "a.go", ChunkHash: 7, Content: &content}}
	diff := Diff{
		Upload: full,
		Delete: []chunk.Chunk{{ID: 99, Path: "stale.go"}},
	}

	applied, err := s.ApplyDiff(context.Background(), "ns", diff, 0)
	require.NoError(t, err)
	assert.True(t, applied)

	rows, ok := captured["upsert_rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.NotNil(t, captured["delete_by_filter"])
}

func TestApplyDiff_SkipsChunksThatFailToEmbed(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := remoteindex.NewWithBaseURL("test", server.URL, nil)
	s := &Synchronizer{embedder: &fakeEmbedder{failPaths: map[string]bool{"bad.go": true}}, client: client}

	c1 := "ok"
	c2 := "bad"
	full := []chunk.Chunk{
		{ID: 1, Path: "ok.go", ChunkHash: 1, Content: &c1},
		{ID: 2, Path: "bad.go", ChunkHash: 2, Content: &c2},
	}
	diff := Diff{Upload: full}

	applied, err := s.ApplyDiff(context.Background(), "ns", diff, 0)
	require.NoError(t, err)
	assert.True(t, applied)

	rows, ok := captured["upsert_rows"].([]any)
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestSync_EmptyRemoteUploadsEveryLocalFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": []any{}})
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b\n\nfunc B() {}\n"), 0o644))

	w, err := walker.New()
	require.NoError(t, err)

	s := New(w, &fakeEmbedder{}, remoteindex.NewWithBaseURL("test", server.URL, nil), nil)

	diff, err := s.Sync(context.Background(), dir, "ns")
	require.NoError(t, err)
	assert.Len(t, diff.Upload, 2)
	assert.Empty(t, diff.Delete)
}

func TestSync_RemoteScanFailureTreatedAsEmptySet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "boom"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	w, err := walker.New()
	require.NoError(t, err)

	s := New(w, &fakeEmbedder{}, remoteindex.NewWithBaseURL("test", server.URL, nil), nil)

	diff, err := s.Sync(context.Background(), dir, "ns")
	require.NoError(t, err)
	assert.Len(t, diff.Upload, 1)
}

func TestDistinctPaths_Deduplicates(t *testing.T) {
	chunks := []chunk.Chunk{{Path: "a.go"}, {Path: "a.go"}, {Path: "b.go"}}
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, distinctPaths(chunks))
}
