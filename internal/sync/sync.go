// Package sync implements turbogrep's incremental synchronizer: a pure
// set-difference over content-addressed chunk IDs between a local scan
// and the remote index, followed by an apply that embeds the new chunks
// as a stream and, once every chunk is embedded, writes them and the
// deletions to the remote index.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turbopuffer/turbogrep/internal/chunk"
	"github.com/turbopuffer/turbogrep/internal/embed"
	"github.com/turbopuffer/turbogrep/internal/metrics"
	"github.com/turbopuffer/turbogrep/internal/remoteindex"
	"github.com/turbopuffer/turbogrep/internal/walker"
)

// Diff is a pure set difference between a local and a remote chunk set,
// keyed entirely by ID — content-addressing means no other comparison
// is needed.
type Diff struct {
	Upload []chunk.Chunk // present locally, absent (by ID) remotely
	Delete []chunk.Chunk // present remotely, absent (by ID) locally
}

// ChunkDiff computes local minus remote and remote minus local, ported
// between a local scan and the remote namespace's chunk set.
func ChunkDiff(local, remote []chunk.Chunk) Diff {
	remoteByID := make(map[uint64]chunk.Chunk, len(remote))
	for _, c := range remote {
		remoteByID[c.ID] = c
	}
	localIDs := make(map[uint64]bool, len(local))
	for _, c := range local {
		localIDs[c.ID] = true
	}

	var diff Diff
	for _, c := range local {
		if _, ok := remoteByID[c.ID]; !ok {
			diff.Upload = append(diff.Upload, c)
		}
	}
	for _, c := range remote {
		if !localIDs[c.ID] {
			diff.Delete = append(diff.Delete, c)
		}
	}
	return diff
}

// Synchronizer drives a full sync pass: local chunk scan, remote full
// scan, diff, then embed+upload/delete.
type Synchronizer struct {
	walker   *walker.Walker
	embedder embed.Embedder
	client   *remoteindex.Client
	metrics  *metrics.Collector
}

func New(w *walker.Walker, embedder embed.Embedder, client *remoteindex.Client, m *metrics.Collector) *Synchronizer {
	return &Synchronizer{walker: w, embedder: embedder, client: client, metrics: m}
}

// ChunkFiles walks root producing every file's full, per-function chunk
// set via chunk.File. This is the local side of Sync's diff: a chunk's
// ID already folds in the file hash, the chunk's own content hash and
// its line range, so it only coincides with a remote chunk's ID when
// nothing about that function has changed. A file that fails to parse
// or whose language isn't chunkable is skipped, matching chunk_file's
// own error handling. Also exposed standalone for chunk-only runs that
// want to exercise the chunker without touching the remote index.
func (s *Synchronizer) ChunkFiles(ctx context.Context, root string) ([]chunk.Chunk, error) {
	var mu sync.Mutex
	var out []chunk.Chunk
	err := s.walker.Walk(ctx, walker.Options{Root: root, RespectGitignore: true}, func(ctx context.Context, f walker.File) error {
		info, statErr := fileInfoOf(f)
		if statErr != nil {
			return nil
		}
		fileChunks, chunkErr := chunk.File(ctx, info.content, f.Path, info.mtime, info.ctime)
		if chunkErr != nil || len(fileChunks) == 0 {
			return nil
		}
		mu.Lock()
		out = append(out, fileChunks...)
		mu.Unlock()
		return nil
	})
	return out, err
}

type fileContents struct {
	content []byte
	mtime   time.Time
	ctime   time.Time
}

// fileInfoOf is overridden in tests; production wiring reads content
// plus mtime/ctime from disk via os.ReadFile/os.Stat.
var fileInfoOf = defaultFileInfoOf

// Sync runs one full synchronization pass for root against namespace:
// local chunk scan and remote full scan run concurrently, a remote scan
// failure is tolerated (treated as an empty remote set, so everything
// re-uploads) rather than failing the whole sync.
func (s *Synchronizer) Sync(ctx context.Context, root, namespace string) (Diff, error) {
	requestID := uuid.NewString()
	log := slog.With(slog.String("request_id", requestID), slog.String("namespace", namespace))

	var local, remote []chunk.Chunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		local, err = s.ChunkFiles(gctx, root)
		return err
	})
	g.Go(func() error {
		fetched, err := s.client.AllChunks(gctx, namespace)
		if err != nil {
			log.Warn("remote scan failed, treating remote set as empty", slog.String("error", err.Error()))
			remote = nil
			return nil
		}
		remote = fetched
		return nil
	})

	if err := g.Wait(); err != nil {
		return Diff{}, err
	}

	diff := ChunkDiff(local, remote)
	log.Info("sync diff computed", slog.Int("upload", len(diff.Upload)), slog.Int("delete", len(diff.Delete)))
	return diff, nil
}

// ApplyDiff embeds diff.Upload's chunks (already carrying full content,
// straight out of the local chunk scan) and writes them alongside
// diff.Delete's stale paths, short-circuiting when there is nothing to
// do. embeddingConcurrency overrides the embedder's own concurrency
// limit for this call when positive; 0 uses the embedder's default.
func (s *Synchronizer) ApplyDiff(ctx context.Context, namespace string, diff Diff, embeddingConcurrency int) (bool, error) {
	if len(diff.Upload) == 0 && len(diff.Delete) == 0 {
		return false, nil
	}

	var successful []chunk.Chunk
	if len(diff.Upload) > 0 {
		embedder := embed.WithConcurrency(s.embedder, embeddingConcurrency)
		stream := embed.EmbedStream(ctx, embedder, diff.Upload, embed.KindDocument)
		for item := range stream {
			if item.Err != nil {
				slog.Warn("embedding failed, skipping chunk", slog.String("error", item.Err.Error()))
				if s.metrics != nil {
					s.metrics.SyncErrorsTotal.WithLabelValues("embed").Inc()
				}
				continue
			}
			successful = append(successful, item.Chunk)
		}
	}

	stalePaths := distinctPaths(diff.Delete)

	if err := s.client.WriteChunks(ctx, namespace, successful, stalePaths); err != nil {
		if s.metrics != nil {
			s.metrics.SyncErrorsTotal.WithLabelValues("write").Inc()
		}
		return false, err
	}

	if s.metrics != nil {
		s.metrics.SyncChunksUploaded.Add(float64(len(successful)))
		s.metrics.SyncChunksDeleted.Add(float64(len(diff.Delete)))
	}

	return true, nil
}

func distinctPaths(chunks []chunk.Chunk) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range chunks {
		if !seen[c.Path] {
			seen[c.Path] = true
			out = append(out, c.Path)
		}
	}
	return out
}
