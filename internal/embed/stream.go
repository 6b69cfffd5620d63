package embed

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/turbopuffer/turbogrep/internal/chunk"
)

// StreamItem is one chunk's embedding outcome from EmbedStream. Err is
// set (and Chunk zero) when that chunk's batch failed — a single bad
// batch never aborts the rest of the stream, matching the reference's
// embed_stream default, which maps failures per-chunk rather than
// short-circuiting the whole pipeline.
type StreamItem struct {
	Chunk chunk.Chunk
	Err   error
}

// EmbedStream batches in into groups of e.MaxBatchSize(), embeds each
// batch concurrently (bounded by e.Concurrency()), and streams results
// as they complete — the default embed_stream derivation from
// chunks a stream into max_batch_size groups, embeds each group concurrently up to concurrency in flight.
func EmbedStream(ctx context.Context, e Embedder, in []chunk.Chunk, kind Kind) <-chan StreamItem {
	out := make(chan StreamItem, len(in))

	batchSize := e.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}
	concurrency := e.Concurrency()
	if concurrency <= 0 {
		concurrency = 1
	}

	var batches [][]chunk.Chunk
	for start := 0; start < len(in); start += batchSize {
		end := start + batchSize
		if end > len(in) {
			end = len(in)
		}
		batches = append(batches, in[start:end])
	}

	go func() {
		defer close(out)

		sem := semaphore.NewWeighted(int64(concurrency))
		var wg sync.WaitGroup

		for _, batch := range batches {
			if err := sem.Acquire(ctx, 1); err != nil {
				for range batch {
					out <- StreamItem{Err: err}
				}
				continue
			}

			wg.Add(1)
			go func(batch []chunk.Chunk) {
				defer wg.Done()
				defer sem.Release(1)

				result, err := e.Embed(ctx, batch, kind)
				if err != nil {
					for range batch {
						out <- StreamItem{Err: err}
					}
					return
				}
				for _, c := range result.Chunks {
					out <- StreamItem{Chunk: c}
				}
			}(batch)
		}

		wg.Wait()
	}()

	return out
}
