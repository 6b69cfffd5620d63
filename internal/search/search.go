// Package search implements turbogrep's query orchestrator: semantic
// and regex query modes, local content hydration, ripgrep-style output
// formatting, and a speculative search that races a query against a
// background resync.
package search

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/turbopuffer/turbogrep/internal/chunk"
	"github.com/turbopuffer/turbogrep/internal/embed"
	"github.com/turbopuffer/turbogrep/internal/metrics"
	"github.com/turbopuffer/turbogrep/internal/project"
	"github.com/turbopuffer/turbogrep/internal/remoteindex"
	tgsync "github.com/turbopuffer/turbogrep/internal/sync"
	"github.com/turbopuffer/turbogrep/internal/turboerr"
)

// Options configures one Search or Speculate call.
type Options struct {
	Query                string
	Directory            string
	MaxCount             int
	EmbeddingConcurrency int // 0 means use the embedder's own default
	ShowScores           bool
	Regex                bool
}

// Orchestrator ties together the embedder, remote index client and
// synchronizer a search needs.
type Orchestrator struct {
	Embedder      embed.Embedder
	Client        *remoteindex.Client
	Synchronizer  *tgsync.Synchronizer
	Metrics       *metrics.Collector
	EmbedProvider string // fed into project.NamespaceAndDir
}

// Search resolves opts.Directory's namespace, runs the requested query
// mode, hydrates matched chunks from local disk, and renders the
// ripgrep-compatible result string.
func (o *Orchestrator) Search(ctx context.Context, opts Options) (string, error) {
	namespace, rootDir, err := project.NamespaceAndDir(opts.Directory, o.EmbedProvider)
	if err != nil {
		return "", fmt.Errorf("resolving namespace: %w", err)
	}

	if strings.TrimSpace(opts.Query) == "" {
		return "", turboerr.EmptyQuery()
	}

	mode := "semantic"
	if opts.Regex {
		mode = "regex"
	}

	start := time.Now()
	var results []chunk.Chunk
	if opts.Regex {
		results, err = o.regexQuery(ctx, opts.Query, namespace, opts.MaxCount)
	} else {
		results, err = o.semanticQuery(ctx, opts.Query, namespace, opts.MaxCount)
	}
	if o.Metrics != nil {
		o.Metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", err
	}

	if o.Metrics != nil {
		o.Metrics.SearchResultCount.Observe(float64(len(results)))
	}

	for i := range results {
		loadChunkContent(&results[i])
	}

	return chunksToRipgrepFormat(results, rootDir, opts.ShowScores), nil
}

func (o *Orchestrator) semanticQuery(ctx context.Context, query, namespace string, maxCount int) ([]chunk.Chunk, error) {
	queryChunk := chunk.Chunk{Content: &query}

	result, err := o.Embedder.Embed(ctx, []chunk.Chunk{queryChunk}, embed.KindQuery)
	if err != nil {
		return nil, err
	}
	if len(result.Chunks) == 0 || result.Chunks[0].Vector == nil {
		return nil, turboerr.NoEmbedding()
	}

	return o.Client.QueryChunks(ctx, namespace, result.Chunks[0].Vector, maxCount)
}

func (o *Orchestrator) regexQuery(ctx context.Context, query, namespace string, maxCount int) ([]chunk.Chunk, error) {
	return o.Client.QueryByRegex(ctx, namespace, query, maxCount)
}

// loadChunkContent reads c's line range from the local file at c.Path,
// leaving Content nil if the file is gone or the read fails — ported
// which treats a missing file as
// a non-error (the chunk is simply rendered with no preview).
func loadChunkContent(c *chunk.Chunk) {
	f, err := os.Open(c.Path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := uint32(0)
	for scanner.Scan() {
		lineNum++
		if lineNum < c.StartLine {
			continue
		}
		if lineNum > c.EndLine {
			break
		}
		lines = append(lines, scanner.Text())
	}

	if len(lines) > 0 {
		joined := strings.Join(lines, "\n")
		c.Content = &joined
	}
}

// chunksToRipgrepFormat renders chunks as one line each, relative to
// rootDir: "path:line:preview", or "path:line:distance:preview" (or
// "path:line:n/a:preview" when a chunk carries no distance) when
// showScores is set. Mirrors
// chunks_to_ripgrep_format.
func chunksToRipgrepFormat(chunks []chunk.Chunk, rootDir string, showScores bool) string {
	lines := make([]string, len(chunks))
	for i, c := range chunks {
		relPath := c.Path
		if rel, err := filepath.Rel(rootDir, c.Path); err == nil && !strings.HasPrefix(rel, "..") {
			relPath = rel
		}

		preview := "[no content]"
		if c.Content != nil {
			if nl := strings.IndexByte(*c.Content, '\n'); nl >= 0 {
				preview = (*c.Content)[:nl]
			} else {
				preview = *c.Content
			}
			preview = strings.TrimSpace(preview)
		}

		if showScores {
			if c.Distance != nil {
				lines[i] = fmt.Sprintf("%s:%d:%.4f:%s", relPath, c.StartLine, *c.Distance, preview)
			} else {
				lines[i] = fmt.Sprintf("%s:%d:n/a:%s", relPath, c.StartLine, preview)
			}
		} else {
			lines[i] = fmt.Sprintf("%s:%d:%s", relPath, c.StartLine, preview)
		}
	}
	return strings.Join(lines, "\n")
}
