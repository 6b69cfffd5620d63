// Package walker implements turbogrep's directory walker: a parallel,
// gitignore-aware traversal that streams discovered files to a caller
// supplied processor, the same shape as the reference's directory-scan
// step that chunking and hashing both build on.
package walker

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"golang.org/x/sync/errgroup"
)

const ignoreCacheSize = 1000

// defaultExcludeDirs are always skipped regardless of .gitignore content,
// mirroring the reference's hard-coded exclusion list.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".turbogrep":   true,
}

// File describes one file discovered by Walk.
type File struct {
	Path    string // relative to Root
	AbsPath string
	Size    int64
	ModTime int64
	IsDir   bool
}

// Options configures a Walk.
type Options struct {
	Root             string
	RespectGitignore bool
	FollowSymlinks   bool
	Workers          int
	MaxFileSize      int64
}

const defaultMaxFileSize = 1_000_000

// Processor handles one discovered file. A non-nil error cancels the
// walk's shared context, which stops discovery, and Walk returns the
// first such error.
type Processor func(ctx context.Context, f File) error

// Walker performs ignore-aware, parallel directory walks rooted at each
// call's opts.Root, caching one gitignore matcher per directory visited.
type Walker struct {
	ignoreCache *lru.Cache[string, []gitignore.Pattern]
}

func New() (*Walker, error) {
	cache, err := lru.New[string, []gitignore.Pattern](ignoreCacheSize)
	if err != nil {
		return nil, err
	}
	return &Walker{ignoreCache: cache}, nil
}

// Walk discovers every non-ignored file under opts.Root and invokes fn
// for each, fanned out across opts.Workers goroutines (default NumCPU).
// It returns the first error any invocation of fn returned, after
// letting in-flight work finish.
func (w *Walker) Walk(ctx context.Context, opts Options, fn Processor) error {
	if opts.Root == "" {
		opts.Root = "."
	}
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}

	files := make(chan File, workers*4)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(files)
		return w.discover(gctx, absRoot, opts, files)
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for f := range files {
				if f.Size > maxFileSize {
					continue
				}
				if err := fn(gctx, f); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func (w *Walker) discover(ctx context.Context, absRoot string, opts Options, out chan<- File) error {
	var walk func(dir, relDir string) error
	walk = func(dir, relDir string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}

		var matcher gitignore.Matcher
		if opts.RespectGitignore {
			matcher = w.matcherFor(dir, relDir)
		}

		for _, entry := range entries {
			name := entry.Name()
			relPath := name
			if relDir != "" {
				relPath = filepath.Join(relDir, name)
			}
			absPath := filepath.Join(dir, name)

			pathParts := strings.Split(relPath, string(filepath.Separator))

			if entry.IsDir() {
				if defaultExcludeDirs[name] {
					continue
				}
				if matcher != nil && matcher.Match(pathParts, true) {
					continue
				}
				if err := walk(absPath, relPath); err != nil {
					return err
				}
				continue
			}

			if entry.Type()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
				continue
			}
			if matcher != nil && matcher.Match(pathParts, false) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}

			select {
			case out <- File{
				Path:    relPath,
				AbsPath: absPath,
				Size:    info.Size(),
				ModTime: info.ModTime().Unix(),
			}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	return walk(absRoot, "")
}

// matcherFor returns the gitignore matcher combining every .gitignore
// file from absRoot down to dir, caching per-directory results keyed by
// absolute path.
func (w *Walker) matcherFor(dir, relDir string) gitignore.Matcher {
	if cached, ok := w.ignoreCache.Get(dir); ok {
		return gitignore.NewMatcher(cached)
	}

	var patterns []gitignore.Pattern
	if relDir != "" {
		if parent, ok := w.ignoreCache.Get(filepath.Dir(dir)); ok {
			patterns = append(patterns, parent...)
		}
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if f, err := os.Open(gitignorePath); err == nil {
		scanner := bufio.NewScanner(f)
		var domain []string
		if relDir != "" {
			domain = strings.Split(relDir, string(filepath.Separator))
		}
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			patterns = append(patterns, gitignore.ParsePattern(line, domain))
		}
		_ = f.Close()
	}

	w.ignoreCache.Add(dir, patterns)
	return gitignore.NewMatcher(patterns)
}
