package search

import (
	"context"

	"github.com/turbopuffer/turbogrep/internal/turboerr"
)

// searchOutcome and indexOutcome carry a goroutine's result back to the
// select loop below. A goroutine whose context was cancelled reports
// the cancellation through err; the channels are buffered so a loser
// that is no longer awaited never blocks.
type searchOutcome struct {
	results string
	err     error
}

type indexOutcome struct {
	changed bool
	err     error
}

// Speculate races Search against a background Sync of the same
// directory: whichever finishes first determines the outcome, with the
// index racer able to force a retry if it discovers the content
// changed underneath a slower search, and a NamespaceNotFound search
// error always retried once the index finishes populating it. Ported
// using goroutines plus context cancellation to express the same
// machine, using goroutines plus context cancellation in place of
// spawned/aborted tasks.
func (o *Orchestrator) Speculate(ctx context.Context, opts Options, root, namespace string) (string, error) {
	for {
		searchCtx, cancelSearch := context.WithCancel(ctx)
		indexCtx, cancelIndex := context.WithCancel(ctx)

		searchCh := make(chan searchOutcome, 1)
		indexCh := make(chan indexOutcome, 1)

		go func() {
			results, err := o.Search(searchCtx, opts)
			searchCh <- searchOutcome{results: results, err: err}
		}()

		go func() {
			diff, err := o.Synchronizer.Sync(indexCtx, root, namespace)
			if err != nil {
				indexCh <- indexOutcome{err: err}
				return
			}
			changed := len(diff.Upload) > 0 || len(diff.Delete) > 0
			if changed {
				if _, applyErr := o.Synchronizer.ApplyDiff(indexCtx, namespace, diff, opts.EmbeddingConcurrency); applyErr != nil {
					indexCh <- indexOutcome{err: applyErr}
					return
				}
			}
			indexCh <- indexOutcome{changed: changed}
		}()

		retry, result, err := raceOnce(ctx, searchCh, indexCh, cancelSearch, cancelIndex)
		cancelSearch()
		cancelIndex()
		if retry {
			continue
		}
		return result, err
	}
}

// raceOnce runs exactly one select iteration of the state machine
// described in Speculate's doc comment, returning (true, "", nil) when
// the caller should loop and retry the search.
func raceOnce(ctx context.Context, searchCh <-chan searchOutcome, indexCh <-chan indexOutcome, cancelSearch, cancelIndex context.CancelFunc) (retry bool, result string, err error) {
	select {
	case sr := <-searchCh:
		if sr.err == nil {
			// Search succeeded: wait for the background sync to finish
			// (its outcome doesn't change what we return) then reply.
			<-indexCh
			return false, sr.results, nil
		}

		if turboerr.HasCode(sr.err, turboerr.CodeNamespaceNotFound) {
			cancelSearch()
			ir := <-indexCh
			if ir.err != nil {
				return false, "", turboerr.IndexBuildFailed(ir.err)
			}
			return true, "", nil
		}

		<-indexCh
		return false, "", sr.err

	case ir := <-indexCh:
		if ir.err != nil {
			cancelSearch()
			return false, "", turboerr.IndexBuildFailed(ir.err)
		}
		if ir.changed {
			cancelSearch()
			return true, "", nil
		}
		sr := <-searchCh
		return false, sr.results, sr.err

	case <-ctx.Done():
		cancelSearch()
		cancelIndex()
		return false, "", ctx.Err()
	}
}
