// internal/dedup/batch.go
package dedup

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

const DefaultBatchConcurrency = 4

// BatchResult is the outcome of one batch item. Result is nil only when the
// request itself was invalid.
type BatchResult struct {
	Index  int
	Result *MatchResult
	Err    error
}

// BatchChecker fans a batch of requests out over a bounded pool of
// goroutines.
type BatchChecker struct {
	engine      *Engine
	concurrency int
}

func NewBatchChecker(engine *Engine, concurrency int) *BatchChecker {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &BatchChecker{engine: engine, concurrency: concurrency}
}

type corpusSnapshot struct {
	entries []Entry
	err     error
}

// CheckAll runs every request and returns results in input order. Every
// item of one entity type is scanned against the same corpus snapshot,
// loaded once per batch. Items not started before ctx is done get an ERROR
// result carrying the context error.
func (b *BatchChecker) CheckAll(ctx context.Context, reqs []MatchRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	var (
		mu        sync.Mutex
		snapshots = make(map[string]*corpusSnapshot)
		loading   = make(map[string]*sync.Once)
	)

	load := func(entityType string) *corpusSnapshot {
		mu.Lock()
		once, ok := loading[entityType]
		if !ok {
			once = &sync.Once{}
			loading[entityType] = once
		}
		mu.Unlock()

		once.Do(func() {
			snap := &corpusSnapshot{}
			if b.engine.corpus == nil {
				snap.err = fmt.Errorf("%w: no corpus provider configured", ErrCorpusUnavailable)
			} else {
				entries, err := b.engine.corpus.RecordsForType(ctx, entityType)
				if err != nil {
					snap.err = fmt.Errorf("%w: load corpus for %s: %w", ErrCorpusUnavailable, entityType, err)
				}
				snap.entries = entries
			}
			mu.Lock()
			snapshots[entityType] = snap
			mu.Unlock()
		})

		mu.Lock()
		defer mu.Unlock()
		return snapshots[entityType]
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i := range reqs {
		i := i
		g.Go(func() error {
			req := reqs[i]
			results[i].Index = i

			if err := req.Validate(); err != nil {
				results[i].Err = err
				return nil
			}

			if err := ctx.Err(); err != nil {
				results[i].Result, results[i].Err = b.engine.run(ctx, req, nil, &ScanError{Err: err})
				return nil
			}

			snap := load(req.EntityType)
			if snap.err != nil {
				results[i].Result, results[i].Err = b.engine.run(ctx, req, nil, &ScanError{Err: snap.err})
				return nil
			}

			results[i].Result, results[i].Err = b.engine.CheckSnapshot(ctx, req, snap.entries)
			return nil
		})
	}

	_ = g.Wait()
	return results
}
