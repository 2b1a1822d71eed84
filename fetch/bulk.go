package fetch

import (
	"context"
	"sync"

	"github.com/git-pkgs/pins/internal/core"
)

const defaultConcurrency = 4

// Result is the outcome of fetching one descriptor.
type Result struct {
	Path string
	Err  error
}

// FetchAll fetches every release in descriptors in parallel. A failure only
// affects its own entry. Local entries are skipped. Returns results by label.
func FetchAll(ctx context.Context, a *Archiver, descriptors []core.Descriptor, concurrency int) map[string]Result {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make(map[string]Result)
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, d := range descriptors {
		if !d.IsRelease() {
			continue
		}
		wg.Add(1)
		go func(d core.Descriptor) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				results[d.Label] = Result{Err: ctx.Err()}
				mu.Unlock()
				return
			}

			path, err := a.FetchDescriptor(ctx, d)
			mu.Lock()
			results[d.Label] = Result{Path: path, Err: err}
			mu.Unlock()
		}(d)
	}

	wg.Wait()
	return results
}
