package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Refresh fetches the remote list and merges it into the local one. The
// returned channel delivers exactly one Result and is then closed.
//
// The fetch runs in its own goroutine. On success the merge is applied under
// the list lock, the refresh time is set, and the list is saved before the
// Result is delivered. On failure, including cancellation of ctx, the list is
// left unchanged.
func (l *List) Refresh(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		out <- l.refresh(ctx)
	}()
	return out
}

// RefreshWithCallback runs Refresh and invokes callback once with its result
// from another goroutine.
func (l *List) RefreshWithCallback(ctx context.Context, callback func(Result)) {
	results := l.Refresh(ctx)
	go func() {
		callback(<-results)
	}()
}

func (l *List) refresh(ctx context.Context) Result {
	l.mu.RLock()
	url := l.config.URL
	name := l.config.Name
	l.mu.RUnlock()

	if url == "" {
		return Result{List: l, Err: fmt.Errorf("refresh %s: %w", name, ErrNoURL)}
	}

	start := time.Now()
	records, err := l.fetcher.Fetch(ctx, url)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		glog.Infof("[list]refresh %s error = %s\n", name, err)
		return Result{List: l, Err: fmt.Errorf("refresh %s: %w: %w", name, types.ErrFetch, err)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	changes, err := l.items.Merge(records)
	if err != nil {
		glog.Infof("[list]refresh %s rejected = %s\n", name, err)
		return Result{List: l, Err: fmt.Errorf("refresh %s: %w", name, err)}
	}
	l.latestRefresh = l.now()

	glog.Infof("[list]refreshed %s (%.2fms) removed=%d inserted=%d updated=%d\n",
		name, float64(time.Since(start))/float64(time.Millisecond),
		len(changes.Removed), len(changes.Inserted), len(changes.Updated))

	if err := l.saveLocked(); err != nil {
		return Result{List: l, Changes: changes, Err: err}
	}
	return Result{List: l, Changes: changes}
}

// Watch refreshes the list every interval until ctx is done, invoking
// callback after each refresh. A non-positive interval falls back to the
// list's configured interval and then DefaultRefreshInterval. The first
// refresh happens immediately if the list is stale, otherwise when the
// interval since the last refresh elapses.
func (l *List) Watch(ctx context.Context, interval time.Duration, callback func(Result)) error {
	if interval <= 0 {
		interval = l.config.RefreshInterval
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	wait := time.Duration(0)
	if !l.Stale(interval) {
		wait = interval - l.now().Sub(l.LatestRefresh())
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		result := l.refresh(ctx)
		if callback != nil {
			callback(result)
		}
		timer.Reset(interval)
	}
}
