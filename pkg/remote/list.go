// Package remote keeps a persisted list of records in step with a list
// hosted at a URL.
//
// A List loads its last saved records from a Store, refreshes them from a
// Fetcher on demand or on a schedule, and merges each fetched list into the
// local one so that local fields and ordering survive. Direct mutations are
// persisted only when Synchronize is called.
package remote

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/mesh-intelligence/shelf/pkg/plist"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// DefaultRefreshInterval is used by Watch when neither the caller nor the
// list configuration sets an interval.
const DefaultRefreshInterval = 15 * time.Minute

// ErrNoURL is returned by Refresh when the list has no remote URL.
var ErrNoURL = errors.New("list has no remote URL")

// Result is delivered once for every Refresh.
type Result struct {
	List    *List
	Changes plist.Changes
	// Err is non-nil when the fetch, merge or save failed. When the fetch or
	// merge failed the list is unchanged.
	Err error
}

// List is a persisted collection refreshed from a remote URL.
// It is safe for concurrent use.
type List struct {
	mu            sync.RWMutex
	config        types.ListConfig
	store         types.Store
	fetcher       types.Fetcher
	items         *plist.Collection
	latestRefresh time.Time

	now func() time.Time
}

// New creates a List and loads the records and refresh time persisted under
// config.Name.
func New(config types.ListConfig, store types.Store, fetcher types.Fetcher) (*List, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	records, err := store.Load(config.Name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Name, err)
	}
	items, err := plist.New(config.UniqueKey, config.UpdatableKeys, records...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Name, err)
	}
	refreshed, err := store.LoadRefreshed(config.Name)
	if err != nil {
		return nil, fmt.Errorf("load %s refresh time: %w", config.Name, err)
	}

	return &List{
		config:        config,
		store:         store,
		fetcher:       fetcher,
		items:         items,
		latestRefresh: refreshed,
		now:           time.Now,
	}, nil
}

// Name returns the persistence name.
func (l *List) Name() string { return l.config.Name }

// UniqueKey returns the field that identifies records.
func (l *List) UniqueKey() string { return l.config.UniqueKey }

// Config returns the list's configuration.
func (l *List) Config() types.ListConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// URL returns the remote URL.
func (l *List) URL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.URL
}

// SetURL changes the remote URL used by later refreshes.
func (l *List) SetURL(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.URL = url
}

// LatestRefresh returns the time of the last successful refresh, or the zero
// time if the list was never refreshed.
func (l *List) LatestRefresh() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latestRefresh
}

// Stale reports whether the last successful refresh is older than maxAge.
func (l *List) Stale(maxAge time.Duration) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latestRefresh.IsZero() || l.now().Sub(l.latestRefresh) >= maxAge
}

// Len returns the number of records.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.Len()
}

// Records returns a copy of the records in order.
func (l *List) Records() []types.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.Records()
}

// IndexOf returns the position of the record identified by id, or
// plist.NotFound.
func (l *List) IndexOf(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.IndexOf(id)
}

// RecordFor returns a copy of the record identified by id.
func (l *List) RecordFor(id string) (types.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.RecordFor(id)
}

// ItemsNotIn returns the records a merge with newRecords would remove.
func (l *List) ItemsNotIn(newRecords []types.Record) []types.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.ItemsNotIn(newRecords)
}

// ItemsNewIn returns the records a merge with newRecords would append.
func (l *List) ItemsNewIn(newRecords []types.Record) []types.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.ItemsNewIn(newRecords)
}

// ReplaceField overwrites one field of the record at index. Call Synchronize
// to persist. It panics if index is out of range.
func (l *List) ReplaceField(index int, key string, value types.Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items.ReplaceField(index, key, value)
}

// Append adds a record at the end. Call Synchronize to persist.
func (l *List) Append(r types.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Append(r)
}

// RemoveAt deletes the record at index. Call Synchronize to persist.
// It panics if index is out of range.
func (l *List) RemoveAt(index int) types.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.RemoveAt(index)
}

// Merge reconciles the list against newRecords without fetching. Call
// Synchronize to persist.
func (l *List) Merge(newRecords []types.Record) (plist.Changes, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Merge(newRecords)
}

// Synchronize persists the records and, if set, the latest refresh time.
func (l *List) Synchronize() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.saveLocked()
}

// Flush empties the list and erases its persisted records and refresh time.
func (l *List) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items.Clear()
	l.latestRefresh = time.Time{}
	if err := l.store.Erase(l.config.Name); err != nil {
		return fmt.Errorf("flush %s: %w", l.config.Name, err)
	}
	glog.Infof("[list]flushed %s\n", l.config.Name)
	return nil
}

// saveLocked writes the records and refresh time. The caller must hold l.mu.
func (l *List) saveLocked() error {
	if err := l.store.Save(l.config.Name, l.items.Records()); err != nil {
		return fmt.Errorf("save %s: %w", l.config.Name, err)
	}
	if !l.latestRefresh.IsZero() {
		if err := l.store.SaveRefreshed(l.config.Name, l.latestRefresh); err != nil {
			return fmt.Errorf("save %s refresh time: %w", l.config.Name, err)
		}
	}
	return nil
}
