package plist

import (
	"fmt"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Change locates one record affected by a merge.
type Change struct {
	Index  int
	Record types.Record
}

// Changes reports the outcome of Merge.
//
// Removed indices refer to the collection before the merge, in ascending
// order. Inserted and Updated indices refer to the collection after it.
type Changes struct {
	Removed  []Change
	Inserted []Change
	Updated  []Change
}

// Empty reports whether the merge changed nothing.
func (ch Changes) Empty() bool {
	return len(ch.Removed) == 0 && len(ch.Inserted) == 0 && len(ch.Updated) == 0
}

// identities returns the set of unique key values present in records.
// Records without the unique key are skipped.
func identities(uniqueKey string, records []types.Record) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		if id, ok := r.Identity(uniqueKey); ok {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// ItemsNotIn returns copies of the current records whose unique key value
// does not appear among newRecords. These are the records a merge removes.
func (c *Collection) ItemsNotIn(newRecords []types.Record) []types.Record {
	incoming := identities(c.uniqueKey, newRecords)
	var out []types.Record
	for _, r := range c.records {
		id, _ := r.Identity(c.uniqueKey)
		if _, ok := incoming[id]; !ok {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ItemsNewIn returns copies of the records in newRecords whose unique key
// value is not yet in the collection, in their order in newRecords. When
// newRecords repeats a key, only the first occurrence counts. Records without
// the unique key are ignored.
func (c *Collection) ItemsNewIn(newRecords []types.Record) []types.Record {
	current := identities(c.uniqueKey, c.records)
	seen := make(map[string]struct{}, len(newRecords))
	var out []types.Record
	for _, r := range newRecords {
		id, ok := r.Identity(c.uniqueKey)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, exists := current[id]; !exists {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Merge reconciles the collection against a proposed replacement list.
//
// Records absent from newRecords are removed. Records present in both keep
// their position and their other fields, and take the values of the
// updatable keys from newRecords; an updatable key missing from the new
// version is removed. Records only in newRecords are appended in order.
// Duplicate keys in newRecords resolve to the first occurrence.
//
// Merge returns ErrMissingKey, and leaves the collection untouched, if any
// record in newRecords lacks the unique key.
func (c *Collection) Merge(newRecords []types.Record) (Changes, error) {
	latest := make(map[string]types.Record, len(newRecords))
	for i, r := range newRecords {
		id, ok := r.Identity(c.uniqueKey)
		if !ok {
			return Changes{}, fmt.Errorf("replacement record %d: %w", i, types.ErrMissingKey)
		}
		if _, dup := latest[id]; !dup {
			latest[id] = r
		}
	}

	var ch Changes
	kept := make([]types.Record, 0, len(c.records))
	for i, r := range c.records {
		id, _ := r.Identity(c.uniqueKey)
		next, ok := latest[id]
		if !ok {
			ch.Removed = append(ch.Removed, Change{Index: i, Record: r})
			continue
		}
		if c.copyUpdatable(r, next) {
			ch.Updated = append(ch.Updated, Change{Index: len(kept), Record: r.Clone()})
		}
		kept = append(kept, r)
	}

	for _, r := range c.ItemsNewIn(newRecords) {
		ch.Inserted = append(ch.Inserted, Change{Index: len(kept), Record: r.Clone()})
		kept = append(kept, r)
	}

	c.records = kept
	return ch, nil
}

// copyUpdatable copies the updatable fields of src onto dst and reports
// whether any value changed.
func (c *Collection) copyUpdatable(dst, src types.Record) bool {
	changed := false
	for _, key := range c.updatableKeys {
		if key == c.uniqueKey {
			continue
		}
		nv, ok := src[key]
		ov, had := dst[key]
		switch {
		case !ok && had:
			delete(dst, key)
			changed = true
		case ok && (!had || !ov.Equal(nv)):
			dst[key] = nv.Clone()
			changed = true
		}
	}
	return changed
}
