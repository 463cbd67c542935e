package plist

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// NotFound is returned by IndexOf when no record carries the identifier.
const NotFound = -1

// Collection is an ordered sequence of records, each identified by the value
// of UniqueKey. UpdatableKeys lists the fields copied forward when a record is
// refreshed from a newer version of itself.
type Collection struct {
	uniqueKey     string
	updatableKeys []string
	records       []types.Record
}

// New creates a collection holding copies of records.
// Returns ErrMissingKey if a record lacks the unique key and ErrDuplicateKey
// if two records share a unique key value.
func New(uniqueKey string, updatableKeys []string, records ...types.Record) (*Collection, error) {
	if uniqueKey == "" {
		return nil, types.ErrUniqueKeyEmpty
	}
	c := &Collection{
		uniqueKey:     uniqueKey,
		updatableKeys: slices.Clone(updatableKeys),
		records:       make([]types.Record, 0, len(records)),
	}
	for i, r := range records {
		if err := c.Append(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return c, nil
}

// UniqueKey returns the identifying field name.
func (c *Collection) UniqueKey() string { return c.uniqueKey }

// UpdatableKeys returns the fields copied forward during a merge.
func (c *Collection) UpdatableKeys() []string { return slices.Clone(c.updatableKeys) }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// At returns a copy of the record at index. It panics if index is out of range.
func (c *Collection) At(index int) types.Record {
	c.checkIndex(index)
	return c.records[index].Clone()
}

// Records returns a deep copy of all records in order.
func (c *Collection) Records() []types.Record {
	return types.CloneRecords(c.records)
}

// IndexOf returns the position of the record whose unique key equals id, or
// NotFound.
func (c *Collection) IndexOf(id string) int {
	for i, r := range c.records {
		if key, ok := r.Identity(c.uniqueKey); ok && key == id {
			return i
		}
	}
	return NotFound
}

// RecordFor returns a copy of the record identified by id.
func (c *Collection) RecordFor(id string) (types.Record, bool) {
	i := c.IndexOf(id)
	if i == NotFound {
		return nil, false
	}
	return c.records[i].Clone(), true
}

// ReplaceField overwrites one field of the record at index. The change is not
// persisted; owners persist explicitly.
//
// ReplaceField panics if index is out of range, or if key is the unique key
// and value is missing or already held by another record.
func (c *Collection) ReplaceField(index int, key string, value types.Value) {
	c.checkIndex(index)
	if key == c.uniqueKey {
		if value.IsNull() {
			panic(fmt.Sprintf("plist: unique key %q cannot be null", key))
		}
		if other := c.IndexOf(value.Key()); other != NotFound && other != index {
			panic(fmt.Sprintf("plist: unique key %q value %q already held at index %d", key, value.Key(), other))
		}
	}
	c.records[index][key] = value.Clone()
}

// Append adds a copy of r at the end of the collection.
func (c *Collection) Append(r types.Record) error {
	id, ok := r.Identity(c.uniqueKey)
	if !ok {
		return types.ErrMissingKey
	}
	if c.IndexOf(id) != NotFound {
		return fmt.Errorf("%s=%q: %w", c.uniqueKey, id, types.ErrDuplicateKey)
	}
	c.records = append(c.records, r.Clone())
	return nil
}

// RemoveAt deletes the record at index and returns it. It panics if index is
// out of range.
func (c *Collection) RemoveAt(index int) types.Record {
	c.checkIndex(index)
	r := c.records[index]
	c.records = slices.Delete(c.records, index, index+1)
	return r
}

// Reverse reverses the order of the records in place.
func (c *Collection) Reverse() {
	slices.Reverse(c.records)
}

// Clear removes every record.
func (c *Collection) Clear() {
	c.records = nil
}

func (c *Collection) checkIndex(index int) {
	if index < 0 || index >= len(c.records) {
		panic(fmt.Sprintf("plist: index %d out of range [0,%d)", index, len(c.records)))
	}
}
