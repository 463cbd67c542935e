// Package sections presents a keyed collection as a table of named sections
// and describes, after each update, which rows and sections a table view
// should insert, delete or reload.
//
// Records keep the order in which they were added. Sections appear in the
// order their first record appears.
package sections

import (
	"slices"

	"github.com/mesh-intelligence/shelf/pkg/plist"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// IndexPath locates a row within a section.
type IndexPath struct {
	Section int
	Row     int
}

// TableChanges describes how to animate a table from its layout before an
// update to its layout after. Deleted and reloaded paths and deleted sections
// refer to the old layout; inserted paths and sections to the new layout.
type TableChanges struct {
	DeletedSections  []int
	InsertedSections []int
	DeletedRows      []IndexPath
	InsertedRows     []IndexPath
	ReloadedRows     []IndexPath
}

// Empty reports whether the update changed nothing visible.
func (tc TableChanges) Empty() bool {
	return len(tc.DeletedSections) == 0 && len(tc.InsertedSections) == 0 &&
		len(tc.DeletedRows) == 0 && len(tc.InsertedRows) == 0 && len(tc.ReloadedRows) == 0
}

// Source is a data source for a sectioned table.
// It is not safe for concurrent use.
type Source struct {
	items      *plist.Collection
	sectionKey string
}

// New creates a Source. An empty sectionKey puts every record in one section
// named "".
func New(uniqueKey, sectionKey string, updatableKeys []string, records ...types.Record) (*Source, error) {
	items, err := plist.New(uniqueKey, updatableKeys, records...)
	if err != nil {
		return nil, err
	}
	return &Source{items: items, sectionKey: sectionKey}, nil
}

// UniqueKey returns the field that identifies records.
func (s *Source) UniqueKey() string { return s.items.UniqueKey() }

// SectionKey returns the field that names a record's section.
func (s *Source) SectionKey() string { return s.sectionKey }

// Len returns the total number of records.
func (s *Source) Len() int { return s.items.Len() }

// Records returns a copy of all records in order.
func (s *Source) Records() []types.Record { return s.items.Records() }

// RecordFor returns a copy of the record identified by id.
func (s *Source) RecordFor(id string) (types.Record, bool) { return s.items.RecordFor(id) }

// sectionOf returns the section name of r. Records without the section key
// belong to section "".
func (s *Source) sectionOf(r types.Record) string {
	if s.sectionKey == "" {
		return ""
	}
	v, ok := r[s.sectionKey]
	if !ok || v.IsNull() {
		return ""
	}
	return v.Key()
}

// SectionNames returns the distinct section names in first-seen order.
func (s *Source) SectionNames() []string {
	return layoutOf(s, s.items.Records()).names
}

// ItemsForSection returns copies of the records in the named section, in
// collection order. An unknown name yields nil.
func (s *Source) ItemsForSection(name string) []types.Record {
	var out []types.Record
	for _, r := range s.items.Records() {
		if s.sectionOf(r) == name {
			out = append(out, r)
		}
	}
	return out
}

// ItemsForSectionIndex returns the records of the section at index, or nil
// if index is out of range.
func (s *Source) ItemsForSectionIndex(index int) []types.Record {
	names := s.SectionNames()
	if index < 0 || index >= len(names) {
		return nil
	}
	return s.ItemsForSection(names[index])
}

// RecordAt returns the record at path and whether the path exists.
func (s *Source) RecordAt(path IndexPath) (types.Record, bool) {
	rows := s.ItemsForSectionIndex(path.Section)
	if path.Row < 0 || path.Row >= len(rows) {
		return nil, false
	}
	return rows[path.Row], true
}

// IndexPathFor returns the location of the record identified by id.
func (s *Source) IndexPathFor(id string) (IndexPath, bool) {
	l := layoutOf(s, s.items.Records())
	p, ok := l.paths[id]
	return p, ok
}

// layout is the sectioned arrangement of a record list.
type layout struct {
	names    []string
	sections map[string]int
	paths    map[string]IndexPath
	section  map[string]string
}

func layoutOf(s *Source, records []types.Record) layout {
	l := layout{
		sections: map[string]int{},
		paths:    make(map[string]IndexPath, len(records)),
		section:  make(map[string]string, len(records)),
	}
	rows := map[string]int{}
	for _, r := range records {
		name := s.sectionOf(r)
		idx, ok := l.sections[name]
		if !ok {
			idx = len(l.names)
			l.sections[name] = idx
			l.names = append(l.names, name)
		}
		id, _ := r.Identity(s.items.UniqueKey())
		l.paths[id] = IndexPath{Section: idx, Row: rows[name]}
		l.section[id] = name
		rows[name]++
	}
	return l
}

// Update merges newValues into the source and reports the table changes.
// On error the source is unchanged.
//
// Sections are matched by name. A section whose name disappears is deleted
// and one whose name appears is inserted. A surviving section whose position
// relative to the other survivors changed is reported as deleted and
// inserted too, so that applying deletions against the old layout and then
// insertions against the new one always reproduces the new layout. Rows
// inside a deleted or inserted section are not reported individually.
//
// A record whose section changed is reported as a delete from its old path
// and an insert at its new one. Reloaded rows are updated records that stayed
// in place, located by their old path.
func (s *Source) Update(newValues []types.Record) (TableChanges, error) {
	before := layoutOf(s, s.items.Records())

	ch, err := s.items.Merge(newValues)
	if err != nil {
		return TableChanges{}, err
	}
	after := layoutOf(s, s.items.Records())

	stable := stableSections(before, after)

	var tc TableChanges
	for i, name := range before.names {
		if !stable[name] {
			tc.DeletedSections = append(tc.DeletedSections, i)
		}
	}
	for i, name := range after.names {
		if !stable[name] {
			tc.InsertedSections = append(tc.InsertedSections, i)
		}
	}

	key := s.items.UniqueKey()
	moved := map[string]bool{}
	for id, old := range before.section {
		if next, ok := after.section[id]; ok && next != old {
			moved[id] = true
		}
	}

	for _, c := range ch.Removed {
		id, _ := c.Record.Identity(key)
		if stable[before.section[id]] {
			tc.DeletedRows = append(tc.DeletedRows, before.paths[id])
		}
	}
	for _, c := range ch.Inserted {
		id, _ := c.Record.Identity(key)
		if stable[after.section[id]] {
			tc.InsertedRows = append(tc.InsertedRows, after.paths[id])
		}
	}
	for id := range moved {
		if stable[before.section[id]] {
			tc.DeletedRows = append(tc.DeletedRows, before.paths[id])
		}
		if stable[after.section[id]] {
			tc.InsertedRows = append(tc.InsertedRows, after.paths[id])
		}
	}
	for _, c := range ch.Updated {
		id, _ := c.Record.Identity(key)
		if moved[id] || !stable[before.section[id]] {
			continue
		}
		tc.ReloadedRows = append(tc.ReloadedRows, before.paths[id])
	}

	sortPaths(tc.DeletedRows)
	sortPaths(tc.InsertedRows)
	sortPaths(tc.ReloadedRows)
	return tc, nil
}

// stableSections returns the sections present in both layouts whose relative
// order is unchanged: the longest common subsequence of the two name lists.
func stableSections(before, after layout) map[string]bool {
	a, b := before.names, after.names
	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	stable := map[string]bool{}
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			stable[a[i]] = true
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	return stable
}

func sortPaths(paths []IndexPath) {
	slices.SortFunc(paths, func(a, b IndexPath) int {
		if a.Section != b.Section {
			return a.Section - b.Section
		}
		return a.Row - b.Row
	})
}
