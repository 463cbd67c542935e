package sections

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

func entry(id, section, title string) types.Record {
	r := types.Record{"id": types.String(id), "title": types.String(title)}
	if section != "" {
		r["section"] = types.String(section)
	}
	return r
}

func idsOf(records []types.Record) []string {
	var out []string
	for _, r := range records {
		id, _ := r.Identity("id")
		out = append(out, id)
	}
	return out
}

func newsSource(t *testing.T, updatable ...string) *Source {
	t.Helper()
	s, err := New("id", "section", updatable,
		entry("A", "news", "a"),
		entry("B", "alerts", "b"),
		entry("C", "news", "c"),
		entry("D", "news", "d"),
	)
	require.NoError(t, err)
	return s
}

func TestSectionNamesFirstSeenOrder(t *testing.T) {
	s := newsSource(t)
	assert.Equal(t, []string{"news", "alerts"}, s.SectionNames())
}

func TestItemsForSection(t *testing.T) {
	s := newsSource(t)

	assert.Equal(t, []string{"A", "C", "D"}, idsOf(s.ItemsForSection("news")))
	assert.Equal(t, []string{"B"}, idsOf(s.ItemsForSectionIndex(1)))
	assert.Nil(t, s.ItemsForSection("sports"))
	assert.Nil(t, s.ItemsForSectionIndex(2))
	assert.Nil(t, s.ItemsForSectionIndex(-1))
}

func TestSingleSectionWithoutKey(t *testing.T) {
	s, err := New("id", "", nil, entry("A", "news", "a"), entry("B", "alerts", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{""}, s.SectionNames())
	assert.Equal(t, []string{"A", "B"}, idsOf(s.ItemsForSectionIndex(0)))
}

func TestRecordsWithoutSectionFallInEmptySection(t *testing.T) {
	s, err := New("id", "section", nil, entry("A", "news", "a"), entry("B", "", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"news", ""}, s.SectionNames())
	assert.Equal(t, []string{"B"}, idsOf(s.ItemsForSection("")))
}

func TestIndexPaths(t *testing.T) {
	s := newsSource(t)

	p, ok := s.IndexPathFor("D")
	require.True(t, ok)
	assert.Equal(t, IndexPath{Section: 0, Row: 2}, p)

	r, ok := s.RecordAt(IndexPath{Section: 1, Row: 0})
	require.True(t, ok)
	assert.Equal(t, []string{"B"}, idsOf([]types.Record{r}))

	_, ok = s.RecordAt(IndexPath{Section: 1, Row: 1})
	assert.False(t, ok)
	_, ok = s.IndexPathFor("Z")
	assert.False(t, ok)
}

func TestUpdateReportsRowsAndSections(t *testing.T) {
	s := newsSource(t, "title")

	tc, err := s.Update([]types.Record{
		entry("A", "news", "a2"),
		entry("C", "news", "c"),
		entry("E", "sports", "e"),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, tc.DeletedSections, "alerts disappeared")
	assert.Equal(t, []int{1}, tc.InsertedSections, "sports appeared")
	assert.Equal(t, []IndexPath{{Section: 0, Row: 2}}, tc.DeletedRows, "D removed from a surviving section")
	assert.Empty(t, tc.InsertedRows, "E arrives with its new section")
	assert.Equal(t, []IndexPath{{Section: 0, Row: 0}}, tc.ReloadedRows)

	assert.Equal(t, []string{"news", "sports"}, s.SectionNames())
	assert.Equal(t, []string{"A", "C"}, idsOf(s.ItemsForSection("news")))
}

func TestUpdateInsertIntoExistingSection(t *testing.T) {
	s := newsSource(t, "title")

	tc, err := s.Update([]types.Record{
		entry("A", "news", "a"),
		entry("B", "alerts", "b"),
		entry("C", "news", "c"),
		entry("D", "news", "d"),
		entry("F", "alerts", "f"),
	})
	require.NoError(t, err)

	assert.Empty(t, tc.DeletedSections)
	assert.Empty(t, tc.InsertedSections)
	assert.Empty(t, tc.DeletedRows)
	assert.Equal(t, []IndexPath{{Section: 1, Row: 1}}, tc.InsertedRows)
	assert.Empty(t, tc.ReloadedRows)
}

func TestUpdateMovesRecordBetweenSections(t *testing.T) {
	s, err := New("id", "section", []string{"section"},
		entry("A", "news", "a"),
		entry("B", "news", "b"),
		entry("C", "alerts", "c"),
	)
	require.NoError(t, err)

	tc, err := s.Update([]types.Record{
		entry("A", "alerts", "a"),
		entry("B", "news", "b"),
		entry("C", "alerts", "c"),
	})
	require.NoError(t, err)

	// news and alerts swap places: alerts keeps its rows and news is
	// deleted and reinserted behind it.
	assert.Equal(t, []string{"alerts", "news"}, s.SectionNames())
	assert.Equal(t, []int{0}, tc.DeletedSections)
	assert.Equal(t, []int{1}, tc.InsertedSections)
	assert.Empty(t, tc.DeletedRows)
	assert.Equal(t, []IndexPath{{Section: 0, Row: 0}}, tc.InsertedRows)
	assert.Empty(t, tc.ReloadedRows, "a moved row is not also reloaded")
}

// table is a section-ordered list of row ids, as a table view holds them.
type table struct {
	names []string
	rows  [][]string
}

func tableOf(s *Source) table {
	var t table
	for i, name := range s.SectionNames() {
		t.names = append(t.names, name)
		t.rows = append(t.rows, idsOf(s.ItemsForSectionIndex(i)))
	}
	return t
}

// apply plays tc against old the way a table view performs a batch update:
// deletions by old position, then insertions by new position. Inserted
// sections arrive with their rows from next.
func apply(t *testing.T, old table, tc TableChanges, next *Source) table {
	t.Helper()
	out := table{names: slices.Clone(old.names)}
	for _, rows := range old.rows {
		out.rows = append(out.rows, slices.Clone(rows))
	}

	type slot struct{ section, row int }
	dead := map[slot]bool{}
	for _, p := range tc.DeletedRows {
		require.Less(t, p.Section, len(out.rows))
		require.Less(t, p.Row, len(out.rows[p.Section]))
		dead[slot{p.Section, p.Row}] = true
	}
	for _, p := range tc.ReloadedRows {
		require.Less(t, p.Section, len(out.rows))
		require.Less(t, p.Row, len(out.rows[p.Section]))
	}
	for si := range out.rows {
		var kept []string
		for ri, id := range out.rows[si] {
			if !dead[slot{si, ri}] {
				kept = append(kept, id)
			}
		}
		out.rows[si] = kept
	}

	for _, si := range slices.Backward(tc.DeletedSections) {
		out.names = slices.Delete(out.names, si, si+1)
		out.rows = slices.Delete(out.rows, si, si+1)
	}
	for _, si := range tc.InsertedSections {
		require.LessOrEqual(t, si, len(out.names))
		out.names = slices.Insert(out.names, si, next.SectionNames()[si])
		out.rows = slices.Insert(out.rows, si, idsOf(next.ItemsForSectionIndex(si)))
	}

	for _, p := range tc.InsertedRows {
		rec, ok := next.RecordAt(p)
		require.True(t, ok)
		id, _ := rec.Identity("id")
		require.LessOrEqual(t, p.Row, len(out.rows[p.Section]))
		out.rows[p.Section] = slices.Insert(out.rows[p.Section], p.Row, id)
	}
	return out
}

func TestUpdateChangesReproduceNewLayout(t *testing.T) {
	tests := []struct {
		name    string
		initial []types.Record
		update  []types.Record
	}{
		{
			name:    "first section moves behind second",
			initial: []types.Record{entry("a", "X", "a"), entry("b", "Y", "b"), entry("c", "X", "c"), entry("d", "Y", "d"), entry("e", "Y", "e")},
			update:  []types.Record{entry("a", "Y", "a"), entry("b", "Y", "b"), entry("c", "X", "c"), entry("d", "Y", "d"), entry("e", "Y", "e")},
		},
		{
			name:    "sections swap with deletes and inserts",
			initial: []types.Record{entry("a", "X", "a"), entry("b", "Y", "b"), entry("c", "Z", "c"), entry("d", "X", "d")},
			update:  []types.Record{entry("a", "Z", "a"), entry("b", "Y", "b2"), entry("c", "Z", "c"), entry("e", "X", "e")},
		},
		{
			name:    "rows reload in place",
			initial: []types.Record{entry("a", "X", "a"), entry("b", "X", "b"), entry("c", "Y", "c")},
			update:  []types.Record{entry("b", "X", "b2"), entry("c", "Y", "c2"), entry("f", "X", "f")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New("id", "section", []string{"section", "title"}, tt.initial...)
			require.NoError(t, err)
			old := tableOf(s)

			tc, err := s.Update(tt.update)
			require.NoError(t, err)

			assert.Equal(t, tableOf(s), apply(t, old, tc, s))
		})
	}
}

func TestUpdateReloadsUseOldPaths(t *testing.T) {
	s, err := New("id", "section", []string{"title"},
		entry("a", "X", "a"),
		entry("b", "X", "b"),
	)
	require.NoError(t, err)

	// a leaves, so b moves from row 1 to row 0.
	tc, err := s.Update([]types.Record{entry("b", "X", "b2")})
	require.NoError(t, err)

	assert.Equal(t, []IndexPath{{Section: 0, Row: 0}}, tc.DeletedRows)
	assert.Equal(t, []IndexPath{{Section: 0, Row: 1}}, tc.ReloadedRows)
}

func TestUpdateWithSameValuesIsEmpty(t *testing.T) {
	s := newsSource(t, "title")

	tc, err := s.Update(s.Records())
	require.NoError(t, err)
	assert.True(t, tc.Empty())
}

func TestUpdateErrorLeavesSourceUnchanged(t *testing.T) {
	s := newsSource(t, "title")

	_, err := s.Update([]types.Record{{"title": types.String("no id")}})
	assert.ErrorIs(t, err, types.ErrMissingKey)
	assert.Equal(t, 4, s.Len())
}
