package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an empty schema in a fresh data directory.
func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dataDir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}
	return db, dataDir
}

func TestLoadJSONLUnknownFields(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		jsonl    string
		countSQL string
		wantRows int
		checkSQL string
		checkVal string
	}{
		{
			name:     "list rows with unknown fields load",
			file:     listsJSONL,
			jsonl:    `{"list_name":"feed","position":0,"record":{"id":{"t":"string","v":"A"}},"origin":"import","weight":1.5}` + "\n",
			countSQL: "SELECT COUNT(*) FROM lists",
			wantRows: 1,
			checkSQL: "SELECT list_name FROM lists WHERE position = 0",
			checkVal: "feed",
		},
		{
			name:     "refresh rows with unknown fields load",
			file:     refreshesJSONL,
			jsonl:    `{"list_name":"feed","refreshed_at":"2024-05-01T08:00:00Z","etag":"abc"}` + "\n",
			countSQL: "SELECT COUNT(*) FROM list_refreshes",
			wantRows: 1,
			checkSQL: "SELECT refreshed_at FROM list_refreshes WHERE list_name = 'feed'",
			checkVal: "2024-05-01T08:00:00Z",
		},
		{
			name: "nested record is stored as JSON text",
			file: listsJSONL,
			jsonl: `{"list_name":"feed","position":0,"record":{"tags":{"t":"list","v":[{"t":"string","v":"x"}]}}}
{"list_name":"feed","position":1,"record":{"id":{"t":"string","v":"B"}}}
`,
			countSQL: "SELECT COUNT(*) FROM lists",
			wantRows: 2,
			checkSQL: "SELECT record FROM lists WHERE position = 1",
			checkVal: `{"id":{"t":"string","v":"B"}}`,
		},
		{
			name: "duplicate positions keep the first row",
			file: listsJSONL,
			jsonl: `{"list_name":"feed","position":0,"record":{"id":{"t":"string","v":"A"}}}
{"list_name":"feed","position":0,"record":{"id":{"t":"string","v":"Z"}}}
`,
			countSQL: "SELECT COUNT(*) FROM lists",
			wantRows: 1,
			checkSQL: "SELECT record FROM lists WHERE position = 0",
			checkVal: `{"id":{"t":"string","v":"A"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, dataDir := setupTestDB(t)
			require.NoError(t, os.WriteFile(filepath.Join(dataDir, tt.file), []byte(tt.jsonl), 0o644))

			require.NoError(t, loadAllJSONL(db, dataDir), "loadAllJSONL must not error on unknown fields")

			var count int
			require.NoError(t, db.QueryRow(tt.countSQL).Scan(&count))
			assert.Equal(t, tt.wantRows, count)

			var val string
			require.NoError(t, db.QueryRow(tt.checkSQL).Scan(&val))
			assert.Equal(t, tt.checkVal, val)
		})
	}
}

func TestLoadJSONLEmptyFiles(t *testing.T) {
	db, dataDir := setupTestDB(t)
	for _, m := range jsonlTableMapping {
		require.NoError(t, ensureJSONL(filepath.Join(dataDir, m.file)))
	}

	require.NoError(t, loadAllJSONL(db, dataDir))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM lists").Scan(&count))
	assert.Zero(t, count)
}
