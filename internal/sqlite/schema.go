package sqlite

// Schema DDL. The database is rebuilt from the JSONL files on every Attach.
const (
	createLists = `CREATE TABLE lists (
    list_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (list_name, position)
);`

	createListRefreshes = `CREATE TABLE list_refreshes (
    list_name TEXT PRIMARY KEY,
    refreshed_at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxListsName = `CREATE INDEX idx_lists_name ON lists(list_name);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createLists,
	createListRefreshes,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxListsName,
}
