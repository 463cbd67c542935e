package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

var _ types.Store = (*Backend)(nil)

// Load returns the records saved under name, in saved order. A name that was
// never saved yields an empty list.
func (b *Backend) Load(name string) ([]types.Record, error) {
	if name == "" {
		return nil, types.ErrInvalidName
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.Query(
		"SELECT record FROM lists WHERE list_name = ? ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("querying list %s: %w", name, err)
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning list %s: %w", name, err)
		}
		var r types.Record
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("parsing record in list %s: %w", name, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save replaces the records saved under name and persists lists.jsonl.
func (b *Backend) Save(name string, records []types.Record) error {
	if name == "" {
		return types.ErrInvalidName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	err := b.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM lists WHERE list_name = ?", name); err != nil {
			return err
		}
		stmt, err := tx.Prepare("INSERT INTO lists (list_name, position, record) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding record %d: %w", i, err)
			}
			if _, err := stmt.Exec(name, i, string(data)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving list %s: %w", name, err)
	}

	glog.V(2).Infof("[store]saved %s (%d records)\n", name, len(records))
	return b.persistListsLocked()
}

// Erase removes the records and refresh time saved under name.
func (b *Backend) Erase(name string) error {
	if name == "" {
		return types.ErrInvalidName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	err := b.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM lists WHERE list_name = ?", name); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM list_refreshes WHERE list_name = ?", name)
		return err
	})
	if err != nil {
		return fmt.Errorf("erasing list %s: %w", name, err)
	}

	glog.V(2).Infof("[store]erased %s\n", name)
	if err := b.persistListsLocked(); err != nil {
		return err
	}
	return b.persistRefreshesLocked()
}

// LoadRefreshed returns the latest refresh time saved for name, or the zero
// time if none was saved.
func (b *Backend) LoadRefreshed(name string) (time.Time, error) {
	if name == "" {
		return time.Time{}, types.ErrInvalidName
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return time.Time{}, types.ErrDetached
	}

	var text string
	err := b.db.QueryRow(
		"SELECT refreshed_at FROM list_refreshes WHERE list_name = ?", name).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying refresh time for %s: %w", name, err)
	}
	at, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing refresh time for %s: %w", name, err)
	}
	return at, nil
}

// SaveRefreshed records the latest refresh time for name.
func (b *Backend) SaveRefreshed(name string, at time.Time) error {
	if name == "" {
		return types.ErrInvalidName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	_, err := b.db.Exec(
		`INSERT INTO list_refreshes (list_name, refreshed_at) VALUES (?, ?)
		 ON CONFLICT(list_name) DO UPDATE SET refreshed_at = excluded.refreshed_at`,
		name, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving refresh time for %s: %w", name, err)
	}
	return b.persistRefreshesLocked()
}

// Names returns the names of all persisted lists, sorted.
func (b *Backend) Names() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.Query(
		`SELECT list_name FROM lists UNION SELECT list_name FROM list_refreshes ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("querying list names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (b *Backend) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// persistListsLocked rewrites lists.jsonl from the lists table.
// The caller must hold b.mu.
func (b *Backend) persistListsLocked() error {
	rows, err := b.db.Query("SELECT list_name, position, record FROM lists ORDER BY list_name, position")
	if err != nil {
		return fmt.Errorf("querying lists for persist: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var row listRowJSON
		var text string
		if err := rows.Scan(&row.ListName, &row.Position, &text); err != nil {
			return fmt.Errorf("scanning lists for persist: %w", err)
		}
		row.Record = json.RawMessage(text)
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.config.DataDir, listsJSONL), out)
}

// persistRefreshesLocked rewrites list_refreshes.jsonl from its table.
// The caller must hold b.mu.
func (b *Backend) persistRefreshesLocked() error {
	rows, err := b.db.Query("SELECT list_name, refreshed_at FROM list_refreshes ORDER BY list_name")
	if err != nil {
		return fmt.Errorf("querying refreshes for persist: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var row refreshRowJSON
		if err := rows.Scan(&row.ListName, &row.RefreshedAt); err != nil {
			return fmt.Errorf("scanning refreshes for persist: %w", err)
		}
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.config.DataDir, refreshesJSONL), out)
}
