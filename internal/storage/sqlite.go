package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prasenjit/firescope/internal/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	group_id    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	collection  TEXT NOT NULL,
	method      TEXT NOT NULL,
	status      INTEGER NOT NULL,
	tab         TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_ended_at ON records(ended_at);
CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
`

// SQLiteStorage persists records in an SQLite database. The full record is
// kept as JSON, with the filterable fields as columns.
type SQLiteStorage struct {
	db         *sql.DB
	maxRecords int
}

// NewSQLiteStorage opens (or creates) the database at path. maxRecords <= 0
// keeps every record.
func NewSQLiteStorage(path string, maxRecords int) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 10000", "PRAGMA synchronous = NORMAL"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite storage: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite storage: exec schema: %w", err)
	}

	return &SQLiteStorage{db: db, maxRecords: maxRecords}, nil
}

// Save inserts a record, trimming the oldest rows past maxRecords
func (s *SQLiteStorage) Save(rec *models.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO records
		(id, group_id, kind, collection, method, status, tab, started_at, ended_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GroupID, string(rec.Kind), rec.CollectionPath, rec.Method, rec.Status,
		rec.TabContext, rec.StartedAt.UnixNano(), rec.EndedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.ID, err)
	}

	if s.maxRecords > 0 {
		_, err = s.db.Exec(`DELETE FROM records WHERE seq <= (SELECT MAX(seq) FROM records) - ?`, s.maxRecords)
		if err != nil {
			return fmt.Errorf("trim records: %w", err)
		}
	}
	return nil
}

// Publish stores rec as a correlator sink
func (s *SQLiteStorage) Publish(rec *models.Record) {
	save(s, rec)
}

// Get returns a record by ID
func (s *SQLiteStorage) Get(id string) (*models.Record, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM records WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return decodeRecord(data)
}

// List returns records matching the filter, newest first
func (s *SQLiteStorage) List(filter *models.RecordFilter) ([]*models.Record, error) {
	query, args := listQuery(filter)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func listQuery(f *models.RecordFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		where = append(where, cond)
		args = append(args, v)
	}

	limit := 0
	if f != nil {
		if f.Collection != "" {
			add("collection = ?", f.Collection)
		}
		if f.Kind != "" {
			add("kind = ?", string(f.Kind))
		}
		if f.Method != "" {
			add("method = ?", f.Method)
		}
		if f.Status != 0 {
			add("status = ?", f.Status)
		}
		if f.TabContext != "" {
			add("tab = ?", f.TabContext)
		}
		if f.GroupID != "" {
			add("group_id = ?", f.GroupID)
		}
		if !f.StartTime.IsZero() {
			add("ended_at >= ?", f.StartTime.UnixNano())
		}
		if !f.EndTime.IsZero() {
			add("ended_at <= ?", f.EndTime.UnixNano())
		}
		limit = f.Limit
	}

	var b strings.Builder
	b.WriteString("SELECT data FROM records")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY seq DESC")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return b.String(), args
}

func decodeRecord(data string) (*models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// Clear removes all records
func (s *SQLiteStorage) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// Count returns the number of stored records
func (s *SQLiteStorage) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
