package recorder

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists snapshot documents and pass history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent readers while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			last_updated TEXT NOT NULL,
			item_count   INTEGER NOT NULL,
			document     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS pass_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			duration_ms INTEGER,
			total       INTEGER,
			succeeded   INTEGER,
			failed      INTEGER,
			fallback    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pass_ts ON pass_history(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Load returns the most recently saved document.
func (r *SQLiteRecorder) Load() (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var raw string
	err := r.db.QueryRow(`SELECT document FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return decodeDocument([]byte(raw))
}

// Save appends the document as a new row and prunes all older rows.
func (r *SQLiteRecorder) Save(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(`INSERT INTO snapshots (timestamp, last_updated, item_count, document) VALUES (?,?,?,?)`,
		time.Now().Unix(), doc.LastUpdated.UTC().Format(time.RFC3339), len(doc.Items), string(data))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM snapshots WHERE id < ?`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordPass(evt *PassEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fallback := 0
	if evt.Fallback {
		fallback = 1
	}
	_, err := r.db.Exec(`INSERT INTO pass_history
		(timestamp, duration_ms, total, succeeded, failed, fallback)
		VALUES (?,?,?,?,?,?)`,
		evt.StartedAt.Unix(), evt.Duration.Milliseconds(),
		evt.Total, evt.Succeeded, evt.Failed, fallback,
	)
	return err
}

// PassCount returns the number of recorded passes.
func (r *SQLiteRecorder) PassCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pass_history`).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
