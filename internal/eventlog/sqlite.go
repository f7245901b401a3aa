package eventlog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink appends records to the events table of a SQLite database.
type SQLiteSink struct {
	*queue
}

// NewSQLiteSink opens (or creates) the database at path.
func NewSQLiteSink(path string, buffer int, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open event database %s: %w", path, err)
	}
	// Only the drain goroutine writes.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteSink{queue: newQueue("sqlite", buffer, &sqliteWriter{db: db}, logger)}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at DATETIME NOT NULL,
		line TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init event schema: %w", err)
	}
	return nil
}

type sqliteWriter struct {
	db *sql.DB
}

func (w *sqliteWriter) writeBatch(events []string) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO events (recorded_at, line) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, event := range events {
		if _, err := stmt.Exec(now, event); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (w *sqliteWriter) close() error {
	return w.db.Close()
}
