package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Journal format versions, kept in PRAGMA user_version:
// 0 - sessions without a label
// 1 - sessions.label
const journalVersion = 1

// Store is a call journal on disk: one SQLite file holding recorded
// sessions and the remote calls made in each.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating it when missing, and upgrades
// an older journal to the current format. Opening an up-to-date journal
// again changes nothing.
//
// Recording and trace reading can share a file: the journal runs in WAL
// mode with a busy timeout, and a single pooled connection serializes
// appends.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the journal file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("journal %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("journal version: %w", err)
	}
	if version < 1 {
		if err := addSessionLabel(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", journalVersion)); err != nil {
		return fmt.Errorf("journal version: %w", err)
	}
	return nil
}

// addSessionLabel upgrades a version 0 journal. Fresh journals already
// have the column from schema.sql.
func addSessionLabel(db *sql.DB) error {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'label'",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("upgrade journal: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec("ALTER TABLE sessions ADD COLUMN label TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("upgrade journal: %w", err)
	}
	return nil
}

// verifyPragma is a test hook comparing a pragma with its expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("pragma %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
