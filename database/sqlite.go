package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// DSNOptions are appended to every data source name:
//   - _journal_mode=WAL lets audit review and verification read concurrently
//     with appends, each seeing a consistent snapshot
//   - _busy_timeout bounds waiting on the cross-process write lock
//   - _txlock=immediate makes transactions take the write lock up front, so
//     the append engine's read-tail-then-insert runs under one lock even when
//     a second process (e.g. the admin tool) has the same file open
//   - _foreign_keys=on, matching the host schema expectations
const DSNOptions = "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

// OpenDB initializes the SQLite database connection
func OpenDB(dataSourceName string) error {
	var err error
	db, err = sql.Open("sqlite3", dataSourceName+DSNOptions)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// InitializeDatabase opens the database connection and runs migrations
func InitializeDatabase(dataSourceName string) error {
	if err := OpenDB(dataSourceName); err != nil {
		return err
	}

	// Run migrations
	if err := RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("✅ Database initialized successfully")
	return nil
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// CloseDB closes the database connection
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
