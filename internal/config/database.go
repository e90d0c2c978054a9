package config

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver registered as "postgres"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registered as "sqlite3"
	"github.com/rongwang/library-server/internal/utils"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config, logger *utils.Logger) (*sqlx.DB, error) {
	switch cfg.Database.Driver {
	case "postgres", "pgx", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	if cfg.Database.IsSQLite() {
		// SQLite has a single writer; one connection serializes transactions
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	// Create tables if they don't exist
	if err := CreateTables(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// CreateTables creates the necessary tables in the database. The DDL is
// accepted by both PostgreSQL and SQLite.
func CreateTables(db *sqlx.DB, logger *utils.Logger) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			role VARCHAR(10) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create books table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			id VARCHAR(36) PRIMARY KEY,
			external_id VARCHAR(255) UNIQUE,
			title VARCHAR(512) NOT NULL,
			authors TEXT NOT NULL DEFAULT '[]',
			publisher VARCHAR(255) NOT NULL DEFAULT '',
			published_date VARCHAR(50) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			thumbnail VARCHAR(1024) NOT NULL DEFAULT '',
			total_copies INTEGER NOT NULL DEFAULT 1 CHECK (total_copies >= 0),
			available_copies INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			CHECK (available_copies >= 0 AND available_copies <= total_copies)
		)
	`)
	if err != nil {
		return err
	}

	// Create book_records table (borrow and return requests)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS book_records (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			book_id VARCHAR(36) NOT NULL REFERENCES books(id),
			request_type VARCHAR(10) NOT NULL CHECK (request_type IN ('borrow', 'return')),
			status VARCHAR(10) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'returned')),
			request_date TIMESTAMP NOT NULL,
			issue_date TIMESTAMP,
			return_due_date TIMESTAMP,
			return_date TIMESTAMP,
			original_record_id VARCHAR(36) REFERENCES book_records(id),
			approved_at TIMESTAMP,
			decided_by VARCHAR(36) REFERENCES users(id),
			CHECK (request_type = 'borrow' OR original_record_id IS NOT NULL)
		)
	`)
	if err != nil {
		return err
	}

	// At most one pending borrow per (user, book) and one pending return per borrow
	uniques := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_book_records_pending_borrow
			ON book_records(user_id, book_id) WHERE request_type = 'borrow' AND status = 'pending'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_book_records_pending_return
			ON book_records(original_record_id) WHERE request_type = 'return' AND status = 'pending'`,
	}
	for _, idx := range uniques {
		if _, err = db.Exec(idx); err != nil {
			return err
		}
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_book_records_user ON book_records(user_id, request_type, status)",
		"CREATE INDEX IF NOT EXISTS idx_book_records_book ON book_records(book_id)",
		"CREATE INDEX IF NOT EXISTS idx_book_records_original ON book_records(original_record_id)",
		"CREATE INDEX IF NOT EXISTS idx_book_records_request_date ON book_records(request_date)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			// Indexes are not critical
			logger.Warn("failed to create index", "error", err)
		}
	}

	return nil
}
