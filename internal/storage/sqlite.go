package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		filename TEXT NOT NULL,
		pages INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_namespace ON documents(namespace);
	CREATE INDEX IF NOT EXISTS idx_documents_ingested_at ON documents(ingested_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDocument inserts a catalog entry for one ingested document.
func (s *SQLiteStorage) RecordDocument(ctx context.Context, rec *models.DocumentRecord) error {
	if rec.IngestedAt.IsZero() {
		rec.IngestedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, namespace, filename, pages, chunk_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Namespace, rec.Filename, rec.Pages, rec.ChunkCount, rec.IngestedAt,
	)
	return err
}

// ListDocuments returns catalog entries for a namespace, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, namespace string) ([]*models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, namespace, filename, pages, chunk_count, ingested_at
		 FROM documents WHERE namespace = ? ORDER BY ingested_at DESC, id`, namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.DocumentRecord, 0)
	for rows.Next() {
		var rec models.DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Namespace, &rec.Filename, &rec.Pages, &rec.ChunkCount, &rec.IngestedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountDocuments returns the total number of catalog entries.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks across all cataloged documents.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunk_count), 0) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
