package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/elenchus/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc applies _pragma parameters on every new pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS assistants (
		persona_name TEXT PRIMARY KEY,
		assistant_id TEXT NOT NULL,
		knowledge_index_id TEXT,
		model TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAssistant retrieves the record for a persona.
func (s *SQLiteStore) GetAssistant(ctx context.Context, personaName string) (*domain.AssistantRecord, error) {
	if err := validatePersona(personaName); err != nil {
		return nil, err
	}

	query := `
		SELECT persona_name, assistant_id, knowledge_index_id, model, created_at, updated_at
		FROM assistants WHERE persona_name = ?`

	row := s.db.QueryRowContext(ctx, query, personaName)

	var rec domain.AssistantRecord
	var indexID, model sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&rec.PersonaName, &rec.AssistantID, &indexID, &model, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan assistant row: %w", err)
	}

	rec.KnowledgeIndexID = indexID.String
	rec.Model = model.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &rec, nil
}

// SaveAssistant creates or replaces the record for a persona.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) SaveAssistant(ctx context.Context, rec *domain.AssistantRecord) error {
	if err := validatePersona(rec.PersonaName); err != nil {
		return err
	}
	if rec.AssistantID == "" {
		return fmt.Errorf("save assistant record: empty assistant id")
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.saveAssistantOnce(ctx, rec)
		if err == nil {
			return nil
		}
		if !isSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SaveAssistant failed with SQLITE_BUSY, retrying",
			"persona", rec.PersonaName,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("save assistant record for %s: %w", rec.PersonaName, err)
}

func (s *SQLiteStore) saveAssistantOnce(ctx context.Context, rec *domain.AssistantRecord) error {
	query := `
	INSERT INTO assistants (persona_name, assistant_id, knowledge_index_id, model, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(persona_name) DO UPDATE SET
		assistant_id = excluded.assistant_id,
		knowledge_index_id = excluded.knowledge_index_id,
		model = excluded.model,
		updated_at = excluded.updated_at`

	var indexID, model interface{}
	if rec.KnowledgeIndexID != "" {
		indexID = rec.KnowledgeIndexID
	}
	if rec.Model != "" {
		model = rec.Model
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.PersonaName, rec.AssistantID, indexID, model,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert assistant: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isSQLiteConflictError reports SQLITE_BUSY or "database is locked" errors,
// both of which warrant a retry.
func isSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
