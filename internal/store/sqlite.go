package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/screentech/pressassist/internal/domain"
	"github.com/screentech/pressassist/internal/shared"
	_ "modernc.org/sqlite"
)

// ErrCorruptRecord wraps deserialization failures of stored JSON. Callers see
// it only when the store is configured to treat corruption as fatal.
var ErrCorruptRecord = errors.New("corrupt stored record")

// activeProfileRow is the fixed primary key of the single active-profile row.
const activeProfileRow = 1

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
	// transcriptMu serializes transcript writes so no two writes to the same
	// serial's transcript may interleave (single-writer contract).
	transcriptMu sync.Mutex
	// resetCorrupt controls whether undecodable records are treated as empty
	// (true) or surfaced as load errors (false).
	resetCorrupt bool
}

// Options tune store behavior beyond the database path.
type Options struct {
	// ResetCorruptRecords treats records that fail to deserialize as absent
	// instead of returning ErrCorruptRecord.
	ResetCorruptRecords bool
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, resetCorrupt: opts.ResetCorruptRecords}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS active_profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		profile_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		serial_number TEXT PRIMARY KEY,
		messages_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS knowledge_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		serial_number TEXT NOT NULL,
		issue TEXT NOT NULL,
		solution TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_serial ON knowledge_entries(serial_number, seq);
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

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetActiveProfile returns the active-profile pointer, or nil when absent.
func (s *SQLiteStore) GetActiveProfile(ctx context.Context) (*domain.PressProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT profile_json FROM active_profile WHERE id = ?`, activeProfileRow)

	var profileJSON string
	err := row.Scan(&profileJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan active profile: %w", err)
	}

	var profile domain.PressProfile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		if s.resetCorrupt {
			slog.Warn("Resetting corrupt active profile record", "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: active profile: %v", ErrCorruptRecord, err)
	}
	return &profile, nil
}

// SetActiveProfile stores the active-profile pointer.
func (s *SQLiteStore) SetActiveProfile(ctx context.Context, profile *domain.PressProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal active profile: %w", err)
	}

	query := `
		INSERT INTO active_profile (id, profile_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile_json = excluded.profile_json,
			updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, activeProfileRow, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("set active profile: %w", err)
	}
	return nil
}

// ClearActiveProfile removes the active-profile pointer.
func (s *SQLiteStore) ClearActiveProfile(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM active_profile WHERE id = ?`, activeProfileRow); err != nil {
		return fmt.Errorf("clear active profile: %w", err)
	}
	return nil
}

// GetTranscript returns the ordered message history for a serial number.
func (s *SQLiteStore) GetTranscript(ctx context.Context, serial string) ([]domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM transcripts WHERE serial_number = ?`, serial)

	var messagesJSON string
	err := row.Scan(&messagesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		if s.resetCorrupt {
			slog.Warn("Resetting corrupt transcript record", "serial", serial, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: transcript for %s: %v", ErrCorruptRecord, serial, err)
	}
	return messages, nil
}

// SaveTranscript overwrites the full transcript for a serial number.
// Persistence is full-overwrite: O(transcript length) per write.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, serial string, messages []domain.Message) error {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO transcripts (serial_number, messages_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(serial_number) DO UPDATE SET
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`

	err = s.execWithRetry(ctx, query, serial, string(data), now, now)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// DeleteTranscript removes the transcript for a serial number.
func (s *SQLiteStore) DeleteTranscript(ctx context.Context, serial string) error {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	if err := s.execWithRetry(ctx,
		`DELETE FROM transcripts WHERE serial_number = ?`, serial); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// GetKnowledge returns the knowledge base for a serial number in insertion order.
func (s *SQLiteStore) GetKnowledge(ctx context.Context, serial string) ([]domain.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, serial_number, issue, solution, recorded_at
		FROM knowledge_entries WHERE serial_number = ? ORDER BY seq`, serial)
	if err != nil {
		return nil, fmt.Errorf("query knowledge entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close knowledge rows", "error", closeErr)
		}
	}()

	var entries []domain.KnowledgeEntry
	for rows.Next() {
		var entry domain.KnowledgeEntry
		var recordedAt int64
		if err := rows.Scan(&entry.ID, &entry.SerialNumber, &entry.Issue, &entry.Solution, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		entry.RecordedAt = time.Unix(recordedAt, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge entries: %w", err)
	}
	return entries, nil
}

// AppendKnowledge appends one entry to a serial's knowledge base.
func (s *SQLiteStore) AppendKnowledge(ctx context.Context, entry *domain.KnowledgeEntry) error {
	query := `
		INSERT INTO knowledge_entries (id, serial_number, issue, solution, recorded_at)
		VALUES (?, ?, ?, ?, ?)`
	err := s.execWithRetry(ctx, query,
		entry.ID, entry.SerialNumber, entry.Issue, entry.Solution, entry.RecordedAt.Unix())
	if err != nil {
		return fmt.Errorf("append knowledge entry: %w", err)
	}
	return nil
}

// execWithRetry executes a statement, retrying with exponential backoff on
// SQLite concurrency errors.
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...interface{}) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "attempt", i+1, "delay", delay)
		time.Sleep(delay)
	}
	return err
}
