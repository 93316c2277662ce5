// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists stage, dispatch guards, finalized flags and the dispatch ledger

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/coven-script/internal/stage"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			stage           TEXT,
			finalized       INTEGER NOT NULL DEFAULT 0,
			updated_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);

		CREATE TABLE IF NOT EXISTS dispatched_stages (
			conversation_id TEXT NOT NULL,
			stage           TEXT NOT NULL,
			dispatched_at   TEXT NOT NULL,
			PRIMARY KEY (conversation_id, stage)
		);

		CREATE TABLE IF NOT EXISTS dispatch_log (
			record_id       TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			stage           TEXT NOT NULL,
			outcome         TEXT NOT NULL,
			error           TEXT,
			at              TEXT NOT NULL,

			CHECK (outcome IN ('completed', 'failed', 'duplicate', 'unknown_stage'))
		);

		CREATE INDEX IF NOT EXISTS idx_dispatch_log_conversation ON dispatch_log(conversation_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// decodeStage maps a stored name back to a Stage. Unrecognized names decode to
// stage.Unknown so the dispatcher can run its recovery path.
func (s *SQLiteStore) decodeStage(id, name string) stage.Stage {
	st, err := stage.Parse(name)
	if err != nil {
		s.logger.Warn("unrecognized stored stage", "conversation", id, "stage", name)
		return stage.Unknown
	}
	return st
}

// GetStage returns the current stage of a conversation.
func (s *SQLiteStore) GetStage(ctx context.Context, id string) (stage.Stage, bool, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT stage FROM conversations WHERE conversation_id = ?`, id,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return stage.Unknown, false, nil
	}
	if err != nil {
		return stage.Unknown, false, fmt.Errorf("getting stage: %w", err)
	}
	if !name.Valid {
		return stage.Unknown, false, nil
	}
	return s.decodeStage(id, name.String), true, nil
}

// SetStage overwrites the current stage.
func (s *SQLiteStore) SetStage(ctx context.Context, id string, st stage.Stage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, stage, finalized, updated_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			stage = excluded.stage,
			updated_at = excluded.updated_at
	`, id, st.String(), s.timestamp())
	if err != nil {
		return fmt.Errorf("setting stage: %w", err)
	}
	return nil
}

// IsDispatched reports whether the stage's guard is set.
func (s *SQLiteStore) IsDispatched(ctx context.Context, id string, st stage.Stage) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dispatched_stages WHERE conversation_id = ? AND stage = ?`,
		id, st.String(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking dispatch guard: %w", err)
	}
	return n > 0, nil
}

// MarkDispatched sets the stage's guard.
func (s *SQLiteStore) MarkDispatched(ctx context.Context, id string, st stage.Stage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dispatched_stages (conversation_id, stage, dispatched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id, stage) DO NOTHING
	`, id, st.String(), now); err != nil {
		return fmt.Errorf("marking dispatched: %w", err)
	}
	if err := touchConversation(ctx, tx, id, now); err != nil {
		return err
	}

	return tx.Commit()
}

// IsFinalized reports whether the conversation is finalized.
func (s *SQLiteStore) IsFinalized(ctx context.Context, id string) (bool, error) {
	var finalized bool
	err := s.db.QueryRowContext(ctx,
		`SELECT finalized FROM conversations WHERE conversation_id = ?`, id,
	).Scan(&finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking finalized: %w", err)
	}
	return finalized, nil
}

// Finalize marks the conversation finalized.
func (s *SQLiteStore) Finalize(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, stage, finalized, updated_at)
		VALUES (?, NULL, 1, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			finalized = 1,
			updated_at = excluded.updated_at
	`, id, s.timestamp())
	if err != nil {
		return fmt.Errorf("finalizing conversation: %w", err)
	}
	return nil
}

// Reset forgets the conversation's tracking state. The ledger is kept.
func (s *SQLiteStore) Reset(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispatched_stages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("clearing dispatch guards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("clearing conversation: %w", err)
	}

	return tx.Commit()
}

// Unmark clears one stage's dispatch guard.
func (s *SQLiteStore) Unmark(ctx context.Context, id string, st stage.Stage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM dispatched_stages WHERE conversation_id = ? AND stage = ?
	`, id, st.String())
	if err != nil {
		return fmt.Errorf("clearing dispatch guard: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations SET updated_at = ? WHERE conversation_id = ?
		`, s.timestamp(), id); err != nil {
			return fmt.Errorf("touching conversation: %w", err)
		}
	}

	return tx.Commit()
}

// touchConversation ensures a conversations row exists and bumps updated_at.
func touchConversation(ctx context.Context, tx *sql.Tx, id, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, stage, finalized, updated_at)
		VALUES (?, NULL, 0, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, now)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return nil
}

// Get returns a snapshot of one conversation.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var (
		name      sql.NullString
		finalized bool
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stage, finalized, updated_at FROM conversations WHERE conversation_id = ?`, id,
	).Scan(&name, &finalized, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	c, err := s.buildConversation(id, name, finalized, updatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.loadDispatched(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns conversations, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, stage, finalized, updated_at
		FROM conversations
		ORDER BY updated_at DESC, conversation_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var result []*Conversation
	for rows.Next() {
		var (
			id        string
			name      sql.NullString
			finalized bool
			updatedAt string
		)
		if err := rows.Scan(&id, &name, &finalized, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c, err := s.buildConversation(id, name, finalized, updatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	for _, c := range result {
		if err := s.loadDispatched(ctx, c); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *SQLiteStore) buildConversation(id string, name sql.NullString, finalized bool, updatedAt string) (*Conversation, error) {
	ts, err := time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at for %s: %w", id, err)
	}
	c := &Conversation{
		ID:        id,
		Finalized: finalized,
		UpdatedAt: ts,
	}
	if name.Valid {
		c.Stage = s.decodeStage(id, name.String)
		c.HasStage = true
	}
	return c, nil
}

func (s *SQLiteStore) loadDispatched(ctx context.Context, c *Conversation) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage FROM dispatched_stages WHERE conversation_id = ?`, c.ID)
	if err != nil {
		return fmt.Errorf("loading dispatch guards: %w", err)
	}
	defer rows.Close()

	set := make(map[stage.Stage]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning dispatch guard: %w", err)
		}
		if st, err := stage.Parse(name); err == nil {
			set[st] = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating dispatch guards: %w", err)
	}

	for _, st := range stage.All() {
		if set[st] {
			c.Dispatched = append(c.Dispatched, st)
		}
	}
	return nil
}

// RecordDispatch appends a ledger record.
func (s *SQLiteStore) RecordDispatch(ctx context.Context, rec *DispatchRecord) error {
	at := rec.At
	if at.IsZero() {
		at = s.now()
	}

	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_log (record_id, conversation_id, stage, outcome, error, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ConversationID, rec.Stage.String(), string(rec.Outcome), errText, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording dispatch: %w", err)
	}
	return nil
}

// ListDispatches returns ledger records for a conversation, newest first.
func (s *SQLiteStore) ListDispatches(ctx context.Context, conversationID string, limit int) ([]*DispatchRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, conversation_id, stage, outcome, error, at
		FROM dispatch_log
		WHERE conversation_id = ?
		ORDER BY at DESC, rowid DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dispatches: %w", err)
	}
	defer rows.Close()

	var result []*DispatchRecord
	for rows.Next() {
		var (
			rec     DispatchRecord
			name    string
			outcome string
			errText sql.NullString
			at      string
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &name, &outcome, &errText, &at); err != nil {
			return nil, fmt.Errorf("scanning dispatch: %w", err)
		}
		rec.Stage = s.decodeStage(rec.ConversationID, name)
		rec.Outcome = DispatchOutcome(outcome)
		rec.Error = errText.String
		if rec.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parsing dispatch time: %w", err)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatches: %w", err)
	}
	return result, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
