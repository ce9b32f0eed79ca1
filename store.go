package clara

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// Store wraps a SQLite connection archiving chat transcripts.
// The archive is write-only from the chat path: prompts are always built
// from in-memory session history.
type Store struct {
	db *sql.DB
}

// TranscriptMessage is one archived turn.
type TranscriptMessage struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Model     string
	CreatedAt time.Time
}

// SessionSummary describes one archived session.
type SessionSummary struct {
	ID        string
	Messages  int
	StartedAt time.Time
	LastAt    time.Time
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("clara: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("clara: open db: %w", err)
	}

	// Single connection avoids write contention for our scale
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("clara: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id         TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				model      TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
			CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return err
		}
	}
	return nil
}

// InsertMessage archives one turn and returns its ULID.
func (s *Store) InsertMessage(ctx context.Context, m TranscriptMessage) (string, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	id := ulid.MustNew(ulid.Timestamp(m.CreatedAt), ulid.DefaultEntropy()).String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, m.SessionID, string(m.Role), m.Content, m.Model, m.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SessionMessages returns every archived turn of a session in order.
func (s *Store) SessionMessages(ctx context.Context, sessionID string) ([]TranscriptMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, model, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TranscriptMessage
	for rows.Next() {
		var m TranscriptMessage
		var role, created string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Model, &created); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		m.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentSessions lists the most recently active sessions.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MIN(created_at), MAX(created_at)
		FROM messages
		GROUP BY session_id
		ORDER BY MAX(id) DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var first, last string
		if err := rows.Scan(&ss.ID, &ss.Messages, &first, &last); err != nil {
			return nil, err
		}
		ss.StartedAt, _ = time.Parse(timeLayout, first)
		ss.LastAt, _ = time.Parse(timeLayout, last)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// PruneBefore deletes turns archived before t and returns how many were removed.
func (s *Store) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, t.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
