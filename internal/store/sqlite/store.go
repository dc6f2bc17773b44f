// Package sqlite provides the transactional SessionStore backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
)

// Store implements domain.SessionStore on a SQLite database. SQLite
// serializes writers on a single connection, which gives the per-session
// append linearization the store contract requires; appends additionally run
// in a transaction that verifies the session row first.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.SessionStore = (*Store)(nil)

// timeLayout is RFC 3339 with a fixed-width fractional second. Timestamps are
// stored as TEXT and compared lexicographically in ORDER BY, so the fraction
// must not drop trailing zeros (RFC3339Nano does, which would sort ".5Z"
// after ".52Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open opens (and migrates) the database at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A second connection to an in-memory DSN would see a different,
	// empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// WithClock overrides the store clock. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			metadata TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS sections (
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			PRIMARY KEY (session_id, kind),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	createdAt := s.now().UTC()
	if title == "" {
		title = domain.DefaultTitle(createdAt)
	}
	id := domain.SessionID(uuid.NewString())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, title, created_at) VALUES (?, ?, ?)`,
		id, title, createdAt.Format(timeLayout))
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to create session")
	}

	return &domain.Session{
		ID:        id,
		Title:     title,
		CreatedAt: createdAt,
		Messages:  []domain.Message{},
		Sections:  map[domain.SectionKind]domain.SectionArtifact{},
	}, nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var title, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, created_at FROM sessions WHERE session_id = ?`, id).
		Scan(&title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("session %s not found", id)
	}
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to load session")
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to load session")
	}
	sess := &domain.Session{
		ID:        id,
		Title:     title,
		CreatedAt: created,
		Messages:  []domain.Message{},
		Sections:  map[domain.SectionKind]domain.SectionArtifact{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, created_at, metadata
		 FROM messages WHERE session_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to load messages")
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.Message
		var msgCreated string
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &msgCreated, &metadata); err != nil {
			return nil, domain.Infrastructuref(err, "failed to scan message")
		}
		m.SessionID = id
		m.CreatedAt, err = parseTime(msgCreated)
		if err != nil {
			return nil, domain.Infrastructuref(err, "failed to scan message")
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, domain.Infrastructuref(err, "failed to decode message metadata")
			}
		}
		sess.Messages = append(sess.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Infrastructuref(err, "failed to iterate messages")
	}

	secRows, err := s.db.QueryContext(ctx,
		`SELECT kind, content, generated_at FROM sections WHERE session_id = ?`, id)
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to load sections")
	}
	defer secRows.Close()
	for secRows.Next() {
		var art domain.SectionArtifact
		var generated string
		if err := secRows.Scan(&art.Kind, &art.Content, &generated); err != nil {
			return nil, domain.Infrastructuref(err, "failed to scan section")
		}
		art.GeneratedAt, err = parseTime(generated)
		if err != nil {
			return nil, domain.Infrastructuref(err, "failed to scan section")
		}
		sess.Sections[art.Kind] = art
	}
	if err := secRows.Err(); err != nil {
		return nil, domain.Infrastructuref(err, "failed to iterate sections")
	}

	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.session_id, s.title, s.created_at, COUNT(m.message_id)
		 FROM sessions s LEFT JOIN messages m ON m.session_id = s.session_id
		 GROUP BY s.session_id
		 ORDER BY s.created_at DESC, s.session_id DESC`)
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to list sessions")
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var sum domain.SessionSummary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Title, &created, &sum.MessageCount); err != nil {
			return nil, domain.Infrastructuref(err, "failed to scan session summary")
		}
		sum.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, domain.Infrastructuref(err, "failed to scan session summary")
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Infrastructuref(err, "failed to iterate sessions")
	}
	return summaries, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.SessionID, turn domain.ValidatedTurn) (*domain.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to begin append")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("session %s not found", id)
	}
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to check session")
	}

	var metadata any
	if len(turn.Metadata) > 0 {
		raw, err := json.Marshal(turn.Metadata)
		if err != nil {
			return nil, domain.Infrastructuref(err, "failed to encode metadata")
		}
		metadata = string(raw)
	}

	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: id,
		Role:      turn.Role,
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
		Metadata:  turn.Metadata,
	}

	// seq is allocated inside the transaction, so concurrent appends to one
	// session cannot race for the same position.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, seq, role, content, created_at, metadata)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?), ?, ?, ?, ?)`,
		msg.ID, id, id, msg.Role, msg.Content, msg.CreatedAt.UTC().Format(timeLayout), metadata)
	if err != nil {
		return nil, domain.Infrastructuref(err, "failed to append message")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Infrastructuref(err, "failed to commit append")
	}
	return &msg, nil
}

func (s *Store) RenameSession(ctx context.Context, id domain.SessionID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ? WHERE session_id = ?`, title, id)
	if err != nil {
		return domain.Infrastructuref(err, "failed to rename session")
	}
	return s.requireRow(res, id)
}

func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	// Foreign keys cascade to messages and sections; the single statement is
	// atomic, so no state where messages outlive their session is observable.
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return domain.Infrastructuref(err, "failed to delete session")
	}
	return s.requireRow(res, id)
}

func (s *Store) PutSection(ctx context.Context, id domain.SessionID, artifact domain.SectionArtifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sections (session_id, kind, content, generated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, kind) DO UPDATE SET content = excluded.content, generated_at = excluded.generated_at`,
		id, artifact.Kind, artifact.Content, artifact.GeneratedAt.UTC().Format(timeLayout))
	if err != nil {
		var exists int
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&exists)
		if errors.Is(checkErr, sql.ErrNoRows) {
			return domain.NotFoundf("session %s not found", id)
		}
		return domain.Infrastructuref(err, "failed to store section")
	}
	return nil
}

func (s *Store) requireRow(res sql.Result, id domain.SessionID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Infrastructuref(err, "failed to read affected rows")
	}
	if n == 0 {
		return domain.NotFoundf("session %s not found", id)
	}
	return nil
}

// parseTime accepts both the fixed-width layout and any shorter RFC 3339
// fraction, so rows written before the layout change still load.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed stored timestamp %q: %w", s, err)
	}
	return t, nil
}
