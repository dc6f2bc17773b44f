package domain

import "context"

// SessionStore is the single source of truth for sessions and their ordered
// message sequences. Implementations must serialize appends to the same
// session so stored order reflects acceptance order, and must make session
// deletion cascade atomically over messages and sections.
type SessionStore interface {
	// CreateSession allocates a new session. An empty title gets the
	// timestamp-derived default.
	CreateSession(ctx context.Context, title string) (*Session, error)

	// GetSession returns the session with its full ordered message history
	// and section artifacts.
	GetSession(ctx context.Context, id SessionID) (*Session, error)

	// ListSessions returns summaries, most recently created first.
	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// AppendMessage atomically appends a validated turn to an existing
	// session and returns the stored message. The unknown session is never
	// implicitly created.
	AppendMessage(ctx context.Context, id SessionID, turn ValidatedTurn) (*Message, error)

	// RenameSession updates the session title.
	RenameSession(ctx context.Context, id SessionID, title string) error

	// DeleteSession removes the session and all its messages and sections.
	DeleteSession(ctx context.Context, id SessionID) error

	// PutSection stores a section artifact, overwriting a previous artifact
	// of the same kind in the same session.
	PutSection(ctx context.Context, id SessionID, artifact SectionArtifact) error
}
