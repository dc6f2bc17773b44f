// Package memory provides an in-memory SessionStore, used by tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
)

type record struct {
	session  domain.Session
	messages []domain.Message
	sections map[domain.SectionKind]domain.SectionArtifact
}

// Store keeps all sessions behind a single mutex. Appends to the same
// session serialize on it, so stored order is acceptance order.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*record
	now      func() time.Time
}

var _ domain.SessionStore = (*Store)(nil)

func New() *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*record),
		now:      time.Now,
	}
}

// WithClock overrides the store clock. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	if title == "" {
		title = domain.DefaultTitle(createdAt)
	}

	rec := &record{
		session: domain.Session{
			ID:        domain.SessionID(uuid.NewString()),
			Title:     title,
			CreatedAt: createdAt,
		},
		sections: make(map[domain.SectionKind]domain.SectionArtifact),
	}
	s.sessions[rec.session.ID] = rec

	out := rec.snapshot()
	return &out, nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, domain.NotFoundf("session %s not found", id)
	}
	out := rec.snapshot()
	return &out, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, rec := range s.sessions {
		summaries = append(summaries, domain.SessionSummary{
			ID:           rec.session.ID,
			Title:        rec.session.Title,
			CreatedAt:    rec.session.CreatedAt,
			MessageCount: len(rec.messages),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID > summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.SessionID, turn domain.ValidatedTurn) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, domain.NotFoundf("session %s not found", id)
	}

	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: id,
		Role:      turn.Role,
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
		Metadata:  copyMetadata(turn.Metadata),
	}
	rec.messages = append(rec.messages, msg)
	return &msg, nil
}

// copyMetadata detaches the stored message from the caller's map; a caller
// mutating its map after append must not edit stored history.
func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) RenameSession(ctx context.Context, id domain.SessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return domain.NotFoundf("session %s not found", id)
	}
	rec.session.Title = title
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.NotFoundf("session %s not found", id)
	}
	// Deleting the record drops messages and sections with it; no partial
	// state is observable.
	delete(s.sessions, id)
	return nil
}

func (s *Store) PutSection(ctx context.Context, id domain.SessionID, artifact domain.SectionArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return domain.NotFoundf("session %s not found", id)
	}
	rec.sections[artifact.Kind] = artifact
	return nil
}

// snapshot copies the record so callers never observe later mutations.
func (r *record) snapshot() domain.Session {
	out := r.session
	out.Messages = make([]domain.Message, len(r.messages))
	copy(out.Messages, r.messages)
	for i := range out.Messages {
		out.Messages[i].Metadata = copyMetadata(out.Messages[i].Metadata)
	}
	out.Sections = make(map[domain.SectionKind]domain.SectionArtifact, len(r.sections))
	for k, v := range r.sections {
		out.Sections[k] = v
	}
	return out
}
