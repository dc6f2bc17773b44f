// Package domain defines the core types of the newsletter session engine:
// sessions, messages, section artifacts, the role and section enumerations,
// turn validation and the error taxonomy shared by every layer.
package domain

import (
	"fmt"
	"time"
)

type SessionID string
type MessageID string

// Role is the closed set of message speakers.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates a raw speaker value against the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s), nil
	}
	return "", Validationf("invalid speaker %q: must be one of user, assistant, system", s)
}

// SectionKind is the closed set of newsletter sections.
type SectionKind string

const (
	SectionThesis           SectionKind = "thesis"
	SectionIntroduction     SectionKind = "introduction"
	SectionActionableTrades SectionKind = "actionable_trades"
	SectionConclusion       SectionKind = "conclusion"
)

// ParseSectionKind validates a raw section type value.
func ParseSectionKind(s string) (SectionKind, error) {
	switch SectionKind(s) {
	case SectionThesis, SectionIntroduction, SectionActionableTrades, SectionConclusion:
		return SectionKind(s), nil
	}
	return "", Validationf("invalid section type %q", s)
}

// Message is a single conversational turn. Messages are immutable once
// created and are exclusively owned by their session.
type Message struct {
	ID        MessageID         `json:"id"`
	SessionID SessionID         `json:"session_id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SectionArtifact is a rendered-and-generated newsletter section. At most one
// artifact per kind is kept per session; a later generation overwrites the
// earlier one.
type SectionArtifact struct {
	Kind        SectionKind `json:"section_type"`
	Content     string      `json:"content"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Session owns an ordered, append-only message sequence and the section
// artifacts generated so far.
type Session struct {
	ID        SessionID                       `json:"session_id"`
	Title     string                          `json:"title"`
	CreatedAt time.Time                       `json:"created_at"`
	Messages  []Message                       `json:"chat_history"`
	Sections  map[SectionKind]SectionArtifact `json:"newsletter_sections,omitempty"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID           SessionID `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// DefaultTitle derives the title used when a session is created without one.
func DefaultTitle(createdAt time.Time) string {
	return fmt.Sprintf("Session %s", createdAt.Format("2006-01-02 15:04"))
}
