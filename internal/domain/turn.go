package domain

import (
	"strings"
	"time"
)

// Turn is an inbound conversational turn as received from a client, before
// any validation.
type Turn struct {
	Speaker   string            `json:"speaker"`
	Content   string            `json:"content"`
	Timestamp string            `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ValidatedTurn is a turn that passed validation. Content is the trimmed
// form; trimming is a normalizing side effect of validation.
type ValidatedTurn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
	Metadata  map[string]string
}

// ValidateTurn checks structural well-formedness of a turn and returns its
// normalized form. It never touches storage.
//
// Rules: content must be non-empty after trimming leading and trailing
// whitespace; the speaker must be one of the closed role set; the timestamp,
// when supplied, must be an RFC 3339 instant. An absent timestamp defaults
// to now.
func ValidateTurn(t Turn, now func() time.Time) (ValidatedTurn, error) {
	content := strings.TrimSpace(t.Content)
	if content == "" {
		return ValidatedTurn{}, Validationf("content cannot be empty or just whitespace")
	}

	role, err := ParseRole(t.Speaker)
	if err != nil {
		return ValidatedTurn{}, err
	}

	createdAt := now()
	if t.Timestamp != "" {
		createdAt, err = time.Parse(time.RFC3339, t.Timestamp)
		if err != nil {
			return ValidatedTurn{}, Validationf("invalid timestamp %q: must be RFC 3339, e.g. 2026-01-02T15:04:05Z", t.Timestamp)
		}
	}

	return ValidatedTurn{
		Role:      role,
		Content:   content,
		CreatedAt: createdAt,
		Metadata:  t.Metadata,
	}, nil
}
