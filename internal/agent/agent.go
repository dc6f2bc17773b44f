// Package agent orchestrates conversation turns: validate, persist the
// inbound turn, build the bounded context window, generate, persist the
// response. The per-request flow is driven by a finite state machine so each
// transition and its failure mode is explicit.
package agent

import (
	"context"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
	"github.com/spencerpeyrot/agent-asj/internal/logger"
	"github.com/spencerpeyrot/agent-asj/internal/newsletter"
)

// Generator produces text from a role-annotated message list. Implemented by
// generation.Client; stubbed in tests.
type Generator interface {
	Generate(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// FSM states of a single turn request.
type FSMState stateless.State

var (
	StateValidating         FSMState = "Validating"
	StatePersistingInbound  FSMState = "PersistingInbound"
	StateBuildingContext    FSMState = "BuildingContext"
	StateGenerating         FSMState = "Generating"
	StatePersistingOutbound FSMState = "PersistingOutbound"
	StateComplete           FSMState = "Complete"
	StateFailed             FSMState = "Failed"
)

// FSM triggers.
type FSMTrigger stateless.Trigger

var (
	TriggerStart          FSMTrigger = "Start"
	TriggerValidated      FSMTrigger = "Validated"
	TriggerInboundStored  FSMTrigger = "InboundStored"
	TriggerContextBuilt   FSMTrigger = "ContextBuilt"
	TriggerGenerated      FSMTrigger = "Generated"
	TriggerOutboundStored FSMTrigger = "OutboundStored"
	TriggerFailed         FSMTrigger = "Failed"
)

// Agent composes the session store, the generation client and the template
// engine. All collaborators are injected at construction; there are no lazy
// module-level singletons.
type Agent struct {
	store     domain.SessionStore
	generator Generator
	templates *newsletter.Engine
	window    WindowPolicy
	now       func() time.Time
}

func New(store domain.SessionStore, generator Generator, templates *newsletter.Engine) *Agent {
	return &Agent{
		store:     store,
		generator: generator,
		templates: templates,
		window:    defaultWindow,
		now:       time.Now,
	}
}

// WithWindow overrides the context window policy.
func (a *Agent) WithWindow(policy WindowPolicy) *Agent {
	a.window = policy
	return a
}

// WithClock overrides the clock. Test hook.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// turnPipeline carries the request through the FSM.
type turnPipeline struct {
	sessionID domain.SessionID
	turn      domain.Turn

	validated domain.ValidatedTurn
	prompt    []openai.ChatCompletionMessage
	text      string
	inbound   *domain.Message
	assistant *domain.Message
	err       error
}

// HandleTurn runs one conversational turn end to end and returns the stored
// assistant message. A validation failure mutates nothing; a generation
// failure leaves the inbound turn persisted so the caller can retry.
func (a *Agent) HandleTurn(ctx context.Context, sessionID domain.SessionID, turn domain.Turn) (*domain.Message, error) {
	p := &turnPipeline{sessionID: sessionID, turn: turn}
	fsm := stateless.NewStateMachine(StateValidating)

	fail := func(ctx context.Context, fsm *stateless.StateMachine, err error) error {
		p.err = err
		return fsm.FireCtx(ctx, TriggerFailed)
	}

	fsm.Configure(StateValidating).
		PermitReentry(TriggerStart).
		OnEntry(func(ctx context.Context, _ ...any) error {
			validated, err := domain.ValidateTurn(p.turn, a.now)
			if err != nil {
				return fail(ctx, fsm, err)
			}
			p.validated = validated
			return fsm.FireCtx(ctx, TriggerValidated)
		}).
		Permit(TriggerValidated, StatePersistingInbound).
		Permit(TriggerFailed, StateFailed)

	fsm.Configure(StatePersistingInbound).
		OnEntry(func(ctx context.Context, _ ...any) error {
			inbound, err := a.store.AppendMessage(ctx, p.sessionID, p.validated)
			if err != nil {
				return fail(ctx, fsm, err)
			}
			p.inbound = inbound
			return fsm.FireCtx(ctx, TriggerInboundStored)
		}).
		Permit(TriggerInboundStored, StateBuildingContext).
		Permit(TriggerFailed, StateFailed)

	fsm.Configure(StateBuildingContext).
		OnEntry(func(ctx context.Context, _ ...any) error {
			session, err := a.store.GetSession(ctx, p.sessionID)
			if err != nil {
				return fail(ctx, fsm, err)
			}
			p.prompt = BuildContext(session.Messages, a.window)
			return fsm.FireCtx(ctx, TriggerContextBuilt)
		}).
		Permit(TriggerContextBuilt, StateGenerating).
		Permit(TriggerFailed, StateFailed)

	fsm.Configure(StateGenerating).
		OnEntry(func(ctx context.Context, _ ...any) error {
			text, err := a.generator.Generate(ctx, p.prompt)
			if err != nil {
				// The inbound turn stays persisted; the user keeps their
				// input and can retry.
				return fail(ctx, fsm, err)
			}
			p.text = text
			return fsm.FireCtx(ctx, TriggerGenerated)
		}).
		Permit(TriggerGenerated, StatePersistingOutbound).
		Permit(TriggerFailed, StateFailed)

	fsm.Configure(StatePersistingOutbound).
		OnEntry(func(ctx context.Context, _ ...any) error {
			assistant, err := a.store.AppendMessage(ctx, p.sessionID, domain.ValidatedTurn{
				Role:      domain.RoleAssistant,
				Content:   p.text,
				CreatedAt: a.now(),
			})
			if err != nil {
				return fail(ctx, fsm, err)
			}
			p.assistant = assistant
			return fsm.FireCtx(ctx, TriggerOutboundStored)
		}).
		Permit(TriggerOutboundStored, StateComplete).
		Permit(TriggerFailed, StateFailed)

	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		logger.L.Error("turn pipeline fire failed", "session_id", p.sessionID, "error", err)
		if p.err == nil {
			p.err = domain.Infrastructuref(err, "turn pipeline failed")
		}
	}

	if state := fsm.MustState(); state != StateComplete {
		if p.err == nil {
			p.err = domain.Infrastructuref(nil, "turn pipeline ended in state %v", state)
		}
		logger.L.Warn("turn failed", "session_id", p.sessionID, "state", state, "error", p.err)
		return nil, p.err
	}

	logger.L.Info("turn completed",
		"session_id", p.sessionID,
		"inbound_id", p.inbound.ID,
		"assistant_id", p.assistant.ID)
	return p.assistant, nil
}

// GenerateSection renders the named section template, generates its content
// and stores the artifact on the session, overwriting any earlier artifact
// of the same kind.
func (a *Agent) GenerateSection(ctx context.Context, sessionID domain.SessionID, kind domain.SectionKind, vars map[string]string) (*domain.SectionArtifact, error) {
	if _, err := a.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	prompt, err := a.templates.Render(kind, vars)
	if err != nil {
		return nil, err
	}

	text, err := a.generator.Generate(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sectionSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	artifact := domain.SectionArtifact{
		Kind:        kind,
		Content:     text,
		GeneratedAt: a.now(),
	}
	if err := a.store.PutSection(ctx, sessionID, artifact); err != nil {
		return nil, err
	}

	logger.L.Info("section generated", "session_id", sessionID, "section_type", kind)
	return &artifact, nil
}

// StartSession creates a new session.
func (a *Agent) StartSession(ctx context.Context, title string) (*domain.Session, error) {
	session, err := a.store.CreateSession(ctx, title)
	if err != nil {
		return nil, err
	}
	logger.L.Info("session started", "session_id", session.ID)
	return session, nil
}

// GetSession returns a session with its full history.
func (a *Agent) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return a.store.GetSession(ctx, id)
}

// ListSessions returns session summaries, most recently created first.
func (a *Agent) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return a.store.ListSessions(ctx)
}

// RenameSession updates a session title.
func (a *Agent) RenameSession(ctx context.Context, id domain.SessionID, title string) error {
	return a.store.RenameSession(ctx, id, title)
}

// DeleteSession removes a session and everything it owns.
func (a *Agent) DeleteSession(ctx context.Context, id domain.SessionID) error {
	if err := a.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	logger.L.Info("session deleted", "session_id", id)
	return nil
}
