// Package api exposes the orchestrator over HTTP. Routes map 1:1 to
// orchestrator operations; classified error kinds map to status codes.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spencerpeyrot/agent-asj/internal/agent"
	"github.com/spencerpeyrot/agent-asj/internal/domain"
	"github.com/spencerpeyrot/agent-asj/internal/logger"
)

// Handler holds the orchestrator behind the HTTP routes.
type Handler struct {
	agent *agent.Agent
}

func NewHandler(a *agent.Agent) *Handler {
	return &Handler{agent: a}
}

// Register wires routes and middleware onto an echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.L.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	e.GET("/", h.Root)
	e.POST("/session/start", h.StartSession)
	e.GET("/sessions", h.ListSessions)
	e.GET("/session/:session_id", h.GetSession)
	e.PATCH("/session/:session_id", h.RenameSession)
	e.DELETE("/session/:session_id", h.DeleteSession)
	e.POST("/message", h.PostMessage)
	e.POST("/generate/section", h.GenerateSection)
}

type errorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// writeError maps a classified error to its status code. Internal causes are
// never echoed back; only the classified user-facing message is.
func writeError(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindValidation, domain.KindTemplate:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindGeneration:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.L.Error("request failed", "error", err)
	}
	return c.JSON(status, map[string]errorBody{
		"error": {Kind: kind, Message: domain.UserMessage(err)},
	})
}

// Root returns the service banner.
// GET /
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Newsletter Builder API"})
}

type startSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// StartSession creates a new session.
// POST /session/start
func (h *Handler) StartSession(c echo.Context) error {
	var req startSessionRequest
	// An empty body is fine; the title is optional.
	_ = c.Bind(&req)

	session, err := h.agent.StartSession(c.Request().Context(), req.Title)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"session_id": string(session.ID),
		"title":      session.Title,
	})
}

// ListSessions returns session summaries, most recent first.
// GET /sessions
func (h *Handler) ListSessions(c echo.Context) error {
	summaries, err := h.agent.ListSessions(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": summaries})
}

// GetSession returns a session with its full chat history and sections.
// GET /session/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	id := domain.SessionID(c.Param("session_id"))
	session, err := h.agent.GetSession(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

// RenameSession updates a session title.
// PATCH /session/:session_id
func (h *Handler) RenameSession(c echo.Context) error {
	var req renameSessionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.Validationf("invalid JSON body"))
	}
	if req.Title == "" {
		return writeError(c, domain.Validationf("title is required"))
	}

	id := domain.SessionID(c.Param("session_id"))
	if err := h.agent.RenameSession(c.Request().Context(), id, req.Title); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"session_id": string(id),
		"title":      req.Title,
	})
}

// DeleteSession removes a session and everything it owns.
// DELETE /session/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	id := domain.SessionID(c.Param("session_id"))
	if err := h.agent.DeleteSession(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type postMessageRequest struct {
	SessionID string            `json:"session_id"`
	Speaker   string            `json:"speaker"`
	Content   string            `json:"content"`
	Timestamp string            `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PostMessage accepts a conversational turn and returns the generated
// assistant message.
// POST /message
func (h *Handler) PostMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.Validationf("invalid JSON body"))
	}
	if req.Speaker == "" {
		req.Speaker = string(domain.RoleUser)
	}

	reply, err := h.agent.HandleTurn(c.Request().Context(), domain.SessionID(req.SessionID), domain.Turn{
		Speaker:   req.Speaker,
		Content:   req.Content,
		Timestamp: req.Timestamp,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

type generateSectionRequest struct {
	SessionID   string            `json:"session_id"`
	SectionType string            `json:"section_type"`
	Context     map[string]string `json:"context"`
}

type generateSectionResponse struct {
	SectionType domain.SectionKind `json:"section_type"`
	Content     string             `json:"content"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// GenerateSection renders the section template, generates content and stores
// the artifact on the session.
// POST /generate/section
func (h *Handler) GenerateSection(c echo.Context) error {
	var req generateSectionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.Validationf("invalid JSON body"))
	}

	kind, err := domain.ParseSectionKind(req.SectionType)
	if err != nil {
		return writeError(c, err)
	}

	artifact, err := h.agent.GenerateSection(c.Request().Context(), domain.SessionID(req.SessionID), kind, req.Context)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, generateSectionResponse{
		SectionType: artifact.Kind,
		Content:     artifact.Content,
		GeneratedAt: artifact.GeneratedAt,
	})
}
