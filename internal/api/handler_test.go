package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/spencerpeyrot/agent-asj/internal/agent"
	"github.com/spencerpeyrot/agent-asj/internal/domain"
	"github.com/spencerpeyrot/agent-asj/internal/newsletter"
	"github.com/spencerpeyrot/agent-asj/internal/store/memory"
)

type stubGenerator struct {
	GenerateFunc func(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

func (s *stubGenerator) Generate(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if s.GenerateFunc != nil {
		return s.GenerateFunc(ctx, messages)
	}
	return "assistant says hi", nil
}

func newTestServer(gen agent.Generator) (*echo.Echo, *memory.Store) {
	store := memory.New()
	a := agent.New(store, gen, newsletter.NewEngine())
	e := echo.New()
	NewHandler(a).Register(e)
	return e, store
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createSession(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/session/start", "{}")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode(t, rec)["session_id"].(string)
}

func TestRoot(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	rec := doJSON(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Newsletter Builder API", decode(t, rec)["message"])
}

func TestStartSession(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	rec := doJSON(e, http.MethodPost, "/session/start", `{"title":"My Letter"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	require.NotEmpty(t, body["session_id"])
	require.Equal(t, "My Letter", body["title"])
}

func TestGetSession_NotFound(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	rec := doJSON(e, http.MethodGet, "/session/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	errObj := body["error"].(map[string]any)
	require.Equal(t, "not_found", errObj["kind"])
}

func TestPostMessage_ChatFlow(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPost, "/message",
		`{"session_id":"`+id+`","speaker":"user","content":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "assistant", body["role"])
	require.Equal(t, "assistant says hi", body["content"])

	// The session now holds both turns.
	rec = doJSON(e, http.MethodGet, "/session/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode(t, rec)["chat_history"].([]any)
	require.Len(t, history, 2)

	rec = doJSON(e, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode(t, rec)["sessions"].([]any)
	require.Len(t, sessions, 1)
	require.Equal(t, float64(2), sessions[0].(map[string]any)["message_count"])
}

func TestPostMessage_ValidationFailure(t *testing.T) {
	e, store := newTestServer(&stubGenerator{})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPost, "/message",
		`{"session_id":"`+id+`","speaker":"user","content":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj := decode(t, rec)["error"].(map[string]any)
	require.Equal(t, "validation", errObj["kind"])

	sess, err := store.GetSession(context.Background(), domain.SessionID(id))
	require.NoError(t, err)
	require.Empty(t, sess.Messages)
}

func TestPostMessage_InvalidSpeaker(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPost, "/message",
		`{"session_id":"`+id+`","speaker":"robot","content":"hi"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessage_UnknownSession(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	rec := doJSON(e, http.MethodPost, "/message",
		`{"session_id":"missing","speaker":"user","content":"hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessage_GenerationFailureIs503(t *testing.T) {
	gen := &stubGenerator{
		GenerateFunc: func(context.Context, []openai.ChatCompletionMessage) (string, error) {
			return "", domain.Generationf(errors.New("down"), "text generation failed after 2 attempt(s)")
		},
	}
	e, store := newTestServer(gen)
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPost, "/message",
		`{"session_id":"`+id+`","speaker":"user","content":"Hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	errObj := decode(t, rec)["error"].(map[string]any)
	require.Equal(t, "generation", errObj["kind"])
	// Internal cause detail stays out of the response.
	require.NotContains(t, rec.Body.String(), "down")

	sess, err := store.GetSession(context.Background(), domain.SessionID(id))
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
}

func TestGenerateSection(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{
		GenerateFunc: func(_ context.Context, messages []openai.ChatCompletionMessage) (string, error) {
			return "A thesis about AI.", nil
		},
	})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPost, "/generate/section",
		`{"session_id":"`+id+`","section_type":"thesis","context":{"topic":"AI"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "thesis", body["section_type"])
	require.Equal(t, "A thesis about AI.", body["content"])

	rec = doJSON(e, http.MethodGet, "/session/"+id, "")
	sections := decode(t, rec)["newsletter_sections"].(map[string]any)
	require.Contains(t, sections, "thesis")
}

func TestGenerateSection_BadRequests(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPost, "/generate/section",
		`{"session_id":"`+id+`","section_type":"appendix","context":{"topic":"AI"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/generate/section",
		`{"session_id":"`+id+`","section_type":"thesis","context":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj := decode(t, rec)["error"].(map[string]any)
	require.Equal(t, "template", errObj["kind"])
	require.Contains(t, errObj["message"], "topic")

	rec = doJSON(e, http.MethodPost, "/generate/section",
		`{"session_id":"missing","section_type":"thesis","context":{"topic":"AI"}}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenameSession(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodPatch, "/session/"+id, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/session/"+id, "")
	require.Equal(t, "Renamed", decode(t, rec)["title"])

	rec = doJSON(e, http.MethodPatch, "/session/"+id, `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/session/missing", `{"title":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	e, _ := newTestServer(&stubGenerator{})
	id := createSession(t, e)

	rec := doJSON(e, http.MethodDelete, "/session/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodGet, "/session/"+id, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodDelete, "/session/"+id, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
