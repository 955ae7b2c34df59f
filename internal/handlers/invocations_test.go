package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secadvisor/internal/agent"
	"secadvisor/internal/history"
)

const s3Checklist = "AWS Service: S3\n\nSecurity Controls:\n\n1. Block Public Access\n   Objective:\n   - Prevent public exposure\n"

type fakeAgent struct {
	called  bool
	prompts []*string
	result  *agent.Result
	err     error
}

func (f *fakeAgent) Invoke(ctx context.Context, prompt *string) (*agent.Result, error) {
	f.called = true
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRecorder struct {
	entries []history.Entry
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, e history.Entry) error {
	f.entries = append(f.entries, e)
	return f.err
}

func textResult(s string) *agent.Result {
	return &agent.Result{
		Message:    agent.Message{Role: "assistant", Content: []agent.ContentBlock{{Text: s}}},
		StopReason: "end_turn",
		Usage:      agent.Usage{InputTokens: 100, OutputTokens: 200, TotalTokens: 300},
		ToolCalls:  []agent.ToolCall{{ID: "tu-1", Name: "http_request"}},
	}
}

func newTestHandler(a Invoker, rec history.Recorder) *InvocationHandler {
	log, _ := test.NewNullLogger()
	h := NewInvocationHandler(a, rec, log)
	h.newID = func() string { return "inv-test" }
	return h
}

func TestExtractPrompt(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    *string
	}{
		{"string", map[string]any{"prompt": "S3"}, aws.String("S3")},
		{"verbatim", map[string]any{"prompt": "  Amazon M2 \n"}, aws.String("  Amazon M2 \n")},
		{"empty string", map[string]any{"prompt": ""}, aws.String("")},
		{"missing", map[string]any{"other": "x"}, nil},
		{"null", map[string]any{"prompt": nil}, nil},
		{"nil payload", nil, nil},
		{"number", map[string]any{"prompt": float64(42)}, aws.String("42")},
		{"object", map[string]any{"prompt": map[string]any{"service": "EC2"}}, aws.String(`{"service":"EC2"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractPrompt(tc.payload))
		})
	}
}

func TestHandleForwardsPromptAndReturnsMessage(t *testing.T) {
	res := textResult(s3Checklist)
	fa := &fakeAgent{result: res}
	rec := &fakeRecorder{}
	h := newTestHandler(fa, rec)

	msg, err := h.Handle(context.Background(), map[string]any{"prompt": "S3"})
	require.NoError(t, err)

	require.Len(t, fa.prompts, 1)
	assert.Equal(t, "S3", aws.ToString(fa.prompts[0]))
	assert.Equal(t, res.Message, msg)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, "inv-test", e.InvocationID)
	assert.Equal(t, "S3", aws.ToString(e.Prompt))
	assert.Equal(t, s3Checklist, e.Response)
	assert.Equal(t, []string{"http_request"}, e.ToolCalls)
	assert.Equal(t, int32(200), e.OutputTokens)
}

func TestHandleMissingPromptForwardsNil(t *testing.T) {
	fa := &fakeAgent{err: agent.ErrNoPrompt}
	rec := &fakeRecorder{}
	h := newTestHandler(fa, rec)

	_, err := h.Handle(context.Background(), map[string]any{})
	assert.True(t, fa.called, "agent must be invoked even without a prompt")
	require.Len(t, fa.prompts, 1)
	assert.Nil(t, fa.prompts[0])
	assert.ErrorIs(t, err, agent.ErrNoPrompt)

	require.Len(t, rec.entries, 1)
	assert.Nil(t, rec.entries[0].Prompt)
	assert.Equal(t, agent.ErrNoPrompt.Error(), rec.entries[0].Err)
}

func TestHandleHistoryFailureDoesNotChangeResponse(t *testing.T) {
	res := textResult(s3Checklist)
	h := newTestHandler(&fakeAgent{result: res}, &fakeRecorder{err: errors.New("throttled")})

	msg, err := h.Handle(context.Background(), map[string]any{"prompt": "S3"})
	require.NoError(t, err)
	assert.Equal(t, res.Message, msg)
}

func TestHandleOffTemplateReplyReturnedUnchanged(t *testing.T) {
	reply := "Amazon M2 is ambiguous. Did you mean AWS Mainframe Modernization?"
	h := newTestHandler(&fakeAgent{result: textResult(reply)}, nil)

	msg, err := h.Handle(context.Background(), map[string]any{"prompt": "M2"})
	require.NoError(t, err)
	assert.Equal(t, reply, msg.Text())
}

func newTestServer(a Invoker) *echo.Echo {
	e := echo.New()
	NewServer(newTestHandler(a, nil)).RegisterRoutes(e)
	return e
}

func TestInvocationsEndpoint(t *testing.T) {
	t.Run("S3 checklist", func(t *testing.T) {
		fa := &fakeAgent{result: textResult(s3Checklist)}
		e := newTestServer(fa)

		req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(`{"prompt":"S3"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var msg agent.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
		assert.Equal(t, "assistant", msg.Role)
		assert.True(t, strings.HasPrefix(msg.Text(), "AWS Service: S3"))
		assert.Contains(t, msg.Text(), "Security Controls:")
		assert.Equal(t, "S3", aws.ToString(fa.prompts[0]))
	})

	t.Run("Empty object reaches agent", func(t *testing.T) {
		fa := &fakeAgent{err: agent.ErrNoPrompt}
		e := newTestServer(fa)

		req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.True(t, fa.called)
		assert.Nil(t, fa.prompts[0])
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Empty body reaches agent", func(t *testing.T) {
		fa := &fakeAgent{err: agent.ErrNoPrompt}
		e := newTestServer(fa)

		req := httptest.NewRequest(http.MethodPost, "/invocations", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.True(t, fa.called)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Downstream failure is generic 500", func(t *testing.T) {
		fa := &fakeAgent{err: errors.New("bedrock Converse: ThrottlingException")}
		e := newTestServer(fa)

		req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(`{"prompt":"EC2"}`))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "ThrottlingException")
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		fa := &fakeAgent{}
		e := newTestServer(fa)

		req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(`{"prompt":`))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, fa.called)
	})

	t.Run("Trailing data after payload", func(t *testing.T) {
		for _, body := range []string{`{"prompt":"S3"} xyz`, `{"prompt":"S3"}{"prompt":"IAM"}`} {
			fa := &fakeAgent{}
			e := newTestServer(fa)

			req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(body))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.False(t, fa.called, body)
		}
	})

	t.Run("Trailing whitespace accepted", func(t *testing.T) {
		fa := &fakeAgent{result: textResult(s3Checklist)}
		e := newTestServer(fa)

		req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("{\"prompt\":\"S3\"}\n  \n"))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, fa.called)
	})
}

func TestPingAndMetrics(t *testing.T) {
	e := newTestServer(&fakeAgent{})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var ping PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ping))
	assert.Equal(t, "Healthy", ping.Status)
	assert.NotZero(t, ping.TimeOfLastUpdate)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "advisor_invocation_duration_seconds")
}
