package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"secadvisor/internal/agent"
	"secadvisor/internal/history"
	"secadvisor/internal/metrics"
)

// Invoker is the agent as seen by the entrypoint.
type Invoker interface {
	Invoke(ctx context.Context, prompt *string) (*agent.Result, error)
}

// InvocationHandler runs one payload through the agent and records the
// outcome. It is shared by the HTTP server and the Lambda entrypoint.
type InvocationHandler struct {
	agent   Invoker
	history history.Recorder
	log     logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// NewInvocationHandler falls back to NopRecorder and the standard logger
// when rec or log is nil.
func NewInvocationHandler(a Invoker, rec history.Recorder, log logrus.FieldLogger) *InvocationHandler {
	if rec == nil {
		rec = history.NopRecorder{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InvocationHandler{
		agent:   a,
		history: rec,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// ExtractPrompt reads the "prompt" field. A missing or null value yields nil;
// strings are returned verbatim and other values are rendered as text.
func ExtractPrompt(payload map[string]any) *string {
	v, ok := payload["prompt"]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch p := v.(type) {
	case string:
		s = p
	case map[string]any, []any:
		b, err := json.Marshal(p)
		if err != nil {
			s = fmt.Sprint(p)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(p)
	}
	return &s
}

// Handle forwards the payload prompt to the agent and returns its message
// unchanged. Agent errors are returned as-is.
func (h *InvocationHandler) Handle(ctx context.Context, payload map[string]any) (agent.Message, error) {
	id := h.newID()
	log := h.log.WithField("invocation_id", id)
	log.WithField("payload", payload).Info("invocation received")

	prompt := ExtractPrompt(payload)
	start := h.now()
	res, err := h.agent.Invoke(ctx, prompt)
	elapsed := h.now().Sub(start)

	entry := history.Entry{
		InvocationID: id,
		Prompt:       prompt,
		Latency:      elapsed,
		At:           start,
	}

	if err != nil {
		metrics.ObserveInvocation("error", elapsed)
		entry.Err = err.Error()
		h.record(ctx, log, entry)
		log.WithError(err).Error("agent invocation failed")
		return agent.Message{}, err
	}

	text := res.Message.Text()
	entry.Response = text
	entry.StopReason = res.StopReason
	entry.InputTokens = res.Usage.InputTokens
	entry.OutputTokens = res.Usage.OutputTokens
	for _, c := range res.ToolCalls {
		entry.ToolCalls = append(entry.ToolCalls, c.Name)
	}
	h.record(ctx, log, entry)

	fields := logrus.Fields{
		"stop_reason":   res.StopReason,
		"tool_calls":    len(res.ToolCalls),
		"output_tokens": res.Usage.OutputTokens,
		"elapsed_ms":    elapsed.Milliseconds(),
	}
	outcome := "ok"
	if cl, cerr := agent.ParseChecklist(text); cerr != nil {
		// clarifying questions are valid replies too
		outcome = "off_template"
		fields["template"] = cerr.Error()
	} else {
		fields["service"] = cl.Service
		fields["controls"] = len(cl.Controls)
	}
	metrics.ObserveInvocation(outcome, elapsed)
	log.WithFields(fields).Info("invocation completed")

	return res.Message, nil
}

func (h *InvocationHandler) record(ctx context.Context, log logrus.FieldLogger, e history.Entry) {
	if err := h.history.Record(ctx, e); err != nil {
		metrics.IncHistoryError()
		log.WithError(err).Warn("record invocation history")
	}
}
