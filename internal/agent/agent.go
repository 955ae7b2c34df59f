package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sirupsen/logrus"

	"secadvisor/internal/metrics"
	"secadvisor/internal/tools"
)

var (
	// ErrNoPrompt is returned when the invocation carried no prompt.
	ErrNoPrompt = errors.New("agent: no prompt provided")
	// ErrToolRoundsExceeded is returned when the model keeps requesting tools.
	ErrToolRoundsExceeded = errors.New("agent: tool round limit exceeded")
)

// BedrockClient is the subset of *bedrockruntime.Client the agent calls.
type BedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Config is fixed at construction; the agent keeps its own copy.
type Config struct {
	SystemPrompt  string
	ModelID       string
	MaxTokens     int32
	Temperature   float32
	MaxToolRounds int
}

// Result is the final assistant message plus per-invocation accounting.
type Result struct {
	Message    Message    `json:"message"`
	StopReason string     `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Agent answers a prompt with the Bedrock Converse API, running tool calls
// requested by the model until it ends its turn.
type Agent struct {
	client BedrockClient
	tools  *tools.Registry
	cfg    Config
	log    logrus.FieldLogger

	toolConfig *types.ToolConfiguration
}

func New(client BedrockClient, registry *tools.Registry, cfg Config, log logrus.FieldLogger) *Agent {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 8
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Agent{
		client:     client,
		tools:      registry,
		cfg:        cfg,
		log:        log,
		toolConfig: buildToolConfig(registry),
	}
}

// Config returns a copy of the agent configuration.
func (a *Agent) Config() Config { return a.cfg }

func buildToolConfig(r *tools.Registry) *types.ToolConfiguration {
	list := r.List()
	if len(list) == 0 {
		return nil
	}
	specs := make([]types.Tool, 0, len(list))
	for _, t := range list {
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name()),
				Description: aws.String(t.Description()),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(t.InputSchema()),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func (a *Agent) converseInput(msgs []types.Message) *bedrockruntime.ConverseInput {
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(a.cfg.ModelID),
		Messages: msgs,
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: a.cfg.SystemPrompt},
		},
		ToolConfig: a.toolConfig,
	}
	// temperature 0 is a valid setting and is always sent
	inf := &types.InferenceConfiguration{
		Temperature: aws.Float32(a.cfg.Temperature),
	}
	if a.cfg.MaxTokens > 0 {
		inf.MaxTokens = aws.Int32(a.cfg.MaxTokens)
	}
	in.InferenceConfig = inf
	return in
}

// Invoke runs one conversation for prompt. A nil prompt is a fault.
func (a *Agent) Invoke(ctx context.Context, prompt *string) (*Result, error) {
	if prompt == nil {
		return nil, ErrNoPrompt
	}

	msgs := []types.Message{userText(*prompt)}
	res := &Result{}

	for round := 0; ; round++ {
		out, err := a.client.Converse(ctx, a.converseInput(msgs))
		if err != nil {
			return nil, fmt.Errorf("bedrock Converse: %w", err)
		}
		res.Usage.add(out.Usage)
		if out.Usage != nil {
			metrics.AddTokens(aws.ToInt32(out.Usage.InputTokens), aws.ToInt32(out.Usage.OutputTokens))
		}

		msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
		if !ok {
			return nil, fmt.Errorf("bedrock Converse: unexpected output type %T", out.Output)
		}
		reply := msgOut.Value
		res.StopReason = string(out.StopReason)

		if out.StopReason != types.StopReasonToolUse {
			res.Message = messageFromBedrock(reply)
			return res, nil
		}

		if round >= a.cfg.MaxToolRounds {
			return nil, fmt.Errorf("%w (%d)", ErrToolRoundsExceeded, a.cfg.MaxToolRounds)
		}

		results, calls := a.runTools(ctx, reply)
		if len(calls) == 0 {
			// tool_use without a toolUse block; treat the reply as final
			res.Message = messageFromBedrock(reply)
			return res, nil
		}
		res.ToolCalls = append(res.ToolCalls, calls...)

		if reply.Role == "" {
			reply.Role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, reply, types.Message{
			Role:    types.ConversationRoleUser,
			Content: results,
		})
	}
}

func (a *Agent) runTools(ctx context.Context, reply types.Message) ([]types.ContentBlock, []ToolCall) {
	var (
		results []types.ContentBlock
		calls   []ToolCall
	)
	for _, c := range reply.Content {
		use, ok := c.(*types.ContentBlockMemberToolUse)
		if !ok {
			continue
		}
		name := aws.ToString(use.Value.Name)
		id := aws.ToString(use.Value.ToolUseId)
		call := ToolCall{ID: id, Name: name}

		text, err := a.execTool(ctx, name, use.Value.Input)
		status := types.ToolResultStatusSuccess
		if err != nil {
			status = types.ToolResultStatusError
			text = err.Error()
			call.Error = err.Error()
		}
		metrics.IncToolCall(name, string(status))
		a.log.WithFields(logrus.Fields{
			"tool":        name,
			"tool_use_id": id,
			"status":      status,
		}).Debug("tool call")

		results = append(results, &types.ContentBlockMemberToolResult{
			Value: types.ToolResultBlock{
				ToolUseId: aws.String(id),
				Status:    status,
				Content: []types.ToolResultContentBlock{
					&types.ToolResultContentBlockMemberText{Value: text},
				},
			},
		})
		calls = append(calls, call)
	}
	return results, calls
}

func (a *Agent) execTool(ctx context.Context, name string, raw document.Interface) (string, error) {
	input := map[string]any{}
	if raw != nil {
		if err := raw.UnmarshalSmithyDocument(&input); err != nil {
			return "", fmt.Errorf("decode %s input: %w", name, err)
		}
	}
	out, err := a.tools.Execute(ctx, name, input)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		out = "(empty result)"
	}
	return out, nil
}
