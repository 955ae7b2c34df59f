package agent

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// Message is the assistant reply returned to callers:
// {"role":"assistant","content":[{"text":"..."}]}
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Text string `json:"text,omitempty"`
}

// Text joins all text blocks.
func (m Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		b.WriteString(c.Text)
	}
	return b.String()
}

type Usage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

func (u *Usage) add(tu *types.TokenUsage) {
	if tu == nil {
		return
	}
	u.InputTokens += aws.ToInt32(tu.InputTokens)
	u.OutputTokens += aws.ToInt32(tu.OutputTokens)
	u.TotalTokens += aws.ToInt32(tu.TotalTokens)
}

// ToolCall records one tool execution requested by the model.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

func messageFromBedrock(m types.Message) Message {
	out := Message{Role: string(m.Role)}
	if out.Role == "" {
		out.Role = string(types.ConversationRoleAssistant)
	}
	for _, c := range m.Content {
		if t, ok := c.(*types.ContentBlockMemberText); ok {
			out.Content = append(out.Content, ContentBlock{Text: t.Value})
		}
	}
	if out.Content == nil {
		out.Content = []ContentBlock{}
	}
	return out
}

func userText(s string) types.Message {
	return types.Message{
		Role: types.ConversationRoleUser,
		Content: []types.ContentBlock{
			&types.ContentBlockMemberText{Value: s},
		},
	}
}
