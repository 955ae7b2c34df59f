package history

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Entry is one handled invocation.
type Entry struct {
	InvocationID string
	Prompt       *string
	Response     string
	StopReason   string
	InputTokens  int32
	OutputTokens int32
	ToolCalls    []string
	Latency      time.Duration
	Err          string
	At           time.Time
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// NopRecorder discards entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

type PutClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// item mirrors the DynamoDB row.
// PK = INVOCATION#<id>
type item struct {
	PK           string   `dynamodbav:"PK"`
	InvocationID string   `dynamodbav:"InvocationId"`
	Prompt       *string  `dynamodbav:"Prompt,omitempty"`
	HasPrompt    bool     `dynamodbav:"HasPrompt"`
	Response     string   `dynamodbav:"Response,omitempty"`
	StopReason   string   `dynamodbav:"StopReason,omitempty"`
	InputTokens  int32    `dynamodbav:"InputTokens"`
	OutputTokens int32    `dynamodbav:"OutputTokens"`
	ToolCalls    []string `dynamodbav:"ToolCalls,omitempty"`
	LatencyMs    int64    `dynamodbav:"LatencyMs"`
	Error        string   `dynamodbav:"Error,omitempty"`
	CreatedAt    string   `dynamodbav:"CreatedAt"`
	ExpiresAt    int64    `dynamodbav:"ExpiresAt"`
}

type DynamoRecorder struct {
	ddb   PutClient
	table string
	ttl   time.Duration
}

func NewDynamoRecorder(ddb PutClient, table string, ttl time.Duration) *DynamoRecorder {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &DynamoRecorder{ddb: ddb, table: table, ttl: ttl}
}

func PK(invocationID string) string {
	return "INVOCATION#" + invocationID
}

// truncate keeps items under the 400KB DynamoDB item limit.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back off to a rune start so DynamoDB gets valid UTF-8
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

const maxTextBytes = 150 * 1024

func (r *DynamoRecorder) Record(ctx context.Context, e Entry) error {
	if e.InvocationID == "" {
		return fmt.Errorf("history: missing invocation id")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	it := item{
		PK:           PK(e.InvocationID),
		InvocationID: e.InvocationID,
		HasPrompt:    e.Prompt != nil,
		Response:     truncate(e.Response, maxTextBytes),
		StopReason:   e.StopReason,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		ToolCalls:    e.ToolCalls,
		LatencyMs:    e.Latency.Milliseconds(),
		Error:        e.Err,
		CreatedAt:    at.Format(time.RFC3339),
		ExpiresAt:    at.Add(r.ttl).Unix(),
	}
	if e.Prompt != nil {
		p := truncate(*e.Prompt, maxTextBytes)
		it.Prompt = &p
	}

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("history marshal: %w", err)
	}
	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("history PutItem: %w", err)
	}
	return nil
}
