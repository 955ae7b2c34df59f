package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sirupsen/logrus"

	"secadvisor/internal/agent"
	"secadvisor/internal/config"
	"secadvisor/internal/handlers"
	"secadvisor/internal/history"
	"secadvisor/internal/tools"
)

// Clients are the AWS APIs the service talks to.
type Clients struct {
	Bedrock agent.BedrockClient
	Dynamo  history.PutClient
	SSM     config.SSMClient
}

func ClientsFromConfig(awsCfg aws.Config) Clients {
	return Clients{
		Bedrock: bedrockruntime.NewFromConfig(awsCfg),
		Dynamo:  dynamodb.NewFromConfig(awsCfg),
		SSM:     ssm.NewFromConfig(awsCfg),
	}
}

// NewInvocationHandler wires the agent, its fetch tool and history storage.
func NewInvocationHandler(ctx context.Context, cfg *config.Config, c Clients, log *logrus.Logger) (*handlers.InvocationHandler, error) {
	modelID, err := cfg.ResolveModelID(ctx, c.SSM)
	if err != nil {
		return nil, fmt.Errorf("resolve model id: %w", err)
	}

	registry := tools.NewRegistry(tools.NewHTTPRequest(nil, tools.HTTPRequestOptions{
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.FetchMaxBytes,
	}))

	a := agent.New(c.Bedrock, registry, agent.Config{
		SystemPrompt:  agent.DefaultSystemPrompt,
		ModelID:       modelID,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		MaxToolRounds: cfg.MaxToolRounds,
	}, log)

	var rec history.Recorder = history.NopRecorder{}
	if cfg.InvocationsTable != "" {
		rec = history.NewDynamoRecorder(c.Dynamo, cfg.InvocationsTable, cfg.HistoryTTL)
	}

	log.WithFields(logrus.Fields{
		"model_id": modelID,
		"tools":    registry.Len(),
		"history":  cfg.InvocationsTable != "",
	}).Info("agent configured")

	return handlers.NewInvocationHandler(a, rec, log), nil
}
