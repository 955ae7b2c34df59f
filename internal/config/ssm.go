package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveModelID returns the model id, reading it from Parameter Store when
// ModelIDParam is set.
func (c *Config) ResolveModelID(ctx context.Context, client SSMClient) (string, error) {
	if c.ModelIDParam == "" {
		return c.ModelID, nil
	}
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.ModelIDParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", c.ModelIDParam, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("ssm parameter %s has no value", c.ModelIDParam)
	}
	id := strings.TrimSpace(aws.ToString(out.Parameter.Value))
	if id == "" {
		return "", fmt.Errorf("ssm parameter %s is empty", c.ModelIDParam)
	}
	return id, nil
}
