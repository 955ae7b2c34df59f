package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"

	"secadvisor/internal/app"
	appconfig "secadvisor/internal/config"
	"secadvisor/internal/logging"
)

// The Lambda event is the raw invocation payload, e.g. {"prompt":"S3"}.
func main() {
	ctx := context.Background()

	cfg, err := appconfig.Load()
	if err != nil {
		logging.New("info", "json").Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	h, err := app.NewInvocationHandler(ctx, cfg, app.ClientsFromConfig(awsCfg), log)
	if err != nil {
		log.Fatalf("init agent: %v", err)
	}

	lambda.Start(h.Handle)
}
