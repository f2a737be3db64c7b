// Command status reports pipeline execution state changes to GitHub as
// commit statuses on the revision being deployed.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/awsclient"
	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/secrets"
	"stackline/src/status"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	awsCfg, err := awsclient.Load(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		log.Fatalf("AWS configuration error: %v", err)
	}

	provider := secrets.NewCached(secrets.NewAWSProviderFromConfig(awsCfg))
	hook := status.New(
		status.NewCodePipelineSourceFromConfig(awsCfg),
		status.NewTokenReporter(provider, cfg.GitHubSecretID),
		logger.NewJSONLogger(os.Stdout, "pipeline-status"),
		status.WithContext(cfg.StatusContext),
	)
	lambda.Start(hook.Handle)
}
