// Command alerting forwards SNS notifications to the Slack webhook kept in
// Secrets Manager.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/alerting"
	"stackline/src/awsclient"
	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/secrets"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	secretID, err := config.RequireSecret(cfg.SlackSecretID, "AWS_SECRETS_SLACK")
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	awsCfg, err := awsclient.Load(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		log.Fatalf("AWS configuration error: %v", err)
	}

	provider := secrets.NewCached(secrets.NewAWSProviderFromConfig(awsCfg))
	n := alerting.New(provider, secretID, logger.NewJSONLogger(os.Stdout, "slack-alerting"))
	lambda.Start(n.HandleSNS)
}
